package profile

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/commboard/service/internal/attachment"
	"github.com/commboard/service/internal/middleware"
	"github.com/commboard/service/internal/response"
)

// Handler holds HTTP handlers for the profile-image endpoints.
type Handler struct {
	svc    *Service
	limits attachment.Limits
	log    zerolog.Logger
}

// NewHandler creates a new profile Handler.
func NewHandler(svc *Service, limits attachment.Limits, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, limits: limits, log: log.With().Str("component", "profile_http").Logger()}
}

type imageData struct {
	ProfileImageURL string `json:"profileImageUrl" example:"http://localhost:9000/attachments/profile/7/3f0c9b1e-2d4a-4c1b-9e57-0a8f6f1d2c33.png"`
}

// SetImage godoc
//
//	@Summary		Set profile image
//	@Description	Uploads an image and makes it the caller's profile image. An existing image is replaced. POST and PATCH behave the same.
//	@Tags			users
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			file	formData	file	true	"Image file (image/*)"
//	@Success		200		{object}	response.Envelope{data=imageData}
//	@Success		201		{object}	response.Envelope{data=imageData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope
//	@Router			/users/me/profile-image [post]
//	@Router			/users/me/profile-image [patch]
func (h *Handler) SetImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	file, err := attachment.ReadSingleFile(w, r, "file", h.limits)
	if err != nil {
		h.fail(w, err)
		return
	}

	rec, err := h.svc.SetImage(r.Context(), userID, file)
	if err != nil {
		h.fail(w, err)
		return
	}

	data := imageData{ProfileImageURL: rec.StorageURL}
	if r.Method == http.MethodPost {
		response.Created(w, data)
		return
	}
	response.OK(w, data)
}

// RemoveImage godoc
//
//	@Summary		Remove profile image
//	@Description	Clears the caller's profile image. Succeeds when there is none.
//	@Tags			users
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/users/me/profile-image [delete]
func (h *Handler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	if err := h.svc.RemoveImage(r.Context(), userID); err != nil {
		h.fail(w, err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if status, _ := attachment.StatusFor(err); status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("request failed")
	}
	attachment.WriteError(w, err)
}
