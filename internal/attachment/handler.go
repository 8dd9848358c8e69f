package attachment

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/commboard/service/internal/middleware"
	"github.com/commboard/service/internal/response"
)

// multipartMemory is how much of a multipart body is kept in memory before spilling to disk.
const multipartMemory = 32 << 20

// Handler holds HTTP handlers for post attachment endpoints.
type Handler struct {
	svc    *Service
	limits Limits
	log    zerolog.Logger
}

// NewHandler creates a new attachment Handler.
func NewHandler(svc *Service, limits Limits, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, limits: limits, log: log.With().Str("component", "attachment_http").Logger()}
}

// batchFailureData is returned when a multi-file upload stops part way.
type batchFailureData struct {
	Files       []Descriptor `json:"files"`
	FailedIndex int          `json:"failedIndex" example:"1"`
	FailedName  string       `json:"failedName"  example:"notes.pdf"`
}

// UploadFiles godoc
//
//	@Summary		Upload post attachments
//	@Description	Uploads one or more files to a post the caller wrote. Files are processed in order; if one fails, the files before it stay attached and the response lists them with the failing index.
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			postID	path		int		true	"Post ID"
//	@Param			file	formData	file	true	"File(s) to attach"
//	@Success		201		{object}	response.Envelope{data=[]Descriptor}
//	@Failure		400		{object}	response.Envelope{data=batchFailureData}
//	@Failure		401		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope{data=batchFailureData}
//	@Router			/posts/{postID}/files [post]
func (h *Handler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	postID, err := pathID(r, "postID")
	if err != nil {
		response.BadRequest(w, "invalid post id")
		return
	}
	if err := h.svc.AuthorizeUpload(r.Context(), postID, callerID); err != nil {
		h.fail(w, err)
		return
	}

	files, err := ReadFiles(w, r, "file", h.limits)
	if err != nil {
		h.fail(w, err)
		return
	}

	result, err := h.svc.UploadToPost(r.Context(), postID, callerID, files)
	if err != nil {
		h.fail(w, err)
		return
	}
	if result.Failure != nil {
		status, msg := StatusFor(result.Failure.Err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(result.Failure).Int64("post_id", postID).Msg("batch upload failed")
		}
		response.ErrorWithData(w, status, msg, batchFailureData{
			Files:       Describe(result.Files),
			FailedIndex: result.Failure.Index,
			FailedName:  result.Failure.Name,
		})
		return
	}

	response.Created(w, Describe(result.Files))
}

// ListFiles godoc
//
//	@Summary		List post attachments
//	@Description	Returns the live files of a post, newest first.
//	@Tags			files
//	@Produce		json
//	@Security		BearerAuth
//	@Param			postID	path		int	true	"Post ID"
//	@Success		200		{object}	response.Envelope{data=[]Descriptor}
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/posts/{postID}/files [get]
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "postID")
	if err != nil {
		response.BadRequest(w, "invalid post id")
		return
	}

	files, err := h.svc.ListByPost(r.Context(), postID)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.OK(w, Describe(files))
}

// Download godoc
//
//	@Summary		Get a download URL
//	@Description	Issues a short-lived presigned URL for the file. displayName is the name the file was uploaded with.
//	@Tags			files
//	@Produce		json
//	@Security		BearerAuth
//	@Param			fileID	path		int	true	"File ID"
//	@Success		200		{object}	response.Envelope{data=DownloadLink}
//	@Failure		404		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope
//	@Router			/files/{fileID}/download [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	fileID, err := pathID(r, "fileID")
	if err != nil {
		response.BadRequest(w, "invalid file id")
		return
	}

	link, err := h.svc.DownloadURL(r.Context(), fileID)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.OK(w, link)
}

// Delete godoc
//
//	@Summary		Delete an attachment
//	@Description	Removes a file from its post. Only the post author may delete.
//	@Tags			files
//	@Security		BearerAuth
//	@Param			fileID	path	int	true	"File ID"
//	@Success		204
//	@Failure		403	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/files/{fileID} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	fileID, err := pathID(r, "fileID")
	if err != nil {
		response.BadRequest(w, "invalid file id")
		return
	}

	if err := h.svc.Delete(r.Context(), fileID, callerID); err != nil {
		h.fail(w, err)
		return
	}
	response.NoContent(w)
}

// Replace godoc
//
//	@Summary		Replace an attachment
//	@Description	Uploads new content for a file. The result is a new file with a new id; the old one disappears from the post. If the upload fails the old file is kept.
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			fileID	path		int		true	"File ID"
//	@Param			file	formData	file	true	"Replacement file"
//	@Success		200		{object}	response.Envelope{data=Descriptor}
//	@Failure		400		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope
//	@Router			/files/{fileID} [put]
func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	fileID, err := pathID(r, "fileID")
	if err != nil {
		response.BadRequest(w, "invalid file id")
		return
	}
	if err := h.svc.AuthorizeReplace(r.Context(), fileID, callerID); err != nil {
		h.fail(w, err)
		return
	}

	file, err := ReadSingleFile(w, r, "file", h.limits)
	if err != nil {
		h.fail(w, err)
		return
	}

	rec, err := h.svc.Replace(r.Context(), fileID, callerID, file)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.OK(w, rec.Describe())
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if status, _ := StatusFor(err); status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("request failed")
	}
	WriteError(w, err)
}

// ReadFiles reads every part named field from a multipart request.
// The whole body is capped at MaxFiles*MaxFileBytes plus form overhead.
func ReadFiles(w http.ResponseWriter, r *http.Request, field string, limits Limits) ([]Upload, error) {
	if limits.MaxFileBytes > 0 {
		files := int64(limits.MaxFiles)
		if files < 1 {
			files = 1
		}
		r.Body = http.MaxBytesReader(w, r.Body, files*limits.MaxFileBytes+1<<20)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: request body exceeds %d bytes", ErrInvalidInput, tooLarge.Limit)
		}
		return nil, fmt.Errorf("%w: expected a multipart/form-data body", ErrInvalidInput)
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, fmt.Errorf("%w: no %q parts in request", ErrInvalidInput, field)
	}

	uploads := make([]Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open part %q: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read part %q: %w", fh.Filename, err)
		}
		uploads = append(uploads, Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return uploads, nil
}

// ReadSingleFile is ReadFiles for endpoints taking exactly one file.
func ReadSingleFile(w http.ResponseWriter, r *http.Request, field string, limits Limits) (Upload, error) {
	limits.MaxFiles = 1
	files, err := ReadFiles(w, r, field, limits)
	if err != nil {
		return Upload{}, err
	}
	if len(files) != 1 {
		return Upload{}, fmt.Errorf("%w: expected exactly one file, got %d", ErrInvalidInput, len(files))
	}
	return files[0], nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}
