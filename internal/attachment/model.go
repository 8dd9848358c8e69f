// Package attachment implements the board's file pipeline: authorize, mint a storage key,
// obtain a presigned URL, transfer the bytes, and commit the metadata.
package attachment

import "time"

// Category tells the issuing service which kind of object a key belongs to.
type Category string

const (
	CategoryPostFile Category = "post-file"
	CategoryProfile  Category = "profile"
)

// Target is the parent a file is attached to: a post, or a user for profile images.
type Target struct {
	Category Category
	ID       int64
}

// PostTarget returns the target for files attached to postID.
func PostTarget(postID int64) Target { return Target{Category: CategoryPostFile, ID: postID} }

// ProfileTarget returns the target for userID's profile image.
func ProfileTarget(userID int64) Target { return Target{Category: CategoryProfile, ID: userID} }

// FileRecord is a committed file. Rows are never updated in place; they are
// superseded or tombstoned through DeletedAt.
type FileRecord struct {
	ID           int64
	OriginalName string
	MimeType     string
	SizeBytes    int64
	StorageKey   string
	StorageURL   string
	Category     Category
	PostID       *int64
	UserID       *int64
	UploaderID   int64
	CreatedAt    time.Time
	DeletedAt    *time.Time
}

// Target returns the record's parent.
func (r *FileRecord) Target() Target {
	if r.PostID != nil {
		return PostTarget(*r.PostID)
	}
	var id int64
	if r.UserID != nil {
		id = *r.UserID
	}
	return ProfileTarget(id)
}

// Descriptor is the client-facing view of a FileRecord.
type Descriptor struct {
	ID           int64     `json:"id"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Describe converts r for API responses.
func (r *FileRecord) Describe() Descriptor {
	return Descriptor{
		ID:           r.ID,
		OriginalName: r.OriginalName,
		MimeType:     r.MimeType,
		URL:          r.StorageURL,
		CreatedAt:    r.CreatedAt,
	}
}

// Describe converts a slice of records.
func Describe(records []FileRecord) []Descriptor {
	out := make([]Descriptor, 0, len(records))
	for i := range records {
		out = append(out, records[i].Describe())
	}
	return out
}

// Upload is one file received from a client.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// DownloadLink is a time-limited URL plus the name the browser should save it under.
type DownloadLink struct {
	DownloadURL string `json:"downloadUrl"`
	DisplayName string `json:"displayName"`
}
