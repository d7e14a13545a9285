package models

import "time"

// File describes metadata for an uploaded object. The content itself lives
// in the configured storage backend under StorageKey.
//
// TaskID is a weak reference: a file may outlive the task it was attached to,
// and deleting a task only clears the association.
type File struct {
	ID           string
	UserID       string
	TaskID       *string
	FileName     string
	OriginalName string
	MimeType     string
	Size         int64
	StorageKey   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FileInfo is the projection of a File exposed in task listings and file
// responses. It deliberately omits the storage key, which is an internal
// backend detail.
type FileInfo struct {
	ID           string
	FileName     string
	OriginalName string
	MimeType     string
	Size         int64
	CreatedAt    time.Time
}

// Info returns the external projection of f.
func (f *File) Info() *FileInfo {
	return &FileInfo{
		ID:           f.ID,
		FileName:     f.FileName,
		OriginalName: f.OriginalName,
		MimeType:     f.MimeType,
		Size:         f.Size,
		CreatedAt:    f.CreatedAt,
	}
}
