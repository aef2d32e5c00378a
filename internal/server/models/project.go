package models

import "time"

// Project is owned by exactly one user and carries its attached files,
// oldest first.
type Project struct {
	ID           int64
	UserID       int64
	Title        string
	Description  string
	Technologies string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Files []*ProjectFile
}

type ProjectFields struct {
	Title        string
	Description  string
	Technologies string
}

// ProjectFile describes a stored attachment. FilePath is the blob locator;
// OriginalName is the sanitized display name and is never used for storage.
type ProjectFile struct {
	ID           int64
	ProjectID    int64
	OriginalName string
	StoredName   string
	FilePath     string
	MimeType     string
	FileSize     int64
	CreatedAt    time.Time
}
