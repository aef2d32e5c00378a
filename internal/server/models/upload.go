package models

// UploadResult is the outcome of storing one validated upload. It is folded
// into a User or ProjectFile record, or discarded together with its blob
// when the enclosing mutation aborts.
type UploadResult struct {
	Locator      string
	OriginalName string
	StoredName   string
	MimeType     string
	Size         int64
}

// AsProjectFile converts r into a file row for projectID.
func (r UploadResult) AsProjectFile(projectID int64) *ProjectFile {
	return &ProjectFile{
		ProjectID:    projectID,
		OriginalName: r.OriginalName,
		StoredName:   r.StoredName,
		FilePath:     r.Locator,
		MimeType:     r.MimeType,
		FileSize:     r.Size,
	}
}
