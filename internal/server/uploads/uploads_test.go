package uploads

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		file   File
		policy Policy
		want   Result
	}{
		{"absent optional", File{}, DocumentPolicy.AsOptional(), Result{Outcome: Absent}},
		{"absent mandatory", File{}, DocumentPolicy, Result{Outcome: Rejected, Reason: ReasonRequired}},
		{"transport failure", File{Name: "cv.pdf", Size: 10, Status: StatusFailed}, DocumentPolicy,
			Result{Outcome: Rejected, Reason: ReasonUploadFailed}},
		{"transport failure beats bad extension", File{Name: "cv.exe", Status: StatusFailed}, DocumentPolicy,
			Result{Outcome: Rejected, Reason: ReasonUploadFailed}},
		{"bad extension", File{Name: "b.exe", Size: 10, Status: StatusOK}, ProjectFilePolicy,
			Result{Outcome: Rejected, Reason: ReasonInvalidType}},
		{"no extension", File{Name: "README", Size: 10, Status: StatusOK}, ProjectFilePolicy,
			Result{Outcome: Rejected, Reason: ReasonInvalidType}},
		{"extension is case-insensitive", File{Name: "Photo.JPG", Size: 10, Status: StatusOK}, PhotoPolicy,
			Result{Outcome: Accepted}},
		{"bad extension beats size", File{Name: "huge.exe", Size: 1 << 40, Status: StatusOK}, ProjectFilePolicy,
			Result{Outcome: Rejected, Reason: ReasonInvalidType}},
		{"too large", File{Name: "p.png", Size: 2*mib + 1, Status: StatusOK}, PhotoPolicy,
			Result{Outcome: Rejected, Reason: ReasonTooLarge}},
		{"exactly the limit", File{Name: "p.png", Size: 2 * mib, Status: StatusOK}, PhotoPolicy,
			Result{Outcome: Accepted}},
		{"optional but supplied is still checked", File{Name: "p.gif", Size: 1, Status: StatusOK},
			PhotoPolicy.AsOptional(), Result{Outcome: Rejected, Reason: ReasonInvalidType}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Validate(tc.file, tc.policy))
		})
	}
}

func TestAsOptional_DoesNotMutateOriginal(t *testing.T) {
	_ = PhotoPolicy.AsOptional()
	assert.False(t, PhotoPolicy.Optional)
}

func TestResultMessage(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{ReasonRequired, "Resume is required."},
		{ReasonUploadFailed, "Resume upload failed."},
		{ReasonInvalidType, "Resume has an invalid file type."},
		{ReasonTooLarge, "Resume exceeds allowed size."},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Result{Outcome: Rejected, Reason: tc.reason}.Message("Resume"))
	}
	assert.Empty(t, Result{Outcome: Accepted}.Message("Resume"))
	assert.Empty(t, Result{Outcome: Absent}.Message("Resume"))
}

func TestSanitizeDisplayName(t *testing.T) {
	tests := map[string]string{
		"a.pdf":                 "a.pdf",
		"My Résumé (final).PDF": "my-resume-final.pdf",
		"../../etc/passwd":      "passwd",
		`C:\Users\bob\cv.docx`:  "cv.docx",
		"___.txt":               "file.txt",
		"archive.tar.gz":        "archive-tar.gz",
		"noext":                 "noext",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, SanitizeDisplayName(in))
		})
	}
}

func TestFileExt(t *testing.T) {
	assert.Equal(t, "jpeg", File{Name: "x.JPEG"}.Ext())
	assert.Equal(t, "", File{Name: "x"}.Ext())
}
