// Package uploads screens uploaded files against a policy before anything is
// stored, and sanitizes caller-supplied names for display.
package uploads

import (
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gosimple/slug"
)

// Status is the transport-level state of one file slot.
type Status int

const (
	// StatusNoFile means the slot was left empty. It is the zero value.
	StatusNoFile Status = iota
	StatusOK
	// StatusFailed means the transport could not deliver the file
	// (truncated body, size cap hit, disk error while spooling).
	StatusFailed
)

// File is the metadata of one uploaded file slot. Open gives access to the
// content and is only called after validation succeeded.
type File struct {
	Name   string
	Size   int64
	Status Status
	Open   func() (io.ReadSeekCloser, error)
}

func (f File) Supplied() bool {
	return f.Status != StatusNoFile
}

// Ext returns the lower-cased extension of the declared name, without the dot.
func (f File) Ext() string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(f.Name), "."))
}

type Policy struct {
	Extensions []string
	MaxBytes   int64
	Optional   bool
}

const mib = 1024 * 1024

var (
	PhotoPolicy       = Policy{Extensions: []string{"jpg", "jpeg", "png", "webp"}, MaxBytes: 2 * mib}
	DocumentPolicy    = Policy{Extensions: []string{"pdf", "doc", "docx"}, MaxBytes: 5 * mib}
	ProjectFilePolicy = Policy{
		Extensions: []string{"pdf", "doc", "docx", "txt", "csv", "png", "jpg", "jpeg", "webp", "zip"},
		MaxBytes:   10 * mib,
	}
)

// AsOptional returns a copy of p for slots that may be left empty.
func (p Policy) AsOptional() Policy {
	p.Optional = true
	return p
}

type Outcome int

const (
	Accepted Outcome = iota
	Absent
	Rejected
)

const (
	ReasonRequired     = "required"
	ReasonUploadFailed = "upload failed"
	ReasonInvalidType  = "invalid file type"
	ReasonTooLarge     = "exceeds allowed size"
)

type Result struct {
	Outcome Outcome
	Reason  string
}

// Message renders the user-facing sentence for a rejection, e.g.
// "Resume has an invalid file type.". Accepted and absent results have none.
func (r Result) Message(label string) string {
	if r.Outcome != Rejected {
		return ""
	}
	switch r.Reason {
	case ReasonRequired:
		return label + " is required."
	case ReasonInvalidType:
		return label + " has an invalid file type."
	default:
		return label + " " + r.Reason + "."
	}
}

// Validate applies the policy rules in order and stops at the first failure.
func Validate(f File, p Policy) Result {
	if !f.Supplied() {
		if p.Optional {
			return Result{Outcome: Absent}
		}
		return Result{Outcome: Rejected, Reason: ReasonRequired}
	}
	if f.Status != StatusOK {
		return Result{Outcome: Rejected, Reason: ReasonUploadFailed}
	}
	if !slices.Contains(p.Extensions, f.Ext()) {
		return Result{Outcome: Rejected, Reason: ReasonInvalidType}
	}
	if f.Size > p.MaxBytes {
		return Result{Outcome: Rejected, Reason: ReasonTooLarge}
	}
	return Result{Outcome: Accepted}
}

// SanitizeDisplayName reduces a caller-supplied file name to a safe display
// form: the base name is slugified (lower-case ASCII letters, digits and
// single dashes) and the lower-cased extension is kept.
func SanitizeDisplayName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	ext := filepath.Ext(base)
	stem := slug.Make(strings.TrimSuffix(base, ext))
	if stem == "" {
		stem = "file"
	}

	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	ext = slug.Make(ext)
	if ext == "" {
		return stem
	}
	return stem + "." + ext
}
