package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/dmitrijs2005/enrollportal/internal/common"
	"github.com/dmitrijs2005/enrollportal/internal/filex"
	"github.com/dmitrijs2005/enrollportal/internal/server/uploads"
)

// maxFieldBytes caps a single text field.
const maxFieldBytes = 1 << 20

// form is a decoded request body. File parts are spooled to temporary files
// that release removes.
type form struct {
	values  url.Values
	files   map[string][]uploads.File
	temp    []string
	tooLong common.ValidationErrors
}

func (f *form) release() {
	for _, p := range f.temp {
		_ = filex.RemoveIfExists(p)
	}
}

// first returns the first slot named name, or an empty slot.
func (f *form) first(name string) uploads.File {
	if slots := f.files[name]; len(slots) > 0 {
		return slots[0]
	}
	return uploads.File{}
}

// overflow marks every file slot as a failed transfer, including the
// expected slots the truncated body never reached.
func (f *form) overflow(expected []string) {
	for name, slots := range f.files {
		for i := range slots {
			slots[i].Status = uploads.StatusFailed
			slots[i].Open = nil
		}
		f.files[name] = slots
	}
	for _, name := range expected {
		if len(f.files[name]) == 0 {
			f.files[name] = []uploads.File{{Status: uploads.StatusFailed}}
		}
	}
}

// tooLongMessage turns a field name like full_name into "Full name is too long.".
func tooLongMessage(name string) string {
	label := strings.ReplaceAll(name, "_", " ")
	return fmt.Sprintf("%s is too long.", strings.ToUpper(label[:1])+label[1:])
}

// fieldName drops the trailing [] of multi-value inputs.
func fieldName(name string) string {
	return strings.TrimSuffix(name, "[]")
}

// readForm decodes a multipart or url-encoded body of at most maxBytes.
// A body over the limit keeps the text fields read so far and fails every
// file slot named in expected.
func readForm(w http.ResponseWriter, r *http.Request, maxBytes int64, expected []string) (*form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	f := &form{values: url.Values{}, files: map[string][]uploads.File{}}

	mr, err := r.MultipartReader()
	if errors.Is(err, http.ErrNotMultipart) {
		if err := r.ParseForm(); err != nil {
			if isTooLarge(err) {
				f.overflow(expected)
				return f, nil
			}
			return nil, err
		}
		f.values = r.PostForm
		return f, nil
	}
	if err != nil {
		return nil, err
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return f, nil
		}
		if err != nil {
			if isTooLarge(err) {
				f.overflow(expected)
				return f, nil
			}
			f.release()
			return nil, err
		}

		if err := f.readPart(part.FormName(), part.Header.Get("Content-Disposition"), part); err != nil {
			if isTooLarge(err) {
				f.overflow(expected)
				return f, nil
			}
			f.release()
			return nil, err
		}
	}
}

func (f *form) readPart(formName, disposition string, body io.Reader) error {
	name := fieldName(formName)
	if name == "" {
		_, err := io.Copy(io.Discard, body)
		return err
	}

	_, params, _ := mime.ParseMediaType(disposition)
	filename, isFile := params["filename"]
	if !isFile {
		b, err := io.ReadAll(io.LimitReader(body, maxFieldBytes+1))
		if err != nil {
			return err
		}
		if len(b) > maxFieldBytes {
			if _, err := io.Copy(io.Discard, body); err != nil {
				return err
			}
			f.tooLong.Add(tooLongMessage(name))
			return nil
		}
		f.values.Add(name, string(b))
		return nil
	}

	if filename == "" {
		if _, err := io.Copy(io.Discard, body); err != nil {
			return err
		}
		f.files[name] = append(f.files[name], uploads.File{})
		return nil
	}

	tmp, err := os.CreateTemp("", "portal-upload-*")
	if err != nil {
		return err
	}
	path := tmp.Name()
	f.temp = append(f.temp, path)
	f.files[name] = append(f.files[name], uploads.File{Name: filename, Status: uploads.StatusFailed})

	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	slots := f.files[name]
	slots[len(slots)-1] = uploads.File{
		Name:   filename,
		Size:   n,
		Status: uploads.StatusOK,
		Open: func() (io.ReadSeekCloser, error) {
			return os.Open(path)
		},
	}
	return nil
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
