package api

import (
	"io"
	"mime/multipart"
)

// Form is a multipart/form-data body. The Request Client streams it and lets
// the multipart writer choose the boundary; no JSON content type is ever
// attached to a Form.
type Form struct {
	parts []formPart
}

type formPart struct {
	name     string
	value    string
	filename string
	file     io.Reader
}

func NewForm() *Form {
	return &Form{}
}

// Set appends a text field.
func (f *Form) Set(name, value string) *Form {
	f.parts = append(f.parts, formPart{name: name, value: value})
	return f
}

// File appends a file field. r is read once while the request is sent; the
// caller keeps ownership and closes it.
func (f *Form) File(name, filename string, r io.Reader) *Form {
	f.parts = append(f.parts, formPart{name: name, filename: filename, file: r})
	return f
}

// Has reports whether a field with name exists.
func (f *Form) Has(name string) bool {
	for _, p := range f.parts {
		if p.name == name {
			return true
		}
	}
	return false
}

// Value returns the first text value for name.
func (f *Form) Value(name string) string {
	for _, p := range f.parts {
		if p.name == name && p.file == nil {
			return p.value
		}
	}
	return ""
}

// Fields lists field names in insertion order.
func (f *Form) Fields() []string {
	names := make([]string, 0, len(f.parts))
	for _, p := range f.parts {
		names = append(names, p.name)
	}
	return names
}

// reader streams the encoded form through a pipe. contentType carries the
// boundary.
func (f *Form) reader() (body io.ReadCloser, contentType string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(f.writeTo(mw))
	}()
	return pr, mw.FormDataContentType()
}

func (f *Form) writeTo(mw *multipart.Writer) error {
	for _, p := range f.parts {
		if p.file == nil {
			if err := mw.WriteField(p.name, p.value); err != nil {
				return err
			}
			continue
		}
		w, err := mw.CreateFormFile(p.name, p.filename)
		if err != nil {
			return err
		}
		if _, err := io.Copy(w, p.file); err != nil {
			return err
		}
	}
	return mw.Close()
}
