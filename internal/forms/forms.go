// Package forms binds and validates the HTML forms of the site.
//
// Every form follows the same contract: Bind parses the request, Valid fills
// Errors and reports whether the form may be saved. Fields owned by the
// server (author, post, profile) are never read from the request.
package forms

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"

	"example.com/postfeed/internal/validate"
)

const (
	// MaxUploadSize caps a single uploaded image.
	MaxUploadSize = 5 << 20
	maxMemory     = 8 << 20

	msgBadImage  = "Загрузите правильное изображение"
	msgBadChoice = "Выберите корректный вариант"
	msgTooLarge  = "Файл слишком большой"
)

// Form carries field errors shared by all forms.
type Form struct {
	Errors map[string][]string
}

func (f *Form) AddError(field, msg string) {
	if f.Errors == nil {
		f.Errors = make(map[string][]string)
	}
	f.Errors[field] = append(f.Errors[field], msg)
}

// Check records the message of a failed validator against field.
func (f *Form) Check(field string, err error) {
	if err == nil {
		return
	}
	var ve *validate.ValidationError
	if errors.As(err, &ve) {
		f.AddError(field, ve.Message)
		return
	}
	f.AddError(field, err.Error())
}

func (f *Form) HasErrors() bool {
	return len(f.Errors) > 0
}

// FieldErrors returns the messages for one field, for templates.
func (f *Form) FieldErrors(field string) []string {
	return f.Errors[field]
}

// Upload is an image file received with a form.
type Upload struct {
	Filename string
	Data     []byte
}

func (u *Upload) Reader() io.Reader {
	return bytes.NewReader(u.Data)
}

// parse reads a multipart or urlencoded body into r.Form.
func parse(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return fmt.Errorf("parse multipart form: %w", err)
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("parse form: %w", err)
	}
	return nil
}

// readUpload returns the file sent as field, or nil when none was sent.
func readUpload(r *http.Request, field string) (*Upload, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, nil
	}
	fh := r.MultipartForm.File[field][0]
	if fh.Filename == "" && fh.Size == 0 {
		return nil, nil
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return &Upload{Filename: fh.Filename, Data: data}, nil
}

// checkImage validates that the upload decodes as a GIF, PNG or JPEG.
func (f *Form) checkImage(field string, u *Upload) {
	if u == nil {
		return
	}
	if len(u.Data) > MaxUploadSize {
		f.AddError(field, msgTooLarge)
		return
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(u.Data)); err != nil {
		f.AddError(field, msgBadImage)
	}
}
