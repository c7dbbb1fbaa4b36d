package sampleform

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/keithlinneman/sampleform/internal/apierror"
	"github.com/keithlinneman/sampleform/internal/xerrors"
)

// Submission is one decoded form post. Field order is the order problems
// are reported in.
type Submission struct {
	Name     string                `form:"name" validate:"required"`
	Email    string                `form:"email" validate:"required"`
	Category string                `form:"category" validate:"required"`
	File     *multipart.FileHeader `form:"file" validate:"required"`
}

// sniffLen matches what http.DetectContentType looks at.
const sniffLen = 512

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() {
		vld = validator.New(validator.WithRequiredStructEnabled())
		vld.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return vld
}

// decode reads the submission from r. A body that is not a parseable form
// decodes as an empty submission so validation reports every field; only an
// oversized body is an error.
func decode(r *http.Request, maxMemory int64) (Submission, error) {
	var s Submission
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return s, apierror.TooLarge()
		}
		// urlencoded bodies still populate PostForm before ErrNotMultipart
		if !errors.Is(err, http.ErrNotMultipart) {
			return s, nil
		}
	}

	s.Name = r.PostFormValue("name")
	s.Email = r.PostFormValue("email")
	s.Category = r.PostFormValue("category")
	if r.MultipartForm != nil {
		if fhs := r.MultipartForm.File["file"]; len(fhs) > 0 {
			s.File = fhs[0]
		}
	}
	return s, nil
}

// validate returns a validation failure listing every rejected field, or nil.
func (s Submission) validate() error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return xerrors.Wrap(err, "validate submission")
	}
	fields := make([]apierror.FieldError, 0, len(ves))
	for _, fe := range ves {
		fields = append(fields, fieldError(fe))
	}
	return apierror.Validation(fields...)
}

func fieldError(fe validator.FieldError) apierror.FieldError {
	if fe.Tag() == "required" {
		return apierror.Missing(fe.Field())
	}
	return apierror.FieldError{
		Type:  fe.Tag(),
		Loc:   []string{"body", fe.Field()},
		Msg:   "Field failed " + fe.Tag() + " check",
		Input: fe.Value(),
	}
}

// detectType sniffs the leading bytes of the upload.
func detectType(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", xerrors.Wrapf(err, "open upload %q", fh.Filename)
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", xerrors.Wrapf(err, "read upload %q", fh.Filename)
	}
	return mimetype.Detect(head[:n]).String(), nil
}
