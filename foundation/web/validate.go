package web

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

var validate *validator.Validate
var translator ut.Translator

func init() {
	validate = validator.New()

	// Use a request body's own json tag as the field name reported in
	// validation errors, rather than the Go struct field name.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
	entranslations.RegisterDefaultTranslations(validate, translator)
}

// FieldError describes a single field-level validation failure.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// FieldErrors is the error type Validate returns when a struct fails one
// or more `validate:"..."` tag checks.
type FieldErrors []FieldError

// Error implements the error interface.
func (fe FieldErrors) Error() string {
	var b strings.Builder
	for i, f := range fe {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "%s: %s", f.Field, f.Error)
	}
	return b.String()
}

// Validate checks val against its `validate:"..."` struct tags,
// returning a FieldErrors value (never a bare validator error) so the
// error middleware can render a stable {field, error} response shape.
func Validate(val any) error {
	if err := validate.Struct(val); err != nil {
		var verrors validator.ValidationErrors
		if !errors.As(err, &verrors) {
			return err
		}

		fields := make(FieldErrors, len(verrors))
		for i, v := range verrors {
			fields[i] = FieldError{Field: v.Field(), Error: v.Translate(translator)}
		}
		return fields
	}

	return nil
}
