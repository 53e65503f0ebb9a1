package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Error is a field-level validation failure. Keys are json field names.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewError builds an Error from a single field message.
func NewError(field, msg string) *Error {
	return &Error{Fields: map[string]string{field: msg}}
}

// Add records msg for field unless the field already has one.
func (e *Error) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// OrNil returns nil when no field failed.
func (e *Error) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// As reports whether err carries field errors.
func As(err error) (*Error, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

var (
	validate *validator.Validate
	trans    ut.Translator
	once     sync.Once
)

func setup(v *validator.Validate) ut.Translator {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	locale := en.New()
	uni := ut.New(locale, locale)
	t, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, t)
	return t
}

func engine() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		trans = setup(validate)
	})
	return validate
}

// InitBinding configures gin's binding validator the same way as the domain validator.
func InitBinding() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		setup(v)
	}
}

// Struct validates s and converts failures into *Error.
func Struct(s interface{}) error {
	if err := engine().Struct(s); err != nil {
		return &Error{Fields: Fields(err)}
	}
	return nil
}

// Var validates a single value against tag.
func Var(field string, value interface{}, tag string) error {
	if err := engine().Var(value, tag); err != nil {
		fields := Fields(err)
		msg := strings.TrimSpace(fields[""])
		if msg == "" {
			msg = "is invalid"
		}
		return NewError(field, msg)
	}
	return nil
}

// Fields converts raw validator errors into a json-path keyed map.
func Fields(err error) map[string]string {
	engine()
	errMap := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			ns := e.Namespace()
			if i := strings.Index(ns, "."); i != -1 {
				ns = ns[i+1:]
			} else if e.Field() == "" {
				ns = ""
			}

			msg := e.Translate(trans)
			if e.Tag() == "oneof" {
				msg = fmt.Sprintf("must be one of [%s]", strings.ReplaceAll(e.Param(), " ", ", "))
			}
			errMap[ns] = msg
		}
		return errMap
	}

	errMap["body"] = "Invalid request body format. Please fix your payload."
	return errMap
}
