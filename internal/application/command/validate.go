// Package command contains write operations (CQRS - Commands).
package command

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/school-hub/gradebook/internal/domain/shared"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	notBlankTag = "notblank"
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report fields by their snake_case "field" tag instead of Go names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("field"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		if s, ok := fl.Field().Interface().(string); ok {
			return strings.TrimSpace(s) != ""
		}
		return false
	})
	_ = validate.RegisterTranslation(notBlankTag, translator,
		func(ut.Translator) error { return nil },
		func(ut.Translator, validator.FieldError) string { return "this field cannot be blank" },
	)
}

// validateCommand runs struct-tag validation and converts failures into a
// shared.ValidationError keyed by field name.
func validateCommand(op string, cmd interface{}) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return shared.WrapError("command", op, shared.ErrInvalidInput, "invalid command", err)
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fe.Translate(translator)
	}
	return shared.NewValidationError("command", op, "invalid input", fields)
}

// requireActor rejects commands submitted without an acting principal.
func requireActor(op string, actor shared.Principal) error {
	if actor.IsZero() {
		return shared.NewValidationError("command", op, "an acting user is required",
			map[string]string{"actor": "required"})
	}
	return nil
}
