package validation

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"

	"github.com/tvloc02/EventVer1-sub000/internal/apperr"
	"github.com/tvloc02/EventVer1-sub000/internal/models"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	// custom validation tags & texts
	checkInMethodTag  = "checkin_method"
	checkInMethodText = "{0} must be one of manual qr_code nfc mobile_app"

	granularityTag  = "granularity"
	granularityText = "{0} must be one of hour day"

	notBlankTag  = "notblank"
	notBlankText = "{0} cannot be blank"
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(checkInMethodTag, checkInMethodValidation)
	_ = validate.RegisterValidation(granularityTag, granularityValidation)
	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	registerCustomTranslation(checkInMethodTag, checkInMethodText)
	registerCustomTranslation(granularityTag, granularityText)
	registerCustomTranslation(notBlankTag, notBlankText)
}

func registerCustomTranslation(tag, text string) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, false) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Check validates v and returns an apperr validation error listing every failing field.
func Check(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Internal(err, "validating input")
	}

	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{
			Field: fe.Field(),
			Error: fe.Translate(translator),
		})
	}
	return apperr.Validation("invalid input", fields...)
}

// Custom Validators

// checkInMethodValidation accepts an empty value; callers default it to manual.
func checkInMethodValidation(fl validator.FieldLevel) bool {
	method := fl.Field().String()
	if method == "" {
		return true
	}
	for _, m := range models.CheckInMethods {
		if string(m) == method {
			return true
		}
	}
	return false
}

func granularityValidation(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "", "hour", "day":
		return true
	}
	return false
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}
