package validator

import (
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	validate   *validator.Validate
	phoneRegex = regexp.MustCompile(`^[0-9+\-() ]{7,32}$`)

	// Letters in any script, joined by single spaces, hyphens, apostrophes or dots.
	personNameRegex = regexp.MustCompile(`^\p{L}\p{M}*(?:(?:[ '\-]|\. ?)?\p{L}\p{M}*)*\.?$`)
)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRegex.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNameRegex.MatchString(fl.Field().String())
	})
}

// Validate checks struct tags and returns field -> failed tag, or nil when valid.
func Validate(v any) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
