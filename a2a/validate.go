package a2a

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the struct tags of v and returns an InvalidParams error
// naming the first offending field.
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return WrapError(err, CodeInvalidParams, fmt.Sprintf("Invalid params: %s failed on %q", fe.Namespace(), fe.Tag()))
	}
	return WrapError(err, CodeInvalidParams, "Invalid params")
}
