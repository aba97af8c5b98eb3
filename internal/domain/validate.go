package domain

import (
	"errors"
	"sort"

	"storefront/internal/errs"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// toValidationError converts ozzo validation errors into an *errs.ValidationError
// naming the first offending field. Internal rule errors are returned unchanged.
func toValidationError(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for field, fe := range fieldErrs {
			if fe != nil {
				fields = append(fields, field)
			}
		}
		if len(fields) == 0 {
			return nil
		}
		sort.Strings(fields)
		first := fields[0]
		return errs.NewValidation(first, fieldErrs[first].Error())
	}

	var ie validation.InternalError
	if errors.As(err, &ie) {
		return err
	}

	return errs.NewValidation("", err.Error())
}
