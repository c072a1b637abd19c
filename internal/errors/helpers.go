package errors

import (
	stderrors "errors"
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// IsValidation reports whether err is a pre-persistence validation
// rejection rather than an operational failure.
func IsValidation(err error) bool {
	switch GetCode(err) {
	case ErrCodeNoTemplates, ErrCodeNoContacts, ErrCodeNoValidNumbers, ErrCodeBadRequest:
		return true
	}
	return false
}
