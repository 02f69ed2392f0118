package auth

import (
	"fmt"

	"github.com/msavelyev/authgate/internal/apperrors"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 128

	passwordSpecials = "!@#$%^&*(),.?\":{}|<>_-+=[]\\/~`"
)

// ValidatePasswordStrength checks the password against the registration policy.
// Returns an error wrapping apperrors.ErrWeakPassword with the first failed rule.
func ValidatePasswordStrength(password string) error {
	weak := func(reason string) error {
		return fmt.Errorf("%w: %s", apperrors.ErrWeakPassword, reason)
	}

	if len(password) < minPasswordLen {
		return weak(fmt.Sprintf("must be at least %d characters", minPasswordLen))
	}
	if len(password) > maxPasswordLen {
		return weak(fmt.Sprintf("must not exceed %d characters", maxPasswordLen))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		default:
			for _, s := range passwordSpecials {
				if r == s {
					hasSpecial = true
					break
				}
			}
		}
	}

	switch {
	case !hasUpper:
		return weak("must contain at least one uppercase letter")
	case !hasLower:
		return weak("must contain at least one lowercase letter")
	case !hasDigit:
		return weak("must contain at least one digit")
	case !hasSpecial:
		return weak("must contain at least one special character")
	}

	return nil
}
