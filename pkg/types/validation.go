package types

import (
	"fmt"
	"regexp"
	"strings"
)

// compiled once, used on every join and token check
var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

const (
	maxSessionName  = 200
	maxMessageBody  = 16 * 1024
	maxPollQuestion = 500
	maxPollOptions  = 10
)

// IsValidUserID checks if a user ID meets format requirements
func IsValidUserID(userID string) bool {
	if len(userID) < 1 || len(userID) > 50 {
		return false
	}
	return userIDRegex.MatchString(userID)
}

// IsValidRole reports whether r is one of the two session roles
func IsValidRole(r Role) bool {
	return r == RoleInstructor || r == RoleStudent
}

// Validate checks the host-supplied creation config
func (c SessionConfig) Validate() error {
	if len(c.Name) > maxSessionName {
		return fmt.Errorf("%w: %v", ErrValidation, ErrInvalidSessionName)
	}
	if c.Settings != nil {
		if err := c.Settings.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the values a patch would apply
func (p SettingsPatch) Validate() error {
	if p.MaxParticipants != nil && *p.MaxParticipants < 0 {
		return fmt.Errorf("%w: %v", ErrValidation, ErrInvalidMaxPartic)
	}
	if p.CodeVisibility != nil {
		switch *p.CodeVisibility {
		case CodeVisibilityAll, CodeVisibilityInstructors:
		default:
			return fmt.Errorf("%w: %v", ErrValidation, ErrInvalidVisibility)
		}
	}
	return nil
}

// ValidateMessageBody rejects empty and oversized chat bodies
func ValidateMessageBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: %v", ErrValidation, ErrEmptyBody)
	}
	if len(body) > maxMessageBody {
		return fmt.Errorf("%w: %v", ErrValidation, ErrBodyTooLarge)
	}
	return nil
}

// ValidatePoll checks question length and option list shape
func ValidatePoll(question string, options []string) error {
	q := strings.TrimSpace(question)
	if q == "" || len(q) > maxPollQuestion {
		return fmt.Errorf("%w: %v", ErrValidation, ErrInvalidPollQuestion)
	}
	if len(options) < 2 || len(options) > maxPollOptions {
		return fmt.Errorf("%w: %v", ErrValidation, ErrInvalidPollOptions)
	}
	seen := make(map[string]bool, len(options))
	for _, opt := range options {
		o := strings.TrimSpace(opt)
		if o == "" || seen[o] {
			return fmt.Errorf("%w: %v", ErrValidation, ErrInvalidPollOptions)
		}
		seen[o] = true
	}
	return nil
}
