package store

import (
	"fmt"
	"time"
)

// MaxUserIDLength is the maximum allowed length for a user identity.
// Matches the VARCHAR(255) constraint in the database schema.
const MaxUserIDLength = 255

// ValidateUserID checks that a user identity is present and does not exceed MaxUserIDLength.
func ValidateUserID(id string) error {
	if id == "" {
		return fmt.Errorf("user identifier is empty")
	}
	if len(id) > MaxUserIDLength {
		return fmt.Errorf("user identifier too long: %d chars (max %d)", len(id), MaxUserIDLength)
	}
	return nil
}

// ValidateYearOfBirth accepts 0 (unknown) or a plausible year not in the future.
func ValidateYearOfBirth(year int, now time.Time) error {
	if year == 0 {
		return nil
	}
	if year < 1900 || year > now.Year() {
		return fmt.Errorf("year of birth %d out of range", year)
	}
	return nil
}
