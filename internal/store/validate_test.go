package store

import (
	"strings"
	"testing"
	"time"
)

func TestValidateUserID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"empty", "", true},
		{"normal", "user@example.com", false},
		{"max_length", strings.Repeat("a", 255), false},
		{"too_long", strings.Repeat("a", 256), true},
		{"way_too_long", strings.Repeat("x", 1000), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUserID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUserID(%d chars) error = %v, wantErr %v", len(tt.id), err, tt.wantErr)
			}
		})
	}
}

func TestValidateYearOfBirth(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		year    int
		wantErr bool
	}{
		{0, false},
		{2019, false},
		{2026, false},
		{2027, true},
		{1850, true},
	}
	for _, tt := range tests {
		if err := ValidateYearOfBirth(tt.year, now); (err != nil) != tt.wantErr {
			t.Errorf("ValidateYearOfBirth(%d) error = %v, wantErr %v", tt.year, err, tt.wantErr)
		}
	}
}
