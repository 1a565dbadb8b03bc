package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "duplicate option key",
			err:         errors.New("ERROR: duplicate key value violates unique constraint"),
			wantCode:    "DB001",
			wantMessage: "The option already exists in the catalog",
		},
		{
			name:        "connection refused",
			err:         errors.New("dial tcp 127.0.0.1:5432: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "unknown attribute",
			err:         fmt.Errorf("add option to color: %w", catalog.ErrAttributeNotFound),
			wantCode:    "SCH001",
			wantMessage: "Attribute is not defined for this entity type",
		},
		{
			name:        "run not found",
			err:         fmt.Errorf("validate: %w", ErrRunNotFound),
			wantCode:    "RUN001",
			wantMessage: "Validation run not found",
		},
		{
			name:        "too many runs",
			err:         ErrTooManyRuns,
			wantCode:    "RUN002",
			wantMessage: "System is busy with other validation runs",
		},
		{
			name:        "invalid csv",
			err:         errors.New("invalid csv: record on line 3: wrong number of fields"),
			wantCode:    "FEED001",
			wantMessage: "Feed is not a valid CSV",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("CONNECTION REFUSED"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrRunNotFound)

	expected := "Validation run not found (Code: RUN001). The run may have expired. Please start a new run"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", errors.New("deadlock detected"), true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("start run: %w", ErrTooManyRuns)
		userErr := NewUserError(techErr)

		if userErr.Error() != "System is busy with other validation runs" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, ErrTooManyRuns) {
			t.Error("Unwrap() should reach the original error")
		}
	})
}
