package core

// error_messages.go maps operational errors to user-facing messages with
// support codes. Validation failures never pass through here: they are
// reported per row as Messages.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: The option already exists in the catalog
//	        Patterns: "duplicate key"
//	DB002 - Unique constraint: A catalog value must be unique but already exists
//	        Patterns: "unique constraint", "violates unique"
//	DB003 - Foreign key: Referenced attribute does not exist
//	        Patterns: "violates foreign key"
//	DB004 - Connection refused: Unable to connect to database
//	        Patterns: "connection refused"
//	DB005 - Connection reset: Database connection was interrupted
//	        Patterns: "connection reset"
//	DB006 - Timeout: Operation timed out
//	        Patterns: "timeout", "context deadline exceeded"
//	DB007 - Deadlock: Database was busy with conflicting operations
//	        Patterns: "deadlock"
//
// # Schema Errors (SCH001-SCH099)
//
//	SCH001 - Unknown attribute: Attribute is not defined for this entity type
//	         Patterns: "attribute not found"
//	SCH002 - Empty schema: Entity type has no attributes
//	         Patterns: "no attributes"
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Run not found: Validation run does not exist or has expired
//	         Patterns: "run not found"
//	RUN002 - System busy: Too many validation runs are open
//	         Patterns: "too many active validation runs"
//	RUN003 - Request cancelled
//	         Patterns: "context canceled"
//	RUN004 - Missing entity type
//	         Patterns: "entity type is required"
//
// # Feed Errors (FEED001-FEED099)
//
//	FEED001 - Invalid CSV: Feed is not a valid CSV
//	          Patterns: "invalid csv"
//	FEED002 - Feed too large
//	          Patterns: "feed too large"
//	FEED003 - Empty feed: Feed has no header row
//	          Patterns: "empty feed"
//	FEED004 - Invalid rows: Request body is not a JSON array of rows
//	          Patterns: "invalid rows"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the logs for the technical error.
//
// Patterns are matched case-insensitively with strings.Contains; the first
// match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Database constraints
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "The option already exists in the catalog",
			Action:  "Refresh the attribute metadata and retry the row",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "A catalog value must be unique but already exists",
			Action:  "Check for duplicate entries in your feed",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Check for duplicate entries in your feed",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced attribute does not exist",
			Action:  "Verify the attribute codes in your feed header",
			Code:    "DB003",
		},
	},

	// Database connectivity
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Send fewer rows per request or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Send fewer rows per request or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// Schema
	{
		pattern: "attribute not found",
		msg: UserMessage{
			Message: "Attribute is not defined for this entity type",
			Action:  "Verify the attribute codes in your feed header",
			Code:    "SCH001",
		},
	},
	{
		pattern: "no attributes",
		msg: UserMessage{
			Message: "Entity type has no attributes",
			Action:  "Check the entity type code",
			Code:    "SCH002",
		},
	},

	// Runs
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "Validation run not found",
			Action:  "The run may have expired. Please start a new run",
			Code:    "RUN001",
		},
	},
	{
		pattern: "too many active validation runs",
		msg: UserMessage{
			Message: "System is busy with other validation runs",
			Action:  "Please wait a moment and try again",
			Code:    "RUN002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "RUN003",
		},
	},
	{
		pattern: "entity type is required",
		msg: UserMessage{
			Message: "No entity type given",
			Action:  "Pass entity_type, for example catalog_product",
			Code:    "RUN004",
		},
	},

	// Feeds
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "Feed is not a valid CSV",
			Action:  "Ensure the feed is comma-separated with consistent columns",
			Code:    "FEED001",
		},
	},
	{
		pattern: "feed too large",
		msg: UserMessage{
			Message: "Feed exceeds the maximum size",
			Action:  "Split the feed into smaller chunks",
			Code:    "FEED002",
		},
	},
	{
		pattern: "empty feed",
		msg: UserMessage{
			Message: "Feed has no header row",
			Action:  "Include a header row naming the attribute codes",
			Code:    "FEED003",
		},
	},
	{
		pattern: "invalid rows",
		msg: UserMessage{
			Message: "Rows must be a JSON array of objects",
			Action:  "Send rows as [{\"sku\": \"...\", ...}]",
			Code:    "FEED004",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, the ERR000 fallback is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
