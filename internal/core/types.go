// Package core validates product-import rows against an attribute schema.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
)

// Reserved row keys.
const (
	KeyProductType   = "product_type"
	KeySKU           = "sku"
	KeyStoreViewCode = "store_view_code"
)

// Defaults used when a run is configured with zero values.
const (
	DefaultMultiValueSeparator = "|"
	DefaultEmptyValue          = "__EMPTY__VALUE__"
	DefaultOptionSortOrder     = 100
)

// RowData maps attribute code to the raw cell value of one feed row.
type RowData map[string]string

// ErrorKind identifies a validation failure.
type ErrorKind string

const (
	KindValueRequired              ErrorKind = "value-required"
	KindInvalidAttributeOption     ErrorKind = "invalid-attribute-option"
	KindInvalidAttributeType       ErrorKind = "invalid-attribute-type"
	KindInvalidType                ErrorKind = "invalid-type"
	KindDuplicateUniqueAttribute   ErrorKind = "duplicate-unique-attribute"
	KindDuplicateMultiselectValues ErrorKind = "duplicate-multiselect-values"
	KindExceededMaxLength          ErrorKind = "exceeded-max-length"
)

// Message is one validation failure recorded against a row.
type Message struct {
	Kind      ErrorKind `json:"kind"`
	Attribute string    `json:"attribute,omitempty"`
}

// RowResult is the outcome of validating one row.
type RowResult struct {
	Line              int       `json:"line"` // feed line, or 1-based position within the request
	SKU               string    `json:"sku,omitempty"`
	Valid             bool      `json:"valid"`
	Messages          []Message `json:"messages,omitempty"`
	InvalidAttributes []string  `json:"invalid_attributes,omitempty"`
}

// RunSummary describes a validation run.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	EntityType     string    `json:"entity_type"`
	StartedAt      time.Time `json:"started_at"`
	LastActivity   time.Time `json:"last_activity"`
	Rows           int       `json:"rows"`
	InvalidRows    int       `json:"invalid_rows"`
	OptionsCreated int       `json:"options_created"`
	OptionFailures int       `json:"option_failures"`
	DynamicOptions int       `json:"dynamic_options"`
}

// Catalog supplies schemas and option persistence for runs.
// Satisfied by *catalog.PgStore.
type Catalog interface {
	LoadSchema(ctx context.Context, entityType string) (catalog.Schema, error)
	OptionCreator(entityType string) catalog.OptionCreator
}

// Recorder receives validation telemetry. Satisfied by *metrics.Metrics.
type Recorder interface {
	RowValidated(valid bool)
	MessageEmitted(kind string)
	OptionAttempt(attribute string, created bool)
	RunsActive(n int)
}

type nopRecorder struct{}

func (nopRecorder) RowValidated(bool)          {}
func (nopRecorder) MessageEmitted(string)      {}
func (nopRecorder) OptionAttempt(string, bool) {}
func (nopRecorder) RunsActive(int)             {}
