// Package catalog describes product attributes and their options as the
// import validator sees them, and loads that description from the catalog
// database.
//
// A Schema is loaded once per validation run. It is read-only during the run
// except for each attribute's OptionSet, which only ever grows as options are
// created on the fly.
package catalog

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// AttributeType is the declared input type of an attribute.
type AttributeType string

const (
	TypeVarchar     AttributeType = "varchar"
	TypeText        AttributeType = "text"
	TypeDecimal     AttributeType = "decimal"
	TypeInt         AttributeType = "int"
	TypeBoolean     AttributeType = "boolean"
	TypeSelect      AttributeType = "select"
	TypeMultiselect AttributeType = "multiselect"
	TypeDatetime    AttributeType = "datetime"
)

// IsOptionType reports whether values of this type are option labels that
// may be created on the fly.
func (t AttributeType) IsOptionType() bool {
	return t == TypeSelect || t == TypeMultiselect
}

// NormalizeLabel returns the case-folded form of an option label.
// All option lookups are keyed by this form.
func NormalizeLabel(label string) string {
	return cases.Fold().String(label)
}

// OptionSet holds the known options of an attribute keyed by normalized label.
type OptionSet map[string]bool

// NewOptionSet builds a set from raw labels.
func NewOptionSet(labels ...string) OptionSet {
	s := make(OptionSet, len(labels))
	for _, l := range labels {
		s[NormalizeLabel(l)] = true
	}
	return s
}

// Has reports whether the normalized label is known.
func (s OptionSet) Has(normalized string) bool {
	_, ok := s[normalized]
	return ok
}

// Add records a normalized label as known.
func (s OptionSet) Add(normalized string) {
	s[normalized] = true
}

// Labels returns the normalized labels in sorted order.
func (s OptionSet) Labels() []string {
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of the set.
func (s OptionSet) Clone() OptionSet {
	out := make(OptionSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// AttributeParams is the validation-relevant description of one attribute.
type AttributeParams struct {
	Code       string        `json:"code"`
	Type       AttributeType `json:"type"`
	IsRequired bool          `json:"is_required"`
	ApplyTo    []string      `json:"apply_to,omitempty"` // empty means every product type
	Options    OptionSet     `json:"-"`
	IsUnique   bool          `json:"is_unique"`
}

// AppliesTo reports whether the attribute is evaluated for the product type.
func (p AttributeParams) AppliesTo(productType string) bool {
	if len(p.ApplyTo) == 0 {
		return true
	}
	for _, t := range p.ApplyTo {
		if t == productType {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no mutable state with p.
func (p AttributeParams) Clone() AttributeParams {
	c := p
	if p.ApplyTo != nil {
		c.ApplyTo = append([]string(nil), p.ApplyTo...)
	}
	if p.Options != nil {
		c.Options = p.Options.Clone()
	}
	return c
}

// Schema maps attribute code to its parameters.
type Schema map[string]AttributeParams

// Codes returns the attribute codes in sorted order.
func (s Schema) Codes() []string {
	codes := make([]string, 0, len(s))
	for code := range s {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Clone deep-copies the schema so one run cannot leak options into another.
func (s Schema) Clone() Schema {
	out := make(Schema, len(s))
	for code, p := range s {
		out[code] = p.Clone()
	}
	return out
}

// ForProductType returns the attributes applicable to productType, sorted by code.
func (s Schema) ForProductType(productType string) []AttributeParams {
	var out []AttributeParams
	for _, code := range s.Codes() {
		if p := s[code]; p.AppliesTo(productType) {
			out = append(out, p)
		}
	}
	return out
}

// Option is a new option value submitted to the catalog.
type Option struct {
	Label     string
	SortOrder int
	IsDefault bool
}

// OptionCreator persists a new option label for an attribute.
// Implementations are not expected to be idempotent.
type OptionCreator interface {
	AddOption(ctx context.Context, attrCode string, opt Option) error
}

// OptionCreatorFunc adapts a function to OptionCreator.
type OptionCreatorFunc func(ctx context.Context, attrCode string, opt Option) error

// AddOption implements OptionCreator.
func (f OptionCreatorFunc) AddOption(ctx context.Context, attrCode string, opt Option) error {
	return f(ctx, attrCode, opt)
}

// OptionCreated is published after an option was persisted successfully.
type OptionCreated struct {
	AttributeCode string
	Label         string
	ProductType   string // product type of the row that triggered the creation
}

// parseApplyTo splits the comma-separated apply_to column.
func parseApplyTo(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
