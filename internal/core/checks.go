package core

// checks.go holds the format checks the validator delegates to.
//
// Each check is an interface so the surrounding import can swap in its own
// rules; the defaults below mirror the catalog's storage limits:
//   - required values must be non-blank on default-scope rows
//   - text values must be shorter than a TEXT column, url_key must fit a VARCHAR(255)
//   - decimals must be plain numbers, ints must be canonical integers
//   - datetimes accept ISO, US and EU layouts, with or without a time part

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
)

// Column limits of the catalog's value tables.
const (
	MaxTextLength    = 65536
	MaxVarcharLength = 255
)

// RequiredCheck decides whether a required attribute is satisfied by a row.
type RequiredCheck interface {
	RequiredSatisfied(attrCode string, params catalog.AttributeParams, row RowData) bool
}

// StringCheck validates varchar and text values.
type StringCheck interface {
	ValidString(attrCode string, t catalog.AttributeType, value string) bool
}

// NumericCheck validates decimal and int values.
type NumericCheck interface {
	ValidNumber(attrCode string, t catalog.AttributeType, value string) bool
}

// DefaultRequiredCheck requires a non-blank value for required attributes,
// except on store-view rows, which inherit missing values from the default scope.
type DefaultRequiredCheck struct{}

// RequiredSatisfied implements RequiredCheck.
func (DefaultRequiredCheck) RequiredSatisfied(attrCode string, params catalog.AttributeParams, row RowData) bool {
	if !params.IsRequired {
		return true
	}
	if row[KeyStoreViewCode] != "" {
		return true
	}
	return strings.TrimSpace(row[attrCode]) != ""
}

// DefaultStringCheck enforces the catalog column lengths.
type DefaultStringCheck struct{}

// urlKeyAttribute is the only varchar attribute whose length is checked.
const urlKeyAttribute = "url_key"

// ValidString implements StringCheck.
func (DefaultStringCheck) ValidString(attrCode string, t catalog.AttributeType, value string) bool {
	value = strings.ToValidUTF8(value, "")
	switch {
	case t == catalog.TypeText:
		return utf8.RuneCountInString(value) < MaxTextLength
	case attrCode == urlKeyAttribute:
		return utf8.RuneCountInString(value) <= MaxVarcharLength
	default:
		return true
	}
}

// decimalRegex matches plain decimals with optional exponent.
var decimalRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// DefaultNumericCheck accepts plain decimals for decimal attributes and
// canonical integers ("12", not "012" or "12.0") for int attributes.
type DefaultNumericCheck struct{}

// ValidNumber implements NumericCheck.
func (DefaultNumericCheck) ValidNumber(attrCode string, t catalog.AttributeType, value string) bool {
	value = strings.TrimSpace(value)
	if t == catalog.TypeInt {
		n, err := strconv.ParseInt(value, 10, 64)
		return err == nil && strconv.FormatInt(n, 10) == value
	}
	return decimalRegex.MatchString(value)
}

// dateTimeLayouts are tried in order by ParseDateTime. Slashed dates are
// month first, dotted dates are day first. Single-digit day and month
// elements also accept a leading zero.
var dateTimeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"1/2/06",
	"2.1.2006 15:04",
	"2.1.2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"02-Jan-2006",
	time.RFC1123,
	time.RFC1123Z,
}

// ParseDateTime parses a calendar date or date-time in any supported layout.
func ParseDateTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
