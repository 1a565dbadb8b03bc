package core

import (
	"context"
	"strings"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
)

// AttributeCheck is the input of a TypeHandler: one non-blank value of one attribute.
type AttributeCheck struct {
	Code   string
	Params catalog.AttributeParams
	Value  string
	Row    RowData
}

// Report records a validation message against the current row.
type Report func(kind ErrorKind, attribute string)

// TypeHandler validates values of one attribute type.
type TypeHandler interface {
	Handle(ctx context.Context, in AttributeCheck, report Report) bool
}

// TypeHandlerFunc adapts a function to TypeHandler.
type TypeHandlerFunc func(ctx context.Context, in AttributeCheck, report Report) bool

// Handle implements TypeHandler.
func (f TypeHandlerFunc) Handle(ctx context.Context, in AttributeCheck, report Report) bool {
	return f(ctx, in, report)
}

// StringHandler delegates varchar and text values to a StringCheck.
type StringHandler struct {
	Check StringCheck
}

// Handle implements TypeHandler.
func (h StringHandler) Handle(_ context.Context, in AttributeCheck, report Report) bool {
	if h.Check.ValidString(in.Code, in.Params.Type, in.Value) {
		return true
	}
	report(KindExceededMaxLength, in.Code)
	return false
}

// NumericHandler delegates decimal and int values to a NumericCheck.
type NumericHandler struct {
	Check NumericCheck
}

// Handle implements TypeHandler.
func (h NumericHandler) Handle(_ context.Context, in AttributeCheck, report Report) bool {
	if h.Check.ValidNumber(in.Code, in.Params.Type, in.Value) {
		return true
	}
	report(KindInvalidAttributeType, in.Code)
	return false
}

// BooleanHandler accepts only the attribute's declared option labels.
type BooleanHandler struct{}

// Handle implements TypeHandler.
func (BooleanHandler) Handle(_ context.Context, in AttributeCheck, report Report) bool {
	if in.Params.Options.Has(catalog.NormalizeLabel(in.Value)) {
		return true
	}
	report(KindInvalidAttributeOption, in.Code)
	return false
}

// DatetimeHandler accepts values ParseDateTime understands.
type DatetimeHandler struct{}

// Handle implements TypeHandler.
func (DatetimeHandler) Handle(_ context.Context, in AttributeCheck, report Report) bool {
	if _, ok := ParseDateTime(in.Value); ok {
		return true
	}
	report(KindInvalidAttributeType, in.Code)
	return false
}

// OptionResolver validates select and multiselect values, creating options
// that are neither known to the schema nor already created in this run.
//
// Creation happens before the membership check, so a label first seen on a
// row validates on that same row.
type OptionResolver struct {
	Registrar *OptionRegistrar
	Cache     *DynamicOptionCache
	Separator string
	SortOrder int
}

// Handle implements TypeHandler. Only multiselect values are split on the
// separator; a select value is always a single candidate.
func (r *OptionResolver) Handle(ctx context.Context, in AttributeCheck, report Report) bool {
	values := []string{in.Value}
	if in.Params.Type == catalog.TypeMultiselect {
		values = strings.Split(in.Value, r.separator())
	}

	known := in.Params.Options
	if known == nil {
		known = make(catalog.OptionSet)
	}

	for _, v := range values {
		if v == "" {
			continue
		}
		label := catalog.NormalizeLabel(v)
		if known.Has(label) || r.Cache.Has(in.Code, label) {
			continue
		}

		ok := r.Registrar.Ensure(ctx, OptionRequest{
			AttributeCode: in.Code,
			Option: catalog.Option{
				Label:     v,
				SortOrder: r.SortOrder,
				IsDefault: true,
			},
			ProductType: in.Row[KeyProductType],
		})
		if !ok {
			continue
		}
		r.Cache.Add(in.Code, label)
		known.Add(label)
	}

	r.Cache.MergeInto(in.Code, known)

	valid := true
	for _, v := range values {
		if !known.Has(catalog.NormalizeLabel(v)) {
			valid = false
			break
		}
	}
	if !valid {
		report(KindInvalidAttributeOption, in.Code)
	}

	if hasDuplicates(values) {
		valid = false
		report(KindDuplicateMultiselectValues, in.Code)
	}

	return valid
}

func (r *OptionResolver) separator() string {
	if r.Separator == "" {
		return DefaultMultiValueSeparator
	}
	return r.Separator
}

// hasDuplicates reports whether values repeats an entry exactly.
func hasDuplicates(values []string) bool {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}
