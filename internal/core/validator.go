package core

// validator.go implements attribute-level validation of import rows.
//
// For every (attribute, row) pair the validator checks, in order:
//  1. Applicability: attributes restricted to other product types are skipped
//  2. Requiredness via the RequiredCheck
//  3. Blank values, which are valid when not required
//  4. The explicit empty-value sentinel on non-required attributes
//  5. The type handler registered for the attribute type
//  6. Uniqueness across rows for unique attributes
//
// Failures are recorded as Messages against the current row; nothing is
// returned as an error and no failure stops the run.

import (
	"context"
	"strings"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
)

// RunState is the mutable state carried between rows of one run.
type RunState struct {
	Options *DynamicOptionCache
	Unique  *UniquenessTracker
}

// NewRunState creates empty run state.
func NewRunState() *RunState {
	return &RunState{
		Options: NewDynamicOptionCache(),
		Unique:  NewUniquenessTracker(),
	}
}

// RowValidator validates rows of one run. Not safe for concurrent use.
type RowValidator struct {
	state      *RunState
	registrar  *OptionRegistrar
	required   RequiredCheck
	handlers   map[catalog.AttributeType]TypeHandler
	emptyValue string
	separator  string
	sortOrder  int
	templates  Templates
	recorder   Recorder

	messages []Message
	invalid  []string
}

// ValidatorOption configures a RowValidator.
type ValidatorOption func(*RowValidator)

// WithRequiredCheck replaces the requiredness rule.
func WithRequiredCheck(c RequiredCheck) ValidatorOption {
	return func(v *RowValidator) { v.required = c }
}

// WithStringCheck replaces the varchar/text rule.
func WithStringCheck(c StringCheck) ValidatorOption {
	return func(v *RowValidator) {
		h := StringHandler{Check: c}
		v.handlers[catalog.TypeVarchar] = h
		v.handlers[catalog.TypeText] = h
	}
}

// WithNumericCheck replaces the decimal/int rule.
func WithNumericCheck(c NumericCheck) ValidatorOption {
	return func(v *RowValidator) {
		h := NumericHandler{Check: c}
		v.handlers[catalog.TypeDecimal] = h
		v.handlers[catalog.TypeInt] = h
	}
}

// WithTypeHandler registers h for t, replacing any existing handler.
func WithTypeHandler(t catalog.AttributeType, h TypeHandler) ValidatorOption {
	return func(v *RowValidator) { v.handlers[t] = h }
}

// WithEmptyValue sets the sentinel that explicitly marks a value as empty.
func WithEmptyValue(s string) ValidatorOption {
	return func(v *RowValidator) { v.emptyValue = s }
}

// WithSeparator sets the multi-value separator used by the option resolver.
func WithSeparator(s string) ValidatorOption {
	return func(v *RowValidator) { v.separator = s }
}

// WithOptionSortOrder sets the sort order given to created options.
func WithOptionSortOrder(n int) ValidatorOption {
	return func(v *RowValidator) { v.sortOrder = n }
}

// WithTemplates sets the message templates used by Render helpers.
func WithTemplates(t Templates) ValidatorOption {
	return func(v *RowValidator) { v.templates = t }
}

// WithRecorder sets the telemetry sink.
func WithRecorder(r Recorder) ValidatorOption {
	return func(v *RowValidator) { v.recorder = r }
}

// NewRowValidator creates a validator for one run.
func NewRowValidator(state *RunState, registrar *OptionRegistrar, opts ...ValidatorOption) *RowValidator {
	v := &RowValidator{
		state:      state,
		registrar:  registrar,
		required:   DefaultRequiredCheck{},
		handlers:   make(map[catalog.AttributeType]TypeHandler),
		emptyValue: DefaultEmptyValue,
		separator:  DefaultMultiValueSeparator,
		sortOrder:  DefaultOptionSortOrder,
		templates:  DefaultTemplates,
		recorder:   nopRecorder{},
	}

	strs := StringHandler{Check: DefaultStringCheck{}}
	nums := NumericHandler{Check: DefaultNumericCheck{}}
	v.handlers[catalog.TypeVarchar] = strs
	v.handlers[catalog.TypeText] = strs
	v.handlers[catalog.TypeDecimal] = nums
	v.handlers[catalog.TypeInt] = nums
	v.handlers[catalog.TypeBoolean] = BooleanHandler{}
	v.handlers[catalog.TypeDatetime] = DatetimeHandler{}

	for _, opt := range opts {
		opt(v)
	}

	// Built after options so separator and sort order apply.
	resolver := &OptionResolver{
		Registrar: registrar,
		Cache:     state.Options,
		Separator: v.separator,
		SortOrder: v.sortOrder,
	}
	if _, ok := v.handlers[catalog.TypeSelect]; !ok {
		v.handlers[catalog.TypeSelect] = resolver
	}
	if _, ok := v.handlers[catalog.TypeMultiselect]; !ok {
		v.handlers[catalog.TypeMultiselect] = resolver
	}

	return v
}

// ValidateAttribute validates one attribute of row and reports whether it is valid.
// Messages are appended to the current row's message list.
func (v *RowValidator) ValidateAttribute(ctx context.Context, attrCode string, params catalog.AttributeParams, row RowData) bool {

	if productType, ok := row[KeyProductType]; ok && !params.AppliesTo(productType) {
		return true
	}

	if !v.required.RequiredSatisfied(attrCode, params, row) {
		v.addMessage(KindValueRequired, attrCode)
		v.setInvalidAttribute(attrCode)
		return false
	}

	value, ok := row[attrCode]
	if !ok || strings.TrimSpace(value) == "" {
		return true
	}

	if value == v.emptyValue && !params.IsRequired {
		return true
	}

	var valid bool
	if h, ok := v.handlers[params.Type]; ok {
		valid = h.Handle(ctx, AttributeCheck{
			Code:   attrCode,
			Params: params,
			Value:  value,
			Row:    row,
		}, v.addMessage)
	} else {
		v.addMessage(KindInvalidType, attrCode)
	}

	if valid && params.IsUnique && !v.state.Unique.Claim(attrCode, value, row[KeySKU]) {
		v.addMessage(KindDuplicateUniqueAttribute, attrCode)
		valid = false
	}

	if !valid {
		v.setInvalidAttribute(attrCode)
	}
	return valid
}

// ValidateRow validates every attribute of schema against row, in code order.
// The row's messages and invalid attributes are reset first.
func (v *RowValidator) ValidateRow(ctx context.Context, row RowData, schema catalog.Schema) RowResult {
	v.messages = nil
	v.invalid = nil

	valid := true
	for _, code := range schema.Codes() {
		if !v.ValidateAttribute(ctx, code, schema[code], row) {
			valid = false
		}
	}
	v.recorder.RowValidated(valid)

	return RowResult{
		SKU:               row[KeySKU],
		Valid:             valid,
		Messages:          v.Messages(),
		InvalidAttributes: v.InvalidAttributes(),
	}
}

// Messages returns the messages recorded for the current row.
func (v *RowValidator) Messages() []Message {
	return append([]Message(nil), v.messages...)
}

// InvalidAttributes returns the attribute codes marked invalid for the current row.
func (v *RowValidator) InvalidAttributes() []string {
	return append([]string(nil), v.invalid...)
}

// IsAttributeInvalid reports whether attrCode was marked invalid for the current row.
func (v *RowValidator) IsAttributeInvalid(attrCode string) bool {
	for _, c := range v.invalid {
		if c == attrCode {
			return true
		}
	}
	return false
}

// Render formats msg with the validator's templates.
func (v *RowValidator) Render(msg Message) string {
	return msg.Render(v.templates)
}

// State returns the run state the validator mutates.
func (v *RowValidator) State() *RunState {
	return v.state
}

func (v *RowValidator) addMessage(kind ErrorKind, attribute string) {
	v.messages = append(v.messages, Message{Kind: kind, Attribute: attribute})
	v.recorder.MessageEmitted(string(kind))
}

func (v *RowValidator) setInvalidAttribute(attrCode string) {
	if !v.IsAttributeInvalid(attrCode) {
		v.invalid = append(v.invalid, attrCode)
	}
}
