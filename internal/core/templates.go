package core

import (
	"fmt"
	"strings"
)

// Templates resolves the human-readable template of an error kind.
// Templates may contain one %s verb, filled with the attribute code.
type Templates interface {
	Template(kind ErrorKind) string
}

// TemplateMap is a Templates backed by a map. Unknown kinds fall back to the kind itself.
type TemplateMap map[ErrorKind]string

// Template implements Templates.
func (m TemplateMap) Template(kind ErrorKind) string {
	if t, ok := m[kind]; ok {
		return t
	}
	return string(kind)
}

// DefaultTemplates are the stock English messages.
var DefaultTemplates = TemplateMap{
	KindValueRequired:              `Please make sure attribute "%s" is not empty`,
	KindInvalidAttributeOption:     `Value for "%s" attribute contains incorrect value`,
	KindInvalidAttributeType:       `Value for "%s" attribute does not match its type`,
	KindInvalidType:                `Column type of "%s" is invalid`,
	KindDuplicateUniqueAttribute:   `Duplicated unique attribute "%s"`,
	KindDuplicateMultiselectValues: `Value for multiselect attribute "%s" contains duplicated values`,
	KindExceededMaxLength:          `Attribute "%s" exceeded max length`,
}

// Render formats the message with t, or DefaultTemplates when t is nil.
func (m Message) Render(t Templates) string {
	if t == nil {
		t = DefaultTemplates
	}
	tmpl := t.Template(m.Kind)
	if !strings.Contains(tmpl, "%s") {
		return tmpl
	}
	return fmt.Sprintf(tmpl, m.Attribute)
}
