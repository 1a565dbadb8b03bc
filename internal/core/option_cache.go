package core

import (
	"sort"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
)

// DynamicOptionCache records the options created during one run,
// keyed by attribute code and normalized label.
//
// Entries are never removed. A label present here was created by this run and
// must not be submitted again. Not safe for concurrent use.
type DynamicOptionCache struct {
	added map[string]map[string]bool
	count int
}

// NewDynamicOptionCache creates an empty cache.
func NewDynamicOptionCache() *DynamicOptionCache {
	return &DynamicOptionCache{added: make(map[string]map[string]bool)}
}

// Has reports whether the normalized label was created for attrCode in this run.
func (c *DynamicOptionCache) Has(attrCode, normalized string) bool {
	return c.added[attrCode][normalized]
}

// Add records a created label.
func (c *DynamicOptionCache) Add(attrCode, normalized string) {
	labels, ok := c.added[attrCode]
	if !ok {
		labels = make(map[string]bool)
		c.added[attrCode] = labels
	}
	if !labels[normalized] {
		labels[normalized] = true
		c.count++
	}
}

// MergeInto adds every label created for attrCode to known.
func (c *DynamicOptionCache) MergeInto(attrCode string, known catalog.OptionSet) {
	for label, created := range c.added[attrCode] {
		known[label] = created
	}
}

// Labels returns the labels created for attrCode, sorted.
func (c *DynamicOptionCache) Labels(attrCode string) []string {
	labels := make([]string, 0, len(c.added[attrCode]))
	for l := range c.added[attrCode] {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Len returns the number of labels created in this run across all attributes.
func (c *DynamicOptionCache) Len() int {
	return c.count
}
