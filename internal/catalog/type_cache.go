package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// SchemaLoader loads the attribute schema of an entity type.
type SchemaLoader interface {
	LoadSchema(ctx context.Context, entityType string) (Schema, error)
}

// TypeCache holds, per product type, the attributes that apply to it.
// Entries are loaded lazily and dropped when an option of one of their
// attributes is created, so readers never see a stale option list.
//
// Every invalidation bumps gen. A load that started under an older gen may
// hold options from before the change and is returned but not stored.
type TypeCache struct {
	loader     SchemaLoader
	entityType string

	mu    sync.RWMutex
	gen   uint64
	types map[string][]AttributeParams
}

// NewTypeCache creates an empty cache for entityType.
func NewTypeCache(loader SchemaLoader, entityType string) *TypeCache {
	return &TypeCache{
		loader:     loader,
		entityType: entityType,
		types:      make(map[string][]AttributeParams),
	}
}

// Attributes returns the attributes applicable to productType, loading them on a miss.
func (c *TypeCache) Attributes(ctx context.Context, productType string) ([]AttributeParams, error) {
	c.mu.RLock()
	attrs, ok := c.types[productType]
	gen := c.gen
	c.mu.RUnlock()
	if ok {
		return attrs, nil
	}

	schema, err := c.loader.LoadSchema(ctx, c.entityType)
	if err != nil {
		return nil, fmt.Errorf("load %s attributes: %w", productType, err)
	}
	attrs = schema.ForProductType(productType)

	c.mu.Lock()
	if c.gen == gen {
		c.types[productType] = attrs
	}
	c.mu.Unlock()

	return attrs, nil
}

// Invalidate drops the cached attributes of productType.
func (c *TypeCache) Invalidate(productType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	delete(c.types, productType)
}

// InvalidateAttribute drops every cached product type that includes attrCode.
// Returns the product types that were dropped, sorted.
func (c *TypeCache) InvalidateAttribute(attrCode string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++

	var dropped []string
	for productType, attrs := range c.types {
		for _, a := range attrs {
			if a.Code == attrCode {
				delete(c.types, productType)
				dropped = append(dropped, productType)
				break
			}
		}
	}
	sort.Strings(dropped)
	return dropped
}

// OptionCreated drops metadata made stale by a new option.
func (c *TypeCache) OptionCreated(ev OptionCreated) {
	c.InvalidateAttribute(ev.AttributeCode)
	if ev.ProductType != "" {
		c.Invalidate(ev.ProductType)
	}
}

// Types returns the cached product types, sorted.
func (c *TypeCache) Types() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	types := make([]string, 0, len(c.types))
	for t := range c.types {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Clear drops every cached product type.
func (c *TypeCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.types = make(map[string][]AttributeParams)
}
