package model

import (
	"fmt"

	"github.com/conduit-lang/entityframe/internal/orm/builder"
	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

// PropertyBuilder configures one property
type PropertyBuilder struct {
	mb      *ModelBuilder
	builder *builder.InternalPropertyBuilder
}

// Metadata returns the property, or nil when configuration failed
func (p *PropertyBuilder) Metadata() *metadata.Property {
	if p.builder == nil {
		return nil
	}
	return p.builder.Metadata()
}

// Annotation sets a property annotation
func (p *PropertyBuilder) Annotation(name string, value interface{}) *PropertyBuilder {
	if p.builder != nil {
		p.builder.Annotation(name, value, metadata.Explicit)
	}
	return p
}

// Required sets whether the property rejects null
func (p *PropertyBuilder) Required(required bool) *PropertyBuilder {
	if p.builder == nil {
		return p
	}
	if _, err := p.builder.IsRequired(required, metadata.Explicit); err != nil {
		p.mb.record(fmt.Errorf("failed to configure requiredness of %s: %w", p.builder.Metadata(), err))
	}
	return p
}

// MaxLength sets the maximum length
func (p *PropertyBuilder) MaxLength(length int) *PropertyBuilder {
	if p.builder == nil {
		return p
	}
	if _, err := p.builder.MaxLength(length, metadata.Explicit); err != nil {
		p.mb.record(fmt.Errorf("failed to configure max length: %w", err))
	}
	return p
}

// ConcurrencyToken marks the property as an optimistic concurrency token
func (p *PropertyBuilder) ConcurrencyToken(token bool) *PropertyBuilder {
	if p.builder != nil {
		p.builder.ConcurrencyToken(token, metadata.Explicit)
	}
	return p
}

// GenerateValueOnAdd sets whether a value is generated when an entity is added
func (p *PropertyBuilder) GenerateValueOnAdd(generate bool) *PropertyBuilder {
	if p.builder != nil {
		p.builder.GenerateValueOnAdd(generate, metadata.Explicit)
	}
	return p
}

// StoreGeneratedPattern sets how the store generates values
func (p *PropertyBuilder) StoreGeneratedPattern(pattern metadata.StoreGeneratedPattern) *PropertyBuilder {
	if p.builder != nil {
		p.builder.StoreGeneratedPattern(pattern, metadata.Explicit)
	}
	return p
}

// Column maps the property to a column name
func (p *PropertyBuilder) Column(name string) *PropertyBuilder {
	if p.builder != nil {
		p.builder.ColumnName(name, metadata.Explicit)
	}
	return p
}

// KeyBuilder configures a key
type KeyBuilder struct {
	builder *builder.InternalKeyBuilder
}

// Metadata returns the key, or nil when configuration failed
func (k *KeyBuilder) Metadata() *metadata.Key {
	if k.builder == nil {
		return nil
	}
	return k.builder.Metadata()
}

// Annotation sets a key annotation
func (k *KeyBuilder) Annotation(name string, value interface{}) *KeyBuilder {
	if k.builder != nil {
		k.builder.Annotation(name, value, metadata.Explicit)
	}
	return k
}

// IndexBuilder configures an index
type IndexBuilder struct {
	builder *builder.InternalIndexBuilder
}

// Metadata returns the index, or nil when configuration failed
func (i *IndexBuilder) Metadata() *metadata.Index {
	if i.builder == nil {
		return nil
	}
	return i.builder.Metadata()
}

// Unique sets whether the index enforces uniqueness
func (i *IndexBuilder) Unique(unique bool) *IndexBuilder {
	if i.builder != nil {
		i.builder.IsUnique(unique, metadata.Explicit)
	}
	return i
}

// Annotation sets an index annotation
func (i *IndexBuilder) Annotation(name string, value interface{}) *IndexBuilder {
	if i.builder != nil {
		i.builder.Annotation(name, value, metadata.Explicit)
	}
	return i
}
