package builder

import (
	"fmt"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

// DataAnnotationConvention applies `orm` struct tags at DataAnnotation source
type DataAnnotationConvention struct {
	inspector *TypeInspector
}

// NewDataAnnotationConvention creates the convention
func NewDataAnnotationConvention(inspector *TypeInspector) *DataAnnotationConvention {
	return &DataAnnotationConvention{inspector: inspector}
}

// EntityTypeAdded records `orm:"-"` ignores and builds the primary key from `key` tags
func (c *DataAnnotationConvention) EntityTypeAdded(b *InternalEntityTypeBuilder) (*InternalEntityTypeBuilder, error) {
	et := b.Metadata()
	if et.IsShadow() {
		return b, nil
	}

	var keyNames []string
	for _, f := range c.inspector.Fields(et.GoType()) {
		if f.Tag.Ignore {
			if _, err := b.Ignore(f.Name, metadata.DataAnnotation); err != nil {
				return nil, err
			}
			continue
		}
		if f.Tag.Key {
			keyNames = append(keyNames, f.Name)
		}
	}

	if len(keyNames) > 0 {
		if _, err := b.PrimaryKey(keyNames, metadata.DataAnnotation); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// PropertyAdded applies property facets from the field tag
func (c *DataAnnotationConvention) PropertyAdded(b *InternalPropertyBuilder) (*InternalPropertyBuilder, error) {
	p := b.Metadata()
	if p.IsShadow() {
		return b, nil
	}
	f, ok := c.inspector.FieldByName(p.DeclaringEntityType().GoType(), p.Name())
	if !ok {
		return b, nil
	}

	tag := f.Tag
	if tag.Err != nil {
		return nil, fmt.Errorf("tag on %s.%s: %w", p.DeclaringEntityType().Name(), p.Name(), tag.Err)
	}
	if tag.Required {
		if _, err := b.IsRequired(true, metadata.DataAnnotation); err != nil {
			return nil, err
		}
	}
	if tag.MaxLength > 0 {
		if _, err := b.MaxLength(tag.MaxLength, metadata.DataAnnotation); err != nil {
			return nil, err
		}
	}
	if tag.Concurrency {
		b.ConcurrencyToken(true, metadata.DataAnnotation)
	}
	if tag.Column != "" {
		b.ColumnName(tag.Column, metadata.DataAnnotation)
	}
	if tag.Index {
		eb := b.modelBuilder.entityTypeBuilder(p.DeclaringEntityType())
		ib, err := eb.HasIndex([]string{p.Name()}, metadata.DataAnnotation)
		if err != nil {
			return nil, err
		}
		if ib != nil {
			ib.IsUnique(tag.Unique, metadata.DataAnnotation)
		}
	}
	return b, nil
}
