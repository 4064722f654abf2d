package builder

import (
	"fmt"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

// InternalPropertyBuilder applies source-aware configuration to a property
type InternalPropertyBuilder struct {
	metadata     *metadata.Property
	modelBuilder *InternalModelBuilder
}

// Metadata returns the property being configured
func (b *InternalPropertyBuilder) Metadata() *metadata.Property {
	return b.metadata
}

// IsRequired configures nullability. Foreign keys that use the property are
// re-evaluated by the conventions.
func (b *InternalPropertyBuilder) IsRequired(required bool, source metadata.ConfigurationSource) (bool, error) {
	applied, err := b.metadata.SetIsNullable(!required, source)
	if err != nil || !applied {
		return applied, err
	}
	for _, fk := range b.metadata.ContainingForeignKeys() {
		if _, err := b.modelBuilder.conventions.OnForeignKeyChanged(b.modelBuilder.RelationshipBuilder(fk), fk.Properties()); err != nil {
			return false, err
		}
	}
	return true, nil
}

// MaxLength configures the maximum length
func (b *InternalPropertyBuilder) MaxLength(length int, source metadata.ConfigurationSource) (bool, error) {
	if length <= 0 {
		return false, fmt.Errorf("max length of %s must be positive, got %d", b.metadata, length)
	}
	return b.metadata.SetMaxLength(length, source), nil
}

// ConcurrencyToken configures the concurrency token flag
func (b *InternalPropertyBuilder) ConcurrencyToken(token bool, source metadata.ConfigurationSource) bool {
	return b.metadata.SetIsConcurrencyToken(token, source)
}

// GenerateValueOnAdd configures value generation on add
func (b *InternalPropertyBuilder) GenerateValueOnAdd(generate bool, source metadata.ConfigurationSource) bool {
	return b.metadata.SetGenerateValueOnAdd(generate, source)
}

// StoreGeneratedPattern configures how the store generates values
func (b *InternalPropertyBuilder) StoreGeneratedPattern(pattern metadata.StoreGeneratedPattern, source metadata.ConfigurationSource) bool {
	return b.metadata.SetStoreGeneratedPattern(pattern, source)
}

// Annotation sets a property annotation
func (b *InternalPropertyBuilder) Annotation(name string, value interface{}, source metadata.ConfigurationSource) bool {
	return b.metadata.SetAnnotationFrom(name, value, source)
}

// ColumnName overrides the column the property maps to
func (b *InternalPropertyBuilder) ColumnName(name string, source metadata.ConfigurationSource) bool {
	return b.metadata.SetAnnotationFrom(metadata.ColumnNameAnnotation, name, source)
}

// InternalKeyBuilder applies source-aware configuration to a key
type InternalKeyBuilder struct {
	metadata     *metadata.Key
	modelBuilder *InternalModelBuilder
}

// Metadata returns the key being configured
func (b *InternalKeyBuilder) Metadata() *metadata.Key {
	return b.metadata
}

// Annotation sets a key annotation
func (b *InternalKeyBuilder) Annotation(name string, value interface{}, source metadata.ConfigurationSource) bool {
	return b.metadata.SetAnnotationFrom(name, value, source)
}

// InternalIndexBuilder applies source-aware configuration to an index
type InternalIndexBuilder struct {
	metadata     *metadata.Index
	modelBuilder *InternalModelBuilder
}

// Metadata returns the index being configured
func (b *InternalIndexBuilder) Metadata() *metadata.Index {
	return b.metadata
}

// IsUnique configures index uniqueness
func (b *InternalIndexBuilder) IsUnique(unique bool, source metadata.ConfigurationSource) bool {
	return b.metadata.SetIsUnique(unique, source)
}

// Annotation sets an index annotation
func (b *InternalIndexBuilder) Annotation(name string, value interface{}, source metadata.ConfigurationSource) bool {
	return b.metadata.SetAnnotationFrom(name, value, source)
}
