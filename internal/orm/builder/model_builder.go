package builder

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

// InternalModelBuilder applies source-aware configuration to a model
type InternalModelBuilder struct {
	model       *metadata.Model
	conventions *ConventionDispatcher
}

// NewInternalModelBuilder creates a builder over model. A nil model starts empty and
// nil conventions run no conventions at all.
func NewInternalModelBuilder(model *metadata.Model, conventions *ConventionSet, logger *zap.Logger) *InternalModelBuilder {
	if model == nil {
		model = metadata.NewModel()
	}
	return &InternalModelBuilder{
		model:       model,
		conventions: NewConventionDispatcher(conventions, logger),
	}
}

// Metadata returns the model being built
func (b *InternalModelBuilder) Metadata() *metadata.Model {
	return b.model
}

// Dispatcher returns the convention dispatcher
func (b *InternalModelBuilder) Dispatcher() *ConventionDispatcher {
	return b.conventions
}

// Annotation sets a model annotation
func (b *InternalModelBuilder) Annotation(name string, value interface{}, source metadata.ConfigurationSource) bool {
	return b.model.SetAnnotationFrom(name, value, source)
}

// Entity gets or adds an entity type by name. New entity types are shadow entity types.
func (b *InternalModelBuilder) Entity(name string, source metadata.ConfigurationSource) (*InternalEntityTypeBuilder, error) {
	if !b.unignore(name, source) {
		return nil, nil
	}
	if et := b.model.FindEntityType(name); et != nil {
		et.UpdateSource(source)
		return b.entityTypeBuilder(et), nil
	}

	et, err := b.model.AddEntityType(name, nil, source)
	if err != nil {
		return nil, err
	}
	return b.conventions.OnEntityTypeAdded(b.entityTypeBuilder(et))
}

// EntityForType gets or adds the entity type backed by the struct type t
func (b *InternalModelBuilder) EntityForType(t reflect.Type, source metadata.ConfigurationSource) (*InternalEntityTypeBuilder, error) {
	t = indirect(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v is not a struct", metadata.ErrInvalidType, t)
	}
	if et := b.model.FindEntityTypeByType(t); et != nil {
		et.UpdateSource(source)
		return b.entityTypeBuilder(et), nil
	}

	name := t.Name()
	if !b.unignore(name, source) {
		return nil, nil
	}
	if existing := b.model.FindEntityType(name); existing != nil {
		return nil, fmt.Errorf("%w: %s is already mapped to %v", metadata.ErrDuplicateEntityType, name, existing.GoType())
	}

	et, err := b.model.AddEntityType(name, t, source)
	if err != nil {
		return nil, err
	}
	return b.conventions.OnEntityTypeAdded(b.entityTypeBuilder(et))
}

// Ignore removes the named entity type, and every relationship that touches it,
// and records the ignore
func (b *InternalModelBuilder) Ignore(name string, source metadata.ConfigurationSource) (bool, error) {
	if et := b.model.FindEntityType(name); et != nil {
		if !source.Overrides(et.Source()) {
			return false, nil
		}
		if err := b.RemoveEntityType(et); err != nil {
			return false, err
		}
	}
	b.model.Ignore(name, source)
	return true, nil
}

// RemoveEntityType removes an entity type along with its foreign keys and the
// foreign keys of its dependents
func (b *InternalModelBuilder) RemoveEntityType(et *metadata.EntityType) error {
	eb := b.entityTypeBuilder(et)
	for _, fk := range et.ForeignKeys() {
		if err := eb.removeForeignKey(fk); err != nil {
			return err
		}
	}
	for _, fk := range b.model.FindReferencingForeignKeys(et) {
		if err := b.entityTypeBuilder(fk.DeclaringEntityType()).removeForeignKey(fk); err != nil {
			return err
		}
	}
	_, err := b.model.RemoveEntityType(et.Name())
	return err
}

// Finalize runs the ModelBuilt conventions and validates the model
func (b *InternalModelBuilder) Finalize() (*metadata.Model, error) {
	if err := b.conventions.OnModelBuilt(b); err != nil {
		return nil, fmt.Errorf("failed to finalize model: %w", err)
	}
	if err := metadata.Validate(b.model); err != nil {
		return nil, err
	}
	return b.model, nil
}

func (b *InternalModelBuilder) unignore(name string, source metadata.ConfigurationSource) bool {
	if ignored, ok := b.model.IsIgnored(name); ok {
		if !source.Overrides(ignored) {
			return false
		}
		b.model.Unignore(name)
	}
	return true
}

// EntityTypeBuilder wraps an existing entity type
func (b *InternalModelBuilder) EntityTypeBuilder(et *metadata.EntityType) *InternalEntityTypeBuilder {
	return b.entityTypeBuilder(et)
}

func (b *InternalModelBuilder) entityTypeBuilder(et *metadata.EntityType) *InternalEntityTypeBuilder {
	return &InternalEntityTypeBuilder{metadata: et, modelBuilder: b}
}

// RelationshipBuilder wraps an existing foreign key
func (b *InternalModelBuilder) RelationshipBuilder(fk *metadata.ForeignKey) *InternalRelationshipBuilder {
	return &InternalRelationshipBuilder{metadata: fk, modelBuilder: b}
}
