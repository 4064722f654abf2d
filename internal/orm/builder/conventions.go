package builder

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

// EntityTypeAddedConvention runs after an entity type is added to the model.
// Returning a nil builder stops further conventions for the event.
type EntityTypeAddedConvention interface {
	EntityTypeAdded(b *InternalEntityTypeBuilder) (*InternalEntityTypeBuilder, error)
}

// PropertyAddedConvention runs after a property is added to an entity type
type PropertyAddedConvention interface {
	PropertyAdded(b *InternalPropertyBuilder) (*InternalPropertyBuilder, error)
}

// KeyAddedConvention runs after a key is added to an entity type
type KeyAddedConvention interface {
	KeyAdded(b *InternalKeyBuilder) (*InternalKeyBuilder, error)
}

// PrimaryKeySetConvention runs after the primary key of an entity type changes
type PrimaryKeySetConvention interface {
	PrimaryKeySet(b *InternalEntityTypeBuilder, previous *metadata.Key) error
}

// ForeignKeyAddedConvention runs after a relationship is created
type ForeignKeyAddedConvention interface {
	ForeignKeyAdded(b *InternalRelationshipBuilder) (*InternalRelationshipBuilder, error)
}

// ForeignKeyChangedConvention runs after the properties, principal key, uniqueness or
// requiredness of a foreign key change
type ForeignKeyChangedConvention interface {
	ForeignKeyChanged(b *InternalRelationshipBuilder, previousProperties []*metadata.Property) (*InternalRelationshipBuilder, error)
}

// ForeignKeyRemovedConvention runs after a foreign key is removed from its dependent
type ForeignKeyRemovedConvention interface {
	ForeignKeyRemoved(b *InternalEntityTypeBuilder, fk *metadata.ForeignKey) error
}

// ModelBuiltConvention runs once when the model is finalized
type ModelBuiltConvention interface {
	ModelBuilt(b *InternalModelBuilder) error
}

// ConventionSet holds the ordered conventions for every model event
type ConventionSet struct {
	EntityTypeAdded   []EntityTypeAddedConvention
	PropertyAdded     []PropertyAddedConvention
	KeyAdded          []KeyAddedConvention
	PrimaryKeySet     []PrimaryKeySetConvention
	ForeignKeyAdded   []ForeignKeyAddedConvention
	ForeignKeyChanged []ForeignKeyChangedConvention
	ForeignKeyRemoved []ForeignKeyRemovedConvention
	ModelBuilt        []ModelBuiltConvention
}

// DefaultConventionSet returns the conventions used when none are configured
func DefaultConventionSet(inspector *TypeInspector) *ConventionSet {
	if inspector == nil {
		inspector = NewTypeInspector()
	}

	propertyDiscovery := NewPropertyDiscoveryConvention(inspector)
	dataAnnotation := NewDataAnnotationConvention(inspector)
	keyDiscovery := &KeyDiscoveryConvention{}
	requiredProperty := &RequiredPropertyConvention{}
	keyValueGeneration := &KeyValueGenerationConvention{}
	relationshipDiscovery := NewRelationshipDiscoveryConvention(inspector)
	foreignKeyDiscovery := &ForeignKeyPropertyDiscoveryConvention{}
	foreignKeyIndex := &ForeignKeyIndexConvention{}
	deleteBehavior := &DeleteBehaviorConvention{}

	return &ConventionSet{
		EntityTypeAdded: []EntityTypeAddedConvention{
			propertyDiscovery,
			dataAnnotation,
			keyDiscovery,
			relationshipDiscovery,
		},
		PropertyAdded: []PropertyAddedConvention{
			requiredProperty,
			dataAnnotation,
			keyDiscovery,
			foreignKeyDiscovery,
		},
		PrimaryKeySet: []PrimaryKeySetConvention{
			keyValueGeneration,
			foreignKeyDiscovery,
			relationshipDiscovery,
		},
		ForeignKeyAdded: []ForeignKeyAddedConvention{
			foreignKeyDiscovery,
			foreignKeyIndex,
			keyValueGeneration,
			deleteBehavior,
		},
		ForeignKeyChanged: []ForeignKeyChangedConvention{
			foreignKeyDiscovery,
			foreignKeyIndex,
			keyValueGeneration,
			deleteBehavior,
		},
		ForeignKeyRemoved: []ForeignKeyRemovedConvention{
			foreignKeyIndex,
			keyValueGeneration,
		},
	}
}

// ConventionDispatcher runs the conventions of a ConventionSet for model events
type ConventionDispatcher struct {
	conventions *ConventionSet
	logger      *zap.Logger
}

// NewConventionDispatcher creates a dispatcher. A nil logger disables tracing.
func NewConventionDispatcher(conventions *ConventionSet, logger *zap.Logger) *ConventionDispatcher {
	if conventions == nil {
		conventions = &ConventionSet{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConventionDispatcher{
		conventions: conventions,
		logger:      logger,
	}
}

func (d *ConventionDispatcher) trace(event string, convention interface{}, target fmt.Stringer) {
	d.logger.Debug("applying convention",
		zap.String("event", event),
		zap.String("convention", fmt.Sprintf("%T", convention)),
		zap.Stringer("target", target),
	)
}

// OnEntityTypeAdded runs the EntityTypeAdded conventions
func (d *ConventionDispatcher) OnEntityTypeAdded(b *InternalEntityTypeBuilder) (*InternalEntityTypeBuilder, error) {
	for _, c := range d.conventions.EntityTypeAdded {
		d.trace("entity_type_added", c, b.metadata)
		var err error
		if b, err = c.EntityTypeAdded(b); err != nil || b == nil || b.metadata.Model() == nil {
			return nil, err
		}
	}
	return b, nil
}

// OnPropertyAdded runs the PropertyAdded conventions
func (d *ConventionDispatcher) OnPropertyAdded(b *InternalPropertyBuilder) (*InternalPropertyBuilder, error) {
	for _, c := range d.conventions.PropertyAdded {
		d.trace("property_added", c, b.metadata)
		var err error
		if b, err = c.PropertyAdded(b); err != nil || b == nil || b.metadata.DeclaringEntityType() == nil {
			return nil, err
		}
	}
	return b, nil
}

// OnKeyAdded runs the KeyAdded conventions
func (d *ConventionDispatcher) OnKeyAdded(b *InternalKeyBuilder) (*InternalKeyBuilder, error) {
	for _, c := range d.conventions.KeyAdded {
		d.trace("key_added", c, b.metadata)
		var err error
		if b, err = c.KeyAdded(b); err != nil || b == nil {
			return nil, err
		}
	}
	return b, nil
}

// OnPrimaryKeySet runs the PrimaryKeySet conventions
func (d *ConventionDispatcher) OnPrimaryKeySet(b *InternalEntityTypeBuilder, previous *metadata.Key) error {
	for _, c := range d.conventions.PrimaryKeySet {
		d.trace("primary_key_set", c, b.metadata)
		if err := c.PrimaryKeySet(b, previous); err != nil {
			return err
		}
	}
	return nil
}

// OnForeignKeyAdded runs the ForeignKeyAdded conventions
func (d *ConventionDispatcher) OnForeignKeyAdded(b *InternalRelationshipBuilder) (*InternalRelationshipBuilder, error) {
	for _, c := range d.conventions.ForeignKeyAdded {
		d.trace("foreign_key_added", c, b.metadata)
		var err error
		if b, err = c.ForeignKeyAdded(b); err != nil || b == nil || b.metadata.IsRemoved() {
			return nil, err
		}
	}
	return b, nil
}

// OnForeignKeyChanged runs the ForeignKeyChanged conventions
func (d *ConventionDispatcher) OnForeignKeyChanged(b *InternalRelationshipBuilder, previous []*metadata.Property) (*InternalRelationshipBuilder, error) {
	for _, c := range d.conventions.ForeignKeyChanged {
		d.trace("foreign_key_changed", c, b.metadata)
		var err error
		if b, err = c.ForeignKeyChanged(b, previous); err != nil || b == nil || b.metadata.IsRemoved() {
			return nil, err
		}
	}
	return b, nil
}

// OnForeignKeyRemoved runs the ForeignKeyRemoved conventions
func (d *ConventionDispatcher) OnForeignKeyRemoved(b *InternalEntityTypeBuilder, fk *metadata.ForeignKey) error {
	for _, c := range d.conventions.ForeignKeyRemoved {
		d.trace("foreign_key_removed", c, fk)
		if err := c.ForeignKeyRemoved(b, fk); err != nil {
			return err
		}
	}
	return nil
}

// OnModelBuilt runs the ModelBuilt conventions
func (d *ConventionDispatcher) OnModelBuilt(b *InternalModelBuilder) error {
	for _, c := range d.conventions.ModelBuilt {
		d.logger.Debug("applying convention",
			zap.String("event", "model_built"),
			zap.String("convention", fmt.Sprintf("%T", c)),
		)
		if err := c.ModelBuilt(b); err != nil {
			return err
		}
	}
	return nil
}
