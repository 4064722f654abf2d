package model

import (
	"fmt"
	"reflect"

	"github.com/conduit-lang/entityframe/internal/orm/builder"
	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

// EntityTypeBuilder configures one entity type
type EntityTypeBuilder struct {
	mb      *ModelBuilder
	builder *builder.InternalEntityTypeBuilder
}

// Metadata returns the entity type, or nil when configuration failed
func (e *EntityTypeBuilder) Metadata() *metadata.EntityType {
	if e.builder == nil {
		return nil
	}
	return e.builder.Metadata()
}

func (e *EntityTypeBuilder) name() string {
	if e.builder == nil {
		return "<invalid>"
	}
	return e.builder.Metadata().Name()
}

// Annotation sets an entity type annotation
func (e *EntityTypeBuilder) Annotation(name string, value interface{}) *EntityTypeBuilder {
	if e.builder != nil {
		e.builder.Annotation(name, value, metadata.Explicit)
	}
	return e
}

// Table maps the entity type to a table
func (e *EntityTypeBuilder) Table(name string) *EntityTypeBuilder {
	return e.Annotation(metadata.TableNameAnnotation, name)
}

// Key sets the primary key
func (e *EntityTypeBuilder) Key(names ...string) *KeyBuilder {
	if e.builder == nil {
		return &KeyBuilder{}
	}
	kb, err := e.builder.PrimaryKey(names, metadata.Explicit)
	e.check(err, kb == nil, "key", names)
	return &KeyBuilder{builder: kb}
}

// AlternateKey adds an alternate key
func (e *EntityTypeBuilder) AlternateKey(names ...string) *KeyBuilder {
	if e.builder == nil {
		return &KeyBuilder{}
	}
	kb, err := e.builder.HasKey(names, metadata.Explicit)
	e.check(err, kb == nil, "alternate key", names)
	return &KeyBuilder{builder: kb}
}

// Property configures a property backed by a struct field or an existing shadow property
func (e *EntityTypeBuilder) Property(name string) *PropertyBuilder {
	return e.PropertyOf(nil, name)
}

// PropertyOf configures a property with an explicit type, adding a shadow property
// when the struct has no such field
func (e *EntityTypeBuilder) PropertyOf(goType reflect.Type, name string) *PropertyBuilder {
	if e.builder == nil {
		return &PropertyBuilder{mb: e.mb}
	}
	pb, err := e.builder.Property(name, goType, metadata.Explicit)
	e.check(err, pb == nil, "property", []string{name})
	return &PropertyBuilder{mb: e.mb, builder: pb}
}

// ShadowProperty configures a property of type T
func ShadowProperty[T any](e *EntityTypeBuilder, name string) *PropertyBuilder {
	return e.PropertyOf(typeOf[T](), name)
}

// Ignore excludes a property or navigation from the model
func (e *EntityTypeBuilder) Ignore(name string) *EntityTypeBuilder {
	if e.builder == nil {
		return e
	}
	ok, err := e.builder.Ignore(name, metadata.Explicit)
	e.check(err, !ok, "ignore", []string{name})
	return e
}

// Index adds an index
func (e *EntityTypeBuilder) Index(names ...string) *IndexBuilder {
	if e.builder == nil {
		return &IndexBuilder{}
	}
	ib, err := e.builder.HasIndex(names, metadata.Explicit)
	e.check(err, ib == nil, "index", names)
	return &IndexBuilder{builder: ib}
}

// Reference starts a relationship in which this entity type references one related
// entity through navigation. An empty navigation means no navigation on this side.
func (e *EntityTypeBuilder) Reference(related, navigation string) *ReferenceNavigationBuilder {
	return &ReferenceNavigationBuilder{
		entity:     e,
		related:    e.related(related, navigation),
		navigation: navigation,
	}
}

// Collection starts a relationship in which this entity type has many related entities
func (e *EntityTypeBuilder) Collection(related, navigation string) *CollectionNavigationBuilder {
	return &CollectionNavigationBuilder{
		entity:     e,
		related:    e.related(related, navigation),
		navigation: navigation,
	}
}

// related resolves the related entity type by name. A struct entity type whose
// navigation field points at a struct with that name maps that struct.
func (e *EntityTypeBuilder) related(name, navigation string) *builder.InternalEntityTypeBuilder {
	if e.builder == nil {
		return nil
	}
	mb := e.mb.builder
	var (
		rb  *builder.InternalEntityTypeBuilder
		err error
	)
	if mb.Metadata().FindEntityType(name) == nil && navigation != "" {
		if fieldType, ok := e.builder.Metadata().FieldType(navigation); ok {
			if target := elemType(fieldType); target != nil && target.Name() == name {
				rb, err = mb.EntityForType(target, metadata.Explicit)
				e.check(err, rb == nil, "related entity type", []string{name})
				return rb
			}
		}
	}
	rb, err = mb.Entity(name, metadata.Explicit)
	e.check(err, rb == nil, "related entity type", []string{name})
	return rb
}

func (e *EntityTypeBuilder) check(err error, rejected bool, what string, names []string) {
	if err != nil {
		e.mb.record(fmt.Errorf("failed to configure %s %v on %s: %w", what, names, e.name(), err))
		return
	}
	if rejected {
		e.mb.record(fmt.Errorf("%w: %s %v on %s", ErrRejected, what, names, e.name()))
	}
}

func elemType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}
