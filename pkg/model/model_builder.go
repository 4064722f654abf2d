// Package model provides the fluent API used to describe an entity model.
//
// Every call is recorded with explicit source, so it wins over anything the
// conventions inferred from struct fields and tags. Chained calls cannot return
// errors; the first failure is kept on the ModelBuilder and reported by Err and Build.
package model

import (
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/conduit-lang/entityframe/internal/orm/builder"
	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

// ErrRejected is recorded when a configuration cannot be applied
var ErrRejected = errors.New("configuration rejected")

type options struct {
	conventions *builder.ConventionSet
	model       *metadata.Model
	logger      *zap.Logger
}

// Option configures a ModelBuilder
type Option func(*options)

// WithConventions replaces the default convention set
func WithConventions(conventions *builder.ConventionSet) Option {
	return func(o *options) {
		o.conventions = conventions
	}
}

// WithModel continues building an existing model
func WithModel(m *metadata.Model) Option {
	return func(o *options) {
		o.model = m
	}
}

// WithLogger traces convention applications at debug level
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// DefaultConventions returns the convention set used when none is given
func DefaultConventions() *builder.ConventionSet {
	return builder.DefaultConventionSet(builder.NewTypeInspector())
}

// NoConventions returns an empty convention set
func NoConventions() *builder.ConventionSet {
	return &builder.ConventionSet{}
}

// ModelBuilder is the entry point of the fluent API
type ModelBuilder struct {
	builder *builder.InternalModelBuilder
	err     error
}

// NewModelBuilder creates a model builder
func NewModelBuilder(opts ...Option) *ModelBuilder {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.conventions == nil {
		o.conventions = DefaultConventions()
	}
	return &ModelBuilder{
		builder: builder.NewInternalModelBuilder(o.model, o.conventions, o.logger),
	}
}

// Model returns the model being built, even if it is not valid yet
func (mb *ModelBuilder) Model() *metadata.Model {
	return mb.builder.Metadata()
}

// Err returns the first configuration failure
func (mb *ModelBuilder) Err() error {
	return mb.err
}

// Build finalizes and validates the model
func (mb *ModelBuilder) Build() (*metadata.Model, error) {
	if mb.err != nil {
		return nil, mb.err
	}
	return mb.builder.Finalize()
}

func (mb *ModelBuilder) record(err error) {
	if err != nil && mb.err == nil {
		mb.err = err
	}
}

// Annotation sets a model annotation
func (mb *ModelBuilder) Annotation(name string, value interface{}) *ModelBuilder {
	mb.builder.Annotation(name, value, metadata.Explicit)
	return mb
}

// Entity configures the entity type with the given name. Names that are not mapped
// to a struct yet become shadow entity types.
func (mb *ModelBuilder) Entity(name string) *EntityTypeBuilder {
	eb, err := mb.builder.Entity(name, metadata.Explicit)
	return mb.entityTypeBuilder(eb, err, name)
}

// EntityFor configures the entity type backed by the struct type t
func (mb *ModelBuilder) EntityFor(t reflect.Type) *EntityTypeBuilder {
	eb, err := mb.builder.EntityForType(t, metadata.Explicit)
	return mb.entityTypeBuilder(eb, err, fmt.Sprint(t))
}

// EntityWith configures the named entity type inside configure
func (mb *ModelBuilder) EntityWith(name string, configure func(*EntityTypeBuilder)) *ModelBuilder {
	configure(mb.Entity(name))
	return mb
}

// Ignore excludes the named entity type from the model
func (mb *ModelBuilder) Ignore(name string) *ModelBuilder {
	if _, err := mb.builder.Ignore(name, metadata.Explicit); err != nil {
		mb.record(fmt.Errorf("failed to ignore %s: %w", name, err))
	}
	return mb
}

func (mb *ModelBuilder) entityTypeBuilder(eb *builder.InternalEntityTypeBuilder, err error, name string) *EntityTypeBuilder {
	if err != nil {
		mb.record(fmt.Errorf("failed to configure entity type %s: %w", name, err))
		return &EntityTypeBuilder{mb: mb}
	}
	if eb == nil {
		mb.record(fmt.Errorf("%w: entity type %s", ErrRejected, name))
	}
	return &EntityTypeBuilder{mb: mb, builder: eb}
}

// Entity configures the entity type backed by T
func Entity[T any](mb *ModelBuilder) *EntityTypeBuilder {
	return mb.EntityFor(typeOf[T]())
}

// EntityWith configures the entity type backed by T inside configure
func EntityWith[T any](mb *ModelBuilder, configure func(*EntityTypeBuilder)) *ModelBuilder {
	configure(Entity[T](mb))
	return mb
}

// Ignore excludes the entity type backed by T from the model
func Ignore[T any](mb *ModelBuilder) *ModelBuilder {
	return mb.Ignore(typeOf[T]().Name())
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
