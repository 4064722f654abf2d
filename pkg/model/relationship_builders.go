package model

import (
	"fmt"

	"github.com/conduit-lang/entityframe/internal/orm/builder"
	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

// ReferenceNavigationBuilder is returned by EntityTypeBuilder.Reference
type ReferenceNavigationBuilder struct {
	entity     *EntityTypeBuilder
	related    *builder.InternalEntityTypeBuilder
	navigation string
}

// InverseCollection completes a one-to-many relationship. The declaring entity type
// is the dependent.
func (r *ReferenceNavigationBuilder) InverseCollection(navigation string) *ReferenceCollectionBuilder {
	rb := &ReferenceCollectionBuilder{relationship{mb: r.entity.mb}}
	if r.entity.builder == nil || r.related == nil {
		return rb
	}
	fk, err := r.entity.builder.Relationship(r.related, r.navigation, navigation, false, metadata.Explicit)
	rb.set(fk, err)
	return rb
}

// InverseReference completes a one-to-one relationship. Until ForeignKey or
// PrincipalKey picks a side, the declaring entity type is the dependent.
func (r *ReferenceNavigationBuilder) InverseReference(navigation string) *ReferenceReferenceBuilder {
	rb := &ReferenceReferenceBuilder{relationship{mb: r.entity.mb}}
	if r.entity.builder == nil || r.related == nil {
		return rb
	}
	fk, err := r.entity.builder.Relationship(r.related, r.navigation, navigation, true, metadata.Explicit)
	rb.set(fk, err)
	return rb
}

// CollectionNavigationBuilder is returned by EntityTypeBuilder.Collection
type CollectionNavigationBuilder struct {
	entity     *EntityTypeBuilder
	related    *builder.InternalEntityTypeBuilder
	navigation string
}

// InverseReference completes a one-to-many relationship. The related entity type is
// the dependent.
func (c *CollectionNavigationBuilder) InverseReference(navigation string) *ReferenceCollectionBuilder {
	rb := &ReferenceCollectionBuilder{relationship{mb: c.entity.mb}}
	if c.entity.builder == nil || c.related == nil {
		return rb
	}
	fk, err := c.related.Relationship(c.entity.builder, navigation, c.navigation, false, metadata.Explicit)
	rb.set(fk, err)
	return rb
}

type relationship struct {
	mb      *ModelBuilder
	builder *builder.InternalRelationshipBuilder
}

func (r *relationship) set(b *builder.InternalRelationshipBuilder, err error) {
	if err != nil {
		r.mb.record(fmt.Errorf("failed to configure relationship: %w", err))
		r.builder = nil
		return
	}
	if b == nil {
		r.mb.record(fmt.Errorf("%w: relationship", ErrRejected))
	}
	r.builder = b
}

func (r *relationship) update(what string, names []string, b *builder.InternalRelationshipBuilder, err error) {
	fk := r.builder.Metadata()
	if err != nil {
		r.mb.record(fmt.Errorf("failed to configure %s %v of %s: %w", what, names, fk, err))
		r.builder = nil
		return
	}
	if b == nil {
		r.mb.record(fmt.Errorf("%w: %s %v of %s", ErrRejected, what, names, fk))
	}
	r.builder = b
}

// Metadata returns the foreign key, or nil when configuration failed
func (r *relationship) Metadata() *metadata.ForeignKey {
	if r.builder == nil {
		return nil
	}
	return r.builder.Metadata()
}

func (r *relationship) annotation(name string, value interface{}) {
	if r.builder != nil {
		r.builder.Annotation(name, value, metadata.Explicit)
	}
}

func (r *relationship) required(required bool) {
	if r.builder == nil {
		return
	}
	b, err := r.builder.Required(required, metadata.Explicit)
	r.update("requiredness", nil, b, err)
}

func (r *relationship) onDelete(behavior metadata.DeleteBehavior) {
	if r.builder != nil {
		r.builder.OnDelete(behavior, metadata.Explicit)
	}
}

func (r *relationship) foreignKey(names []string) {
	if r.builder == nil {
		return
	}
	b, err := r.builder.ForeignKey(names, metadata.Explicit)
	r.update("foreign key", names, b, err)
}

func (r *relationship) principalKey(names []string) {
	if r.builder == nil {
		return
	}
	b, err := r.builder.PrincipalKey(names, metadata.Explicit)
	r.update("principal key", names, b, err)
}

// orient makes dependent the dependent end, inverting the relationship if needed
func (r *relationship) orient(dependent string) bool {
	if r.builder == nil {
		return false
	}
	fk := r.builder.Metadata()
	switch dependent {
	case fk.DeclaringEntityType().Name():
		return true
	case fk.PrincipalEntityType().Name():
		b, err := r.builder.Invert(metadata.Explicit)
		r.update("dependent end", []string{dependent}, b, err)
		return r.builder != nil
	default:
		r.mb.record(fmt.Errorf("%w: %s is not part of %s", ErrRejected, dependent, fk))
		r.builder = nil
		return false
	}
}

// ReferenceCollectionBuilder configures a one-to-many relationship
type ReferenceCollectionBuilder struct {
	relationship
}

// Annotation sets a foreign key annotation
func (r *ReferenceCollectionBuilder) Annotation(name string, value interface{}) *ReferenceCollectionBuilder {
	r.annotation(name, value)
	return r
}

// ForeignKey sets the dependent properties, adding shadow properties for names the
// dependent does not have
func (r *ReferenceCollectionBuilder) ForeignKey(names ...string) *ReferenceCollectionBuilder {
	r.foreignKey(names)
	return r
}

// PrincipalKey sets the principal properties the foreign key references
func (r *ReferenceCollectionBuilder) PrincipalKey(names ...string) *ReferenceCollectionBuilder {
	r.principalKey(names)
	return r
}

// Required sets whether a dependent must have a principal
func (r *ReferenceCollectionBuilder) Required(required bool) *ReferenceCollectionBuilder {
	r.required(required)
	return r
}

// OnDelete sets what happens to dependents when the principal is deleted
func (r *ReferenceCollectionBuilder) OnDelete(behavior metadata.DeleteBehavior) *ReferenceCollectionBuilder {
	r.onDelete(behavior)
	return r
}

// ReferenceReferenceBuilder configures a one-to-one relationship. Either end can be
// the dependent, so ForeignKey and PrincipalKey name the entity type they apply to.
type ReferenceReferenceBuilder struct {
	relationship
}

// Annotation sets a foreign key annotation
func (r *ReferenceReferenceBuilder) Annotation(name string, value interface{}) *ReferenceReferenceBuilder {
	r.annotation(name, value)
	return r
}

// ForeignKey makes dependent the dependent end and sets its foreign key properties
func (r *ReferenceReferenceBuilder) ForeignKey(dependent string, names ...string) *ReferenceReferenceBuilder {
	if r.orient(dependent) {
		r.foreignKey(names)
	}
	return r
}

// PrincipalKey makes principal the principal end and sets the referenced properties
func (r *ReferenceReferenceBuilder) PrincipalKey(principal string, names ...string) *ReferenceReferenceBuilder {
	if r.builder == nil {
		return r
	}
	fk := r.builder.Metadata()
	dependent := fk.PrincipalEntityType().Name()
	if fk.PrincipalEntityType().Name() == principal {
		dependent = fk.DeclaringEntityType().Name()
	}
	if r.orient(dependent) {
		r.principalKey(names)
	}
	return r
}

// Required sets whether a dependent must have a principal
func (r *ReferenceReferenceBuilder) Required(required bool) *ReferenceReferenceBuilder {
	r.required(required)
	return r
}

// OnDelete sets what happens to the dependent when the principal is deleted
func (r *ReferenceReferenceBuilder) OnDelete(behavior metadata.DeleteBehavior) *ReferenceReferenceBuilder {
	r.onDelete(behavior)
	return r
}
