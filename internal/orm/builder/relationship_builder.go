package builder

import (
	"fmt"
	"reflect"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

// InternalRelationshipBuilder applies source-aware configuration to a foreign key
type InternalRelationshipBuilder struct {
	metadata     *metadata.ForeignKey
	modelBuilder *InternalModelBuilder
}

// Metadata returns the foreign key being configured
func (b *InternalRelationshipBuilder) Metadata() *metadata.ForeignKey {
	return b.metadata
}

// Annotation sets a foreign key annotation
func (b *InternalRelationshipBuilder) Annotation(name string, value interface{}, source metadata.ConfigurationSource) bool {
	return b.metadata.SetAnnotationFrom(name, value, source)
}

func (b *InternalRelationshipBuilder) dependentBuilder() *InternalEntityTypeBuilder {
	return b.modelBuilder.entityTypeBuilder(b.metadata.DeclaringEntityType())
}

func (b *InternalRelationshipBuilder) principalBuilder() *InternalEntityTypeBuilder {
	return b.modelBuilder.entityTypeBuilder(b.metadata.PrincipalEntityType())
}

// baseName is the prefix for convention-created foreign key properties
func (b *InternalRelationshipBuilder) baseName() string {
	if nav := b.metadata.DependentToPrincipal(); nav != nil {
		return nav.Name()
	}
	return b.metadata.PrincipalEntityType().Name()
}

// ForeignKey sets the dependent properties by name. Missing properties are created
// as shadow properties typed after the principal key.
func (b *InternalRelationshipBuilder) ForeignKey(names []string, source metadata.ConfigurationSource) (*InternalRelationshipBuilder, error) {
	fk := b.metadata
	dependent := b.dependentBuilder()
	principalProps := fk.PrincipalKey().Properties()

	props := make([]*metadata.Property, 0, len(names))
	for i, name := range names {
		var goType reflect.Type
		if dependent.metadata.FindProperty(name) == nil && !dependent.metadata.HasField(name) {
			if len(names) != len(principalProps) {
				return nil, fmt.Errorf("%w: cannot infer the type of shadow property %s.%s", metadata.ErrInvalidType, dependent.metadata.Name(), name)
			}
			goType = principalProps[i].GoType()
		}
		pb, err := dependent.Property(name, goType, source)
		if err != nil {
			return nil, err
		}
		if pb == nil {
			return nil, nil
		}
		props = append(props, pb.metadata)
	}
	if b.metadata.IsRemoved() {
		return nil, nil
	}
	return b.HasForeignKey(props, source)
}

// HasForeignKey sets the dependent properties. When they do not fit a principal key
// chosen by convention, an alternate key with matching properties is added to the principal.
func (b *InternalRelationshipBuilder) HasForeignKey(props []*metadata.Property, source metadata.ConfigurationSource) (*InternalRelationshipBuilder, error) {
	fk := b.metadata
	if sameProperties(fk.Properties(), props) {
		if _, err := fk.SetProperties(props, source); err != nil {
			return nil, err
		}
		fk.UpdateSource(source)
		return b, nil
	}
	if !source.Overrides(fk.PropertiesSource()) {
		return nil, nil
	}

	oldKey := fk.PrincipalKey()
	if !compatibleProperties(props, oldKey.Properties()) {
		if fk.PrincipalKeySource() != metadata.Convention {
			return nil, fmt.Errorf("%w: %s(%s) -> %s", metadata.ErrIncompatibleKeys, fk.DeclaringEntityType().Name(), metadata.PropertyNames(props), oldKey)
		}
		key, err := b.alternateKeyFor(props)
		if err != nil {
			return nil, err
		}
		if _, err := fk.SetPrincipalKey(key, metadata.Convention); err != nil {
			return nil, err
		}
	}

	wasRequired := fk.IsRequired()
	requiredSource, hasRequired := fk.RequiredSource()
	old := fk.Properties()
	if _, err := fk.SetProperties(props, source); err != nil {
		return nil, err
	}
	fk.UpdateSource(source)
	if hasRequired {
		for _, p := range props {
			if _, err := p.SetIsNullable(!wasRequired, requiredSource); err != nil {
				return nil, err
			}
		}
	}
	if oldKey != fk.PrincipalKey() {
		b.modelBuilder.removeKeyIfUnused(oldKey)
	}
	return b.propertiesChanged(old)
}

// alternateKeyFor gets or adds a principal key whose properties are named after props
func (b *InternalRelationshipBuilder) alternateKeyFor(props []*metadata.Property) (*metadata.Key, error) {
	principal := b.principalBuilder()
	keyProps := make([]*metadata.Property, len(props))
	for i, p := range props {
		var goType reflect.Type
		if principal.metadata.FindProperty(p.Name()) == nil && !principal.metadata.HasField(p.Name()) {
			goType = metadata.UnderlyingType(p.GoType())
		}
		pb, err := principal.Property(p.Name(), goType, metadata.Convention)
		if err != nil {
			return nil, err
		}
		if pb == nil {
			return nil, fmt.Errorf("%w: %s.%s is ignored", metadata.ErrIncompatibleKeys, principal.metadata.Name(), p.Name())
		}
		keyProps[i] = pb.metadata
	}
	if !compatibleProperties(props, keyProps) {
		return nil, fmt.Errorf("%w: %s(%s) -> %s(%s)", metadata.ErrIncompatibleKeys,
			b.metadata.DeclaringEntityType().Name(), metadata.PropertyNames(props),
			principal.metadata.Name(), metadata.PropertyNames(keyProps))
	}
	kb, err := principal.HasKeyFromProperties(keyProps, metadata.Convention)
	if err != nil {
		return nil, err
	}
	return kb.metadata, nil
}

// PrincipalKey sets the referenced principal key by property names, adding an
// alternate key when the properties are not a key yet
func (b *InternalRelationshipBuilder) PrincipalKey(names []string, source metadata.ConfigurationSource) (*InternalRelationshipBuilder, error) {
	fk := b.metadata
	principal := b.principalBuilder()
	fkProps := fk.Properties()

	props := make([]*metadata.Property, 0, len(names))
	for i, name := range names {
		var goType reflect.Type
		if principal.metadata.FindProperty(name) == nil && !principal.metadata.HasField(name) {
			if fk.PropertiesSource() == metadata.Convention || len(names) != len(fkProps) {
				return nil, fmt.Errorf("%w: cannot infer the type of shadow property %s.%s", metadata.ErrInvalidType, principal.metadata.Name(), name)
			}
			goType = metadata.UnderlyingType(fkProps[i].GoType())
		}
		pb, err := principal.Property(name, goType, source)
		if err != nil {
			return nil, err
		}
		if pb == nil {
			return nil, nil
		}
		props = append(props, pb.metadata)
	}
	return b.HasPrincipalKey(props, source)
}

// HasPrincipalKey points the foreign key at the key over props
func (b *InternalRelationshipBuilder) HasPrincipalKey(props []*metadata.Property, source metadata.ConfigurationSource) (*InternalRelationshipBuilder, error) {
	fk := b.metadata
	current := fk.PrincipalKey()
	if sameProperties(current.Properties(), props) {
		if _, err := fk.SetPrincipalKey(current, source); err != nil {
			return nil, err
		}
		return b, nil
	}
	if !source.Overrides(fk.PrincipalKeySource()) {
		return nil, nil
	}

	old := fk.Properties()
	compatible := compatibleProperties(old, props)
	if !compatible && fk.PropertiesSource() != metadata.Convention {
		return nil, fmt.Errorf("%w: %s(%s) -> %s(%s)", metadata.ErrIncompatibleKeys,
			fk.DeclaringEntityType().Name(), metadata.PropertyNames(old),
			fk.PrincipalEntityType().Name(), metadata.PropertyNames(props))
	}

	kb, err := b.principalBuilder().HasKeyFromProperties(props, source)
	if err != nil || kb == nil {
		return nil, err
	}
	if _, err := fk.SetPrincipalKey(kb.metadata, source); err != nil {
		return nil, err
	}
	if !compatible {
		newProps, err := b.dependentBuilder().createForeignKeyProperties(b.baseName(), props, fk.IsRequired())
		if err != nil {
			return nil, err
		}
		if _, err := fk.SetProperties(newProps, metadata.Convention); err != nil {
			return nil, err
		}
	}
	b.modelBuilder.removeKeyIfUnused(current)
	return b.propertiesChanged(old)
}

// retarget moves a foreign key whose principal key came from a convention to key.
// Explicit properties that do not fit key keep the foreign key where it is.
func (b *InternalRelationshipBuilder) retarget(key *metadata.Key) (*InternalRelationshipBuilder, error) {
	fk := b.metadata
	old := fk.Properties()
	compatible := compatibleProperties(old, key.Properties())
	if !compatible && fk.PropertiesSource() != metadata.Convention {
		return b, nil
	}
	if _, err := fk.SetPrincipalKey(key, metadata.Convention); err != nil {
		return nil, err
	}
	if !compatible {
		props, err := b.dependentBuilder().createForeignKeyProperties(b.baseName(), key.Properties(), fk.IsRequired())
		if err != nil {
			return nil, err
		}
		if _, err := fk.SetProperties(props, metadata.Convention); err != nil {
			return nil, err
		}
	}
	return b.propertiesChanged(old)
}

func (b *InternalRelationshipBuilder) propertiesChanged(old []*metadata.Property) (*InternalRelationshipBuilder, error) {
	dependent := b.dependentBuilder()
	rb, err := b.modelBuilder.conventions.OnForeignKeyChanged(b, old)
	if err != nil {
		return nil, err
	}
	dependent.removeShadowPropertiesIfUnused(old)
	return rb, nil
}

// Required sets whether every dependent must reference a principal
func (b *InternalRelationshipBuilder) Required(required bool, source metadata.ConfigurationSource) (*InternalRelationshipBuilder, error) {
	fk := b.metadata
	if existing, ok := fk.RequiredSource(); ok && !source.Overrides(existing) {
		return nil, nil
	}
	for _, p := range fk.Properties() {
		if _, err := p.SetIsNullable(!required, source); err != nil {
			return nil, err
		}
	}
	fk.SetRequiredSource(source)
	return b.modelBuilder.conventions.OnForeignKeyChanged(b, fk.Properties())
}

// Unique sets whether the relationship is one-to-one
func (b *InternalRelationshipBuilder) Unique(unique bool, source metadata.ConfigurationSource) (*InternalRelationshipBuilder, error) {
	if !b.metadata.SetIsUnique(unique, source) {
		return nil, nil
	}
	return b.modelBuilder.conventions.OnForeignKeyChanged(b, b.metadata.Properties())
}

// OnDelete sets what happens to dependents when their principal is deleted
func (b *InternalRelationshipBuilder) OnDelete(behavior metadata.DeleteBehavior, source metadata.ConfigurationSource) *InternalRelationshipBuilder {
	if !b.metadata.SetDeleteBehavior(behavior, source) {
		return nil
	}
	return b
}

// DependentToPrincipal sets the navigation on the dependent. An empty name removes it.
func (b *InternalRelationshipBuilder) DependentToPrincipal(name string, source metadata.ConfigurationSource) (*InternalRelationshipBuilder, error) {
	return b.navigation(name, true, source)
}

// PrincipalToDependent sets the navigation on the principal. An empty name removes it.
func (b *InternalRelationshipBuilder) PrincipalToDependent(name string, source metadata.ConfigurationSource) (*InternalRelationshipBuilder, error) {
	return b.navigation(name, false, source)
}

func (b *InternalRelationshipBuilder) navigation(name string, pointsToPrincipal bool, source metadata.ConfigurationSource) (*InternalRelationshipBuilder, error) {
	fk := b.metadata
	owner, current := b.principalBuilder(), fk.PrincipalToDependent()
	if pointsToPrincipal {
		owner, current = b.dependentBuilder(), fk.DependentToPrincipal()
	}

	if current != nil && current.Name() == name {
		return b, nil
	}
	if current != nil {
		if !source.Overrides(fk.Source()) {
			return nil, nil
		}
		owner.metadata.RemoveNavigation(current)
	}
	if name == "" {
		return b, nil
	}
	if !unignoreMember(owner.metadata, name, source) {
		return nil, nil
	}
	if ok, err := owner.freeNavigationName(name, source); !ok || err != nil {
		return nil, err
	}
	if err := owner.addNavigation(name, fk, pointsToPrincipal); err != nil {
		return nil, err
	}
	return b, nil
}

// attach upgrades an existing relationship with the requested navigations and uniqueness
func (b *InternalRelationshipBuilder) attach(navToPrincipal, navToDependent string, unique bool, source metadata.ConfigurationSource) (*InternalRelationshipBuilder, error) {
	fk := b.metadata
	fk.UpdateSource(source)

	rb := b
	if navToPrincipal != "" && fk.DependentToPrincipal() == nil {
		next, err := rb.DependentToPrincipal(navToPrincipal, source)
		if err != nil {
			return nil, err
		}
		if next != nil {
			rb = next
		}
	}
	if navToDependent != "" && fk.PrincipalToDependent() == nil {
		next, err := rb.PrincipalToDependent(navToDependent, source)
		if err != nil {
			return nil, err
		}
		if next != nil {
			rb = next
		}
	}
	if unique != fk.IsUnique() {
		next, err := rb.Unique(unique, source)
		if err != nil {
			return nil, err
		}
		if next != nil {
			rb = next
		}
	}
	return rb, nil
}

// Invert swaps the principal and dependent ends. The foreign key is recreated on the
// former principal; its properties and principal key are rediscovered.
func (b *InternalRelationshipBuilder) Invert(source metadata.ConfigurationSource) (*InternalRelationshipBuilder, error) {
	fk := b.metadata
	if !source.Overrides(fk.PropertiesSource()) || !source.Overrides(fk.PrincipalKeySource()) {
		return nil, nil
	}
	dependent, principal := b.dependentBuilder(), b.principalBuilder()
	if dependent.metadata.FindPrimaryKey() == nil {
		return nil, fmt.Errorf("%w: principal entity type %s has no primary key", metadata.ErrNoPrimaryKey, dependent.metadata.Name())
	}

	toPrincipal := navigationName(fk.DependentToPrincipal())
	toDependent := navigationName(fk.PrincipalToDependent())
	unique := fk.IsUnique()
	fkSource := metadata.MaxSource(fk.Source(), source)
	behavior, behaviorSource, hasBehavior := fk.DeleteBehavior(), metadata.Convention, false
	if s, ok := fk.DeleteBehaviorSource(); ok && s != metadata.Convention {
		behaviorSource, hasBehavior = s, true
	}
	annotations := fk.GetAnnotations()

	if err := dependent.removeForeignKey(fk); err != nil {
		return nil, err
	}

	rb, err := principal.Relationship(dependent, toDependent, toPrincipal, unique, fkSource)
	if err != nil || rb == nil {
		return nil, err
	}
	if hasBehavior {
		rb.OnDelete(behavior, behaviorSource)
	}
	for _, a := range annotations {
		rb.metadata.SetAnnotationFrom(a.Name, a.Value, a.Source)
	}
	return rb, nil
}

func navigationName(nav *metadata.Navigation) string {
	if nav == nil {
		return ""
	}
	return nav.Name()
}
