package metadata

import "fmt"

// DeleteBehavior describes what happens to dependents when their principal is deleted
type DeleteBehavior int

const (
	// Restrict prevents deleting a principal that still has dependents
	Restrict DeleteBehavior = iota
	// Cascade deletes dependents with their principal
	Cascade
	// SetNull clears the foreign key of dependents
	SetNull
)

// String returns the string representation of the delete behavior
func (d DeleteBehavior) String() string {
	switch d {
	case Cascade:
		return "cascade"
	case SetNull:
		return "set_null"
	default:
		return "restrict"
	}
}

// SQL returns the referential action clause for the behavior
func (d DeleteBehavior) SQL() string {
	switch d {
	case Cascade:
		return "CASCADE"
	case SetNull:
		return "SET NULL"
	default:
		return "RESTRICT"
	}
}

// ForeignKey relates dependent properties to a principal key
type ForeignKey struct {
	Annotations

	declaringEntityType *EntityType
	properties          []*Property
	principalKey        *Key
	source              ConfigurationSource

	propertiesSource   facet[struct{}]
	principalKeySource facet[struct{}]
	requiredSource     facet[struct{}]
	unique             facet[bool]
	deleteBehavior     facet[DeleteBehavior]

	dependentToPrincipal *Navigation
	principalToDependent *Navigation
	removed              bool
}

// DeclaringEntityType returns the dependent entity type
func (fk *ForeignKey) DeclaringEntityType() *EntityType { return fk.declaringEntityType }

// PrincipalEntityType returns the entity type that owns the principal key
func (fk *ForeignKey) PrincipalEntityType() *EntityType { return fk.principalKey.declaringEntityType }

// Properties returns the dependent properties in order
func (fk *ForeignKey) Properties() []*Property { return append([]*Property(nil), fk.properties...) }

// PrincipalKey returns the referenced key
func (fk *ForeignKey) PrincipalKey() *Key { return fk.principalKey }

// Source returns the configuration source of the foreign key
func (fk *ForeignKey) Source() ConfigurationSource { return fk.source }

// UpdateSource raises the configuration source
func (fk *ForeignKey) UpdateSource(source ConfigurationSource) {
	fk.source = MaxSource(fk.source, source)
}

// PropertiesSource returns the source that chose the dependent properties
func (fk *ForeignKey) PropertiesSource() ConfigurationSource {
	s, _ := fk.propertiesSource.sourceOf()
	return s
}

// PrincipalKeySource returns the source that chose the principal key
func (fk *ForeignKey) PrincipalKeySource() ConfigurationSource {
	s, _ := fk.principalKeySource.sourceOf()
	return s
}

// SetProperties replaces the dependent properties
func (fk *ForeignKey) SetProperties(props []*Property, source ConfigurationSource) (bool, error) {
	if err := fk.declaringEntityType.checkOwnership(props); err != nil {
		return false, err
	}
	if !fk.propertiesSource.canSet(source) {
		return false, nil
	}
	for _, existing := range fk.declaringEntityType.foreignKeys {
		if existing != fk && existing.principalKey == fk.principalKey && samePropertyList(existing.properties, props) {
			return false, fmt.Errorf("%w: %s(%s) -> %s", ErrDuplicateForeignKey, fk.declaringEntityType.name, PropertyNames(props), fk.PrincipalEntityType().name)
		}
	}
	fk.properties = append([]*Property(nil), props...)
	fk.propertiesSource.apply(struct{}{}, source)
	return true, nil
}

// SetPrincipalKey retargets the foreign key to another key of the same principal entity type
func (fk *ForeignKey) SetPrincipalKey(key *Key, source ConfigurationSource) (bool, error) {
	if key == nil {
		return false, ErrNoPrimaryKey
	}
	if key.declaringEntityType != fk.PrincipalEntityType() {
		return false, fmt.Errorf("%w: key %s is not declared on %s", ErrForeignMember, key, fk.PrincipalEntityType().name)
	}
	if !fk.principalKeySource.canSet(source) {
		return false, nil
	}
	fk.principalKey = key
	fk.principalKeySource.apply(struct{}{}, source)
	return true, nil
}

// IsUnique reports whether at most one dependent exists per principal
func (fk *ForeignKey) IsUnique() bool {
	v, _ := fk.unique.get()
	return v
}

// UniqueSource returns the source of the uniqueness configuration
func (fk *ForeignKey) UniqueSource() (ConfigurationSource, bool) {
	return fk.unique.sourceOf()
}

// SetIsUnique configures uniqueness
func (fk *ForeignKey) SetIsUnique(unique bool, source ConfigurationSource) bool {
	return fk.unique.apply(unique, source)
}

// IsRequired reports whether every dependent property is non-nullable
func (fk *ForeignKey) IsRequired() bool {
	for _, p := range fk.properties {
		if p.IsNullable() {
			return false
		}
	}
	return true
}

// RequiredSource returns the source of the requiredness configuration
func (fk *ForeignKey) RequiredSource() (ConfigurationSource, bool) {
	return fk.requiredSource.sourceOf()
}

// SetRequiredSource records who configured requiredness
func (fk *ForeignKey) SetRequiredSource(source ConfigurationSource) bool {
	return fk.requiredSource.apply(struct{}{}, source)
}

// DeleteBehavior returns the configured delete behavior, defaulting to Restrict
func (fk *ForeignKey) DeleteBehavior() DeleteBehavior {
	v, _ := fk.deleteBehavior.get()
	return v
}

// DeleteBehaviorSource returns the source of the delete behavior
func (fk *ForeignKey) DeleteBehaviorSource() (ConfigurationSource, bool) {
	return fk.deleteBehavior.sourceOf()
}

// SetDeleteBehavior configures the delete behavior
func (fk *ForeignKey) SetDeleteBehavior(behavior DeleteBehavior, source ConfigurationSource) bool {
	return fk.deleteBehavior.apply(behavior, source)
}

// DependentToPrincipal returns the navigation on the dependent, or nil
func (fk *ForeignKey) DependentToPrincipal() *Navigation { return fk.dependentToPrincipal }

// PrincipalToDependent returns the navigation on the principal, or nil
func (fk *ForeignKey) PrincipalToDependent() *Navigation { return fk.principalToDependent }

// IsRemoved reports whether the foreign key was removed from its entity type
func (fk *ForeignKey) IsRemoved() bool { return fk.removed }

// IsSelfReferencing reports whether the principal and dependent are the same entity type
func (fk *ForeignKey) IsSelfReferencing() bool {
	return fk.declaringEntityType == fk.PrincipalEntityType()
}

// String returns Dependent(Props) -> Principal(Props)
func (fk *ForeignKey) String() string {
	return fmt.Sprintf("%s(%s) -> %s", fk.declaringEntityType.name, PropertyNames(fk.properties), fk.principalKey)
}
