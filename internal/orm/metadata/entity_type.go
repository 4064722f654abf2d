package metadata

import (
	"fmt"
	"reflect"
	"sort"
)

// EntityType describes a mapped entity, either backed by a Go struct or a shadow entity type
type EntityType struct {
	Annotations

	model  *Model
	name   string
	goType reflect.Type
	source ConfigurationSource

	properties  []*Property
	primaryKey  *Key
	pkSource    facet[struct{}]
	keys        []*Key
	foreignKeys []*ForeignKey
	navigations []*Navigation
	indexes     []*Index
	ignored     map[string]ConfigurationSource
}

func newEntityType(m *Model, name string, goType reflect.Type, source ConfigurationSource) *EntityType {
	return &EntityType{
		model:   m,
		name:    name,
		goType:  goType,
		source:  source,
		ignored: make(map[string]ConfigurationSource),
	}
}

// Name returns the entity type name
func (et *EntityType) Name() string { return et.name }

// GoType returns the backing struct type, or nil for shadow entity types
func (et *EntityType) GoType() reflect.Type { return et.goType }

// IsShadow reports whether the entity type has no backing struct
func (et *EntityType) IsShadow() bool { return et.goType == nil }

// Model returns the owning model, or nil once removed
func (et *EntityType) Model() *Model { return et.model }

// Source returns the configuration source of the entity type
func (et *EntityType) Source() ConfigurationSource { return et.source }

// UpdateSource raises the configuration source
func (et *EntityType) UpdateSource(source ConfigurationSource) {
	et.source = MaxSource(et.source, source)
}

// HasField reports whether the backing struct has an exported field with the given name
func (et *EntityType) HasField(name string) bool {
	if et.goType == nil {
		return false
	}
	f, ok := et.goType.FieldByName(name)
	return ok && f.IsExported()
}

// FieldType returns the type of the named struct field
func (et *EntityType) FieldType(name string) (reflect.Type, bool) {
	if !et.HasField(name) {
		return nil, false
	}
	f, _ := et.goType.FieldByName(name)
	return f.Type, true
}

func (et *EntityType) checkMemberName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if et.FindProperty(name) != nil || et.FindNavigation(name) != nil {
		return fmt.Errorf("%w: %s.%s", ErrDuplicateProperty, et.name, name)
	}
	return nil
}

func (et *EntityType) checkOwnership(props []*Property) error {
	if len(props) == 0 {
		return fmt.Errorf("%w: at least one property is required on %s", ErrEmptyName, et.name)
	}
	for _, p := range props {
		if p == nil || p.declaringEntityType != et {
			name := "<nil>"
			switch {
			case p == nil:
			case p.declaringEntityType == nil:
				name = p.name + " (removed)"
			default:
				name = p.declaringEntityType.name + "." + p.name
			}
			return fmt.Errorf("%w: %s is not declared on %s", ErrForeignMember, name, et.name)
		}
	}
	return nil
}

// AddProperty adds a property. shadow marks properties without a struct field.
func (et *EntityType) AddProperty(name string, goType reflect.Type, shadow bool, source ConfigurationSource) (*Property, error) {
	if err := et.checkMemberName(name); err != nil {
		return nil, err
	}
	if goType == nil {
		return nil, fmt.Errorf("%w: property %s.%s has no type", ErrInvalidType, et.name, name)
	}
	if !shadow {
		fieldType, ok := et.FieldType(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no field %s", ErrInvalidType, et.name, name)
		}
		if fieldType != goType {
			return nil, fmt.Errorf("%w: field %s.%s is %s, not %s", ErrInvalidType, et.name, name, fieldType, goType)
		}
	}

	p := &Property{
		declaringEntityType: et,
		name:                name,
		goType:              goType,
		shadow:              shadow,
		source:              source,
	}
	p.typeSource = source
	et.properties = append(et.properties, p)
	return p, nil
}

// FindProperty returns the named property, or nil
func (et *EntityType) FindProperty(name string) *Property {
	for _, p := range et.properties {
		if p.name == name {
			return p
		}
	}
	return nil
}

// Properties returns the properties in declaration order
func (et *EntityType) Properties() []*Property {
	return append([]*Property(nil), et.properties...)
}

// RemoveProperty removes a property that no key, foreign key or index uses
func (et *EntityType) RemoveProperty(name string) (*Property, error) {
	p := et.FindProperty(name)
	if p == nil {
		return nil, nil
	}
	if len(p.ContainingKeys()) > 0 || len(p.ContainingForeignKeys()) > 0 || len(p.ContainingIndexes()) > 0 {
		return nil, fmt.Errorf("%w: property %s.%s", ErrInUse, et.name, name)
	}
	for i, candidate := range et.properties {
		if candidate == p {
			et.properties = append(et.properties[:i], et.properties[i+1:]...)
			break
		}
	}
	p.declaringEntityType = nil
	return p, nil
}

// SetPrimaryKey makes the key over props the primary key, adding it when missing.
// The previous primary key stays on the entity type as an alternate key and is returned.
func (et *EntityType) SetPrimaryKey(props []*Property, source ConfigurationSource) (*Key, *Key, error) {
	if err := et.checkOwnership(props); err != nil {
		return nil, nil, err
	}
	previous := et.primaryKey
	key := et.FindKey(props)
	if key == nil {
		var err error
		if key, err = et.AddKey(props, source); err != nil {
			return nil, nil, err
		}
	} else {
		key.UpdateSource(source)
	}
	et.primaryKey = key
	et.pkSource.apply(struct{}{}, source)
	if previous == key {
		previous = nil
	}
	return key, previous, nil
}

// ClearPrimaryKey unsets the primary key without removing the key itself
func (et *EntityType) ClearPrimaryKey() *Key {
	previous := et.primaryKey
	et.primaryKey = nil
	et.pkSource.reset()
	return previous
}

// FindPrimaryKey returns the primary key, or nil
func (et *EntityType) FindPrimaryKey() *Key { return et.primaryKey }

// PrimaryKeySource returns the source of the primary key configuration
func (et *EntityType) PrimaryKeySource() (ConfigurationSource, bool) {
	return et.pkSource.sourceOf()
}

// AddKey adds a key over props. Key properties become non-nullable.
func (et *EntityType) AddKey(props []*Property, source ConfigurationSource) (*Key, error) {
	if err := et.checkOwnership(props); err != nil {
		return nil, err
	}
	if et.FindKey(props) != nil {
		return nil, fmt.Errorf("%w: %s(%s)", ErrDuplicateKey, et.name, PropertyNames(props))
	}
	for _, p := range props {
		s := source
		if existing, ok := p.nullable.sourceOf(); ok {
			s = MaxSource(existing, source)
		}
		p.nullable.apply(false, s)
	}
	key := &Key{
		declaringEntityType: et,
		properties:          append([]*Property(nil), props...),
		source:              source,
	}
	et.keys = append(et.keys, key)
	return key, nil
}

// FindKey returns the key over exactly props, or nil
func (et *EntityType) FindKey(props []*Property) *Key {
	for _, key := range et.keys {
		if samePropertyList(key.properties, props) {
			return key
		}
	}
	return nil
}

// Keys returns the primary key first, followed by alternate keys
func (et *EntityType) Keys() []*Key {
	result := make([]*Key, 0, len(et.keys))
	if et.primaryKey != nil {
		result = append(result, et.primaryKey)
	}
	for _, key := range et.keys {
		if key != et.primaryKey {
			result = append(result, key)
		}
	}
	return result
}

// RemoveKey removes a key that no foreign key references
func (et *EntityType) RemoveKey(key *Key) error {
	if key == nil || key.declaringEntityType != et {
		return nil
	}
	if refs := key.ReferencingForeignKeys(); len(refs) > 0 {
		return fmt.Errorf("%w: key %s(%s) is referenced by %s", ErrInUse, et.name, PropertyNames(key.properties), refs[0].DeclaringEntityType().Name())
	}
	for i, candidate := range et.keys {
		if candidate == key {
			et.keys = append(et.keys[:i], et.keys[i+1:]...)
			break
		}
	}
	if et.primaryKey == key {
		et.primaryKey = nil
		et.pkSource.reset()
	}
	return nil
}

// AddForeignKey declares a foreign key on this (dependent) entity type
func (et *EntityType) AddForeignKey(props []*Property, principalKey *Key, source ConfigurationSource) (*ForeignKey, error) {
	if err := et.checkOwnership(props); err != nil {
		return nil, err
	}
	if principalKey == nil {
		return nil, ErrNoPrimaryKey
	}
	for _, existing := range et.foreignKeys {
		if existing.principalKey == principalKey && samePropertyList(existing.properties, props) {
			return nil, fmt.Errorf("%w: %s(%s) -> %s", ErrDuplicateForeignKey, et.name, PropertyNames(props), principalKey.declaringEntityType.name)
		}
	}
	fk := &ForeignKey{
		declaringEntityType: et,
		properties:          append([]*Property(nil), props...),
		principalKey:        principalKey,
		source:              source,
	}
	fk.propertiesSource.apply(struct{}{}, Convention)
	fk.principalKeySource.apply(struct{}{}, Convention)
	et.foreignKeys = append(et.foreignKeys, fk)
	return fk, nil
}

// FindForeignKeys returns the foreign keys declared over exactly props
func (et *EntityType) FindForeignKeys(props []*Property) []*ForeignKey {
	var result []*ForeignKey
	for _, fk := range et.foreignKeys {
		if samePropertyList(fk.properties, props) {
			result = append(result, fk)
		}
	}
	return result
}

// ForeignKeys returns the foreign keys declared on this entity type
func (et *EntityType) ForeignKeys() []*ForeignKey {
	return append([]*ForeignKey(nil), et.foreignKeys...)
}

// RemoveForeignKey removes a foreign key together with its navigations
func (et *EntityType) RemoveForeignKey(fk *ForeignKey) error {
	if fk == nil || fk.declaringEntityType != et {
		return nil
	}
	if fk.dependentToPrincipal != nil {
		fk.dependentToPrincipal.declaringEntityType.removeNavigation(fk.dependentToPrincipal)
	}
	if fk.principalToDependent != nil {
		fk.principalToDependent.declaringEntityType.removeNavigation(fk.principalToDependent)
	}
	for i, candidate := range et.foreignKeys {
		if candidate == fk {
			et.foreignKeys = append(et.foreignKeys[:i], et.foreignKeys[i+1:]...)
			break
		}
	}
	fk.removed = true
	return nil
}

// AddNavigation attaches a navigation named name to fk. The entity type must be the
// dependent when pointsToPrincipal is set and the principal otherwise.
func (et *EntityType) AddNavigation(name string, fk *ForeignKey, pointsToPrincipal bool) (*Navigation, error) {
	if err := et.checkMemberName(name); err != nil {
		return nil, err
	}
	if pointsToPrincipal {
		if fk.declaringEntityType != et {
			return nil, fmt.Errorf("%w: %s.%s must be declared on the dependent %s", ErrNavigationConflict, et.name, name, fk.declaringEntityType.name)
		}
		if fk.dependentToPrincipal != nil {
			return nil, fmt.Errorf("%w: foreign key already has navigation %s", ErrNavigationConflict, fk.dependentToPrincipal.name)
		}
	} else {
		if fk.PrincipalEntityType() != et {
			return nil, fmt.Errorf("%w: %s.%s must be declared on the principal %s", ErrNavigationConflict, et.name, name, fk.PrincipalEntityType().name)
		}
		if fk.principalToDependent != nil {
			return nil, fmt.Errorf("%w: foreign key already has navigation %s", ErrNavigationConflict, fk.principalToDependent.name)
		}
	}

	nav := &Navigation{
		declaringEntityType: et,
		name:                name,
		foreignKey:          fk,
		pointsToPrincipal:   pointsToPrincipal,
	}
	et.navigations = append(et.navigations, nav)
	if pointsToPrincipal {
		fk.dependentToPrincipal = nav
	} else {
		fk.principalToDependent = nav
	}
	return nav, nil
}

// FindNavigation returns the named navigation, or nil
func (et *EntityType) FindNavigation(name string) *Navigation {
	for _, nav := range et.navigations {
		if nav.name == name {
			return nav
		}
	}
	return nil
}

// Navigations returns the navigations declared on this entity type
func (et *EntityType) Navigations() []*Navigation {
	return append([]*Navigation(nil), et.navigations...)
}

// RemoveNavigation detaches a navigation from its foreign key
func (et *EntityType) RemoveNavigation(nav *Navigation) {
	if nav == nil || nav.declaringEntityType != et {
		return
	}
	et.removeNavigation(nav)
}

func (et *EntityType) removeNavigation(nav *Navigation) {
	for i, candidate := range et.navigations {
		if candidate == nav {
			et.navigations = append(et.navigations[:i], et.navigations[i+1:]...)
			break
		}
	}
	if nav.foreignKey.dependentToPrincipal == nav {
		nav.foreignKey.dependentToPrincipal = nil
	}
	if nav.foreignKey.principalToDependent == nav {
		nav.foreignKey.principalToDependent = nil
	}
}

// AddIndex adds a non-unique index over props
func (et *EntityType) AddIndex(props []*Property, source ConfigurationSource) (*Index, error) {
	if err := et.checkOwnership(props); err != nil {
		return nil, err
	}
	if et.FindIndex(props) != nil {
		return nil, fmt.Errorf("%w: %s(%s)", ErrDuplicateIndex, et.name, PropertyNames(props))
	}
	idx := &Index{
		declaringEntityType: et,
		properties:          append([]*Property(nil), props...),
		source:              source,
	}
	et.indexes = append(et.indexes, idx)
	return idx, nil
}

// FindIndex returns the index over exactly props, or nil
func (et *EntityType) FindIndex(props []*Property) *Index {
	for _, idx := range et.indexes {
		if samePropertyList(idx.properties, props) {
			return idx
		}
	}
	return nil
}

// Indexes returns the indexes declared on this entity type
func (et *EntityType) Indexes() []*Index {
	return append([]*Index(nil), et.indexes...)
}

// RemoveIndex removes an index
func (et *EntityType) RemoveIndex(idx *Index) {
	for i, candidate := range et.indexes {
		if candidate == idx {
			et.indexes = append(et.indexes[:i], et.indexes[i+1:]...)
			return
		}
	}
}

// Ignore records that the named member must not be mapped
func (et *EntityType) Ignore(name string, source ConfigurationSource) {
	if existing, ok := et.ignored[name]; ok {
		source = MaxSource(existing, source)
	}
	et.ignored[name] = source
}

// IsIgnored returns the source that ignored the member
func (et *EntityType) IsIgnored(name string) (ConfigurationSource, bool) {
	source, ok := et.ignored[name]
	return source, ok
}

// Unignore forgets the ignore for a member
func (et *EntityType) Unignore(name string) {
	delete(et.ignored, name)
}

// IgnoredMembers returns the names of ignored members
func (et *EntityType) IgnoredMembers() []string {
	names := make([]string, 0, len(et.ignored))
	for name := range et.ignored {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String returns the entity type name
func (et *EntityType) String() string { return et.name }

func samePropertyList(a, b []*Property) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
