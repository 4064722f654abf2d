package builder

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

// InternalEntityTypeBuilder applies source-aware configuration to one entity type
type InternalEntityTypeBuilder struct {
	metadata     *metadata.EntityType
	modelBuilder *InternalModelBuilder
}

// Metadata returns the entity type being configured
func (b *InternalEntityTypeBuilder) Metadata() *metadata.EntityType {
	return b.metadata
}

// ModelBuilder returns the owning model builder
func (b *InternalEntityTypeBuilder) ModelBuilder() *InternalModelBuilder {
	return b.modelBuilder
}

// Annotation sets an entity type annotation
func (b *InternalEntityTypeBuilder) Annotation(name string, value interface{}, source metadata.ConfigurationSource) bool {
	return b.metadata.SetAnnotationFrom(name, value, source)
}

// Property gets or adds a property. goType may be nil when the struct has a field
// with that name or the property already exists.
func (b *InternalEntityTypeBuilder) Property(name string, goType reflect.Type, source metadata.ConfigurationSource) (*InternalPropertyBuilder, error) {
	et := b.metadata
	if ignored, ok := et.IsIgnored(name); ok {
		if !source.Overrides(ignored) {
			return nil, nil
		}
		et.Unignore(name)
	}

	if p := et.FindProperty(name); p != nil {
		if goType != nil && goType != p.GoType() {
			changed, err := p.SetGoType(goType, source)
			if err != nil {
				return nil, err
			}
			if !changed {
				return nil, nil
			}
		}
		p.UpdateSource(source)
		return b.propertyBuilder(p), nil
	}

	shadow := true
	if fieldType, ok := et.FieldType(name); ok {
		shadow = false
		if !metadata.IsScalarType(fieldType) {
			return nil, fmt.Errorf("%w: field %s.%s of type %s is not a scalar", metadata.ErrInvalidType, et.Name(), name, fieldType)
		}
		if goType == nil {
			goType = fieldType
		}
	}
	if goType == nil {
		return nil, fmt.Errorf("%w: shadow property %s.%s needs a type", metadata.ErrInvalidType, et.Name(), name)
	}

	p, err := et.AddProperty(name, goType, shadow, source)
	if err != nil {
		return nil, err
	}
	return b.modelBuilder.conventions.OnPropertyAdded(b.propertyBuilder(p))
}

// Properties gets or adds each named property. It returns nil without an error when
// one of them is ignored with a stronger source.
func (b *InternalEntityTypeBuilder) Properties(names []string, source metadata.ConfigurationSource) ([]*metadata.Property, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no properties given for %s", metadata.ErrEmptyName, b.metadata.Name())
	}
	props := make([]*metadata.Property, 0, len(names))
	for _, name := range names {
		pb, err := b.Property(name, nil, source)
		if err != nil {
			return nil, err
		}
		if pb == nil {
			return nil, nil
		}
		props = append(props, pb.metadata)
	}
	return props, nil
}

// PrimaryKey sets the primary key to the named properties
func (b *InternalEntityTypeBuilder) PrimaryKey(names []string, source metadata.ConfigurationSource) (*InternalKeyBuilder, error) {
	props, err := b.Properties(names, source)
	if err != nil || props == nil {
		return nil, err
	}
	return b.PrimaryKeyFromProperties(props, source)
}

// PrimaryKeyFromProperties sets the primary key. Foreign keys that referenced the
// previous primary key are moved to the new one when their configuration allows it;
// otherwise the previous key is kept as an alternate key.
func (b *InternalEntityTypeBuilder) PrimaryKeyFromProperties(props []*metadata.Property, source metadata.ConfigurationSource) (*InternalKeyBuilder, error) {
	et := b.metadata
	if current := et.FindPrimaryKey(); current != nil && sameProperties(current.Properties(), props) {
		if _, _, err := et.SetPrimaryKey(props, source); err != nil {
			return nil, err
		}
		return b.keyBuilder(current), nil
	}
	if existing, ok := et.PrimaryKeySource(); ok && !source.Overrides(existing) {
		return nil, nil
	}

	added := et.FindKey(props) == nil
	key, previous, err := et.SetPrimaryKey(props, source)
	if err != nil {
		return nil, err
	}

	kb := b.keyBuilder(key)
	if added {
		if kb, err = b.modelBuilder.conventions.OnKeyAdded(kb); err != nil {
			return nil, err
		}
	}

	if previous != nil {
		if err := b.retargetForeignKeys(previous, key); err != nil {
			return nil, err
		}
		if len(previous.ReferencingForeignKeys()) == 0 {
			if err := et.RemoveKey(previous); err != nil {
				return nil, err
			}
			b.removeShadowPropertiesIfUnused(previous.Properties())
		}
	}

	if err := b.modelBuilder.conventions.OnPrimaryKeySet(b, previous); err != nil {
		return nil, err
	}
	return kb, nil
}

func (b *InternalEntityTypeBuilder) retargetForeignKeys(previous, key *metadata.Key) error {
	for _, fk := range previous.ReferencingForeignKeys() {
		if fk.PrincipalKeySource() != metadata.Convention {
			continue
		}
		rb := b.modelBuilder.RelationshipBuilder(fk)
		if _, err := rb.retarget(key); err != nil {
			return err
		}
	}
	return nil
}

// HasKey gets or adds an alternate key over the named properties
func (b *InternalEntityTypeBuilder) HasKey(names []string, source metadata.ConfigurationSource) (*InternalKeyBuilder, error) {
	props, err := b.Properties(names, source)
	if err != nil || props == nil {
		return nil, err
	}
	return b.HasKeyFromProperties(props, source)
}

// HasKeyFromProperties gets or adds a key over props
func (b *InternalEntityTypeBuilder) HasKeyFromProperties(props []*metadata.Property, source metadata.ConfigurationSource) (*InternalKeyBuilder, error) {
	if key := b.metadata.FindKey(props); key != nil {
		key.UpdateSource(source)
		return b.keyBuilder(key), nil
	}
	key, err := b.metadata.AddKey(props, source)
	if err != nil {
		return nil, err
	}
	return b.modelBuilder.conventions.OnKeyAdded(b.keyBuilder(key))
}

// HasIndex gets or adds an index over the named properties
func (b *InternalEntityTypeBuilder) HasIndex(names []string, source metadata.ConfigurationSource) (*InternalIndexBuilder, error) {
	props, err := b.Properties(names, source)
	if err != nil || props == nil {
		return nil, err
	}
	if idx := b.metadata.FindIndex(props); idx != nil {
		idx.UpdateSource(source)
		return &InternalIndexBuilder{metadata: idx, modelBuilder: b.modelBuilder}, nil
	}
	idx, err := b.metadata.AddIndex(props, source)
	if err != nil {
		return nil, err
	}
	return &InternalIndexBuilder{metadata: idx, modelBuilder: b.modelBuilder}, nil
}

// Ignore removes the named property or navigation and records the ignore.
// Keys, foreign keys and indexes that use the property are removed with it when
// the source allows; otherwise nothing changes and false is returned.
func (b *InternalEntityTypeBuilder) Ignore(name string, source metadata.ConfigurationSource) (bool, error) {
	et := b.metadata
	if p := et.FindProperty(name); p != nil {
		if !source.Overrides(p.Source()) || !b.canRelease(p, source) {
			return false, nil
		}
		rederive := relationshipsOf(p)
		if err := b.release(p); err != nil {
			return false, err
		}
		if _, err := et.RemoveProperty(name); err != nil {
			return false, err
		}
		et.Ignore(name, source)
		for _, r := range rederive {
			if err := b.rederive(r); err != nil {
				return false, err
			}
		}
		return true, nil
	} else if nav := et.FindNavigation(name); nav != nil {
		fk := nav.ForeignKey()
		if !source.Overrides(fk.Source()) {
			return false, nil
		}
		et.RemoveNavigation(nav)
		if fk.Source() == metadata.Convention && fk.DependentToPrincipal() == nil && fk.PrincipalToDependent() == nil {
			dependent := b.modelBuilder.entityTypeBuilder(fk.DeclaringEntityType())
			if err := dependent.removeForeignKey(fk); err != nil {
				return false, err
			}
		}
	}
	et.Ignore(name, source)
	return true, nil
}

func (b *InternalEntityTypeBuilder) canRelease(p *metadata.Property, source metadata.ConfigurationSource) bool {
	for _, fk := range p.ContainingForeignKeys() {
		if !source.Overrides(fk.Source()) {
			return false
		}
	}
	for _, idx := range p.ContainingIndexes() {
		if !source.Overrides(idx.Source()) {
			return false
		}
	}
	for _, key := range p.ContainingKeys() {
		if !source.Overrides(key.Source()) {
			return false
		}
		for _, fk := range key.ReferencingForeignKeys() {
			if !source.Overrides(fk.Source()) {
				return false
			}
		}
	}
	return true
}

// relationshipSnapshot is what is kept of a relationship whose foreign key
// properties are being removed
type relationshipSnapshot struct {
	principal      *metadata.EntityType
	toPrincipal    string
	toDependent    string
	unique         bool
	source         metadata.ConfigurationSource
	required       bool
	requiredSource metadata.ConfigurationSource
	hasRequired    bool
	deleteBehavior metadata.DeleteBehavior
	deleteSource   metadata.ConfigurationSource
	hasDelete      bool
}

// relationshipsOf returns the navigable relationships that use p as a foreign key property
func relationshipsOf(p *metadata.Property) []relationshipSnapshot {
	var snapshots []relationshipSnapshot
	for _, fk := range p.ContainingForeignKeys() {
		if fk.DeclaringEntityType() != p.DeclaringEntityType() {
			continue
		}
		toPrincipal, toDependent := navigationName(fk.DependentToPrincipal()), navigationName(fk.PrincipalToDependent())
		if toPrincipal == "" && toDependent == "" {
			continue
		}
		r := relationshipSnapshot{
			principal:   fk.PrincipalEntityType(),
			toPrincipal: toPrincipal,
			toDependent: toDependent,
			unique:      fk.IsUnique(),
			source:      fk.Source(),
			required:    fk.IsRequired(),
		}
		r.requiredSource, r.hasRequired = fk.RequiredSource()
		r.deleteBehavior = fk.DeleteBehavior()
		r.deleteSource, r.hasDelete = fk.DeleteBehaviorSource()
		snapshots = append(snapshots, r)
	}
	return snapshots
}

// rederive recreates a relationship on the same navigations after its foreign key
// properties were removed. The new foreign key gets convention shadow properties.
func (b *InternalEntityTypeBuilder) rederive(r relationshipSnapshot) error {
	if b.modelBuilder.model.FindEntityType(r.principal.Name()) != r.principal || r.principal.FindPrimaryKey() == nil {
		return nil
	}
	principal := b.modelBuilder.entityTypeBuilder(r.principal)
	rb, err := b.Relationship(principal, r.toPrincipal, r.toDependent, r.unique, r.source)
	if err != nil || rb == nil {
		return err
	}
	if r.hasRequired && r.requiredSource != metadata.Convention {
		if rb, err = rb.Required(r.required, r.requiredSource); err != nil || rb == nil {
			return err
		}
	}
	if r.hasDelete && r.deleteSource != metadata.Convention {
		rb.OnDelete(r.deleteBehavior, r.deleteSource)
	}
	return nil
}

func (b *InternalEntityTypeBuilder) release(p *metadata.Property) error {
	for _, fk := range p.ContainingForeignKeys() {
		if err := b.removeForeignKey(fk); err != nil {
			return err
		}
	}
	for _, key := range p.ContainingKeys() {
		for _, fk := range key.ReferencingForeignKeys() {
			dependent := b.modelBuilder.entityTypeBuilder(fk.DeclaringEntityType())
			if err := dependent.removeForeignKey(fk); err != nil {
				return err
			}
		}
		if err := b.metadata.RemoveKey(key); err != nil {
			return err
		}
	}
	for _, idx := range p.ContainingIndexes() {
		b.metadata.RemoveIndex(idx)
	}
	return nil
}

// Relationship gets or creates a foreign key from this (dependent) entity type to
// principal. Empty navigation names mean no navigation on that side.
func (b *InternalEntityTypeBuilder) Relationship(
	principal *InternalEntityTypeBuilder,
	navToPrincipal, navToDependent string,
	unique bool,
	source metadata.ConfigurationSource,
) (*InternalRelationshipBuilder, error) {
	dependentType := b.metadata
	principalType := principal.metadata

	if !unignoreMember(dependentType, navToPrincipal, source) || !unignoreMember(principalType, navToDependent, source) {
		return nil, nil
	}

	existing, reversed := b.findRelationship(principalType, navToPrincipal, navToDependent)
	if existing != nil {
		rb := b.modelBuilder.RelationshipBuilder(existing)
		if reversed {
			inverted, err := rb.Invert(source)
			if err != nil || inverted == nil {
				return nil, err
			}
			rb = inverted
		}
		return rb.attach(navToPrincipal, navToDependent, unique, source)
	}

	pk := principalType.FindPrimaryKey()
	if pk == nil {
		return nil, fmt.Errorf("%w: principal entity type %s has no primary key", metadata.ErrNoPrimaryKey, principalType.Name())
	}

	if navToPrincipal != "" {
		if ok, err := b.freeNavigationName(navToPrincipal, source); !ok || err != nil {
			return nil, err
		}
	}
	if navToDependent != "" {
		if ok, err := principal.freeNavigationName(navToDependent, source); !ok || err != nil {
			return nil, err
		}
	}

	baseName := navToPrincipal
	if baseName == "" {
		baseName = principalType.Name()
	}
	props, err := b.createForeignKeyProperties(baseName, pk.Properties(), false)
	if err != nil {
		return nil, err
	}

	fk, err := dependentType.AddForeignKey(props, pk, source)
	if err != nil {
		return nil, err
	}
	fk.SetIsUnique(unique, source)

	if navToPrincipal != "" {
		if err := b.addNavigation(navToPrincipal, fk, true); err != nil {
			return nil, err
		}
	}
	if navToDependent != "" {
		if err := principal.addNavigation(navToDependent, fk, false); err != nil {
			return nil, err
		}
	}

	return b.modelBuilder.conventions.OnForeignKeyAdded(b.modelBuilder.RelationshipBuilder(fk))
}

// findRelationship returns a foreign key between the two entity types that already
// uses one of the navigations. reversed is set when the match is a one-to-one
// relationship declared in the opposite direction.
func (b *InternalEntityTypeBuilder) findRelationship(principal *metadata.EntityType, navToPrincipal, navToDependent string) (*metadata.ForeignKey, bool) {
	dependent := b.metadata
	if navToPrincipal != "" {
		if nav := dependent.FindNavigation(navToPrincipal); nav != nil {
			fk := nav.ForeignKey()
			if nav.PointsToPrincipal() && fk.PrincipalEntityType() == principal &&
				(navToDependent == "" || fk.PrincipalToDependent() == nil || fk.PrincipalToDependent().Name() == navToDependent) {
				return fk, false
			}
			if !nav.PointsToPrincipal() && fk.IsUnique() && fk.DeclaringEntityType() == principal &&
				(navToDependent == "" || fk.DependentToPrincipal() == nil || fk.DependentToPrincipal().Name() == navToDependent) {
				return fk, true
			}
		}
	}
	if navToDependent != "" {
		if nav := principal.FindNavigation(navToDependent); nav != nil {
			fk := nav.ForeignKey()
			if !nav.PointsToPrincipal() && fk.DeclaringEntityType() == dependent &&
				(navToPrincipal == "" || fk.DependentToPrincipal() == nil || fk.DependentToPrincipal().Name() == navToPrincipal) {
				return fk, false
			}
			if nav.PointsToPrincipal() && fk.IsUnique() && fk.PrincipalEntityType() == dependent &&
				(navToPrincipal == "" || fk.PrincipalToDependent() == nil || fk.PrincipalToDependent().Name() == navToPrincipal) {
				return fk, true
			}
		}
	}
	return nil, false
}

// freeNavigationName detaches a navigation with the given name from a weaker relationship
func (b *InternalEntityTypeBuilder) freeNavigationName(name string, source metadata.ConfigurationSource) (bool, error) {
	nav := b.metadata.FindNavigation(name)
	if nav == nil {
		return true, nil
	}
	fk := nav.ForeignKey()
	if !source.Overrides(fk.Source()) {
		return false, nil
	}
	b.metadata.RemoveNavigation(nav)
	if fk.Source() == metadata.Convention && fk.DependentToPrincipal() == nil && fk.PrincipalToDependent() == nil {
		dependent := b.modelBuilder.entityTypeBuilder(fk.DeclaringEntityType())
		if err := dependent.removeForeignKey(fk); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (b *InternalEntityTypeBuilder) addNavigation(name string, fk *metadata.ForeignKey, pointsToPrincipal bool) error {
	et := b.metadata
	if !et.IsShadow() && !et.HasField(name) {
		return fmt.Errorf("%w: %s has no field %s for a navigation", metadata.ErrNavigationConflict, et.Name(), name)
	}
	_, err := et.AddNavigation(name, fk, pointsToPrincipal)
	return err
}

// createForeignKeyProperties adds shadow properties named baseName+<principal property>
// typed after the principal key
func (b *InternalEntityTypeBuilder) createForeignKeyProperties(baseName string, principalProps []*metadata.Property, required bool) ([]*metadata.Property, error) {
	props := make([]*metadata.Property, 0, len(principalProps))
	for _, pp := range principalProps {
		name := b.uniqueMemberName(baseName + pp.Name())
		pb, err := b.Property(name, pp.GoType(), metadata.Convention)
		if err != nil {
			return nil, err
		}
		if pb == nil {
			return nil, fmt.Errorf("%w: could not create foreign key property %s.%s", metadata.ErrInvalidType, b.metadata.Name(), name)
		}
		if _, err := pb.metadata.SetIsNullable(!required, metadata.Convention); err != nil {
			return nil, err
		}
		props = append(props, pb.metadata)
	}
	return props, nil
}

func (b *InternalEntityTypeBuilder) uniqueMemberName(name string) string {
	et := b.metadata
	taken := func(candidate string) bool {
		if et.FindProperty(candidate) != nil || et.FindNavigation(candidate) != nil || et.HasField(candidate) {
			return true
		}
		_, ignored := et.IsIgnored(candidate)
		return ignored
	}
	if !taken(name) {
		return name
	}
	for i := 1; ; i++ {
		candidate := name + strconv.Itoa(i)
		if !taken(candidate) {
			return candidate
		}
	}
}

// RemoveForeignKey removes a foreign key declared on this entity type when the source allows
func (b *InternalEntityTypeBuilder) RemoveForeignKey(fk *metadata.ForeignKey, source metadata.ConfigurationSource) (bool, error) {
	if !source.Overrides(fk.Source()) {
		return false, nil
	}
	if err := b.removeForeignKey(fk); err != nil {
		return false, err
	}
	return true, nil
}

func (b *InternalEntityTypeBuilder) removeForeignKey(fk *metadata.ForeignKey) error {
	props := fk.Properties()
	principalKey := fk.PrincipalKey()
	if err := b.metadata.RemoveForeignKey(fk); err != nil {
		return err
	}
	if err := b.modelBuilder.conventions.OnForeignKeyRemoved(b, fk); err != nil {
		return err
	}
	b.removeShadowPropertiesIfUnused(props)
	b.modelBuilder.removeKeyIfUnused(principalKey)
	return nil
}

// removeKeyIfUnused drops a convention alternate key that no foreign key references
func (b *InternalModelBuilder) removeKeyIfUnused(key *metadata.Key) {
	if key.IsPrimaryKey() || key.Source() != metadata.Convention || len(key.ReferencingForeignKeys()) > 0 {
		return
	}
	et := key.DeclaringEntityType()
	if err := et.RemoveKey(key); err != nil {
		return
	}
	b.entityTypeBuilder(et).removeShadowPropertiesIfUnused(key.Properties())
}

// removeShadowPropertiesIfUnused drops convention-created shadow properties that
// nothing refers to anymore
func (b *InternalEntityTypeBuilder) removeShadowPropertiesIfUnused(props []*metadata.Property) {
	for _, p := range props {
		if p.DeclaringEntityType() != b.metadata || !p.IsShadow() || p.Source() != metadata.Convention {
			continue
		}
		if len(p.ContainingKeys()) > 0 || len(p.ContainingForeignKeys()) > 0 || len(p.ContainingIndexes()) > 0 {
			continue
		}
		_, _ = b.metadata.RemoveProperty(p.Name())
	}
}

func (b *InternalEntityTypeBuilder) propertyBuilder(p *metadata.Property) *InternalPropertyBuilder {
	return &InternalPropertyBuilder{metadata: p, modelBuilder: b.modelBuilder}
}

func (b *InternalEntityTypeBuilder) keyBuilder(k *metadata.Key) *InternalKeyBuilder {
	return &InternalKeyBuilder{metadata: k, modelBuilder: b.modelBuilder}
}

func unignoreMember(et *metadata.EntityType, name string, source metadata.ConfigurationSource) bool {
	if name == "" {
		return true
	}
	if ignored, ok := et.IsIgnored(name); ok {
		if !source.Overrides(ignored) {
			return false
		}
		et.Unignore(name)
	}
	return true
}

func sameProperties(a, b []*metadata.Property) bool {
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

func containsProperty(props []*metadata.Property, p *metadata.Property) bool {
	for _, candidate := range props {
		if candidate == p {
			return true
		}
	}
	return false
}

// compatibleProperties reports whether dependent properties can reference principal properties
func compatibleProperties(dependent, principal []*metadata.Property) bool {
	if len(dependent) != len(principal) {
		return false
	}
	for i := range dependent {
		if !metadata.AreCompatible(dependent[i].GoType(), principal[i].GoType()) {
			return false
		}
	}
	return true
}
