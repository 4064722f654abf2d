package builder

import (
	"reflect"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

// RelationshipDiscoveryConvention creates relationships from navigation fields.
// A struct pointer is a reference and a slice of structs is a collection. When the
// two entity types each have exactly one navigation to the other, the navigations
// are paired into one relationship.
type RelationshipDiscoveryConvention struct {
	inspector *TypeInspector
}

// NewRelationshipDiscoveryConvention creates the convention
func NewRelationshipDiscoveryConvention(inspector *TypeInspector) *RelationshipDiscoveryConvention {
	return &RelationshipDiscoveryConvention{inspector: inspector}
}

// EntityTypeAdded discovers the relationships of a struct entity type, adding the
// entity types it reaches
func (c *RelationshipDiscoveryConvention) EntityTypeAdded(b *InternalEntityTypeBuilder) (*InternalEntityTypeBuilder, error) {
	et := b.Metadata()
	if et.IsShadow() {
		return b, nil
	}

	navs := c.inspector.NavigationFields(et.GoType())
	for _, nav := range navs {
		if !c.available(et, nav.Name) {
			continue
		}

		target, err := b.ModelBuilder().EntityForType(nav.Target, metadata.Convention)
		if err != nil {
			return nil, err
		}
		if target == nil || et.Model() == nil {
			continue
		}
		// the target's own discovery may already have paired this navigation
		if !c.available(et, nav.Name) {
			continue
		}

		inverse, ok := c.findInverse(et, nav, navs, target.Metadata())
		if err := c.createRelationship(b, target, nav, inverse, ok); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// PrimaryKeySet retries discovery once an explicit primary key makes an entity type
// usable as a principal
func (c *RelationshipDiscoveryConvention) PrimaryKeySet(b *InternalEntityTypeBuilder, previous *metadata.Key) error {
	et := b.Metadata()
	if source, _ := et.PrimaryKeySource(); source != metadata.Explicit || previous != nil || et.IsShadow() {
		return nil
	}
	if _, err := c.EntityTypeAdded(b); err != nil {
		return err
	}
	for _, other := range et.Model().EntityTypes() {
		if other == et || other.IsShadow() {
			continue
		}
		for _, nav := range c.inspector.NavigationFields(other.GoType()) {
			if nav.Target == et.GoType() && c.available(other, nav.Name) {
				if _, err := c.EntityTypeAdded(b.ModelBuilder().EntityTypeBuilder(other)); err != nil {
					return err
				}
				break
			}
		}
	}
	return nil
}

func (c *RelationshipDiscoveryConvention) available(et *metadata.EntityType, name string) bool {
	if et.FindNavigation(name) != nil || et.FindProperty(name) != nil {
		return false
	}
	_, ignored := et.IsIgnored(name)
	return !ignored
}

// findInverse returns the single navigation on target pointing back to et, provided et
// has a single navigation to target
func (c *RelationshipDiscoveryConvention) findInverse(et *metadata.EntityType, nav NavigationField, navs []NavigationField, target *metadata.EntityType) (NavigationField, bool) {
	if target.IsShadow() || (countTargets(navs, nav.Target) != 1 && target != et) {
		return NavigationField{}, false
	}

	var candidates []NavigationField
	for _, inverse := range c.inspector.NavigationFields(target.GoType()) {
		if inverse.Target != et.GoType() {
			continue
		}
		if target == et && inverse.Name == nav.Name {
			continue
		}
		if _, ignored := target.IsIgnored(inverse.Name); ignored {
			continue
		}
		candidates = append(candidates, inverse)
	}
	if len(candidates) != 1 {
		return NavigationField{}, false
	}
	if target == et {
		// a self reference pairs only one reference with one collection
		if countTargets(navs, nav.Target) != 2 || candidates[0].IsCollection == nav.IsCollection {
			return NavigationField{}, false
		}
	}
	return candidates[0], true
}

func (c *RelationshipDiscoveryConvention) createRelationship(
	b, target *InternalEntityTypeBuilder,
	nav, inverse NavigationField,
	paired bool,
) error {
	var err error
	switch {
	case paired && nav.IsCollection && inverse.IsCollection:
		// many-to-many needs an explicit join entity type
		return nil
	case paired && nav.IsCollection:
		if !hasPrimaryKey(b) {
			return nil
		}
		_, err = target.Relationship(b, inverse.Name, nav.Name, false, metadata.Convention)
	case paired && inverse.IsCollection:
		if !hasPrimaryKey(target) {
			return nil
		}
		_, err = b.Relationship(target, nav.Name, inverse.Name, false, metadata.Convention)
	case paired:
		if !hasPrimaryKey(target) {
			return nil
		}
		_, err = b.Relationship(target, nav.Name, inverse.Name, true, metadata.Convention)
	case nav.IsCollection:
		if !hasPrimaryKey(b) {
			return nil
		}
		_, err = target.Relationship(b, "", nav.Name, false, metadata.Convention)
	default:
		if !hasPrimaryKey(target) {
			return nil
		}
		_, err = b.Relationship(target, nav.Name, "", false, metadata.Convention)
	}
	return err
}

func hasPrimaryKey(b *InternalEntityTypeBuilder) bool {
	return b.Metadata().FindPrimaryKey() != nil
}

func countTargets(navs []NavigationField, target reflect.Type) int {
	count := 0
	for _, nav := range navs {
		if nav.Target == target {
			count++
		}
	}
	return count
}
