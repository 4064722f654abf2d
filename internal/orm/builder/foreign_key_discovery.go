package builder

import (
	"strings"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

// ForeignKeyPropertyDiscoveryConvention replaces convention-created shadow foreign key
// properties with matching properties of the dependent. For a principal key property
// P it looks for <navigation>P, <navigation>Id, <principal>P, <principal>Id and, when P
// already starts with the principal name, P itself. Names compare case-insensitively.
type ForeignKeyPropertyDiscoveryConvention struct{}

// ForeignKeyAdded discovers properties for a new relationship
func (c *ForeignKeyPropertyDiscoveryConvention) ForeignKeyAdded(b *InternalRelationshipBuilder) (*InternalRelationshipBuilder, error) {
	return c.discover(b)
}

// ForeignKeyChanged discovers properties after the principal key changed
func (c *ForeignKeyPropertyDiscoveryConvention) ForeignKeyChanged(b *InternalRelationshipBuilder, _ []*metadata.Property) (*InternalRelationshipBuilder, error) {
	return c.discover(b)
}

// PropertyAdded re-runs discovery for convention foreign keys of the entity type
func (c *ForeignKeyPropertyDiscoveryConvention) PropertyAdded(b *InternalPropertyBuilder) (*InternalPropertyBuilder, error) {
	p := b.Metadata()
	for _, fk := range p.DeclaringEntityType().ForeignKeys() {
		if fk.PropertiesSource() != metadata.Convention || containsProperty(fk.Properties(), p) {
			continue
		}
		if _, err := c.discover(b.modelBuilder.RelationshipBuilder(fk)); err != nil {
			return nil, err
		}
		if p.DeclaringEntityType() == nil {
			return nil, nil
		}
	}
	return b, nil
}

// PrimaryKeySet re-runs discovery for foreign keys that reference the new primary key
func (c *ForeignKeyPropertyDiscoveryConvention) PrimaryKeySet(b *InternalEntityTypeBuilder, _ *metadata.Key) error {
	pk := b.Metadata().FindPrimaryKey()
	if pk == nil {
		return nil
	}
	for _, fk := range pk.ReferencingForeignKeys() {
		if fk.IsRemoved() {
			continue
		}
		if _, err := c.discover(b.modelBuilder.RelationshipBuilder(fk)); err != nil {
			return err
		}
	}
	return nil
}

func (c *ForeignKeyPropertyDiscoveryConvention) discover(b *InternalRelationshipBuilder) (*InternalRelationshipBuilder, error) {
	fk := b.Metadata()
	if fk.IsRemoved() || fk.PropertiesSource() != metadata.Convention {
		return b, nil
	}

	dependent := fk.DeclaringEntityType()
	principal := fk.PrincipalEntityType()
	principalProps := fk.PrincipalKey().Properties()

	candidates := findForeignKeyCandidates(dependent, navigationName(fk.DependentToPrincipal()), principal.Name(), principalProps, fk.IsUnique())

	if candidates == nil && fk.IsUnique() && !fk.IsSelfReferencing() {
		if c.shouldInvert(fk) {
			return b.Invert(metadata.Convention)
		}
		// one-to-one relationships can share the primary key
		if pk := dependent.FindPrimaryKey(); pk != nil && compatibleProperties(pk.Properties(), principalProps) {
			candidates = pk.Properties()
		}
	}

	if candidates == nil || sameProperties(candidates, fk.Properties()) {
		return b, nil
	}
	return b.HasForeignKey(candidates, metadata.Convention)
}

// shouldInvert reports whether a convention one-to-one relationship has matching
// properties on the principal side only
func (c *ForeignKeyPropertyDiscoveryConvention) shouldInvert(fk *metadata.ForeignKey) bool {
	if fk.Source() != metadata.Convention || fk.PrincipalKeySource() != metadata.Convention {
		return false
	}
	dependent := fk.DeclaringEntityType()
	pk := dependent.FindPrimaryKey()
	if pk == nil {
		return false
	}
	inverse := findForeignKeyCandidates(fk.PrincipalEntityType(), navigationName(fk.PrincipalToDependent()), dependent.Name(), pk.Properties(), true)
	return inverse != nil
}

// findForeignKeyCandidates returns dependent properties matching principalProps by
// name and type, or nil
func findForeignKeyCandidates(dependent *metadata.EntityType, navigation, principalName string, principalProps []*metadata.Property, unique bool) []*metadata.Property {
	single := len(principalProps) == 1
	result := make([]*metadata.Property, 0, len(principalProps))

	for _, pp := range principalProps {
		var names []string
		if navigation != "" {
			names = append(names, navigation+pp.Name())
			if single {
				names = append(names, navigation+"Id")
			}
		}
		names = append(names, principalName+pp.Name())
		if single {
			names = append(names, principalName+"Id")
		}
		if strings.HasPrefix(strings.ToLower(pp.Name()), strings.ToLower(principalName)) {
			names = append(names, pp.Name())
		}

		match := findPropertyFold(dependent, names, pp, result)
		if match == nil {
			return nil
		}
		result = append(result, match)
	}

	// a one-to-many foreign key cannot be the whole primary key
	if pk := dependent.FindPrimaryKey(); !unique && pk != nil && sameProperties(pk.Properties(), result) {
		return nil
	}
	return result
}

func findPropertyFold(et *metadata.EntityType, names []string, principalProp *metadata.Property, exclude []*metadata.Property) *metadata.Property {
	props := et.Properties()
	for _, name := range names {
		for _, p := range props {
			if !strings.EqualFold(p.Name(), name) || containsProperty(exclude, p) {
				continue
			}
			// shadow properties created for a foreign key are never candidates
			if p.IsShadow() && p.Source() == metadata.Convention {
				continue
			}
			if metadata.AreCompatible(p.GoType(), principalProp.GoType()) {
				return p
			}
		}
	}
	return nil
}
