package builder

import (
	"strings"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

// KeyDiscoveryConvention picks a property named ID or <EntityType>ID as the primary key.
// It never replaces a key configured by a stronger source.
type KeyDiscoveryConvention struct{}

// EntityTypeAdded discovers the primary key of a new entity type
func (c *KeyDiscoveryConvention) EntityTypeAdded(b *InternalEntityTypeBuilder) (*InternalEntityTypeBuilder, error) {
	if err := c.discover(b); err != nil {
		return nil, err
	}
	return b, nil
}

// PropertyAdded re-runs discovery when a property appears
func (c *KeyDiscoveryConvention) PropertyAdded(b *InternalPropertyBuilder) (*InternalPropertyBuilder, error) {
	eb := b.modelBuilder.entityTypeBuilder(b.Metadata().DeclaringEntityType())
	if err := c.discover(eb); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *KeyDiscoveryConvention) discover(b *InternalEntityTypeBuilder) error {
	et := b.Metadata()
	if source, ok := et.PrimaryKeySource(); ok && source != metadata.Convention {
		return nil
	}
	candidate := findKeyCandidate(et)
	if candidate == nil {
		return nil
	}
	_, err := b.PrimaryKeyFromProperties([]*metadata.Property{candidate}, metadata.Convention)
	return err
}

func findKeyCandidate(et *metadata.EntityType) *metadata.Property {
	props := et.Properties()
	for _, p := range props {
		if strings.EqualFold(p.Name(), "id") {
			return p
		}
	}
	for _, p := range props {
		if strings.EqualFold(p.Name(), et.Name()+"id") {
			return p
		}
	}
	return nil
}
