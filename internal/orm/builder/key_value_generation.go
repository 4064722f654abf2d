package builder

import (
	"reflect"

	"github.com/google/uuid"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

var uuidType = reflect.TypeOf(uuid.UUID{})

// KeyValueGenerationConvention turns on value generation for single-property integer
// and uuid primary keys that are not also foreign keys. Integer keys become identity columns.
type KeyValueGenerationConvention struct{}

// PrimaryKeySet resets the previous key and configures the new one
func (c *KeyValueGenerationConvention) PrimaryKeySet(b *InternalEntityTypeBuilder, previous *metadata.Key) error {
	if previous != nil {
		for _, p := range previous.Properties() {
			resetValueGeneration(p)
		}
	}
	c.apply(b.Metadata())
	return nil
}

// ForeignKeyAdded re-evaluates the dependent primary key
func (c *KeyValueGenerationConvention) ForeignKeyAdded(b *InternalRelationshipBuilder) (*InternalRelationshipBuilder, error) {
	c.apply(b.Metadata().DeclaringEntityType())
	return b, nil
}

// ForeignKeyChanged re-evaluates the dependent primary key
func (c *KeyValueGenerationConvention) ForeignKeyChanged(b *InternalRelationshipBuilder, _ []*metadata.Property) (*InternalRelationshipBuilder, error) {
	c.apply(b.Metadata().DeclaringEntityType())
	return b, nil
}

// ForeignKeyRemoved re-evaluates the dependent primary key
func (c *KeyValueGenerationConvention) ForeignKeyRemoved(b *InternalEntityTypeBuilder, _ *metadata.ForeignKey) error {
	c.apply(b.Metadata())
	return nil
}

func (c *KeyValueGenerationConvention) apply(et *metadata.EntityType) {
	pk := et.FindPrimaryKey()
	if pk == nil {
		return
	}
	props := pk.Properties()
	if len(props) != 1 {
		for _, p := range props {
			resetValueGeneration(p)
		}
		return
	}

	p := props[0]
	integer := metadata.IsIntegerType(p.GoType())
	generate := !p.IsForeignKey() && (integer || metadata.UnderlyingType(p.GoType()) == uuidType)
	p.SetGenerateValueOnAdd(generate, metadata.Convention)
	if integer {
		pattern := metadata.StoreGeneratedNone
		if generate {
			pattern = metadata.StoreGeneratedIdentity
		}
		p.SetStoreGeneratedPattern(pattern, metadata.Convention)
	}
}

func resetValueGeneration(p *metadata.Property) {
	p.SetGenerateValueOnAdd(false, metadata.Convention)
	if metadata.IsIntegerType(p.GoType()) {
		p.SetStoreGeneratedPattern(metadata.StoreGeneratedNone, metadata.Convention)
	}
}
