package builder

import "github.com/conduit-lang/entityframe/internal/orm/metadata"

// ForeignKeyIndexConvention indexes foreign key properties. The index is unique for
// one-to-one relationships and is skipped when a key already starts with the properties.
type ForeignKeyIndexConvention struct{}

// ForeignKeyAdded adds the index for a new foreign key
func (c *ForeignKeyIndexConvention) ForeignKeyAdded(b *InternalRelationshipBuilder) (*InternalRelationshipBuilder, error) {
	if err := c.ensure(b.Metadata()); err != nil {
		return nil, err
	}
	return b, nil
}

// ForeignKeyChanged moves the index to the new properties
func (c *ForeignKeyIndexConvention) ForeignKeyChanged(b *InternalRelationshipBuilder, previous []*metadata.Property) (*InternalRelationshipBuilder, error) {
	fk := b.Metadata()
	if !sameProperties(previous, fk.Properties()) {
		c.removeIfUnused(fk.DeclaringEntityType(), previous)
	}
	if err := c.ensure(fk); err != nil {
		return nil, err
	}
	return b, nil
}

// ForeignKeyRemoved drops the convention index of a removed foreign key
func (c *ForeignKeyIndexConvention) ForeignKeyRemoved(b *InternalEntityTypeBuilder, fk *metadata.ForeignKey) error {
	c.removeIfUnused(b.Metadata(), fk.Properties())
	return nil
}

func (c *ForeignKeyIndexConvention) ensure(fk *metadata.ForeignKey) error {
	et := fk.DeclaringEntityType()
	props := fk.Properties()
	idx := et.FindIndex(props)

	if coveredByKey(et, props) {
		if idx != nil && idx.Source() == metadata.Convention {
			et.RemoveIndex(idx)
		}
		return nil
	}

	if idx == nil {
		var err error
		if idx, err = et.AddIndex(props, metadata.Convention); err != nil {
			return err
		}
	}
	idx.SetIsUnique(anyUnique(et.FindForeignKeys(props)), metadata.Convention)
	return nil
}

func (c *ForeignKeyIndexConvention) removeIfUnused(et *metadata.EntityType, props []*metadata.Property) {
	idx := et.FindIndex(props)
	if idx == nil || idx.Source() != metadata.Convention {
		return
	}
	if remaining := et.FindForeignKeys(props); len(remaining) > 0 {
		idx.SetIsUnique(anyUnique(remaining), metadata.Convention)
		return
	}
	et.RemoveIndex(idx)
}

func coveredByKey(et *metadata.EntityType, props []*metadata.Property) bool {
	for _, key := range et.Keys() {
		keyProps := key.Properties()
		if len(keyProps) < len(props) {
			continue
		}
		if sameProperties(keyProps[:len(props)], props) {
			return true
		}
	}
	return false
}

func anyUnique(fks []*metadata.ForeignKey) bool {
	for _, fk := range fks {
		if fk.IsUnique() {
			return true
		}
	}
	return false
}
