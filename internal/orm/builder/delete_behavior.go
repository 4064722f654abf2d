package builder

import "github.com/conduit-lang/entityframe/internal/orm/metadata"

// DeleteBehaviorConvention cascades required relationships and nulls out optional ones
type DeleteBehaviorConvention struct{}

// ForeignKeyAdded sets the default delete behavior
func (c *DeleteBehaviorConvention) ForeignKeyAdded(b *InternalRelationshipBuilder) (*InternalRelationshipBuilder, error) {
	c.apply(b.Metadata())
	return b, nil
}

// ForeignKeyChanged follows requiredness changes
func (c *DeleteBehaviorConvention) ForeignKeyChanged(b *InternalRelationshipBuilder, _ []*metadata.Property) (*InternalRelationshipBuilder, error) {
	c.apply(b.Metadata())
	return b, nil
}

func (c *DeleteBehaviorConvention) apply(fk *metadata.ForeignKey) {
	behavior := metadata.SetNull
	if fk.IsRequired() {
		behavior = metadata.Cascade
	}
	fk.SetDeleteBehavior(behavior, metadata.Convention)
}
