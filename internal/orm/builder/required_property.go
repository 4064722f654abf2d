package builder

import "github.com/conduit-lang/entityframe/internal/orm/metadata"

// RequiredPropertyConvention makes properties of non-nullable Go types required
type RequiredPropertyConvention struct{}

// PropertyAdded sets nullability from the property type
func (c *RequiredPropertyConvention) PropertyAdded(b *InternalPropertyBuilder) (*InternalPropertyBuilder, error) {
	p := b.Metadata()
	if _, err := p.SetIsNullable(metadata.IsNullableType(p.GoType()), metadata.Convention); err != nil {
		return nil, err
	}
	return b, nil
}
