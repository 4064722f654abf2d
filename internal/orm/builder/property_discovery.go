package builder

import "github.com/conduit-lang/entityframe/internal/orm/metadata"

// PropertyDiscoveryConvention maps the scalar fields of a struct entity type to properties
type PropertyDiscoveryConvention struct {
	inspector *TypeInspector
}

// NewPropertyDiscoveryConvention creates the convention
func NewPropertyDiscoveryConvention(inspector *TypeInspector) *PropertyDiscoveryConvention {
	return &PropertyDiscoveryConvention{inspector: inspector}
}

// EntityTypeAdded adds a convention property for every scalar field
func (c *PropertyDiscoveryConvention) EntityTypeAdded(b *InternalEntityTypeBuilder) (*InternalEntityTypeBuilder, error) {
	et := b.Metadata()
	if et.IsShadow() {
		return b, nil
	}
	for _, f := range c.inspector.ScalarFields(et.GoType()) {
		if _, ignored := et.IsIgnored(f.Name); ignored {
			continue
		}
		if _, err := b.Property(f.Name, f.Type, metadata.Convention); err != nil {
			return nil, err
		}
	}
	return b, nil
}
