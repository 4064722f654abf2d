package metadata

// Index is an ordered set of properties indexed by the store
type Index struct {
	Annotations

	declaringEntityType *EntityType
	properties          []*Property
	source              ConfigurationSource
	unique              facet[bool]
}

// DeclaringEntityType returns the entity type that owns the index
func (i *Index) DeclaringEntityType() *EntityType { return i.declaringEntityType }

// Properties returns the indexed properties in order
func (i *Index) Properties() []*Property { return append([]*Property(nil), i.properties...) }

// Source returns the configuration source of the index
func (i *Index) Source() ConfigurationSource { return i.source }

// UpdateSource raises the configuration source
func (i *Index) UpdateSource(source ConfigurationSource) {
	i.source = MaxSource(i.source, source)
}

// IsUnique reports whether the index enforces uniqueness
func (i *Index) IsUnique() bool {
	v, _ := i.unique.get()
	return v
}

// SetIsUnique configures uniqueness
func (i *Index) SetIsUnique(unique bool, source ConfigurationSource) bool {
	return i.unique.apply(unique, source)
}
