package metadata

import "fmt"

// Key is a set of properties that uniquely identifies an entity
type Key struct {
	Annotations

	declaringEntityType *EntityType
	properties          []*Property
	source              ConfigurationSource
}

// DeclaringEntityType returns the entity type that owns the key
func (k *Key) DeclaringEntityType() *EntityType { return k.declaringEntityType }

// Properties returns the key properties in order
func (k *Key) Properties() []*Property { return append([]*Property(nil), k.properties...) }

// Source returns the configuration source of the key
func (k *Key) Source() ConfigurationSource { return k.source }

// UpdateSource raises the configuration source
func (k *Key) UpdateSource(source ConfigurationSource) {
	k.source = MaxSource(k.source, source)
}

// IsPrimaryKey reports whether this key is the primary key of its entity type
func (k *Key) IsPrimaryKey() bool {
	return k.declaringEntityType != nil && k.declaringEntityType.primaryKey == k
}

// ReferencingForeignKeys returns the foreign keys whose principal key is k
func (k *Key) ReferencingForeignKeys() []*ForeignKey {
	if k.declaringEntityType == nil || k.declaringEntityType.model == nil {
		return nil
	}
	var result []*ForeignKey
	for _, fk := range k.declaringEntityType.model.FindReferencingForeignKeys(k.declaringEntityType) {
		if fk.principalKey == k {
			result = append(result, fk)
		}
	}
	return result
}

// String returns Entity(Prop1, Prop2)
func (k *Key) String() string {
	return fmt.Sprintf("%s(%s)", k.declaringEntityType.name, PropertyNames(k.properties))
}
