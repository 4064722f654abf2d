package metadata

import (
	"fmt"
	"reflect"
)

// StoreGeneratedPattern describes how the store produces a column value
type StoreGeneratedPattern int

const (
	// StoreGeneratedNone means the application always supplies the value
	StoreGeneratedNone StoreGeneratedPattern = iota
	// StoreGeneratedIdentity means the store generates the value on insert
	StoreGeneratedIdentity
	// StoreGeneratedComputed means the store computes the value on insert and update
	StoreGeneratedComputed
)

// String returns the string representation of the pattern
func (p StoreGeneratedPattern) String() string {
	switch p {
	case StoreGeneratedIdentity:
		return "identity"
	case StoreGeneratedComputed:
		return "computed"
	default:
		return "none"
	}
}

// Property describes a scalar member of an entity type
type Property struct {
	Annotations

	declaringEntityType *EntityType
	name                string
	goType              reflect.Type
	typeSource          ConfigurationSource
	shadow              bool
	source              ConfigurationSource

	nullable           facet[bool]
	maxLength          facet[int]
	concurrencyToken   facet[bool]
	generateValueOnAdd facet[bool]
	storeGenerated     facet[StoreGeneratedPattern]
}

// Name returns the property name
func (p *Property) Name() string { return p.name }

// GoType returns the Go type of the property
func (p *Property) GoType() reflect.Type { return p.goType }

// DeclaringEntityType returns the entity type that owns the property
func (p *Property) DeclaringEntityType() *EntityType { return p.declaringEntityType }

// IsShadow reports whether the property has no backing struct field
func (p *Property) IsShadow() bool { return p.shadow }

// Source returns the configuration source of the property
func (p *Property) Source() ConfigurationSource { return p.source }

// UpdateSource raises the configuration source
func (p *Property) UpdateSource(source ConfigurationSource) {
	p.source = MaxSource(p.source, source)
}

// TypeSource returns the source that chose the property type
func (p *Property) TypeSource() ConfigurationSource { return p.typeSource }

// SetGoType changes the type of a shadow property
func (p *Property) SetGoType(goType reflect.Type, source ConfigurationSource) (bool, error) {
	if !p.shadow {
		return false, fmt.Errorf("%w: cannot change the type of field %s.%s", ErrInvalidType, p.declaringEntityType.name, p.name)
	}
	if goType == nil {
		return false, fmt.Errorf("%w: property %s.%s has no type", ErrInvalidType, p.declaringEntityType.name, p.name)
	}
	if !source.Overrides(p.typeSource) {
		return false, nil
	}
	p.goType = goType
	p.typeSource = source
	return true, nil
}

// IsNullable reports whether the property accepts null. Unconfigured properties
// follow their Go type.
func (p *Property) IsNullable() bool {
	if v, ok := p.nullable.get(); ok {
		return v
	}
	return IsNullableType(p.goType)
}

// NullableSource returns the source of the nullability configuration
func (p *Property) NullableSource() (ConfigurationSource, bool) {
	return p.nullable.sourceOf()
}

// SetIsNullable configures nullability. Struct fields whose type cannot hold null
// and key properties reject nullable.
func (p *Property) SetIsNullable(nullable bool, source ConfigurationSource) (bool, error) {
	if !p.nullable.canSet(source) {
		return false, nil
	}
	if nullable {
		if !p.shadow && !IsNullableType(p.goType) {
			return false, fmt.Errorf("%w: %s.%s is %s", ErrNotNullable, p.declaringEntityType.name, p.name, p.goType)
		}
		if len(p.ContainingKeys()) > 0 {
			return false, fmt.Errorf("%w: %s.%s", ErrKeyNullable, p.declaringEntityType.name, p.name)
		}
	}
	return p.nullable.apply(nullable, source), nil
}

// MaxLength returns the configured maximum length
func (p *Property) MaxLength() (int, bool) {
	return p.maxLength.get()
}

// SetMaxLength configures the maximum length
func (p *Property) SetMaxLength(length int, source ConfigurationSource) bool {
	return p.maxLength.apply(length, source)
}

// IsConcurrencyToken reports whether the property participates in optimistic concurrency checks
func (p *Property) IsConcurrencyToken() bool {
	v, _ := p.concurrencyToken.get()
	return v
}

// SetIsConcurrencyToken configures the concurrency token flag
func (p *Property) SetIsConcurrencyToken(token bool, source ConfigurationSource) bool {
	return p.concurrencyToken.apply(token, source)
}

// GenerateValueOnAdd reports whether a value is generated when an entity is added
func (p *Property) GenerateValueOnAdd() bool {
	v, _ := p.generateValueOnAdd.get()
	return v
}

// GenerateValueOnAddSource returns the source of the value generation flag
func (p *Property) GenerateValueOnAddSource() (ConfigurationSource, bool) {
	return p.generateValueOnAdd.sourceOf()
}

// SetGenerateValueOnAdd configures value generation on add
func (p *Property) SetGenerateValueOnAdd(generate bool, source ConfigurationSource) bool {
	return p.generateValueOnAdd.apply(generate, source)
}

// StoreGeneratedPattern returns how the store generates values for this property
func (p *Property) StoreGeneratedPattern() StoreGeneratedPattern {
	v, _ := p.storeGenerated.get()
	return v
}

// SetStoreGeneratedPattern configures the store generated pattern
func (p *Property) SetStoreGeneratedPattern(pattern StoreGeneratedPattern, source ConfigurationSource) bool {
	return p.storeGenerated.apply(pattern, source)
}

// IsPrimaryKey reports whether the property is part of the primary key
func (p *Property) IsPrimaryKey() bool {
	if p.declaringEntityType == nil || p.declaringEntityType.primaryKey == nil {
		return false
	}
	return containsProperty(p.declaringEntityType.primaryKey.properties, p)
}

// IsForeignKey reports whether the property is part of any foreign key
func (p *Property) IsForeignKey() bool {
	return len(p.ContainingForeignKeys()) > 0
}

// ContainingKeys returns the keys that include the property
func (p *Property) ContainingKeys() []*Key {
	if p.declaringEntityType == nil {
		return nil
	}
	var result []*Key
	for _, key := range p.declaringEntityType.keys {
		if containsProperty(key.properties, p) {
			result = append(result, key)
		}
	}
	return result
}

// ContainingForeignKeys returns the foreign keys that include the property
func (p *Property) ContainingForeignKeys() []*ForeignKey {
	if p.declaringEntityType == nil {
		return nil
	}
	var result []*ForeignKey
	for _, fk := range p.declaringEntityType.foreignKeys {
		if containsProperty(fk.properties, p) {
			result = append(result, fk)
		}
	}
	return result
}

// ContainingIndexes returns the indexes that include the property
func (p *Property) ContainingIndexes() []*Index {
	if p.declaringEntityType == nil {
		return nil
	}
	var result []*Index
	for _, idx := range p.declaringEntityType.indexes {
		if containsProperty(idx.properties, p) {
			result = append(result, idx)
		}
	}
	return result
}

// String returns EntityType.Property
func (p *Property) String() string {
	if p.declaringEntityType == nil {
		return p.name
	}
	return p.declaringEntityType.name + "." + p.name
}

func containsProperty(props []*Property, p *Property) bool {
	for _, candidate := range props {
		if candidate == p {
			return true
		}
	}
	return false
}
