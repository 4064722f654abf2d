package metadata

import (
	"fmt"
	"reflect"
	"sort"
)

// Model is the resolved set of entity types together with model-wide annotations
type Model struct {
	Annotations

	entityTypes map[string]*EntityType
	byType      map[reflect.Type]*EntityType
	ignored     map[string]ConfigurationSource
}

// NewModel creates an empty model
func NewModel() *Model {
	return &Model{
		entityTypes: make(map[string]*EntityType),
		byType:      make(map[reflect.Type]*EntityType),
		ignored:     make(map[string]ConfigurationSource),
	}
}

// AddEntityType adds an entity type. goType is nil for shadow entity types.
func (m *Model) AddEntityType(name string, goType reflect.Type, source ConfigurationSource) (*EntityType, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if goType != nil {
		for goType.Kind() == reflect.Ptr {
			goType = goType.Elem()
		}
		if goType.Kind() != reflect.Struct {
			return nil, fmt.Errorf("%w: entity type %s must be a struct, got %s", ErrInvalidType, name, goType.Kind())
		}
		if existing, ok := m.byType[goType]; ok {
			return nil, fmt.Errorf("%w: %s is already mapped as %s", ErrDuplicateEntityType, goType, existing.Name())
		}
	}
	if _, ok := m.entityTypes[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEntityType, name)
	}

	et := newEntityType(m, name, goType, source)
	m.entityTypes[name] = et
	if goType != nil {
		m.byType[goType] = et
	}
	return et, nil
}

// FindEntityType returns the entity type with the given name, or nil
func (m *Model) FindEntityType(name string) *EntityType {
	return m.entityTypes[name]
}

// FindEntityTypeByType returns the entity type mapped to goType, or nil
func (m *Model) FindEntityTypeByType(goType reflect.Type) *EntityType {
	if goType == nil {
		return nil
	}
	for goType.Kind() == reflect.Ptr {
		goType = goType.Elem()
	}
	return m.byType[goType]
}

// RemoveEntityType removes an entity type. It fails while any foreign key still
// touches the entity type.
func (m *Model) RemoveEntityType(name string) (*EntityType, error) {
	et, ok := m.entityTypes[name]
	if !ok {
		return nil, nil
	}
	if len(et.foreignKeys) > 0 {
		return nil, fmt.Errorf("%w: entity type %s still declares %d foreign keys", ErrInUse, name, len(et.foreignKeys))
	}
	if refs := m.FindReferencingForeignKeys(et); len(refs) > 0 {
		return nil, fmt.Errorf("%w: entity type %s is referenced by %s", ErrInUse, name, refs[0].DeclaringEntityType().Name())
	}

	delete(m.entityTypes, name)
	if et.goType != nil {
		delete(m.byType, et.goType)
	}
	et.model = nil
	return et, nil
}

// EntityTypes returns all entity types sorted by name
func (m *Model) EntityTypes() []*EntityType {
	result := make([]*EntityType, 0, len(m.entityTypes))
	for _, et := range m.entityTypes {
		result = append(result, et)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].name < result[j].name
	})
	return result
}

// FindReferencingForeignKeys returns the foreign keys whose principal is et
func (m *Model) FindReferencingForeignKeys(et *EntityType) []*ForeignKey {
	var result []*ForeignKey
	for _, candidate := range m.EntityTypes() {
		for _, fk := range candidate.foreignKeys {
			if fk.PrincipalEntityType() == et {
				result = append(result, fk)
			}
		}
	}
	return result
}

// Ignore records that the named entity type must not be part of the model.
// A weaker source never replaces a stronger one.
func (m *Model) Ignore(name string, source ConfigurationSource) {
	if existing, ok := m.ignored[name]; ok {
		source = MaxSource(existing, source)
	}
	m.ignored[name] = source
}

// IsIgnored returns the source that ignored name
func (m *Model) IsIgnored(name string) (ConfigurationSource, bool) {
	source, ok := m.ignored[name]
	return source, ok
}

// Unignore forgets an ignore for name
func (m *Model) Unignore(name string) {
	delete(m.ignored, name)
}

// IgnoredEntityTypes returns the ignored entity type names sorted
func (m *Model) IgnoredEntityTypes() []string {
	names := make([]string, 0, len(m.ignored))
	for name := range m.ignored {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
