package tracking

import (
	"fmt"
	"reflect"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

// EntityEntry is the tracking information of one entity instance. Values of shadow
// properties live in the entry.
type EntityEntry struct {
	manager    *StateManager
	entityType *metadata.EntityType
	entity     reflect.Value
	state      EntityState
	key        string
	shadow     map[string]interface{}
	tracker    *ChangeTracker
}

func newEntry(sm *StateManager, et *metadata.EntityType, entity reflect.Value) *EntityEntry {
	e := &EntityEntry{
		manager:    sm,
		entityType: et,
		entity:     entity,
		shadow:     make(map[string]interface{}),
	}
	for _, p := range et.Properties() {
		if p.IsShadow() && !p.IsNullable() {
			e.shadow[p.Name()] = reflect.Zero(p.GoType()).Interface()
		}
	}
	values := e.values()
	e.tracker = NewChangeTracker(values, values)
	return e
}

// Entity returns the tracked instance
func (e *EntityEntry) Entity() interface{} { return e.entity.Interface() }

// EntityType returns the entity type of the instance
func (e *EntityEntry) EntityType() *metadata.EntityType { return e.entityType }

// State returns the lifecycle state
func (e *EntityEntry) State() EntityState { return e.state }

func (e *EntityEntry) property(name string) (*metadata.Property, error) {
	p := e.entityType.FindProperty(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s has no property %s", ErrInvalidValue, e.entityType.Name(), name)
	}
	return p, nil
}

// CurrentValue returns the current value of a property
func (e *EntityEntry) CurrentValue(name string) (interface{}, error) {
	p, err := e.property(name)
	if err != nil {
		return nil, err
	}
	return e.currentValue(p), nil
}

func (e *EntityEntry) currentValue(p *metadata.Property) interface{} {
	if p.IsShadow() {
		return e.shadow[p.Name()]
	}
	return e.entity.Elem().FieldByName(p.Name()).Interface()
}

// OriginalValue returns the value the property had when the snapshot was taken
func (e *EntityEntry) OriginalValue(name string) (interface{}, error) {
	if _, err := e.property(name); err != nil {
		return nil, err
	}
	return e.tracker.OriginalValue(name), nil
}

// SetCurrentValue sets a property value. Unchanged instances become Modified when
// the value differs from the snapshot.
func (e *EntityEntry) SetCurrentValue(name string, value interface{}) error {
	p, err := e.property(name)
	if err != nil {
		return err
	}
	if p.IsPrimaryKey() && (e.state == Unchanged || e.state == Modified || e.state == Deleted) {
		return fmt.Errorf("%w: %s", ErrKeyModified, p)
	}
	if err := e.setValue(p, value); err != nil {
		return err
	}
	if p.IsPrimaryKey() && e.state == Added {
		if err := e.manager.rekey(e); err != nil {
			return err
		}
	}
	e.refreshState()
	return nil
}

func (e *EntityEntry) setValue(p *metadata.Property, value interface{}) error {
	v, err := coerce(p, value)
	if err != nil {
		return err
	}
	if p.IsShadow() {
		if value == nil {
			delete(e.shadow, p.Name())
		} else {
			e.shadow[p.Name()] = v.Interface()
		}
	} else {
		e.entity.Elem().FieldByName(p.Name()).Set(v)
	}
	e.tracker.SetValue(p.Name(), e.currentValue(p))
	return nil
}

// IsModified reports whether a property differs from its snapshot
func (e *EntityEntry) IsModified(name string) bool {
	return e.state == Modified && e.tracker.Changed(name)
}

// ModifiedProperties returns the modified properties in declaration order
func (e *EntityEntry) ModifiedProperties() []*metadata.Property {
	if e.state != Modified {
		return nil
	}
	var result []*metadata.Property
	for _, p := range e.entityType.Properties() {
		if e.tracker.Changed(p.Name()) {
			result = append(result, p)
		}
	}
	return result
}

// KeyValues returns the current primary key values
func (e *EntityEntry) KeyValues() []interface{} {
	pk := e.entityType.FindPrimaryKey()
	if pk == nil {
		return nil
	}
	props := pk.Properties()
	values := make([]interface{}, len(props))
	for i, p := range props {
		values[i] = e.currentValue(p)
	}
	return values
}

func (e *EntityEntry) identityKey() (string, error) {
	if e.entityType.FindPrimaryKey() == nil {
		return "", fmt.Errorf("%w: %s", metadata.ErrNoPrimaryKey, e.entityType.Name())
	}
	return formatKey(e.KeyValues()), nil
}

func (e *EntityEntry) hasUnsetGeneratedKey() bool {
	pk := e.entityType.FindPrimaryKey()
	if pk == nil {
		return false
	}
	for _, p := range pk.Properties() {
		if p.GenerateValueOnAdd() && isZero(e.currentValue(p)) {
			return true
		}
	}
	return false
}

// values reads every property
func (e *EntityEntry) values() map[string]interface{} {
	values := make(map[string]interface{}, len(e.entityType.Properties()))
	for _, p := range e.entityType.Properties() {
		values[p.Name()] = e.currentValue(p)
	}
	return values
}

func (e *EntityEntry) detectChanges() error {
	for _, p := range e.entityType.Properties() {
		if p.IsShadow() {
			continue
		}
		current := e.currentValue(p)
		if p.IsPrimaryKey() && !valuesEqual(current, e.tracker.OriginalValue(p.Name())) {
			return fmt.Errorf("%w: %s", ErrKeyModified, p)
		}
		e.tracker.SetValue(p.Name(), current)
	}
	e.refreshState()
	return nil
}

func (e *EntityEntry) refreshState() {
	switch {
	case e.state == Unchanged && e.tracker.HasChanges():
		e.state = Modified
	case e.state == Modified && !e.tracker.HasChanges():
		e.state = Unchanged
	}
}

// coerce converts value to the type of p. nil is accepted for nullable properties.
func coerce(p *metadata.Property, value interface{}) (reflect.Value, error) {
	t := p.GoType()
	if value == nil {
		if !p.IsNullable() {
			return reflect.Value{}, fmt.Errorf("%w: %s cannot be nil", ErrInvalidValue, p)
		}
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(value)
	switch {
	case v.Type().AssignableTo(t):
		return v, nil
	case sameKindClass(v.Kind(), t.Kind()) && v.Type().ConvertibleTo(t):
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: %s is %s, got %T", ErrInvalidValue, p, t, value)
}

func sameKindClass(a, b reflect.Kind) bool {
	class := func(k reflect.Kind) int {
		switch k {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return 1
		case reflect.Float32, reflect.Float64:
			return 2
		case reflect.String:
			return 3
		}
		return 0
	}
	return class(a) != 0 && class(a) == class(b)
}
