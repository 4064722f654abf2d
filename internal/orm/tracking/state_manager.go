package tracking

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
	"github.com/conduit-lang/entityframe/internal/orm/valuegen"
)

var (
	// ErrNotTracked is returned for instances the state manager does not know
	ErrNotTracked = errors.New("entity is not tracked")
	// ErrDuplicateKey is returned when another tracked instance has the same key
	ErrDuplicateKey = errors.New("another instance with the same key is already tracked")
	// ErrUnknownEntityType is returned for values whose type is not in the model
	ErrUnknownEntityType = errors.New("type is not an entity type of the model")
	// ErrKeyModified is returned when a tracked instance's key is changed
	ErrKeyModified = errors.New("key of a tracked entity cannot be modified")
	// ErrInvalidValue is returned when a value does not fit a property
	ErrInvalidValue = errors.New("invalid property value")
)

// EntityState is the lifecycle state of a tracked instance
type EntityState int

const (
	Detached EntityState = iota
	Unchanged
	Added
	Modified
	Deleted
)

func (s EntityState) String() string {
	switch s {
	case Unchanged:
		return "Unchanged"
	case Added:
		return "Added"
	case Modified:
		return "Modified"
	case Deleted:
		return "Deleted"
	default:
		return "Detached"
	}
}

// StateManager tracks entity instances of one model. It is not safe for concurrent use.
type StateManager struct {
	model      *metadata.Model
	generators *valuegen.Selector
	entries    map[interface{}]*EntityEntry
	order      []*EntityEntry
	identity   map[*metadata.EntityType]map[string]*EntityEntry
}

// NewStateManager creates a state manager. A nil selector uses valuegen.NewSelector.
func NewStateManager(model *metadata.Model, generators *valuegen.Selector) *StateManager {
	if generators == nil {
		generators = valuegen.NewSelector()
	}
	return &StateManager{
		model:      model,
		generators: generators,
		entries:    make(map[interface{}]*EntityEntry),
		identity:   make(map[*metadata.EntityType]map[string]*EntityEntry),
	}
}

// Add starts tracking entity as Added. Zero-valued properties configured with
// GenerateValueOnAdd receive generated values first.
func (sm *StateManager) Add(entity interface{}) (*EntityEntry, error) {
	entry, err := sm.Entry(entity)
	if err != nil {
		return nil, err
	}
	switch entry.state {
	case Added:
		return entry, nil
	case Deleted:
		entry.state = Modified
		if !entry.tracker.HasChanges() {
			entry.state = Unchanged
		}
		return entry, nil
	case Unchanged, Modified:
		return entry, nil
	}

	if err := sm.generateValues(entry); err != nil {
		return nil, err
	}
	return entry, sm.track(entry, Added)
}

// Attach starts tracking entity as Unchanged. An instance whose generated key is still
// unset is added instead.
func (sm *StateManager) Attach(entity interface{}) (*EntityEntry, error) {
	entry, err := sm.Entry(entity)
	if err != nil {
		return nil, err
	}
	if entry.state != Detached {
		return entry, nil
	}
	if entry.hasUnsetGeneratedKey() {
		return sm.Add(entity)
	}
	return entry, sm.track(entry, Unchanged)
}

// Remove marks entity as Deleted. Added instances are detached.
func (sm *StateManager) Remove(entity interface{}) (*EntityEntry, error) {
	entry, ok := sm.entries[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotTracked, entity)
	}
	if entry.state == Added {
		sm.detach(entry)
		return entry, nil
	}
	entry.state = Deleted
	return entry, nil
}

// Entry returns the entry of entity. Instances that are not tracked get a Detached entry.
func (sm *StateManager) Entry(entity interface{}) (*EntityEntry, error) {
	if entry, ok := sm.entries[entity]; ok {
		return entry, nil
	}
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %T is not a pointer to a struct", ErrUnknownEntityType, entity)
	}
	et := sm.model.FindEntityTypeByType(rv.Elem().Type())
	if et == nil {
		return nil, fmt.Errorf("%w: %T", ErrUnknownEntityType, entity)
	}
	return newEntry(sm, et, rv), nil
}

// Entries returns the tracked entries in the order they were tracked
func (sm *StateManager) Entries() []*EntityEntry {
	return append([]*EntityEntry(nil), sm.order...)
}

// DetectChanges compares every Unchanged and Modified instance with its snapshot
func (sm *StateManager) DetectChanges() error {
	for _, entry := range sm.order {
		if entry.state != Unchanged && entry.state != Modified {
			continue
		}
		if err := entry.detectChanges(); err != nil {
			return err
		}
	}
	return nil
}

// AcceptChanges makes the current values the new snapshots. Deleted instances are
// detached and everything else becomes Unchanged.
func (sm *StateManager) AcceptChanges() {
	for _, entry := range sm.Entries() {
		if entry.state == Deleted {
			sm.detach(entry)
			continue
		}
		entry.tracker.Reset()
		entry.state = Unchanged
	}
}

func (sm *StateManager) generateValues(entry *EntityEntry) error {
	for _, p := range entry.entityType.Properties() {
		if !p.GenerateValueOnAdd() {
			continue
		}
		current, err := entry.CurrentValue(p.Name())
		if err != nil {
			return err
		}
		if !isZero(current) {
			continue
		}
		g, err := sm.generators.Select(p)
		if err != nil {
			return err
		}
		v, err := g.Next(p)
		if err != nil {
			return err
		}
		if err := entry.setValue(p, v); err != nil {
			return err
		}
	}
	entry.tracker.Reset()
	return nil
}

func (sm *StateManager) track(entry *EntityEntry, state EntityState) error {
	key, err := entry.identityKey()
	if err != nil {
		return err
	}
	byKey := sm.identity[entry.entityType]
	if byKey == nil {
		byKey = make(map[string]*EntityEntry)
		sm.identity[entry.entityType] = byKey
	}
	if existing, ok := byKey[key]; ok && existing != entry {
		return fmt.Errorf("%w: %s %s", ErrDuplicateKey, entry.entityType.Name(), key)
	}

	byKey[key] = entry
	entry.key = key
	entry.state = state
	sm.entries[entry.entity.Interface()] = entry
	sm.order = append(sm.order, entry)
	return nil
}

// rekey moves an Added entry whose key changed in the identity map
func (sm *StateManager) rekey(entry *EntityEntry) error {
	key, err := entry.identityKey()
	if err != nil {
		return err
	}
	byKey := sm.identity[entry.entityType]
	if existing, ok := byKey[key]; ok && existing != entry {
		return fmt.Errorf("%w: %s %s", ErrDuplicateKey, entry.entityType.Name(), key)
	}
	delete(byKey, entry.key)
	byKey[key] = entry
	entry.key = key
	return nil
}

func (sm *StateManager) detach(entry *EntityEntry) {
	delete(sm.entries, entry.entity.Interface())
	if byKey := sm.identity[entry.entityType]; byKey != nil {
		delete(byKey, entry.key)
	}
	for i, e := range sm.order {
		if e == entry {
			sm.order = append(sm.order[:i], sm.order[i+1:]...)
			break
		}
	}
	entry.state = Detached
}

// formatKey renders key values for the identity map
func formatKey(values []interface{}) string {
	parts := make([]string, len(values))
	for i, v := range values {
		rv := reflect.ValueOf(v)
		for rv.Kind() == reflect.Ptr && !rv.IsNil() {
			rv = rv.Elem()
		}
		if rv.IsValid() && !(rv.Kind() == reflect.Ptr && rv.IsNil()) {
			parts[i] = fmt.Sprintf("%v", rv.Interface())
		} else {
			parts[i] = "<nil>"
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func isZero(v interface{}) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}
