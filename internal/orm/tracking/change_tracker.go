// Package tracking keeps the state of entity instances between loading and saving.
// A StateManager tracks one EntityEntry per instance; each entry compares the current
// property values against a snapshot to find modified properties.
package tracking

import (
	"reflect"
	"sort"
	"sync"
)

// FieldChange is a single modified property
type FieldChange struct {
	Field    string
	OldValue interface{}
	NewValue interface{}
}

// ChangeTracker compares a snapshot of property values with their current values
type ChangeTracker struct {
	mu       sync.RWMutex
	original map[string]interface{}
	current  map[string]interface{}
	changes  map[string]*FieldChange
}

// NewChangeTracker creates a tracker from the snapshot and the current values
func NewChangeTracker(original, current map[string]interface{}) *ChangeTracker {
	ct := &ChangeTracker{
		original: copyValues(original),
		current:  copyValues(current),
		changes:  make(map[string]*FieldChange),
	}
	for field := range ct.current {
		ct.recompute(field)
	}
	for field := range ct.original {
		if _, ok := ct.current[field]; !ok {
			ct.recompute(field)
		}
	}
	return ct
}

func copyValues(m map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(m))
	for k, v := range m {
		result[k] = copyValue(v)
	}
	return result
}

// copyValue copies byte slices and pointed-to values so that later writes through
// the entity do not reach the snapshot
func copyValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok && b != nil {
		return append([]byte(nil), b...)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		cp := reflect.New(rv.Type().Elem())
		cp.Elem().Set(rv.Elem())
		return cp.Interface()
	}
	return v
}

// recompute must be called with the lock held
func (ct *ChangeTracker) recompute(field string) {
	oldValue, hadOld := ct.original[field]
	newValue, hasNew := ct.current[field]
	if hadOld == hasNew && valuesEqual(oldValue, newValue) {
		delete(ct.changes, field)
		return
	}
	ct.changes[field] = &FieldChange{Field: field, OldValue: oldValue, NewValue: newValue}
}

// valuesEqual compares property values. Pointers compare by the value they point to.
func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return isNil(a) && isNil(b)
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() == reflect.Ptr && vb.Kind() == reflect.Ptr {
		if va.IsNil() || vb.IsNil() {
			return va.IsNil() && vb.IsNil()
		}
		return reflect.DeepEqual(va.Elem().Interface(), vb.Elem().Interface())
	}
	return reflect.DeepEqual(a, b)
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Changed reports whether field differs from the snapshot
func (ct *ChangeTracker) Changed(field string) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	_, ok := ct.changes[field]
	return ok
}

// ChangedFields returns the modified fields in name order
func (ct *ChangeTracker) ChangedFields() []string {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	fields := make([]string, 0, len(ct.changes))
	for field := range ct.changes {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// OriginalValue returns the snapshot value of field
func (ct *ChangeTracker) OriginalValue(field string) interface{} {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.original[field]
}

// CurrentValue returns the last recorded value of field
func (ct *ChangeTracker) CurrentValue(field string) interface{} {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.current[field]
}

// GetChange returns the change of field, or nil
func (ct *ChangeTracker) GetChange(field string) *FieldChange {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.changes[field]
}

// HasChanges reports whether any field differs from the snapshot
func (ct *ChangeTracker) HasChanges() bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.changes) > 0
}

// SetValue records the current value of field
func (ct *ChangeTracker) SetValue(field string, value interface{}) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.current[field] = copyValue(value)
	ct.recompute(field)
}

// SetOriginalValue replaces the snapshot value of field
func (ct *ChangeTracker) SetOriginalValue(field string, value interface{}) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.original[field] = copyValue(value)
	ct.recompute(field)
}

// Reset makes the current values the new snapshot
func (ct *ChangeTracker) Reset() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.original = copyValues(ct.current)
	ct.changes = make(map[string]*FieldChange)
}

// ChangedData returns the new values of the modified fields
func (ct *ChangeTracker) ChangedData() map[string]interface{} {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	result := make(map[string]interface{}, len(ct.changes))
	for field, change := range ct.changes {
		result[field] = change.NewValue
	}
	return result
}
