package tracking

import (
	"sync"
	"testing"
)

func TestNewChangeTracker(t *testing.T) {
	original := map[string]interface{}{
		"ID":    1,
		"Title": "Original Title",
		"Count": 10,
	}
	current := map[string]interface{}{
		"ID":    1,
		"Title": "Updated Title",
		"Count": 10,
	}

	ct := NewChangeTracker(original, current)

	if !ct.Changed("Title") {
		t.Error("Expected Title to be changed")
	}
	if ct.Changed("Count") {
		t.Error("Expected Count to be unchanged")
	}
	if ct.Changed("ID") {
		t.Error("Expected ID to be unchanged")
	}
}

func TestChangeTracker_Changed(t *testing.T) {
	s1, s2, s3 := "a", "a", "b"

	tests := []struct {
		name     string
		original map[string]interface{}
		current  map[string]interface{}
		want     bool
	}{
		{
			name:     "unchanged value",
			original: map[string]interface{}{"Field": "value"},
			current:  map[string]interface{}{"Field": "value"},
			want:     false,
		},
		{
			name:     "changed value",
			original: map[string]interface{}{"Field": 5},
			current:  map[string]interface{}{"Field": 10},
			want:     true,
		},
		{
			name:     "nil to value",
			original: map[string]interface{}{"Field": nil},
			current:  map[string]interface{}{"Field": "value"},
			want:     true,
		},
		{
			name:     "typed nil pointer equals nil",
			original: map[string]interface{}{"Field": nil},
			current:  map[string]interface{}{"Field": (*string)(nil)},
			want:     false,
		},
		{
			name:     "pointers to equal values",
			original: map[string]interface{}{"Field": &s1},
			current:  map[string]interface{}{"Field": &s2},
			want:     false,
		},
		{
			name:     "pointers to different values",
			original: map[string]interface{}{"Field": &s1},
			current:  map[string]interface{}{"Field": &s3},
			want:     true,
		},
		{
			name:     "removed value",
			original: map[string]interface{}{"Field": 1},
			current:  map[string]interface{}{},
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct := NewChangeTracker(tt.original, tt.current)
			if got := ct.Changed("Field"); got != tt.want {
				t.Errorf("Changed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChangeTracker_ChangedFields(t *testing.T) {
	ct := NewChangeTracker(
		map[string]interface{}{"B": 1, "A": 1, "C": 1},
		map[string]interface{}{"B": 2, "A": 2, "C": 1},
	)

	fields := ct.ChangedFields()
	if len(fields) != 2 || fields[0] != "A" || fields[1] != "B" {
		t.Errorf("ChangedFields() = %v, want [A B]", fields)
	}
}

func TestChangeTracker_SetValue(t *testing.T) {
	ct := NewChangeTracker(
		map[string]interface{}{"Name": "old"},
		map[string]interface{}{"Name": "old"},
	)

	ct.SetValue("Name", "new")
	change := ct.GetChange("Name")
	if change == nil {
		t.Fatal("Expected a change for Name")
	}
	if change.OldValue != "old" || change.NewValue != "new" {
		t.Errorf("unexpected change %+v", change)
	}

	ct.SetValue("Name", "old")
	if ct.HasChanges() {
		t.Error("Expected no changes after reverting to the original value")
	}
}

func TestChangeTracker_Reset(t *testing.T) {
	ct := NewChangeTracker(
		map[string]interface{}{"Count": 1},
		map[string]interface{}{"Count": 2},
	)

	ct.Reset()

	if ct.HasChanges() {
		t.Error("Expected no changes after Reset")
	}
	if got := ct.OriginalValue("Count"); got != 2 {
		t.Errorf("OriginalValue() = %v, want 2", got)
	}
}

func TestChangeTracker_SetOriginalValue(t *testing.T) {
	ct := NewChangeTracker(
		map[string]interface{}{"Count": 1},
		map[string]interface{}{"Count": 1},
	)

	ct.SetOriginalValue("Count", 0)
	if !ct.Changed("Count") {
		t.Error("Expected Count to differ from the new original value")
	}
}

func TestChangeTracker_ChangedData(t *testing.T) {
	ct := NewChangeTracker(
		map[string]interface{}{"A": 1, "B": 2},
		map[string]interface{}{"A": 1, "B": 3},
	)

	data := ct.ChangedData()
	if len(data) != 1 || data["B"] != 3 {
		t.Errorf("ChangedData() = %v, want map[B:3]", data)
	}
}

func TestChangeTracker_SnapshotIsolation(t *testing.T) {
	name := "original"
	blob := []byte{1, 2, 3}
	values := map[string]interface{}{"Name": &name, "Blob": blob}

	ct := NewChangeTracker(values, values)

	name = "mutated"
	blob[0] = 9
	ct.SetValue("Name", &name)
	ct.SetValue("Blob", blob)

	if !ct.Changed("Name") {
		t.Error("Expected in-place change through a pointer to be detected")
	}
	if !ct.Changed("Blob") {
		t.Error("Expected in-place change of a byte slice to be detected")
	}
	if got := *ct.OriginalValue("Name").(*string); got != "original" {
		t.Errorf("OriginalValue() = %q, want original", got)
	}
}

func TestChangeTracker_NilMaps(t *testing.T) {
	ct := NewChangeTracker(nil, nil)

	if ct.HasChanges() {
		t.Error("Expected no changes with nil maps")
	}
	_ = ct.ChangedFields()
	_ = ct.OriginalValue("Field")
}

func TestChangeTracker_ConcurrentAccess(t *testing.T) {
	ct := NewChangeTracker(
		map[string]interface{}{"Count": 0},
		map[string]interface{}{"Count": 0},
	)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		value := i
		go func() {
			defer wg.Done()
			_ = ct.Changed("Count")
			_ = ct.ChangedFields()
			_ = ct.CurrentValue("Count")
		}()
		go func() {
			defer wg.Done()
			ct.SetValue("Count", value)
		}()
	}
	wg.Wait()
}
