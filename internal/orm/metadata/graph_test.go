package metadata

import (
	"reflect"
	"strings"
	"testing"
)

// chain builds name entity types where each one depends on the next by a required FK
func chain(t *testing.T, names ...string) *Model {
	t.Helper()
	m := NewModel()
	keys := make(map[string]*Key)
	for _, name := range names {
		et, err := m.AddEntityType(name, nil, Explicit)
		if err != nil {
			t.Fatalf("AddEntityType(%s): %v", name, err)
		}
		id, _ := et.AddProperty("ID", reflect.TypeOf(int64(0)), true, Explicit)
		key, _, err := et.SetPrimaryKey([]*Property{id}, Explicit)
		if err != nil {
			t.Fatalf("SetPrimaryKey(%s): %v", name, err)
		}
		keys[name] = key
	}
	for i := 0; i < len(names)-1; i++ {
		link(t, m, names[i], names[i+1], keys[names[i+1]])
	}
	return m
}

func link(t *testing.T, m *Model, dependent, principal string, key *Key) *ForeignKey {
	t.Helper()
	et := m.FindEntityType(dependent)
	p, err := et.AddProperty(principal+"ID", reflect.TypeOf(int64(0)), true, Explicit)
	if err != nil {
		t.Fatalf("AddProperty: %v", err)
	}
	fk, err := et.AddForeignKey([]*Property{p}, key, Explicit)
	if err != nil {
		t.Fatalf("AddForeignKey: %v", err)
	}
	return fk
}

func TestRelationshipGraph(t *testing.T) {
	t.Run("simple dependency chain", func(t *testing.T) {
		// Comment -> Post -> User
		graph := NewRelationshipGraph(chain(t, "Comment", "Post", "User"))

		postDeps := graph.GetDependencies("Post")
		if len(postDeps) != 1 || postDeps[0] != "User" {
			t.Errorf("Post should depend on User, got %v", postDeps)
		}

		userDeps := graph.GetDependencies("User")
		if len(userDeps) != 0 {
			t.Errorf("User should have no dependencies, got %v", userDeps)
		}

		userDependents := graph.GetDependents("User")
		if len(userDependents) != 1 || userDependents[0] != "Post" {
			t.Errorf("User should have Post as dependent, got %v", userDependents)
		}

		order, err := graph.TopologicalSort()
		if err != nil {
			t.Fatalf("TopologicalSort failed: %v", err)
		}
		if strings.Join(order, ",") != "User,Post,Comment" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("independent entity types sort by name", func(t *testing.T) {
		m := chain(t, "Beta", "Alpha")
		if _, err := m.AddEntityType("Gamma", nil, Explicit); err != nil {
			t.Fatal(err)
		}
		graph := NewRelationshipGraph(m)

		order, err := graph.TopologicalSort()
		if err != nil {
			t.Fatalf("TopologicalSort failed: %v", err)
		}
		if strings.Join(order, ",") != "Alpha,Beta,Gamma" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("self references are not edges", func(t *testing.T) {
		m := chain(t, "Employee")
		et := m.FindEntityType("Employee")
		link(t, m, "Employee", "Manager", et.FindPrimaryKey())

		graph := NewRelationshipGraph(m)
		if cycles := graph.DetectCycles(); len(cycles) != 0 {
			t.Errorf("expected no cycles, got %v", cycles)
		}
	})

	t.Run("cycles are reported", func(t *testing.T) {
		m := chain(t, "A", "B", "C")
		link(t, m, "C", "A", m.FindEntityType("A").FindPrimaryKey())

		graph := NewRelationshipGraph(m)
		cycles := graph.DetectCycles()
		if len(cycles) == 0 {
			t.Fatal("expected a cycle")
		}

		_, err := graph.TopologicalSort()
		if err == nil || !strings.Contains(err.Error(), "circular dependency") {
			t.Errorf("expected circular dependency error, got %v", err)
		}

		report := AnalyzeDependencies(m)
		if !report.HasCycles {
			t.Error("report should flag cycles")
		}
		if !strings.Contains(report.String(), "Cycle 1") {
			t.Errorf("report should list the cycle:\n%s", report.String())
		}
	})
}

func TestDependencyReport(t *testing.T) {
	report := AnalyzeDependencies(chain(t, "Order", "Customer"))

	if report.TotalEntityTypes != 2 {
		t.Errorf("expected 2 entity types, got %d", report.TotalEntityTypes)
	}
	out := report.String()
	if !strings.Contains(out, "1. Customer (no dependencies)") {
		t.Errorf("missing Customer line:\n%s", out)
	}
	if !strings.Contains(out, "2. Order (depends on: Customer)") {
		t.Errorf("missing Order line:\n%s", out)
	}
}
