package query

import (
	"testing"

	"github.com/conduit-lang/entityframe/internal/orm/codegen"
)

func TestOptimize_ReordersConditions(t *testing.T) {
	m := testModel(t)
	q := NewQuery(m, "Customer", codegen.Postgres{}).
		Where("CompanyName", OpLike, "A%").
		Where("City", OpGreaterThan, "B").
		Where("CustomerID", OpEqual, "ALFKI")

	optimized := Optimize(q)

	if got := optimized.conditions[0].Property.Name(); got != "CustomerID" {
		t.Errorf("expected key equality first, got %s", got)
	}
	if got := optimized.conditions[2].Property.Name(); got != "CompanyName" {
		t.Errorf("expected LIKE last, got %s", got)
	}
	if got := q.conditions[0].Property.Name(); got != "CompanyName" {
		t.Errorf("original query must not change, got %s first", got)
	}
}

func TestOptimize_KeepsOrConditions(t *testing.T) {
	m := testModel(t)
	q := NewQuery(m, "Customer", codegen.Postgres{}).
		Where("CompanyName", OpLike, "A%").
		OrWhere("CustomerID", OpEqual, "ALFKI")

	optimized := Optimize(q)
	if got := optimized.conditions[0].Property.Name(); got != "CompanyName" {
		t.Errorf("OR queries must keep their order, got %s first", got)
	}
}

func TestShouldUseIndex(t *testing.T) {
	m := testModel(t)
	orders := NewQuery(m, "Order", codegen.Postgres{}).
		Where("CustomerID", OpEqual, "ALFKI").
		Where("Freight", OpEqual, 1.0).
		Where("CustomerID", OpLike, "A%")

	tests := []struct {
		name string
		idx  int
		want bool
	}{
		{"foreign key index", 0, true},
		{"unindexed column", 1, false},
		{"LIKE cannot use index", 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldUseIndex(orders.conditions[tt.idx]); got != tt.want {
				t.Errorf("ShouldUseIndex() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnalyze(t *testing.T) {
	m := testModel(t)
	orders := NewQuery(m, "Order", codegen.Postgres{})
	q := NewQuery(m, "Customer", codegen.Postgres{}).
		Where("City", OpEqual, "London").
		WhereInSubquery("CustomerID", orders, "CustomerID")

	analysis, err := Analyze(q)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if analysis.ConditionCount != 2 || analysis.SubqueryCount != 1 || analysis.ParameterCount != 1 {
		t.Errorf("unexpected counts: %+v", analysis)
	}
	if !analysis.UsesIndex {
		t.Error("expected the key lookup to use an index")
	}
	if analysis.ComplexityScore != 25 {
		t.Errorf("ComplexityScore = %d, want 25", analysis.ComplexityScore)
	}

	want := []string{
		"Consider adding an index on Customer.City",
		"Consider adding pagination with Limit() and Offset()",
	}
	if len(analysis.Recommendations) != len(want) {
		t.Fatalf("Recommendations = %v, want %v", analysis.Recommendations, want)
	}
	for i := range want {
		if analysis.Recommendations[i] != want[i] {
			t.Errorf("Recommendations[%d] = %q, want %q", i, analysis.Recommendations[i], want[i])
		}
	}

	if _, err := Analyze(NewQuery(m, "Nope", codegen.Postgres{})); err == nil {
		t.Error("expected error for unknown entity type")
	}
}
