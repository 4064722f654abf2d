package query

import (
	"sort"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

// Optimize returns a copy of q with AND-only conditions ordered most selective first.
// Queries with OR conditions are returned unchanged.
func Optimize(q *Query) *Query {
	optimized := q.Clone()
	for _, cond := range optimized.conditions {
		if cond.Or {
			return optimized
		}
	}

	sort.SliceStable(optimized.conditions, func(i, j int) bool {
		return scoreCondition(optimized.conditions[i]) < scoreCondition(optimized.conditions[j])
	})
	return optimized
}

// scoreCondition ranks a condition by expected selectivity, lower is more selective
func scoreCondition(cond *Condition) int {
	score := 0
	switch cond.Operator {
	case OpEqual:
		score = 1
	case OpIn:
		score = 2
	case OpIsNull, OpIsNotNull:
		score = 3
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual, OpBetween:
		score = 4
	case OpInSubquery:
		score = 5
	case OpLike:
		score = 6
	default:
		score = 7
	}
	if ShouldUseIndex(cond) {
		score -= 1
	}
	return score
}

// ShouldUseIndex reports whether a key or index leads with the condition's
// property and the operator can use it
func ShouldUseIndex(cond *Condition) bool {
	switch cond.Operator {
	case OpEqual, OpIn, OpInSubquery, OpGreaterThan, OpGreaterThanOrEqual,
		OpLessThan, OpLessThanOrEqual, OpBetween:
	default:
		return false
	}
	return leadsIndex(cond.Property)
}

func leadsIndex(p *metadata.Property) bool {
	for _, key := range p.ContainingKeys() {
		if key.Properties()[0] == p {
			return true
		}
	}
	for _, idx := range p.ContainingIndexes() {
		if idx.Properties()[0] == p {
			return true
		}
	}
	return false
}

// Analysis describes a query
type Analysis struct {
	SQL             string
	ParameterCount  int
	ConditionCount  int
	SubqueryCount   int
	UsesIndex       bool
	ComplexityScore int // 0-100, higher is more complex
	Recommendations []string
}

// Analyze renders q and reports index use and complexity
func Analyze(q *Query) (*Analysis, error) {
	sql, args, err := q.ToSQL()
	if err != nil {
		return nil, err
	}

	analysis := &Analysis{
		SQL:            sql,
		ParameterCount: len(args),
		ConditionCount: len(q.conditions),
	}

	var unindexed []string
	for _, cond := range q.conditions {
		if cond.Operator == OpInSubquery {
			analysis.SubqueryCount++
		}
		if ShouldUseIndex(cond) {
			analysis.UsesIndex = true
		} else {
			unindexed = append(unindexed, cond.Property.Name())
		}
	}

	analysis.ComplexityScore = calculateComplexity(q)

	if len(unindexed) > 0 {
		for _, name := range unindexed {
			analysis.Recommendations = append(analysis.Recommendations,
				"Consider adding an index on "+q.entityType.Name()+"."+name)
		}
	}
	if q.limit == nil && q.offset == nil {
		analysis.Recommendations = append(analysis.Recommendations,
			"Consider adding pagination with Limit() and Offset()")
	}
	if analysis.ComplexityScore > 70 {
		analysis.Recommendations = append(analysis.Recommendations,
			"Query is complex - consider breaking into smaller queries or using views")
	}

	return analysis, nil
}

func calculateComplexity(q *Query) int {
	score := len(q.conditions)*5 + len(q.orderBy)*3
	for _, cond := range q.conditions {
		if cond.Operator == OpInSubquery && cond.Subquery != nil {
			score += 15 + calculateComplexity(cond.Subquery)
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}
