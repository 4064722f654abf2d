// Package metadata defines the resolved object-relational model graph: entity types,
// properties, keys, foreign keys, navigations and indexes. Every configurable element
// records the ConfigurationSource that produced it so that later, stronger configuration
// can replace what conventions inferred.
package metadata

// ConfigurationSource ranks where a piece of model configuration came from
type ConfigurationSource int

const (
	// Convention marks configuration inferred by a convention
	Convention ConfigurationSource = iota
	// DataAnnotation marks configuration read from struct tags
	DataAnnotation
	// Explicit marks configuration made through the fluent API
	Explicit
)

// String returns the string representation of the configuration source
func (s ConfigurationSource) String() string {
	switch s {
	case Convention:
		return "convention"
	case DataAnnotation:
		return "data_annotation"
	case Explicit:
		return "explicit"
	default:
		return "unknown"
	}
}

// Overrides reports whether configuration from s may replace configuration from other
func (s ConfigurationSource) Overrides(other ConfigurationSource) bool {
	return s >= other
}

// MaxSource returns the stronger of two configuration sources
func MaxSource(a, b ConfigurationSource) ConfigurationSource {
	if a > b {
		return a
	}
	return b
}

// facet holds a configured value together with the source that configured it.
// An unset facet accepts any source.
type facet[T any] struct {
	value  T
	source ConfigurationSource
	set    bool
}

func (f *facet[T]) canSet(source ConfigurationSource) bool {
	return !f.set || source.Overrides(f.source)
}

func (f *facet[T]) apply(value T, source ConfigurationSource) bool {
	if !f.canSet(source) {
		return false
	}
	f.value = value
	f.source = source
	f.set = true
	return true
}

func (f *facet[T]) get() (T, bool) {
	return f.value, f.set
}

func (f *facet[T]) sourceOf() (ConfigurationSource, bool) {
	return f.source, f.set
}

func (f *facet[T]) reset() {
	var zero T
	f.value = zero
	f.source = Convention
	f.set = false
}
