package metadata

// Annotation is a named value attached to a model element
type Annotation struct {
	Name   string
	Value  interface{}
	Source ConfigurationSource
}

// Annotations stores annotations in insertion order
type Annotations struct {
	items []*Annotation
}

// SetAnnotation adds or replaces an annotation with explicit source
func (a *Annotations) SetAnnotation(name string, value interface{}) {
	a.SetAnnotationFrom(name, value, Explicit)
}

// SetAnnotationFrom adds or replaces an annotation if source wins over the existing one
func (a *Annotations) SetAnnotationFrom(name string, value interface{}, source ConfigurationSource) bool {
	for _, item := range a.items {
		if item.Name == name {
			if !source.Overrides(item.Source) {
				return false
			}
			item.Value = value
			item.Source = source
			return true
		}
	}
	a.items = append(a.items, &Annotation{Name: name, Value: value, Source: source})
	return true
}

// FindAnnotation returns the value of the named annotation
func (a *Annotations) FindAnnotation(name string) (interface{}, bool) {
	for _, item := range a.items {
		if item.Name == name {
			return item.Value, true
		}
	}
	return nil, false
}

// RemoveAnnotation removes the named annotation and reports whether it existed
func (a *Annotations) RemoveAnnotation(name string) bool {
	for i, item := range a.items {
		if item.Name == name {
			a.items = append(a.items[:i], a.items[i+1:]...)
			return true
		}
	}
	return false
}

// GetAnnotations returns a copy of all annotations
func (a *Annotations) GetAnnotations() []Annotation {
	result := make([]Annotation, 0, len(a.items))
	for _, item := range a.items {
		result = append(result, *item)
	}
	return result
}
