// Package builder contains the internal, source-aware model builders and the
// conventions that fill in configuration the application did not provide.
package builder

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

// TagName is the struct tag read by the data annotation convention
const TagName = "orm"

// Tag is the parsed form of an `orm:"..."` struct tag
type Tag struct {
	Ignore      bool
	Key         bool
	Required    bool
	Concurrency bool
	Index       bool
	Unique      bool
	MaxLength   int
	Column      string
	// Err is set when an option has an invalid argument
	Err error
}

// ParseTag parses the orm struct tag, e.g. `orm:"key,maxlength=40,column=customer_id"`
func ParseTag(tag reflect.StructTag) Tag {
	var result Tag
	value, ok := tag.Lookup(TagName)
	if !ok {
		return result
	}
	if value == "-" {
		result.Ignore = true
		return result
	}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		name, arg, _ := strings.Cut(part, "=")
		switch strings.ToLower(name) {
		case "key":
			result.Key = true
		case "required":
			result.Required = true
		case "concurrency":
			result.Concurrency = true
		case "index":
			result.Index = true
		case "unique":
			result.Index = true
			result.Unique = true
		case "maxlength":
			n, err := strconv.Atoi(arg)
			if err != nil || n <= 0 {
				result.Err = fmt.Errorf("%w: maxlength must be a positive integer, got %q", metadata.ErrInvalidType, arg)
				continue
			}
			result.MaxLength = n
		case "column":
			if arg == "" {
				result.Err = fmt.Errorf("%w: column needs a name", metadata.ErrInvalidType)
				continue
			}
			result.Column = arg
		}
	}
	return result
}

// Field is an exported struct field together with its parsed tag
type Field struct {
	Name string
	Type reflect.Type
	Tag  Tag
}

// NavigationField is a struct field that references other entities
type NavigationField struct {
	Name         string
	Target       reflect.Type
	IsCollection bool
}

// TypeInspector answers questions about Go struct types for conventions
type TypeInspector struct{}

// NewTypeInspector creates a new type inspector
func NewTypeInspector() *TypeInspector {
	return &TypeInspector{}
}

// Fields returns every exported field, flattening embedded structs
func (i *TypeInspector) Fields(t reflect.Type) []Field {
	t = indirect(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	var result []Field
	for _, f := range reflect.VisibleFields(t) {
		if f.Anonymous || !f.IsExported() {
			continue
		}
		result = append(result, Field{Name: f.Name, Type: f.Type, Tag: ParseTag(f.Tag)})
	}
	return result
}

// ScalarFields returns the fields that map to columns, skipping `orm:"-"`
func (i *TypeInspector) ScalarFields(t reflect.Type) []Field {
	var result []Field
	for _, f := range i.Fields(t) {
		if !f.Tag.Ignore && i.IsScalarType(f.Type) {
			result = append(result, f)
		}
	}
	return result
}

// NavigationFields returns struct pointers as references and slices of structs as collections
func (i *TypeInspector) NavigationFields(t reflect.Type) []NavigationField {
	var result []NavigationField
	for _, f := range i.Fields(t) {
		if f.Tag.Ignore || i.IsScalarType(f.Type) {
			continue
		}
		switch f.Type.Kind() {
		case reflect.Ptr:
			if isEntityStruct(f.Type.Elem()) {
				result = append(result, NavigationField{Name: f.Name, Target: f.Type.Elem()})
			}
		case reflect.Slice:
			if elem := indirect(f.Type.Elem()); isEntityStruct(elem) {
				result = append(result, NavigationField{Name: f.Name, Target: elem, IsCollection: true})
			}
		}
	}
	return result
}

// FieldByName looks up an exported field
func (i *TypeInspector) FieldByName(t reflect.Type, name string) (Field, bool) {
	t = indirect(t)
	if t == nil || t.Kind() != reflect.Struct {
		return Field{}, false
	}
	f, ok := t.FieldByName(name)
	if !ok || !f.IsExported() {
		return Field{}, false
	}
	return Field{Name: f.Name, Type: f.Type, Tag: ParseTag(f.Tag)}, true
}

// IsScalarType reports whether t maps to a single column
func (i *TypeInspector) IsScalarType(t reflect.Type) bool {
	return metadata.IsScalarType(t)
}

// IsNullableType reports whether t can hold null
func (i *TypeInspector) IsNullableType(t reflect.Type) bool {
	return metadata.IsNullableType(t)
}

func indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func isEntityStruct(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && !metadata.IsScalarType(t)
}
