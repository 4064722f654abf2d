// Package valuegen produces client-side values for properties configured with
// GenerateValueOnAdd.
package valuegen

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
)

// ErrNoGenerator is returned when no generator handles a property type
var ErrNoGenerator = errors.New("no value generator")

var uuidType = reflect.TypeOf(uuid.UUID{})

// Generator produces the next value for a property
type Generator interface {
	Next(p *metadata.Property) (interface{}, error)
}

// UUIDGenerator generates time-ordered version 7 uuids
type UUIDGenerator struct{}

// Next returns a new uuid typed after p
func (UUIDGenerator) Next(p *metadata.Property) (interface{}, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate uuid for %s: %w", p, err)
	}
	return typedValue(p.GoType(), reflect.ValueOf(id))
}

// TemporaryIntegerGenerator hands out decreasing negative integers. They stand in for
// identity values until the store assigns the real ones.
type TemporaryIntegerGenerator struct {
	mu   sync.Mutex
	last int64
}

// Next returns the next temporary value typed after p
func (g *TemporaryIntegerGenerator) Next(p *metadata.Property) (interface{}, error) {
	g.mu.Lock()
	g.last--
	n := g.last
	g.mu.Unlock()
	return typedValue(p.GoType(), reflect.ValueOf(n))
}

// IsTemporary reports whether v is a value handed out by TemporaryIntegerGenerator
func IsTemporary(v interface{}) bool {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() < 0
	}
	return false
}

// Selector picks a generator by property type
type Selector struct {
	mu         sync.RWMutex
	generators map[reflect.Type]Generator
	integers   *TemporaryIntegerGenerator
}

// NewSelector creates a selector with the uuid and temporary integer generators
func NewSelector() *Selector {
	return &Selector{
		generators: map[reflect.Type]Generator{uuidType: UUIDGenerator{}},
		integers:   &TemporaryIntegerGenerator{},
	}
}

// Register uses g for properties whose underlying type is t
func (s *Selector) Register(t reflect.Type, g Generator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generators[metadata.UnderlyingType(t)] = g
}

// Select returns the generator for p
func (s *Selector) Select(p *metadata.Property) (Generator, error) {
	t := metadata.UnderlyingType(p.GoType())

	s.mu.RLock()
	g, ok := s.generators[t]
	s.mu.RUnlock()
	if ok {
		return g, nil
	}
	if metadata.IsIntegerType(t) {
		return s.integers, nil
	}
	return nil, fmt.Errorf("%w: %s of type %s", ErrNoGenerator, p, p.GoType())
}

// typedValue converts v to t. Pointer and sql.Null* targets wrap the converted value.
func typedValue(t reflect.Type, v reflect.Value) (interface{}, error) {
	switch {
	case t.Kind() == reflect.Ptr:
		inner, err := typedValue(t.Elem(), v)
		if err != nil {
			return nil, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(reflect.ValueOf(inner))
		return ptr.Interface(), nil
	case v.Type().ConvertibleTo(t) && (v.Kind() != reflect.Struct || v.Type() == t):
		return v.Convert(t).Interface(), nil
	case t.Kind() == reflect.Struct && t.NumField() == 2 && t.Field(1).Name == "Valid":
		// sql.NullInt64 and friends
		inner, err := typedValue(t.Field(0).Type, v)
		if err != nil {
			return nil, err
		}
		out := reflect.New(t).Elem()
		out.Field(0).Set(reflect.ValueOf(inner))
		out.Field(1).SetBool(true)
		return out.Interface(), nil
	}
	return nil, fmt.Errorf("%w: cannot convert %s to %s", ErrNoGenerator, v.Type(), t)
}
