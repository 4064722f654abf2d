// Package definition reads entity models from YAML files and replays them on the
// fluent model API as shadow entity types.
package definition

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/entityframe/internal/orm/metadata"
	"github.com/conduit-lang/entityframe/pkg/model"
)

// ErrInvalidDefinition is returned for definitions that cannot describe a model
var ErrInvalidDefinition = errors.New("invalid model definition")

// Relationship kinds
const (
	OneToMany = "one-to-many"
	OneToOne  = "one-to-one"
)

// Generation strategies for Property.Generate
const (
	GenerateNever    = "never"
	GenerateOnAdd    = "on_add"
	GenerateIdentity = "identity"
	GenerateComputed = "computed"
)

// Definition is a model described in YAML
type Definition struct {
	Entities      []*Entity       `yaml:"entities"`
	Relationships []*Relationship `yaml:"relationships,omitempty"`
}

// Entity describes one entity type
type Entity struct {
	Name          string      `yaml:"name"`
	Table         string      `yaml:"table,omitempty"`
	Properties    []*Property `yaml:"properties"`
	Key           []string    `yaml:"key,omitempty"`
	AlternateKeys [][]string  `yaml:"alternate_keys,omitempty"`
	Indexes       []*Index    `yaml:"indexes,omitempty"`
	Ignore        []string    `yaml:"ignore,omitempty"`
}

// Property describes a scalar property. Type is one of the names accepted by
// ParseType.
type Property struct {
	Name             string `yaml:"name"`
	Type             string `yaml:"type"`
	Required         *bool  `yaml:"required,omitempty"`
	MaxLength        int    `yaml:"max_length,omitempty"`
	Column           string `yaml:"column,omitempty"`
	ConcurrencyToken bool   `yaml:"concurrency_token,omitempty"`
	Generate         string `yaml:"generate,omitempty"`
}

// Index describes an index over one or more properties
type Index struct {
	Properties []string `yaml:"properties"`
	Unique     bool     `yaml:"unique,omitempty"`
}

// Relationship describes a foreign key between two entities. Navigation is declared
// on the dependent and Inverse on the principal; either may be empty.
type Relationship struct {
	Principal    string   `yaml:"principal"`
	Dependent    string   `yaml:"dependent"`
	Kind         string   `yaml:"kind,omitempty"`
	Navigation   string   `yaml:"navigation,omitempty"`
	Inverse      string   `yaml:"inverse,omitempty"`
	ForeignKey   []string `yaml:"foreign_key,omitempty"`
	PrincipalKey []string `yaml:"principal_key,omitempty"`
	Required     *bool    `yaml:"required,omitempty"`
	OnDelete     string   `yaml:"on_delete,omitempty"`
}

var scalarTypes = map[string]reflect.Type{
	"string":  reflect.TypeOf(""),
	"int":     reflect.TypeOf(int(0)),
	"int16":   reflect.TypeOf(int16(0)),
	"int32":   reflect.TypeOf(int32(0)),
	"int64":   reflect.TypeOf(int64(0)),
	"float32": reflect.TypeOf(float32(0)),
	"float64": reflect.TypeOf(float64(0)),
	"bool":    reflect.TypeOf(false),
	"time":    reflect.TypeOf(time.Time{}),
	"uuid":    reflect.TypeOf(uuid.UUID{}),
	"bytes":   reflect.TypeOf([]byte(nil)),
}

// ParseType resolves a type name. A trailing "?" makes the type nullable.
func ParseType(name string) (reflect.Type, bool, error) {
	base := strings.TrimSuffix(strings.TrimSpace(name), "?")
	nullable := base != strings.TrimSpace(name)

	t, ok := scalarTypes[base]
	if !ok {
		return nil, false, fmt.Errorf("%w: unknown type %q", ErrInvalidDefinition, name)
	}
	if nullable && t.Kind() != reflect.Slice {
		t = reflect.PointerTo(t)
	}
	return t, nullable, nil
}

// ParseDeleteBehavior resolves an on_delete value
func ParseDeleteBehavior(name string) (metadata.DeleteBehavior, error) {
	switch strings.ToLower(strings.NewReplacer("-", "_", " ", "_").Replace(name)) {
	case "cascade":
		return metadata.Cascade, nil
	case "set_null", "setnull":
		return metadata.SetNull, nil
	case "restrict", "no_action":
		return metadata.Restrict, nil
	default:
		return metadata.Restrict, fmt.Errorf("%w: unknown on_delete %q", ErrInvalidDefinition, name)
	}
}

// Parse decodes and validates a definition
func Parse(r io.Reader) (*Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidDefinition)
		}
		return nil, fmt.Errorf("failed to parse model definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadFile reads a definition from path
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	def, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Validate checks the parts of a definition that do not depend on the model builder
func (d *Definition) Validate() error {
	var errs []error
	entities := make(map[string]bool)

	for i, e := range d.Entities {
		if e == nil || e.Name == "" {
			errs = append(errs, fmt.Errorf("%w: entity %d has no name", ErrInvalidDefinition, i))
			continue
		}
		if entities[e.Name] {
			errs = append(errs, fmt.Errorf("%w: duplicate entity %s", ErrInvalidDefinition, e.Name))
		}
		entities[e.Name] = true

		props := make(map[string]bool)
		for _, p := range e.Properties {
			if p == nil || p.Name == "" {
				errs = append(errs, fmt.Errorf("%w: %s has a property without a name", ErrInvalidDefinition, e.Name))
				continue
			}
			if props[p.Name] {
				errs = append(errs, fmt.Errorf("%w: duplicate property %s.%s", ErrInvalidDefinition, e.Name, p.Name))
			}
			props[p.Name] = true
			if _, _, err := ParseType(p.Type); err != nil {
				errs = append(errs, fmt.Errorf("%s.%s: %w", e.Name, p.Name, err))
			}
			switch p.Generate {
			case "", GenerateNever, GenerateOnAdd, GenerateIdentity, GenerateComputed:
			default:
				errs = append(errs, fmt.Errorf("%w: %s.%s has unknown generate %q", ErrInvalidDefinition, e.Name, p.Name, p.Generate))
			}
			if p.MaxLength < 0 {
				errs = append(errs, fmt.Errorf("%w: %s.%s has negative max_length", ErrInvalidDefinition, e.Name, p.Name))
			}
		}
		for _, idx := range e.Indexes {
			if idx == nil || len(idx.Properties) == 0 {
				errs = append(errs, fmt.Errorf("%w: %s has an index without properties", ErrInvalidDefinition, e.Name))
			}
		}
	}

	for i, r := range d.Relationships {
		if r == nil {
			continue
		}
		name := fmt.Sprintf("relationship %d (%s -> %s)", i, r.Dependent, r.Principal)
		if !entities[r.Principal] || !entities[r.Dependent] {
			errs = append(errs, fmt.Errorf("%w: %s references an undefined entity", ErrInvalidDefinition, name))
		}
		switch r.Kind {
		case "", OneToMany, OneToOne:
		default:
			errs = append(errs, fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidDefinition, name, r.Kind))
		}
		if r.OnDelete != "" {
			if _, err := ParseDeleteBehavior(r.OnDelete); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
	}

	return errors.Join(errs...)
}

// Apply replays a definition on mb. Entities are configured before relationships
// so that principals have their keys.
func Apply(def *Definition, mb *model.ModelBuilder) error {
	if err := def.Validate(); err != nil {
		return err
	}

	for _, e := range def.Entities {
		applyEntity(e, mb)
	}
	for _, r := range def.Relationships {
		if r != nil {
			applyRelationship(r, mb)
		}
	}
	return mb.Err()
}

// Build applies a definition to a new model builder and finalizes the model
func Build(def *Definition, opts ...model.Option) (*metadata.Model, error) {
	mb := model.NewModelBuilder(opts...)
	if err := Apply(def, mb); err != nil {
		return nil, err
	}
	return mb.Build()
}

func applyEntity(e *Entity, mb *model.ModelBuilder) {
	eb := mb.Entity(e.Name)
	if e.Table != "" {
		eb.Table(e.Table)
	}

	for _, p := range e.Properties {
		goType, nullable, _ := ParseType(p.Type)
		pb := eb.PropertyOf(goType, p.Name)
		if !nullable {
			pb.Required(true)
		}
		if p.Required != nil {
			pb.Required(*p.Required)
		}
		if p.MaxLength > 0 {
			pb.MaxLength(p.MaxLength)
		}
		if p.Column != "" {
			pb.Column(p.Column)
		}
		if p.ConcurrencyToken {
			pb.ConcurrencyToken(true)
		}
		switch p.Generate {
		case GenerateNever:
			pb.GenerateValueOnAdd(false).StoreGeneratedPattern(metadata.StoreGeneratedNone)
		case GenerateOnAdd:
			pb.GenerateValueOnAdd(true)
		case GenerateIdentity:
			pb.GenerateValueOnAdd(true).StoreGeneratedPattern(metadata.StoreGeneratedIdentity)
		case GenerateComputed:
			pb.StoreGeneratedPattern(metadata.StoreGeneratedComputed)
		}
	}

	if len(e.Key) > 0 {
		eb.Key(e.Key...)
	}
	for _, ak := range e.AlternateKeys {
		eb.AlternateKey(ak...)
	}
	for _, idx := range e.Indexes {
		eb.Index(idx.Properties...).Unique(idx.Unique)
	}
	for _, name := range e.Ignore {
		eb.Ignore(name)
	}
}

func applyRelationship(r *Relationship, mb *model.ModelBuilder) {
	var onDelete *metadata.DeleteBehavior
	if r.OnDelete != "" {
		behavior, _ := ParseDeleteBehavior(r.OnDelete)
		onDelete = &behavior
	}

	ref := mb.Entity(r.Dependent).Reference(r.Principal, r.Navigation)
	if r.Kind == OneToOne {
		rb := ref.InverseReference(r.Inverse)
		if len(r.ForeignKey) > 0 {
			rb.ForeignKey(r.Dependent, r.ForeignKey...)
		}
		if len(r.PrincipalKey) > 0 {
			rb.PrincipalKey(r.Principal, r.PrincipalKey...)
		}
		if r.Required != nil {
			rb.Required(*r.Required)
		}
		if onDelete != nil {
			rb.OnDelete(*onDelete)
		}
		return
	}

	rb := ref.InverseCollection(r.Inverse)
	if len(r.ForeignKey) > 0 {
		rb.ForeignKey(r.ForeignKey...)
	}
	if len(r.PrincipalKey) > 0 {
		rb.PrincipalKey(r.PrincipalKey...)
	}
	if r.Required != nil {
		rb.Required(*r.Required)
	}
	if onDelete != nil {
		rb.OnDelete(*onDelete)
	}
}
