package metadata

import (
	"fmt"
	"strings"
)

// ValidationError describes one problem found in a model
type ValidationError struct {
	EntityType string
	Member     string
	Message    string
	Hint       string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	var b strings.Builder

	if e.EntityType != "" {
		b.WriteString(e.EntityType)
		if e.Member != "" {
			b.WriteString(".")
			b.WriteString(e.Member)
		}
		b.WriteString(": ")
	}

	b.WriteString(e.Message)

	if e.Hint != "" {
		b.WriteString("\n  hint: ")
		b.WriteString(e.Hint)
	}

	return b.String()
}

// ValidationErrors collects every problem found in a model
type ValidationErrors struct {
	Errors []*ValidationError
}

// Error implements the error interface
func (e *ValidationErrors) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("model validation failed with %d errors:\n%s", len(e.Errors), strings.Join(msgs, "\n"))
}

// Unwrap exposes the individual validation errors to errors.Is and errors.As
func (e *ValidationErrors) Unwrap() []error {
	result := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		result[i] = err
	}
	return result
}

// ModelValidator checks a model for internal consistency
type ModelValidator struct {
	errors   []*ValidationError
	warnings []string
}

// NewModelValidator creates a new model validator
func NewModelValidator() *ModelValidator {
	return &ModelValidator{
		errors:   make([]*ValidationError, 0),
		warnings: make([]string, 0),
	}
}

// Validate checks m and returns *ValidationErrors when anything is wrong
func Validate(m *Model) error {
	return NewModelValidator().Validate(m)
}

// Validate checks m and returns *ValidationErrors when anything is wrong
func (v *ModelValidator) Validate(m *Model) error {
	v.errors = make([]*ValidationError, 0)
	v.warnings = make([]string, 0)

	for _, et := range m.EntityTypes() {
		v.validateEntityType(m, et)
		v.validatePrimaryKey(et)
		v.validateKeys(et)
		v.validateForeignKeys(m, et)
		v.validateNavigations(m, et)
		v.validateIgnored(et)
	}
	for _, name := range m.IgnoredEntityTypes() {
		if m.FindEntityType(name) != nil {
			v.addError(name, "", "ignored entity type is still mapped", "")
		}
	}
	v.validateRequiredCycles(m)

	if len(v.errors) > 0 {
		return &ValidationErrors{Errors: v.errors}
	}
	return nil
}

// Warnings returns the warnings from the last validation
func (v *ModelValidator) Warnings() []string {
	return v.warnings
}

func (v *ModelValidator) addError(et, member, message, hint string) {
	v.errors = append(v.errors, &ValidationError{
		EntityType: et,
		Member:     member,
		Message:    message,
		Hint:       hint,
	})
}

func (v *ModelValidator) validateEntityType(m *Model, et *EntityType) {
	if et.Model() != m {
		v.addError(et.Name(), "", "entity type does not belong to this model", "")
	}
	if et.GoType() != nil && m.FindEntityTypeByType(et.GoType()) != et {
		v.addError(et.Name(), "", fmt.Sprintf("Go type %s is mapped to another entity type", et.GoType()), "")
	}
	for _, p := range et.Properties() {
		if p.IsShadow() && et.HasField(p.Name()) {
			v.addError(et.Name(), p.Name(), "shadow property shadows a struct field",
				"Remove the shadow property or map the field directly")
		}
		if !p.IsShadow() && !et.HasField(p.Name()) {
			v.addError(et.Name(), p.Name(), "property has no backing struct field", "")
		}
	}
}

func (v *ModelValidator) validatePrimaryKey(et *EntityType) {
	if et.FindPrimaryKey() == nil {
		v.addError(et.Name(), "", "entity type has no primary key",
			"Add an ID field or configure a key with Key(...)")
	}
}

func (v *ModelValidator) validateKeys(et *EntityType) {
	for _, key := range et.Keys() {
		for _, p := range key.Properties() {
			if p.DeclaringEntityType() != et {
				v.addError(et.Name(), p.Name(), "key property is declared on another entity type", "")
			}
			if p.IsNullable() {
				v.addError(et.Name(), p.Name(), "key property is nullable",
					"Key properties must be required")
			}
		}
	}
}

func (v *ModelValidator) validateForeignKeys(m *Model, et *EntityType) {
	for _, fk := range et.ForeignKeys() {
		principal := fk.PrincipalEntityType()
		if m.FindEntityType(principal.Name()) != principal {
			v.addError(et.Name(), PropertyNames(fk.properties),
				fmt.Sprintf("foreign key references %s which is not in the model", principal.Name()), "")
			continue
		}

		principalProps := fk.PrincipalKey().Properties()
		if len(principalProps) != len(fk.properties) {
			v.addError(et.Name(), PropertyNames(fk.properties),
				fmt.Sprintf("foreign key has %d properties but principal key %s has %d",
					len(fk.properties), fk.PrincipalKey(), len(principalProps)), "")
			continue
		}

		for i, p := range fk.properties {
			if p.DeclaringEntityType() != et {
				v.addError(et.Name(), p.Name(), "foreign key property is declared on another entity type", "")
			}
			if !AreCompatible(p.GoType(), principalProps[i].GoType()) {
				v.addError(et.Name(), p.Name(),
					fmt.Sprintf("foreign key property type %s does not match principal key property %s of type %s",
						p.GoType(), principalProps[i], principalProps[i].GoType()),
					"Use the same underlying type as the principal key")
			}
		}
	}
}

func (v *ModelValidator) validateNavigations(m *Model, et *EntityType) {
	for _, nav := range et.Navigations() {
		target := nav.TargetEntityType()
		if m.FindEntityType(target.Name()) != target {
			v.addError(et.Name(), nav.Name(),
				fmt.Sprintf("navigation targets %s which is not in the model", target.Name()), "")
		}
		if et.FindProperty(nav.Name()) != nil {
			v.addError(et.Name(), nav.Name(), "navigation has the same name as a property", "")
		}
	}
}

func (v *ModelValidator) validateIgnored(et *EntityType) {
	for _, name := range et.IgnoredMembers() {
		if et.FindProperty(name) != nil || et.FindNavigation(name) != nil {
			v.addError(et.Name(), name, "ignored member is still mapped", "")
		}
	}
}

func (v *ModelValidator) validateRequiredCycles(m *Model) {
	for _, cycle := range newRequiredGraph(m).DetectCycles() {
		v.warnings = append(v.warnings,
			fmt.Sprintf("required relationships form a cycle: %s -> %s", strings.Join(cycle, " -> "), cycle[0]))
	}
}
