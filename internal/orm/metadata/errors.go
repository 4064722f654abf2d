package metadata

import "errors"

var (
	// ErrEmptyName is returned when an element is added without a name
	ErrEmptyName = errors.New("name must not be empty")

	// ErrDuplicateEntityType is returned when an entity type name or Go type is already mapped
	ErrDuplicateEntityType = errors.New("duplicate entity type")

	// ErrDuplicateProperty is returned when a member name is already used by a property or navigation
	ErrDuplicateProperty = errors.New("duplicate member")

	// ErrDuplicateKey is returned when a key over the same properties already exists
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrDuplicateForeignKey is returned when an identical foreign key already exists
	ErrDuplicateForeignKey = errors.New("duplicate foreign key")

	// ErrDuplicateIndex is returned when an index over the same properties already exists
	ErrDuplicateIndex = errors.New("duplicate index")

	// ErrInvalidType is returned for Go types that cannot be mapped
	ErrInvalidType = errors.New("invalid type")

	// ErrForeignMember is returned when a property does not belong to the expected entity type
	ErrForeignMember = errors.New("property belongs to a different entity type")

	// ErrNoPrimaryKey is returned when a principal entity type has no primary key
	ErrNoPrimaryKey = errors.New("entity type has no primary key")

	// ErrInUse is returned when removing an element that other elements still reference
	ErrInUse = errors.New("element is still in use")

	// ErrNotNullable is returned when a non-nullable Go type is configured as nullable
	ErrNotNullable = errors.New("property type cannot hold null")

	// ErrKeyNullable is returned when a key property is configured as nullable
	ErrKeyNullable = errors.New("key property cannot be nullable")

	// ErrIncompatibleKeys is returned when foreign key properties cannot reference a principal key
	ErrIncompatibleKeys = errors.New("foreign key properties do not match the principal key")

	// ErrNavigationConflict is returned when a navigation cannot be attached to a foreign key
	ErrNavigationConflict = errors.New("navigation conflict")
)
