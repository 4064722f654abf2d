package metadata

// Navigation is a member that references related entities through a foreign key
type Navigation struct {
	Annotations

	declaringEntityType *EntityType
	name                string
	foreignKey          *ForeignKey
	pointsToPrincipal   bool
}

// Name returns the navigation name
func (n *Navigation) Name() string { return n.name }

// DeclaringEntityType returns the entity type that owns the navigation
func (n *Navigation) DeclaringEntityType() *EntityType { return n.declaringEntityType }

// ForeignKey returns the foreign key the navigation traverses
func (n *Navigation) ForeignKey() *ForeignKey { return n.foreignKey }

// PointsToPrincipal reports whether the navigation goes from dependent to principal
func (n *Navigation) PointsToPrincipal() bool { return n.pointsToPrincipal }

// IsCollection reports whether the navigation holds many dependents
func (n *Navigation) IsCollection() bool {
	return !n.pointsToPrincipal && !n.foreignKey.IsUnique()
}

// TargetEntityType returns the entity type at the other end of the navigation
func (n *Navigation) TargetEntityType() *EntityType {
	if n.pointsToPrincipal {
		return n.foreignKey.PrincipalEntityType()
	}
	return n.foreignKey.declaringEntityType
}

// Inverse returns the navigation on the other side of the foreign key, or nil
func (n *Navigation) Inverse() *Navigation {
	if n.pointsToPrincipal {
		return n.foreignKey.principalToDependent
	}
	return n.foreignKey.dependentToPrincipal
}

// String returns Entity.Navigation
func (n *Navigation) String() string {
	return n.declaringEntityType.name + "." + n.name
}
