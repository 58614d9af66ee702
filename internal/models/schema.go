package models

// PropertyKind tells the delta diff how to compare a property.
type PropertyKind int

const (
	// PropertyScalar values (including simple references by id) compare by value.
	PropertyScalar PropertyKind = iota
	// PropertyOwnedEntity is a single nested entity owned by its parent.
	PropertyOwnedEntity
	// PropertyOwnedCollection is a list of nested entities owned by their parent.
	PropertyOwnedCollection
)

// Property describes one JSON field of an entity type.
type Property struct {
	Name string
	Kind PropertyKind
}

// Schema lists the properties of an entity type that need non-scalar
// treatment. Properties not listed are scalars.
type Schema struct {
	Properties []Property
}

// Kind returns the declared kind of the named property.
func (s *Schema) Kind(name string) PropertyKind {
	if s == nil {
		return PropertyScalar
	}
	for _, p := range s.Properties {
		if p.Name == name {
			return p.Kind
		}
	}
	return PropertyScalar
}
