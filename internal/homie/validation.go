package homie

import (
	"fmt"
	"regexp"
)

// idRegex admits lowercase letters, digits and hyphens, with no hyphen at
// either end. Runs of hyphens inside the id are allowed.
var idRegex = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)

// ValidID reports whether id is a legal device, node or property id.
//
//	ValidID("sensor-1") // true
//	ValidID("Sensor1")  // false: uppercase
//	ValidID("-sensor")  // false: leading hyphen
//	ValidID("")         // false
func ValidID(id string) bool {
	return idRegex.MatchString(id)
}

// validateID wraps ErrInvalidID with the kind and offending id.
func validateID(kind, id string) error {
	if !ValidID(id) {
		return fmt.Errorf("%w: %s id %q", ErrInvalidID, kind, id)
	}
	return nil
}

// validateProperty checks a property descriptor before it is inserted.
func validateProperty(p PropertyDescriptor) error {
	if err := validateID("property", p.ID); err != nil {
		return err
	}
	switch p.Datatype {
	case DatatypeInteger, DatatypeFloat, DatatypeBoolean, DatatypeString, DatatypeEnum, DatatypeColor:
	default:
		return fmt.Errorf("%w: property %q has datatype %q", ErrInvalidValue, p.ID, p.Datatype)
	}
	return nil
}

// validateNode checks a node descriptor and all of its properties.
func validateNode(n NodeDescriptor) error {
	if err := validateID("node", n.ID); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(n.Properties))
	for _, p := range n.Properties {
		if err := validateProperty(p); err != nil {
			return fmt.Errorf("node %q: %w", n.ID, err)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: node %q property %q", ErrDuplicateID, n.ID, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}
