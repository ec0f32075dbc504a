// Package form models field-level validation state for the composition
// screen: the error set attached to the form, the dotted/indexed path
// convention for nested fields, and the mapping between server-side
// field identifiers and local form paths.
package form

import (
	"fmt"
	"sort"
)

// Field paths for the top-level form fields.
const (
	PathCustomerID = "customer.id"
	PathItems      = "items"
)

// ItemField addresses a field of the item at the given cart position,
// e.g. ItemField(2, "quantity") == "items[2].quantity".
func ItemField(index int, name string) string {
	return fmt.Sprintf("items[%d].%s", index, name)
}

// Errors maps a form field path to its validation message. It is
// produced either by local pre-submit validation or by a server field
// rejection; both use the same shape so the rendering layer treats
// them identically.
type Errors map[string]string

// Set records a message for the given field path, replacing any prior
// message for that path.
func (e Errors) Set(path, message string) {
	e[path] = message
}

// Get returns the message for a field path, if any.
func (e Errors) Get(path string) (string, bool) {
	msg, ok := e[path]
	return msg, ok
}

// Empty reports whether no field has an error.
func (e Errors) Empty() bool {
	return len(e) == 0
}

// Paths returns the error field paths in stable order, for display and
// logging.
func (e Errors) Paths() []string {
	paths := make([]string, 0, len(e))
	for p := range e {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
