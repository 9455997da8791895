package properties

import (
	"fmt"
	"strings"
)

// PropertyNotFoundError is returned when a property is neither present in a
// module's payload nor declared for the module.
type PropertyNotFoundError struct {
	// Module is the module that was queried
	Module string

	// Property is the name that was requested
	Property string

	// Available lists the property names the module declares
	Available []string
}

// Error implements the error interface.
func (e *PropertyNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("property %q not found in data for module %q: the resource key provides no properties for this module",
			e.Property, e.Module)
	}
	return fmt.Sprintf("property %q not found in data for module %q: available properties are %s",
		e.Property, e.Module, strings.Join(e.Available, ", "))
}
