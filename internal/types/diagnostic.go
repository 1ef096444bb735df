package types

import "fmt"

// Diagnostic is a non-fatal note about an unexpected response shape.
// It is shown inline with the turn it belongs to and never aborts it.
type Diagnostic struct {
	Component string `json:"component"`
	Message   string `json:"message"`
}

// Diagnosticf builds a Diagnostic with a formatted message.
func Diagnosticf(component, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Component: component, Message: fmt.Sprintf(format, args...)}
}

func (d Diagnostic) String() string {
	return d.Component + ": " + d.Message
}
