package engine

import "fmt"

// PathElement is either a string field name or an int list index.
type PathElement any

// Path locates a field in the response tree.
type Path []PathElement

// child returns a new path extended by one element. The backing array is
// always copied so sibling paths never alias.
func (p Path) child(elem PathElement) Path {
	next := make(Path, len(p)+1)
	copy(next, p)
	next[len(p)] = elem
	return next
}

// String renders the path in dotted notation with bracketed indexes,
// e.g. "topology.components[2].health".
func (p Path) String() string {
	out := ""
	for _, elem := range p {
		switch v := elem.(type) {
		case string:
			if out != "" {
				out += "."
			}
			out += v
		case int:
			out += fmt.Sprintf("[%d]", v)
		}
	}
	return out
}

// FieldError is one field-level failure, tagged with the path of the field
// whose value became null because of it.
type FieldError struct {
	Message string `json:"message"`
	Path    Path   `json:"path,omitempty"`
}

// Error implements the error interface.
func (e *FieldError) Error() string { return e.Message }

// Envelope is the structured result of one resolution pass: a data tree
// mirroring the requested selection shape plus the ordered field-level
// errors collected along the way. A field-level error never removes sibling
// data; the failing path carries null instead.
type Envelope struct {
	Data   any           `json:"data"`
	Errors []*FieldError `json:"errors,omitempty"`
}

// ErrorEnvelope builds an envelope carrying no data and a single error.
// Used for operation-level rejections (validation failures, unknown
// operations, terminal producer errors).
func ErrorEnvelope(err error) *Envelope {
	return &Envelope{Errors: []*FieldError{{Message: err.Error()}}}
}

// HasErrors reports whether any field-level error was recorded.
func (e *Envelope) HasErrors() bool { return len(e.Errors) > 0 }
