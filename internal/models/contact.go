package models

// Contact is one dispatch recipient: an address plus arbitrary named fields
// available for template substitution.
type Contact struct {
	Address string            `json:"address"`
	Fields  map[string]string `json:"fields,omitempty"`
}
