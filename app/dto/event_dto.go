package dto

// DocumentEventRequest notifies the service that a business document
// changed, carrying the snapshot that notification rules run against.
type DocumentEventRequest struct {
	Doctype  string            `json:"doctype" validate:"required,max=140"`
	Name     string            `json:"name" validate:"required,max=140"`
	Event    string            `json:"event" validate:"required,oneof=new update submit cancel value_change"`
	Fields   map[string]string `json:"fields,omitempty"`
	Previous map[string]string `json:"previous,omitempty"`
}
