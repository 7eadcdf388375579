// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
)

const RequestIDKey = "X-Request-ID"

// DocumentSnapshot is a point-in-time view of the business document a
// message refers to. Field values are pre-rendered strings; Previous
// carries the prior values for value-change rules.
type DocumentSnapshot struct {
	Doctype  string            `json:"doctype"`
	Name     string            `json:"name"`
	Fields   map[string]string `json:"fields"`
	Previous map[string]string `json:"previous,omitempty"`
}

// Get returns the field value, empty when absent
func (d *DocumentSnapshot) Get(field string) string {
	if d == nil || d.Fields == nil {
		return ""
	}
	return d.Fields[field]
}

// Has reports whether the field is present and non-empty
func (d *DocumentSnapshot) Has(field string) bool {
	return d.Get(field) != ""
}

// Changed reports whether the field differs from the previous snapshot
func (d *DocumentSnapshot) Changed(field string) bool {
	if d == nil || d.Previous == nil {
		return false
	}
	return d.Previous[field] != d.Get(field)
}

// DocumentStore loads document snapshots and applies post-send
// property updates. The API surface feeds snapshots directly; the
// scheduler uses the store to collect due documents.
type DocumentStore interface {
	// Load returns the snapshot, or nil when the document is unknown
	Load(ctx context.Context, doctype, name string) (*DocumentSnapshot, error)
	// ListDueOn returns the names of documents whose date field value
	// falls on the given day (YYYY-MM-DD)
	ListDueOn(ctx context.Context, doctype, dateField, day string) ([]string, error)
	// SetProperty writes one field of the document
	SetProperty(ctx context.Context, doctype, name, field, value string) error
}

// ConditionEvaluator decides whether a rule's condition expression
// holds against a document snapshot. An empty expression is true.
type ConditionEvaluator interface {
	Evaluate(ctx context.Context, expr string, doc *DocumentSnapshot) (bool, error)
}

// FailureKind tags a send failure so hook adapters can decide whether
// to surface it to the user or just log it.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureValidation FailureKind = "validation"
	FailureProvider   FailureKind = "provider"
)

// SendResult is the outcome of one dispatch operation
type SendResult struct {
	MessageID   uint        `json:"message_id"`
	TrackingID  string      `json:"tracking_id"`
	Status      string      `json:"status"`
	ProviderID  string      `json:"provider_id,omitempty"`
	Failure     FailureKind `json:"failure,omitempty"`
	ErrorDetail string      `json:"error_detail,omitempty"`
}

// Succeeded reports whether the message reached the provider
func (r *SendResult) Succeeded() bool {
	return r != nil && r.Failure == FailureNone && r.ErrorDetail == ""
}
