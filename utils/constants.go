package utils

import (
	"time"
)

// Dedup window constants
const (
	// TextDedupTTL is the idempotency window for outgoing text messages
	TextDedupTTL = 45 * time.Second

	// MediaDedupTTL is the idempotency window for outgoing media messages
	MediaDedupTTL = 60 * time.Second

	// NotificationDedupTTL is the suppression window for rule-triggered
	// notifications keyed by rule, document and recipient
	NotificationDedupTTL = 180 * time.Second

	// DuplicateLookback is how far back the delivery ledger is scanned
	// for an equivalent in-flight or delivered message
	DuplicateLookback = 120 * time.Second
)

// Provider HTTP constants
const (
	// ProviderTextTimeout bounds a single text send attempt
	ProviderTextTimeout = 20 * time.Second

	// ProviderMediaTimeout bounds a single media send attempt
	ProviderMediaTimeout = 25 * time.Second

	// ProviderErrorBodyLimit caps how much of a failing response body is
	// kept in the aggregated attempt error
	ProviderErrorBodyLimit = 180
)

// Sentinel message identifiers
const (
	// DedupSkipID is recorded as the provider message id when a send was
	// suppressed by the idempotency guard
	DedupSkipID = "dedup-skip"

	// QueuedIDPrefix prefixes the placeholder id assigned when a message
	// is accepted for asynchronous delivery
	QueuedIDPrefix = "queue-"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Bulk delivery constants
const (
	// DefaultBulkDelay is the pause between consecutive recipients of a
	// bulk send when the document does not set its own delay
	DefaultBulkDelay = 60 * time.Second
)
