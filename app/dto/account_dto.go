package dto

import "time"

// SaveAccountRequest creates or updates a WhatsApp sender account. The
// API key is write-only; an empty value leaves the stored key untouched
// on update.
type SaveAccountRequest struct {
	Name                  string  `json:"name" validate:"required,max=140"`
	APIBase               string  `json:"api_base" validate:"omitempty,max=255"`
	APIKey                string  `json:"api_key" validate:"omitempty,max=255"`
	Instance              string  `json:"instance" validate:"omitempty,max=140"`
	TextEndpointOverride  *string `json:"text_endpoint_override,omitempty" validate:"omitempty,max=255"`
	MediaEndpointOverride *string `json:"media_endpoint_override,omitempty" validate:"omitempty,max=255"`
	Enabled               bool    `json:"enabled"`
	IsDefault             bool    `json:"is_default"`
	DefaultOutgoing       bool    `json:"default_outgoing"`
	DefaultIncoming       bool    `json:"default_incoming"`
}

// AccountDTO is the API view of an account, without the key
type AccountDTO struct {
	UUID            string     `json:"uuid"`
	Name            string     `json:"name"`
	APIBase         string     `json:"api_base"`
	Instance        string     `json:"instance"`
	Enabled         bool       `json:"enabled"`
	IsDefault       bool       `json:"is_default"`
	DefaultOutgoing bool       `json:"default_outgoing"`
	DefaultIncoming bool       `json:"default_incoming"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}
