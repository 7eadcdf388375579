package dto

import "time"

// CreateBulkRequest stages a bulk send against a recipient list.
// Either a template name or raw content must be supplied.
type CreateBulkRequest struct {
	RecipientListName string  `json:"recipient_list_name" validate:"required"`
	TemplateName      string  `json:"template_name,omitempty"`
	Content           string  `json:"content,omitempty"`
	MediaURL          *string `json:"media_url,omitempty" validate:"omitempty,url"`
	MediaType         *string `json:"media_type,omitempty"`
	AccountName       string  `json:"account_name,omitempty"`
	DelaySeconds      int     `json:"delay_seconds,omitempty" validate:"omitempty,min=0,max=3600"`
}

type BulkMessageDTO struct {
	UUID         string `json:"uuid"`
	Status       string `json:"status"`
	DelaySeconds int    `json:"delay_seconds"`
	SentCount    int    `json:"sent_count"`
	FailedCount  int    `json:"failed_count"`
}

// BulkProgressDTO summarizes a fan-out run
type BulkProgressDTO struct {
	UUID        string     `json:"uuid"`
	Status      string     `json:"status"`
	Total       int        `json:"total"`
	Sent        int        `json:"sent"`
	Failed      int        `json:"failed"`
	Queued      int        `json:"queued"`
	Percent     float64    `json:"percent"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ImportRecipientsResponse reports an xlsx or contact-sync import
type ImportRecipientsResponse struct {
	ListName string `json:"list_name"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
}
