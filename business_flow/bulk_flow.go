package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/peykaro/whatsapp-dispatch/app/dto"
	"github.com/peykaro/whatsapp-dispatch/app/queue"
	"github.com/peykaro/whatsapp-dispatch/models"
	"github.com/peykaro/whatsapp-dispatch/repository"
	"github.com/peykaro/whatsapp-dispatch/utils"
)

// TaskBulkFanout is the queue task name for bulk sends
const TaskBulkFanout = "whatsapp.bulk"

// BulkFlow fans a message out to every number of a recipient list,
// sequentially, with a fixed inter-message delay. No backoff: the
// delay is a gateway throttle, not a retry schedule.
type BulkFlow interface {
	// Create stages a draft bulk send against a recipient list
	Create(ctx context.Context, req *dto.CreateBulkRequest) (*models.BulkMessage, error)
	// Start validates the bulk send and enqueues the fan-out job
	Start(ctx context.Context, bulkUUID string) error
	// RetryFailed re-dispatches the failed children of a finished run
	RetryFailed(ctx context.Context, bulkUUID string) error
	// Progress summarizes the run
	Progress(ctx context.Context, bulkUUID string) (*dto.BulkProgressDTO, error)
	// RegisterHandlers binds the fan-out task on the queue
	RegisterHandlers(q queue.Queue)
}

type BulkFlowImpl struct {
	bulks     repository.BulkMessageRepository
	lists     repository.RecipientListRepository
	messages  repository.WhatsAppMessageRepository
	templates repository.WhatsAppTemplateRepository
	accounts  repository.WhatsAppAccountRepository
	dispatch  DispatchFlow
	queue     queue.Queue
	logger    *log.Logger

	// Delay applied when the document does not set its own
	defaultDelay time.Duration
}

func NewBulkFlow(
	bulks repository.BulkMessageRepository,
	lists repository.RecipientListRepository,
	messages repository.WhatsAppMessageRepository,
	templates repository.WhatsAppTemplateRepository,
	accounts repository.WhatsAppAccountRepository,
	dispatch DispatchFlow,
	q queue.Queue,
	defaultDelay time.Duration,
	logger *log.Logger,
) BulkFlow {
	if defaultDelay <= 0 {
		defaultDelay = utils.DefaultBulkDelay
	}
	return &BulkFlowImpl{
		bulks:        bulks,
		lists:        lists,
		messages:     messages,
		templates:    templates,
		accounts:     accounts,
		dispatch:     dispatch,
		queue:        q,
		defaultDelay: defaultDelay,
		logger:       logger,
	}
}

func (f *BulkFlowImpl) Create(ctx context.Context, req *dto.CreateBulkRequest) (*models.BulkMessage, error) {
	list, err := f.lists.ByName(ctx, req.RecipientListName)
	if err != nil {
		return nil, NewBusinessError("LIST_LOOKUP_FAILED", "Failed to lookup recipient list", err)
	}
	if list == nil {
		return nil, ErrRecipientListNotFound
	}
	if req.TemplateName == "" && req.Content == "" {
		return nil, NewBusinessError("CONTENT_REQUIRED", "Bulk message needs a template or content", ErrContentRequired)
	}

	bulk := &models.BulkMessage{
		RecipientListID: list.ID,
		Status:          models.BulkStatusDraft,
		Kind:            models.MessageKindText,
		DelaySeconds:    req.DelaySeconds,
	}
	if req.TemplateName != "" {
		tmpl, err := f.templates.ByName(ctx, req.TemplateName)
		if err != nil {
			return nil, NewBusinessError("TEMPLATE_LOOKUP_FAILED", "Failed to lookup template", err)
		}
		if tmpl == nil {
			return nil, ErrTemplateNotFound
		}
		if !tmpl.Enabled {
			return nil, ErrTemplateDisabled
		}
		bulk.TemplateID = &tmpl.ID
	}
	if req.Content != "" {
		bulk.Content = utils.ToPtr(req.Content)
	}
	if req.MediaURL != nil && *req.MediaURL != "" {
		bulk.Kind = models.MessageKindMedia
		bulk.MediaURL = req.MediaURL
		bulk.MediaType = req.MediaType
	}
	if req.AccountName != "" {
		account, err := f.accounts.ByName(ctx, req.AccountName)
		if err != nil {
			return nil, NewBusinessError("ACCOUNT_LOOKUP_FAILED", "Failed to lookup account", err)
		}
		if account == nil {
			return nil, ErrAccountNotFound
		}
		if !account.Enabled {
			return nil, ErrAccountDisabled
		}
		bulk.AccountID = &account.ID
	}

	if err := f.bulks.Save(ctx, bulk); err != nil {
		return nil, NewBusinessError("BULK_SAVE_FAILED", "Failed to create bulk message", err)
	}
	return bulk, nil
}

type bulkJob struct {
	BulkID    uint `json:"bulk_id"`
	RetryOnly bool `json:"retry_only,omitempty"`
}

func (f *BulkFlowImpl) RegisterHandlers(q queue.Queue) {
	q.Register(TaskBulkFanout, func(ctx context.Context, payload []byte) error {
		var job bulkJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return fmt.Errorf("bulk: malformed job payload: %w", err)
		}
		if job.RetryOnly {
			return f.runRetry(ctx, job.BulkID)
		}
		return f.run(ctx, job.BulkID)
	})
}

func (f *BulkFlowImpl) loadBulk(ctx context.Context, bulkUUID string) (*models.BulkMessage, error) {
	id, err := uuid.Parse(bulkUUID)
	if err != nil {
		return nil, NewBusinessError("INVALID_BULK_ID", "Bulk id is not a valid UUID", err)
	}
	bulk, err := f.bulks.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("BULK_LOOKUP_FAILED", "Failed to lookup bulk message", err)
	}
	if bulk == nil {
		return nil, ErrBulkNotFound
	}
	return bulk, nil
}

func (f *BulkFlowImpl) Start(ctx context.Context, bulkUUID string) error {
	bulk, err := f.loadBulk(ctx, bulkUUID)
	if err != nil {
		return err
	}
	if !bulk.CanStart() {
		return ErrBulkNotStartable
	}
	if bulk.TemplateID == nil && (bulk.Content == nil || *bulk.Content == "") {
		return NewBusinessError("CONTENT_REQUIRED", "Bulk message needs a template or content", ErrContentRequired)
	}

	entries, err := f.lists.ListEntries(ctx, bulk.RecipientListID)
	if err != nil {
		return NewBusinessError("LIST_LOOKUP_FAILED", "Failed to load recipient list", err)
	}
	if len(entries) == 0 {
		return ErrBulkEmptyList
	}

	bulk.Status = models.BulkStatusQueued
	if err := f.bulks.Update(ctx, bulk); err != nil {
		return NewBusinessError("BULK_SAVE_FAILED", "Failed to update bulk message", err)
	}
	return f.enqueue(ctx, bulk.ID, false)
}

func (f *BulkFlowImpl) enqueue(ctx context.Context, bulkID uint, retryOnly bool) error {
	payload, err := json.Marshal(bulkJob{BulkID: bulkID, RetryOnly: retryOnly})
	if err != nil {
		return NewBusinessError("ENQUEUE_FAILED", "Failed to encode bulk job", err)
	}
	if err := f.queue.Enqueue(ctx, TaskBulkFanout, payload); err != nil {
		return NewBusinessError("ENQUEUE_FAILED", "Failed to enqueue bulk job", err)
	}
	return nil
}

func (f *BulkFlowImpl) delay(bulk *models.BulkMessage) time.Duration {
	if bulk.DelaySeconds > 0 {
		return time.Duration(bulk.DelaySeconds) * time.Second
	}
	return f.defaultDelay
}

// run is the fan-out worker: one placeholder per entry, dispatched in
// order with the fixed delay in between.
func (f *BulkFlowImpl) run(ctx context.Context, bulkID uint) error {
	bulk, err := f.bulks.ByID(ctx, bulkID)
	if err != nil {
		return err
	}
	if bulk == nil || bulk.Status != models.BulkStatusQueued {
		return nil
	}

	list, err := f.lists.ByID(ctx, bulk.RecipientListID)
	if err != nil || list == nil {
		f.logger.Printf("bulk %d: recipient list %d missing", bulk.ID, bulk.RecipientListID)
		return err
	}
	entries, err := f.lists.ListEntries(ctx, bulk.RecipientListID)
	if err != nil {
		return err
	}

	bulk.Status = models.BulkStatusInProgress
	bulk.StartedAt = utils.UTCNowPtr()
	if err := f.bulks.Update(ctx, bulk); err != nil {
		return err
	}

	accountName, err := f.accountName(ctx, bulk)
	if err != nil {
		return err
	}

	delay := f.delay(bulk)
	failures := 0
	first := true
	for _, entry := range entries {
		if list.IsExcluded(entry.Number) {
			continue
		}
		if !first {
			if err := sleepCtx(ctx, delay); err != nil {
				return err
			}
		}
		first = false

		ok := f.sendOne(ctx, bulk, entry, accountName)
		if ok {
			if err := f.bulks.IncrementSentCount(ctx, bulk.ID); err != nil {
				f.logger.Printf("bulk %d: failed to bump sent count: %v", bulk.ID, err)
			}
		} else {
			failures++
			if err := f.bulks.IncrementFailedCount(ctx, bulk.ID); err != nil {
				f.logger.Printf("bulk %d: failed to bump failed count: %v", bulk.ID, err)
			}
		}
	}

	return f.finish(ctx, bulk.ID, failures)
}

// accountName resolves the bulk's explicit account id back to a name
// for the dispatch path
func (f *BulkFlowImpl) accountName(ctx context.Context, bulk *models.BulkMessage) (string, error) {
	if bulk.AccountID == nil {
		return "", nil
	}
	account, err := f.accounts.ByID(ctx, *bulk.AccountID)
	if err != nil {
		return "", err
	}
	if account == nil {
		return "", ErrAccountNotFound
	}
	return account.Name, nil
}

// sendOne creates the placeholder for one entry and drives it to a
// terminal state. Skipped counts as delivered for bulk accounting.
func (f *BulkFlowImpl) sendOne(ctx context.Context, bulk *models.BulkMessage, entry *models.RecipientListEntry, accountName string) bool {
	msg := &models.WhatsAppMessage{
		Direction:         models.MessageDirectionOutgoing,
		Kind:              bulk.Kind,
		Status:            models.MessageStatusQueued,
		ToNumber:          entry.Number,
		TemplateID:        bulk.TemplateID,
		BulkMessageID:     &bulk.ID,
		MediaURL:          bulk.MediaURL,
		MediaType:         bulk.MediaType,
		AccountID:         bulk.AccountID,
		ProviderMessageID: utils.ToPtr(queuedTrackingID()),
	}
	if bulk.Content != nil {
		msg.Content = *bulk.Content
	}
	if err := f.messages.Save(ctx, msg); err != nil {
		f.logger.Printf("bulk %d: failed to create placeholder for %s: %v", bulk.ID, entry.Number, err)
		return false
	}

	final, err := f.dispatch.DispatchPlaceholder(ctx, msg.ID, entry.Data, accountName)
	if err != nil {
		f.logger.Printf("bulk %d: dispatch error for %s: %v", bulk.ID, entry.Number, err)
		return false
	}
	return final != nil && final.Status != models.MessageStatusFailed
}

func (f *BulkFlowImpl) finish(ctx context.Context, bulkID uint, failures int) error {
	bulk, err := f.bulks.ByID(ctx, bulkID)
	if err != nil || bulk == nil {
		return err
	}
	if failures == 0 && bulk.FailedCount == 0 {
		bulk.Status = models.BulkStatusCompleted
	} else {
		bulk.Status = models.BulkStatusPartiallyFailed
	}
	bulk.CompletedAt = utils.UTCNowPtr()
	return f.bulks.Update(ctx, bulk)
}

func (f *BulkFlowImpl) RetryFailed(ctx context.Context, bulkUUID string) error {
	bulk, err := f.loadBulk(ctx, bulkUUID)
	if err != nil {
		return err
	}
	if bulk.Status != models.BulkStatusPartiallyFailed {
		return ErrBulkNotStartable
	}
	return f.enqueue(ctx, bulk.ID, true)
}

// runRetry walks the failed children and re-dispatches them with the
// same pacing as the original run.
func (f *BulkFlowImpl) runRetry(ctx context.Context, bulkID uint) error {
	bulk, err := f.bulks.ByID(ctx, bulkID)
	if err != nil || bulk == nil {
		return err
	}

	failed, err := f.messages.ListFailedByBulkMessage(ctx, bulkID)
	if err != nil {
		return err
	}
	if len(failed) == 0 {
		return f.finishRetry(ctx, bulkID)
	}

	entries, err := f.lists.ListEntries(ctx, bulk.RecipientListID)
	if err != nil {
		return err
	}
	auxByNumber := make(map[string]models.AuxData, len(entries))
	for _, e := range entries {
		auxByNumber[e.Number] = e.Data
	}

	bulk.Status = models.BulkStatusInProgress
	if err := f.bulks.Update(ctx, bulk); err != nil {
		return err
	}

	accountName, err := f.accountName(ctx, bulk)
	if err != nil {
		return err
	}

	delay := f.delay(bulk)
	for i, msg := range failed {
		if i > 0 {
			if err := sleepCtx(ctx, delay); err != nil {
				return err
			}
		}

		msg.Status = models.MessageStatusQueued
		msg.ErrorDetail = nil
		msg.ProviderMessageID = utils.ToPtr(queuedTrackingID())
		if err := f.messages.Update(ctx, msg); err != nil {
			continue
		}

		final, err := f.dispatch.DispatchPlaceholder(ctx, msg.ID, auxByNumber[msg.ToNumber], accountName)
		if err != nil || final == nil || final.Status == models.MessageStatusFailed {
			continue
		}
		if err := f.bulks.IncrementSentCount(ctx, bulk.ID); err != nil {
			f.logger.Printf("bulk %d: failed to bump sent count: %v", bulk.ID, err)
		}
	}

	return f.finishRetry(ctx, bulk.ID)
}

// finishRetry recounts the failed children from the ledger, the source
// of truth after a retry pass, and settles the final status.
func (f *BulkFlowImpl) finishRetry(ctx context.Context, bulkID uint) error {
	bulk, err := f.bulks.ByID(ctx, bulkID)
	if err != nil || bulk == nil {
		return err
	}

	failedRows, err := f.messages.ListFailedByBulkMessage(ctx, bulkID)
	if err != nil {
		return err
	}
	bulk.FailedCount = len(failedRows)
	if bulk.FailedCount == 0 {
		bulk.Status = models.BulkStatusCompleted
	} else {
		bulk.Status = models.BulkStatusPartiallyFailed
	}
	bulk.CompletedAt = utils.UTCNowPtr()
	return f.bulks.Update(ctx, bulk)
}

func (f *BulkFlowImpl) Progress(ctx context.Context, bulkUUID string) (*dto.BulkProgressDTO, error) {
	bulk, err := f.loadBulk(ctx, bulkUUID)
	if err != nil {
		return nil, err
	}

	entries, err := f.lists.ListEntries(ctx, bulk.RecipientListID)
	if err != nil {
		return nil, NewBusinessError("LIST_LOOKUP_FAILED", "Failed to load recipient list", err)
	}

	total := len(entries)
	progress := &dto.BulkProgressDTO{
		UUID:        bulk.UUID.String(),
		Status:      bulk.Status.String(),
		Total:       total,
		Sent:        bulk.SentCount,
		Failed:      bulk.FailedCount,
		StartedAt:   bulk.StartedAt,
		CompletedAt: bulk.CompletedAt,
	}
	progress.Queued = total - progress.Sent - progress.Failed
	if progress.Queued < 0 {
		progress.Queued = 0
	}
	if total > 0 {
		progress.Percent = float64(progress.Sent+progress.Failed) / float64(total) * 100
	}
	return progress, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
