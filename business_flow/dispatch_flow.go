package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/peykaro/whatsapp-dispatch/app/dto"
	"github.com/peykaro/whatsapp-dispatch/app/queue"
	"github.com/peykaro/whatsapp-dispatch/app/services"
	"github.com/peykaro/whatsapp-dispatch/models"
	"github.com/peykaro/whatsapp-dispatch/repository"
	"github.com/peykaro/whatsapp-dispatch/utils"
)

// TaskDispatchMessage is the queue task name for background sends
const TaskDispatchMessage = "whatsapp.dispatch"

var dispatchOutcomes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "whatsapp_dispatch_outcomes_total",
		Help: "Terminal outcomes of outgoing message dispatch attempts",
	},
	[]string{"status", "kind"},
)

// ProviderClient is the provider surface the dispatch flow needs
type ProviderClient interface {
	SendText(ctx context.Context, settings services.ProviderSettings, to, text string) (string, error)
	SendMedia(ctx context.Context, settings services.ProviderSettings, to string, media services.MediaAttachment) (string, error)
}

// DispatchConfig carries the flow's tunables
type DispatchConfig struct {
	// Global provider settings used when account fields are empty
	ProviderDefaults services.ProviderSettings

	// Ledger lookback window for the duplicate scan
	DuplicateLookback time.Duration
}

// DispatchFlow orchestrates the outgoing message lifecycle:
// Queued -> Started -> Success | Failed | Skipped
type DispatchFlow interface {
	// SendTemplate queues one placeholder per resolved recipient and
	// returns their tracking ids immediately.
	SendTemplate(ctx context.Context, req *dto.SendTemplateRequest) (*dto.QueueResponse, error)
	// SendCustom queues a free-form message through the default
	// outgoing account.
	SendCustom(ctx context.Context, req *dto.SendCustomRequest) (*dto.QueueResponse, error)
	// SendInline dispatches synchronously, provider call first, ledger
	// row after. Failures come back tagged for the hook adapter.
	SendInline(ctx context.Context, req *dto.SendTemplateRequest) (*SendResult, error)
	// Preview renders a template without dedup or delivery
	Preview(ctx context.Context, req *dto.PreviewRequest) (*dto.PreviewResponse, error)
	// GetMessage returns the ledger row for a tracking uuid
	GetMessage(ctx context.Context, trackingUUID string) (*models.WhatsAppMessage, error)
	// RetryFailed flips a failed row back to queued and re-enqueues it
	RetryFailed(ctx context.Context, trackingUUID string) (*dto.QueueResponse, error)
	// DispatchPlaceholder runs the send attempt that owns a queued
	// placeholder synchronously and returns the row in its terminal
	// state. The bulk fan-out loop drives its recipients through this.
	DispatchPlaceholder(ctx context.Context, messageID uint, aux models.AuxData, accountName string) (*models.WhatsAppMessage, error)
	// RegisterHandlers binds the flow's background tasks on the queue
	RegisterHandlers(q queue.Queue)
}

type DispatchFlowImpl struct {
	messages  repository.WhatsAppMessageRepository
	templates repository.WhatsAppTemplateRepository
	accounts  repository.WhatsAppAccountRepository
	renderer  *TemplateRenderer
	resolver  *RecipientResolver
	provider  ProviderClient
	dedup     *services.DedupGuard
	queue     queue.Queue
	config    DispatchConfig
	logger    *log.Logger
}

func NewDispatchFlow(
	messages repository.WhatsAppMessageRepository,
	templates repository.WhatsAppTemplateRepository,
	accounts repository.WhatsAppAccountRepository,
	renderer *TemplateRenderer,
	resolver *RecipientResolver,
	provider ProviderClient,
	dedup *services.DedupGuard,
	q queue.Queue,
	config DispatchConfig,
	logger *log.Logger,
) DispatchFlow {
	if config.DuplicateLookback <= 0 {
		config.DuplicateLookback = utils.DuplicateLookback
	}
	return &DispatchFlowImpl{
		messages:  messages,
		templates: templates,
		accounts:  accounts,
		renderer:  renderer,
		resolver:  resolver,
		provider:  provider,
		dedup:     dedup,
		queue:     q,
		config:    config,
		logger:    logger,
	}
}

// dispatchJob is the queue payload for one placeholder
type dispatchJob struct {
	MessageID   uint              `json:"message_id"`
	BodyParams  string            `json:"body_params,omitempty"`
	Aux         models.AuxData    `json:"aux,omitempty"`
	Document    *DocumentSnapshot `json:"document,omitempty"`
	AccountName string            `json:"account_name,omitempty"`
}

func (f *DispatchFlowImpl) RegisterHandlers(q queue.Queue) {
	q.Register(TaskDispatchMessage, func(ctx context.Context, payload []byte) error {
		var job dispatchJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return fmt.Errorf("dispatch: malformed job payload: %w", err)
		}
		return f.processQueued(ctx, &job)
	})
}

func queuedTrackingID() string {
	return utils.QueuedIDPrefix + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

func snapshotFromPayload(p *dto.DocumentPayload) *DocumentSnapshot {
	if p == nil {
		return nil
	}
	return &DocumentSnapshot{
		Doctype:  p.Doctype,
		Name:     p.Name,
		Fields:   p.Fields,
		Previous: p.Previous,
	}
}

func (f *DispatchFlowImpl) SendTemplate(ctx context.Context, req *dto.SendTemplateRequest) (*dto.QueueResponse, error) {
	tpl, err := f.loadTemplate(ctx, req.TemplateName)
	if err != nil {
		return nil, err
	}

	doc := snapshotFromPayload(req.Document)
	recipients := f.resolver.Resolve(ctx, doc, req.To, req.RecipientField)
	if len(recipients) == 0 {
		return nil, NewBusinessError("NO_RECIPIENT", "No recipient could be resolved", ErrNoRecipient)
	}

	kind := models.MessageKindText
	if tpl.HasMedia() {
		kind = models.MessageKindMedia
	}

	resp := &dto.QueueResponse{}
	for _, to := range recipients {
		msg := &models.WhatsAppMessage{
			Direction:         models.MessageDirectionOutgoing,
			Kind:              kind,
			Status:            models.MessageStatusQueued,
			ToNumber:          to,
			TemplateID:        &tpl.ID,
			MediaURL:          tpl.MediaURL,
			MediaType:         tpl.MediaType,
			ProviderMessageID: utils.ToPtr(queuedTrackingID()),
		}
		if doc != nil {
			msg.RefDoctype = &doc.Doctype
			msg.RefDocname = &doc.Name
		}
		if err := f.messages.Save(ctx, msg); err != nil {
			return nil, NewBusinessError("MESSAGE_SAVE_FAILED", "Failed to create message placeholder", err)
		}

		if err := f.enqueue(ctx, msg, req.BodyParams, doc, req.AccountName, req.DelaySeconds); err != nil {
			return nil, err
		}
		resp.Queued++
		resp.Messages = append(resp.Messages, dto.QueuedMessageDTO{TrackingID: msg.UUID.String(), To: to})
	}
	return resp, nil
}

func (f *DispatchFlowImpl) SendCustom(ctx context.Context, req *dto.SendCustomRequest) (*dto.QueueResponse, error) {
	if req.Text == "" && req.MediaURL == "" {
		return nil, NewBusinessError("CONTENT_REQUIRED", "Either text or media is required", ErrContentRequired)
	}

	doc := snapshotFromPayload(req.Document)
	recipients := f.resolver.Resolve(ctx, doc, req.To, "")
	if len(recipients) == 0 {
		return nil, NewBusinessError("INVALID_RECIPIENT", "Recipient is not a valid phone number", ErrInvalidRecipient)
	}

	kind := models.MessageKindText
	if req.MediaURL != "" {
		kind = models.MessageKindMedia
	}

	resp := &dto.QueueResponse{}
	for _, to := range recipients {
		msg := &models.WhatsAppMessage{
			Direction:         models.MessageDirectionOutgoing,
			Kind:              kind,
			Status:            models.MessageStatusQueued,
			ToNumber:          to,
			Content:           req.Text,
			ProviderMessageID: utils.ToPtr(queuedTrackingID()),
		}
		if req.MediaURL != "" {
			msg.MediaURL = &req.MediaURL
			msg.MediaType = utils.ToPtr(req.MediaType)
			msg.Caption = utils.ToPtr(req.Caption)
		}
		if doc != nil {
			msg.RefDoctype = &doc.Doctype
			msg.RefDocname = &doc.Name
		}
		if err := f.messages.Save(ctx, msg); err != nil {
			return nil, NewBusinessError("MESSAGE_SAVE_FAILED", "Failed to create message placeholder", err)
		}

		// Custom sends always go through the default outgoing account
		if err := f.enqueue(ctx, msg, "", doc, "", req.DelaySeconds); err != nil {
			return nil, err
		}
		resp.Queued++
		resp.Messages = append(resp.Messages, dto.QueuedMessageDTO{TrackingID: msg.UUID.String(), To: to})
	}
	return resp, nil
}

func (f *DispatchFlowImpl) enqueue(ctx context.Context, msg *models.WhatsAppMessage, bodyParams string, doc *DocumentSnapshot, accountName string, delaySeconds int) error {
	payload, err := json.Marshal(dispatchJob{
		MessageID:   msg.ID,
		BodyParams:  bodyParams,
		Document:    doc,
		AccountName: accountName,
	})
	if err != nil {
		return NewBusinessError("ENQUEUE_FAILED", "Failed to encode dispatch job", err)
	}

	var opts []queue.Option
	if delaySeconds > 0 {
		opts = append(opts, queue.WithDelay(time.Duration(delaySeconds)*time.Second))
	}
	if err := f.queue.Enqueue(ctx, TaskDispatchMessage, payload, opts...); err != nil {
		return NewBusinessError("ENQUEUE_FAILED", "Failed to enqueue dispatch job", err)
	}
	return nil
}

// processQueued is the background half of a queued send. It owns the
// placeholder: no other path mutates the row once it leaves Queued.
func (f *DispatchFlowImpl) processQueued(ctx context.Context, job *dispatchJob) error {
	msg, err := f.messages.ByID(ctx, job.MessageID)
	if err != nil {
		return err
	}
	if msg == nil || msg.Status != models.MessageStatusQueued {
		return nil
	}

	msg.Status = models.MessageStatusStarted
	if err := f.messages.Update(ctx, msg); err != nil {
		return err
	}

	content, media, err := f.prepareContent(ctx, msg, job)
	if err != nil {
		f.finishFailed(ctx, msg, err.Error())
		return nil
	}
	msg.Content = content

	// Ledger lookback, excluding our own placeholder
	if msg.RefDoctype != nil && msg.RefDocname != nil {
		since := utils.UTCNowAdd(-f.config.DuplicateLookback)
		dup, err := f.messages.RecentDuplicateExists(ctx, *msg.RefDoctype, *msg.RefDocname, msg.ToNumber, msg.TemplateID, since, &msg.ID)
		if err != nil {
			f.logger.Printf("dispatch: duplicate scan failed for message %d: %v", msg.ID, err)
		} else if dup {
			f.finishSkipped(ctx, msg)
			return nil
		}
	}

	account, err := f.resolveAccount(ctx, job.AccountName)
	if err != nil {
		f.finishFailed(ctx, msg, err.Error())
		return nil
	}

	providerID, err := f.sendWithFallback(ctx, account, msg, content, media)
	if err != nil {
		f.finishFailed(ctx, msg, err.Error())
		return nil
	}
	f.finishSuccess(ctx, msg, providerID)
	return nil
}

// prepareContent renders the template (or keeps the custom body) and
// assembles the media attachment.
func (f *DispatchFlowImpl) prepareContent(ctx context.Context, msg *models.WhatsAppMessage, job *dispatchJob) (string, *services.MediaAttachment, error) {
	content := msg.Content

	if msg.TemplateID != nil {
		tpl, err := f.templates.ByID(ctx, *msg.TemplateID)
		if err != nil {
			return "", nil, fmt.Errorf("template lookup failed: %w", err)
		}
		if tpl == nil {
			return "", nil, ErrTemplateNotFound
		}
		params := f.renderer.ResolveParams(ctx, tpl, job.BodyParams, job.Aux, job.Document)
		if len(params) == 0 && len(msg.Params) > 0 {
			// Retry path, reuse the parameters of the original attempt
			params = msg.Params
		}
		content = f.renderer.Render(tpl.Body, params)
		msg.Params = params
	}

	var media *services.MediaAttachment
	if msg.Kind == models.MessageKindMedia {
		if msg.MediaURL == nil || *msg.MediaURL == "" {
			return "", nil, errors.New("media message without media url")
		}
		media = &services.MediaAttachment{
			URL:     *msg.MediaURL,
			Caption: content,
		}
		if msg.MediaType != nil {
			media.MimeType = *msg.MediaType
		}
		if msg.Caption != nil && *msg.Caption != "" {
			media.Caption = *msg.Caption
		}
	}
	return content, media, nil
}

// resolveAccount picks the sender: explicit name, then default
// outgoing, then any default, then any enabled account.
func (f *DispatchFlowImpl) resolveAccount(ctx context.Context, name string) (*models.WhatsAppAccount, error) {
	if name != "" {
		account, err := f.accounts.ByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("account lookup failed: %w", err)
		}
		if account == nil {
			return nil, ErrAccountNotFound
		}
		if !account.Enabled {
			return nil, ErrAccountDisabled
		}
		return account, nil
	}

	for _, pick := range []func(context.Context) (*models.WhatsAppAccount, error){
		f.accounts.DefaultOutgoing,
		f.accounts.AnyDefault,
		f.accounts.AnyEnabled,
	} {
		account, err := pick(ctx)
		if err != nil {
			return nil, fmt.Errorf("account lookup failed: %w", err)
		}
		if account != nil {
			return account, nil
		}
	}
	return nil, ErrAccountNotFound
}

// providerSettings merges account values over the global defaults
func (f *DispatchFlowImpl) providerSettings(account *models.WhatsAppAccount) services.ProviderSettings {
	settings := f.config.ProviderDefaults
	if account == nil {
		return settings
	}
	if account.APIBase != "" {
		settings.BaseURL = account.APIBase
	}
	if account.APIKey != "" {
		settings.APIKey = account.APIKey
	}
	if account.Instance != "" {
		settings.Instance = account.Instance
	}
	if account.TextEndpointOverride != nil && *account.TextEndpointOverride != "" {
		settings.TextEndpoint = *account.TextEndpointOverride
	}
	if account.MediaEndpointOverride != nil && *account.MediaEndpointOverride != "" {
		settings.MediaEndpoint = *account.MediaEndpointOverride
	}
	return settings
}

func (f *DispatchFlowImpl) send(ctx context.Context, settings services.ProviderSettings, msg *models.WhatsAppMessage, content string, media *services.MediaAttachment) (string, error) {
	if media != nil {
		return f.provider.SendMedia(ctx, settings, msg.ToNumber, *media)
	}
	return f.provider.SendText(ctx, settings, msg.ToNumber, content)
}

// sendWithFallback retries a session failure exactly once on the
// default outgoing account, when it differs from the attempted one.
func (f *DispatchFlowImpl) sendWithFallback(ctx context.Context, account *models.WhatsAppAccount, msg *models.WhatsAppMessage, content string, media *services.MediaAttachment) (string, error) {
	msg.AccountID = &account.ID

	providerID, err := f.send(ctx, f.providerSettings(account), msg, content, media)
	if err == nil {
		return providerID, nil
	}
	if !errors.Is(err, services.ErrInstanceNotConnected) {
		return "", err
	}

	fallback, lookupErr := f.accounts.DefaultOutgoing(ctx)
	if lookupErr != nil || fallback == nil || fallback.ID == account.ID {
		return "", err
	}

	f.logger.Printf("dispatch: session failure on account %s, retrying on default %s", account.Name, fallback.Name)
	msg.AccountID = &fallback.ID
	providerID, retryErr := f.send(ctx, f.providerSettings(fallback), msg, content, media)
	if retryErr != nil {
		return "", fmt.Errorf("%s: %v; retry on %s: %v", account.Name, err, fallback.Name, retryErr)
	}
	return providerID, nil
}

func (f *DispatchFlowImpl) finishSuccess(ctx context.Context, msg *models.WhatsAppMessage, providerID string) {
	if providerID == utils.DedupSkipID {
		f.finishSkipped(ctx, msg)
		return
	}
	msg.Status = models.MessageStatusSuccess
	msg.ProviderMessageID = &providerID
	msg.ErrorDetail = nil
	if err := f.messages.Update(ctx, msg); err != nil {
		f.logger.Printf("dispatch: failed to persist success for message %d: %v", msg.ID, err)
	}
	dispatchOutcomes.WithLabelValues(string(models.MessageStatusSuccess), string(msg.Kind)).Inc()
}

func (f *DispatchFlowImpl) finishSkipped(ctx context.Context, msg *models.WhatsAppMessage) {
	msg.Status = models.MessageStatusSkipped
	msg.ProviderMessageID = utils.ToPtr(utils.DedupSkipID)
	if err := f.messages.Update(ctx, msg); err != nil {
		f.logger.Printf("dispatch: failed to persist skip for message %d: %v", msg.ID, err)
	}
	dispatchOutcomes.WithLabelValues(string(models.MessageStatusSkipped), string(msg.Kind)).Inc()
}

func (f *DispatchFlowImpl) finishFailed(ctx context.Context, msg *models.WhatsAppMessage, detail string) {
	msg.Status = models.MessageStatusFailed
	msg.ErrorDetail = &detail
	if err := f.messages.Update(ctx, msg); err != nil {
		f.logger.Printf("dispatch: failed to persist failure for message %d: %v", msg.ID, err)
	}
	dispatchOutcomes.WithLabelValues(string(models.MessageStatusFailed), string(msg.Kind)).Inc()
}

// SendInline bypasses the queue: provider first, durable row after.
func (f *DispatchFlowImpl) SendInline(ctx context.Context, req *dto.SendTemplateRequest) (*SendResult, error) {
	tpl, err := f.loadTemplate(ctx, req.TemplateName)
	if err != nil {
		return &SendResult{Failure: FailureValidation, ErrorDetail: err.Error()}, err
	}

	doc := snapshotFromPayload(req.Document)
	recipients := f.resolver.Resolve(ctx, doc, req.To, req.RecipientField)
	if len(recipients) == 0 {
		err := NewBusinessError("NO_RECIPIENT", "No recipient could be resolved", ErrNoRecipient)
		return &SendResult{Failure: FailureValidation, ErrorDetail: err.Error()}, err
	}
	to := recipients[0]

	params := f.renderer.ResolveParams(ctx, tpl, req.BodyParams, nil, doc)
	content := f.renderer.Render(tpl.Body, params)

	account, err := f.resolveAccount(ctx, req.AccountName)
	if err != nil {
		return &SendResult{Failure: FailureValidation, ErrorDetail: err.Error()}, err
	}

	kind := models.MessageKindText
	var media *services.MediaAttachment
	if tpl.HasMedia() {
		kind = models.MessageKindMedia
		media = &services.MediaAttachment{URL: *tpl.MediaURL, Caption: content}
		if tpl.MediaType != nil {
			media.MimeType = *tpl.MediaType
		}
	}

	msg := &models.WhatsAppMessage{
		Direction:  models.MessageDirectionOutgoing,
		Kind:       kind,
		ToNumber:   to,
		Content:    content,
		Params:     params,
		TemplateID: &tpl.ID,
		MediaURL:   tpl.MediaURL,
		MediaType:  tpl.MediaType,
	}
	if doc != nil {
		msg.RefDoctype = &doc.Doctype
		msg.RefDocname = &doc.Name
	}

	providerID, sendErr := f.sendWithFallback(ctx, account, msg, content, media)
	if sendErr != nil {
		detail := sendErr.Error()
		msg.Status = models.MessageStatusFailed
		msg.ErrorDetail = &detail
		if err := f.messages.Save(ctx, msg); err != nil {
			f.logger.Printf("dispatch: failed to record inline failure: %v", err)
		}
		dispatchOutcomes.WithLabelValues(string(models.MessageStatusFailed), string(kind)).Inc()
		return &SendResult{
			MessageID:   msg.ID,
			TrackingID:  msg.UUID.String(),
			Status:      string(models.MessageStatusFailed),
			Failure:     FailureProvider,
			ErrorDetail: detail,
		}, sendErr
	}

	status := models.MessageStatusSuccess
	if providerID == utils.DedupSkipID {
		status = models.MessageStatusSkipped
	}
	msg.Status = status
	msg.ProviderMessageID = &providerID
	if err := f.messages.Save(ctx, msg); err != nil {
		f.logger.Printf("dispatch: failed to record inline send: %v", err)
	}
	dispatchOutcomes.WithLabelValues(string(status), string(kind)).Inc()

	return &SendResult{
		MessageID:  msg.ID,
		TrackingID: msg.UUID.String(),
		Status:     string(status),
		ProviderID: providerID,
	}, nil
}

func (f *DispatchFlowImpl) Preview(ctx context.Context, req *dto.PreviewRequest) (*dto.PreviewResponse, error) {
	tpl, err := f.loadTemplate(ctx, req.TemplateName)
	if err != nil {
		return nil, err
	}
	doc := snapshotFromPayload(req.Document)
	params := f.renderer.ResolveParams(ctx, tpl, req.BodyParams, nil, doc)
	return &dto.PreviewResponse{
		TemplateName: tpl.Name,
		Rendered:     f.renderer.Render(tpl.Body, params),
		Params:       params,
	}, nil
}

func (f *DispatchFlowImpl) GetMessage(ctx context.Context, trackingUUID string) (*models.WhatsAppMessage, error) {
	id, err := uuid.Parse(trackingUUID)
	if err != nil {
		return nil, NewBusinessError("INVALID_TRACKING_ID", "Tracking id is not a valid UUID", err)
	}
	msg, err := f.messages.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("MESSAGE_LOOKUP_FAILED", "Failed to lookup message", err)
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	return msg, nil
}

func (f *DispatchFlowImpl) RetryFailed(ctx context.Context, trackingUUID string) (*dto.QueueResponse, error) {
	msg, err := f.GetMessage(ctx, trackingUUID)
	if err != nil {
		return nil, err
	}
	if !msg.CanRetry() {
		return nil, ErrMessageNotRetryable
	}

	// Drop the idempotency claim so the retry is not self-suppressed.
	// Media claims key on the attachment, not the rendered content.
	if f.dedup != nil {
		if msg.Kind == models.MessageKindMedia && msg.MediaURL != nil {
			media := services.MediaAttachment{URL: *msg.MediaURL, Caption: msg.Content}
			if msg.Caption != nil && *msg.Caption != "" {
				media.Caption = *msg.Caption
			}
			f.dedup.Release(ctx, f.dedup.ContentKey(string(msg.Kind), msg.ToNumber, services.MediaDedupContent(media)))
		} else if msg.Content != "" {
			f.dedup.Release(ctx, f.dedup.ContentKey(string(msg.Kind), msg.ToNumber, msg.Content))
		}
	}

	msg.Status = models.MessageStatusQueued
	msg.ErrorDetail = nil
	msg.ProviderMessageID = utils.ToPtr(queuedTrackingID())
	if err := f.messages.Update(ctx, msg); err != nil {
		return nil, NewBusinessError("MESSAGE_SAVE_FAILED", "Failed to requeue message", err)
	}

	var doc *DocumentSnapshot
	if msg.RefDoctype != nil && msg.RefDocname != nil {
		doc = &DocumentSnapshot{Doctype: *msg.RefDoctype, Name: *msg.RefDocname}
	}
	if err := f.enqueue(ctx, msg, "", doc, "", 0); err != nil {
		return nil, err
	}
	return &dto.QueueResponse{
		Queued:   1,
		Messages: []dto.QueuedMessageDTO{{TrackingID: msg.UUID.String(), To: msg.ToNumber}},
	}, nil
}

func (f *DispatchFlowImpl) DispatchPlaceholder(ctx context.Context, messageID uint, aux models.AuxData, accountName string) (*models.WhatsAppMessage, error) {
	job := &dispatchJob{MessageID: messageID, Aux: aux, AccountName: accountName}
	if err := f.processQueued(ctx, job); err != nil {
		return nil, err
	}
	return f.messages.ByID(ctx, messageID)
}

func (f *DispatchFlowImpl) loadTemplate(ctx context.Context, name string) (*models.WhatsAppTemplate, error) {
	if name == "" {
		return nil, NewBusinessError("TEMPLATE_REQUIRED", "Template name is required", ErrTemplateNotFound)
	}
	tpl, err := f.templates.ByName(ctx, name)
	if err != nil {
		return nil, NewBusinessError("TEMPLATE_LOOKUP_FAILED", "Failed to lookup template", err)
	}
	if tpl == nil {
		return nil, ErrTemplateNotFound
	}
	if !tpl.Enabled {
		return nil, ErrTemplateDisabled
	}
	return tpl, nil
}
