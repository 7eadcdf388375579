package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/peykaro/whatsapp-dispatch/app/dto"
	"github.com/peykaro/whatsapp-dispatch/app/services"
	"github.com/peykaro/whatsapp-dispatch/models"
	"github.com/peykaro/whatsapp-dispatch/repository"
	"github.com/peykaro/whatsapp-dispatch/utils"
)

// RuleMapCacheKey holds the cached (doctype, event) -> rule ids map
const RuleMapCacheKey = "whatsapp_notification_map"

// NotificationFlow evaluates notification rules against document
// events and fires the matching sends.
type NotificationFlow interface {
	// ProcessEvent runs every enabled rule bound to the document's
	// type and event against the snapshot.
	ProcessEvent(ctx context.Context, event models.NotificationEvent, doc *DocumentSnapshot) error
	// ProcessDateBased collects documents due today for every
	// date-based rule and fires them. Called by the scheduler.
	ProcessDateBased(ctx context.Context) error
	// ProcessCron fires cron rules at their fixed recipients. Called
	// by the scheduler.
	ProcessCron(ctx context.Context) error

	CreateRule(ctx context.Context, rule *models.NotificationRule) error
	UpdateRule(ctx context.Context, rule *models.NotificationRule) error
	DeleteRule(ctx context.Context, id uint) error
}

type NotificationFlowImpl struct {
	rules     repository.NotificationRuleRepository
	logs      repository.NotificationLogRepository
	templates repository.WhatsAppTemplateRepository
	dispatch  DispatchFlow
	resolver  *RecipientResolver
	evaluator ConditionEvaluator
	store     DocumentStore
	cache     services.Cache
	dedup     *services.DedupGuard
	logger    *log.Logger
}

func NewNotificationFlow(
	rules repository.NotificationRuleRepository,
	logs repository.NotificationLogRepository,
	templates repository.WhatsAppTemplateRepository,
	dispatch DispatchFlow,
	resolver *RecipientResolver,
	evaluator ConditionEvaluator,
	store DocumentStore,
	cache services.Cache,
	dedup *services.DedupGuard,
	logger *log.Logger,
) NotificationFlow {
	return &NotificationFlowImpl{
		rules:     rules,
		logs:      logs,
		templates: templates,
		dispatch:  dispatch,
		resolver:  resolver,
		evaluator: evaluator,
		store:     store,
		cache:     cache,
		dedup:     dedup,
		logger:    logger,
	}
}

// ruleMap maps "doctype:event" to rule ids
type ruleMap map[string][]uint

func ruleMapKey(doctype string, event models.NotificationEvent) string {
	return doctype + ":" + string(event)
}

func (f *NotificationFlowImpl) loadRuleMap(ctx context.Context) (ruleMap, error) {
	if f.cache != nil {
		if raw, ok, err := f.cache.Get(ctx, RuleMapCacheKey); err == nil && ok {
			var m ruleMap
			if err := json.Unmarshal([]byte(raw), &m); err == nil {
				return m, nil
			}
		}
	}

	enabled := true
	rules, err := f.rules.ByFilter(ctx, models.NotificationRuleFilter{Enabled: &enabled}, "id ASC", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification rules: %w", err)
	}

	m := make(ruleMap)
	for _, r := range rules {
		key := ruleMapKey(r.DocType, r.Event)
		m[key] = append(m[key], r.ID)
	}

	if f.cache != nil {
		if raw, err := json.Marshal(m); err == nil {
			if err := f.cache.Set(ctx, RuleMapCacheKey, string(raw), 0); err != nil {
				f.logger.Printf("notification: failed to cache rule map: %v", err)
			}
		}
	}
	return m, nil
}

func (f *NotificationFlowImpl) invalidateRuleMap(ctx context.Context) {
	if f.cache == nil {
		return
	}
	if err := f.cache.Delete(ctx, RuleMapCacheKey); err != nil {
		f.logger.Printf("notification: failed to invalidate rule map: %v", err)
	}
}

func (f *NotificationFlowImpl) ProcessEvent(ctx context.Context, event models.NotificationEvent, doc *DocumentSnapshot) error {
	if doc == nil {
		return nil
	}
	m, err := f.loadRuleMap(ctx)
	if err != nil {
		return err
	}

	for _, id := range m[ruleMapKey(doc.Doctype, event)] {
		rule, err := f.rules.ByID(ctx, id)
		if err != nil || rule == nil || !rule.Enabled {
			continue
		}
		if rule.Event == models.NotificationEventValueChange {
			if rule.ValueField == nil || !doc.Changed(*rule.ValueField) {
				continue
			}
		}
		f.fireRule(ctx, rule, doc)
	}
	return nil
}

func (f *NotificationFlowImpl) ProcessDateBased(ctx context.Context) error {
	if f.store == nil {
		return nil
	}
	rules, err := f.rules.ListDateBased(ctx)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		if rule.DateField == nil || *rule.DateField == "" {
			continue
		}
		offset := rule.DaysInAdvance
		if rule.Event == models.NotificationEventDaysAfter {
			offset = -offset
		}
		start, _ := utils.DayBounds(offset)
		day := start.Format("2006-01-02")

		names, err := f.store.ListDueOn(ctx, rule.DocType, *rule.DateField, day)
		if err != nil {
			f.logger.Printf("notification: due-document scan failed for rule %s: %v", rule.Name, err)
			continue
		}
		for _, name := range names {
			doc, err := f.store.Load(ctx, rule.DocType, name)
			if err != nil || doc == nil {
				continue
			}
			f.fireRule(ctx, rule, doc)
		}
	}
	return nil
}

// ProcessCron fires cron rules at their fixed numbers. Cron rules
// carry no document context, so only rules with fixed recipients can
// produce sends.
func (f *NotificationFlowImpl) ProcessCron(ctx context.Context) error {
	rules, err := f.rules.ListCron(ctx)
	if err != nil {
		return err
	}
	for _, rule := range rules {
		if len(rule.FixedNumbers) == 0 {
			continue
		}
		f.fireRule(ctx, rule, nil)
	}
	return nil
}

// fireRule resolves recipients and dispatches one message per number,
// guarded by the notification dedup window and the rule condition.
func (f *NotificationFlowImpl) fireRule(ctx context.Context, rule *models.NotificationRule, doc *DocumentSnapshot) {
	if rule.Condition != nil && f.evaluator != nil {
		ok, err := f.evaluator.Evaluate(ctx, *rule.Condition, doc)
		if err != nil {
			f.logger.Printf("notification: condition error on rule %s: %v", rule.Name, err)
			return
		}
		if !ok {
			return
		}
	}

	tpl, err := f.templates.ByID(ctx, rule.TemplateID)
	if err != nil || tpl == nil {
		f.logRule(ctx, rule, doc, "", nil, models.NotificationOutcomeFailed, "template not found")
		return
	}

	recipientField := ""
	if rule.RecipientField != nil {
		recipientField = *rule.RecipientField
	}
	recipients := f.resolver.Resolve(ctx, doc, "", recipientField)
	for _, n := range rule.FixedNumbers {
		recipients = append(recipients, utils.NormalizePhone(n))
	}
	recipients = utils.DedupeNumbers(recipients)
	if len(recipients) == 0 {
		f.logRule(ctx, rule, doc, "", nil, models.NotificationOutcomeNoRecipient, "no recipient resolved")
		return
	}

	docname := ""
	doctype := ""
	if doc != nil {
		doctype, docname = doc.Doctype, doc.Name
	}

	anySuccess := false
	for _, to := range recipients {
		if f.dedup != nil {
			key := f.dedup.NotificationKey(rule.Name, doctype, docname, to, tpl.Name)
			if !f.dedup.Admit(ctx, key, f.dedup.NotificationTTL) {
				f.logRule(ctx, rule, doc, to, nil, models.NotificationOutcomeSkipped, "suppressed by dedup window")
				continue
			}
		}

		req := &dto.SendTemplateRequest{
			TemplateName: tpl.Name,
			To:           to,
			DelaySeconds: rule.DelaySeconds,
		}
		if doc != nil {
			req.Document = &dto.DocumentPayload{
				Doctype: doc.Doctype,
				Name:    doc.Name,
				Fields:  doc.Fields,
			}
		}

		if rule.DelaySeconds > 0 {
			if _, err := f.dispatch.SendTemplate(ctx, req); err != nil {
				f.logRule(ctx, rule, doc, to, nil, models.NotificationOutcomeFailed, err.Error())
				continue
			}
			anySuccess = true
			detail := fmt.Sprintf("queued with %ds delay", rule.DelaySeconds)
			f.logRule(ctx, rule, doc, to, nil, models.NotificationOutcomeSent, detail)
			continue
		}

		result, err := f.dispatch.SendInline(ctx, req)
		if err != nil {
			detail := err.Error()
			var msgID *uint
			if result != nil && result.MessageID != 0 {
				msgID = &result.MessageID
			}
			f.logRule(ctx, rule, doc, to, msgID, models.NotificationOutcomeFailed, detail)
			continue
		}
		anySuccess = true
		outcome := models.NotificationOutcomeSent
		if result.Status == string(models.MessageStatusSkipped) {
			outcome = models.NotificationOutcomeSkipped
		}
		f.logRule(ctx, rule, doc, to, &result.MessageID, outcome, "")
	}

	if anySuccess && doc != nil && f.store != nil &&
		rule.SetPropertyField != nil && *rule.SetPropertyField != "" {
		value := ""
		if rule.SetPropertyValue != nil {
			value = *rule.SetPropertyValue
		}
		if err := f.store.SetProperty(ctx, doc.Doctype, doc.Name, *rule.SetPropertyField, value); err != nil {
			f.logger.Printf("notification: set property failed on %s/%s: %v", doc.Doctype, doc.Name, err)
		}
	}
}

func (f *NotificationFlowImpl) logRule(ctx context.Context, rule *models.NotificationRule, doc *DocumentSnapshot, to string, messageID *uint, outcome models.NotificationOutcome, detail string) {
	entry := &models.NotificationLog{
		RuleID:    rule.ID,
		ToNumber:  to,
		MessageID: messageID,
		Outcome:   outcome,
		CreatedAt: utils.UTCNow(),
	}
	if doc != nil {
		entry.RefDoctype = doc.Doctype
		entry.RefDocname = doc.Name
	}
	if detail != "" {
		entry.Detail = &detail
	}
	if err := f.logs.Save(ctx, entry); err != nil {
		f.logger.Printf("notification: failed to write log for rule %s: %v", rule.Name, err)
	}
}

func (f *NotificationFlowImpl) CreateRule(ctx context.Context, rule *models.NotificationRule) error {
	if err := f.rules.Save(ctx, rule); err != nil {
		return NewBusinessError("RULE_SAVE_FAILED", "Failed to create notification rule", err)
	}
	f.invalidateRuleMap(ctx)
	return nil
}

func (f *NotificationFlowImpl) UpdateRule(ctx context.Context, rule *models.NotificationRule) error {
	if err := f.rules.Update(ctx, rule); err != nil {
		return NewBusinessError("RULE_SAVE_FAILED", "Failed to update notification rule", err)
	}
	f.invalidateRuleMap(ctx)
	return nil
}

func (f *NotificationFlowImpl) DeleteRule(ctx context.Context, id uint) error {
	rule, err := f.rules.ByID(ctx, id)
	if err != nil {
		return NewBusinessError("RULE_LOOKUP_FAILED", "Failed to lookup notification rule", err)
	}
	if rule == nil {
		return ErrRuleNotFound
	}
	if err := f.rules.Delete(ctx, id); err != nil {
		return NewBusinessError("RULE_DELETE_FAILED", "Failed to delete notification rule", err)
	}
	f.invalidateRuleMap(ctx)
	return nil
}
