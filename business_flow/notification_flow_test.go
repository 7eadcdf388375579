package businessflow

import (
	"context"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peykaro/whatsapp-dispatch/app/services"
	"github.com/peykaro/whatsapp-dispatch/models"
	"github.com/peykaro/whatsapp-dispatch/utils"
)

type notifFixture struct {
	*dispatchFixture
	rules *fakeRuleRepo
	logs  *fakeLogRepo
	store *fakeDocumentStore
	cache *services.MemoryCache
	notif NotificationFlow
}

func newNotifFixture(templates []*models.WhatsAppTemplate, rules ...*models.NotificationRule) *notifFixture {
	df := newDispatchFixture(templates)
	f := &notifFixture{
		dispatchFixture: df,
		rules:           newFakeRuleRepo(rules...),
		logs:            newFakeLogRepo(),
		store:           newFakeDocumentStore(),
		cache:           services.NewMemoryCache(),
	}
	f.notif = NewNotificationFlow(
		f.rules,
		f.logs,
		df.templates,
		df.flow,
		NewRecipientResolver(newFakeContactRepo(), newFakeEmployeeRepo(), log.Default()),
		NewSimpleConditionEvaluator(),
		f.store,
		f.cache,
		df.dedup,
		log.Default(),
	)
	return f
}

func submitRule() *models.NotificationRule {
	return &models.NotificationRule{
		Name:       "order-submitted",
		Enabled:    true,
		DocType:    "Sales Order",
		Event:      models.NotificationEventSubmit,
		TemplateID: 1,
	}
}

func orderDoc(name string) *DocumentSnapshot {
	return &DocumentSnapshot{
		Doctype: "Sales Order",
		Name:    name,
		Fields: map[string]string{
			"contact_mobile": "989123456789",
			"customer_name":  "Ali",
			"order_no":       name,
		},
	}
}

func TestProcessEventFiresRule(t *testing.T) {
	f := newNotifFixture([]*models.WhatsAppTemplate{orderTemplate()}, submitRule())
	ctx := context.Background()

	require.NoError(t, f.notif.ProcessEvent(ctx, models.NotificationEventSubmit, orderDoc("SO-0042")))

	require.Equal(t, []string{"989123456789"}, f.provider.sent)
	sent := f.logs.byOutcome(models.NotificationOutcomeSent)
	require.Len(t, sent, 1)
	assert.Equal(t, "989123456789", sent[0].ToNumber)
	assert.Equal(t, "Sales Order", sent[0].RefDoctype)
	assert.Equal(t, "SO-0042", sent[0].RefDocname)
	require.NotNil(t, sent[0].MessageID)

	msg, err := f.messages.ByID(ctx, *sent[0].MessageID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusSuccess, msg.Status)
	assert.Equal(t, "Hello Ali, your order SO-0042 is confirmed.", msg.Content)
}

func TestProcessEventDedupWindow(t *testing.T) {
	f := newNotifFixture([]*models.WhatsAppTemplate{orderTemplate()}, submitRule())
	ctx := context.Background()
	doc := orderDoc("SO-0042")

	require.NoError(t, f.notif.ProcessEvent(ctx, models.NotificationEventSubmit, doc))
	require.NoError(t, f.notif.ProcessEvent(ctx, models.NotificationEventSubmit, doc))

	assert.Len(t, f.provider.sent, 1)
	skipped := f.logs.byOutcome(models.NotificationOutcomeSkipped)
	require.Len(t, skipped, 1)
	require.NotNil(t, skipped[0].Detail)
	assert.Contains(t, *skipped[0].Detail, "dedup")
}

func TestProcessEventIgnoresOtherTriggers(t *testing.T) {
	f := newNotifFixture([]*models.WhatsAppTemplate{orderTemplate()}, submitRule())
	ctx := context.Background()

	require.NoError(t, f.notif.ProcessEvent(ctx, models.NotificationEventUpdate, orderDoc("SO-0042")))

	other := orderDoc("PO-0001")
	other.Doctype = "Purchase Order"
	require.NoError(t, f.notif.ProcessEvent(ctx, models.NotificationEventSubmit, other))

	assert.Empty(t, f.provider.sent)
	assert.Empty(t, f.logs.entries)
}

func TestProcessEventCondition(t *testing.T) {
	rule := submitRule()
	rule.Condition = utils.ToPtr("grand_total > 1000")
	f := newNotifFixture([]*models.WhatsAppTemplate{orderTemplate()}, rule)
	ctx := context.Background()

	small := orderDoc("SO-1")
	small.Fields["grand_total"] = "500"
	require.NoError(t, f.notif.ProcessEvent(ctx, models.NotificationEventSubmit, small))
	assert.Empty(t, f.provider.sent)
	assert.Empty(t, f.logs.entries)

	big := orderDoc("SO-2")
	big.Fields["grand_total"] = "2500"
	require.NoError(t, f.notif.ProcessEvent(ctx, models.NotificationEventSubmit, big))
	assert.Equal(t, []string{"989123456789"}, f.provider.sent)
}

func TestProcessEventValueChange(t *testing.T) {
	rule := submitRule()
	rule.Name = "status-changed"
	rule.Event = models.NotificationEventValueChange
	rule.ValueField = utils.ToPtr("status")
	f := newNotifFixture([]*models.WhatsAppTemplate{orderTemplate()}, rule)
	ctx := context.Background()

	unchanged := orderDoc("SO-1")
	unchanged.Fields["status"] = "Draft"
	unchanged.Previous = map[string]string{"status": "Draft"}
	require.NoError(t, f.notif.ProcessEvent(ctx, models.NotificationEventValueChange, unchanged))
	assert.Empty(t, f.provider.sent)

	changed := orderDoc("SO-2")
	changed.Fields["status"] = "Submitted"
	changed.Previous = map[string]string{"status": "Draft"}
	require.NoError(t, f.notif.ProcessEvent(ctx, models.NotificationEventValueChange, changed))
	assert.Len(t, f.provider.sent, 1)
}

func TestRuleMapInvalidation(t *testing.T) {
	rule := submitRule()
	rule.FixedNumbers = []string{"989111111111"}
	f := newNotifFixture([]*models.WhatsAppTemplate{orderTemplate()}, rule)
	ctx := context.Background()

	// First event caches the rule map
	require.NoError(t, f.notif.ProcessEvent(ctx, models.NotificationEventSubmit, orderDoc("SO-1")))

	second := submitRule()
	second.Name = "order-submitted-finance"
	second.FixedNumbers = []string{"989122222222"}
	require.NoError(t, f.notif.CreateRule(ctx, second))

	require.NoError(t, f.notif.ProcessEvent(ctx, models.NotificationEventSubmit, orderDoc("SO-2")))
	assert.Contains(t, f.provider.sent, "989122222222")
}

func TestProcessDateBased(t *testing.T) {
	rule := submitRule()
	rule.Name = "payment-reminder"
	rule.DocType = "Sales Invoice"
	rule.Event = models.NotificationEventDaysBefore
	rule.DateField = utils.ToPtr("due_date")
	rule.DaysInAdvance = 3
	f := newNotifFixture([]*models.WhatsAppTemplate{orderTemplate()}, rule)
	ctx := context.Background()

	f.store.addDue("Sales Invoice", "due_date", "INV-1")
	doc := orderDoc("INV-1")
	doc.Doctype = "Sales Invoice"
	f.store.addDoc(doc)

	require.NoError(t, f.notif.ProcessDateBased(ctx))

	assert.Equal(t, []string{"989123456789"}, f.provider.sent)
	start, _ := utils.DayBounds(3)
	require.Len(t, f.store.dueDays, 1)
	assert.Equal(t, start.Format("2006-01-02"), f.store.dueDays[0])
}

func TestProcessDateBasedDaysAfter(t *testing.T) {
	rule := submitRule()
	rule.Name = "overdue-notice"
	rule.DocType = "Sales Invoice"
	rule.Event = models.NotificationEventDaysAfter
	rule.DateField = utils.ToPtr("due_date")
	rule.DaysInAdvance = 7
	f := newNotifFixture([]*models.WhatsAppTemplate{orderTemplate()}, rule)

	require.NoError(t, f.notif.ProcessDateBased(context.Background()))

	start, _ := utils.DayBounds(-7)
	require.Len(t, f.store.dueDays, 1)
	assert.Equal(t, start.Format("2006-01-02"), f.store.dueDays[0])
}

func TestProcessCron(t *testing.T) {
	withNumbers := submitRule()
	withNumbers.Name = "daily-digest"
	withNumbers.Event = models.NotificationEventCron
	withNumbers.FixedNumbers = []string{"989123456789"}

	withoutNumbers := submitRule()
	withoutNumbers.Name = "daily-orphan"
	withoutNumbers.Event = models.NotificationEventCron

	f := newNotifFixture([]*models.WhatsAppTemplate{orderTemplate()}, withNumbers, withoutNumbers)

	require.NoError(t, f.notif.ProcessCron(context.Background()))
	assert.Equal(t, []string{"989123456789"}, f.provider.sent)
}

func TestSetPropertyAfterSend(t *testing.T) {
	rule := submitRule()
	rule.SetPropertyField = utils.ToPtr("whatsapp_notified")
	rule.SetPropertyValue = utils.ToPtr("1")
	f := newNotifFixture([]*models.WhatsAppTemplate{orderTemplate()}, rule)

	require.NoError(t, f.notif.ProcessEvent(context.Background(), models.NotificationEventSubmit, orderDoc("SO-0042")))

	assert.Equal(t, "1", f.store.setProps["Sales Order/SO-0042/whatsapp_notified"])
}

func TestNoRecipientLogged(t *testing.T) {
	f := newNotifFixture([]*models.WhatsAppTemplate{orderTemplate()}, submitRule())

	doc := &DocumentSnapshot{Doctype: "Sales Order", Name: "SO-0042", Fields: map[string]string{}}
	require.NoError(t, f.notif.ProcessEvent(context.Background(), models.NotificationEventSubmit, doc))

	noRecipient := f.logs.byOutcome(models.NotificationOutcomeNoRecipient)
	require.Len(t, noRecipient, 1)
	assert.Empty(t, f.provider.sent)
}

func TestDeleteRule(t *testing.T) {
	f := newNotifFixture([]*models.WhatsAppTemplate{orderTemplate()}, submitRule())
	ctx := context.Background()

	t.Run("unknown rule", func(t *testing.T) {
		err := f.notif.DeleteRule(ctx, 99)
		assert.ErrorIs(t, err, ErrRuleNotFound)
	})

	t.Run("deleted rule stops firing", func(t *testing.T) {
		require.NoError(t, f.notif.ProcessEvent(ctx, models.NotificationEventSubmit, orderDoc("SO-1")))
		require.Len(t, f.provider.sent, 1)

		require.NoError(t, f.notif.DeleteRule(ctx, 1))
		require.NoError(t, f.notif.ProcessEvent(ctx, models.NotificationEventSubmit, orderDoc("SO-2")))
		assert.Len(t, f.provider.sent, 1)
	})
}
