package businessflow

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/peykaro/whatsapp-dispatch/app/queue"
	"github.com/peykaro/whatsapp-dispatch/app/services"
	"github.com/peykaro/whatsapp-dispatch/models"
)

// syncQueue runs every job inline so tests observe terminal states
// without sleeping.
type syncQueue struct {
	mu       sync.Mutex
	handlers map[string]queue.Handler
	enqueued []string
}

func newSyncQueue() *syncQueue {
	return &syncQueue{handlers: make(map[string]queue.Handler)}
}

func (q *syncQueue) Register(task string, handler queue.Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[task] = handler
}

func (q *syncQueue) Enqueue(ctx context.Context, task string, payload []byte, opts ...queue.Option) error {
	q.mu.Lock()
	handler := q.handlers[task]
	q.enqueued = append(q.enqueued, task)
	q.mu.Unlock()
	if handler == nil {
		return nil
	}
	return handler(ctx, payload)
}

func (q *syncQueue) Close() error { return nil }

type fakeMessageRepo struct {
	mu         sync.Mutex
	nextID     uint
	rows       map[uint]*models.WhatsAppMessage
	duplicates bool
	saveErr    error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{rows: make(map[uint]*models.WhatsAppMessage)}
}

func (r *fakeMessageRepo) ByID(ctx context.Context, id uint) (*models.WhatsAppMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id], nil
}

func (r *fakeMessageRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.WhatsAppMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.rows {
		if m.UUID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (r *fakeMessageRepo) ByFilter(ctx context.Context, filter models.WhatsAppMessageFilter, orderBy string, limit, offset int) ([]*models.WhatsAppMessage, error) {
	return nil, nil
}

func (r *fakeMessageRepo) Save(ctx context.Context, m *models.WhatsAppMessage) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	m.ID = r.nextID
	if m.UUID == uuid.Nil {
		m.UUID = uuid.New()
	}
	r.rows[m.ID] = m
	return nil
}

func (r *fakeMessageRepo) SaveBatch(ctx context.Context, ms []*models.WhatsAppMessage) error {
	for _, m := range ms {
		if err := r.Save(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeMessageRepo) Update(ctx context.Context, m *models.WhatsAppMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[m.ID] = m
	return nil
}

func (r *fakeMessageRepo) Count(ctx context.Context, filter models.WhatsAppMessageFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.rows)), nil
}

func (r *fakeMessageRepo) Exists(ctx context.Context, filter models.WhatsAppMessageFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakeMessageRepo) RecentDuplicateExists(ctx context.Context, refDoctype, refDocname, toNumber string, templateID *uint, since time.Time, excludeID *uint) (bool, error) {
	return r.duplicates, nil
}

func (r *fakeMessageRepo) ListByBulkMessage(ctx context.Context, bulkMessageID uint) ([]*models.WhatsAppMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.WhatsAppMessage
	for _, m := range r.rows {
		if m.BulkMessageID != nil && *m.BulkMessageID == bulkMessageID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) ListFailedByBulkMessage(ctx context.Context, bulkMessageID uint) ([]*models.WhatsAppMessage, error) {
	all, _ := r.ListByBulkMessage(ctx, bulkMessageID)
	var out []*models.WhatsAppMessage
	for _, m := range all {
		if m.Status == models.MessageStatusFailed {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeTemplateRepo struct {
	templates map[string]*models.WhatsAppTemplate
}

func newFakeTemplateRepo(templates ...*models.WhatsAppTemplate) *fakeTemplateRepo {
	r := &fakeTemplateRepo{templates: make(map[string]*models.WhatsAppTemplate)}
	for i, t := range templates {
		if t.ID == 0 {
			t.ID = uint(i + 1)
		}
		r.templates[t.Name] = t
	}
	return r
}

func (r *fakeTemplateRepo) ByID(ctx context.Context, id uint) (*models.WhatsAppTemplate, error) {
	for _, t := range r.templates {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

func (r *fakeTemplateRepo) ByName(ctx context.Context, name string) (*models.WhatsAppTemplate, error) {
	return r.templates[name], nil
}

func (r *fakeTemplateRepo) ByFilter(ctx context.Context, filter models.WhatsAppTemplateFilter, orderBy string, limit, offset int) ([]*models.WhatsAppTemplate, error) {
	return nil, nil
}

func (r *fakeTemplateRepo) Save(ctx context.Context, t *models.WhatsAppTemplate) error {
	r.templates[t.Name] = t
	return nil
}

func (r *fakeTemplateRepo) SaveBatch(ctx context.Context, ts []*models.WhatsAppTemplate) error {
	for _, t := range ts {
		r.templates[t.Name] = t
	}
	return nil
}

func (r *fakeTemplateRepo) Update(ctx context.Context, t *models.WhatsAppTemplate) error {
	r.templates[t.Name] = t
	return nil
}

func (r *fakeTemplateRepo) Count(ctx context.Context, filter models.WhatsAppTemplateFilter) (int64, error) {
	return int64(len(r.templates)), nil
}

func (r *fakeTemplateRepo) Exists(ctx context.Context, filter models.WhatsAppTemplateFilter) (bool, error) {
	return len(r.templates) > 0, nil
}

type fakeAccountRepo struct {
	accounts []*models.WhatsAppAccount
}

func newFakeAccountRepo(accounts ...*models.WhatsAppAccount) *fakeAccountRepo {
	for i, a := range accounts {
		if a.ID == 0 {
			a.ID = uint(i + 1)
		}
	}
	return &fakeAccountRepo{accounts: accounts}
}

func (r *fakeAccountRepo) ByID(ctx context.Context, id uint) (*models.WhatsAppAccount, error) {
	for _, a := range r.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) ByName(ctx context.Context, name string) (*models.WhatsAppAccount, error) {
	for _, a := range r.accounts {
		if a.Name == name {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) ByFilter(ctx context.Context, filter models.WhatsAppAccountFilter, orderBy string, limit, offset int) ([]*models.WhatsAppAccount, error) {
	return r.accounts, nil
}

func (r *fakeAccountRepo) Save(ctx context.Context, a *models.WhatsAppAccount) error {
	r.accounts = append(r.accounts, a)
	return nil
}

func (r *fakeAccountRepo) SaveBatch(ctx context.Context, as []*models.WhatsAppAccount) error {
	r.accounts = append(r.accounts, as...)
	return nil
}

func (r *fakeAccountRepo) Update(ctx context.Context, a *models.WhatsAppAccount) error { return nil }

func (r *fakeAccountRepo) Count(ctx context.Context, filter models.WhatsAppAccountFilter) (int64, error) {
	return int64(len(r.accounts)), nil
}

func (r *fakeAccountRepo) Exists(ctx context.Context, filter models.WhatsAppAccountFilter) (bool, error) {
	return len(r.accounts) > 0, nil
}

func (r *fakeAccountRepo) SaveNormalized(ctx context.Context, a *models.WhatsAppAccount) error {
	if a.ID == 0 {
		a.ID = uint(len(r.accounts) + 1)
		r.accounts = append(r.accounts, a)
	}
	for _, other := range r.accounts {
		if other.ID == a.ID {
			continue
		}
		if a.IsDefault {
			other.IsDefault = false
		}
		if a.DefaultOutgoing {
			other.DefaultOutgoing = false
		}
		if a.DefaultIncoming {
			other.DefaultIncoming = false
		}
	}
	return nil
}

func (r *fakeAccountRepo) DefaultOutgoing(ctx context.Context) (*models.WhatsAppAccount, error) {
	for _, a := range r.accounts {
		if a.DefaultOutgoing && a.Enabled {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) DefaultIncoming(ctx context.Context) (*models.WhatsAppAccount, error) {
	for _, a := range r.accounts {
		if a.DefaultIncoming && a.Enabled {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) AnyDefault(ctx context.Context) (*models.WhatsAppAccount, error) {
	for _, a := range r.accounts {
		if a.IsDefault && a.Enabled {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) AnyEnabled(ctx context.Context) (*models.WhatsAppAccount, error) {
	for _, a := range r.accounts {
		if a.Enabled {
			return a, nil
		}
	}
	return nil, nil
}

type fakeContactRepo struct {
	contacts map[string]*models.Contact
	linked   map[string][]*models.Contact
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{
		contacts: make(map[string]*models.Contact),
		linked:   make(map[string][]*models.Contact),
	}
}

func (r *fakeContactRepo) addLinked(doctype, name string, c *models.Contact) {
	r.contacts[c.Name] = c
	key := doctype + "/" + name
	r.linked[key] = append(r.linked[key], c)
}

func (r *fakeContactRepo) ByID(ctx context.Context, id uint) (*models.Contact, error) {
	for _, c := range r.contacts {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeContactRepo) ByName(ctx context.Context, name string) (*models.Contact, error) {
	return r.contacts[name], nil
}

func (r *fakeContactRepo) ByFilter(ctx context.Context, filter models.ContactFilter, orderBy string, limit, offset int) ([]*models.Contact, error) {
	if filter.LinkDoctype != nil {
		var out []*models.Contact
		for key, cs := range r.linked {
			if strings.HasPrefix(key, *filter.LinkDoctype+"/") {
				out = append(out, cs...)
			}
		}
		return out, nil
	}
	var out []*models.Contact
	for _, c := range r.contacts {
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeContactRepo) Save(ctx context.Context, c *models.Contact) error {
	r.contacts[c.Name] = c
	return nil
}

func (r *fakeContactRepo) SaveBatch(ctx context.Context, cs []*models.Contact) error {
	for _, c := range cs {
		r.contacts[c.Name] = c
	}
	return nil
}

func (r *fakeContactRepo) Update(ctx context.Context, c *models.Contact) error { return nil }

func (r *fakeContactRepo) Count(ctx context.Context, filter models.ContactFilter) (int64, error) {
	return int64(len(r.contacts)), nil
}

func (r *fakeContactRepo) Exists(ctx context.Context, filter models.ContactFilter) (bool, error) {
	return len(r.contacts) > 0, nil
}

func (r *fakeContactRepo) ListLinkedTo(ctx context.Context, linkDoctype, linkName string) ([]*models.Contact, error) {
	return r.linked[linkDoctype+"/"+linkName], nil
}

type fakeEmployeeRepo struct {
	employees map[string]*models.Employee
}

func newFakeEmployeeRepo(employees ...*models.Employee) *fakeEmployeeRepo {
	r := &fakeEmployeeRepo{employees: make(map[string]*models.Employee)}
	for _, e := range employees {
		r.employees[e.Name] = e
	}
	return r
}

func (r *fakeEmployeeRepo) ByID(ctx context.Context, id uint) (*models.Employee, error) {
	for _, e := range r.employees {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeEmployeeRepo) ByName(ctx context.Context, name string) (*models.Employee, error) {
	return r.employees[name], nil
}

func (r *fakeEmployeeRepo) ByEmployeeName(ctx context.Context, employeeName string) (*models.Employee, error) {
	for _, e := range r.employees {
		if e.EmployeeName == employeeName {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeEmployeeRepo) ByFilter(ctx context.Context, filter models.EmployeeFilter, orderBy string, limit, offset int) ([]*models.Employee, error) {
	return nil, nil
}

func (r *fakeEmployeeRepo) Save(ctx context.Context, e *models.Employee) error {
	r.employees[e.Name] = e
	return nil
}

func (r *fakeEmployeeRepo) SaveBatch(ctx context.Context, es []*models.Employee) error {
	for _, e := range es {
		r.employees[e.Name] = e
	}
	return nil
}

func (r *fakeEmployeeRepo) Update(ctx context.Context, e *models.Employee) error { return nil }

func (r *fakeEmployeeRepo) Count(ctx context.Context, filter models.EmployeeFilter) (int64, error) {
	return int64(len(r.employees)), nil
}

func (r *fakeEmployeeRepo) Exists(ctx context.Context, filter models.EmployeeFilter) (bool, error) {
	return len(r.employees) > 0, nil
}

type fakeListRepo struct {
	mu      sync.Mutex
	nextID  uint
	lists   map[uint]*models.RecipientList
	entries map[uint][]*models.RecipientListEntry
}

func newFakeListRepo(lists ...*models.RecipientList) *fakeListRepo {
	r := &fakeListRepo{
		lists:   make(map[uint]*models.RecipientList),
		entries: make(map[uint][]*models.RecipientListEntry),
	}
	for _, l := range lists {
		_ = r.Save(context.Background(), l)
	}
	return r
}

func (r *fakeListRepo) ByID(ctx context.Context, id uint) (*models.RecipientList, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lists[id], nil
}

func (r *fakeListRepo) ByName(ctx context.Context, name string) (*models.RecipientList, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lists {
		if l.Name == name {
			return l, nil
		}
	}
	return nil, nil
}

func (r *fakeListRepo) ByFilter(ctx context.Context, filter models.RecipientListFilter, orderBy string, limit, offset int) ([]*models.RecipientList, error) {
	return nil, nil
}

func (r *fakeListRepo) Save(ctx context.Context, l *models.RecipientList) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == 0 {
		r.nextID++
		l.ID = r.nextID
	}
	r.lists[l.ID] = l
	return nil
}

func (r *fakeListRepo) SaveBatch(ctx context.Context, ls []*models.RecipientList) error {
	for _, l := range ls {
		if err := r.Save(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeListRepo) Update(ctx context.Context, l *models.RecipientList) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists[l.ID] = l
	return nil
}

func (r *fakeListRepo) Count(ctx context.Context, filter models.RecipientListFilter) (int64, error) {
	return int64(len(r.lists)), nil
}

func (r *fakeListRepo) Exists(ctx context.Context, filter models.RecipientListFilter) (bool, error) {
	return len(r.lists) > 0, nil
}

func (r *fakeListRepo) ListEntries(ctx context.Context, listID uint) ([]*models.RecipientListEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[listID], nil
}

func (r *fakeListRepo) UpsertEntries(ctx context.Context, listID uint, entries []*models.RecipientListEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing := make(map[string]int)
	for i, e := range r.entries[listID] {
		existing[e.Number] = i
	}
	for _, e := range entries {
		if i, ok := existing[e.Number]; ok {
			r.entries[listID][i] = e
			continue
		}
		r.entries[listID] = append(r.entries[listID], e)
	}
	return nil
}

func (r *fakeListRepo) RemoveEntry(ctx context.Context, listID uint, number string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[listID][:0]
	for _, e := range r.entries[listID] {
		if e.Number != number {
			kept = append(kept, e)
		}
	}
	r.entries[listID] = kept
	return nil
}

type fakeBulkRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.BulkMessage
}

func newFakeBulkRepo() *fakeBulkRepo {
	return &fakeBulkRepo{rows: make(map[uint]*models.BulkMessage)}
}

func (r *fakeBulkRepo) ByID(ctx context.Context, id uint) (*models.BulkMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id], nil
}

func (r *fakeBulkRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.BulkMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.rows {
		if b.UUID == id {
			return b, nil
		}
	}
	return nil, nil
}

func (r *fakeBulkRepo) ByFilter(ctx context.Context, filter models.BulkMessageFilter, orderBy string, limit, offset int) ([]*models.BulkMessage, error) {
	return nil, nil
}

func (r *fakeBulkRepo) Save(ctx context.Context, b *models.BulkMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	b.ID = r.nextID
	if b.UUID == uuid.Nil {
		b.UUID = uuid.New()
	}
	if b.Status == "" {
		b.Status = models.BulkStatusDraft
	}
	r.rows[b.ID] = b
	return nil
}

func (r *fakeBulkRepo) SaveBatch(ctx context.Context, bs []*models.BulkMessage) error {
	for _, b := range bs {
		if err := r.Save(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeBulkRepo) Update(ctx context.Context, b *models.BulkMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[b.ID] = b
	return nil
}

func (r *fakeBulkRepo) Count(ctx context.Context, filter models.BulkMessageFilter) (int64, error) {
	return int64(len(r.rows)), nil
}

func (r *fakeBulkRepo) Exists(ctx context.Context, filter models.BulkMessageFilter) (bool, error) {
	return len(r.rows) > 0, nil
}

func (r *fakeBulkRepo) IncrementSentCount(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b := r.rows[id]; b != nil {
		b.SentCount++
	}
	return nil
}

func (r *fakeBulkRepo) IncrementFailedCount(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b := r.rows[id]; b != nil {
		b.FailedCount++
	}
	return nil
}

type fakeRuleRepo struct {
	mu     sync.Mutex
	nextID uint
	rules  map[uint]*models.NotificationRule
}

func newFakeRuleRepo(rules ...*models.NotificationRule) *fakeRuleRepo {
	r := &fakeRuleRepo{rules: make(map[uint]*models.NotificationRule)}
	for _, rule := range rules {
		_ = r.Save(context.Background(), rule)
	}
	return r
}

func (r *fakeRuleRepo) ByID(ctx context.Context, id uint) (*models.NotificationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rules[id], nil
}

func (r *fakeRuleRepo) ByName(ctx context.Context, name string) (*models.NotificationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range r.rules {
		if rule.Name == name {
			return rule, nil
		}
	}
	return nil, nil
}

func (r *fakeRuleRepo) ByFilter(ctx context.Context, filter models.NotificationRuleFilter, orderBy string, limit, offset int) ([]*models.NotificationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.NotificationRule
	for id := uint(1); id <= r.nextID; id++ {
		rule := r.rules[id]
		if rule == nil {
			continue
		}
		if filter.Enabled != nil && rule.Enabled != *filter.Enabled {
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

func (r *fakeRuleRepo) Save(ctx context.Context, rule *models.NotificationRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rule.ID == 0 {
		r.nextID++
		rule.ID = r.nextID
	} else if rule.ID > r.nextID {
		r.nextID = rule.ID
	}
	r.rules[rule.ID] = rule
	return nil
}

func (r *fakeRuleRepo) SaveBatch(ctx context.Context, rules []*models.NotificationRule) error {
	for _, rule := range rules {
		if err := r.Save(ctx, rule); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRuleRepo) Update(ctx context.Context, rule *models.NotificationRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.ID] = rule
	return nil
}

func (r *fakeRuleRepo) Count(ctx context.Context, filter models.NotificationRuleFilter) (int64, error) {
	return int64(len(r.rules)), nil
}

func (r *fakeRuleRepo) Exists(ctx context.Context, filter models.NotificationRuleFilter) (bool, error) {
	return len(r.rules) > 0, nil
}

func (r *fakeRuleRepo) ListForEvent(ctx context.Context, doctype string, event models.NotificationEvent) ([]*models.NotificationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.NotificationRule
	for _, rule := range r.rules {
		if rule.Enabled && rule.DocType == doctype && rule.Event == event {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *fakeRuleRepo) ListDateBased(ctx context.Context) ([]*models.NotificationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.NotificationRule
	for _, rule := range r.rules {
		if rule.Enabled && rule.Event.IsDateBased() {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *fakeRuleRepo) ListCron(ctx context.Context) ([]*models.NotificationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.NotificationRule
	for _, rule := range r.rules {
		if rule.Enabled && rule.Event == models.NotificationEventCron {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *fakeRuleRepo) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rules, id)
	return nil
}

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []*models.NotificationLog
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{}
}

func (r *fakeLogRepo) byOutcome(outcome models.NotificationOutcome) []*models.NotificationLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.NotificationLog
	for _, e := range r.entries {
		if e.Outcome == outcome {
			out = append(out, e)
		}
	}
	return out
}

func (r *fakeLogRepo) ByID(ctx context.Context, id uint) (*models.NotificationLog, error) {
	return nil, nil
}

func (r *fakeLogRepo) ByFilter(ctx context.Context, filter models.NotificationLogFilter, orderBy string, limit, offset int) ([]*models.NotificationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries, nil
}

func (r *fakeLogRepo) Save(ctx context.Context, e *models.NotificationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = uint(len(r.entries) + 1)
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeLogRepo) SaveBatch(ctx context.Context, es []*models.NotificationLog) error {
	for _, e := range es {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeLogRepo) Update(ctx context.Context, e *models.NotificationLog) error { return nil }

func (r *fakeLogRepo) Count(ctx context.Context, filter models.NotificationLogFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.entries)), nil
}

func (r *fakeLogRepo) Exists(ctx context.Context, filter models.NotificationLogFilter) (bool, error) {
	n, _ := r.Count(ctx, filter)
	return n > 0, nil
}

func (r *fakeLogRepo) ListByRule(ctx context.Context, ruleID uint, limit, offset int) ([]*models.NotificationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.NotificationLog
	for _, e := range r.entries {
		if e.RuleID == ruleID {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakeDocumentStore serves canned snapshots and records due-document
// queries and property writes.
type fakeDocumentStore struct {
	mu       sync.Mutex
	docs     map[string]*DocumentSnapshot
	due      map[string][]string
	dueDays  []string
	setProps map[string]string
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{
		docs:     make(map[string]*DocumentSnapshot),
		due:      make(map[string][]string),
		setProps: make(map[string]string),
	}
}

func (s *fakeDocumentStore) addDoc(doc *DocumentSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.Doctype+"/"+doc.Name] = doc
}

func (s *fakeDocumentStore) addDue(doctype, dateField string, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.due[doctype+"/"+dateField] = names
}

func (s *fakeDocumentStore) Load(ctx context.Context, doctype, name string) (*DocumentSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[doctype+"/"+name], nil
}

func (s *fakeDocumentStore) ListDueOn(ctx context.Context, doctype, dateField, day string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dueDays = append(s.dueDays, day)
	return s.due[doctype+"/"+dateField], nil
}

func (s *fakeDocumentStore) SetProperty(ctx context.Context, doctype, name, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setProps[doctype+"/"+name+"/"+field] = value
	return nil
}

// fakeProvider scripts per-number and per-instance outcomes. Unlisted
// sends succeed.
type fakeProvider struct {
	mu            sync.Mutex
	failWith      map[string]error
	failInstances map[string]error
	sent          []string
	accounts      []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		failWith:      make(map[string]error),
		failInstances: make(map[string]error),
	}
}

func (p *fakeProvider) failNumber(number string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failWith[number] = err
}

func (p *fakeProvider) clearFailure(number string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failWith, number)
}

func (p *fakeProvider) failInstance(instance string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failInstances[instance] = err
}

func (p *fakeProvider) record(settings services.ProviderSettings, to string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts = append(p.accounts, settings.Instance)
	if err := p.failInstances[settings.Instance]; err != nil {
		return err
	}
	if err := p.failWith[to]; err != nil {
		return err
	}
	p.sent = append(p.sent, to)
	return nil
}

func (p *fakeProvider) SendText(ctx context.Context, settings services.ProviderSettings, to, text string) (string, error) {
	if err := p.record(settings, to); err != nil {
		return "", err
	}
	return "prov-" + to, nil
}

func (p *fakeProvider) SendMedia(ctx context.Context, settings services.ProviderSettings, to string, media services.MediaAttachment) (string, error) {
	if err := p.record(settings, to); err != nil {
		return "", err
	}
	return "prov-media-" + to, nil
}
