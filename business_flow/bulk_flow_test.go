package businessflow

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peykaro/whatsapp-dispatch/app/dto"
	"github.com/peykaro/whatsapp-dispatch/models"
	"github.com/peykaro/whatsapp-dispatch/utils"
)

type bulkFixture struct {
	*dispatchFixture
	bulks *fakeBulkRepo
	lists *fakeListRepo
	bulk  BulkFlow
}

func newBulkFixture(templates []*models.WhatsAppTemplate, list *models.RecipientList, entries ...*models.RecipientListEntry) *bulkFixture {
	df := newDispatchFixture(templates)
	lists := newFakeListRepo()
	if list != nil {
		_ = lists.Save(context.Background(), list)
		_ = lists.UpsertEntries(context.Background(), list.ID, entries)
	}
	bulks := newFakeBulkRepo()
	flow := NewBulkFlow(
		bulks,
		lists,
		df.messages,
		df.templates,
		df.accounts,
		df.flow,
		df.queue,
		time.Millisecond,
		log.Default(),
	)
	flow.RegisterHandlers(df.queue)
	return &bulkFixture{dispatchFixture: df, bulks: bulks, lists: lists, bulk: flow}
}

func campaignList() (*models.RecipientList, []*models.RecipientListEntry) {
	list := &models.RecipientList{Name: "vip-customers"}
	entries := []*models.RecipientListEntry{
		{Number: "989123456789", Data: models.AuxData{"customer_name": "Ali", "order_no": "SO-1"}},
		{Number: "989111111111", Data: models.AuxData{"customer_name": "Sara", "order_no": "SO-2"}},
		{Number: "989122222222", Data: models.AuxData{"customer_name": "Reza", "order_no": "SO-3"}},
	}
	return list, entries
}

func TestBulkCreate(t *testing.T) {
	list, entries := campaignList()
	f := newBulkFixture([]*models.WhatsAppTemplate{
		orderTemplate(),
		{Name: "retired", Body: "old", Enabled: false},
	}, list, entries...)
	ctx := context.Background()

	t.Run("draft with content", func(t *testing.T) {
		bulk, err := f.bulk.Create(ctx, &dto.CreateBulkRequest{
			RecipientListName: "vip-customers",
			Content:           "Flash sale today",
			DelaySeconds:      2,
		})
		require.NoError(t, err)
		assert.Equal(t, models.BulkStatusDraft, bulk.Status)
		assert.Equal(t, models.MessageKindText, bulk.Kind)
		assert.Equal(t, 2, bulk.DelaySeconds)
		require.NotNil(t, bulk.Content)
		assert.Equal(t, "Flash sale today", *bulk.Content)
	})

	t.Run("media url switches kind", func(t *testing.T) {
		bulk, err := f.bulk.Create(ctx, &dto.CreateBulkRequest{
			RecipientListName: "vip-customers",
			Content:           "See attached",
			MediaURL:          utils.ToPtr("https://files.example.com/flyer.jpg"),
			MediaType:         utils.ToPtr("image/jpeg"),
		})
		require.NoError(t, err)
		assert.Equal(t, models.MessageKindMedia, bulk.Kind)
	})

	tests := []struct {
		name     string
		req      *dto.CreateBulkRequest
		expected error
	}{
		{
			name:     "unknown list",
			req:      &dto.CreateBulkRequest{RecipientListName: "missing", Content: "hi"},
			expected: ErrRecipientListNotFound,
		},
		{
			name:     "no template or content",
			req:      &dto.CreateBulkRequest{RecipientListName: "vip-customers"},
			expected: ErrContentRequired,
		},
		{
			name:     "unknown template",
			req:      &dto.CreateBulkRequest{RecipientListName: "vip-customers", TemplateName: "missing"},
			expected: ErrTemplateNotFound,
		},
		{
			name:     "disabled template",
			req:      &dto.CreateBulkRequest{RecipientListName: "vip-customers", TemplateName: "retired"},
			expected: ErrTemplateDisabled,
		},
		{
			name:     "unknown account",
			req:      &dto.CreateBulkRequest{RecipientListName: "vip-customers", Content: "hi", AccountName: "ghost"},
			expected: ErrAccountNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.bulk.Create(ctx, tt.req)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestBulkStartRunsToCompletion(t *testing.T) {
	list, entries := campaignList()
	f := newBulkFixture([]*models.WhatsAppTemplate{orderTemplate()}, list, entries...)
	ctx := context.Background()

	bulk, err := f.bulk.Create(ctx, &dto.CreateBulkRequest{
		RecipientListName: "vip-customers",
		TemplateName:      "order-created",
	})
	require.NoError(t, err)
	require.NoError(t, f.bulk.Start(ctx, bulk.UUID.String()))

	final, err := f.bulks.ByUUID(ctx, bulk.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.BulkStatusCompleted, final.Status)
	assert.Equal(t, 3, final.SentCount)
	assert.Equal(t, 0, final.FailedCount)
	assert.NotNil(t, final.StartedAt)
	assert.NotNil(t, final.CompletedAt)
	assert.Equal(t, []string{"989123456789", "989111111111", "989122222222"}, f.provider.sent)

	// Per-recipient aux data fills the template
	children, err := f.messages.ListByBulkMessage(ctx, final.ID)
	require.NoError(t, err)
	require.Len(t, children, 3)
	contents := make(map[string]string, len(children))
	for _, c := range children {
		contents[c.ToNumber] = c.Content
	}
	assert.Equal(t, "Hello Ali, your order SO-1 is confirmed.", contents["989123456789"])
	assert.Equal(t, "Hello Sara, your order SO-2 is confirmed.", contents["989111111111"])
}

func TestBulkStartSkipsExcludedNumbers(t *testing.T) {
	list, entries := campaignList()
	list.ExcludedNumbers = []string{"989111111111"}
	f := newBulkFixture([]*models.WhatsAppTemplate{orderTemplate()}, list, entries...)
	ctx := context.Background()

	bulk, err := f.bulk.Create(ctx, &dto.CreateBulkRequest{
		RecipientListName: "vip-customers",
		Content:           "Flash sale today",
	})
	require.NoError(t, err)
	require.NoError(t, f.bulk.Start(ctx, bulk.UUID.String()))

	final, err := f.bulks.ByUUID(ctx, bulk.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.BulkStatusCompleted, final.Status)
	assert.Equal(t, 2, final.SentCount)
	assert.NotContains(t, f.provider.sent, "989111111111")
}

func TestBulkStartValidation(t *testing.T) {
	list, entries := campaignList()
	f := newBulkFixture([]*models.WhatsAppTemplate{orderTemplate()}, list, entries...)
	ctx := context.Background()

	t.Run("invalid uuid", func(t *testing.T) {
		err := f.bulk.Start(ctx, "not-a-uuid")
		var be *BusinessError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "INVALID_BULK_ID", be.Code)
	})

	t.Run("unknown uuid", func(t *testing.T) {
		err := f.bulk.Start(ctx, "650a2f1e-9d6f-45c3-9a2e-6f4ff4a81a10")
		assert.ErrorIs(t, err, ErrBulkNotFound)
	})

	t.Run("completed run is not startable", func(t *testing.T) {
		bulk, err := f.bulk.Create(ctx, &dto.CreateBulkRequest{
			RecipientListName: "vip-customers",
			Content:           "hi",
		})
		require.NoError(t, err)
		require.NoError(t, f.bulk.Start(ctx, bulk.UUID.String()))

		err = f.bulk.Start(ctx, bulk.UUID.String())
		assert.ErrorIs(t, err, ErrBulkNotStartable)
	})

	t.Run("empty list", func(t *testing.T) {
		empty := &models.RecipientList{Name: "empty"}
		require.NoError(t, f.lists.Save(ctx, empty))

		bulk, err := f.bulk.Create(ctx, &dto.CreateBulkRequest{
			RecipientListName: "empty",
			Content:           "hi",
		})
		require.NoError(t, err)

		err = f.bulk.Start(ctx, bulk.UUID.String())
		assert.ErrorIs(t, err, ErrBulkEmptyList)
	})
}

func TestBulkPartialFailureAndRetry(t *testing.T) {
	list, entries := campaignList()
	f := newBulkFixture([]*models.WhatsAppTemplate{orderTemplate()}, list, entries...)
	ctx := context.Background()

	f.provider.failNumber("989111111111", errors.New("gateway timeout"))

	bulk, err := f.bulk.Create(ctx, &dto.CreateBulkRequest{
		RecipientListName: "vip-customers",
		TemplateName:      "order-created",
	})
	require.NoError(t, err)
	require.NoError(t, f.bulk.Start(ctx, bulk.UUID.String()))

	partial, err := f.bulks.ByUUID(ctx, bulk.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.BulkStatusPartiallyFailed, partial.Status)
	assert.Equal(t, 2, partial.SentCount)
	assert.Equal(t, 1, partial.FailedCount)

	progress, err := f.bulk.Progress(ctx, bulk.UUID.String())
	require.NoError(t, err)
	assert.Equal(t, 3, progress.Total)
	assert.Equal(t, 2, progress.Sent)
	assert.Equal(t, 1, progress.Failed)
	assert.Equal(t, 0, progress.Queued)
	assert.InDelta(t, 100.0, progress.Percent, 0.01)

	f.provider.clearFailure("989111111111")
	require.NoError(t, f.bulk.RetryFailed(ctx, bulk.UUID.String()))

	final, err := f.bulks.ByUUID(ctx, bulk.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.BulkStatusCompleted, final.Status)
	assert.Equal(t, 3, final.SentCount)
	assert.Equal(t, 0, final.FailedCount)

	failedRows, err := f.messages.ListFailedByBulkMessage(ctx, final.ID)
	require.NoError(t, err)
	assert.Empty(t, failedRows)
}

func TestBulkRetryNeedsPartialFailure(t *testing.T) {
	list, entries := campaignList()
	f := newBulkFixture([]*models.WhatsAppTemplate{orderTemplate()}, list, entries...)
	ctx := context.Background()

	bulk, err := f.bulk.Create(ctx, &dto.CreateBulkRequest{
		RecipientListName: "vip-customers",
		Content:           "hi",
	})
	require.NoError(t, err)
	require.NoError(t, f.bulk.Start(ctx, bulk.UUID.String()))

	err = f.bulk.RetryFailed(ctx, bulk.UUID.String())
	assert.ErrorIs(t, err, ErrBulkNotStartable)
}

func TestBulkProgressBeforeStart(t *testing.T) {
	list, entries := campaignList()
	f := newBulkFixture([]*models.WhatsAppTemplate{orderTemplate()}, list, entries...)
	ctx := context.Background()

	bulk, err := f.bulk.Create(ctx, &dto.CreateBulkRequest{
		RecipientListName: "vip-customers",
		Content:           "hi",
	})
	require.NoError(t, err)

	progress, err := f.bulk.Progress(ctx, bulk.UUID.String())
	require.NoError(t, err)
	assert.Equal(t, models.BulkStatusDraft.String(), progress.Status)
	assert.Equal(t, 3, progress.Total)
	assert.Equal(t, 3, progress.Queued)
	assert.Zero(t, progress.Percent)
}
