package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peykaro/whatsapp-dispatch/utils"
)

func newTestGuard() *DedupGuard {
	return NewDedupGuard(NewMemoryCache(), log.Default())
}

func TestContentKey(t *testing.T) {
	g := newTestGuard()

	content := "Hello Ali, your order SO-0042 is confirmed."
	sum := sha1.Sum([]byte(content))
	expected := fmt.Sprintf("wa_evo_out:text:989123456789:%s", hex.EncodeToString(sum[:]))
	assert.Equal(t, expected, g.ContentKey("text", "989123456789", content))

	// Same recipient, different content, different key
	assert.NotEqual(t,
		g.ContentKey("text", "989123456789", "a"),
		g.ContentKey("text", "989123456789", "b"))

	// Same content, different kind, different key
	assert.NotEqual(t,
		g.ContentKey("text", "989123456789", content),
		g.ContentKey("media", "989123456789", content))
}

func TestMediaDedupContent(t *testing.T) {
	base := MediaAttachment{URL: "https://cdn.example.com/flyer.jpg", Caption: "New arrivals"}
	assert.Equal(t, "https://cdn.example.com/flyer.jpg|New arrivals", MediaDedupContent(base))

	// Inline bytes are part of the key material
	withData := base
	withData.Data = []byte("jpegbytes")
	assert.NotEqual(t, MediaDedupContent(base), MediaDedupContent(withData))

	otherData := base
	otherData.Data = []byte("pngbytes")
	assert.NotEqual(t, MediaDedupContent(withData), MediaDedupContent(otherData))
}

func TestNotificationKey(t *testing.T) {
	g := newTestGuard()

	key := g.NotificationKey("payment-reminder", "Sales Invoice", "INV-001", "989123456789", "invoice-due")
	assert.Equal(t, "wa_notif_dedup:payment-reminder:Sales Invoice:INV-001:989123456789:invoice-due", key)
}

func TestContentTTL(t *testing.T) {
	g := newTestGuard()

	assert.Equal(t, utils.TextDedupTTL, g.ContentTTL("text"))
	assert.Equal(t, utils.MediaDedupTTL, g.ContentTTL("media"))
	assert.Equal(t, utils.TextDedupTTL, g.ContentTTL("anything-else"))

	g.TextTTL = 5 * time.Second
	assert.Equal(t, 5*time.Second, g.ContentTTL("text"))
}

func TestAdmitAndRelease(t *testing.T) {
	g := newTestGuard()
	ctx := context.Background()
	key := g.ContentKey("text", "989123456789", "hi")

	assert.True(t, g.Admit(ctx, key, time.Minute))
	assert.False(t, g.Admit(ctx, key, time.Minute))

	g.Release(ctx, key)
	assert.True(t, g.Admit(ctx, key, time.Minute))
}

func TestAdmitWindowExpires(t *testing.T) {
	g := newTestGuard()
	ctx := context.Background()
	key := g.NotificationKey("rule", "Sales Order", "SO-1", "989123456789", "tpl")

	require.True(t, g.Admit(ctx, key, 10*time.Millisecond))
	require.False(t, g.Admit(ctx, key, 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	assert.True(t, g.Admit(ctx, key, time.Minute))
}

type failingCache struct {
	*MemoryCache
}

func (c *failingCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return false, fmt.Errorf("connection refused")
}

func TestAdmitOnCacheFailure(t *testing.T) {
	g := NewDedupGuard(&failingCache{NewMemoryCache()}, log.Default())

	// A broken cache must not block sends
	assert.True(t, g.Admit(context.Background(), "any", time.Minute))
}
