package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/peykaro/whatsapp-dispatch/utils"
)

// DedupGuard suppresses duplicate sends through short-lived cache
// claims. A claim is an atomic set-if-absent with expiry; the first
// caller wins the window, later callers are told to skip.
type DedupGuard struct {
	cache  Cache
	logger *log.Logger

	TextTTL         time.Duration
	MediaTTL        time.Duration
	NotificationTTL time.Duration
}

func NewDedupGuard(cache Cache, logger *log.Logger) *DedupGuard {
	return &DedupGuard{
		cache:           cache,
		logger:          logger,
		TextTTL:         utils.TextDedupTTL,
		MediaTTL:        utils.MediaDedupTTL,
		NotificationTTL: utils.NotificationDedupTTL,
	}
}

// ContentKey builds the provider-level idempotency key for an outgoing
// payload: kind, recipient and a digest of the content.
func (g *DedupGuard) ContentKey(kind, to, content string) string {
	sum := sha1.Sum([]byte(content))
	return fmt.Sprintf("wa_evo_out:%s:%s:%s", kind, to, hex.EncodeToString(sum[:]))
}

// MediaDedupContent builds the key material for a media payload. Inline
// bytes are digested so identical URL and caption with different
// embedded content do not collide.
func MediaDedupContent(media MediaAttachment) string {
	content := media.URL + "|" + media.Caption
	if len(media.Data) > 0 {
		sum := sha1.Sum(media.Data)
		content += "|" + hex.EncodeToString(sum[:])
	}
	return content
}

// NotificationKey builds the rule-level suppression key
func (g *DedupGuard) NotificationKey(rule, doctype, docname, to, template string) string {
	return fmt.Sprintf("wa_notif_dedup:%s:%s:%s:%s:%s", rule, doctype, docname, to, template)
}

// ContentTTL returns the idempotency window for the payload kind
func (g *DedupGuard) ContentTTL(kind string) time.Duration {
	if kind == "media" {
		return g.MediaTTL
	}
	return g.TextTTL
}

// Admit claims the key for the caller. False means another send holds
// the window and this one must be skipped. A cache failure admits the
// send; losing dedup briefly beats dropping messages.
func (g *DedupGuard) Admit(ctx context.Context, key string, ttl time.Duration) bool {
	ok, err := g.cache.SetNX(ctx, key, "1", ttl)
	if err != nil {
		if g.logger != nil {
			g.logger.Printf("dedup guard: cache error on %s, admitting send: %v", key, err)
		}
		return true
	}
	return ok
}

// Release drops a claim early so a failed send can be retried inside
// the window.
func (g *DedupGuard) Release(ctx context.Context, key string) {
	if err := g.cache.Delete(ctx, key); err != nil && g.logger != nil {
		g.logger.Printf("dedup guard: failed to release %s: %v", key, err)
	}
}
