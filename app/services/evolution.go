package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/peykaro/whatsapp-dispatch/utils"
)

// ErrInstanceNotConnected signals that the provider reported a dead or
// missing WhatsApp session for the instance. The dispatch flow retries
// such failures once on the default outgoing account.
var ErrInstanceNotConnected = errors.New("instance not connected, reconnect the WhatsApp session and try again")

// ProviderSettings is the resolved Evolution API configuration for one
// send: account values with global fallbacks already applied.
type ProviderSettings struct {
	BaseURL  string
	APIKey   string
	Instance string

	// Full-URL endpoint overrides; "{instance}" is substituted
	TextEndpoint  string
	MediaEndpoint string
}

// MediaAttachment describes the media half of a media send. Data may
// be nil when only the URL is known.
type MediaAttachment struct {
	URL      string
	MimeType string
	FileName string
	Caption  string
	Data     []byte
}

// EvolutionClient sends messages through an Evolution-style gateway.
// Deployments differ in both route layout and payload schema, so every
// send walks candidate URL and payload-shape combinations until one
// returns 2xx.
type EvolutionClient struct {
	httpClient *http.Client
	dedup      *DedupGuard
	logger     *log.Logger

	textTimeout  time.Duration
	mediaTimeout time.Duration
}

func NewEvolutionClient(dedup *DedupGuard, logger *log.Logger) *EvolutionClient {
	return &EvolutionClient{
		httpClient:   &http.Client{},
		dedup:        dedup,
		logger:       logger,
		textTimeout:  utils.ProviderTextTimeout,
		mediaTimeout: utils.ProviderMediaTimeout,
	}
}

// ConfigureTimeouts overrides the per-attempt deadlines. Zero or
// negative values keep the current setting.
func (c *EvolutionClient) ConfigureTimeouts(text, media time.Duration) {
	if text > 0 {
		c.textTimeout = text
	}
	if media > 0 {
		c.mediaTimeout = media
	}
}

// SendText delivers a plain text message and returns the provider
// message id, or the dedup sentinel when an identical send already
// holds the idempotency window.
func (c *EvolutionClient) SendText(ctx context.Context, settings ProviderSettings, to, text string) (string, error) {
	if settings.BaseURL == "" && settings.TextEndpoint == "" {
		return "", errors.New("evolution: no API base configured")
	}

	if c.dedup != nil {
		key := c.dedup.ContentKey("text", to, text)
		if !c.dedup.Admit(ctx, key, c.dedup.ContentTTL("text")) {
			return utils.DedupSkipID, nil
		}
	}

	urls := candidateTextURLs(settings)
	payloads := textPayloads(to, text)
	return c.attempt(ctx, settings, urls, payloads, c.textTimeout)
}

// SendMedia delivers a media message. When raw bytes are present the
// base64 payload shapes go first; when only a URL is known a
// fetch-and-embed base64 fallback is appended after the URL shapes.
func (c *EvolutionClient) SendMedia(ctx context.Context, settings ProviderSettings, to string, media MediaAttachment) (string, error) {
	if settings.BaseURL == "" && settings.MediaEndpoint == "" {
		return "", errors.New("evolution: no API base configured")
	}

	if c.dedup != nil {
		key := c.dedup.ContentKey("media", to, MediaDedupContent(media))
		if !c.dedup.Admit(ctx, key, c.dedup.ContentTTL("media")) {
			return utils.DedupSkipID, nil
		}
	}

	urls := candidateMediaURLs(settings)
	payloads := c.mediaPayloads(ctx, to, media)
	return c.attempt(ctx, settings, urls, payloads, c.mediaTimeout)
}

// CheckConnection probes the instance connection state endpoints and
// returns nil when the gateway reports an open session.
func (c *EvolutionClient) CheckConnection(ctx context.Context, settings ProviderSettings) error {
	base := strings.TrimRight(settings.BaseURL, "/")
	urls := dedupeStrings([]string{
		base + "/instance/connectionState/" + settings.Instance,
		base + "/instance/connection-state/" + settings.Instance,
	})

	var lastErr error
	for _, u := range urls {
		reqCtx, cancel := context.WithTimeout(ctx, c.textTimeout)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u, nil)
		if err != nil {
			cancel()
			lastErr = err
			continue
		}
		setAuthHeaders(req, settings.APIKey)

		resp, err := c.httpClient.Do(req)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if isSessionError(string(body)) {
				return ErrInstanceNotConnected
			}
			return nil
		}
		lastErr = fmt.Errorf("evolution: %s -> status %d", u, resp.StatusCode)
	}
	if lastErr == nil {
		lastErr = errors.New("evolution: connection check failed")
	}
	return lastErr
}

// payloadVariant pairs a request body with a label for error reporting
type payloadVariant struct {
	mode string
	body map[string]any
}

func (c *EvolutionClient) attempt(ctx context.Context, settings ProviderSettings, urls []string, payloads []payloadVariant, timeout time.Duration) (string, error) {
	var attempts []string
	sessionFailure := false

	for _, u := range urls {
		for _, p := range payloads {
			raw, err := json.Marshal(p.body)
			if err != nil {
				attempts = append(attempts, fmt.Sprintf("%s (%s) -> marshal: %v", u, p.mode, err))
				continue
			}

			reqCtx, cancel := context.WithTimeout(ctx, timeout)
			req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, u, bytes.NewReader(raw))
			if err != nil {
				cancel()
				attempts = append(attempts, fmt.Sprintf("%s (%s) -> %v", u, p.mode, err))
				continue
			}
			req.Header.Set("Content-Type", "application/json")
			setAuthHeaders(req, settings.APIKey)

			resp, err := c.httpClient.Do(req)
			cancel()
			if err != nil {
				attempts = append(attempts, fmt.Sprintf("%s (%s) -> %v", u, p.mode, err))
				continue
			}
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return extractMessageID(body), nil
			}

			excerpt := utils.Truncate(string(body), utils.ProviderErrorBodyLimit)
			attempts = append(attempts, fmt.Sprintf("%s (%s) -> status %d %s", u, p.mode, resp.StatusCode, excerpt))
			if isSessionError(string(body)) {
				sessionFailure = true
			}
		}
	}

	if c.logger != nil {
		c.logger.Printf("evolution: all attempts failed: %s", strings.Join(attempts, "; "))
	}
	if sessionFailure {
		return "", ErrInstanceNotConnected
	}
	return "", fmt.Errorf("evolution: all send attempts failed: %s", strings.Join(attempts, "; "))
}

// isSessionError recognizes gateway responses that mean the WhatsApp
// session is gone rather than the request being malformed.
func isSessionError(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "no sessions") ||
		strings.Contains(lower, "sessionerror") ||
		strings.Contains(lower, "does not exist")
}

func setAuthHeaders(req *http.Request, apiKey string) {
	if apiKey == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("apikey", apiKey)
}

func candidateTextURLs(settings ProviderSettings) []string {
	return candidateURLs(settings.TextEndpoint, settings.BaseURL, settings.Instance, "sendText")
}

func candidateMediaURLs(settings ProviderSettings) []string {
	return candidateURLs(settings.MediaEndpoint, settings.BaseURL, settings.Instance, "sendMedia")
}

func candidateURLs(override, base, instance, action string) []string {
	base = strings.TrimRight(base, "/")
	var urls []string
	if override != "" {
		urls = append(urls, strings.ReplaceAll(override, "{instance}", instance))
		urls = append(urls, override)
	}
	if base != "" {
		if instance != "" {
			urls = append(urls,
				base+"/message/"+action+"/"+instance,
				base+"/messages/"+instance,
			)
		}
		urls = append(urls,
			base+"/message/"+action,
			base+"/messages",
		)
	}
	return dedupeStrings(urls)
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func textPayloads(to, text string) []payloadVariant {
	return []payloadVariant{
		{mode: "number", body: map[string]any{"number": to, "text": text}},
		{mode: "to", body: map[string]any{"to": to, "text": text}},
		{mode: "textMessage", body: map[string]any{
			"number": to,
			"options": map[string]any{
				"delay":    1200,
				"presence": "composing",
			},
			"textMessage": map[string]any{"text": text},
		}},
	}
}

func (c *EvolutionClient) mediaPayloads(ctx context.Context, to string, media MediaAttachment) []payloadVariant {
	urlShapes := func(mediaValue string, suffix string) []payloadVariant {
		mediaType := mediaKind(media.MimeType)
		return []payloadVariant{
			{mode: "mediaMessage" + suffix, body: map[string]any{
				"number": to,
				"mediaMessage": map[string]any{
					"mediatype": mediaType,
					"media":     mediaValue,
					"caption":   media.Caption,
					"fileName":  media.FileName,
				},
			}},
			{mode: "number" + suffix, body: map[string]any{
				"number":    to,
				"mediatype": mediaType,
				"media":     mediaValue,
				"caption":   media.Caption,
				"fileName":  media.FileName,
			}},
			{mode: "to" + suffix, body: map[string]any{
				"to":        to,
				"mediatype": mediaType,
				"media":     mediaValue,
				"caption":   media.Caption,
				"fileName":  media.FileName,
			}},
		}
	}

	var payloads []payloadVariant
	if len(media.Data) > 0 {
		encoded := base64.StdEncoding.EncodeToString(media.Data)
		payloads = append(payloads, urlShapes(encoded, "-b64")...)
		if media.URL != "" {
			payloads = append(payloads, urlShapes(media.URL, "-url")...)
		}
		return payloads
	}

	payloads = append(payloads, urlShapes(media.URL, "-url")...)
	if data := c.fetchMedia(ctx, media.URL); len(data) > 0 {
		encoded := base64.StdEncoding.EncodeToString(data)
		payloads = append(payloads, urlShapes(encoded, "-b64")...)
	}
	return payloads
}

// fetchMedia downloads the file so gateways that reject remote URLs
// can still receive an embedded copy. Failures are not fatal, the URL
// shapes may still work.
func (c *EvolutionClient) fetchMedia(ctx context.Context, url string) []byte {
	if url == "" {
		return nil
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.mediaTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}
	return data
}

func mediaKind(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	default:
		return "document"
	}
}

// extractMessageID digs the provider message id out of the response,
// trying the shapes the gateway versions are known to produce.
func extractMessageID(body []byte) string {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "sent"
	}

	if id := stringValue(parsed["id"]); id != "" {
		return id
	}
	if id := stringValue(parsed["message_id"]); id != "" {
		return id
	}
	if key, ok := parsed["key"].(map[string]any); ok {
		if id := stringValue(key["id"]); id != "" {
			return id
		}
	}
	if msgs, ok := parsed["messages"].([]any); ok && len(msgs) > 0 {
		if first, ok := msgs[0].(map[string]any); ok {
			if id := stringValue(first["id"]); id != "" {
				return id
			}
		}
	}
	return "sent"
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return ""
	}
}
