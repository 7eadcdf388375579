package router

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMessageHandler struct{}

func (stubMessageHandler) SendTemplate(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
func (stubMessageHandler) SendCustom(c fiber.Ctx) error   { return c.SendStatus(fiber.StatusOK) }
func (stubMessageHandler) Preview(c fiber.Ctx) error      { return c.SendStatus(fiber.StatusOK) }
func (stubMessageHandler) Get(c fiber.Ctx) error          { return c.SendStatus(fiber.StatusOK) }
func (stubMessageHandler) Retry(c fiber.Ctx) error        { return c.SendStatus(fiber.StatusOK) }

type stubWebhookHandler struct{}

func (stubWebhookHandler) Evolution(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

type stubBulkHandler struct{}

func (stubBulkHandler) Create(c fiber.Ctx) error   { return c.SendStatus(fiber.StatusOK) }
func (stubBulkHandler) Progress(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
func (stubBulkHandler) Start(c fiber.Ctx) error    { return c.SendStatus(fiber.StatusOK) }
func (stubBulkHandler) Retry(c fiber.Ctx) error    { return c.SendStatus(fiber.StatusOK) }

type stubRecipientListHandler struct{}

func (stubRecipientListHandler) Create(c fiber.Ctx) error  { return c.SendStatus(fiber.StatusOK) }
func (stubRecipientListHandler) Import(c fiber.Ctx) error  { return c.SendStatus(fiber.StatusOK) }
func (stubRecipientListHandler) Refresh(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
func (stubRecipientListHandler) Remove(c fiber.Ctx) error  { return c.SendStatus(fiber.StatusOK) }

type stubEventHandler struct{}

func (stubEventHandler) DocumentEvent(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

type stubAccountHandler struct{}

func (stubAccountHandler) Save(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
func (stubAccountHandler) Get(c fiber.Ctx) error  { return c.SendStatus(fiber.StatusOK) }

func newTestRouter(cfg Config) *FiberRouter {
	r := NewFiberRouter(
		stubMessageHandler{},
		stubWebhookHandler{},
		stubBulkHandler{},
		stubRecipientListHandler{},
		stubEventHandler{},
		stubAccountHandler{},
		cfg,
	)
	return r.(*FiberRouter)
}

func TestConfigDefaults(t *testing.T) {
	r := newTestRouter(Config{})

	appCfg := r.GetApp().Config()
	assert.Equal(t, 8*1024*1024, appCfg.BodyLimit)
	assert.Equal(t, 10*time.Second, appCfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, appCfg.WriteTimeout)
	assert.Equal(t, 2000, r.config.RateLimit)
	assert.Equal(t, time.Minute, r.config.RateLimitWindow)
}

func TestConfigOverrides(t *testing.T) {
	r := newTestRouter(Config{
		BodyLimit:       1024,
		ReadTimeout:     2 * time.Second,
		RateLimit:       5,
		RateLimitWindow: 30 * time.Second,
	})

	appCfg := r.GetApp().Config()
	assert.Equal(t, 1024, appCfg.BodyLimit)
	assert.Equal(t, 2*time.Second, appCfg.ReadTimeout)
	assert.Equal(t, 5, r.config.RateLimit)
	assert.Equal(t, 30*time.Second, r.config.RateLimitWindow)
}

func TestMetricsEndpointToggle(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		r := newTestRouter(Config{EnableMetrics: true})
		r.SetupRoutes()

		resp, err := r.GetApp().Test(httptest.NewRequest("GET", "/metrics", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("disabled", func(t *testing.T) {
		r := newTestRouter(Config{EnableMetrics: false})
		r.SetupRoutes()

		resp, err := r.GetApp().Test(httptest.NewRequest("GET", "/metrics", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}

func TestRateLimitFromConfig(t *testing.T) {
	r := newTestRouter(Config{RateLimit: 1, RateLimitWindow: time.Minute})
	r.SetupRoutes()
	app := r.GetApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/bulk/1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/bulk/1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestAccountRoutesRegistered(t *testing.T) {
	r := newTestRouter(Config{})
	r.SetupRoutes()
	app := r.GetApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/accounts/main", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
