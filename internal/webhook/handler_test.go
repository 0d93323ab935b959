package webhook

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salesvox/conversa/internal/config"
	"github.com/salesvox/conversa/internal/conversation"
	"github.com/salesvox/conversa/internal/model"
)

const testSecret = "shhh-webhook-secret"

type stubProcessor struct {
	payload *model.CallbackPayload
	err     error
}

func (s *stubProcessor) Process(_ context.Context, payload *model.CallbackPayload) error {
	s.payload = payload
	return s.err
}

func testWebhookConfig() config.WebhookConfig {
	return config.WebhookConfig{
		Secret:           testSecret,
		SignatureHeader:  "X-Webhook-Signature",
		TimestampHeader:  "X-Webhook-Timestamp",
		ReplayWindowSecs: 300,
		MaxBodyBytes:     1 << 20,
	}
}

func newTestHandler(proc *stubProcessor) *Handler {
	h := NewHandler(testWebhookConfig(), proc)
	h.now = func() time.Time { return time.Unix(1_770_000_000, 0) }
	return h
}

// signedRequest builds a POST with a valid signature and an in-window
// timestamp unless overridden.
func signedRequest(t *testing.T, body string, mutate func(r *http.Request)) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/webhook/conversations", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("X-Webhook-Signature", Sign(testSecret, []byte(body)))
	r.Header.Set("X-Webhook-Timestamp", "1770000000")
	if mutate != nil {
		mutate(r)
	}
	return r
}

func validBody() string {
	return `{"conversation_id":"conv-1","tenant_id":"tenant-1","status":"COMPLETED","insights":{"summary":"good call"}}`
}

func TestHandlerAcceptsValidCallback(t *testing.T) {
	proc := &stubProcessor{}
	h := newTestHandler(proc)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, validBody(), nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"conversation_id":"conv-1","status":"COMPLETED"}`, rec.Body.String())
	require.NotNil(t, proc.payload)
	assert.Equal(t, "tenant-1", proc.payload.TenantID)
	assert.Equal(t, model.ProcessingStatusCompleted, proc.payload.Status)
}

func TestHandlerAcceptsSha256PrefixedSignature(t *testing.T) {
	proc := &stubProcessor{}
	h := newTestHandler(proc)

	body := validBody()
	r := signedRequest(t, body, func(r *http.Request) {
		r.Header.Set("X-Webhook-Signature", "sha256="+Sign(testSecret, []byte(body)))
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerRejectsBadSignature(t *testing.T) {
	proc := &stubProcessor{}
	h := newTestHandler(proc)

	r := signedRequest(t, validBody(), func(r *http.Request) {
		r.Header.Set("X-Webhook-Signature", Sign("wrong-secret", []byte(validBody())))
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, proc.payload, "payload must not reach the processor")
}

func TestHandlerRejectsMissingSignature(t *testing.T) {
	h := newTestHandler(&stubProcessor{})

	r := signedRequest(t, validBody(), func(r *http.Request) {
		r.Header.Del("X-Webhook-Signature")
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerRejectsTamperedBody(t *testing.T) {
	h := newTestHandler(&stubProcessor{})

	tampered := strings.Replace(validBody(), "tenant-1", "tenant-2", 1)
	r := signedRequest(t, validBody(), nil)
	r.Body = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tampered)).Body
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerReplayWindow(t *testing.T) {
	cases := []struct {
		name string
		ts   string
		want int
	}{
		{"in window past", "1769999800", http.StatusOK},
		{"in window future", "1770000200", http.StatusOK},
		{"exactly at window edge", "1769999700", http.StatusOK},
		{"too old", "1769999699", http.StatusUnauthorized},
		{"too far in the future", "1770000301", http.StatusUnauthorized},
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "not-a-number", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(&stubProcessor{})
			r := signedRequest(t, validBody(), func(r *http.Request) {
				if tc.ts == "" {
					r.Header.Del("X-Webhook-Timestamp")
				} else {
					r.Header.Set("X-Webhook-Timestamp", tc.ts)
				}
			})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestHandlerRejectsMalformedJSON(t *testing.T) {
	h := newTestHandler(&stubProcessor{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, `{"conversation_id":`, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRejectsInvalidShape(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing conversation id", `{"tenant_id":"t","status":"COMPLETED"}`},
		{"missing tenant id", `{"conversation_id":"c","status":"COMPLETED"}`},
		{"unknown status", `{"conversation_id":"c","tenant_id":"t","status":"DONE"}`},
		{"pending not accepted", `{"conversation_id":"c","tenant_id":"t","status":"PENDING"}`},
		{"confidence above one", `{"conversation_id":"c","tenant_id":"t","status":"COMPLETED","insights":{"extractedData":{"confidence":1.5}}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(&stubProcessor{})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, signedRequest(t, tc.body, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandlerUnknownConversationIs404(t *testing.T) {
	h := newTestHandler(&stubProcessor{err: conversation.ErrConversationNotFound})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, validBody(), nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerProcessorFailureIs500(t *testing.T) {
	h := newTestHandler(&stubProcessor{err: eris.New("db down")})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, validBody(), nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down", "internals stay out of responses")
}

func TestRouterRateLimitsWebhook(t *testing.T) {
	cfg := testWebhookConfig()
	cfg.RateLimitPerSec = 1
	cfg.RateLimitBurst = 2
	cfg.AllowedCORSOrigin = "*"
	h := NewHandler(cfg, &stubProcessor{})
	h.now = func() time.Time { return time.Unix(1_770_000_000, 0) }
	router := NewRouter(cfg, h, nil)

	codes := map[int]int{}
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, signedRequest(t, validBody(), nil))
		codes[rec.Code]++
	}

	assert.Equal(t, 2, codes[http.StatusOK], "burst admits the first requests")
	assert.Equal(t, 3, codes[http.StatusTooManyRequests])
}

func TestRouterHealth(t *testing.T) {
	cfg := testWebhookConfig()
	cfg.AllowedCORSOrigin = "*"
	router := NewRouter(cfg, NewHandler(cfg, &stubProcessor{}), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouterCORSPreflight(t *testing.T) {
	cfg := testWebhookConfig()
	cfg.AllowedCORSOrigin = "https://app.example.com"
	router := NewRouter(cfg, NewHandler(cfg, &stubProcessor{}), nil)

	r := httptest.NewRequest(http.MethodOptions, "/webhook/conversations", nil)
	r.Header.Set("Origin", "https://app.example.com")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandlerRejectsOversizedBody(t *testing.T) {
	cfg := testWebhookConfig()
	cfg.MaxBodyBytes = 64
	h := NewHandler(cfg, &stubProcessor{})
	h.now = func() time.Time { return time.Unix(1_770_000_000, 0) }

	body := fmt.Sprintf(`{"conversation_id":"c","tenant_id":"t","status":"COMPLETED","error_reason":%q}`, strings.Repeat("x", 200))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, body, nil))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

type brokenBody struct{}

func (brokenBody) Read([]byte) (int, error) { return 0, eris.New("connection reset by peer") }

func TestHandlerBodyReadFailureIsBadRequest(t *testing.T) {
	h := NewHandler(testWebhookConfig(), &stubProcessor{})
	h.now = func() time.Time { return time.Unix(1_770_000_000, 0) }

	req := httptest.NewRequest(http.MethodPost, "/webhook/conversations", brokenBody{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code, "a transport failure is not an oversized body")
}
