package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/dispatch"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/models"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/quota"

	"github.com/gin-gonic/gin"
)

type stubInvoker struct {
	text string
	err  error
}

func (s *stubInvoker) Invoke(context.Context, string, string) (string, error) {
	return s.text, s.err
}

func newInvokeRouter(endpoints []models.Endpoint, invoker dispatch.Invoker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	store := quota.NewMemoryStore(endpoints)
	manager := quota.NewManager(60 * time.Second)
	dispatcher := dispatch.New(store, manager, invoker, dispatch.Options{MaxAttempts: 3, ConflictRetries: 3})
	r := gin.New()
	r.POST("/v1/invoke", NewInvokeHandler(dispatcher, nil, "test-model").Invoke)
	return r
}

func freshEndpoints() []models.Endpoint {
	reset := time.Now().Unix()
	return []models.Endpoint{
		{Region: "us-east-1", TotalQuota: 500, LastReset: reset},
	}
}

func TestInvokeHandlerSuccess(t *testing.T) {
	r := newInvokeRouter(freshEndpoints(), &stubInvoker{text: "Delhi"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/invoke", strings.NewReader(`{"prompt":"capital of india?"}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	if errUnmarshal := json.Unmarshal(w.Body.Bytes(), &body); errUnmarshal != nil {
		t.Fatalf("unmarshal: %v", errUnmarshal)
	}
	if body["response"] != "Delhi" {
		t.Fatalf("unexpected response %q", body["response"])
	}
	if body["region"] != "us-east-1" {
		t.Fatalf("unexpected region %q", body["region"])
	}
}

func TestInvokeHandlerRejectsMissingPrompt(t *testing.T) {
	r := newInvokeRouter(freshEndpoints(), &stubInvoker{text: "x"})

	for _, payload := range []string{`{}`, `{"prompt":""}`, `{"prompt":"   "}`, `not json`} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/invoke", strings.NewReader(payload))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("payload %q: expected 400, got %d", payload, w.Code)
		}
	}
}

func TestInvokeHandlerExhaustedQuota(t *testing.T) {
	reset := time.Now().Unix()
	r := newInvokeRouter([]models.Endpoint{
		{Region: "us-east-1", TotalQuota: 10, UsedQuota: 10, LastReset: reset},
	}, &stubInvoker{text: "x"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/invoke", strings.NewReader(`{"prompt":"hi"}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestInvokeHandlerUpstreamFailure(t *testing.T) {
	r := newInvokeRouter(freshEndpoints(), &stubInvoker{err: errors.New("throttled")})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/invoke", strings.NewReader(`{"prompt":"hi"}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "error") {
		t.Fatalf("expected error body, got %s", w.Body.String())
	}
}
