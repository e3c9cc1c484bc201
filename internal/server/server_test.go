package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/N9work/CrewAi-Project/config"
	"github.com/N9work/CrewAi-Project/internal/agent/core"
	"github.com/N9work/CrewAi-Project/internal/catalog"
	"github.com/N9work/CrewAi-Project/internal/planner"
	"github.com/N9work/CrewAi-Project/internal/tools/websearch"
)

type stubPlanner struct {
	report planner.Report
	err    error
	got    []catalog.Request
}

func (p *stubPlanner) Plan(ctx context.Context, req catalog.Request) (planner.Report, error) {
	p.got = append(p.got, req)
	return p.report, p.err
}

func newTestServer(t *testing.T, cfg config.ServerConfig, p TripPlanner) *Server {
	t.Helper()
	reg, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	return New(cfg, p, reg, WithMetrics(prometheus.NewRegistry()))
}

func postJSON(t *testing.T, h http.Handler, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const trangBody = `{"task_type":"Trang","style":"Natural","cost":"Mid","day":"3","adults":"2","Rq":"vegetarian food"}`

func TestSetTaskSuccess(t *testing.T) {
	p := &stubPlanner{report: planner.Report{Message: planner.CompletedMessage, Result: "<p>plan</p>", RunID: "run-1"}}
	srv := newTestServer(t, config.ServerConfig{}, p)

	rec := postJSON(t, srv, "/set_task", trangBody, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp TripResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message != "Task completed!" || resp.Result != "<p>plan</p>" || resp.RunID != "run-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(p.got) != 1 {
		t.Fatalf("expected one planning call got %d", len(p.got))
	}
	want := catalog.Request{Category: "Trang", Style: "Natural", Cost: "Mid", Duration: "3", Travelers: "2", Requirement: "vegetarian food"}
	if p.got[0] != want {
		t.Fatalf("unexpected request: %+v", p.got[0])
	}
}

func TestSetTaskAcceptsFormData(t *testing.T) {
	p := &stubPlanner{report: planner.Report{Message: planner.CompletedMessage, Result: "ok"}}
	srv := newTestServer(t, config.ServerConfig{}, p)

	form := url.Values{"task_type": {"Trang"}, "style": {"Natural"}, "cost": {"Mid"}, "day": {"3"}}
	req := httptest.NewRequest(http.MethodPost, "/api/trips", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(p.got) != 1 || p.got[0].Category != "Trang" || p.got[0].Duration != "3" {
		t.Fatalf("unexpected request: %+v", p.got)
	}
}

func TestSetTaskErrorMapping(t *testing.T) {
	stage := func(i int, name string, cause error) error {
		return &core.StageExecutionError{Index: i, Stage: name, Cause: cause}
	}
	cases := []struct {
		name      string
		err       error
		status    int
		stage     int
		upstream  int
		wantError string
	}{
		{
			name:      "unknown category",
			err:       &catalog.InvalidParameterError{Field: catalog.FieldCategory, Value: "Atlantis"},
			status:    http.StatusBadRequest,
			stage:     -1,
			wantError: "invalid category option",
		},
		{
			name:   "missing search key",
			err:    stage(0, planner.StageResearch, fmt.Errorf("prefetch search_internet: %w", &websearch.ConfigurationError{Reason: "SERPER_API_KEY is not set"})),
			status: http.StatusServiceUnavailable,
			stage:  0,
		},
		{
			name:     "search upstream failure",
			err:      stage(0, planner.StageResearch, &websearch.ToolInvocationError{StatusCode: 502, Body: "bad gateway"}),
			status:   http.StatusBadGateway,
			stage:    0,
			upstream: 502,
		},
		{
			name:      "deadline",
			err:       stage(1, planner.StageWrite, context.DeadlineExceeded),
			status:    http.StatusGatewayTimeout,
			stage:     1,
			wantError: "trip planning timed out",
		},
		{
			name:      "search timeout",
			err:       stage(0, planner.StageResearch, fmt.Errorf("prefetch search_internet: %w", &websearch.ToolInvocationError{Err: context.DeadlineExceeded})),
			status:    http.StatusGatewayTimeout,
			stage:     0,
			wantError: "search request timed out",
		},
		{
			name:   "empty output",
			err:    stage(1, planner.StageWrite, core.ErrEmptyOutput),
			status: http.StatusInternalServerError,
			stage:  1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &stubPlanner{err: tc.err, report: planner.Report{RunID: "run-err"}}
			srv := newTestServer(t, config.ServerConfig{}, p)

			rec := postJSON(t, srv, "/set_task", trangBody, nil)
			if rec.Code != tc.status {
				t.Fatalf("expected status %d got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			var body HTTPError
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.RunID != "run-err" {
				t.Fatalf("expected run id in error body, got %+v", body)
			}
			if tc.stage < 0 && body.Stage != nil {
				t.Fatalf("expected no stage, got %d", *body.Stage)
			}
			if tc.stage >= 0 && (body.Stage == nil || *body.Stage != tc.stage) {
				t.Fatalf("expected stage %d, got %+v", tc.stage, body.Stage)
			}
			if body.Status != tc.upstream {
				t.Fatalf("expected upstream status %d got %d", tc.upstream, body.Status)
			}
			if tc.wantError != "" && body.Error != tc.wantError {
				t.Fatalf("expected error %q got %q", tc.wantError, body.Error)
			}
			if body.Detail != body.Error {
				t.Fatalf("detail should mirror error: %+v", body)
			}
		})
	}
}

func TestInvalidParameterCarriesField(t *testing.T) {
	p := &stubPlanner{err: &catalog.InvalidParameterError{Field: catalog.FieldStyle, Value: "Lazy"}}
	srv := newTestServer(t, config.ServerConfig{}, p)

	rec := postJSON(t, srv, "/api/trips", trangBody, nil)
	var body HTTPError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Field != "style" || body.Value != "Lazy" || body.Error != "invalid style option" {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestMalformedBody(t *testing.T) {
	p := &stubPlanner{}
	srv := newTestServer(t, config.ServerConfig{}, p)

	rec := postJSON(t, srv, "/set_task", `{"task_type":`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
	if len(p.got) != 0 {
		t.Fatalf("planner should not run on a malformed body")
	}
}

func TestJWTRequiredWhenSecretSet(t *testing.T) {
	secret := "s3cret"
	p := &stubPlanner{report: planner.Report{Message: planner.CompletedMessage, Result: "ok"}}
	srv := newTestServer(t, config.ServerConfig{JWTSecret: secret}, p)

	rec := postJSON(t, srv, "/api/trips", trangBody, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 got %d", rec.Code)
	}

	tok, err := SignJWT("alice", []byte(secret), time.Minute)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	rec = postJSON(t, srv, "/api/trips", trangBody, http.Header{"Authorization": {"Bearer " + tok}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}

	wrong, err := SignJWT("alice", []byte("other"), time.Minute)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	rec = postJSON(t, srv, "/set_task", trangBody, http.Header{"Authorization": {"Bearer " + wrong}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for foreign signature got %d", rec.Code)
	}
	if len(p.got) != 1 {
		t.Fatalf("expected exactly one authorised planning call got %d", len(p.got))
	}
}

func TestSignJWTWithoutSecret(t *testing.T) {
	if _, err := SignJWT("alice", nil, time.Minute); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("expected ErrNoSecret got %v", err)
	}
}

func TestCatalogEndpoint(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{}, &stubPlanner{})

	req := httptest.NewRequest(http.MethodGet, "/api/catalog", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp CatalogResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	found := false
	for _, c := range resp.Categories {
		if c == "Trang" {
			found = true
		}
	}
	if !found || len(resp.Styles) == 0 || len(resp.Costs) == 0 || len(resp.Durations) == 0 {
		t.Fatalf("unexpected catalog: %+v", resp)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{}, &stubPlanner{})

	for _, path := range []string{"/healthz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200 got %d", path, rec.Code)
		}
	}
}

func TestErrorLogCarriesTokenSubject(t *testing.T) {
	secret := "s3cret"
	obs, logs := observer.New(zapcore.InfoLevel)
	reg, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	p := &stubPlanner{err: errors.New("backend unavailable")}
	srv := New(config.ServerConfig{JWTSecret: secret}, p, reg, WithLogger(zap.New(obs)))

	tok, err := SignJWT("alice", []byte(secret), time.Minute)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	rec := postJSON(t, srv, "/api/trips", trangBody, http.Header{"Authorization": {"Bearer " + tok}})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 got %d", rec.Code)
	}
	entries := logs.FilterMessage("request failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one failure log got %d", len(entries))
	}
	if got := entries[0].ContextMap()["subject"]; got != "alice" {
		t.Fatalf("expected subject alice in log, got %v", got)
	}
}
