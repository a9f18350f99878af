package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"reconcile/internal/api"
	"reconcile/internal/logging"
	"reconcile/internal/store"
	"reconcile/internal/testsupport"
	"reconcile/internal/trigger"
)

func newTestServer(t *testing.T, token string) (*apiServer, *Daemon) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAgents("cursor-mm1"), testsupport.WithPlans("PLAN.md"))
	cfg.Paths.APIToken = token
	testsupport.WriteFile(t, cfg.Audit.Plans[0], "# Plan\n\n- [x] `main.go`\n")
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.WorkspaceRoot, "main.go"), "package main\n")
	testsupport.WriteTrigger(t, cfg.Paths.TriggersDir, "cursor-mm1", trigger.StateInbox,
		trigger.Name{Timestamp: time.Now().UTC(), Kind: trigger.KindInfo, Title: "note", TaskID: "n1"}, `{}`)

	st := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv, err := newAPIServer(cfg, d, logging.NewNop())
	if err != nil || srv == nil {
		t.Fatalf("newAPIServer: %v", err)
	}
	return srv, d
}

func serve(srv *apiServer, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

func TestAPIServerAudits(t *testing.T) {
	srv, d := newTestServer(t, "")
	d.auditAll(context.Background())

	w := serve(srv, http.MethodGet, "/api/audits", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var list api.AuditListResponse
	decode(t, w, &list)
	if len(list.Audits) != 1 || list.Audits[0].Percent != 100 {
		t.Fatalf("unexpected audits %+v", list.Audits)
	}

	w = serve(srv, http.MethodGet, "/api/audits/"+list.Audits[0].ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var one api.AuditResponse
	decode(t, w, &one)
	if one.Audit.Summary.ID != list.Audits[0].ID || len(one.Audit.Checks) != 1 {
		t.Fatalf("unexpected audit %+v", one.Audit)
	}
	if one.Audit.Triggers["cursor-mm1"]["inbox"] != 1 {
		t.Fatalf("expected trigger counts in audit, got %+v", one.Audit.Triggers)
	}

	if w := serve(srv, http.MethodGet, "/api/audits/missing", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := serve(srv, http.MethodGet, "/api/audits?limit=-1", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := serve(srv, http.MethodPost, "/api/audits", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAPIServerTriggersAndEvents(t *testing.T) {
	srv, d := newTestServer(t, "")

	w := serve(srv, http.MethodGet, "/api/triggers?state=inbox", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var inv api.TriggerInventory
	decode(t, w, &inv)
	if len(inv.Entries) != 1 || inv.Entries[0].Kind != "INFO" || inv.Totals["inbox"] != 1 {
		t.Fatalf("unexpected inventory %+v", inv)
	}
	if w := serve(srv, http.MethodGet, "/api/triggers?state=bogus", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown state, got %d", w.Code)
	}

	if _, err := d.store.RecordEvent(context.Background(), store.Event{Kind: "trigger", Op: "create", Path: "/x.json"}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	w = serve(srv, http.MethodGet, "/api/events?limit=5", "")
	var events api.EventListResponse
	decode(t, w, &events)
	if len(events.Events) != 1 || events.Events[0].Path != "/x.json" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestAPIServerRequiresToken(t *testing.T) {
	srv, _ := newTestServer(t, "s3cret")

	if w := serve(srv, http.MethodGet, "/api/status", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := serve(srv, http.MethodGet, "/api/status", "wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	w := serve(srv, http.MethodGet, "/api/status", "s3cret")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
	var status api.DaemonStatus
	decode(t, w, &status)
	if status.Running || len(status.Plans) != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestNewAPIServerDisabledWithoutBind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	srv, err := newAPIServer(cfg, &Daemon{}, nil)
	if err != nil || srv != nil {
		t.Fatalf("expected disabled server, got %v %v", srv, err)
	}
	srv.stop()
}
