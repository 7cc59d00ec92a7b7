package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/beacon/internal/domain"
	"github.com/MrSnakeDoc/beacon/internal/httpserver/deps"
	"github.com/MrSnakeDoc/beacon/internal/logger"
	"github.com/MrSnakeDoc/beacon/internal/metrics"
	"github.com/MrSnakeDoc/beacon/internal/reconcile"
	"github.com/MrSnakeDoc/beacon/internal/registry"
	"github.com/MrSnakeDoc/beacon/internal/store/memory"
)

const adminIP = "192.0.2.10:4000"

type fakeProber struct {
	mu     sync.Mutex
	online map[string]bool
	calls  int
}

func (f *fakeProber) Probe(_ context.Context, address string, _ int, _ string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.online[address]
}

type fakeRefresher struct{ accept bool }

func (f *fakeRefresher) Trigger() bool { return f.accept }

type fixture struct {
	router http.Handler
	store  *memory.Store
	prober *fakeProber
}

func newFixture(t *testing.T, mutate func(*deps.Deps)) *fixture {
	t.Helper()
	pos0, pos1 := 0, 1
	st := memory.New(
		domain.Service{Name: "grafana", Address: "10.0.0.1", Port: 3000, Position: &pos1},
		domain.Service{Name: "nas", Address: "10.0.0.2", Port: 5000, IsOnline: true, Position: &pos0},
		domain.Service{Name: "docs", IsExternal: true, ExternalURL: "https://docs.example.com"},
	)
	log := logger.NewNop()
	reg := registry.New(st, log)
	prober := &fakeProber{online: map[string]bool{"10.0.0.1": true}}

	d := deps.Deps{
		Logger:          log,
		StartTime:       time.Now(),
		Version:         "test",
		AdminCIDRS:      []string{"192.0.2.0/24"},
		AdminRateBurst:  100,
		AdminRatePerMin: 60,
		Registry:        reg,
		Reconciler:      reconcile.New(prober, reg, log),
		Refresher:       &fakeRefresher{accept: true},
		Metrics:         metrics.New(),
		StoreKind:       "memory",
	}
	if mutate != nil {
		mutate(&d)
	}

	return &fixture{
		router: NewRouter(5*time.Second, log, d),
		store:  st,
		prober: prober,
	}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = adminIP
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeServices(t *testing.T, rec *httptest.ResponseRecorder) []domain.Service {
	t.Helper()
	var out []domain.Service
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode services: %v (body=%s)", err, rec.Body.String())
	}
	return out
}

func TestListServicesProbesAndSorts(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/api/services", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Beacon-Stale") != "" {
		t.Error("unexpected stale header")
	}

	services := decodeServices(t, rec)
	if len(services) != 3 {
		t.Fatalf("got %d services, want 3", len(services))
	}
	if services[0].Name != "nas" || services[1].Name != "grafana" || services[2].Name != "docs" {
		t.Errorf("order = %s, %s, %s", services[0].Name, services[1].Name, services[2].Name)
	}
	if services[0].IsOnline {
		t.Error("nas should be offline after probe")
	}
	if !services[1].IsOnline {
		t.Error("grafana should be online after probe")
	}
	if f.prober.calls != 2 {
		t.Errorf("probe calls = %d, want 2 (external skipped)", f.prober.calls)
	}

	// Changes were persisted
	stored, err := f.store.Get(context.Background(), "nas")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.IsOnline {
		t.Error("nas status change was not persisted")
	}
}

func TestListServicesStale(t *testing.T) {
	f := newFixture(t, nil)
	if rec := f.do(http.MethodGet, "/api/services", ""); rec.Code != http.StatusOK {
		t.Fatalf("warmup status = %d", rec.Code)
	}

	f.store.SetFailure(errors.New("connection refused"))
	f.prober.calls = 0

	rec := f.do(http.MethodGet, "/api/services", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Beacon-Stale") != "true" {
		t.Error("missing stale header")
	}
	if got := decodeServices(t, rec); len(got) != 3 {
		t.Errorf("stale list has %d services, want 3", len(got))
	}
	if f.prober.calls != 0 {
		t.Errorf("stale list was probed %d times", f.prober.calls)
	}
}

func TestServiceActions(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		check      func(t *testing.T, services []domain.Service)
	}{
		{
			name:       "add",
			body:       `{"action":"add","service":{"name":"jellyfin","url":"10.0.0.5","port":8096}}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, services []domain.Service) {
				i := domain.IndexByName(services, "jellyfin")
				if i < 0 {
					t.Fatal("jellyfin not listed")
				}
				if !services[i].IsOnline || !services[i].IsManualStatus {
					t.Errorf("added service = %+v, want online and manual", services[i])
				}
			},
		},
		{
			name:       "add missing url",
			body:       `{"action":"add","service":{"name":"x"}}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "add duplicate",
			body:       `{"action":"add","service":{"name":"nas","url":"10.0.0.9"}}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "add without service",
			body:       `{"action":"add"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "update rename",
			body:       `{"action":"update","serviceName":"nas","updatedService":{"name":"storage","port":5001}}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, services []domain.Service) {
				if domain.IndexByName(services, "nas") >= 0 {
					t.Error("old name still listed")
				}
				i := domain.IndexByName(services, "storage")
				if i < 0 || services[i].Port != 5001 || services[i].Address != "10.0.0.2" {
					t.Errorf("renamed service = %+v", services)
				}
			},
		},
		{
			name:       "update missing",
			body:       `{"action":"update","serviceName":"ghost","updatedService":{"port":1}}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "update rename collision",
			body:       `{"action":"update","serviceName":"nas","updatedService":{"name":"grafana"}}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "delete",
			body:       `{"action":"delete","serviceName":"grafana"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, services []domain.Service) {
				if len(services) != 2 || domain.IndexByName(services, "grafana") >= 0 {
					t.Errorf("services after delete = %+v", services)
				}
			},
		},
		{
			name:       "delete missing",
			body:       `{"action":"delete","serviceName":"ghost"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "update positions",
			body:       `{"action":"updatePositions","services":[{"name":"docs","position":0},{"name":"nas","position":5},{"name":"ghost","position":1}]}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, services []domain.Service) {
				if services[0].Name != "docs" || services[1].Name != "grafana" || services[2].Name != "nas" {
					t.Errorf("order = %s, %s, %s", services[0].Name, services[1].Name, services[2].Name)
				}
			},
		},
		{
			name:       "update positions without position",
			body:       `{"action":"updatePositions","services":[{"name":"grafana"},{"name":"docs","position":0}]}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, services []domain.Service) {
				i := domain.IndexByName(services, "grafana")
				if i < 0 || services[i].Position == nil || *services[i].Position != 1 {
					t.Errorf("grafana = %+v, want position 1 kept", services)
				}
				if services[0].Name != "nas" || services[1].Name != "docs" || services[2].Name != "grafana" {
					t.Errorf("order = %s, %s, %s", services[0].Name, services[1].Name, services[2].Name)
				}
			},
		},
		{
			name:       "update positions not an array",
			body:       `{"action":"updatePositions"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid action",
			body:       `{"action":"explode"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed json",
			body:       `{"action":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			rec := f.do(http.MethodPost, "/api/services", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body=%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}

			if tt.wantStatus != http.StatusOK {
				var e struct {
					Error string `json:"error"`
				}
				if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil || e.Error == "" {
					t.Errorf("error body = %s", rec.Body.String())
				}
				return
			}

			var resp struct {
				Success  bool             `json:"success"`
				Services []domain.Service `json:"services"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !resp.Success {
				t.Error("success = false")
			}
			if tt.check != nil {
				tt.check(t, resp.Services)
			}
		})
	}
}

func TestServiceActionStoreUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.store.SetFailure(errors.New("connection refused"))

	rec := f.do(http.MethodPost, "/api/services", `{"action":"delete","serviceName":"nas"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestAdminRoutesRejectOutsideCIDR(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/services", strings.NewReader(`{"action":"delete","serviceName":"nas"}`))
	req.RemoteAddr = "203.0.113.7:5555"
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if _, err := f.store.Get(context.Background(), "nas"); err != nil {
		t.Error("rejected request still deleted the service")
	}
}

func TestAdminRoutesEnforceHost(t *testing.T) {
	f := newFixture(t, func(d *deps.Deps) {
		d.AllowedHosts = []string{"dash.example.com"}
	})

	rec := f.do(http.MethodPost, "/api/refresh", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for wrong host", rec.Code)
	}
}

func TestAdminRateLimit(t *testing.T) {
	f := newFixture(t, func(d *deps.Deps) {
		d.AdminRateBurst = 2
		d.AdminRatePerMin = 1
	})

	for i := 0; i < 2; i++ {
		if rec := f.do(http.MethodPost, "/api/refresh", ""); rec.Code != http.StatusAccepted {
			t.Fatalf("request %d status = %d, want 202", i, rec.Code)
		}
	}
	rec := f.do(http.MethodPost, "/api/refresh", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name   string
		accept bool
		want   int
	}{
		{"triggered", true, http.StatusAccepted},
		{"already pending", false, http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(d *deps.Deps) {
				d.Refresher = &fakeRefresher{accept: tt.accept}
			})
			if rec := f.do(http.MethodPost, "/api/refresh", ""); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestOpsEndpoints(t *testing.T) {
	f := newFixture(t, nil)

	if rec := f.do(http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("readyz = %d", rec.Code)
	}

	rec := f.do(http.MethodGet, "/infra", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("infra = %d", rec.Code)
	}
	var infra struct {
		Status     string `json:"status"`
		Components map[string]struct {
			OK       bool `json:"ok"`
			Services *int `json:"services"`
		} `json:"components"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &infra); err != nil {
		t.Fatalf("decode infra: %v", err)
	}
	if infra.Status != "ok" {
		t.Errorf("infra status = %q, want ok", infra.Status)
	}
	if reg := infra.Components["registry"]; reg.Services == nil || *reg.Services != 3 {
		t.Errorf("registry component = %+v", reg)
	}

	f.do(http.MethodGet, "/api/services", "")
	rec = f.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `beacon_services{state="external"} 1`) {
		t.Errorf("metrics = %d, missing services gauge", rec.Code)
	}
}

func TestOpsEndpointsStoreDown(t *testing.T) {
	f := newFixture(t, nil)
	f.store.SetFailure(errors.New("connection refused"))

	if rec := f.do(http.MethodGet, "/readyz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz = %d, want 503", rec.Code)
	}

	rec := f.do(http.MethodGet, "/infra", "")
	if !strings.Contains(rec.Body.String(), `"status":"critical"`) {
		t.Errorf("infra = %s, want critical", rec.Body.String())
	}
}

func TestOpsEndpointsCIDR(t *testing.T) {
	f := newFixture(t, func(d *deps.Deps) {
		d.OpsCIDRS = []string{"127.0.0.1"}
	})
	if rec := f.do(http.MethodGet, "/healthz", ""); rec.Code != http.StatusForbidden {
		t.Errorf("healthz = %d, want 403", rec.Code)
	}
}
