package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karanb04/18815-GoatTeam/internal/app"
	"github.com/karanb04/18815-GoatTeam/internal/clock"
	"github.com/karanb04/18815-GoatTeam/internal/domain"
	"github.com/karanb04/18815-GoatTeam/internal/metrics"
	"github.com/karanb04/18815-GoatTeam/internal/security"
	"github.com/karanb04/18815-GoatTeam/internal/storage/memory"
)

type testServer struct {
	*httptest.Server
	clock *clock.Manual
}

func newTestServer(t *testing.T, adminSecret string) *testServer {
	t.Helper()
	ctx := context.Background()
	clk := clock.NewManual(time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC))
	store := memory.NewStore()

	ledger := app.NewLedgerService(store, clk)
	_, err := ledger.SeedPools(ctx, []domain.PoolSpec{{Name: "HWSet1", Capacity: 100}, {Name: "HWSet2", Capacity: 100}})
	require.NoError(t, err)

	projects := app.NewProjectService(store, store, clk)
	hasher := security.NewArgon2Hasher(security.Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1})
	users := app.NewUserService(store, hasher, clk)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	coord := app.NewCoordinator(ledger, projects, clk, app.WithOutcomeRecorder(m))

	handler, err := NewRouter(RouterConfig{
		Transfers:      coord,
		Pools:          ledger,
		Projects:       projects,
		Users:          users,
		Storage:        store,
		Log:            zerolog.Nop(),
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSOrigins:    []string{"http://localhost:3000"},
		AdminSecret:    adminSecret,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, clock: clk}
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func (s *testServer) available(t *testing.T, pool string) float64 {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/get_hw_info", `{"hwSetName":"`+pool+`"}`)
	require.Equal(t, http.StatusOK, status)
	return body["availability"].(float64)
}

func (s *testServer) holdings(t *testing.T, project string) map[string]any {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/get_project_info", `{"projectId":"`+project+`"}`)
	require.Equal(t, http.StatusOK, status)
	return body["hwSets"].(map[string]any)
}

func signUpWithProject(t *testing.T, s *testServer, user, project string) {
	t.Helper()
	status, _ := s.do(t, http.MethodPost, "/add_user", `{"username":"`+user+`","password":"pw-`+user+`"}`)
	require.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodPost, "/create_project",
		`{"projectName":"`+project+` name","projectId":"`+project+`","description":"d","username":"`+user+`"}`)
	require.Equal(t, http.StatusOK, status)
}

func TestRouter_CheckoutScenario(t *testing.T) {
	s := newTestServer(t, "")
	signUpWithProject(t, s, "alice", "p1")
	signUpWithProject(t, s, "bob", "p2")

	status, _ := s.do(t, http.MethodPost, "/check_out", `{"projectId":"p1","hwSetName":"HWSet1","qty":30,"userId":"alice"}`)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 70, s.available(t, "HWSet1"))
	assert.EqualValues(t, 30, s.holdings(t, "p1")["HWSet1"])
	s.clock.Advance(time.Minute)

	status, body := s.do(t, http.MethodPost, "/check_out", `{"projectId":"p2","hwSetName":"HWSet1","qty":80,"userId":"bob"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, codeInsufficientCapacity, body["code"])
	assert.EqualValues(t, 70, s.available(t, "HWSet1"))

	status, _ = s.do(t, http.MethodPost, "/check_in", `{"projectId":"p1","hwSetName":"HWSet1","qty":10,"username":"alice"}`)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 80, s.available(t, "HWSet1"))
	assert.EqualValues(t, 20, s.holdings(t, "p1")["HWSet1"])
	s.clock.Advance(time.Minute)

	status, body = s.do(t, http.MethodPost, "/check_in", `{"projectId":"p1","hwSetName":"HWSet1","qty":21,"userId":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, codeExceedsHeld, body["code"])

	status, _ = s.do(t, http.MethodPost, "/check_in", `{"projectId":"p1","hwSetName":"HWSet1","qty":20,"userId":"alice"}`)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 100, s.available(t, "HWSet1"))
	assert.NotContains(t, s.holdings(t, "p1"), "HWSet1")

	status, body = s.do(t, http.MethodPost, "/get_project_history", `{"projectId":"p1"}`)
	require.Equal(t, http.StatusOK, status)
	history := body["history"].([]any)
	require.Len(t, history, 3)
	newest := history[0].(map[string]any)
	assert.Equal(t, "checkin", newest["action"])
	assert.EqualValues(t, 20, newest["quantity"])
	assert.Equal(t, "checkout", history[2].(map[string]any)["action"])

	status, body = s.do(t, http.MethodGet, "/api/inventory", "")
	require.Equal(t, http.StatusOK, status)
	inventory := body["inventory"].(map[string]any)
	assert.Len(t, inventory["HWSet1"].(map[string]any)["checkout_history"], 3)
	assert.Contains(t, inventory, "HWSet2")
}

func TestRouter_MembershipRequired(t *testing.T) {
	s := newTestServer(t, "")
	signUpWithProject(t, s, "alice", "p1")
	status, _ := s.do(t, http.MethodPost, "/add_user", `{"username":"carol","password":"pw"}`)
	require.Equal(t, http.StatusOK, status)

	status, body := s.do(t, http.MethodPost, "/check_out", `{"projectId":"p1","hwSetName":"HWSet1","qty":1,"userId":"carol"}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, codeNotMember, body["code"])

	status, _ = s.do(t, http.MethodPost, "/join_project", `{"username":"carol","projectId":"p1"}`)
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodPost, "/check_out", `{"projectId":"p1","hwSetName":"HWSet1","qty":1,"userId":"carol"}`)
	assert.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodGet, "/main?username=carol", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"p1"}, body["projects"])

	status, body = s.do(t, http.MethodPost, "/get_user_projects_list", `{"username":"carol"}`)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["projects"], 1)
	project := body["projects"].([]any)[0].(map[string]any)
	assert.Equal(t, []any{"alice", "carol"}, project["users"])
	assert.Equal(t, "alice", project["created_by"])
}

func TestRouter_UsersAndProjects(t *testing.T) {
	s := newTestServer(t, "")
	signUpWithProject(t, s, "alice", "p1")

	status, body := s.do(t, http.MethodPost, "/add_user", `{"username":"alice","password":"again"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, codeUserAlreadyExists, body["code"])

	status, _ = s.do(t, http.MethodPost, "/add_user", `{"username":"","password":"pw"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodPost, "/login", `{"username":"alice","password":"pw-alice"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"username": "alice"}, body["user"])

	status, body = s.do(t, http.MethodPost, "/login", `{"username":"alice","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, codeInvalidCredentials, body["code"])

	status, _ = s.do(t, http.MethodPost, "/login", `{"username":"ghost","password":"pw"}`)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = s.do(t, http.MethodPost, "/create_project", `{"projectName":"x","projectId":"p1","description":"","username":"alice"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, codeProjectAlreadyExists, body["code"])

	status, _ = s.do(t, http.MethodPost, "/join_project", `{"username":"alice","projectId":"nope"}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodPost, "/get_project_info", `{"projectId":"nope"}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodGet, "/main?username=ghost", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = s.do(t, http.MethodPost, "/get_all_hw_names", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"HWSet1", "HWSet2"}, body["hardware_names"])
}

func TestRouter_CreateHardwareSetAdminGuard(t *testing.T) {
	s := newTestServer(t, "letmein")

	status, _ := s.do(t, http.MethodPost, "/create_hardware_set", `{"hwSetName":"GPU","capacity":4}`)
	assert.Equal(t, http.StatusUnauthorized, status)

	req, err := http.NewRequest(http.MethodPost, s.URL+"/create_hardware_set", strings.NewReader(`{"hwSetName":"GPU","capacity":4}`))
	require.NoError(t, err)
	req.Header.Set(adminSecretHeader, "letmein")
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	status, body := s.do(t, http.MethodGet, "/api/availability", "")
	require.Equal(t, http.StatusOK, status)
	availability := body["availability"].(map[string]any)
	assert.Equal(t, map[string]any{"capacity": 4.0, "availability": 4.0, "in_use": 0.0}, availability["GPU"])
}

func TestRouter_ConcurrentCheckouts(t *testing.T) {
	s := newTestServer(t, "")
	signUpWithProject(t, s, "alice", "p1")
	signUpWithProject(t, s, "bob", "p2")

	const attempts = 101
	var wg sync.WaitGroup
	statuses := make([]int, attempts)
	for i := 0; i < attempts; i++ {
		project, user := "p1", "alice"
		if i%2 == 0 {
			project, user = "p2", "bob"
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i], _ = s.do(t, http.MethodPost, "/check_out",
				`{"projectId":"`+project+`","hwSetName":"HWSet1","qty":1,"userId":"`+user+`"}`)
		}(i)
	}
	wg.Wait()

	var ok, denied int
	for _, st := range statuses {
		switch st {
		case http.StatusOK:
			ok++
		case http.StatusBadRequest:
			denied++
		}
	}
	assert.Equal(t, 100, ok)
	assert.Equal(t, 1, denied)
	assert.EqualValues(t, 0, s.available(t, "HWSet1"))

	p1 := s.holdings(t, "p1")["HWSet1"].(float64)
	p2 := s.holdings(t, "p2")["HWSet1"].(float64)
	assert.EqualValues(t, 100, p1+p2)
}

func TestRouter_HealthMetricsAndUnknownRoutes(t *testing.T) {
	s := newTestServer(t, "")

	status, body := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	_, _ = s.do(t, http.MethodPost, "/check_out", `{"projectId":"nope","hwSetName":"HWSet1","qty":1,"userId":"x"}`)

	resp, err := s.Client().Get(s.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `hwledger_ledger_operations_total{op="check_out",outcome="not_found"} 1`)
	assert.Contains(t, buf.String(), "hwledger_http_request_duration_seconds")

	status, body = s.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, codeNotFound, body["code"])

	status, body = s.do(t, http.MethodGet, "/check_out", "")
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.Equal(t, codeMethodNotAllowed, body["code"])
}
