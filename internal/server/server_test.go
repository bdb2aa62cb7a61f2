package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"trackline/internal/app"
	"trackline/internal/config"
	"trackline/internal/db"
	"trackline/internal/domain"
	"trackline/internal/migrate"
	"trackline/internal/repo"
	"trackline/internal/workflow"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	Repo   repo.Repo
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("org-1")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.Repo{DB: conn}
	if err := app.EnsureOrganization(context.Background(), r, cfg); err != nil {
		t.Fatalf("provision org: %v", err)
	}
	e := workflow.New(conn, cfg)
	srvCtx, srvCancel := context.WithCancel(context.Background())
	handler, err := New(srvCtx, Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{JWTSecret: testJWTSecret}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Repo:   r,
		client: &http.Client{},
		close: func() {
			srvCancel()
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":    userID,
		"org_id": "org-1",
		"exp":    time.Now().Add(time.Hour).Unix(),
		"iat":    time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func authHeaders(t *testing.T, userID string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + signToken(t, userID)}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestHealthNoAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestUnauthorizedWithoutCredentials(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/orgs/org-1/projects", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("expected unauthorized code, got %q", envelope.Error.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	secret := uuid.New().String()
	if err := srv.Repo.InsertAPIKey(context.Background(), nil, domain.APIKey{
		ID:      uuid.New().String(),
		UserID:  "robot",
		Name:    "ci",
		KeyHash: repo.HashAPIKey(secret),
	}); err != nil {
		t.Fatalf("insert api key: %v", err)
	}
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/orgs/org-1/projects", nil,
		map[string]string{"X-Api-Key": secret})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("api key auth status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/orgs/org-1/projects", nil,
		map[string]string{"X-Api-Key": "wrong"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad key, got %d: %s", res.StatusCode, string(data))
	}
}

func TestIssueTransitionFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	headers := authHeaders(t, "alice")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/orgs/org-1/projects", map[string]any{
		"id":   "web",
		"name": "Web",
	}, headers)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/orgs/org-1/issues", map[string]any{
		"project_id": "web",
		"summary":    "Ship feature",
		"type":       "feature",
	}, headers)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create issue status %d: %s", res.StatusCode, string(data))
	}
	var created IssueResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal issue: %v", err)
	}
	if created.StatusID != "status-todo" {
		t.Fatalf("expected initial status-todo, got %s", created.StatusID)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/orgs/org-1/issues/"+created.ID+"/transitions", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list transitions status %d: %s", res.StatusCode, string(data))
	}
	var available []AvailableTransitionResponse
	if err := json.Unmarshal(data, &available); err != nil {
		t.Fatalf("unmarshal transitions: %v", err)
	}
	if len(available) != 1 || available[0].ID != "t-start" {
		t.Fatalf("unexpected transitions: %+v", available)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/orgs/org-1/issues/"+created.ID+"/transitions", map[string]any{
		"transition_id": "t-start",
	}, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("transition status %d: %s", res.StatusCode, string(data))
	}
	var moved IssueResponse
	if err := json.Unmarshal(data, &moved); err != nil {
		t.Fatalf("unmarshal moved issue: %v", err)
	}
	if moved.StatusID != "status-ip" {
		t.Fatalf("expected status-ip, got %s", moved.StatusID)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/orgs/org-1/issues/"+created.ID+"/history", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history status %d: %s", res.StatusCode, string(data))
	}
	var history []HistoryEntryResponse
	if err := json.Unmarshal(data, &history); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(history) != 1 || history[0].OldValue != "status-todo" || history[0].NewValue != "status-ip" {
		t.Fatalf("unexpected history: %+v", history)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/orgs/org-1/audit", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("audit status %d: %s", res.StatusCode, string(data))
	}
	var audit []AuditEntryResponse
	if err := json.Unmarshal(data, &audit); err != nil {
		t.Fatalf("unmarshal audit: %v", err)
	}
	if len(audit) != 1 || audit[0].Action != "TRANSITIONED" {
		t.Fatalf("unexpected audit entries: %+v", audit)
	}
}

func TestBlockedTransitionEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	headers := authHeaders(t, "alice")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/orgs/org-1/projects", map[string]any{
		"id":   "web",
		"name": "Web",
	}, headers)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/orgs/org-1/issues", map[string]any{
		"project_id": "web",
		"summary":    "Blocked",
	}, headers)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create issue: %d %s", res.StatusCode, string(data))
	}
	var created IssueResponse
	_ = json.Unmarshal(data, &created)

	// t-review requires status-ip; the issue sits in status-todo
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/orgs/org-1/issues/"+created.ID+"/transitions", map[string]any{
		"transition_id": "t-review",
	}, headers)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v (%s)", err, string(data))
	}
	if envelope.Error.Code != workflow.CodeTransitionBlocked {
		t.Fatalf("expected %s, got %q", workflow.CodeTransitionBlocked, envelope.Error.Code)
	}
	if envelope.Error.Details["expectedStatusId"] != "status-ip" {
		t.Fatalf("unexpected details: %+v", envelope.Error.Details)
	}
}

func TestUnknownTransitionNotFound(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	headers := authHeaders(t, "alice")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/orgs/org-1/projects", map[string]any{
		"id":   "web",
		"name": "Web",
	}, headers)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/orgs/org-1/issues", map[string]any{
		"project_id": "web",
		"summary":    "Missing edge",
	}, headers)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create issue: %d %s", res.StatusCode, string(data))
	}
	var created IssueResponse
	_ = json.Unmarshal(data, &created)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/orgs/org-1/issues/"+created.ID+"/transitions", map[string]any{
		"transition_id": "t-ghost",
	}, headers)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
}

func TestResolveProjectWorkflow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	headers := authHeaders(t, "alice")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/orgs/org-1/projects", map[string]any{
		"id":   "web",
		"name": "Web",
	}, headers)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/orgs/org-1/projects/web/workflow", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("resolve workflow: %d %s", res.StatusCode, string(data))
	}
	var wf WorkflowResponse
	if err := json.Unmarshal(data, &wf); err != nil {
		t.Fatalf("unmarshal workflow: %v", err)
	}
	if !wf.IsDefault {
		t.Fatalf("expected default workflow, got %+v", wf)
	}
	if len(wf.Transitions) != 5 {
		t.Fatalf("expected 5 transitions, got %d", len(wf.Transitions))
	}
}
