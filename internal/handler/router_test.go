package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/kesrow/constable/internal/domain"
	"github.com/kesrow/constable/internal/repository"
	"github.com/kesrow/constable/internal/service"
	"github.com/kesrow/constable/internal/vocab"
)

// =============================================================================
// In-Memory Fixtures
// =============================================================================

type memUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*domain.User
	nextID int64
}

func (m *memUserRepo) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	user.ID = m.nextID
	m.nextID++
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *memUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUserRepo) SetActive(ctx context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsActive = active
	return nil
}

func (m *memUserRepo) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	return &repository.ListResult[domain.User]{}, nil
}

type memTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.SessionToken
}

func (m *memTokenRepo) Create(ctx context.Context, token *domain.SessionToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *token
	m.tokens[token.ID] = &stored
	return nil
}

func (m *memTokenRepo) GetByID(ctx context.Context, id string) (*domain.SessionToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *memTokenRepo) SetRevoked(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.Revoked = true
	return nil
}

func (m *memTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

type memRecordRepo struct {
	records []*domain.Record
}

func (m *memRecordRepo) Search(ctx context.Context, plan *domain.QueryPlan) ([]*domain.Record, int64, error) {
	matched := make([]*domain.Record, 0, len(m.records))
	for _, r := range m.records {
		if plan.Matches(r) {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := int64(len(matched))
	if plan.Offset >= len(matched) {
		return []*domain.Record{}, total, nil
	}
	matched = matched[plan.Offset:]
	if len(matched) > plan.Limit {
		matched = matched[:plan.Limit]
	}
	return matched, total, nil
}

type memHealth struct{}

func (memHealth) Ping(ctx context.Context) error { return nil }
func (memHealth) Close() error                   { return nil }

// =============================================================================
// Server Fixture
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	registry, err := vocab.New(map[domain.Dimension][]string{
		domain.DimensionOffence: {"theft", "assault", "burglary"},
		domain.DimensionArea:    {"north", "south"},
		domain.DimensionAge:     {"0-17", "18-34", "35-54"},
		domain.DimensionGender:  {"female", "male", "unknown"},
		domain.DimensionYear:    {"2020", "2021"},
	})
	if err != nil {
		t.Fatalf("failed to build vocabulary registry: %v", err)
	}

	users := &memUserRepo{users: make(map[int64]*domain.User), nextID: 1}
	tokens := &memTokenRepo{tokens: make(map[string]*domain.SessionToken)}
	records := &memRecordRepo{records: []*domain.Record{
		{ID: 1, Offence: "theft", Area: "north", Age: "18-34", Gender: "female", Year: 2020},
		{ID: 2, Offence: "theft", Area: "south", Age: "35-54", Gender: "male", Year: 2021},
		{ID: 3, Offence: "assault", Area: "north", Age: "18-34", Gender: "male", Year: 2020},
	}}

	logger := zerolog.Nop()
	userService := service.NewUserService(users, bcrypt.MinCost, logger)
	sessionService := service.NewSessionService(tokens, users, nil, time.Hour, logger)
	searchService := service.NewSearchService(records, registry, 25, 100, logger)

	router := NewRouter(RouterConfig{
		AuthHandler:   NewAuthHandler(userService, sessionService, nil, logger),
		SearchHandler: NewSearchHandler(searchService, nil, logger),
		VocabHandler:  NewVocabHandler(registry),
		Sessions:      sessionService,
		Health:        memHealth{},
		Logger:        logger,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

func registerAndLogin(t *testing.T, server *httptest.Server) string {
	t.Helper()

	resp := postJSON(t, server.URL+"/register", map[string]string{
		"username": "alice",
		"password": "correct-horse",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", resp.StatusCode)
	}

	resp = postJSON(t, server.URL+"/login", map[string]string{
		"username": "alice",
		"password": "correct-horse",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	var login struct {
		Token     string `json:"token"`
		TokenType string `json:"token_type"`
	}
	decodeBody(t, resp, &login)
	if login.Token == "" || login.TokenType != "Bearer" {
		t.Fatalf("login response = %+v, want bearer token", login)
	}
	return login.Token
}

func authedGet(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	return resp
}

// =============================================================================
// Tests
// =============================================================================

func TestRouter_RegisterValidation(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/register", map[string]string{
		"username": "ab",
		"password": "correct-horse",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("register status = %d, want 400", resp.StatusCode)
	}
}

func TestRouter_RegisterDuplicate(t *testing.T) {
	server := newTestServer(t)
	registerAndLogin(t, server)

	resp := postJSON(t, server.URL+"/register", map[string]string{
		"username": "ALICE",
		"password": "other-password",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("register status = %d, want 409", resp.StatusCode)
	}

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, resp, &body)
	if body.Error.Code != "duplicate_username" {
		t.Errorf("error code = %q, want duplicate_username", body.Error.Code)
	}
}

func TestRouter_LoginWrongPassword(t *testing.T) {
	server := newTestServer(t)
	registerAndLogin(t, server)

	resp := postJSON(t, server.URL+"/login", map[string]string{
		"username": "alice",
		"password": "wrong-password",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("login status = %d, want 401", resp.StatusCode)
	}
}

func TestRouter_SearchRequiresAuth(t *testing.T) {
	server := newTestServer(t)

	resp := authedGet(t, server.URL+"/search", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("search status = %d, want 401", resp.StatusCode)
	}
}

func TestRouter_Search(t *testing.T) {
	server := newTestServer(t)
	token := registerAndLogin(t, server)

	resp := authedGet(t, server.URL+"/search?offence=theft&year=2020,2021", token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d, want 200", resp.StatusCode)
	}

	var body searchResponse
	decodeBody(t, resp, &body)
	if body.Total != 2 || len(body.Records) != 2 {
		t.Fatalf("search returned %d/%d records, want 2/2", len(body.Records), body.Total)
	}
	if body.Records[0].ID != 1 || body.Records[1].ID != 2 {
		t.Errorf("search returned IDs %d,%d, want 1,2", body.Records[0].ID, body.Records[1].ID)
	}
}

func TestRouter_SearchRejectsBadFilters(t *testing.T) {
	server := newTestServer(t)
	token := registerAndLogin(t, server)

	tests := []struct {
		name     string
		query    string
		wantCode string
	}{
		{"unknown dimension", "?colour=red", "unknown_dimension"},
		{"invalid value", "?offence=arson", "invalid_filter_value"},
		{"negative offset", "?offset=-1", "pagination_out_of_range"},
		{"non-numeric limit", "?limit=ten", "pagination_out_of_range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := authedGet(t, server.URL+"/search"+tt.query, token)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("search status = %d, want 400", resp.StatusCode)
			}

			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			decodeBody(t, resp, &body)
			if body.Error.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", body.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestRouter_LogoutInvalidatesToken(t *testing.T) {
	server := newTestServer(t)
	token := registerAndLogin(t, server)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/logout", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /logout failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d, want 200", resp.StatusCode)
	}

	resp = authedGet(t, server.URL+"/search", token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("search after logout status = %d, want 401", resp.StatusCode)
	}
}

func TestRouter_VocabularyListing(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/offences")
	if err != nil {
		t.Fatalf("GET /offences failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("offences status = %d, want 200", resp.StatusCode)
	}

	var body vocabResponse
	decodeBody(t, resp, &body)
	if body.Dimension != "offence" || len(body.Values) != 3 {
		t.Errorf("offences response = %+v, want 3 offence values", body)
	}
}

func TestRouter_Health(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", resp.StatusCode)
	}
}
