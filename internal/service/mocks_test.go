package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kesrow/constable/internal/domain"
	"github.com/kesrow/constable/internal/repository"
)

// =============================================================================
// Mock User Repository
// =============================================================================

type mockUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*domain.User
	nextID int64

	createErr error
	getErr    error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*domain.User), nextID: 1}
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.users {
		if existing.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	user.ID = m.nextID
	m.nextID++
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, user := range m.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepo) SetActive(ctx context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.IsActive = active
	return nil
}

func (m *mockUserRepo) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	items := make([]*domain.User, 0, len(ids))
	for _, id := range ids {
		copied := *m.users[id]
		items = append(items, &copied)
	}
	return &repository.ListResult[domain.User]{
		Items:  items,
		Total:  int64(len(items)),
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

// =============================================================================
// Mock Token Repository
// =============================================================================

type mockTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.SessionToken

	createErr error
	getErr    error
}

func newMockTokenRepo() *mockTokenRepo {
	return &mockTokenRepo{tokens: make(map[string]*domain.SessionToken)}
}

func (m *mockTokenRepo) Create(ctx context.Context, token *domain.SessionToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.tokens[token.ID]; exists {
		return repository.ErrDuplicate
	}
	stored := *token
	m.tokens[token.ID] = &stored
	return nil
}

func (m *mockTokenRepo) GetByID(ctx context.Context, id string) (*domain.SessionToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	token, ok := m.tokens[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *token
	return &copied, nil
}

func (m *mockTokenRepo) SetRevoked(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok := m.tokens[id]
	if !ok {
		return repository.ErrNotFound
	}
	token.Revoked = true
	return nil
}

func (m *mockTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var deleted int64
	for id, token := range m.tokens {
		if token.Expired(now) {
			delete(m.tokens, id)
			deleted++
		}
	}
	return deleted, nil
}

// =============================================================================
// Mock Record Repository
// =============================================================================

type mockRecordRepo struct {
	records   []*domain.Record
	searchErr error
}

func (m *mockRecordRepo) Search(ctx context.Context, plan *domain.QueryPlan) ([]*domain.Record, int64, error) {
	if m.searchErr != nil {
		return nil, 0, m.searchErr
	}

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

type mockRecordWriter struct {
	mu        sync.Mutex
	inserted  []*domain.Record
	batches   int
	insertErr error
}

func (m *mockRecordWriter) InsertBatch(ctx context.Context, records []*domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, records...)
	m.batches++
	return nil
}

// =============================================================================
// Mock Cache
// =============================================================================

type mockCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deletes []string

	getErr error
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	value, ok := m.entries[key]
	if !ok {
		return nil, repository.ErrCacheMiss
	}
	return value, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	m.deletes = append(m.deletes, key)
	return nil
}

// =============================================================================
// Test Helpers
// =============================================================================

func testVocabulary() map[domain.Dimension][]string {
	return map[domain.Dimension][]string{
		domain.DimensionOffence: {"theft", "assault", "burglary", "fraud"},
		domain.DimensionArea:    {"north", "south", "east", "west"},
		domain.DimensionAge:     {"0-17", "18-34", "35-54", "55+"},
		domain.DimensionGender:  {"female", "male", "unknown"},
		domain.DimensionYear:    {"2019", "2020", "2021", "2022"},
	}
}

var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.TokenRepository = (*mockTokenRepo)(nil)
var _ repository.RecordRepository = (*mockRecordRepo)(nil)
var _ repository.RecordWriter = (*mockRecordWriter)(nil)
var _ repository.Cache = (*mockCache)(nil)
