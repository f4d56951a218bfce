package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/cohort/pkg/auth"
	"github.com/platinummonkey/cohort/pkg/observability"
	"github.com/platinummonkey/cohort/pkg/rbac"
	"github.com/platinummonkey/cohort/pkg/storage"
)

// memStore is an in-memory storage.Store. Cascades mirror the postgres
// adapter: deleting an organization removes its studies, users, and
// grants; cross-organization grant pairs report as missing.
type memStore struct {
	mu      sync.Mutex
	nextID  int
	orgs    map[string]*auth.Organization
	studies map[string]*auth.Study
	users   map[string]*auth.User
	grants  map[string]*auth.UserStudy
}

func newMemStore() *memStore {
	return &memStore{
		orgs:    make(map[string]*auth.Organization),
		studies: make(map[string]*auth.Study),
		users:   make(map[string]*auth.User),
		grants:  make(map[string]*auth.UserStudy),
	}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func grantPair(userID, studyID string) string { return userID + "\x00" + studyID }

func (m *memStore) CreateOrganization(ctx context.Context, org *auth.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.orgs {
		if existing.Name == org.Name {
			return storage.ErrDuplicateKey
		}
	}
	if org.ID == "" {
		org.ID = m.id("org")
	}
	org.CreatedAt = time.Now().UTC()
	org.UpdatedAt = org.CreatedAt
	m.orgs[org.ID] = org
	return nil
}

func (m *memStore) GetOrganization(ctx context.Context, id string) (*auth.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.orgs[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	copied := *org
	return &copied, nil
}

func (m *memStore) GetOrganizationByName(ctx context.Context, name string) (*auth.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, org := range m.orgs {
		if org.Name == name {
			copied := *org
			return &copied, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memStore) ListOrganizations(ctx context.Context) ([]*auth.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orgs := make([]*auth.Organization, 0, len(m.orgs))
	for _, org := range m.orgs {
		copied := *org
		orgs = append(orgs, &copied)
	}
	return orgs, nil
}

func (m *memStore) UpdateOrganization(ctx context.Context, org *auth.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[org.ID]; !ok {
		return auth.ErrNotFound
	}
	org.UpdatedAt = time.Now().UTC()
	copied := *org
	m.orgs[org.ID] = &copied
	return nil
}

func (m *memStore) DeleteOrganization(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[id]; !ok {
		return auth.ErrNotFound
	}
	delete(m.orgs, id)
	for studyID, study := range m.studies {
		if study.OrganizationID == id {
			delete(m.studies, studyID)
			m.dropGrantsLocked(func(g *auth.UserStudy) bool { return g.StudyID == studyID })
		}
	}
	for userID, user := range m.users {
		if user.OrganizationID == id {
			delete(m.users, userID)
			m.dropGrantsLocked(func(g *auth.UserStudy) bool { return g.UserID == userID })
		}
	}
	return nil
}

func (m *memStore) dropGrantsLocked(match func(*auth.UserStudy) bool) {
	for key, grant := range m.grants {
		if match(grant) {
			delete(m.grants, key)
		}
	}
}

func (m *memStore) CreateStudy(ctx context.Context, study *auth.Study) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[study.OrganizationID]; !ok {
		return storage.ErrReferentialIntegrity
	}
	for _, existing := range m.studies {
		if existing.StudyCode == study.StudyCode {
			return storage.ErrDuplicateKey
		}
	}
	if study.ID == "" {
		study.ID = m.id("study")
	}
	study.CreatedAt = time.Now().UTC()
	study.UpdatedAt = study.CreatedAt
	m.studies[study.ID] = study
	return nil
}

func (m *memStore) GetStudy(ctx context.Context, id string) (*auth.Study, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	study, ok := m.studies[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	copied := *study
	return &copied, nil
}

func (m *memStore) GetStudyByCode(ctx context.Context, code string) (*auth.Study, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, study := range m.studies {
		if study.StudyCode == code {
			copied := *study
			return &copied, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memStore) ListStudies(ctx context.Context, organizationID string) ([]*auth.Study, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	studies := make([]*auth.Study, 0)
	for _, study := range m.studies {
		if study.OrganizationID == organizationID {
			copied := *study
			studies = append(studies, &copied)
		}
	}
	return studies, nil
}

func (m *memStore) UpdateStudy(ctx context.Context, study *auth.Study) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.studies[study.ID]; !ok {
		return auth.ErrNotFound
	}
	study.UpdatedAt = time.Now().UTC()
	copied := *study
	m.studies[study.ID] = &copied
	return nil
}

func (m *memStore) DeleteStudy(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.studies[id]; !ok {
		return auth.ErrNotFound
	}
	delete(m.studies, id)
	m.dropGrantsLocked(func(g *auth.UserStudy) bool { return g.StudyID == id })
	return nil
}

func (m *memStore) CreateUser(ctx context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[user.OrganizationID]; !ok {
		return storage.ErrReferentialIntegrity
	}
	for _, existing := range m.users {
		if existing.Username == user.Username {
			return storage.ErrDuplicateKey
		}
	}
	if user.ID == "" {
		user.ID = m.id("user")
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return nil
}

func (m *memStore) GetUser(ctx context.Context, id string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *memStore) GetUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memStore) ListUsers(ctx context.Context, organizationID string) ([]*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]*auth.User, 0)
	for _, user := range m.users {
		if user.OrganizationID == organizationID {
			copied := *user
			users = append(users, &copied)
		}
	}
	return users, nil
}

func (m *memStore) UpdateUser(ctx context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return auth.ErrNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memStore) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

func (m *memStore) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	user.LastLoginAt = &at
	return nil
}

func (m *memStore) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return auth.ErrNotFound
	}
	delete(m.users, id)
	m.dropGrantsLocked(func(g *auth.UserStudy) bool { return g.UserID == id })
	return nil
}

func (m *memStore) AddUserToStudy(ctx context.Context, userID, studyID string) (*auth.UserStudy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return nil, auth.ErrNotFound
	}
	study, ok := m.studies[studyID]
	if !ok {
		return nil, auth.ErrNotFound
	}
	if user.OrganizationID != study.OrganizationID {
		return nil, auth.ErrNotFound
	}
	if _, exists := m.grants[grantPair(userID, studyID)]; exists {
		return nil, storage.ErrDuplicateKey
	}
	grant := &auth.UserStudy{
		ID:        m.id("grant"),
		UserID:    userID,
		StudyID:   studyID,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	m.grants[grantPair(userID, studyID)] = grant
	return grant, nil
}

func (m *memStore) RemoveUserFromStudy(ctx context.Context, userID, studyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.grants[grantPair(userID, studyID)]; !ok {
		return auth.ErrNotFound
	}
	delete(m.grants, grantPair(userID, studyID))
	return nil
}

func (m *memStore) HasStudyGrant(ctx context.Context, userID, studyID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.grants[grantPair(userID, studyID)]
	return ok, nil
}

func (m *memStore) ListStudyGrants(ctx context.Context, userID string) ([]*auth.UserStudy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	grants := make([]*auth.UserStudy, 0)
	for _, grant := range m.grants {
		if grant.UserID == userID {
			copied := *grant
			grants = append(grants, &copied)
		}
	}
	return grants, nil
}

func (m *memStore) HealthCheck(ctx context.Context) error { return nil }
func (m *memStore) Close() error                          { return nil }

// memCache is an in-memory storage.Cache for session records.
type memCache struct {
	mu       sync.Mutex
	values   map[string][]byte
	counters map[string]int64
}

func newMemCache() *memCache {
	return &memCache{
		values:   make(map[string][]byte),
		counters: make(map[string]int64),
	}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.values[key]
	if !ok {
		return nil, nil
	}
	return value, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

func (c *memCache) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	return c.counters[key], nil
}

func (c *memCache) GetInt(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[key], nil
}

func (c *memCache) Ping(ctx context.Context) error { return nil }
func (c *memCache) Close() error                   { return nil }

// testEnv wires a server over in-memory backends with a seeded tenancy
// graph: two organizations, an admin and a member in each, a platform
// operator, and one study per organization.
type testEnv struct {
	server *Server
	store  *memStore
	hasher *auth.Hasher

	acme      *auth.Organization
	globex    *auth.Organization
	root      *auth.User
	acmeAdmin *auth.User
	alice     *auth.User
	bob       *auth.User
	acmeStudy *auth.Study
	globexSty *auth.Study
}

const testPassword = "hunter2-hunter2"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMemStore()
	hasher := auth.NewHasher(auth.Argon2idParams{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}, 4)
	sessions := auth.NewSessionManager(newMemCache(), auth.SessionConfig{TTL: time.Hour})
	service := auth.NewService(store, hasher, sessions)
	engine := rbac.NewEngine(store)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	env := &testEnv{
		store:  store,
		hasher: hasher,
		server: NewServer(store, service, engine, logger, metrics),
	}

	ctx := context.Background()
	env.acme = &auth.Organization{Name: "acme", IsActive: true}
	require.NoError(t, store.CreateOrganization(ctx, env.acme))
	env.globex = &auth.Organization{Name: "globex", IsActive: true}
	require.NoError(t, store.CreateOrganization(ctx, env.globex))

	env.root = env.seedUser(t, "root", env.acme.ID, auth.AccessLevelSystemAdmin)
	env.acmeAdmin = env.seedUser(t, "acme-admin", env.acme.ID, auth.AccessLevelOrgAdmin)
	env.alice = env.seedUser(t, "alice", env.acme.ID, auth.AccessLevelUser)
	env.bob = env.seedUser(t, "bob", env.globex.ID, auth.AccessLevelUser)

	env.acmeStudy = &auth.Study{StudyCode: "ACME-001", Name: "Acme Pilot", OrganizationID: env.acme.ID}
	require.NoError(t, store.CreateStudy(ctx, env.acmeStudy))
	env.globexSty = &auth.Study{StudyCode: "GLOBEX-001", Name: "Globex Pilot", OrganizationID: env.globex.ID}
	require.NoError(t, store.CreateStudy(ctx, env.globexSty))

	return env
}

func (env *testEnv) seedUser(t *testing.T, username, orgID string, level auth.AccessLevel) *auth.User {
	t.Helper()
	hash, err := env.hasher.Hash(context.Background(), testPassword)
	require.NoError(t, err)
	user := &auth.User{
		Username:       username,
		PasswordHash:   hash,
		OrganizationID: orgID,
		AccessLevel:    level,
		IsActive:       true,
	}
	require.NoError(t, env.store.CreateUser(context.Background(), user))
	return user
}

func (env *testEnv) grant(t *testing.T, userID, studyID string) {
	t.Helper()
	_, err := env.store.AddUserToStudy(context.Background(), userID, studyID)
	require.NoError(t, err)
}

// do issues a request against the server and returns the recorder.
func (env *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	env.server.ServeHTTP(w, req)
	return w
}

// login authenticates username with the shared test password.
func (env *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/v1/login", "", LoginRequest{
		Username: username,
		Password: testPassword,
	})
	require.Equal(t, http.StatusOK, w.Code, "login failed for %s: %s", username, w.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest))
}
