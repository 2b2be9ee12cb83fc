package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mononest/backend/auth"
	"github.com/mononest/backend/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingStore records Merge and Insert calls made through it
type countingStore struct {
	*db.MemoryStore
	mu      sync.Mutex
	merges  int
	inserts int
}

func (s *countingStore) Collection(name string) db.Collection {
	return &countingCollection{Collection: s.MemoryStore.Collection(name), store: s}
}

type countingCollection struct {
	db.Collection
	store *countingStore
}

func (c *countingCollection) Merge(ctx context.Context, field string, value interface{}, patch db.Document) (*db.MergeResult, error) {
	c.store.mu.Lock()
	c.store.merges++
	c.store.mu.Unlock()
	return c.Collection.Merge(ctx, field, value, patch)
}

func (c *countingCollection) Insert(ctx context.Context, doc db.Document) (*db.InsertResult, error) {
	c.store.mu.Lock()
	c.store.inserts++
	c.store.mu.Unlock()
	return c.Collection.Insert(ctx, doc)
}

type spyPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *spyPublisher) Publish(ctx context.Context, topic string, payload map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *spyPublisher) Close() {}

type fixture struct {
	handler   http.Handler
	auth      *auth.Auth
	store     *countingStore
	publisher *spyPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	store := &countingStore{MemoryStore: db.NewMemory()}

	a, err := auth.New(auth.Options{Logger: logger, JWTSigningKey: "0123456789abcdef-test"})
	require.NoError(t, err)

	manager, err := NewManager(context.Background(), logger, store)
	require.NoError(t, err)

	publisher := &spyPublisher{}
	svc, err := NewService(Options{
		Auth:        a,
		UserManager: manager,
		Publisher:   publisher,
		Logger:      logger,
	})
	require.NoError(t, err)

	return &fixture{handler: svc.Router(), auth: a, store: store, publisher: publisher}
}

func (f *fixture) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) register(t *testing.T, body string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/", body, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tr TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tr))
	require.NotEmpty(t, tr.Token)
	return tr.Token
}

func TestRegister_IsIdempotent(t *testing.T) {
	f := newFixture(t)

	first := f.register(t, `{"email":"a@b.com","name":"A"}`)
	second := f.register(t, `{"email":"A@B.com ","name":"Other"}`)

	for _, tok := range []string{first, second} {
		claims, err := f.auth.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", claims.Email)
	}

	rec := f.do(t, http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var users []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "a@b.com", users[0]["email"])
	assert.Equal(t, "A", users[0]["name"])

	assert.Equal(t, 1, f.store.inserts)
	assert.Equal(t, []string{"user.registered"}, f.publisher.topics)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{
		`{"name":"A"}`,
		`{"email":""}`,
		`{"email":"not-an-email"}`,
		`{"email":42}`,
		`null`,
		`[]`,
		`{`,
	} {
		rec := f.do(t, http.MethodPost, "/", body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Equal(t, 0, f.store.inserts)
}

func TestGetUser(t *testing.T) {
	f := newFixture(t)
	f.register(t, `{"email":"a@b.com","name":"A"}`)

	rec := f.do(t, http.MethodGet, "/a@b.com", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var u map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, "A", u["name"])

	rec = f.do(t, http.MethodGet, "/a%40b.com", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"A"`)

	rec = f.do(t, http.MethodGet, "/nobody@b.com", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `null`, rec.Body.String())
}

func TestUpdateUser_RequiresToken(t *testing.T) {
	f := newFixture(t)
	f.register(t, `{"email":"a@b.com","name":"A"}`)

	rec := f.do(t, http.MethodPatch, "/a@b.com", `{"name":"B"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPatch, "/a@b.com", `{"name":"B"}`, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, 0, f.store.merges)
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	token := f.register(t, `{"email":"a@b.com","name":"A","city":"Riga"}`)

	rec := f.do(t, http.MethodPatch, "/a@b.com", `{"name":"B"}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"matchedCount":1,"modifiedCount":1}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/a@b.com", "", "")
	var u map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, "B", u["name"])
	assert.Equal(t, "Riga", u["city"])
}

func TestUpdateUser_Rejections(t *testing.T) {
	f := newFixture(t)
	token := f.register(t, `{"email":"a@b.com"}`)
	other := f.register(t, `{"email":"c@d.com"}`)

	tests := []struct {
		name   string
		path   string
		body   string
		token  string
		status int
	}{
		{"someone else's token", "/a@b.com", `{"name":"B"}`, other, http.StatusForbidden},
		{"empty patch", "/a@b.com", `{}`, token, http.StatusBadRequest},
		{"change email", "/a@b.com", `{"email":"z@z.com"}`, token, http.StatusBadRequest},
		{"change id", "/a@b.com", `{"_id":"x"}`, token, http.StatusBadRequest},
		{"bad json", "/a@b.com", `{`, token, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPatch, tt.path, tt.body, tt.token)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
	assert.Equal(t, 0, f.store.merges)
}

func TestUpdateUser_NeverCreates(t *testing.T) {
	f := newFixture(t)
	token, err := f.auth.Issue("ghost@b.com")
	require.NoError(t, err)

	rec := f.do(t, http.MethodPatch, "/ghost@b.com", `{"name":"Ghost"}`, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/", "", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}
