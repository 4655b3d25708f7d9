package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techshop/auth"
	"techshop/ent"
	"techshop/notifier"
)

type testEnv struct {
	t     *testing.T
	srv   *Server
	store *fakeStore
	hub   *notifier.Hub
	token string
	media string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := newFakeStore()
	a := auth.New("test-secret", time.Hour, "admin", "pass")
	hub := notifier.New(16)
	media := t.TempDir()

	srv := New(st, a, hub, Options{
		PageSize:      12,
		AdminPageSize: 20,
		MediaRoot:     media,
		MediaURL:      "/media/",
		StaticURL:     "/static/",
	})

	token, err := a.Issue("admin")
	require.NoError(t, err)

	return &testEnv{t: t, srv: srv, store: st, hub: hub, token: token, media: media}
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) json(t *testing.T) map[string]interface{} {
	t.Helper()

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(r.body, &m), string(r.body))
	return m
}

func (e *testEnv) request(method, target, token, contentType string, body io.Reader) response {
	e.t.Helper()

	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.srv.App().Test(req, -1)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)

	return response{status: resp.StatusCode, header: resp.Header, body: b}
}

// do sends body as JSON with the admin token.
func (e *testEnv) do(method, target string, body interface{}) response {
	e.t.Helper()
	return e.doAs(e.token, method, target, body)
}

func (e *testEnv) doAs(token, method, target string, body interface{}) response {
	e.t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		r = bytes.NewReader(raw)
	}

	return e.request(method, target, token, "application/json", r)
}

func (e *testEnv) category(name string) int64 {
	e.t.Helper()

	c := ent.Category{Name: name}
	require.NoError(e.t, e.store.CreateCategory(context.Background(), &c))
	return c.ID
}

func (e *testEnv) product(name string, category int64, price string, compatible ...int64) int64 {
	e.t.Helper()

	p := ent.Product{
		Name:           name,
		CategoryID:     category,
		BasePrice:      ent.MustMoney(price),
		ComponentType:  ent.ComponentOther,
		CompatibleWith: compatible,
	}
	require.NoError(e.t, e.store.CreateProduct(context.Background(), &p))
	return p.ID
}

func TestRootAndRedirect(t *testing.T) {
	e := newTestEnv(t)

	r := e.doAs("", http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusFound, r.status)
	assert.Equal(t, "/api/", r.header.Get("Location"))

	r = e.doAs("", http.MethodGet, "/api/", nil)
	require.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, "http://example.com/api/products/", r.json(t)["products"])
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)

	r := e.doAs("", http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, "ok", r.json(t)["status"])

	e.store.pingErr = errors.New("connection refused")

	r = e.doAs("", http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, r.status)
	assert.Equal(t, "Database unavailable.", r.json(t)["detail"])
}

func TestShutdownStopsFeedTracking(t *testing.T) {
	e := newTestEnv(t)

	require.True(t, e.srv.trackFeed())
	e.srv.wsWg.Done()

	_ = e.srv.Shutdown()

	assert.False(t, e.srv.trackFeed())
}

func TestWritesRequireToken(t *testing.T) {
	e := newTestEnv(t)

	r := e.doAs("", http.MethodPost, "/api/categories", map[string]string{"name": "CPUs"})
	assert.Equal(t, http.StatusUnauthorized, r.status)
	assert.Equal(t, "Authentication credentials were not provided.", r.json(t)["detail"])

	r = e.doAs("garbage", http.MethodPost, "/api/categories", map[string]string{"name": "CPUs"})
	assert.Equal(t, http.StatusUnauthorized, r.status)
	assert.Equal(t, "Invalid token.", r.json(t)["detail"])

	r = e.doAs("", http.MethodGet, "/api/categories", nil)
	assert.Equal(t, http.StatusOK, r.status)

	r = e.doAs("", http.MethodGet, "/api/admin/site", nil)
	assert.Equal(t, http.StatusUnauthorized, r.status)

	r = e.doAs("", http.MethodDelete, "/api/products/1", nil)
	assert.Equal(t, http.StatusUnauthorized, r.status)
}

func TestTokenEndpoint(t *testing.T) {
	e := newTestEnv(t)

	r := e.doAs("", http.MethodPost, "/api/auth/token", map[string]string{"username": "admin", "password": "nope"})
	assert.Equal(t, http.StatusBadRequest, r.status)
	assert.Equal(t, []interface{}{"Unable to log in with provided credentials."}, r.json(t)["non_field_errors"])

	r = e.doAs("", http.MethodPost, "/api/auth/token", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, r.status)
	assert.Contains(t, r.json(t), "username")

	r = e.doAs("", http.MethodPost, "/api/auth/token", map[string]string{"username": "admin", "password": "pass"})
	require.Equal(t, http.StatusOK, r.status)

	token, ok := r.json(t)["token"].(string)
	require.True(t, ok)

	req := httptest.NewRequest(http.MethodPost, "/api/categories", bytes.NewBufferString(`{"name":"GPUs"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+token)

	resp, err := e.srv.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestPagination(t *testing.T) {
	e := newTestEnv(t)

	for i := 0; i < 13; i++ {
		e.category(fmt.Sprintf("Category %02d", i))
	}

	r := e.doAs("", http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, r.status)

	body := r.json(t)
	assert.Equal(t, float64(13), body["count"])
	assert.Equal(t, "http://example.com/api/categories?page=2", body["next"])
	assert.Nil(t, body["previous"])
	assert.Len(t, body["results"], 12)
	assert.Equal(t, "Category 00", body["results"].([]interface{})[0].(map[string]interface{})["name"])

	r = e.doAs("", http.MethodGet, "/api/categories?page=2", nil)
	require.Equal(t, http.StatusOK, r.status)

	body = r.json(t)
	assert.Nil(t, body["next"])
	assert.Equal(t, "http://example.com/api/categories", body["previous"])
	assert.Len(t, body["results"], 1)

	for _, page := range []string{"3", "0", "abc"} {
		r = e.doAs("", http.MethodGet, "/api/categories?page="+page, nil)
		assert.Equal(t, http.StatusNotFound, r.status, page)
		assert.Equal(t, "Invalid page.", r.json(t)["detail"])
	}
}

func TestEmptyListFirstPage(t *testing.T) {
	e := newTestEnv(t)

	r := e.doAs("", http.MethodGet, "/api/orders/", nil)
	require.Equal(t, http.StatusOK, r.status)

	body := r.json(t)
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, []interface{}{}, body["results"])
}

func TestNotFound(t *testing.T) {
	e := newTestEnv(t)

	for _, target := range []string{"/api/categories/42", "/api/products/42", "/api/orders/42", "/api/products/x"} {
		r := e.doAs("", http.MethodGet, target, nil)
		assert.Equal(t, http.StatusNotFound, r.status, target)
		assert.Equal(t, "Not found.", r.json(t)["detail"], target)
	}
}

func TestCategoryCRUD(t *testing.T) {
	e := newTestEnv(t)

	r := e.do(http.MethodPost, "/api/categories", map[string]string{"name": "CPUs"})
	require.Equal(t, http.StatusCreated, r.status)
	id := int64(r.json(t)["id"].(float64))

	r = e.do(http.MethodPatch, fmt.Sprintf("/api/categories/%d", id), map[string]string{})
	require.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, "CPUs", r.json(t)["name"])

	r = e.do(http.MethodPut, fmt.Sprintf("/api/categories/%d", id), map[string]string{})
	require.Equal(t, http.StatusBadRequest, r.status)
	assert.Equal(t, []interface{}{"This field is required."}, r.json(t)["name"])

	r = e.do(http.MethodPut, fmt.Sprintf("/api/categories/%d/", id), map[string]string{"name": "Processors"})
	require.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, "Processors", r.json(t)["name"])

	r = e.do(http.MethodPost, "/api/categories", map[string]string{"name": "  GPUs\t"})
	require.Equal(t, http.StatusCreated, r.status)
	assert.Equal(t, "GPUs", r.json(t)["name"])

	r = e.do(http.MethodPost, "/api/categories", map[string]string{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, r.status)
	assert.Equal(t, []interface{}{"This field may not be blank."}, r.json(t)["name"])

	r = e.do(http.MethodPost, "/api/categories", `["not", "an", "object"]`)
	assert.Equal(t, http.StatusBadRequest, r.status)
	assert.Equal(t, []interface{}{"Invalid data. Expected a dictionary, but got list."}, r.json(t)["non_field_errors"])

	r = e.do(http.MethodPost, "/api/categories", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, r.status)
	assert.Contains(t, r.json(t)["detail"], "JSON parse error")

	r = e.do(http.MethodDelete, fmt.Sprintf("/api/categories/%d", id), nil)
	assert.Equal(t, http.StatusNoContent, r.status)

	r = e.do(http.MethodDelete, fmt.Sprintf("/api/categories/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, r.status)
}
