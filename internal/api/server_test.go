package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funcdeck-hq/funcdeck/internal/config"
	"github.com/funcdeck-hq/funcdeck/internal/distribute"
	"github.com/funcdeck-hq/funcdeck/internal/runner"
	"github.com/funcdeck-hq/funcdeck/internal/store"
	"github.com/funcdeck-hq/funcdeck/pkg/model"
)

// fakeInvoker records the last request and replies with a canned result.
type fakeInvoker struct {
	last   runner.InvokeRequest
	result *runner.InvokeResult
	err    error
}

func (f *fakeInvoker) Invoke(_ context.Context, req runner.InvokeRequest) (*runner.InvokeResult, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testSnapshot() *model.Snapshot {
	return &model.Snapshot{
		Modules: []model.ModuleNode{{
			Name: "products",
			Path: "products",
			Functions: []model.FunctionDescriptor{
				{Name: "list", FullPath: "products:list", Kind: model.KindQuery},
			},
		}},
		Tables:      []model.TableDescriptor{{Name: "products", Fields: []model.FieldDescriptor{}}},
		LastUpdated: time.Now().UTC(),
	}
}

func newTestServer(invoker Invoker) (*Server, *distribute.Hub) {
	hub := distribute.NewHub()
	cfg := &config.Config{Port: 6790, DeploymentURL: "http://localhost:3210"}
	return NewServer(cfg, hub, invoker, store.NewMemory()), hub
}

func TestGetSchema_NotReadyThenReady(t *testing.T) {
	srv, hub := newTestServer(&fakeInvoker{})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schema", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	hub.Publish(testSnapshot())

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schema", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap model.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Modules, 1)
	assert.Equal(t, "products:list", snap.Modules[0].Functions[0].FullPath)
	assert.Len(t, snap.Tables, 1)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(&fakeInvoker{})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWS_InitialSnapshotAndUpdates(t *testing.T) {
	srv, hub := newTestServer(&fakeInvoker{})
	hub.Publish(testSnapshot())

	httpSrv := httptest.NewServer(srv.Router())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// the current snapshot arrives immediately on subscribe
	var msg struct {
		Type string          `json:"type"`
		Data *model.Snapshot `json:"data"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "schema", msg.Type)
	require.NotNil(t, msg.Data)
	assert.Equal(t, 1, msg.Data.FunctionCount())

	// a publish reaches the subscriber as an identical-shape message
	updated := testSnapshot()
	updated.Modules[0].Functions = append(updated.Modules[0].Functions, model.FunctionDescriptor{
		Name: "create", FullPath: "products:create", Kind: model.KindMutation,
	})
	hub.Publish(updated)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "schema", msg.Type)
	assert.Equal(t, 2, msg.Data.FunctionCount())
}

func TestInvoke_ProxiesAndRecordsHistory(t *testing.T) {
	invoker := &fakeInvoker{result: &runner.InvokeResult{
		Status: "success",
		Value:  json.RawMessage(`[{"name":"widget"}]`),
	}}
	srv, _ := newTestServer(invoker)

	body := `{"path":"products:list","kind":"query","args":{"category":"tools"},"identity":"user_123"}`
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/invoke", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "products:list", invoker.last.FullPath)
	assert.Equal(t, model.KindQuery, invoker.last.Kind)
	assert.Equal(t, "user_123", invoker.last.Identity)

	var result runner.InvokeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "success", result.Status)

	// the invocation landed in history
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []store.HistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "products:list", entries[0].FullPath)
	assert.Equal(t, "success", entries[0].Status)
}

func TestInvoke_Validation(t *testing.T) {
	srv, _ := newTestServer(&fakeInvoker{})

	tests := []struct {
		name string
		body string
	}{
		{"garbage body", "{"},
		{"missing path", `{"kind":"query"}`},
		{"bad kind", `{"path":"a:b","kind":"subscription"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/invoke", bytes.NewBufferString(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestInvoke_DeploymentUnreachable(t *testing.T) {
	srv, _ := newTestServer(&fakeInvoker{err: context.DeadlineExceeded})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/invoke",
		bytes.NewBufferString(`{"path":"a:b","kind":"query"}`)))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCollections_Lifecycle(t *testing.T) {
	srv, _ := newTestServer(&fakeInvoker{})

	// create
	body := `{"name":"smoke","requests":[{"name":"list","fullPath":"products:list","kind":"query"}]}`
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/collections", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var col store.Collection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &col))
	assert.Equal(t, "smoke", col.Name)

	// get
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/collections/"+col.ID.String(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// update
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/collections/"+col.ID.String(),
		bytes.NewBufferString(`{"name":"renamed"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &col))
	assert.Equal(t, "renamed", col.Name)

	// list
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/collections", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var cols []store.Collection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cols))
	assert.Len(t, cols, 1)

	// delete, then 404 on get
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/collections/"+col.ID.String(), nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/collections/"+col.ID.String(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCollections_BadIDs(t *testing.T) {
	srv, _ := newTestServer(&fakeInvoker{})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/collections/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory_Clear(t *testing.T) {
	invoker := &fakeInvoker{result: &runner.InvokeResult{Status: "success"}}
	srv, _ := newTestServer(invoker)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/invoke",
		bytes.NewBufferString(`{"path":"a:b","kind":"query"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/history", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	var entries []store.HistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Empty(t, entries)
}
