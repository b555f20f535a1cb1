package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetcalc/sheetcalc"
	"github.com/sheetcalc/sheetcalc/internal/store"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st, err := store.Open(filepath.Join(t.TempDir(), "sheets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return New(st, opts...), st
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func setBody(value string) string {
	data, _ := json.Marshal(map[string]string{"value": value})
	return string(data)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func TestHealthcheck(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Router(), http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "health", w.Body.String())
}

func TestSetAndGetCell(t *testing.T) {
	srv, st := newTestServer(t)
	h := srv.Router()

	w := do(t, h, http.MethodPost, "/api/v1/book/A1", setBody("3"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/v1/book/B1", setBody("=A1*2"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[SetCellResponse](t, w)
	assert.Equal(t, []string{"B1"}, resp.Affected)
	assert.Equal(t, "6", resp.Cell.Value)
	assert.Equal(t, "=A1*2", resp.Cell.Contents)

	w = do(t, h, http.MethodPost, "/api/v1/book/A1", setBody("10"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"A1", "B1"}, decode[SetCellResponse](t, w).Affected)

	w = do(t, h, http.MethodGet, "/api/v1/book/B1", "")
	require.Equal(t, http.StatusOK, w.Code)
	cell := decode[CellResponse](t, w)
	assert.Equal(t, "20", cell.Value)
	assert.Equal(t, "number", cell.ValueKind)

	// Every edit is persisted.
	sheet, err := st.Load("book")
	require.NoError(t, err)
	v, err := sheet.GetCellValue("B1")
	require.NoError(t, err)
	assert.Equal(t, "20", v.String())
}

func TestGetSheet(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	do(t, h, http.MethodPost, "/api/v1/book/B1", setBody("=A1+1"))
	do(t, h, http.MethodPost, "/api/v1/book/A1", setBody("hello"))

	w := do(t, h, http.MethodGet, "/api/v1/book", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[SheetResponse](t, w)
	require.Len(t, resp.Cells, 2)
	assert.Equal(t, "A1", resp.Cells[0].Name)
	assert.Equal(t, "text", resp.Cells[0].ValueKind)
	assert.Equal(t, "error", resp.Cells[1].ValueKind)
	assert.Contains(t, resp.Cells[1].Value, "contains text")
}

func TestErrorStatuses(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/v1/book/A1", setBody("=B1")).Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad cell name", http.MethodPost, "/api/v1/book/1A", setBody("1"), http.StatusBadRequest},
		{"bad formula", http.MethodPost, "/api/v1/book/C1", setBody("=1+"), http.StatusUnprocessableEntity},
		{"circular", http.MethodPost, "/api/v1/book/B1", setBody("=A1"), http.StatusConflict},
		{"missing value", http.MethodPost, "/api/v1/book/C1", `{}`, http.StatusBadRequest},
		{"not json", http.MethodPost, "/api/v1/book/C1", `value=1`, http.StatusBadRequest},
		{"unknown sheet", http.MethodGet, "/api/v1/other", "", http.StatusNotFound},
		{"unknown sheet cell", http.MethodGet, "/api/v1/other/A1", "", http.StatusNotFound},
		{"bad name on get", http.MethodGet, "/api/v1/book/A", "", http.StatusBadRequest},
		{"delete unknown", http.MethodDelete, "/api/v1/other", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, decode[errorResponse](t, w).Error)
		})
	}

	// The rejected circular edit left B1 as an empty placeholder.
	w := do(t, h, http.MethodGet, "/api/v1/book/B1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", decode[CellResponse](t, w).Contents)
}

func TestClearCell(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()
	do(t, h, http.MethodPost, "/api/v1/book/A1", setBody("1"))

	w := do(t, h, http.MethodPost, "/api/v1/book/A1", setBody(""))
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/book", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[SheetResponse](t, w).Cells)
}

func TestDeleteSheet(t *testing.T) {
	srv, st := newTestServer(t)
	h := srv.Router()
	do(t, h, http.MethodPost, "/api/v1/Book/A1", setBody("1"))

	w := do(t, h, http.MethodDelete, "/api/v1/book", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, err := st.Get("book")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/book", "").Code)
}

func TestWorkbookSurvivesRestart(t *testing.T) {
	srv, st := newTestServer(t)
	do(t, srv.Router(), http.MethodPost, "/api/v1/book/A1", setBody("=2*21"))

	fresh := New(st)
	w := do(t, fresh.Router(), http.MethodGet, "/api/v1/book/A1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", decode[CellResponse](t, w).Value)
}

func TestSheetOptions(t *testing.T) {
	srv, _ := newTestServer(t, WithSheetOptions(sheetcalc.WithNormalizer(strings.ToUpper)))
	h := srv.Router()
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/v1/book/a1", setBody("2")).Code)

	w := do(t, h, http.MethodPost, "/api/v1/book/b1", setBody("=a1+1"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "=A1+1", decode[SetCellResponse](t, w).Cell.Contents)
}

func TestConcurrentEdits(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()
	do(t, h, http.MethodPost, "/api/v1/book/Z1", setBody("=A1+A2+A3+A4+A5+A6+A7+A8"))

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			do(t, h, http.MethodPost, fmt.Sprintf("/api/v1/book/A%d", i), setBody("1"))
		}(i)
	}
	wg.Wait()

	w := do(t, h, http.MethodGet, "/api/v1/book/Z1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "8", decode[CellResponse](t, w).Value)
}
