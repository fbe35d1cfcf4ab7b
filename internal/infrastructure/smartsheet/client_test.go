package smartsheet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSheet = int64(555)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, AccessToken: "token"})
	require.NoError(t, err)
	return srv, c
}

func columnsJSON() string {
	return `{"data":[
		{"id":1,"title":"RFC"},
		{"id":2,"title":"Estado"},
		{"id":3,"title":"UUID"}
	]}`
}

func TestFetchRowMapeaCeldasPorTitulo(t *testing.T) {
	var columnCalls int
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == fmt.Sprintf("/sheets/%d/columns", testSheet):
			columnCalls++
			fmt.Fprint(w, columnsJSON())
		case r.URL.Path == fmt.Sprintf("/sheets/%d/rows/77", testSheet):
			assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
			fmt.Fprint(w, `{"id":77,"cells":[
				{"columnId":1,"value":"AAA010101AAA"},
				{"columnId":2,"value":"Facturar"},
				{"columnId":3},
				{"columnId":99,"value":"huérfana"}
			]}`)
		default:
			t.Fatalf("ruta inesperada: %s", r.URL.Path)
		}
	})

	row, err := c.FetchRow(context.Background(), testSheet, 77)
	require.NoError(t, err)
	assert.Equal(t, int64(77), row.RowID)
	assert.Equal(t, "AAA010101AAA", row.String("RFC"))
	assert.Equal(t, "Facturar", row.String("Estado"))
	assert.False(t, row.Has("UUID"))

	// Segunda lectura: las columnas salen del caché.
	_, err = c.FetchRow(context.Background(), testSheet, 77)
	require.NoError(t, err)
	assert.Equal(t, 1, columnCalls)
}

func TestUpdateCellsAgrupaEnUnSoloPut(t *testing.T) {
	var puts int
	var payload []apiRow
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fmt.Fprint(w, columnsJSON())
		case http.MethodPut:
			puts++
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			fmt.Fprint(w, `{"message":"SUCCESS"}`)
		}
	})

	err := c.UpdateCells(context.Background(), testSheet, 77, map[string]any{
		"Estado": "Facturado",
		"UUID":   "ABC-123",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, puts)
	require.Len(t, payload, 1)
	assert.Equal(t, int64(77), payload[0].ID)
	assert.Len(t, payload[0].Cells, 2)
}

func TestUpdateCellsOmiteColumnasInexistentes(t *testing.T) {
	var payload []apiRow
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, columnsJSON())
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		fmt.Fprint(w, `{"message":"SUCCESS"}`)
	})

	err := c.UpdateCells(context.Background(), testSheet, 77, map[string]any{
		"Estado":         "Error",
		"No Existe":      "x",
		"Tampoco Existe": "y",
	})
	require.NoError(t, err)
	require.Len(t, payload, 1)
	assert.Len(t, payload[0].Cells, 1)
}

func TestUpdateCellsSinColumnasValidasNoEscribe(t *testing.T) {
	var puts int
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, columnsJSON())
			return
		}
		puts++
	})

	err := c.UpdateCells(context.Background(), testSheet, 77, map[string]any{"Fantasma": 1})
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Zero(t, puts)
}

func TestFetchSheetDevuelveFilasEnOrden(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, fmt.Sprintf("/sheets/%d", testSheet), r.URL.Path)
		fmt.Fprint(w, `{
			"id": 555,
			"columns": [{"id":1,"title":"Codigo"},{"id":2,"title":"Existencias"}],
			"rows": [
				{"id":1,"cells":[{"columnId":1,"value":"SKU-1"},{"columnId":2,"value":5}]},
				{"id":2,"cells":[{"columnId":1,"value":"SKU-2"}]}
			]
		}`)
	})

	rows, err := c.FetchSheet(context.Background(), testSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "SKU-1", rows[0].String("Codigo"))
	assert.Equal(t, "5", rows[0].String("Existencias"))
	assert.Equal(t, "SKU-2", rows[1].String("Codigo"))
}
