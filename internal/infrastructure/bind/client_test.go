package bind

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient crea un cliente contra el servidor dado, con sleep
// instrumentado para registrar las esperas sin dormir de verdad.
func newTestClient(t *testing.T, serverURL string, sleeps *[]time.Duration) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:        serverURL,
		APIKey:         "test-key",
		MaxAttempts:    5,
		InitialBackoff: time.Second,
	})
	require.NoError(t, err)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		if sleeps != nil {
			*sleeps = append(*sleeps, d)
		}
		return nil
	}
	return c
}

func TestGetReintentaTrasRateLimitYRecupera(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if calls <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `[{"ID":"1"}]`)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	c := newTestClient(t, srv.URL, &sleeps)

	raw, err := c.Get(context.Background(), "/Clients", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	records, err := decodeRecords(raw)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	// Backoff exponencial: cada espera al menos igual a la anterior.
	require.Len(t, sleeps, 2)
	assert.Equal(t, time.Second, sleeps[0])
	assert.Equal(t, 2*time.Second, sleeps[1])
}

func TestGetRespetaRetryAfter(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	c := newTestClient(t, srv.URL, &sleeps)

	_, err := c.Get(context.Background(), "/Products", nil)
	require.NoError(t, err)
	require.Len(t, sleeps, 1)
	assert.Equal(t, 7*time.Second, sleeps[0])
}

func TestGetAgotaReintentosConErrorDeServidor(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"message":"upstream caído"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	_, err := c.Get(context.Background(), "/Invoices", nil)
	require.Error(t, err)
	assert.Equal(t, 5, calls)
	assert.True(t, IsTransient(err))
	// El detalle del upstream sobrevive al agotamiento de reintentos.
	assert.Contains(t, err.Error(), "upstream caído")
}

func TestGetNoReintentaErroresDelCliente(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"RFC inválido"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	_, err := c.Get(context.Background(), "/Clients", nil)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, IsTransient(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "RFC inválido", apiErr.Message)
	assert.Contains(t, apiErr.Body, "RFC inválido")
}

func TestGetCancelacionDeContextoDetieneReintentos(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := c.Get(ctx, "/Clients", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeRecordsAceptaAmbosFormatos(t *testing.T) {
	plain, err := decodeRecords(json.RawMessage(`[{"ID":"a"},{"ID":"b"}]`))
	require.NoError(t, err)
	assert.Len(t, plain, 2)

	wrapped, err := decodeRecords(json.RawMessage(`{"value":[{"ID":"a"}]}`))
	require.NoError(t, err)
	assert.Len(t, wrapped, 1)

	empty, err := decodeRecords(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPagerRecorreTodasLasPaginasEnOrden(t *testing.T) {
	const total = 250
	var pageRequests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pageRequests++
		skip, _ := strconv.Atoi(r.URL.Query().Get("$skip"))
		top, _ := strconv.Atoi(r.URL.Query().Get("$top"))
		assert.Equal(t, PageSize, top)

		var page []map[string]int
		for i := skip; i < skip+top && i < total; i++ {
			page = append(page, map[string]int{"N": i})
		}
		require.NoError(t, json.NewEncoder(w).Encode(page))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	records, err := c.NewPager("/Products", nil).CollectAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, total)
	// La última página llega incompleta (50), así que no se pide una cuarta.
	assert.Equal(t, 3, pageRequests)

	for i, raw := range records {
		var rec struct {
			N int `json:"N"`
		}
		require.NoError(t, json.Unmarshal(raw, &rec))
		assert.Equal(t, i, rec.N)
	}
}

func TestPagerConservaElFiltroEntrePaginas(t *testing.T) {
	var filters []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filters = append(filters, r.URL.Query().Get("$filter"))
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	q := url.Values{}
	q.Set("$filter", "Status eq 1")
	_, err := c.NewPager("/Invoices", q).CollectAll(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, filters)
	assert.Equal(t, "Status eq 1", filters[0])
}
