package exchange_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lochiel/hacienda/internal/exchange"
)

func newDolarAPI(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /dolares", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			{"moneda":"USD","casa":"oficial","nombre":"Oficial","compra":1010.5,"venta":1050.25,"fechaActualizacion":"2024-10-18T14:57:00.000Z"},
			{"moneda":"USD","casa":"blue","nombre":"Blue","compra":1180,"venta":1200,"fechaActualizacion":"2024-10-18T14:57:00.000Z"}
		]`))
	})
	mux.HandleFunc("GET /dolares/oficial", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"moneda":"USD","casa":"oficial","nombre":"Oficial","compra":1010.5,"venta":1050.25,"fechaActualizacion":"2024-10-18T14:57:00.000Z"}`))
	})
	mux.HandleFunc("GET /dolares/caido", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func TestClient_Quotes(t *testing.T) {
	srv := newDolarAPI(t)

	quotes, err := exchange.NewClient(srv.URL + "/").Quotes(t.Context())
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, "blue", quotes[1].House)
	assert.True(t, decimal.RequireFromString("1050.25").Equal(quotes[0].Sell))
	assert.Equal(t, 2024, quotes[0].UpdatedAt.Year())
}

func TestClient_Quote(t *testing.T) {
	srv := newDolarAPI(t)
	client := exchange.NewClient(srv.URL)

	q, err := client.Quote(t.Context(), "oficial")
	require.NoError(t, err)
	assert.Equal(t, "Oficial", q.Name)
	assert.True(t, decimal.RequireFromString("1010.5").Equal(q.Buy))

	_, err = client.Quote(t.Context(), "inexistente")
	assert.ErrorIs(t, err, exchange.ErrUnknownHouse)

	_, err = client.Quote(t.Context(), "caido")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code 503")
}
