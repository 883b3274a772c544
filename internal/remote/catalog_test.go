package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local-cache/internal/entity"
	"local-cache/internal/logs"
	"local-cache/internal/seed"
)

var _ seed.Fetcher = (*CatalogClient)(nil).FetchGames

func TestCatalogClient(t *testing.T) {
	t.Run("DecodesGames", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/api/games", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[
				{"id": 3, "nombre": "Celeste", "precio": 19.99, "stock": 4, "activo": true,
				 "desarrollador": "Maddy Makes Games", "categoriaId": 2, "generoId": 5, "descuento": 10},
				{"id": 4, "nombre": "Old game", "activo": false}
			]`))
		}))
		defer server.Close()

		client := NewCatalogClient(server.URL+"/api/", logs.NewLogger(10, logs.DEBUG))
		games, err := client.FetchGames(context.Background())
		require.NoError(t, err)
		require.Len(t, games, 2)

		assert.Equal(t, entity.Game{
			ID:         3,
			RemoteID:   "3",
			Name:       "Celeste",
			Price:      19.99,
			Stock:      4,
			Developer:  "Maddy Makes Games",
			CategoryID: 2,
			GenreID:    5,
			Active:     true,
			Discount:   10,
		}, games[0])
		assert.False(t, games[1].Active)
	})

	t.Run("Non200IsError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := NewCatalogClient(server.URL, nil).FetchGames(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("MalformedBody", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"not": "a list"}`))
		}))
		defer server.Close()

		_, err := NewCatalogClient(server.URL, nil).FetchGames(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode catalog")
	})

	t.Run("CancelledContext", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewCatalogClient(server.URL, nil).FetchGames(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
