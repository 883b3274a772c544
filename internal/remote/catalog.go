// Package remote talks to the game catalog service.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"local-cache/internal/entity"
	"local-cache/internal/logs"
)

const defaultTimeout = 10 * time.Second

// gameResponse is the catalog service wire format.
type gameResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"nombre"`
	Description string  `json:"descripcion"`
	Price       float64 `json:"precio"`
	Stock       int     `json:"stock"`
	ImageURL    string  `json:"imagenUrl"`
	Developer   string  `json:"desarrollador"`
	ReleaseDate string  `json:"fechaLanzamiento"`
	CategoryID  int64   `json:"categoriaId"`
	GenreID     int64   `json:"generoId"`
	Active      bool    `json:"activo"`
	Discount    int     `json:"descuento"`
}

func (g gameResponse) toEntity() entity.Game {
	return entity.Game{
		ID:          g.ID,
		RemoteID:    fmt.Sprint(g.ID),
		Name:        g.Name,
		Description: g.Description,
		Price:       g.Price,
		Stock:       g.Stock,
		ImageURL:    g.ImageURL,
		Developer:   g.Developer,
		ReleaseDate: g.ReleaseDate,
		CategoryID:  g.CategoryID,
		GenreID:     g.GenreID,
		Active:      g.Active,
		Discount:    g.Discount,
	}
}

// CatalogClient fetches the game catalog over HTTP.
type CatalogClient struct {
	baseURL string
	client  *http.Client
	logger  *logs.Logger
}

// NewCatalogClient creates a client for the catalog service at baseURL.
func NewCatalogClient(baseURL string, logger *logs.Logger) *CatalogClient {
	if logger == nil {
		logger = logs.NewLogger(0, logs.INFO)
	}
	return &CatalogClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// FetchGames returns every game in the remote catalog. It matches
// seed.Fetcher. Failures are returned as is; retrying is the caller's call.
func (c *CatalogClient) FetchGames(ctx context.Context) ([]entity.Game, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/games", nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch catalog: unexpected status %s", resp.Status)
	}

	var body []gameResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	games := make([]entity.Game, 0, len(body))
	for _, g := range body {
		games = append(games, g.toEntity())
	}
	c.logger.Debug("catalog fetched", zap.Int("games", len(games)))
	return games, nil
}
