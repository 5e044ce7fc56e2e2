package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/lox/jmaweather/internal/metrics"
	"github.com/lox/jmaweather/internal/models"
)

const (
	DefaultAreaURL = "https://www.jma.go.jp/bosai/common/const/area.json"

	catalogEndpoint = "area"
)

var ErrCatalogUnavailable = errors.New("area catalog unavailable")

// Catalog resolves forecast office codes to names from the JMA area index.
type Catalog struct {
	client *http.Client
	url    string
}

func NewCatalog(url string, client *http.Client) *Catalog {
	if url == "" {
		url = DefaultAreaURL
	}
	return &Catalog{client: client, url: url}
}

type areaIndex struct {
	Offices map[string]struct {
		Name string `json:"name"`
	} `json:"offices"`
}

// List returns every office in the index, ordered by code.
func (c *Catalog) List(ctx context.Context) ([]models.AreaRef, error) {
	start := time.Now()
	defer func() {
		metrics.FetchLatency.WithLabelValues(catalogEndpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrCatalogUnavailable, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.FetchCallsTotal.WithLabelValues(catalogEndpoint, "error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()
	metrics.FetchCallsTotal.WithLabelValues(catalogEndpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrCatalogUnavailable, resp.StatusCode)
	}

	var index areaIndex
	if err := json.NewDecoder(resp.Body).Decode(&index); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrCatalogUnavailable, err)
	}
	if index.Offices == nil {
		return nil, fmt.Errorf("%w: missing offices", ErrCatalogUnavailable)
	}

	areas := make([]models.AreaRef, 0, len(index.Offices))
	for code, office := range index.Offices {
		areas = append(areas, models.AreaRef{Code: code, Name: office.Name})
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].Code < areas[j].Code })
	return areas, nil
}
