package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"seatkeeper/internal/config"
	"seatkeeper/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchClient индексирует сеансы для поиска
type ElasticsearchClient struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// NewElasticsearchClient создает клиент и индекс сеансов при необходимости
func NewElasticsearchClient(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &ElasticsearchClient{client: es, config: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := client.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}
	return client, nil
}

// ensureIndex создает индекс если он не существует
func (c *ElasticsearchClient) ensureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{c.config.Index}}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		slog.Info("Elasticsearch index already exists", "index", c.config.Index)
		return nil
	}

	mapping := map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":              map[string]any{"type": "long"},
				"hall_id":         map[string]any{"type": "long"},
				"movie_id":        map[string]any{"type": "long"},
				"start_time":      map[string]any{"type": "date"},
				"end_time":        map[string]any{"type": "date"},
				"status":          map[string]any{"type": "keyword"},
				"day_type":        map[string]any{"type": "keyword"},
				"total_seats":     map[string]any{"type": "integer"},
				"available_seats": map[string]any{"type": "integer"},
				"created_at":      map[string]any{"type": "date"},
				"updated_at":      map[string]any{"type": "date"},
			},
		},
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createRes, err := esapi.IndicesCreateRequest{
		Index: c.config.Index,
		Body:  bytes.NewReader(body),
	}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", c.config.Index)
	return nil
}

// IndexShowtime индексирует сеанс
func (c *ElasticsearchClient) IndexShowtime(ctx context.Context, st *models.Showtime) error {
	body, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal showtime: %w", err)
	}

	res, err := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: strconv.FormatInt(st.ID, 10),
		Body:       bytes.NewReader(body),
		Refresh:    "wait_for",
	}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index showtime: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}
	return nil
}

// DeleteShowtime удаляет сеанс из индекса
func (c *ElasticsearchClient) DeleteShowtime(ctx context.Context, id int64) error {
	res, err := esapi.DeleteRequest{
		Index:      c.config.Index,
		DocumentID: strconv.FormatInt(id, 10),
		Refresh:    "wait_for",
	}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to delete showtime: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete error: %s", res.String())
	}
	return nil
}

// Search выполняет поиск сеансов
func (c *ElasticsearchClient) Search(ctx context.Context, req models.SearchShowtimesRequest) ([]models.Showtime, error) {
	from := 0
	size := req.PageSize
	if size <= 0 {
		size = 20
	}
	if req.Page > 0 {
		from = (req.Page - 1) * size
	}

	query := map[string]any{
		"query": BuildQuery(req),
		"sort": []map[string]any{
			{"start_time": map[string]any{"order": "asc"}},
			{"id": map[string]any{"order": "asc"}},
		},
		"from": from,
		"size": size,
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Hits []struct {
				Source models.Showtime `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	showtimes := make([]models.Showtime, len(response.Hits.Hits))
	for i, hit := range response.Hits.Hits {
		showtimes[i] = hit.Source
	}
	return showtimes, nil
}

// BuildQuery строит bool-фильтр по непустым полям запроса
func BuildQuery(req models.SearchShowtimesRequest) map[string]any {
	var filters []map[string]any

	if req.MovieID > 0 {
		filters = append(filters, map[string]any{"term": map[string]any{"movie_id": req.MovieID}})
	}
	if req.HallID > 0 {
		filters = append(filters, map[string]any{"term": map[string]any{"hall_id": req.HallID}})
	}
	if req.Status != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"status": req.Status}})
	}
	if req.Date != "" {
		filters = append(filters, map[string]any{
			"range": map[string]any{
				"start_time": map[string]any{
					"gte": req.Date + "T00:00:00",
					"lte": req.Date + "T23:59:59",
				},
			},
		})
	}

	if len(filters) == 0 {
		return map[string]any{"match_all": map[string]any{}}
	}
	return map[string]any{"bool": map[string]any{"filter": filters}}
}

// HealthCheck проверяет состояние Elasticsearch
func (c *ElasticsearchClient) HealthCheck(ctx context.Context) error {
	res, err := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       10 * time.Second,
	}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}
	return nil
}
