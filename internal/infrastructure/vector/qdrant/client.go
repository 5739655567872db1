package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/resilience"
)

// pointNamespace seeds deterministic point IDs so re-indexing a manual
// overwrites its points in place.
var pointNamespace = uuid.MustParse("6f0c2a4e-8d1b-4b53-9a59-3c1d2b7e5f10")

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredVectorSize int
}

type Option func(*Client)

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func New(baseURL, collection string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type statusError struct {
	operation  string
	statusCode int
	status     string
	body       string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.operation, e.status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.operation, e.status, e.body)
}

// IndexPassages replaces every point of the manual with the given passages.
func (c *Client) IndexPassages(ctx context.Context, manual *domain.Manual, passages []domain.Passage, vectors [][]float32) error {
	if len(passages) != len(vectors) {
		return fmt.Errorf("qdrant index: %d passages for %d vectors", len(passages), len(vectors))
	}
	if len(passages) == 0 {
		return nil
	}
	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}
	if err := c.deleteManual(ctx, manual.ID); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}
	points := make([]point, 0, len(passages))
	for i, p := range passages {
		points = append(points, point{
			ID:     PointID(manual.ID, p.ChunkIndex),
			Vector: vectors[i],
			Payload: map[string]any{
				"manual_id":   manual.ID,
				"filename":    manual.Filename,
				"model":       manual.Model,
				"chunk_index": p.ChunkIndex,
				"source_tag":  p.SourceTag,
				"text":        p.Content,
			},
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	return c.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
}

func (c *Client) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.Passage, error) {
	if limit <= 0 || len(queryVector) == 0 {
		return nil, nil
	}
	request := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	var response struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	if err := c.do(ctx, http.MethodPost, path, request, &response, "search"); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.statusCode == http.StatusNotFound {
			// Nothing has been indexed yet.
			return nil, nil
		}
		return nil, err
	}

	out := make([]domain.Passage, 0, len(response.Result))
	for _, r := range response.Result {
		out = append(out, domain.Passage{
			ManualID:   payloadString(r.Payload, "manual_id"),
			ChunkIndex: payloadInt(r.Payload, "chunk_index"),
			SourceTag:  payloadString(r.Payload, "source_tag"),
			Content:    payloadString(r.Payload, "text"),
		})
	}
	return out, nil
}

func PointID(manualID string, chunkIndex int) string {
	return uuid.NewSHA1(pointNamespace, fmt.Appendf(nil, "%s/%d", manualID, chunkIndex)).String()
}

func (c *Client) deleteManual(ctx context.Context, manualID string) error {
	request := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{{
				"key":   "manual_id",
				"match": map[string]any{"value": manualID},
			}},
		},
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection)
	return c.do(ctx, http.MethodPost, path, request, nil, "delete")
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	if c.ensuredVectorSize == vectorSize {
		return nil
	}

	request := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	err := c.do(ctx, http.MethodPut, "/collections/"+c.collection, request, nil, "ensure collection")
	var se *statusError
	if err != nil && !(errors.As(err, &se) && se.statusCode == http.StatusConflict) {
		return err
	}
	c.ensuredVectorSize = vectorSize
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any, operation string) error {
	err := c.executor.Execute(ctx, "qdrant."+operation, func(ctx context.Context) error {
		return c.roundTrip(ctx, method, path, payload, out, operation)
	}, classifyQdrantError)
	if err != nil && !domain.IsKind(err, domain.ErrTemporary) &&
		(resilience.IsCircuitOpen(err) || classifyQdrantError(err).Retryable) {
		return domain.WrapError(domain.ErrTemporary, "qdrant "+operation, err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{
			operation:  operation,
			statusCode: resp.StatusCode,
			status:     resp.Status,
			body:       strings.TrimSpace(string(raw)),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func classifyQdrantError(err error) resilience.Classification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Classification{}
	}
	var se *statusError
	if errors.As(err, &se) {
		if se.statusCode >= 500 || se.statusCode == http.StatusTooManyRequests {
			return resilience.Classification{Retryable: true, Trips: true}
		}
		return resilience.Classification{}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Classification{Retryable: true, Trips: true}
	}
	return resilience.Classification{Trips: true}
}

func payloadString(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func payloadInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
