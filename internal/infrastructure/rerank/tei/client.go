// Package tei scores query/passage pairs with a cross-encoder served by
// text-embeddings-inference (POST /rerank).
package tei

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/prism-answer/internal/core/domain"
	"github.com/kirillkom/prism-answer/internal/infrastructure/resilience"
)

const (
	DefaultMaxBatchSize = 32
	DefaultParallelism  = 4
)

type Options struct {
	MaxBatchSize       int
	Parallelism        int
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

type Client struct {
	baseURL     string
	batchSize   int
	parallelism int
	httpClient  *http.Client
	executor    *resilience.Executor
}

func New(baseURL string, options Options) *Client {
	batch := options.MaxBatchSize
	if batch <= 0 {
		batch = DefaultMaxBatchSize
	}
	parallelism := options.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		batchSize:   batch,
		parallelism: parallelism,
		httpClient:  &http.Client{Timeout: timeout},
		executor:    options.ResilienceExecutor,
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
	Truncate  bool     `json:"truncate"`
}

type rerankItem struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Score returns one raw logit per text, in input order.
func (c *Client) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	scores := make([]float64, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		g.Go(func() error {
			batch, err := c.scoreBatch(gctx, query, texts[start:end])
			if err != nil {
				return err
			}
			copy(scores[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.WrapError(domain.ErrRerankUnavailable, "tei rerank", err)
	}
	return scores, nil
}

func (c *Client) scoreBatch(ctx context.Context, query string, texts []string) ([]float64, error) {
	var items []rerankItem
	call := func(ctx context.Context) error {
		items = nil
		return c.post(ctx, rerankRequest{Query: query, Texts: texts, RawScores: true, Truncate: true}, &items)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "tei.rerank", call, resilience.Classify)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(texts))
	seen := make([]bool, len(texts))
	for _, item := range items {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("tei returned index %d for %d texts", item.Index, len(texts))
		}
		if math.IsNaN(item.Score) || math.IsInf(item.Score, 0) {
			return nil, fmt.Errorf("tei returned non-finite score for index %d", item.Index)
		}
		out[item.Index] = item.Score
		seen[item.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("tei returned no score for index %d", i)
		}
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, payload rerankRequest, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal rerank request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tei rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewStatusError("tei", "rerank", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode rerank response: %w", err)
	}
	return nil
}
