// Package agents implements the pipeline collaborators: web research via a
// Tavily-compatible search API, and LLM-backed synthesis, query refinement,
// fact checking and data and code analysis.
package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/BaSui01/deepresearch/internal/tlsutil"
	"github.com/BaSui01/deepresearch/internal/urlguard"
	"github.com/BaSui01/deepresearch/workflow"
)

// ResearchConfig configures the research agent.
type ResearchConfig struct {
	APIKey      string        `yaml:"api_key" env:"TAVILY_API_KEY"`
	BaseURL     string        `yaml:"base_url" env:"TAVILY_BASE_URL"`
	MaxResults  int           `yaml:"max_results" env:"RESEARCH_MAX_RESULTS"`
	SearchDepth string        `yaml:"search_depth" env:"RESEARCH_SEARCH_DEPTH"`
	Timeout     time.Duration `yaml:"timeout" env:"RESEARCH_TIMEOUT"`

	// RequestsPerSecond throttles outbound search calls across all
	// concurrent pipeline runs.
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"RESEARCH_REQUESTS_PER_SECOND"`

	// MaxConcurrent bounds the sub-query fan-out per research call.
	MaxConcurrent int `yaml:"max_concurrent" env:"RESEARCH_MAX_CONCURRENT"`
}

// DefaultResearchConfig returns the default research agent settings.
func DefaultResearchConfig() ResearchConfig {
	return ResearchConfig{
		BaseURL:           "https://api.tavily.com",
		MaxResults:        5,
		SearchDepth:       "advanced",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 2,
		MaxConcurrent:     3,
	}
}

// ResearchAgent gathers source material from a Tavily-compatible search API.
// URLs are filtered through the guard before a result is accepted.
type ResearchAgent struct {
	cfg     ResearchConfig
	client  *http.Client
	guard   *urlguard.Validator
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewResearchAgent creates a research agent. guard may not be nil.
func NewResearchAgent(cfg ResearchConfig, guard *urlguard.Validator, logger *zap.Logger) *ResearchAgent {
	def := DefaultResearchConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.SearchDepth == "" {
		cfg.SearchDepth = def.SearchDepth
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	return &ResearchAgent{
		cfg:     cfg,
		client:  tlsutil.SecureHTTPClient(cfg.Timeout),
		guard:   guard,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  logger.With(zap.String("component", "research_agent")),
	}
}

// Tavily wire types.
type tavilyRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth"`
	MaxResults        int    `json:"max_results"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
	Topic             string `json:"topic"`
}

type tavilyResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`
}

type tavilyResponse struct {
	Answer  string         `json:"answer,omitempty"`
	Results []tavilyResult `json:"results"`
}

// Research runs the main query and any sub-queries concurrently, merges and
// deduplicates the results by URL, and orders them by confidence.
func (a *ResearchAgent) Research(ctx context.Context, query string, subQueries []string) ([]workflow.ResearchResult, error) {
	queries := append([]string{query}, subQueries...)

	var mu sync.Mutex
	var merged []workflow.ResearchResult
	var firstErr error
	seen := make(map[string]bool)

	var g errgroup.Group
	g.SetLimit(a.cfg.MaxConcurrent)
	for _, q := range queries {
		g.Go(func() error {
			results, err := a.search(ctx, q)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// One failing sub-query only degrades the result set; the
				// remaining queries still run.
				a.logger.Warn("search query failed", zap.String("query", q), zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
				return nil
			}
			for _, r := range results {
				if r.URL != "" && seen[r.URL] {
					continue
				}
				if r.URL != "" {
					seen[r.URL] = true
				}
				merged = append(merged, r)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(merged) == 0 && firstErr != nil {
		return nil, firstErr
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].ConfidenceScore > merged[j].ConfidenceScore
	})

	a.logger.Info("research complete",
		zap.String("query", query),
		zap.Int("sub_queries", len(subQueries)),
		zap.Int("results", len(merged)),
	)
	return merged, nil
}

// search runs a single query against the search API.
func (a *ResearchAgent) search(ctx context.Context, query string) ([]workflow.ResearchResult, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(tavilyRequest{
		APIKey:        a.cfg.APIKey,
		Query:         query,
		SearchDepth:   a.cfg.SearchDepth,
		MaxResults:    a.cfg.MaxResults,
		IncludeAnswer: true,
		Topic:         "general",
	})

	url := strings.TrimRight(a.cfg.BaseURL, "/") + "/search"
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("search API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var searchResp tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	var results []workflow.ResearchResult
	for _, r := range searchResp.Results {
		if r.Content == "" {
			continue
		}
		if ok, reason := a.guard.Check(r.URL); !ok {
			a.logger.Warn("skipping unsafe result URL",
				zap.String("url", r.URL),
				zap.String("reason", reason),
			)
			continue
		}

		title := r.Title
		if title == "" {
			title = "Untitled"
		}
		safeURL := a.guard.Sanitize(r.URL)
		results = append(results, workflow.ResearchResult{
			Title:           title,
			URL:             safeURL,
			Content:         r.Content,
			Source:          sourceOf(safeURL),
			RelevanceScore:  r.Score,
			ConfidenceScore: confidence(r),
		})
	}

	// The search engine's own synthesized answer joins the result set with
	// top relevance.
	if answer := strings.TrimSpace(searchResp.Answer); answer != "" {
		results = append(results, workflow.ResearchResult{
			Title:           "Search Answer",
			Content:         answer,
			Source:          "search_engine",
			RelevanceScore:  1.0,
			ConfidenceScore: 1.0,
		})
	}

	return results, nil
}

// confidence combines the engine relevance score with domain, content and
// recency signals, capped at 1.0.
func confidence(r tavilyResult) float64 {
	domainBoost := 1.0
	lowered := strings.ToLower(r.URL)
	switch {
	case containsAny(lowered, ".edu", ".gov", ".org", "arxiv.org", "research.", "science."):
		domainBoost = 1.2
	case containsAny(lowered, "blog.", "medium.com"):
		domainBoost = 0.8
	}

	contentBoost := 1.0
	content := strings.ToLower(r.Content)
	if containsAny(content, "research", "study", "published", "paper", "journal") {
		contentBoost += 0.1
	}
	if containsAny(content, "experiment", "data", "analysis", "results") {
		contentBoost += 0.1
	}

	recencyBoost := 1.0
	if r.PublishedDate != "" {
		if pub, err := time.Parse("2006-01-02", r.PublishedDate); err == nil {
			age := time.Since(pub)
			switch {
			case age < 30*24*time.Hour:
				recencyBoost = 1.2
			case age < 180*24*time.Hour:
				recencyBoost = 1.1
			}
		}
	}

	score := r.Score * domainBoost * contentBoost * recencyBoost
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// sourceOf reduces a URL to its host for display.
func sourceOf(rawURL string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	return trimmed
}
