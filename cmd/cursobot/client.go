package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/hyperjump/cursobot/internal/catalog"
	"github.com/hyperjump/cursobot/internal/models"
	"github.com/hyperjump/cursobot/internal/server"
)

// statusResponse is the shape of GET /api/v1/models/status.
type statusResponse struct {
	Ready          bool                `json:"ready"`
	Catalog        catalog.Status      `json:"catalog"`
	Tagger         server.TaggerStatus `json:"tagger"`
	Ranking        statusRanking       `json:"ranking"`
	Conversations  int64               `json:"conversations"`
	Messages       int64               `json:"messages"`
	DiskUsageBytes *int64              `json:"disk_usage_bytes,omitempty"`
}

type statusRanking struct {
	Variant         string  `json:"variant"`
	EmbeddingWeight float64 `json:"embedding_weight"`
	TypoCorrection  bool    `json:"typo_correction"`
}

// client talks to a running cursobot server.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) recommend(query string, limit int, variant string) (*models.RecommendationResponse, error) {
	v := url.Values{}
	v.Set("q", query)
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	if variant != "" {
		v.Set("variant", variant)
	}
	var out models.RecommendationResponse
	if err := c.do(http.MethodGet, "/api/v1/recommendations?"+v.Encode(), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) send(text, conversationID string) (*models.ChatResponse, error) {
	body, err := json.Marshal(models.ChatRequest{Text: text, ConversationID: conversationID})
	if err != nil {
		return nil, err
	}
	var out models.ChatResponse
	if err := c.do(http.MethodPost, "/api/v1/chatbot/message", body, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// status accepts 503 as well since the server reports a missing catalog that way.
func (c *client) status() (*statusResponse, error) {
	var out statusResponse
	if err := c.do(http.MethodGet, "/api/v1/models/status", nil, &out, http.StatusOK, http.StatusServiceUnavailable); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) do(method, path string, body []byte, out any, accept ...int) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	ok := false
	for _, code := range accept {
		if resp.StatusCode == code {
			ok = true
			break
		}
	}
	if !ok {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func writeStatusText(w io.Writer, s *statusResponse) {
	fmt.Fprintf(w, "ready:              %t\n", s.Ready)
	fmt.Fprintf(w, "catalog_rows:       %d   # courses in the loaded catalog\n", s.Catalog.Rows)
	if s.Catalog.Dimensions > 0 {
		fmt.Fprintf(w, "embedding_dims:     %d\n", s.Catalog.Dimensions)
	}
	if s.Catalog.Version != "" {
		fmt.Fprintf(w, "catalog_version:    %s\n", s.Catalog.Version)
	}
	if s.Catalog.LastError != "" {
		fmt.Fprintf(w, "catalog_error:      %s\n", s.Catalog.LastError)
	}
	fmt.Fprintf(w, "conversations:      %d\n", s.Conversations)
	fmt.Fprintf(w, "messages:           %d\n", s.Messages)
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # database + dialogue state on disk\n", *s.DiskUsageBytes)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# ranking")
	fmt.Fprintf(w, "variant:            %s\n", s.Ranking.Variant)
	fmt.Fprintf(w, "embedding_weight:   %g\n", s.Ranking.EmbeddingWeight)
	fmt.Fprintf(w, "typo_correction:    %t\n", s.Ranking.TypoCorrection)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# tagging")
	fmt.Fprintf(w, "enabled:            %t\n", s.Tagger.Enabled)
	if s.Tagger.Enabled {
		fmt.Fprintf(w, "ready:              %t\n", s.Tagger.Ready)
		if s.Tagger.Embedder != "" {
			fmt.Fprintf(w, "embedder:           %s\n", s.Tagger.Embedder)
		}
		if s.Tagger.Clusters > 0 {
			fmt.Fprintf(w, "clusters:           %d\n", s.Tagger.Clusters)
		}
		if s.Tagger.Error != "" {
			fmt.Fprintf(w, "error:              %s\n", s.Tagger.Error)
		}
	}
}
