package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/cursobot/internal/models"
)

func TestReorderArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"programación en python", "-limit", "3"},
			expected: []string{"-limit", "3", "programación en python"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-limit", "3", "programación en python"},
			expected: []string{"-limit", "3", "programación en python"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"finanzas"},
			expected: []string{"finanzas"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"marketing", "digital", "--variant", "contextual"},
			expected: []string{"--variant", "contextual", "marketing", "digital"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reorderArgs(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("reorderArgs() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestJoinArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"hola"}, "hola"},
		{"multiple words", []string{"cursos", "de", "excel"}, "cursos de excel"},
		{"single quoted phrase", []string{"cursos de excel"}, "cursos de excel"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := joinArgs(tt.args); got != tt.expected {
				t.Errorf("joinArgs(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfig(t *testing.T) {
	dir := t.TempDir()
	content := "server:\n  port: 9311\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, path, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9311 {
		t.Errorf("port = %d, want 9311", cfg.Server.Port)
	}
	if filepath.Base(path) != "config.yaml" || filepath.Dir(path) == filepath.Dir(defaultConfigPath) {
		t.Errorf("loaded path = %s, want the cwd config", path)
	}
}

func TestLoadConfig_explicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.yaml")
	if err := os.WriteFile(path, []byte("ranking:\n  variant: contextual\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, got, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != path {
		t.Errorf("loaded path = %s, want %s", got, path)
	}
	if cfg.Ranking.Variant != "contextual" {
		t.Errorf("variant = %s", cfg.Ranking.Variant)
	}
}

func TestLoadConfig_explicitMissing(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing explicit config")
	}
}

func TestClient_recommend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/recommendations", r.URL.Path)
		assert.Equal(t, "python", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		assert.Equal(t, "contextual", r.URL.Query().Get("variant"))
		_ = json.NewEncoder(w).Encode(models.RecommendationResponse{
			Query:   "python",
			Results: []*models.RecommendationResult{{Rank: 1, Course: &models.Course{Name: "Python básico"}}},
		})
	}))
	defer srv.Close()

	resp, err := newClient(srv.URL+"/").recommend("python", 3, "contextual")
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Python básico", resp.Results[0].Course.Name)
}

func TestClient_send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req models.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hola", req.Text)
		_ = json.NewEncoder(w).Encode(models.ChatResponse{
			Reply:          []string{"¡Hola!"},
			ConversationID: "0b6f9c2e-3f0a-4a55-9d5c-2f1e8c9a7b10",
		})
	}))
	defer srv.Close()

	resp, err := newClient(srv.URL).send("hola", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"¡Hola!"}, resp.Reply)
}

func TestClient_errorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"course catalog is not loaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).send("hola", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	// status reports an unloaded catalog through the body rather than failing.
	_, err = newClient(srv.URL).status()
	require.NoError(t, err)
}

func TestWriteStatusText(t *testing.T) {
	var buf bytes.Buffer
	n := int64(2048)
	writeStatusText(&buf, &statusResponse{
		Ready:          true,
		Conversations:  3,
		Messages:       12,
		DiskUsageBytes: &n,
		Ranking:        statusRanking{Variant: "standard", EmbeddingWeight: 0.6, TypoCorrection: true},
	})
	out := buf.String()
	assert.Contains(t, out, "ready:              true")
	assert.Contains(t, out, "conversations:      3")
	assert.Contains(t, out, "disk_usage_bytes:   2048")
	assert.Contains(t, out, "embedding_weight:   0.6")
	assert.NotContains(t, out, "embedder:")
}
