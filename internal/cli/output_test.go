package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/hyperjump/cursobot/internal/models"
)

func sampleResponse() *models.RecommendationResponse {
	return &models.RecommendationResponse{
		Query:          "pyton",
		CorrectedQuery: "python",
		Variant:        "standard",
		Total:          1,
		QueryTime:      7,
		Results: []*models.RecommendationResult{{
			Rank:           1,
			Score:          0.91,
			LexicalScore:   0.8,
			EmbeddingScore: 0.98,
			Course: &models.Course{
				OfferingID:  "OF-1",
				Name:        "Programación en Python",
				Modality:    "Virtual",
				OfferType:   "Curso",
				Description: strings.Repeat("x", 300),
			},
		}},
	}
}

func TestWriteRecommendations_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRecommendations(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.RecommendationResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Total != 1 || decoded.Results[0].Course.Name != "Programación en Python" {
		t.Errorf("decoded: %+v", decoded)
	}
}

func TestWriteRecommendations_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRecommendations(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		`1 results for "pyton" in 7ms (standard)`,
		"Searched for: python",
		"1. Programación en Python | Score: 0.9100",
		"Virtual · Curso · OF-1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, strings.Repeat("x", 200)) {
		t.Error("description should be truncated")
	}
}

func TestWriteReply(t *testing.T) {
	var buf bytes.Buffer
	resp := &models.ChatResponse{Reply: []string{"¡Hola!", "¿Qué tema te interesa?"}, ConversationID: "c1"}
	if err := WriteReply(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "🤖 ¡Hola!" || lines[1] != "🤖 ¿Qué tema te interesa?" {
		t.Errorf("got %q", lines)
	}
	if !strings.Contains(buf.String(), "(conversation c1)") {
		t.Error("conversation id missing")
	}
}

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputText, "TEXT": OutputText, "json": OutputJSON} {
		got, err := ParseOutputFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseOutputFormat("yaml"); err == nil {
		t.Error("expected error for yaml")
	}
}
