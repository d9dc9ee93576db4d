// Package cli formats command output for the cursobot CLI.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/hyperjump/cursobot/internal/models"
	"github.com/hyperjump/cursobot/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" and "json"; empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// WriteRecommendations writes ranked courses to w in the given format.
func WriteRecommendations(w io.Writer, resp *models.RecommendationResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%d results for %q in %dms (%s)\n", resp.Total, resp.Query, resp.QueryTime, resp.Variant)
	if resp.CorrectedQuery != "" {
		fmt.Fprintf(w, "Searched for: %s\n", resp.CorrectedQuery)
	}
	fmt.Fprintln(w)
	for _, r := range resp.Results {
		c := r.Course
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%d. %s | Score: %.4f (Lexical: %.4f, Embedding: %.4f)\n",
			r.Rank, c.Name, r.Score, r.LexicalScore, r.EmbeddingScore)
		fmt.Fprintf(w, "   %s · %s", c.Modality, c.OfferType)
		if c.OfferingID != "" {
			fmt.Fprintf(w, " · %s", c.OfferingID)
		}
		fmt.Fprintln(w)
		if c.Description != "" {
			fmt.Fprintf(w, "   %s\n", utils.Truncate(c.Description, 160))
		}
	}
	return nil
}

// WriteReply writes the bot lines of a chat reply.
func WriteReply(w io.Writer, resp *models.ChatResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	for _, line := range resp.Reply {
		fmt.Fprintf(w, "🤖 %s\n", line)
	}
	fmt.Fprintf(w, "\n(conversation %s)\n", resp.ConversationID)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
