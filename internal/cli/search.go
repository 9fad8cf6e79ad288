package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docqa-backend/internal/vectorindex"
)

const snippetRunes = 160

var (
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Show the closest indexed chunks without calling the model",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

type searchOutput struct {
	DocumentID   string  `json:"documentId"`
	DocumentName string  `json:"documentName,omitempty"`
	ChunkIndex   int     `json:"chunkIndex"`
	Source       string  `json:"source"`
	Score        float64 `json:"score"`
	Text         string  `json:"text"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	res, err := a.RetrievalService.Search(cmd.Context(), userID, strings.Join(args, " "), searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		out := make([]searchOutput, 0, len(res.Matches))
		for _, m := range res.Matches {
			out = append(out, searchOutput{
				DocumentID:   m.DocumentID,
				DocumentName: m.DocumentName,
				ChunkIndex:   m.ChunkIndex,
				Source:       vectorindex.ShortDocumentTag(m.DocumentID),
				Score:        m.Score,
				Text:         m.Text,
			})
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if res.NoDocuments {
		cmd.Println("No results found.")
		return nil
	}
	for i, m := range res.Matches {
		title := m.DocumentName
		if title == "" {
			title = vectorindex.ShortDocumentTag(m.DocumentID)
		}
		cmd.Printf("  [%d] %s #%d (%.2f)\n", i+1, title, m.ChunkIndex, m.Score)
		cmd.Printf("      %s\n", snippet(m.Text))
	}
	return nil
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= snippetRunes {
		return text
	}
	return string(r[:snippetRunes]) + "..."
}
