package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docqa-backend/internal/retrieval"
)

var (
	askTopK  int
	askModel string
	askJSON  bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the user's indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (0 uses the server default)")
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "model id override")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

type askOutput struct {
	Answer      string   `json:"answer"`
	Sources     []string `json:"sources"`
	NoDocuments bool     `json:"noDocuments"`
	Failed      bool     `json:"failed"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	ans, err := a.RetrievalService.Answer(cmd.Context(), retrieval.Query{
		UserID:   userID,
		Question: strings.Join(args, " "),
		TopK:     askTopK,
		Model:    askModel,
	})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		out := askOutput{Answer: ans.Text, Sources: ans.Sources, NoDocuments: ans.NoDocuments, Failed: ans.Failed}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(ans.Text)
	if len(ans.Sources) > 0 {
		cmd.Println()
		cmd.Printf("Sources: %s\n", strings.Join(ans.Sources, ", "))
	}
	return nil
}
