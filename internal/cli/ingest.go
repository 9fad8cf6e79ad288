package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"docqa-backend/internal/ingest"
)

var (
	ingestName string
	ingestJSON bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Extract, chunk, embed and index local files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestName, "name", "n", "", "document name (single file only; defaults to the file name)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(ingestCmd)
}

type ingestOutput struct {
	File       string `json:"file"`
	DocumentID string `json:"documentId"`
	ChunkCount int    `json:"chunkCount"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestName != "" && len(args) > 1 {
		return fmt.Errorf("--name applies to a single file")
	}
	a, err := loadApp()
	if err != nil {
		return err
	}

	results := make([]ingestOutput, 0, len(args))
	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if info.Size() > ingest.MaxDocumentBytes {
			return fmt.Errorf("%s: %w", path, ingest.ErrTooLarge)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		name := ingestName
		if name == "" {
			name = filepath.Base(path)
		}
		res, err := a.Pipeline.Ingest(cmd.Context(), ingest.Request{
			UserID:       userID,
			DocumentName: name,
			FileName:     filepath.Base(path),
			Data:         data,
		})
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		results = append(results, ingestOutput{File: path, DocumentID: res.DocumentID, ChunkCount: res.ChunkCount})
	}

	if ingestJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	for _, r := range results {
		cmd.Printf("Ingested %s as %s (%d chunks)\n", r.File, r.DocumentID, r.ChunkCount)
	}
	return nil
}
