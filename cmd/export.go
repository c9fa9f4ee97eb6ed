package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/iksnae/chat-session/internal"
	"github.com/iksnae/chat-session/internal/export"
	"github.com/spf13/cobra"
)

var (
	format    string
	outputDir string
	sessionID string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export sessions to file",
	Long: `Export your sessions with their transcripts to various formats
(jsonl, md, yaml, json). One file is written per session.

Use --session to export a single session. Use 'chat-session list' to see
available session IDs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}

		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		dir := a.assistant.Directory()
		if _, err := dir.List(ctx); err != nil {
			return err
		}

		var only string
		if sessionID != "" {
			s, err := dir.Resolve(sessionID)
			if err != nil {
				return fmt.Errorf("%w (use 'chat-session list' to see available sessions)", err)
			}
			only = s.ID
		}

		var bundle *internal.ExportBundle
		err = internal.ShowProgress(ctx, fmt.Sprintf("Fetching history of %d session(s)", dir.Len()), func() error {
			var err error
			bundle, err = a.assistant.CollectExport(ctx)
			return err
		})
		if err != nil {
			return err
		}

		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		exported, unavailable := 0, 0
		for i := range bundle.Sessions {
			session := &bundle.Sessions[i]
			if only != "" && session.Session.ID != only {
				continue
			}
			if session.Error != "" {
				unavailable++
			}

			path := filepath.Join(outputDir, export.FileName(session, exporter))
			if err := writeExport(path, session, exporter); err != nil {
				internal.LogError("Failed to export session %s: %v", session.Session.ID, err)
				continue
			}
			exported++
		}

		out := cmd.OutOrStdout()
		internal.PrintSuccess(out, fmt.Sprintf("Exported %d session(s) to %s", exported, outputDir))
		if unavailable > 0 {
			internal.PrintWarning(out, fmt.Sprintf("%d session(s) exported without history", unavailable))
		}
		return nil
	},
}

func writeExport(path string, session *internal.SessionExport, exporter export.Exporter) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := exporter.Export(session, file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Export format ("+strings.Join(export.Formats(), ", ")+")")
	exportCmd.Flags().StringVarP(&outputDir, "out", "o", "./exports", "Output directory")
	exportCmd.Flags().StringVarP(&sessionID, "session", "s", "", "Export a single session by ID")
}
