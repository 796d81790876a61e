package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/use-agent/postwatch/extract"
	"github.com/use-agent/postwatch/htmldoc"
	"github.com/use-agent/postwatch/models"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <handle> <file.html>",
	Short: "Run the extractor against a saved profile page.",
	Long: `inspect parses a saved HTML page, such as the error_<handle>.html dump
written after a failed run, and prints the post record the extractor
would produce. Nothing is delivered and no marker is written.`,
	Args:          usageArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		handle, err := models.NormalizeHandle(args[0])
		if err != nil {
			return err
		}

		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("open page: %w", err)
		}
		defer f.Close()

		doc, err := htmldoc.Parse(f)
		if err != nil {
			return err
		}

		extractor, err := extract.New(cfg.Target.BaseURL, slog.Default())
		if err != nil {
			return models.NewRunError(models.ErrCodeConfig, "invalid target base URL", err)
		}
		rec, err := extractor.Latest(cmd.Context(), doc, handle)
		if err != nil {
			return err
		}

		renderRecord(cmd.OutOrStdout(), rec)
		return nil
	},
}

func renderRecord(w io.Writer, rec *models.PostRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"handle", rec.Handle},
		{"author", rec.AuthorName},
		{"author handle", rec.AuthorHandle},
		{"url", rec.CanonicalURL},
		{"timestamp", rec.Timestamp},
		{"text", rec.BodyText},
		{"media", rec.MediaURL},
		{"avatar", rec.AvatarURL},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 80},
	})
	t.Render()
}
