package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/app"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/study"
)

func openApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, cfg, logger, app.Options{})
}

// uploadFile reads path and extracts it. The declared type is left empty so the content is sniffed.
func uploadFile(ctx context.Context, a *app.App, path string) (*study.Document, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	stop := ui.Spinner(fmt.Sprintf("Extracting %s...", filepath.Base(path)))
	doc, err := a.Service.Upload(ctx, blob, "", filepath.Base(path))
	stop()
	return doc, err
}

func loadModels(ctx context.Context, a *app.App) error {
	stop := ui.Spinner(fmt.Sprintf("Loading models (%s)...", cfg.Models.Provider))
	status, err := a.Service.LoadModels(ctx)
	stop()
	if err != nil {
		return err
	}
	for name, reason := range status.Failed {
		ui.Warning("%s unavailable: %s", name, reason)
	}
	return nil
}

// prepare extracts the document and loads models, the common prelude of every task command.
func prepare(ctx context.Context, path string) (*app.App, *study.Document, error) {
	a, err := openApp(ctx)
	if err != nil {
		return nil, nil, err
	}
	doc, err := uploadFile(ctx, a, path)
	if err != nil {
		_ = a.Close()
		return nil, nil, err
	}
	if err := loadModels(ctx, a); err != nil {
		_ = a.Close()
		return nil, nil, err
	}
	return a, doc, nil
}

func newExtractCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract and preview the text of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := uploadFile(ctx, a, args[0])
			if err != nil {
				return err
			}

			if jsonMode {
				return ui.JSON(doc)
			}

			ui.Success("Extracted %s", doc.ID.Filename)
			ui.Table([]string{"Field", "Value"}, [][]string{
				{"Document ID", doc.Key},
				{"Format", string(doc.Format)},
				{"Characters", fmt.Sprint(doc.Chars)},
				{"Words", fmt.Sprint(doc.Words)},
				{"SHA-256", doc.ID.SHA256},
			})

			if full {
				text, err := a.Service.Text(ctx, doc.Key)
				if err != nil {
					return err
				}
				ui.Section("Text")
				ui.Text(text)
				return nil
			}
			ui.Section("Preview")
			ui.Text(doc.Preview)
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "print the full extracted text")
	return cmd
}

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <file> <question>",
		Short: "Answer a question from a document",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, doc, err := prepare(ctx, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			question := strings.Join(args[1:], " ")
			res, err := a.Service.Ask(ctx, doc.Key, question)
			if err != nil {
				return err
			}
			if jsonMode {
				return ui.JSON(res)
			}

			ui.Section("Answer")
			if res.Answer.Text == "" {
				ui.Warning("No answer found in the document.")
				return nil
			}
			ui.Text(res.Answer.Text)
			ui.Info("Confidence: %.0f%%", res.Answer.Confidence*100)
			if res.Answer.LowConfidence {
				ui.Warning("Low confidence answer; consider rephrasing the question.")
			}
			return nil
		},
	}
}

func newSummarizeCmd() *cobra.Command {
	var minLength, maxLength int

	cmd := &cobra.Command{
		Use:   "summarize <file>",
		Short: "Summarize a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, doc, err := prepare(ctx, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			update, finish := ui.WindowBar("Summarizing")
			res, err := a.Service.Run(ctx, doc.Key, domain.SummarizeRequest(minLength, maxLength), update)
			finish()
			if err != nil {
				return err
			}
			if jsonMode {
				return ui.JSON(res)
			}

			s := res.Summary
			ui.Section("Summary")
			if s.Text == "" {
				ui.Warning("The document is too short to summarize.")
				return nil
			}
			ui.Text(s.Text)
			ui.Table([]string{"Original words", "Summary words", "Compression"}, [][]string{{
				fmt.Sprint(s.OriginalWords),
				fmt.Sprint(s.SummaryWords),
				fmt.Sprintf("%.1f%%", s.CompressionRatio*100),
			}})
			if s.WindowsDropped > 0 {
				ui.Warning("Only the first %d sections were summarized; %d more were left out.",
					s.WindowsSummarized+s.WindowsSkipped+len(res.Failures), s.WindowsDropped)
			}
			for _, f := range res.Failures {
				ui.Warning("Section %d failed: %s", f.Window+1, f.Error)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&minLength, "min", 0, "minimum summary length per section (0 uses the configured default)")
	cmd.Flags().IntVar(&maxLength, "max", 0, "maximum summary length per section (0 uses the configured default)")
	return cmd
}

func newQuizCmd() *cobra.Command {
	var (
		count      int
		difficulty string
	)

	cmd := &cobra.Command{
		Use:   "quiz <file>",
		Short: "Generate quiz questions from a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if count == 0 {
				count = cfg.Pipeline.QuizDefaultCount
			}

			a, doc, err := prepare(ctx, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			update, finish := ui.ItemBar("Generating questions")
			res, err := a.Service.Quiz(ctx, doc.Key, count, domain.Difficulty(difficulty), update)
			finish()
			if err != nil {
				return err
			}
			if jsonMode {
				return ui.JSON(res)
			}

			ui.Section(fmt.Sprintf("Quiz (%s)", res.Quiz.Difficulty))
			if len(res.Quiz.Items) == 0 {
				ui.Warning("No sentences long enough to build questions from.")
				return nil
			}
			ui.Table([]string{"#", "Question", "Source"}, lo.Map(res.Quiz.Items, func(item domain.QuizItem, i int) []string {
				return []string{fmt.Sprint(i + 1), item.Prompt, truncate(item.ReferenceSpan, 60)}
			}))
			if len(res.Failures) > 0 {
				ui.Warning("%d question(s) could not be generated.", len(res.Failures))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "number of questions (0 uses the configured default)")
	cmd.Flags().StringVarP(&difficulty, "difficulty", "d", string(domain.DifficultyMedium), "easy, medium or hard")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
