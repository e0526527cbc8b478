package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/config"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/observability"
)

var (
	cfgFile  string
	envFile  string
	verbose  bool
	noColor  bool
	jsonMode bool
)

// session state shared by subcommands, set up in PersistentPreRunE.
var (
	cfg    *config.Config
	logger *observability.Logger
	ui     *UI
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "study-engine",
		Short: "Study assistant: question answering, summaries and quizzes over your documents",
		Long: `study-engine extracts text from PDF, DOCX and plain-text study material and runs
question answering, summarization and quiz generation over it with pre-trained models.
Progress is tracked per user in study sessions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ui = NewUI(cmd.OutOrStdout(), cmd.ErrOrStderr(), jsonMode, noColor)

			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}

			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return err
			}

			level := "warn"
			if verbose {
				level = "debug"
			}
			logger = observability.NewLogger(observability.LogConfig{
				Level:       level,
				Format:      "console",
				Output:      cmd.ErrOrStderr(),
				ServiceName: "study-engine-cli",
			})
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("CONFIG_PATH"), "config file path")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	root.PersistentFlags().BoolVar(&jsonMode, "json", false, "print results as JSON")

	root.AddCommand(
		newExtractCmd(),
		newAskCmd(),
		newSummarizeCmd(),
		newQuizCmd(),
		newModelsCmd(),
		newSessionCmd(),
		newVersionCmd(),
	)
	return root
}
