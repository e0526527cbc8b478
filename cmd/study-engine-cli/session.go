package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/storage"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Track study sessions and progress",
	}
	cmd.AddCommand(
		newUserCreateCmd(),
		newSessionStartCmd(),
		newSessionProgressCmd(),
		newDashboardCmd(),
	)
	return cmd
}

// withStore runs fn against the progress database. Models are not needed here.
func withStore(ctx context.Context, fn func(store *storage.ProgressStore) error) error {
	db, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return fn(storage.NewProgressStore(db, storage.WithPreviewChars(cfg.Pipeline.PreviewChars)))
}

// resolveUser accepts a user ID or a username.
func resolveUser(ctx context.Context, store *storage.ProgressStore, ref string) (*storage.User, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return store.User(ctx, id)
	}
	user, err := store.UserByName(ctx, ref)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("user %q not found; create it with 'study-engine session user-create'", ref)
	}
	return user, err
}

func newUserCreateCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "user-create <username>",
		Short: "Register a learner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStore(ctx, func(store *storage.ProgressStore) error {
				user, err := store.CreateUser(ctx, args[0], email)
				if errors.Is(err, storage.ErrConflict) {
					return errors.New("username or email already registered")
				}
				if err != nil {
					return err
				}
				if jsonMode {
					return ui.JSON(user)
				}
				ui.Success("Created user %s (%s)", user.Username, user.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSessionStartCmd() *cobra.Command {
	var userRef string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a study session for today",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStore(ctx, func(store *storage.ProgressStore) error {
				user, err := resolveUser(ctx, store, userRef)
				if err != nil {
					return err
				}
				session, err := store.StartSession(ctx, user.ID)
				if err != nil {
					return err
				}
				if jsonMode {
					return ui.JSON(session)
				}
				ui.Success("Started session %s for %s", session.ID, user.Username)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&userRef, "user", "u", "", "username or user ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSessionProgressCmd() *cobra.Command {
	var delta storage.ProgressDelta

	cmd := &cobra.Command{
		Use:   "progress <session-id>",
		Short: "Record answered questions and study time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sessionID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid session id %q: %w", args[0], err)
			}
			return withStore(ctx, func(store *storage.ProgressStore) error {
				session, err := store.AddProgress(ctx, sessionID, delta)
				if err != nil {
					return err
				}
				if jsonMode {
					return ui.JSON(session)
				}
				ui.Success("Session %s: %d answered, %d correct, %d minutes",
					session.ID, session.QuestionsAnswered, session.CorrectAnswers, session.StudyMinutes)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&delta.QuestionsAnswered, "answered", 0, "questions answered")
	cmd.Flags().IntVar(&delta.CorrectAnswers, "correct", 0, "questions answered correctly")
	cmd.Flags().IntVar(&delta.StudyMinutes, "minutes", 0, "minutes studied")
	return cmd
}

func newDashboardCmd() *cobra.Command {
	var userRef string

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show a learner's progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStore(ctx, func(store *storage.ProgressStore) error {
				user, err := resolveUser(ctx, store, userRef)
				if err != nil {
					return err
				}
				d, err := store.Dashboard(ctx, user.ID)
				if err != nil {
					return err
				}
				if jsonMode {
					return ui.JSON(d)
				}

				ui.Section("Progress for " + user.Username)
				last := "never"
				if d.LastSession != nil {
					last = d.LastSession.Format("2006-01-02")
				}
				ui.Table([]string{"Metric", "Value"}, [][]string{
					{"Sessions", fmt.Sprint(d.Sessions)},
					{"Questions answered", fmt.Sprint(d.QuestionsAnswered)},
					{"Correct answers", fmt.Sprint(d.CorrectAnswers)},
					{"Accuracy", fmt.Sprintf("%.1f%%", d.Accuracy*100)},
					{"Study time", fmt.Sprintf("%d min", d.StudyMinutes)},
					{"Streak", fmt.Sprintf("%d day(s)", d.StreakDays)},
					{"Last session", last},
				})
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&userRef, "user", "u", "", "username or user ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
