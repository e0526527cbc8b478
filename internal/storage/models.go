// Package storage persists users, study sessions, document history and task outcomes.
package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
)

// User is a learner.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentRecord is one extracted document in the upload history.
type DocumentRecord struct {
	ID             uuid.UUID         `json:"id"`
	DocumentID     domain.DocumentID `json:"document"`
	Format         domain.Format     `json:"format"`
	CharCount      int               `json:"char_count"`
	UploadDate     time.Time         `json:"upload_date"`
	ContentPreview string            `json:"content_preview"`
}

// ProgressDelta is added to a study session's counters.
type ProgressDelta struct {
	QuestionsAnswered int `json:"questions_answered"`
	CorrectAnswers    int `json:"correct_answers"`
	StudyMinutes      int `json:"study_time_minutes"`
}

// Dashboard aggregates a user's study sessions.
type Dashboard struct {
	UserID            uuid.UUID  `json:"user_id"`
	Sessions          int        `json:"sessions"`
	QuestionsAnswered int        `json:"questions_answered"`
	CorrectAnswers    int        `json:"correct_answers"`
	Accuracy          float64    `json:"accuracy"`
	StudyMinutes      int        `json:"study_time_minutes"`
	StreakDays        int        `json:"streak_days"`
	LastSession       *time.Time `json:"last_session,omitempty"`
}
