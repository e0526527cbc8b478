package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Format is a supported upload format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatText Format = "txt"
)

// DocumentID identifies a document by filename and content hash.
type DocumentID struct {
	Filename string `json:"filename"`
	SHA256   string `json:"sha256"`
}

// NewDocumentID computes the identity of an uploaded blob.
func NewDocumentID(filename string, blob []byte) DocumentID {
	sum := sha256.Sum256(blob)
	return DocumentID{
		Filename: filename,
		SHA256:   hex.EncodeToString(sum[:]),
	}
}

// Key returns a compact string form usable as a cache key or URL segment.
func (id DocumentID) Key() string {
	sum := sha256.Sum256([]byte(id.Filename + "\x00" + id.SHA256))
	return hex.EncodeToString(sum[:16])
}

// Document is an uploaded study document and, once processed, its extracted text.
type Document struct {
	ID           DocumentID `json:"id"`
	Data         []byte     `json:"-"`
	DeclaredType string     `json:"declared_type"`
	Format       Format     `json:"format"`
	Text         *string    `json:"-"`
	ExtractedAt  *time.Time `json:"extracted_at,omitempty"`
}

// Extracted reports whether the document's text has been computed.
func (d *Document) Extracted() bool {
	return d.Text != nil
}

// TextWindow is a bounded slice of a document's text. Offset and Length count characters (runes).
type TextWindow struct {
	Index  int    `json:"index"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	Text   string `json:"text"`
}

// End returns the exclusive end offset of the window.
func (w TextWindow) End() int {
	return w.Offset + w.Length
}

// CapabilityName names an inference capability.
type CapabilityName string

const (
	CapabilityQA                 CapabilityName = "extractive-qa"
	CapabilitySummarization      CapabilityName = "summarization"
	CapabilityQuestionGeneration CapabilityName = "question-generation"
)

// AllCapabilities lists capabilities in load order.
var AllCapabilities = []CapabilityName{
	CapabilitySummarization,
	CapabilityQA,
	CapabilityQuestionGeneration,
}

// TaskKind tags a task request and its result.
type TaskKind string

const (
	TaskQuestion     TaskKind = "question"
	TaskSummarize    TaskKind = "summarize"
	TaskGenerateQuiz TaskKind = "generate_quiz"
)

// Difficulty is the requested quiz difficulty.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// TaskRequest describes one user action. Exactly one of the payload fields is set, matching Kind.
type TaskRequest struct {
	Kind       TaskKind
	Question   string
	MinLength  int
	MaxLength  int
	Count      int
	Difficulty Difficulty
}

// QuestionRequest builds a question task.
func QuestionRequest(question string) TaskRequest {
	return TaskRequest{Kind: TaskQuestion, Question: question}
}

// SummarizeRequest builds a summarize task with summary length bounds (in model tokens).
func SummarizeRequest(minLength, maxLength int) TaskRequest {
	return TaskRequest{Kind: TaskSummarize, MinLength: minLength, MaxLength: maxLength}
}

// QuizRequest builds a quiz generation task.
func QuizRequest(count int, difficulty Difficulty) TaskRequest {
	return TaskRequest{Kind: TaskGenerateQuiz, Count: count, Difficulty: difficulty}
}

// TaskState is a state of the per-task state machine.
type TaskState string

const (
	StateIdle        TaskState = "idle"
	StateChunking    TaskState = "chunking_in_progress"
	StateDispatching TaskState = "dispatching_to_model"
	StateAggregating TaskState = "aggregating"
	StateDone        TaskState = "done"
	StateFailed      TaskState = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s TaskState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Transition is one recorded state change of a task.
type Transition struct {
	From TaskState `json:"from"`
	To   TaskState `json:"to"`
	At   time.Time `json:"at"`
}

// Answer is the result of a question task.
type Answer struct {
	Text          string  `json:"answer"`
	Confidence    float64 `json:"confidence"`
	SourceWindow  int     `json:"source_window"`
	LowConfidence bool    `json:"low_confidence"`
}

// Summary is the result of a summarize task.
type Summary struct {
	Text              string  `json:"summary"`
	CompressionRatio  float64 `json:"compression_ratio"`
	OriginalWords     int     `json:"original_words"`
	SummaryWords      int     `json:"summary_words"`
	WindowsSummarized int     `json:"windows_summarized"`
	WindowsSkipped    int     `json:"windows_skipped"`
	WindowsDropped    int     `json:"windows_dropped"`
}

// QuizItem pairs a generated question with the sentence it was generated from.
type QuizItem struct {
	Prompt        string `json:"prompt"`
	ReferenceSpan string `json:"reference_span"`
}

// Quiz is the result of a quiz generation task.
type Quiz struct {
	Difficulty Difficulty `json:"difficulty"`
	Items      []QuizItem `json:"items"`
}

// WindowFailure records a per-window dispatch failure that was excluded from aggregation.
type WindowFailure struct {
	Window int    `json:"window"`
	Error  string `json:"error"`
}

// TaskResult is the outcome of one task. Exactly one of Answer, Summary, Quiz is set on success.
type TaskResult struct {
	TaskID   uuid.UUID       `json:"task_id"`
	Kind     TaskKind        `json:"kind"`
	State    TaskState       `json:"state"`
	Answer   *Answer         `json:"answer,omitempty"`
	Summary  *Summary        `json:"summary,omitempty"`
	Quiz     *Quiz           `json:"quiz,omitempty"`
	Failures []WindowFailure `json:"failures,omitempty"`
	History  []Transition    `json:"history"`
	Duration time.Duration   `json:"duration"`
}

// Outcome is the structured record reported to the persistence boundary after each task.
type Outcome struct {
	ID         uuid.UUID  `json:"id"`
	DocumentID DocumentID `json:"document_id"`
	TaskKind   TaskKind   `json:"task_kind"`
	Success    bool       `json:"success"`
	ErrorKind  Kind       `json:"error_kind,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// SessionRecord is a persisted study session.
type SessionRecord struct {
	ID                uuid.UUID `json:"id"`
	UserID            uuid.UUID `json:"user_id"`
	SessionDate       time.Time `json:"session_date"`
	QuestionsAnswered int       `json:"questions_answered"`
	CorrectAnswers    int       `json:"correct_answers"`
	StudyMinutes      int       `json:"study_time_minutes"`
}
