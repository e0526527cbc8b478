package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/chunk"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
)

const questionPromptPrefix = "generate question: "

// question answers req.Question from the leading context window of the text.
func (o *Orchestrator) question(ctx context.Context, t *task) error {
	question := strings.TrimSpace(t.req.Question)
	if question == "" {
		return domain.InvalidTask("question is empty")
	}

	// Step 1: truncate the text to the QA context window
	if err := t.machine.advance(domain.StateChunking); err != nil {
		return err
	}
	passage := chunk.Truncate(t.text, o.caps.Limit(domain.CapabilityQA))

	// Step 2: one dispatch with the full question and the truncated context
	if err := t.machine.advance(domain.StateDispatching); err != nil {
		return err
	}
	qa, err := o.caps.QuestionAnswerer()
	if err != nil {
		return err
	}

	answer, confidence, err := qa.Answer(ctx, question, passage)
	o.metrics.IncDispatch(string(domain.CapabilityQA), err)
	if err != nil {
		return domain.DispatchFailure("answer question", err)
	}

	// Step 3: apply the confidence policy
	if err := t.machine.advance(domain.StateAggregating); err != nil {
		return err
	}
	answer = strings.TrimSpace(answer)
	t.result.Answer = &domain.Answer{
		Text:          answer,
		Confidence:    confidence,
		SourceWindow:  0,
		LowConfidence: answer == "" || confidence < o.policy.ConfidenceThreshold,
	}

	t.logger.Debug().
		Float64("confidence", confidence).
		Bool("low_confidence", t.result.Answer.LowConfidence).
		Msg("Question answered")

	return nil
}

// summarize condenses the leading windows of the text and joins the partial summaries.
func (o *Orchestrator) summarize(ctx context.Context, t *task) error {
	minLength, maxLength := t.req.MinLength, t.req.MaxLength
	if minLength == 0 && maxLength == 0 {
		minLength, maxLength = o.policy.SummaryMinLength, o.policy.SummaryMaxLength
	}
	if minLength < 0 || maxLength <= 0 || maxLength < minLength {
		return domain.InvalidTask(fmt.Sprintf("invalid summary length bounds %d..%d", minLength, maxLength))
	}

	// Step 1: chunk, keeping at most SummaryMaxWindows leading windows
	if err := t.machine.advance(domain.StateChunking); err != nil {
		return err
	}
	windows, total, err := chunk.Windows(t.text,
		o.caps.Limit(domain.CapabilitySummarization), o.policy.SummaryOverlap, o.policy.SummaryMaxWindows)
	if err != nil {
		return err
	}

	summary := &domain.Summary{
		OriginalWords:  chunk.WordCount(t.text),
		WindowsDropped: total - len(windows),
	}
	o.metrics.AddWindows("dropped", summary.WindowsDropped)

	// Step 2: summarize every substantial window
	if err := t.machine.advance(domain.StateDispatching); err != nil {
		return err
	}
	summarizer, err := o.caps.Summarizer()
	if err != nil {
		return err
	}

	var parts []string
	attempted := 0
	for i, w := range windows {
		if chunk.WordCount(w.Text) <= o.policy.SummaryMinWords {
			summary.WindowsSkipped++
		} else {
			attempted++
			out, err := summarizer.Summarize(ctx, w.Text, minLength, maxLength)
			o.metrics.IncDispatch(string(domain.CapabilitySummarization), err)
			if err != nil {
				t.logger.Warn().Int("window", w.Index).Err(err).Msg("Window summarization failed")
				t.result.Failures = append(t.result.Failures, domain.WindowFailure{Window: w.Index, Error: err.Error()})
			} else {
				parts = append(parts, strings.TrimSpace(out))
			}
		}

		if t.progress != nil {
			t.progress(i+1, len(windows))
		}
	}

	o.metrics.AddWindows("skipped", summary.WindowsSkipped)
	o.metrics.AddWindows("failed", len(t.result.Failures))
	o.metrics.AddWindows("summarized", len(parts))

	if attempted > 0 && len(parts) == 0 {
		return domain.DispatchFailure(fmt.Sprintf("all %d summarized windows failed", attempted), nil)
	}

	// Step 3: join partial summaries in window order
	if err := t.machine.advance(domain.StateAggregating); err != nil {
		return err
	}
	summary.Text = strings.Join(parts, " ")
	summary.WindowsSummarized = len(parts)
	summary.SummaryWords = chunk.WordCount(summary.Text)
	summary.CompressionRatio = compressionRatio(summary.Text, t.text)
	t.result.Summary = summary

	t.logger.Debug().
		Int("windows_summarized", summary.WindowsSummarized).
		Int("windows_skipped", summary.WindowsSkipped).
		Int("windows_dropped", summary.WindowsDropped).
		Float64("compression_ratio", summary.CompressionRatio).
		Msg("Summary aggregated")

	return nil
}

// quiz generates one question per qualifying sentence, in source order.
func (o *Orchestrator) quiz(ctx context.Context, t *task) error {
	if t.req.Count <= 0 {
		return domain.InvalidTask(fmt.Sprintf("quiz count must be positive, got %d", t.req.Count))
	}
	difficulty := t.req.Difficulty
	if difficulty == "" {
		difficulty = domain.DifficultyMedium
	}
	if !lo.Contains([]domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard}, difficulty) {
		return domain.InvalidTask(fmt.Sprintf("unknown difficulty %q", difficulty))
	}

	// Step 1: pick the first Count sentences with enough words
	if err := t.machine.advance(domain.StateChunking); err != nil {
		return err
	}
	candidates := lo.Filter(chunk.Sentences(t.text), func(s string, _ int) bool {
		return chunk.WordCount(s) >= o.policy.QuizMinWords
	})
	selected := candidates[:min(t.req.Count, len(candidates))]

	// Step 2: prompt the generator once per sentence
	if err := t.machine.advance(domain.StateDispatching); err != nil {
		return err
	}
	generator, err := o.caps.QuestionGenerator()
	if err != nil {
		return err
	}

	limit := o.caps.Limit(domain.CapabilityQuestionGeneration)
	items := make([]domain.QuizItem, 0, len(selected))
	for i, sentence := range selected {
		prompt := questionPromptPrefix + chunk.Truncate(sentence, limit)
		out, err := generator.Generate(ctx, prompt, o.policy.QuizMaxLength)
		if err == nil && strings.TrimSpace(out) == "" {
			err = errors.New("empty generation")
		}
		o.metrics.IncDispatch(string(domain.CapabilityQuestionGeneration), err)

		if err != nil {
			t.logger.Warn().Int("item", i).Err(err).Msg("Question generation failed")
			t.result.Failures = append(t.result.Failures, domain.WindowFailure{Window: i, Error: err.Error()})
		} else {
			items = append(items, domain.QuizItem{Prompt: strings.TrimSpace(out), ReferenceSpan: sentence})
		}

		if t.progress != nil {
			t.progress(i+1, len(selected))
		}
	}

	if len(selected) > 0 && len(items) == 0 {
		return domain.DispatchFailure(fmt.Sprintf("all %d question generations failed", len(selected)), nil)
	}

	// Step 3: keep source order
	if err := t.machine.advance(domain.StateAggregating); err != nil {
		return err
	}
	t.result.Quiz = &domain.Quiz{Difficulty: difficulty, Items: items}

	t.logger.Debug().
		Int("candidates", len(candidates)).
		Int("items", len(items)).
		Msg("Quiz aggregated")

	return nil
}

// compressionRatio is 1 - len(summary)/len(original) in characters, or 0 for empty text.
func compressionRatio(summary, original string) float64 {
	n := utf8.RuneCountInString(original)
	if n == 0 {
		return 0
	}
	return 1 - float64(utf8.RuneCountInString(summary))/float64(n)
}
