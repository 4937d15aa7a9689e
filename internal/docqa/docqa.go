// Package docqa answers a single question about, or summarizes, one
// uploaded document without any conversation history.
package docqa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ziadkadry99/docqa/internal/llm"
	"github.com/ziadkadry99/docqa/internal/loader"
)

// ErrNoQuestion is returned by Answer for a blank question.
var ErrNoQuestion = errors.New("docqa: question is required")

// SummaryStyle selects the shape of a summary.
type SummaryStyle string

const (
	Style100Words   SummaryStyle = "100 words"
	StyleParagraphs SummaryStyle = "2 connecting paragraphs"
	StyleBullets    SummaryStyle = "5 bullet points"
)

// Styles lists the summary styles in display order.
var Styles = []SummaryStyle{Style100Words, StyleParagraphs, StyleBullets}

// ParseStyle accepts a style name or a short alias (words, paragraphs,
// bullets).
func ParseStyle(s string) (SummaryStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Style100Words), "words", "100":
		return Style100Words, nil
	case string(StyleParagraphs), "paragraphs", "2":
		return StyleParagraphs, nil
	case string(StyleBullets), "bullets", "5", "":
		return StyleBullets, nil
	}
	return "", fmt.Errorf("unknown summary style %q", s)
}

// Instruction is the summary request sent to the model.
func (s SummaryStyle) Instruction() string {
	switch s {
	case Style100Words:
		return "Summarize the document in about 100 words."
	case StyleParagraphs:
		return "Summarize the document in 2 connecting paragraphs."
	default:
		return "Summarize the document in exactly 5 bullet points."
	}
}

// AnswerPrompt builds the single user message for a question.
func AnswerPrompt(document, question string) string {
	return fmt.Sprintf("Here's a document:\n\n%s\n\n---\n\n%s", document, question)
}

// SummaryPrompt builds the single user message for a summary with an
// optional follow-up question.
func SummaryPrompt(document string, style SummaryStyle, question string) string {
	prompt := style.Instruction()
	if q := strings.TrimSpace(question); q != "" {
		prompt += "\n\nThen answer this question: " + q
	}
	return fmt.Sprintf("Here is the document:\n\n%s\n\n%s", document, prompt)
}

// Options selects the models used by a Service.
type Options struct {
	Model         string // questions
	SummaryModel  string // summaries
	AdvancedModel string // summaries with Advanced set
	Temperature   float64
}

// SummaryRequest describes one summary.
type SummaryRequest struct {
	Style    SummaryStyle
	Question string
	Advanced bool
}

// Service sends one-shot document prompts to a provider.
type Service struct {
	provider llm.Provider
	opts     Options
}

// New creates a Service.
func New(provider llm.Provider, opts Options) *Service {
	if opts.SummaryModel == "" {
		opts.SummaryModel = opts.Model
	}
	if opts.AdvancedModel == "" {
		opts.AdvancedModel = opts.SummaryModel
	}
	return &Service{provider: provider, opts: opts}
}

// Answer asks question about doc. A non-nil sink receives the reply as it
// streams.
func (s *Service) Answer(ctx context.Context, doc *loader.Document, question string, sink func(string)) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrNoQuestion
	}
	return s.run(ctx, s.opts.Model, AnswerPrompt(doc.Text, question), sink)
}

// Summarize summarizes doc in the requested style.
func (s *Service) Summarize(ctx context.Context, doc *loader.Document, req SummaryRequest, sink func(string)) (string, error) {
	model := s.opts.SummaryModel
	if req.Advanced {
		model = s.opts.AdvancedModel
	}
	return s.run(ctx, model, SummaryPrompt(doc.Text, req.Style, req.Question), sink)
}

func (s *Service) run(ctx context.Context, model, prompt string, sink func(string)) (string, error) {
	resp, err := llm.Generate(ctx, s.provider, llm.CompletionRequest{
		Model:       model,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature: s.opts.Temperature,
	}, sink)
	if err != nil {
		return "", err
	}
	slog.Info("document prompt",
		"model", model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"cost_usd", llm.EstimateCost(model, resp.InputTokens, resp.OutputTokens),
	)
	return resp.Content, nil
}
