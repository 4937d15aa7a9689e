package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/ziadkadry99/docqa/internal/budget"
	"github.com/ziadkadry99/docqa/internal/llm"
	"github.com/ziadkadry99/docqa/internal/vectordb"
)

// ErrEmptyInput is returned for blank user input.
var ErrEmptyInput = errors.New("chat: empty input")

// ReplyKind tells the caller what a reply is.
type ReplyKind int

const (
	// ReplyAnswer is a model answer, already streamed to the sink if any.
	ReplyAnswer ReplyKind = iota
	// ReplyDeclined acknowledges a "no"; the session is idle again.
	ReplyDeclined
	// ReplyReprompt asks again for yes or no; nothing was recorded.
	ReplyReprompt
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyDeclined:
		return "declined"
	case ReplyReprompt:
		return "reprompt"
	default:
		return "answer"
	}
}

// Reply is the outcome of one Handle call.
type Reply struct {
	Kind    ReplyKind
	Text    string
	Sources []string
	// PromptTokens is the estimated size of the prompt sent to the model.
	PromptTokens int
	Usage        *llm.CompletionResponse
}

// Options configures an Engine.
type Options struct {
	Model       string
	Temperature float64
	TokenBudget int
	TopK        int
	// Stream forwards reply fragments to the sink as they arrive.
	Stream    bool
	Estimator budget.Estimator
}

// Engine runs conversation turns against a completion provider and an
// optional retriever. It holds no per-session state.
type Engine struct {
	provider  llm.Provider
	retriever vectordb.Retriever
	opts      Options
}

// NewEngine creates an Engine. retriever may be nil to disable retrieval.
func NewEngine(provider llm.Provider, retriever vectordb.Retriever, opts Options) *Engine {
	if opts.Estimator == nil {
		opts.Estimator = budget.DefaultEstimator
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	return &Engine{provider: provider, retriever: retriever, opts: opts}
}

// Handle processes one line of user input for sess.
//
// While idle, input is a new question. While awaiting confirmation, "yes"
// or "y" asks for more detail on the previous question, "no" or "n" returns
// to idle, and anything else is answered with a reprompt that changes
// nothing. When streaming is enabled every answer fragment, including the
// trailing sources note and follow-up question, is passed to sink.
//
// A "yes" turn persists MoreInfoRequest as the user message but retrieves
// with the last question answered, not with the literal "yes". If there
// is no earlier question it retrieves with MoreInfoRequest.
//
// If a turn fails the session is left exactly as it was.
func (e *Engine) Handle(ctx context.Context, sess *Session, input string, sink func(string)) (*Reply, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return nil, ErrEmptyInput
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state == StateAwaitingConfirmation {
		switch strings.ToLower(text) {
		case "yes", "y":
			query := sess.lastQuestion
			if query == "" {
				query = MoreInfoRequest
			}
			return e.turn(ctx, sess, MoreInfoRequest, query, sink)
		case "no", "n":
			sess.conv.Append(llm.Message{Role: llm.RoleAssistant, Content: DeclineReply})
			sess.state = StateIdle
			return &Reply{Kind: ReplyDeclined, Text: DeclineReply}, nil
		default:
			return &Reply{Kind: ReplyReprompt, Text: RepromptText}, nil
		}
	}

	reply, err := e.turn(ctx, sess, text, text, sink)
	if err != nil {
		return nil, err
	}
	sess.lastQuestion = text
	return reply, nil
}

// turn appends userText, retrieves with query, and asks the model. On
// error the appended message is removed again.
func (e *Engine) turn(ctx context.Context, sess *Session, userText, query string, sink func(string)) (*Reply, error) {
	mark := sess.conv.Len()
	sess.conv.Append(llm.Message{Role: llm.RoleUser, Content: userText})

	reply, err := e.complete(ctx, sess, query, sink)
	if err != nil {
		sess.conv.truncate(mark)
		slog.Warn("chat turn failed", "session", sess.ID, "error", err)
		return nil, err
	}

	sess.conv.Append(llm.Message{Role: llm.RoleAssistant, Content: reply.Text})
	sess.state = StateAwaitingConfirmation
	return reply, nil
}

func (e *Engine) complete(ctx context.Context, sess *Session, query string, sink func(string)) (*Reply, error) {
	var retrieval *vectordb.Retrieval
	if e.retriever != nil {
		r, err := e.retriever.Query(ctx, query, e.opts.TopK)
		if err != nil {
			return nil, err
		}
		retrieval = r
	}

	trimmed := budget.Fit(sess.conv.Messages(), e.opts.TokenBudget, e.opts.Estimator)
	prompt := AssemblePrompt(trimmed, Context{Retrieval: retrieval, Document: sess.doc})
	promptTokens := budget.MessageTokens(e.opts.Estimator, prompt)

	var streamSink func(string)
	if e.opts.Stream {
		streamSink = sink
	}
	resp, err := llm.Generate(ctx, e.provider, llm.CompletionRequest{
		Model:       e.opts.Model,
		Messages:    prompt,
		Temperature: e.opts.Temperature,
	}, streamSink)
	if err != nil {
		return nil, err
	}

	var sources []string
	if retrieval != nil {
		sources = retrieval.IDs
	}
	suffix := replySuffix(sources)
	if streamSink != nil {
		streamSink(suffix)
	}

	slog.Info("chat turn",
		"session", sess.ID,
		"model", resp.Model,
		"sources", len(sources),
		"prompt_tokens", promptTokens,
		"budget", e.opts.TokenBudget,
		"output_tokens", resp.OutputTokens,
		"cost_usd", llm.EstimateCost(resp.Model, resp.InputTokens, resp.OutputTokens),
	)

	return &Reply{
		Kind:         ReplyAnswer,
		Text:         resp.Content + suffix,
		Sources:      sources,
		PromptTokens: promptTokens,
		Usage:        resp,
	}, nil
}
