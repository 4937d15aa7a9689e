package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Stream sends a completion request and returns the reply as a
	// sequence of text fragments.
	Stream(ctx context.Context, req CompletionRequest) (Stream, error)
	// Name returns the name of this provider.
	Name() string
}

// Stream yields reply fragments in order. Recv returns io.EOF after the
// last fragment. A stream cannot be restarted.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// ServiceError reports a transport, quota, or response failure of the
// completion service.
type ServiceError struct {
	Provider string
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("completion service %s: %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Collect drains s, passing every fragment to sink (if non-nil), and
// returns the concatenated text. The stream is closed on return.
func Collect(s Stream, sink func(string)) (string, error) {
	defer s.Close()

	var sb strings.Builder
	for {
		frag, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(frag)
		if sink != nil {
			sink(frag)
		}
	}
}

// Generate runs req against p. With a nil sink it issues a plain
// completion; otherwise it streams and forwards each fragment to sink.
func Generate(ctx context.Context, p Provider, req CompletionRequest, sink func(string)) (*CompletionResponse, error) {
	if sink == nil {
		return p.Complete(ctx, req)
	}

	s, err := p.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	content, err := Collect(s, sink)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model := req.Model
	return &CompletionResponse{
		Content:      content,
		InputTokens:  estimateMessages(req.Messages),
		OutputTokens: EstimateTokens(content),
		Model:        model,
		FinishReason: "stop",
	}, nil
}

func estimateMessages(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		n += EstimateTokens(string(m.Role)) + EstimateTokens(m.Content)
	}
	return n
}

// staticStream replays a fixed list of fragments.
type staticStream struct {
	frags []string
	pos   int
}

// NewStaticStream returns a Stream that yields frags in order.
func NewStaticStream(frags ...string) Stream {
	return &staticStream{frags: frags}
}

func (s *staticStream) Recv() (string, error) {
	if s.pos >= len(s.frags) {
		return "", io.EOF
	}
	f := s.frags[s.pos]
	s.pos++
	return f, nil
}

func (s *staticStream) Close() error { return nil }
