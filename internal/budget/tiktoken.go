package budget

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"

	"github.com/ziadkadry99/docqa/internal/config"
)

// Tiktoken counts tokens with the BPE encoding of a model.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the encoding for model, falling back to cl100k_base
// for models tiktoken does not know.
func NewTiktoken(model string) (*Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Estimate(text string) int {
	return max(1, len(t.enc.Encode(text, nil, nil)))
}

// NewEstimator returns the estimator selected by kind. If the tiktoken
// encoding cannot be loaded the character estimator is used instead.
func NewEstimator(kind config.EstimatorType, model string) Estimator {
	if kind != config.EstimatorTiktoken {
		return DefaultEstimator
	}
	t, err := NewTiktoken(model)
	if err != nil {
		slog.Warn("tiktoken unavailable, using character estimate", "model", model, "error", err)
		return DefaultEstimator
	}
	return t
}
