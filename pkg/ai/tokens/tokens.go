// Package tokens estimates token counts for providers that don't report
// real usage, grounded on BaSui01-agentflow's llm/tokenizer package (lazy
// tiktoken.GetEncoding init behind a sync.Once, since it may fetch BPE data
// on first use). Cloud providers with a known OpenAI-family tokenizer hint
// get an exact tiktoken count; everything else (Claude, Gemini, GLM, local
// GGUF checkpoints) falls back to the chars/4 heuristic
// original_source/codeconcat/ai/base.py uses for its own estimate.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// encodingFor maps a models.Config.TokenizerHint to a tiktoken encoding
// name; hints with no tiktoken-compatible encoding are absent here and
// fall back to the heuristic.
var encodingFor = map[string]string{
	"o200k_base":  "o200k_base",
	"cl100k_base": "cl100k_base",
	"gpt2":        "gpt2",
}

var (
	encodersMu sync.Mutex
	encoders   = map[string]*tiktoken.Tiktoken{}
)

// Estimate returns a token count for text given a tokenizer hint (typically
// models.Config.TokenizerHint). Unknown or non-tiktoken hints use the
// chars/4 heuristic; a tiktoken encoding load failure also falls back to
// the heuristic rather than propagating an error, since token estimation
// is advisory (cost display), never correctness-critical.
func Estimate(text, tokenizerHint string) int {
	encodingName, ok := encodingFor[tokenizerHint]
	if !ok {
		return heuristic(text)
	}

	enc, err := encoderFor(encodingName)
	if err != nil {
		return heuristic(text)
	}
	return len(enc.Encode(text, nil, nil))
}

func encoderFor(encodingName string) (*tiktoken.Tiktoken, error) {
	encodersMu.Lock()
	defer encodersMu.Unlock()

	if enc, ok := encoders[encodingName]; ok {
		return enc, nil
	}

	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	encoders[encodingName] = enc
	return enc, nil
}

// heuristic approximates token count as one token per four characters, the
// same rough ratio original_source/codeconcat/ai/base.py's
// _estimate_tokens uses for providers with no real tokenizer available.
func heuristic(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}
