// Package generation streams model answers for assembled prompts.
package generation

import (
	"context"
	"iter"
	"strings"
)

// Unavailable is the single fragment streamed when the model cannot be reached.
const Unavailable = "⚠️ AI Model Unavailable. Please ensure Ollama is running (`ollama serve`)."

// Generator produces an answer for a prompt as a lazy, finite stream of text fragments.
// A stream can be ranged over once; breaking out of the loop cancels the request.
type Generator interface {
	Stream(ctx context.Context, prompt string) iter.Seq2[string, error]
	Ready() bool
}

// Collect drains stream and returns the concatenated text.
func Collect(stream iter.Seq2[string, error]) (string, error) {
	var b strings.Builder
	for frag, err := range stream {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(frag)
	}
	return b.String(), nil
}
