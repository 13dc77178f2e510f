package generation

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"

	"github.com/hyperjump/nutriguide/internal/config"
)

// OllamaGenerator streams completions from a model served by Ollama. Consecutive failures
// open a circuit breaker; while it is open the generator reports not ready and streams
// the Unavailable notice without calling the server.
type OllamaGenerator struct {
	llm     llms.Model
	cfg     config.GenerationConfig
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewOllamaGenerator creates a generator for cfg.Model at cfg.BaseURL. No request is made
// until the first Stream. On error the returned generator is still usable and only ever
// streams the Unavailable notice.
func NewOllamaGenerator(cfg config.GenerationConfig, logger *zap.Logger) (*OllamaGenerator, error) {
	llm, err := ollama.New(ollama.WithServerURL(cfg.BaseURL), ollama.WithModel(cfg.Model))
	if err != nil {
		return newOllamaGenerator(nil, cfg, logger), err
	}
	return newOllamaGenerator(llm, cfg, logger), nil
}

func newOllamaGenerator(llm llms.Model, cfg config.GenerationConfig, logger *zap.Logger) *OllamaGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OllamaGenerator{
		llm:    llm,
		cfg:    cfg,
		logger: logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "generation",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 2
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("generation breaker state change",
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
	}
}

// Ready reports whether the model is expected to answer.
func (g *OllamaGenerator) Ready() bool {
	return g.llm != nil && g.breaker.State() != gobreaker.StateOpen
}

func (g *OllamaGenerator) callOptions() []llms.CallOption {
	return []llms.CallOption{
		llms.WithTemperature(g.cfg.Temperature),
		llms.WithTopP(g.cfg.TopP),
		llms.WithTopK(g.cfg.TopK),
		llms.WithMaxTokens(g.cfg.NumPredict),
		llms.WithRepetitionPenalty(g.cfg.RepeatPenalty),
	}
}

// Stream sends prompt to the model and yields fragments as they arrive. A failed request
// yields the Unavailable notice instead of an error; only cancellation of ctx surfaces as
// an error.
func (g *OllamaGenerator) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !g.Ready() {
			yield(Unavailable, nil)
			return
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		tokens := make(chan string)
		done := make(chan error, 1)
		go func() {
			defer close(tokens)
			opts := append(g.callOptions(), llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				select {
				case tokens <- string(chunk):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}))
			_, err := g.breaker.Execute(func() (interface{}, error) {
				return llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, opts...)
			})
			done <- err
		}()

		streamed := false
		for tok := range tokens {
			if tok == "" {
				continue
			}
			streamed = true
			if !yield(tok, nil) {
				cancel()
				for range tokens {
				}
				return
			}
		}
		err := <-done
		switch {
		case err == nil:
		case ctx.Err() != nil:
			yield("", ctx.Err())
		default:
			g.logger.Warn("generation failed", zap.String("model", g.cfg.Model), zap.Bool("partial", streamed), zap.Error(err))
			if streamed && !yield("\n\n", nil) {
				return
			}
			yield(Unavailable, nil)
		}
	}
}
