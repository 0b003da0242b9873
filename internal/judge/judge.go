// Package judge talks to the external LLM judge and manages the rotating
// pool of credentials used to call it.
package judge

import "context"

// Generator produces a completion for prompt using the named model.
type Generator interface {
	Generate(ctx context.Context, model string, prompt string) (string, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(ctx context.Context, model string, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, model string, prompt string) (string, error) {
	return f(ctx, model, prompt)
}
