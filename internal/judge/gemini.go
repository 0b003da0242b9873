package judge

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/ETAnderson/grader/internal/errors"
)

type GeminiConfig struct {
	// BaseURL overrides the Gemini API endpoint. Empty uses the SDK default.
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// GeminiClient calls generateContent through the genai SDK with a single
// key. It does not retry; retries belong to the invoker.
type GeminiClient struct {
	client  *genai.Client
	timeout time.Duration
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New(errors.EMisconfigured, "gemini api key required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, errors.Wrap(errors.EMisconfigured, "gemini client", err)
	}
	return &GeminiClient{client: client, timeout: timeout}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, model string, prompt string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Models.GenerateContent(reqCtx, model, genai.Text(prompt), nil)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", classify(err)
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return "", errors.Newf(errors.EPermanentExternal, "gemini blocked prompt: %s", fb.BlockReason)
	}

	var b strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			if p != nil {
				b.WriteString(p.Text)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// classify maps SDK failures onto the error taxonomy. Transient messages
// include the words the invoker's retry classifier looks for.
func classify(err error) error {
	var apiErr genai.APIError
	if stderrors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, apiErr.Message)
	}
	if stderrors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return errors.Wrap(errors.ETransientExternal, "gemini request timeout", err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return errors.Wrap(errors.ETransientExternal, "gemini unavailable", err)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &syntaxErr) || stderrors.As(err, &typeErr) {
		return errors.Wrap(errors.EMalformedResponse, "gemini decode response", err)
	}
	return errors.Wrap(errors.EPermanentExternal, "gemini request failed", err)
}

func classifyStatus(code int, message string) error {
	msg := fmt.Sprintf("%d %s", code, http.StatusText(code))
	if message != "" {
		msg = fmt.Sprintf("%s: %s", msg, message)
	}

	switch {
	case code == http.StatusTooManyRequests:
		return errors.Newf(errors.ETransientExternal, "gemini rate limited (429): %s", msg)
	case code == http.StatusServiceUnavailable:
		return errors.Newf(errors.ETransientExternal, "gemini unavailable (503): %s", msg)
	case code == http.StatusGatewayTimeout || code == http.StatusRequestTimeout:
		return errors.Newf(errors.ETransientExternal, "gemini timeout: %s", msg)
	case code >= 500:
		return errors.Newf(errors.ETransientExternal, "gemini overloaded: %s", msg)
	default:
		return errors.Newf(errors.EPermanentExternal, "gemini rejected request: %s", msg)
	}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return stderrors.As(err, &te) && te.Timeout()
}
