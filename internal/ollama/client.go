// Package ollama wraps the Ollama /api/generate endpoint. It translates the
// pipeline's character budgets into token budgets, normalizes whatever shape
// the backend returns, and converts every transport failure into one of four
// typed errors with a fixed user-safe fallback string. Nothing past this
// boundary ever sees a raw transport error.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// Failure taxonomy surfaced to the orchestrator. Classify with errors.Is.
var (
	ErrConnectionRefused = errors.New("generation backend unreachable")
	ErrTimeout           = errors.New("generation timed out")
	ErrTransport         = errors.New("generation transport error")
	ErrUnexpected        = errors.New("unexpected generation error")
)

// tokensPerChar converts a character budget into a generation budget. Two
// output tokens per character tolerates language-specific token density;
// the headroom avoids truncation mid-sentence. Tunable, not a contract.
const (
	tokensPerChar  = 2
	budgetHeadroom = 50
)

const defaultTimeout = 120 * time.Second

type Client struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL, model string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

// SetTestTransport points the client at a test server. Tests only.
func (c *Client) SetTestTransport(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

type request struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options options `json:"options"`
}

type options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

// Generate sends prompt to the backend with a generation budget derived from
// maxChars and returns the cleaned text. Errors wrap one of the four sentinel
// failures above.
func (c *Client) Generate(ctx context.Context, prompt string, maxChars int, temperature float64) (string, error) {
	reqBody := request{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: options{
			Temperature: temperature,
			NumPredict:  maxChars*tokensPerChar + budgetHeadroom,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %w", ErrUnexpected, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %w", ErrUnexpected, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", classifyTransport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("ollama non-success status", "status", resp.StatusCode, "body", truncateForLog(respBody))
		return "", fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	}

	text, err := extractText(respBody)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnexpected, err)
	}

	return Clean(text), nil
}

// extractText pulls the generated text out of the response JSON. Ollama
// normally answers under "response", but other builds and proxies have been
// seen using "text", "output" or "result", occasionally as a list of strings.
func extractText(body []byte) (string, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	for _, key := range []string{"response", "text", "output", "result"} {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s, nil
		}
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
			return strings.Join(list, " "), nil
		}
	}

	return "", errors.New("no text payload in response")
}

func classifyTransport(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("%w: %w", ErrConnectionRefused, err)
	}
	if strings.Contains(err.Error(), "connection refused") {
		return fmt.Errorf("%w: %w", ErrConnectionRefused, err)
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// FallbackMessage maps a gateway failure to the fixed user-safe string the
// pipeline stores in place of generated text. Never a raw error.
func FallbackMessage(err error) string {
	switch {
	case errors.Is(err, ErrConnectionRefused):
		return "Il servizio di generazione non è al momento raggiungibile. Riprova più tardi."
	case errors.Is(err, ErrTimeout):
		return "La generazione ha impiegato troppo tempo ed è stata interrotta. Riprova più tardi."
	case errors.Is(err, ErrTransport):
		return "Si è verificato un problema di comunicazione con il servizio di generazione."
	default:
		return "Si è verificato un errore imprevisto durante la generazione."
	}
}

func truncateForLog(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
