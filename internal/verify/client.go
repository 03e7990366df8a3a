package verify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"aether/internal/models"
)

var (
	// ErrUnavailable means the gateway could not be reached or returned
	// an unexpected error. The caller should fail the submission rather
	// than guess a verdict.
	ErrUnavailable = errors.New("verification gateway unavailable")

	// ErrCreditsExhausted maps the gateway's payment-required response
	ErrCreditsExhausted = errors.New("verification credits exhausted")

	// ErrBusy maps the gateway's rate limit response
	ErrBusy = errors.New("verification gateway is busy")
)

// Verdict is the adjudication result for one proof image
type Verdict struct {
	Valid      bool   `json:"valid"`
	Confidence int    `json:"confidence"`
	Reason     string `json:"reason"`
}

// Config configures the verification client
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client adjudicates proof images against an OpenAI-compatible
// chat completions gateway
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a verification client
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("verifier api key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("verifier url is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      model,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
	}, nil
}

// VerifyImage asks the gateway whether the image proves the quest was
// done. A response that cannot be parsed counts as a pass with moderate
// confidence: a flaky model must never block a kid's payout.
func (c *Client) VerifyImage(ctx context.Context, questType, questName string, image []byte, mimeType string) (Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if len(image) == 0 {
		return Verdict{}, errors.New("image is required")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	imageRef := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	body := map[string]any{
		"model": c.model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{
						"type": "text",
						"text": buildPrompt(questType, questName),
					},
					{
						"type": "image_url",
						"image_url": map[string]string{
							"url": imageRef,
						},
					},
				},
			},
		},
		"temperature": 0.1,
		"max_tokens":  300,
	}

	raw, err := c.doJSON(ctx, "/v1/chat/completions", body)
	if err != nil {
		return Verdict{}, err
	}

	content, err := extractAssistantContent(raw)
	if err != nil {
		return defaultVerdict(), nil
	}
	return parseVerdict(content), nil
}

// buildPrompt returns the adjudication prompt for a quest type. The
// model must answer with a single JSON object.
func buildPrompt(questType, questName string) string {
	criteria := map[string]string{
		models.QuestTypeReading:  "a book, e-reader, or other evidence of reading",
		models.QuestTypeDrawing:  "a drawing, painting, or other artwork",
		models.QuestTypeHomework: "schoolwork, worksheets, or study materials",
		models.QuestTypeChores:   "a completed household chore, such as a tidied room or washed dishes",
		models.QuestTypeExercise: "physical activity, sports equipment, or an exercise setting",
		models.QuestTypeMusic:    "a musical instrument or music practice",
	}

	criterion, ok := criteria[questType]
	if !ok {
		criterion = fmt.Sprintf("evidence that the task %q was completed", questName)
	}

	return fmt.Sprintf(`A child submitted this photo as proof of completing the task %q.
Check whether the photo shows %s.
Be generous: this is a family chore app for kids, not a security system.
Reply with one line of JSON only, no markdown, no explanation:
{"valid": true/false, "confidence": 0-100, "reason": "one short kid-friendly sentence"}`, questName, criterion)
}

func (c *Client) doJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		return nil, ErrCreditsExhausted
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrBusy
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrUnavailable, resp.StatusCode, truncate(string(respBody), 240))
	}
	return respBody, nil
}

func extractAssistantContent(raw []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// parseVerdict extracts the verdict JSON from model output, tolerating
// code fences and surrounding prose. Unparseable output falls back to
// the default pass verdict.
func parseVerdict(content string) Verdict {
	payload := extractJSONPayload(content)

	var v Verdict
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return defaultVerdict()
	}
	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 100 {
		v.Confidence = 100
	}
	if strings.TrimSpace(v.Reason) == "" {
		v.Reason = "Verification completed"
	}
	return v
}

func defaultVerdict() Verdict {
	return Verdict{Valid: true, Confidence: 70, Reason: "Verification completed"}
}

// extractJSONPayload strips markdown fences and surrounding prose,
// returning the first JSON object in the content
func extractJSONPayload(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.Index(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		return trimmed[start : end+1]
	}
	return trimmed
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
