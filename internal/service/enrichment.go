package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/civicfix/api/internal/config"
	"github.com/civicfix/api/internal/model"
)

// fallbackSuggestions is attached to a problem when the provider fails or
// does not answer within the deadline.
const fallbackSuggestions = `## Quick Analysis
- Severity: MEDIUM
- This issue requires attention based on the provided description.

### Recommended Actions
1. Document and assess the situation
2. Engage relevant stakeholders
3. Monitor for developments

### Long-term Considerations
- Implement preventive measures
- Regular monitoring and maintenance`

// fallbackPreview is returned by the interactive preview when the provider
// fails. Unlike fallbackSuggestions it tells the user to retry.
const fallbackPreview = "AI analysis is currently unavailable. Please try again later or proceed with problem submission."

// IsFallback reports whether suggestion text is the canned fallback rather
// than a real provider answer.
func IsFallback(suggestions string) bool {
	return suggestions == fallbackSuggestions || suggestions == fallbackPreview
}

// EnrichmentService produces AI analysis for problems via the Gemini REST API.
type EnrichmentService struct {
	cfg    config.AIConfig
	client *http.Client
	logger *slog.Logger
}

// NewEnrichmentService creates a new enrichment service
func NewEnrichmentService(cfg config.AIConfig, logger *slog.Logger) *EnrichmentService {
	return &EnrichmentService{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout + 5*time.Second,
		},
		logger: logger,
	}
}

// Suggest produces a brief analysis of a problem. It never returns an error:
// if the provider fails or misses the deadline the canned fallback text is
// returned so every problem ends up with suggestions attached.
func (s *EnrichmentService) Suggest(ctx context.Context, p *model.Problem) (suggestions, severity string) {
	prompt := fmt.Sprintf(`Quick analysis of community problem:
Title: %s
Description: %s
Category: %s

Provide a brief:
1. Severity Assessment (HIGH/MEDIUM/LOW)
2. Quick Analysis (2-3 lines)
3. Immediate Actions (2-3 points)
4. Long-term Solutions (1-2 points)

Keep the response concise and actionable.`, p.Title, p.Description, p.Category)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	text, err := s.generate(ctx, s.cfg.TextModel, prompt, "")
	if err != nil {
		s.logger.Warn("enrichment failed, using fallback",
			slog.String("problem_id", p.ProblemID),
			slog.String("error", err.Error()))
		return fallbackSuggestions, DeriveSeverity(fallbackSuggestions)
	}
	return text, DeriveSeverity(text)
}

// PreviewResult is the outcome of an interactive analysis request
type PreviewResult struct {
	Suggestions string
	Severity    string
}

// Preview produces a detailed analysis for a problem that has not been
// submitted yet. When imageBase64 is non-empty the vision model examines the
// photo alongside the text. Provider failures yield the retry fallback.
func (s *EnrichmentService) Preview(ctx context.Context, title, description, category, imageBase64 string) *PreviewResult {
	prompt := fmt.Sprintf(`Analyze this problem:
Title: %q
Description: %q
Category: %q

Please provide:
1. Problem Analysis:
   - Quick assessment of the situation
   - Severity level (Low/Medium/High)
   - Potential immediate risks

2. Immediate Actions:
   - List 2-3 immediate steps that can be taken
   - Include any safety precautions if applicable

3. Long-term Solutions:
   - Provide 2-3 comprehensive solutions
   - Consider cost and implementation time
   - List potential challenges

4. Similar Cases & Success Stories:
   - Reference similar problems that were solved
   - Share successful approaches

5. Prevention Tips:
   - How to prevent similar issues
   - Maintenance recommendations

Format the response in a clear, structured way with bullet points and emphasis on critical information.`,
		title, description, category)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	mdl := s.cfg.TextModel
	if imageBase64 != "" {
		mdl = s.cfg.VisionModel
	}

	text, err := s.generate(ctx, mdl, prompt, imageBase64)
	if err != nil {
		s.logger.Warn("preview enrichment failed", slog.String("error", err.Error()))
		return &PreviewResult{
			Suggestions: fallbackPreview,
			Severity:    model.SeverityMedium,
		}
	}
	return &PreviewResult{
		Suggestions: text,
		Severity:    DeriveSeverity(text),
	}
}

// Gemini generateContent request/response shapes

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *EnrichmentService) generate(ctx context.Context, mdl, prompt, imageBase64 string) (string, error) {
	parts := []geminiPart{{Text: prompt}}
	if imageBase64 != "" {
		// Data URLs carry a "data:image/jpeg;base64," prefix
		if idx := strings.Index(imageBase64, ","); idx >= 0 {
			imageBase64 = imageBase64[idx+1:]
		}
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{
				MimeType: "image/jpeg",
				Data:     imageBase64,
			},
		})
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: parts}},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", s.cfg.BaseURL, mdl, s.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decoding gemini response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("gemini error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

var (
	highSeverityKeywords = []string{"critical", "severe", "urgent", "immediate", "dangerous"}
	lowSeverityKeywords  = []string{"minor", "low", "minimal", "routine"}
)

// DeriveSeverity classifies analysis text by keyword scan. High severity
// keywords win over low ones; text matching neither is MEDIUM.
func DeriveSeverity(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range highSeverityKeywords {
		if strings.Contains(lower, kw) {
			return model.SeverityHigh
		}
	}
	for _, kw := range lowSeverityKeywords {
		if strings.Contains(lower, kw) {
			return model.SeverityLow
		}
	}
	return model.SeverityMedium
}
