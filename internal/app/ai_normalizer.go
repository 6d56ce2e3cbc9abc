package app

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pearquote/quote-service/internal/domain"
)

// Output schemas, as named in AIResponseParseError.
const (
	schemaBreakdown = "breakdown"
	schemaInsight   = "insight"
)

const defaultImageMIME = "image/jpeg"

// fencedBlock matches a Markdown code fence, optionally tagged, around the payload.
var fencedBlock = regexp.MustCompile("(?s)^```[A-Za-z0-9_-]*[ \t]*\r?\n?(.*?)\r?\n?[ \t]*```$")

// stripCodeFence removes a Markdown code fence wrapping the whole text.
// Text without a fence is returned trimmed and otherwise unchanged.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)

	if m := fencedBlock.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}

	return trimmed
}

// decodeImage decodes a data URI ("data:image/png;base64,....") or a raw base64 payload.
// Only the first comma separates the header from the payload.
func decodeImage(encoded string) (domain.ImagePart, error) {
	mime := defaultImageMIME
	payload := strings.TrimSpace(encoded)

	if strings.HasPrefix(payload, "data:") {
		header, data, found := strings.Cut(payload, ",")
		if !found {
			return domain.ImagePart{}, fmt.Errorf("data URI has no payload")
		}

		if m, _, _ := strings.Cut(strings.TrimPrefix(header, "data:"), ";"); m != "" {
			mime = m
		}

		payload = data
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return domain.ImagePart{}, fmt.Errorf("decoding base64 payload: %w", err)
		}
	}

	if len(data) == 0 {
		return domain.ImagePart{}, fmt.Errorf("image payload is empty")
	}

	return domain.ImagePart{MIMEType: mime, Data: data}, nil
}

func decodeImages(encoded []string) ([]domain.ImagePart, error) {
	images := make([]domain.ImagePart, 0, len(encoded))

	for i, e := range encoded {
		img, err := decodeImage(e)
		if err != nil {
			return nil, domain.NewValidationError(fmt.Sprintf("images[%d]", i), err.Error())
		}

		images = append(images, img)
	}

	return images, nil
}

// flexNumber accepts a JSON number, a numeric string, or null (0).
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if bytes.Equal(data, []byte("null")) {
		*n = 0

		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
		if s == "" {
			*n = 0

			return nil
		}

		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%q is not a number", s)
		}

		*n = flexNumber(v)

		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	*n = flexNumber(v)

	return nil
}

// flexID accepts a string or a number.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = flexID(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number")
	}

	*id = flexID(n.String())

	return nil
}

type rawBreakdownItem struct {
	ID             flexID     `json:"id"`
	Description    string     `json:"description"`
	EstimatedHours flexNumber `json:"estimatedHours"`
	SuggestedRole  string     `json:"suggestedRole"`
	HourlyRate     flexNumber `json:"hourlyRate"`
}

type rawBreakdown struct {
	Summary string             `json:"summary"`
	Items   []rawBreakdownItem `json:"items"`
}

// decodeObject strips a code fence and decodes a JSON object into v.
// Any failure is an AIResponseParseError carrying the raw text.
func decodeObject(raw, schema string, v any) error {
	cleaned := stripCodeFence(raw)
	if !strings.HasPrefix(cleaned, "{") {
		return domain.NewAIResponseParseError(schema, raw, fmt.Errorf("response is not a JSON object"))
	}

	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return domain.NewAIResponseParseError(schema, raw, err)
	}

	return nil
}

// parseBreakdown converts model output into a Breakdown.
// Missing ids become "ai_<n>", unknown roles become "other", and amount is hours * rate.
func parseBreakdown(raw string) (*domain.Breakdown, error) {
	var parsed rawBreakdown
	if err := decodeObject(raw, schemaBreakdown, &parsed); err != nil {
		return nil, err
	}

	breakdown := &domain.Breakdown{
		Summary: strings.TrimSpace(parsed.Summary),
		Items:   make([]domain.BreakdownItem, 0, len(parsed.Items)),
	}

	for i, it := range parsed.Items {
		id := strings.TrimSpace(string(it.ID))
		if id == "" {
			id = fmt.Sprintf("ai_%d", i+1)
		}

		hours := float64(it.EstimatedHours)
		rate := float64(it.HourlyRate)

		breakdown.Items = append(breakdown.Items, domain.BreakdownItem{
			ID:             id,
			Description:    strings.TrimSpace(it.Description),
			EstimatedHours: hours,
			SuggestedRole:  domain.NormalizeRole(it.SuggestedRole),
			HourlyRate:     rate,
			Amount:         hours * rate,
		})
	}

	return breakdown, nil
}

// parseInsight extracts the insight text from model output shaped as {"insight": "..."}.
func parseInsight(raw string) (string, error) {
	var parsed struct {
		Insight *string `json:"insight"`
	}

	if err := decodeObject(raw, schemaInsight, &parsed); err != nil {
		return "", err
	}

	if parsed.Insight == nil || strings.TrimSpace(*parsed.Insight) == "" {
		return "", domain.NewAIResponseParseError(schemaInsight, raw, fmt.Errorf(`missing "insight" field`))
	}

	return strings.TrimSpace(*parsed.Insight), nil
}

// breakdownPrompt builds the deterministic breakdown prompt.
// Role rates, when configured, are listed in the fixed role order.
func breakdownPrompt(requirements string, imageCount int, rates map[domain.Role]float64) string {
	var b strings.Builder

	b.WriteString("You are a senior software project estimator.\n")
	b.WriteString("Break the client requirements below into priced work items.\n\n")

	b.WriteString("Respond with JSON only, no prose and no Markdown, matching exactly:\n")
	b.WriteString(`{"summary": string, "items": [{"id": string, "description": string, ` +
		`"estimatedHours": number, "suggestedRole": "design"|"frontend"|"backend"|"pm"|"qa"|"other", ` +
		`"hourlyRate": number}]}` + "\n")
	b.WriteString("Rules:\n")
	b.WriteString("- estimatedHours must be greater than 0.\n")
	b.WriteString("- hourlyRate must be greater than 0; never return 0.\n")
	b.WriteString("- suggestedRole must be one of the listed values.\n")

	if len(rates) > 0 {
		b.WriteString("- Use these hourly rates per role:\n")

		for _, role := range domain.Roles {
			if rate, ok := rates[role]; ok {
				fmt.Fprintf(&b, "  - %s: %s\n", role, strconv.FormatFloat(rate, 'f', -1, 64))
			}
		}
	}

	if imageCount > 0 {
		fmt.Fprintf(&b, "\n%d reference image(s) are attached; use them as additional requirements.\n", imageCount)
	}

	b.WriteString("\nRequirements:\n")

	if text := strings.TrimSpace(requirements); text != "" {
		b.WriteString(text)
	} else {
		b.WriteString("(see attached images)")
	}

	b.WriteString("\n")

	return b.String()
}

// insightPrompt builds the deterministic insight prompt around a data summary.
func insightPrompt(summary string) string {
	var b strings.Builder

	b.WriteString("You are a business analyst for a software agency.\n")
	b.WriteString("Write one short insight (at most three sentences) about the quoting data below.\n")
	b.WriteString(`Respond with JSON only, matching exactly: {"insight": string}` + "\n\n")
	b.WriteString("Data:\n")
	b.WriteString(strings.TrimSpace(summary))
	b.WriteString("\n")

	return b.String()
}
