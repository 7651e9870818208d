package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/receipts-redactor/internal/oracle"
)

func (b *Backend) Name() string { return "gemini" }

// Generate calls models/{model}:generateContent with the prompt followed by
// every document inlined as base64, and returns the concatenated text parts.
func (b *Backend) Generate(ctx context.Context, req oracle.Request) ([]byte, error) {
	parts := []map[string]any{{"text": req.Prompt}}
	for _, d := range req.Documents {
		data, err := d.Base64()
		if err != nil {
			return nil, err
		}
		parts = append(parts, map[string]any{
			"inlineData": map[string]any{"mimeType": d.MIMEType, "data": data},
		})
	}

	genCfg := map[string]any{
		"temperature":      b.cfg.Temperature,
		"topP":             1.0,
		"topK":             1,
		"maxOutputTokens":  b.cfg.MaxOutputTokens,
		"responseMimeType": "application/json",
	}
	if len(req.Shape.Fields) > 0 {
		genCfg["responseSchema"] = responseSchema(req.Shape)
	}

	body := map[string]any{
		"contents":         []map[string]any{{"role": "user", "parts": parts}},
		"generationConfig": genCfg,
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(b.cfg.BaseURL, "/"), b.cfg.Model)
	raw, _, err := oracle.SendJSON(ctx, b.http, endpoint, body, map[string]string{"x-goog-api-key": b.cfg.APIKey}, b.logger)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	var gr struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		PromptFeedback struct {
			BlockReason string `json:"blockReason"`
		} `json:"promptFeedback"`
	}
	if err := json.Unmarshal(raw, &gr); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	if gr.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("gemini blocked the prompt: %s", gr.PromptFeedback.BlockReason)
	}
	if len(gr.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in gemini response")
	}

	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("empty gemini response (finish reason %q)", gr.Candidates[0].FinishReason)
	}
	return []byte(sb.String()), nil
}

// responseSchema translates a shape into Gemini's OpenAPI-style schema dialect.
func responseSchema(s oracle.Shape) map[string]any {
	props := map[string]any{}
	var required []string
	for _, f := range s.Fields {
		var p map[string]any
		switch f.Type {
		case "string[]":
			p = map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}}
		default:
			p = map[string]any{"type": strings.ToUpper(f.Type)}
		}
		if f.Description != "" {
			p["description"] = f.Description
		}
		props[f.Name] = p
		if f.Required {
			required = append(required, f.Name)
		}
	}
	out := map[string]any{"type": "OBJECT", "properties": props}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}
