package oracle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/receipts-redactor/internal/common"
)

const noReason = "No reason provided"

// fencedBlock catches models that wrap their JSON in a markdown code fence.
var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*?\\})\\s*```")

var errEmptyObject = errors.New("response is not a JSON object")

// ExtractObject parses raw as a JSON object, falling back to the first fenced
// code block when the direct parse fails.
func ExtractObject(raw []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)

	var m map[string]any
	directErr := json.Unmarshal(trimmed, &m)
	if directErr == nil && m != nil {
		return m, nil
	}
	if directErr == nil {
		directErr = errEmptyObject
	}

	sub := fencedBlock.FindSubmatch(trimmed)
	if sub == nil {
		return nil, fmt.Errorf("no JSON object in response: %w", directErr)
	}
	m = nil
	if err := json.Unmarshal(sub[1], &m); err != nil {
		return nil, fmt.Errorf("fenced block: %w", err)
	}
	if m == nil {
		return nil, errEmptyObject
	}
	return m, nil
}

// DecodeMatch parses a comparison response. Values the model sent with a
// loose type ("0.9", "true") are coerced before schema validation. Keys the
// model left out default to is_match=false, confidence=0 and an empty reason;
// keys that are present must still have the right type and range.
func DecodeMatch(raw []byte) (Match, error) {
	m, err := ExtractObject(raw)
	if err != nil {
		return Match{}, err
	}

	coerceBool(m, "is_match")
	coerceNumber(m, "confidence")
	if c, ok := m["confidence"].(float64); ok {
		// some local models answer in percent
		if c > 1 && c <= 100 {
			m["confidence"] = c / 100
		}
	}

	if err := common.ValidateAgainstSchema(matchShape.JSONSchema(false), m); err != nil {
		return Match{}, err
	}

	var out Match
	if v, ok := m["is_match"].(bool); ok {
		out.IsMatch = v
	}
	if c, ok := m["confidence"].(float64); ok {
		out.Confidence = c
	}
	if s, ok := m["reason"].(string); ok {
		out.Reason = strings.TrimSpace(s)
	}
	return out, nil
}

// DecodeAudit parses a PII audit response. It never fails: an unparseable
// response or a missing verdict yields has_sensitive_data=true.
func DecodeAudit(raw []byte) Audit {
	m, err := ExtractObject(raw)
	if err != nil {
		return FailClosed("Unparseable oracle response: " + err.Error())
	}

	coerceBool(m, "has_sensitive_data")

	out := Audit{HasSensitiveData: true, Reason: noReason, LeakedFields: []string{}}
	if v, ok := m["has_sensitive_data"].(bool); ok {
		out.HasSensitiveData = v
	}
	if s, ok := m["reason"].(string); ok && strings.TrimSpace(s) != "" {
		out.Reason = strings.TrimSpace(s)
	} else if s, ok := m["analysis"].(string); ok && strings.TrimSpace(s) != "" {
		out.Reason = strings.TrimSpace(s)
	}
	if arr, ok := m["leaked_fields"].([]any); ok {
		for _, f := range arr {
			if s, ok := f.(string); ok && s != "" {
				out.LeakedFields = append(out.LeakedFields, s)
			}
		}
	}
	return out
}

// DecodeClassify returns the bank label from a classification response.
func DecodeClassify(raw []byte) (string, error) {
	m, err := ExtractObject(raw)
	if err != nil {
		return "", err
	}
	if err := common.ValidateAgainstSchema(classifyShape.JSONSchema(true), m); err != nil {
		return "", err
	}
	return strings.TrimSpace(m["classify"].(string)), nil
}

func coerceBool(m map[string]any, key string) {
	s, ok := m[key].(string)
	if !ok {
		return
	}
	if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
		m[key] = b
	}
}

func coerceNumber(m map[string]any, key string) {
	s, ok := m[key].(string)
	if !ok {
		return
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
		m[key] = f
	}
}
