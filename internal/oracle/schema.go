package oracle

// Field describes one key of the JSON object requested from the model.
// Type is one of boolean, number, string or string[].
type Field struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Min, Max    *float64
}

// Shape is the expected JSON object. Backends translate it into their own
// structured-output dialect, and decoding validates against JSONSchema.
type Shape struct {
	Fields []Field
}

func bound(v float64) *float64 { return &v }

var matchShape = Shape{Fields: []Field{
	{Name: "is_match", Type: "boolean", Required: true,
		Description: "True quando os dois documentos compartilham o mesmo layout."},
	{Name: "confidence", Type: "number", Required: true, Min: bound(0), Max: bound(1),
		Description: "Grau de certeza entre 0.0 e 1.0."},
	{Name: "reason", Type: "string", Required: true,
		Description: "Justificativa citando os rótulos encontrados e a ordem visual."},
}}

var auditShape = Shape{Fields: []Field{
	{Name: "has_sensitive_data", Type: "boolean", Required: true,
		Description: "True se qualquer dado pessoal continuar legível."},
	{Name: "reason", Type: "string", Required: true,
		Description: "O que foi encontrado ou a confirmação de que tudo está coberto."},
	{Name: "leaked_fields", Type: "string[]",
		Description: "Rótulos dos campos cujo valor continua legível."},
}}

var classifyShape = Shape{Fields: []Field{
	{Name: "classify", Type: "string", Required: true,
		Description: "Nome da instituição que emitiu o comprovante."},
}}

// JSONSchema renders the shape as a JSON Schema map. withRequired controls
// whether the required list is emitted.
func (s Shape) JSONSchema(withRequired bool) map[string]any {
	props := make(map[string]any, len(s.Fields))
	var required []string
	for _, f := range s.Fields {
		var p map[string]any
		if f.Type == "string[]" {
			p = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
		} else {
			p = map[string]any{"type": f.Type}
		}
		if f.Min != nil {
			p["minimum"] = *f.Min
		}
		if f.Max != nil {
			p["maximum"] = *f.Max
		}
		props[f.Name] = p
		if f.Required {
			required = append(required, f.Name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if withRequired && len(required) > 0 {
		out["required"] = required
	}
	return out
}
