package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/receipts-redactor/internal/oracle"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestGenerateBuildsInlineRequest(t *testing.T) {
	dir := t.TempDir()
	ref := writeFile(t, dir, "ref.pdf", "%PDF-ref")
	in := writeFile(t, dir, "in.pdf", "%PDF-in")

	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"is_match\":true,"},{"text":"\"confidence\":1,\"reason\":\"x\"}"}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	b := New(Config{APIKey: "k", BaseURL: srv.URL, Model: "gemini-test"}, nil)
	c := oracle.NewClient(b, oracle.Config{}, nil)

	r := c.Compare(context.Background(), oracle.NewDocument(ref), oracle.NewDocument(in))
	if r.Kind != oracle.KindMatch {
		t.Fatalf("kind = %v err = %v", r.Kind, r.Err)
	}
	if !r.Match.IsMatch || r.Match.Confidence != 1 {
		t.Errorf("match = %+v", r.Match)
	}
	if gotPath != "/models/gemini-test:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "k" {
		t.Errorf("api key header = %q", gotKey)
	}

	contents := gotBody["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	if len(parts) != 3 {
		t.Fatalf("parts = %d, want prompt + 2 documents", len(parts))
	}
	inline := parts[1].(map[string]any)["inlineData"].(map[string]any)
	if inline["mimeType"] != "application/pdf" {
		t.Errorf("mimeType = %v", inline["mimeType"])
	}

	gen := gotBody["generationConfig"].(map[string]any)
	if gen["responseMimeType"] != "application/json" {
		t.Errorf("responseMimeType = %v", gen["responseMimeType"])
	}
	schema := gen["responseSchema"].(map[string]any)
	if schema["type"] != "OBJECT" {
		t.Errorf("schema type = %v", schema["type"])
	}
	if len(schema["required"].([]any)) != 3 {
		t.Errorf("required = %v", schema["required"])
	}
}

func TestGenerateNon2xx(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "m.png", "png")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := oracle.NewClient(New(Config{APIKey: "k", BaseURL: srv.URL}, nil), oracle.Config{}, nil)
	a := c.Audit(context.Background(), oracle.NewDocument(doc)).AuditOrFailClosed()
	if !a.HasSensitiveData {
		t.Fatal("http failure must fail closed")
	}
}

func TestGenerateBlockedPrompt(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "m.png", "png")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	_, err := New(Config{APIKey: "k", BaseURL: srv.URL}, nil).Generate(context.Background(), oracle.Request{
		Prompt:    "p",
		Documents: []oracle.Document{oracle.NewDocument(doc)},
	})
	if err == nil {
		t.Fatal("expected an error for a blocked prompt")
	}
}
