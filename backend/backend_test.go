package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNew_UnknownKind(t *testing.T) {
	if _, err := New("deepl", "x", Options{}); err == nil {
		t.Fatal("expected error for unknown backend kind")
	}
}

func TestNew_DeviceValidation(t *testing.T) {
	if _, err := New(KindNLLB, "http://localhost:6060", Options{Device: "tpu"}); err == nil {
		t.Fatal("expected error for unknown device")
	}
	for _, dev := range []string{"", DeviceCPU, DeviceCUDA} {
		if _, err := New(KindNLLB, "http://localhost:6060", Options{Device: dev}); err != nil {
			t.Errorf("New with device %q: %v", dev, err)
		}
	}
}

func TestNew_NLLBLocator(t *testing.T) {
	if _, err := New(KindNLLB, "", Options{}); err == nil {
		t.Fatal("expected error for empty nllb locator")
	}
	if _, err := New(KindNLLB, "localhost:6060", Options{}); err == nil {
		t.Fatal("expected error for non-URL nllb locator")
	}
}

func TestNew_OpenAIRequiresKey(t *testing.T) {
	if _, err := New(KindOpenAI, "gpt-4o-mini", Options{}); err == nil {
		t.Fatal("expected error for openai backend without API key")
	}
	if _, err := New(KindOpenAI, "gpt-4o-mini", Options{APIKey: "sk-test"}); err != nil {
		t.Fatalf("New(openai) with key: %v", err)
	}
	if _, err := New(KindOllama, "llama3", Options{}); err != nil {
		t.Fatalf("New(ollama) without key: %v", err)
	}
}

func TestNewChat_LocatorEndpointOverride(t *testing.T) {
	b, err := New(KindOllama, "http://10.0.0.5:11434/v1|qwen2.5", Options{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	c, ok := b.(*chat)
	if !ok {
		t.Fatalf("backend is %T, want *chat", b)
	}
	if c.baseURL != "http://10.0.0.5:11434/v1" {
		t.Errorf("baseURL = %q", c.baseURL)
	}
	if c.model != "qwen2.5" {
		t.Errorf("model = %q", c.model)
	}
}

// ---------------------------------------------------------------------------
// NLLB backend
// ---------------------------------------------------------------------------

func TestNLLB_BatchTranslate(t *testing.T) {
	var gotPath string
	var gotReq struct {
		Source  []string `json:"source"`
		SrcLang string   `json:"src_lang"`
		TgtLang string   `json:"tgt_lang"`
		Device  string   `json:"device"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string][]string{
			"translation": {"नमस्ते", "दुनिया"},
		})
	}))
	defer srv.Close()

	b, err := New(KindNLLB, srv.URL, Options{Device: DeviceCUDA})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	got, err := b.BatchTranslate(context.Background(), []string{"Hello", "World"}, "eng_Latn", "hin_Deva")
	if err != nil {
		t.Fatalf("BatchTranslate error: %v", err)
	}
	if gotPath != "/translate" {
		t.Errorf("request path = %q", gotPath)
	}
	if len(gotReq.Source) != 2 || gotReq.SrcLang != "eng_Latn" || gotReq.TgtLang != "hin_Deva" || gotReq.Device != "cuda" {
		t.Errorf("request body = %+v", gotReq)
	}
	if len(got) != 2 || got[0] != "नमस्ते" {
		t.Errorf("translations = %v", got)
	}
}

func TestNLLB_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, _ := New(KindNLLB, srv.URL, Options{})
	if _, err := b.BatchTranslate(context.Background(), []string{"x"}, "eng_Latn", "hin_Deva"); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestNLLB_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][]string{"translation": {"only one"}})
	}))
	defer srv.Close()

	b, _ := New(KindNLLB, srv.URL, Options{})
	if _, err := b.BatchTranslate(context.Background(), []string{"a", "b"}, "eng_Latn", "hin_Deva"); err == nil {
		t.Fatal("expected error when server returns wrong translation count")
	}
}

// ---------------------------------------------------------------------------
// Chat backends
// ---------------------------------------------------------------------------

func chatResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(b)
}

func TestChat_BatchTranslate(t *testing.T) {
	var gotAuth string
	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write([]byte(chatResponse(`["नमस्ते", "दुनिया"]`)))
	}))
	defer srv.Close()

	b, err := New(KindOpenAI, srv.URL+"|gpt-4o-mini", Options{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	got, err := b.BatchTranslate(context.Background(), []string{"Hello", "World"}, "eng_Latn", "hin_Deva")
	if err != nil {
		t.Fatalf("BatchTranslate error: %v", err)
	}
	if got[0] != "नमस्ते" || got[1] != "दुनिया" {
		t.Errorf("translations = %v", got)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", gotBody.Model)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v", gotBody.Messages)
	}
	if !strings.Contains(gotBody.Messages[0].Content, "eng_Latn") || !strings.Contains(gotBody.Messages[0].Content, "hin_Deva") {
		t.Error("system prompt missing language tags")
	}
	if !strings.Contains(gotBody.Messages[1].Content, "1. Hello") || !strings.Contains(gotBody.Messages[1].Content, "2. World") {
		t.Errorf("user prompt not numbered:\n%s", gotBody.Messages[1].Content)
	}
}

func TestChat_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatResponse(`["only one"]`)))
	}))
	defer srv.Close()

	b, _ := New(KindOllama, srv.URL+"|llama3", Options{})
	if _, err := b.BatchTranslate(context.Background(), []string{"a", "b"}, "eng_Latn", "hin_Deva"); err == nil {
		t.Fatal("expected error when model returns wrong translation count")
	}
}

func TestChat_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "model overloaded"}}`))
	}))
	defer srv.Close()

	b, _ := New(KindOllama, srv.URL+"|llama3", Options{})
	_, err := b.BatchTranslate(context.Background(), []string{"a"}, "eng_Latn", "hin_Deva")
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("error = %v, want API error message surfaced", err)
	}
}

// ---------------------------------------------------------------------------
// Response parsing
// ---------------------------------------------------------------------------

func TestParseTranslations(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{`["a", "b"]`, []string{"a", "b"}},
		{"```json\n[\"a\", \"b\"]\n```", []string{"a", "b"}},
		{"```\n[\"a\"]\n```", []string{"a"}},
		{`Here are the translations: ["a", "b"] as requested.`, []string{"a", "b"}},
	}
	for _, tc := range cases {
		got, err := parseTranslations(tc.in)
		if err != nil {
			t.Errorf("parseTranslations(%q) error: %v", tc.in, err)
			continue
		}
		if len(got) != len(tc.want) {
			t.Errorf("parseTranslations(%q) = %v, want %v", tc.in, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("parseTranslations(%q)[%d] = %q, want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}

func TestParseTranslations_Invalid(t *testing.T) {
	for _, in := range []string{"no array here", `{"a": 1}`, `[1, 2]`} {
		if _, err := parseTranslations(in); err == nil {
			t.Errorf("parseTranslations(%q) should fail", in)
		}
	}
}

func TestExtractChatText(t *testing.T) {
	got, err := extractChatText([]byte(chatResponse("hello")))
	if err != nil {
		t.Fatalf("extractChatText error: %v", err)
	}
	if got != "hello" {
		t.Fatalf("content = %q", got)
	}

	if _, err := extractChatText([]byte(`{"choices": []}`)); err == nil {
		t.Error("expected error for empty choices")
	}
	if _, err := extractChatText([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
