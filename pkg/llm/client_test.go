package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/decoynet/honeypot/pkg/config"
	"github.com/decoynet/honeypot/pkg/extract"
)

func fakeChatServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(&config.Config{
		LLMEnabled:     true,
		LLMProvider:    config.ProviderCustom,
		LLMBaseURL:     srv.URL,
		LLMModel:       "test-model",
		MaxLLMInFlight: 4,
	})
}

func TestProviderBaseURLs(t *testing.T) {
	testCases := []struct {
		provider config.LLMProvider
		want     string
	}{
		{config.ProviderOllama, "http://localhost:11434/v1"},
		{config.ProviderGroq, "https://api.groq.com/openai/v1"},
		{config.ProviderOpenAI, "https://api.openai.com/v1"},
		{config.ProviderOpenRouter, "https://openrouter.ai/api/v1"},
	}
	for _, tc := range testCases {
		c := NewClient(&config.Config{LLMProvider: tc.provider, MaxLLMInFlight: 1})
		if c.baseURL != tc.want {
			t.Errorf("%s: baseURL = %q, want %q", tc.provider, c.baseURL, tc.want)
		}
	}
}

func TestExtractJSON(t *testing.T) {
	in := "Here you go:\n```json\n{\"tactics\": [\"urgency\"]}\n```\nHope that helps."
	want := `{"tactics": ["urgency"]}`
	if got := extractJSON(in); got != want {
		t.Errorf("extractJSON = %q, want %q", got, want)
	}
}

func TestDisabledClientReturnsErrDisabled(t *testing.T) {
	c := NewClient(&config.Config{LLMEnabled: false, MaxLLMInFlight: 1})
	if _, err := c.Refine(context.Background(), "hello"); err != ErrDisabled {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}

func TestRefineValidatesTactics(t *testing.T) {
	srv := fakeChatServer(t, `{"tactics": ["urgency", "mind_control", "fear"], "extractionIntent": true, "scamType": "phishing", "confidence": 1.4}`)
	defer srv.Close()

	c := testClient(t, srv)
	got, err := c.Refine(context.Background(), "your account is blocked, share OTP now")
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}

	if len(got.Tactics) != 2 || got.Tactics[0] != "urgency" || got.Tactics[1] != "fear" {
		t.Errorf("unknown tactics should be dropped, got %v", got.Tactics)
	}
	if !got.ExtractionIntent || got.ScamType != "phishing" {
		t.Errorf("unexpected refinement: %+v", got)
	}
	if got.Confidence != 1.0 {
		t.Errorf("confidence should clamp to 1.0, got %v", got.Confidence)
	}
}

func TestExtractAssistDiscardsInvalidValues(t *testing.T) {
	srv := fakeChatServer(t, `{"bankAccounts": ["123456789012", "12"], "ifscCodes": ["SBIN0001234", "NOPE"], "upiIds": ["victim@paytm"], "phoneNumbers": [], "links": [], "emailAddresses": []}`)
	defer srv.Close()

	c := testClient(t, srv)
	got, err := c.ExtractAssist(context.Background(), "whatever")
	if err != nil {
		t.Fatalf("ExtractAssist: %v", err)
	}

	if n := len(got[extract.KindBankAccount]); n != 1 {
		t.Errorf("expected 1 valid bank account, got %d", n)
	}
	if n := len(got[extract.KindIFSC]); n != 1 {
		t.Errorf("expected 1 valid IFSC, got %d", n)
	}
	for kind, arts := range got {
		for _, a := range arts {
			if a.Confidence > 0.9 {
				t.Errorf("%s %q confidence %v exceeds the model cap", kind, a.Value, a.Confidence)
			}
		}
	}
}

func TestNaturalizeKeepsAsk(t *testing.T) {
	srv := fakeChatServer(t, `Oh dear, I want to fix this but which account number should I send to?`)
	defer srv.Close()

	c := testClient(t, srv)
	out, err := c.Naturalize(context.Background(), "elderly retiree", "send money now", "Which account number should I use?", "bankAccount")
	if err != nil {
		t.Fatalf("Naturalize: %v", err)
	}
	if out == "" {
		t.Fatal("empty naturalized reply")
	}
}

func TestNaturalizeRejectsDroppedAsk(t *testing.T) {
	srv := fakeChatServer(t, `Okay sure thing.`)
	defer srv.Close()

	c := testClient(t, srv)
	if _, err := c.Naturalize(context.Background(), "elderly retiree", "send money", "Which account number should I use?", "bankAccount"); err == nil {
		t.Error("a rewrite that lost the ask must be rejected")
	}
}

func TestPreservesAsk(t *testing.T) {
	testCases := []struct {
		name string
		out  string
		kind string
		want bool
	}{
		{"noun survives", "ok so what account do I use", "bankAccount", true},
		{"question mark survives", "and then what happens?", "bankAccount", true},
		{"your survives", "is this your branch", "ifscCode", true},
		{"flat statement", "ok sure thing", "upiId", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := preservesAsk(tc.out, tc.kind); got != tc.want {
				t.Errorf("preservesAsk(%q, %q) = %v, want %v", tc.out, tc.kind, got, tc.want)
			}
		})
	}
}

func TestBusyWhenSaturated(t *testing.T) {
	srv := fakeChatServer(t, "x")
	defer srv.Close()

	c := testClient(t, srv)
	for i := 0; i < 4; i++ {
		if !c.sem.TryAcquire() {
			t.Fatal("setup: expected free slot")
		}
	}
	defer func() {
		for i := 0; i < 4; i++ {
			c.sem.Release()
		}
	}()

	if _, err := c.Refine(context.Background(), "text"); err != ErrBusy {
		t.Errorf("expected ErrBusy, got %v", err)
	}
}
