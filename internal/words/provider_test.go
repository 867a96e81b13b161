package words

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func isFallbackWord(w string) bool {
	for _, fw := range fallbackWords {
		if w == fw {
			return true
		}
	}
	return false
}

// geminiReply wraps text in the upstream candidate envelope.
func geminiReply(t *testing.T, text string) []byte {
	t.Helper()

	body := map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"parts": []map[string]any{
						{"text": text},
					},
				},
			},
		},
	}

	out, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to build reply: %v", err)
	}
	return out
}

func TestGenerateWithoutKeyUsesFallback(t *testing.T) {
	p := NewProvider("", 10)

	res := p.Generate(context.Background(), "", "", false)
	if !isFallbackWord(res.Word) {
		t.Fatalf("got %q, want a fallback word", res.Word)
	}
	if res.Hint != "" {
		t.Fatalf("unwanted hint %q", res.Hint)
	}

	res = p.Generate(context.Background(), "", "", true)
	if !isFallbackWord(res.Word) {
		t.Fatalf("got %q, want a fallback word", res.Word)
	}
	if res.Hint != fallbackHint {
		t.Fatalf("hint = %q, want %q", res.Hint, fallbackHint)
	}
}

func TestGenerateTreatsPlaceholderKeyAsMissing(t *testing.T) {
	p := NewProvider("AIzaXXXXXXXX", 10)

	res := p.Generate(context.Background(), "", "", false)
	if !isFallbackWord(res.Word) {
		t.Fatalf("placeholder key reached upstream, got %q", res.Word)
	}
}

func TestGenerateStopsCountingAtDailyLimit(t *testing.T) {
	p := NewProvider("", 2)

	for i := 0; i < 5; i++ {
		res := p.Generate(context.Background(), "", "", false)
		if res.Word == "" {
			t.Fatal("empty word")
		}
	}

	usage := p.Usage()
	if usage.WindowCount != 2 {
		t.Fatalf("windowCount = %d, want 2", usage.WindowCount)
	}
	if usage.TotalCalls != 2 {
		t.Fatalf("totalCalls = %d, want 2", usage.TotalCalls)
	}
	if usage.DailyLimit != 2 {
		t.Fatalf("dailyLimit = %d, want 2", usage.DailyLimit)
	}
}

func TestNewProviderRejectsBogusLimits(t *testing.T) {
	if got := NewProvider("", 0).Usage().DailyLimit; got != defaultDailyLimit {
		t.Fatalf("limit 0: got %d, want default", got)
	}
	if got := NewProvider("", -5).Usage().DailyLimit; got != defaultDailyLimit {
		t.Fatalf("negative limit: got %d, want default", got)
	}
	if got := NewProvider("", maxDailyLimit+1).Usage().DailyLimit; got != defaultDailyLimit {
		t.Fatalf("huge limit: got %d, want default", got)
	}
	if got := NewProvider("", 42).Usage().DailyLimit; got != 42 {
		t.Fatalf("sane limit: got %d, want 42", got)
	}
}

func TestGenerateParsesUpstreamWord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("key not forwarded, query = %q", r.URL.RawQuery)
		}
		w.Write(geminiReply(t, " pizza! "))
	}))
	defer srv.Close()

	p := NewProvider("test-key", 10)
	p.endpoint = srv.URL

	res := p.Generate(context.Background(), "comida", "", false)
	if res.Word != "PIZZA" {
		t.Fatalf("word = %q, want PIZZA", res.Word)
	}
}

func TestGenerateParsesUpstreamWordWithHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(geminiReply(t, `{"word":"perro","hint":"animal"}`))
	}))
	defer srv.Close()

	p := NewProvider("test-key", 10)
	p.endpoint = srv.URL

	res := p.Generate(context.Background(), "", "animales", true)
	if res.Word != "PERRO" {
		t.Fatalf("word = %q, want PERRO", res.Word)
	}
	if res.Hint != "ANIMAL" {
		t.Fatalf("hint = %q, want ANIMAL", res.Hint)
	}
}

func TestGenerateHintEqualToWordIsReplaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(geminiReply(t, `{"word":"perro","hint":"PERRO"}`))
	}))
	defer srv.Close()

	p := NewProvider("test-key", 10)
	p.endpoint = srv.URL

	res := p.Generate(context.Background(), "", "", true)
	if res.Hint != fallbackHint {
		t.Fatalf("hint = %q, want %q", res.Hint, fallbackHint)
	}
}

func TestGenerateFallsBackOnUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewProvider("test-key", 10)
	p.endpoint = srv.URL

	res := p.Generate(context.Background(), "", "", false)
	if !isFallbackWord(res.Word) {
		t.Fatalf("got %q, want a fallback word", res.Word)
	}
}

func TestGenerateFallsBackOnMalformedHintJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(geminiReply(t, "not json at all"))
	}))
	defer srv.Close()

	p := NewProvider("test-key", 10)
	p.endpoint = srv.URL

	res := p.Generate(context.Background(), "", "", true)
	if res.Word != "MISTERIO" || res.Hint != "ALGO" {
		t.Fatalf("got %q/%q, want MISTERIO/ALGO", res.Word, res.Hint)
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"pizza", "PIZZA"},
		{" Pizza!\n", "PIZZA"},
		{"camión", "CAMIÓN"},
		{"año nuevo", "AÑONUEVO"},
		{"123!?", ""},
		{"", ""},
	}

	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestPickFromUnknownCategoryFallsBackToGeneral(t *testing.T) {
	w := PickFrom("no-such-category")
	found := false
	for _, candidate := range lists["general"] {
		if w == candidate {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("%q is not in the general list", w)
	}
}

func TestGenericHint(t *testing.T) {
	if got := GenericHint("animals"); got == "" {
		t.Fatal("known category yields empty hint")
	}
	if got := GenericHint("no-such-category"); got != "COSA" {
		t.Fatalf("unknown category hint = %q, want COSA", got)
	}
}
