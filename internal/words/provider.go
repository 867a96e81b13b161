package words

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"

	defaultDailyLimit = 500
	maxDailyLimit     = 100000

	upstreamTimeout = 5 * time.Second
	usageWindow     = 24 * time.Hour
)

type Result struct {
	Word string `json:"word"`
	Hint string `json:"hint,omitempty"`
}

// Source is what the room state machine sees: an opaque word generator
// that always yields something usable.
type Source interface {
	Generate(ctx context.Context, topic, category string, wantHint bool) Result
}

type Usage struct {
	DailyLimit  int   `json:"dailyLimit"`
	WindowStart int64 `json:"windowStart"`
	WindowCount int   `json:"windowCount"`
	TotalCalls  int64 `json:"totalCalls"`
}

// Provider generates secret words through Gemini, degrading to the local
// fallback vocabulary whenever the daily budget is spent, no key is
// configured or the upstream call fails. It never returns an error.
type Provider struct {
	apiKey     string
	dailyLimit int
	endpoint   string
	httpc      *http.Client

	mu          sync.Mutex
	windowStart time.Time
	windowCount int
	totalCalls  int64
}

func NewProvider(apiKey string, dailyLimit int) *Provider {
	if dailyLimit <= 0 || dailyLimit >= maxDailyLimit {
		dailyLimit = defaultDailyLimit
	}

	return &Provider{
		apiKey:      apiKey,
		dailyLimit:  dailyLimit,
		endpoint:    defaultEndpoint,
		httpc:       &http.Client{Timeout: upstreamTimeout},
		windowStart: time.Now(),
	}
}

func (p *Provider) Generate(ctx context.Context, topic, category string, wantHint bool) Result {
	// Over budget: fall back locally without even counting the call
	if !p.consumeBudget() {
		zap.L().Warn("word budget exhausted, using fallback vocabulary")
		return fallbackResult(wantHint)
	}

	if p.apiKey == "" || strings.Contains(p.apiKey, "XXXX") {
		return fallbackResult(wantHint)
	}

	text, err := p.callUpstream(ctx, buildPrompt(topic, category, wantHint), wantHint)
	if err != nil {
		zap.L().Error("word generation failed, using fallback", zap.Error(err))
		return fallbackResult(wantHint)
	}

	if wantHint {
		var parsed Result
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			zap.L().Error("word generation returned malformed JSON", zap.Error(err))
			return Result{Word: "MISTERIO", Hint: "ALGO"}
		}

		word := Normalize(parsed.Word)
		hint := Normalize(parsed.Hint)
		if word == "" {
			word = fallbackWord()
		}
		if hint == "" || hint == word {
			hint = fallbackHint
		}

		return Result{Word: word, Hint: hint}
	}

	word := Normalize(text)
	if word == "" {
		word = fallbackWord()
	}

	return Result{Word: word}
}

func (p *Provider) Usage() Usage {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Usage{
		DailyLimit:  p.dailyLimit,
		WindowStart: p.windowStart.UnixMilli(),
		WindowCount: p.windowCount,
		TotalCalls:  p.totalCalls,
	}
}

// consumeBudget reports whether the rolling daily window still has room,
// counting the call when it does. Rooms and the direct HTTP endpoint share
// this one budget.
func (p *Provider) consumeBudget() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.windowStart) > usageWindow {
		p.windowStart = time.Now()
		p.windowCount = 0
	}

	if p.windowCount >= p.dailyLimit {
		return false
	}

	p.windowCount++
	p.totalCalls++

	return true
}

func buildPrompt(topic, category string, wantHint bool) string {
	base := fmt.Sprintf("Categoría: %q", category)
	if category == "" {
		base = `Categoría: "general"`
	}
	if topic != "" {
		base = fmt.Sprintf("Tema: %q", topic)
	}

	instruction := `Genera solo una palabra en español (sustantivo común, mayúsculas) relacionada. Solo texto.`
	if wantHint {
		instruction = `Genera un JSON con dos campos: "word" (palabra en español, sustantivo común, mayúsculas) y "hint" (otra palabra también en mayúsculas, relacionada pero NO la misma, para dar como pista). Solo JSON.`
	}

	return base + ". " + instruction
}

type geminiRequest struct {
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		Temperature      float64 `json:"temperature"`
		MaxOutputTokens  int     `json:"maxOutputTokens"`
		ResponseMimeType string  `json:"responseMimeType"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (p *Provider) callUpstream(ctx context.Context, prompt string, wantJSON bool) (string, error) {
	var reqBody geminiRequest

	reqBody.Contents = make([]struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	}, 1)
	reqBody.Contents[0].Parts = make([]struct {
		Text string `json:"text"`
	}, 1)
	reqBody.Contents[0].Parts[0].Text = prompt

	reqBody.GenerationConfig.Temperature = 0.9
	reqBody.GenerationConfig.MaxOutputTokens = 50
	reqBody.GenerationConfig.ResponseMimeType = "text/plain"
	if wantJSON {
		reqBody.GenerationConfig.ResponseMimeType = "application/json"
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.endpoint+"?key="+p.apiKey,
		bytes.NewReader(payload),
	)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("upstream call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("upstream returned no candidates")
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

var wordPattern = regexp.MustCompile(`[^A-ZÁÉÍÓÚÑÜ]`)

// Normalize uppercases a candidate word and strips everything that is not
// a Spanish letter.
func Normalize(s string) string {
	return wordPattern.ReplaceAllString(strings.ToUpper(strings.TrimSpace(s)), "")
}

func fallbackResult(wantHint bool) Result {
	res := Result{Word: fallbackWord()}
	if wantHint {
		res.Hint = fallbackHint
	}

	return res
}
