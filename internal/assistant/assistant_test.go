package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billing/internal/metrics"
)

// chatServer answers every completion with reply and records the last request.
func chatServer(t *testing.T, reply string, status int) (*httptest.Server, *openai.ChatCompletionRequest) {
	t.Helper()
	var last openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/openai/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&last))

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"unavailable"}}`))
			return
		}

		resp := openai.ChatCompletionResponse{Model: last.Model}
		if reply != "" {
			resp.Choices = []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply},
			}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &last
}

func newTestService(srv *httptest.Server) *Service {
	cfg := Config{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1beta/openai/",
		Model:   "gemini-2.0-flash",
	}
	return NewService(NewClient(cfg), cfg)
}

func TestAsk(t *testing.T) {
	srv, last := chatServer(t, "O total é R$ 300,00.", http.StatusOK)
	svc := newTestService(srv)

	history := []Message{
		{Role: RoleUser, Text: "Quem é o maior cliente?"},
		{Role: RoleModel, Text: "Acme."},
	}
	answer, err := svc.Ask(context.Background(), "  Qual o total?  ", history, "Total: R$ 300,00")
	require.NoError(t, err)
	assert.Equal(t, "O total é R$ 300,00.", answer)

	require.Len(t, last.Messages, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, last.Messages[0].Role)
	assert.Contains(t, last.Messages[0].Content, "Total: R$ 300,00")
	assert.Equal(t, openai.ChatMessageRoleUser, last.Messages[1].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, last.Messages[2].Role)
	assert.Equal(t, "Qual o total?", last.Messages[3].Content)
	assert.Equal(t, "gemini-2.0-flash", last.Model)
}

func TestAskNoChoices(t *testing.T) {
	srv, _ := chatServer(t, "", http.StatusOK)
	answer, err := newTestService(srv).Ask(context.Background(), "Oi?", nil, "")
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, answer)
}

func TestAskUpstreamError(t *testing.T) {
	srv, _ := chatServer(t, "", http.StatusServiceUnavailable)
	_, err := newTestService(srv).Ask(context.Background(), "Oi?", nil, "")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestAskValidation(t *testing.T) {
	svc := NewService(nil, Config{})

	_, err := svc.Ask(context.Background(), "   ", nil, "")
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = svc.Ask(context.Background(), "Oi?", []Message{{Role: "system", Text: "x"}}, "")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestSummarizeComparison(t *testing.T) {
	srv, last := chatServer(t, "Crescimento de 50%.", http.StatusOK)

	pct := 50.0
	diff := metrics.PeriodDiff{
		CurrentLabel:  "05/2024",
		PreviousLabel: "04/2024",
		Storage: metrics.Delta{
			Previous:  decimal.NewFromInt(100),
			Current:   decimal.NewFromInt(150),
			Change:    decimal.NewFromInt(50),
			ChangePct: &pct,
			Count:     [2]int{1, 2},
		},
	}

	answer, err := newTestService(srv).SummarizeComparison(context.Background(), "CD VIANA", diff)
	require.NoError(t, err)
	assert.Equal(t, "Crescimento de 50%.", answer)

	prompt := last.Messages[len(last.Messages)-1].Content
	assert.Contains(t, prompt, "CD VIANA")
	assert.Contains(t, prompt, "05/2024")
	assert.Contains(t, prompt, "Armazenagem: R$ 100,00 -> R$ 150,00 (variação R$ 50,00, 50,0%; títulos 1 -> 2)")
}

func TestDescribeSummary(t *testing.T) {
	s := metrics.Summary{
		KPIs: metrics.KPIs{
			Storage:       metrics.Bucket{Amount: decimal.NewFromInt(1234), Count: 3},
			Total:         metrics.Bucket{Amount: decimal.NewFromInt(1234), Count: 3},
			ShareOfGlobal: 25,
		},
		Rating: metrics.Rating{Grade: "B", Score: 45},
		Ranking: metrics.Ranking{
			Top: []metrics.ClientAmount{{Name: "Acme", Amount: decimal.NewFromInt(1000)}},
		},
	}

	text := DescribeSummary("CD Viana", s)
	assert.Contains(t, text, "Painel: CD Viana")
	assert.Contains(t, text, "Armazenagem: R$ 1.234,00 em 3 títulos")
	assert.Contains(t, text, "25,0% do faturamento global")
	assert.Contains(t, text, "Acme: R$ 1.000,00")
	assert.NotContains(t, text, "Inadimplentes")
}
