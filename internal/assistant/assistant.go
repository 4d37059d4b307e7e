// Package assistant answers questions about the billing data through an
// OpenAI-compatible chat completion endpoint.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"billing/internal/logger"
	"billing/internal/metrics"
)

// FallbackAnswer is returned when the model produces no candidate.
const FallbackAnswer = "Não foi possível obter uma resposta da IA. Tente novamente."

// NoPreviousPeriod is answered, without calling the model, when a comparison
// has no earlier period.
const NoPreviousPeriod = "Não há período anterior com dados para comparar."

// Role tags a history entry.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

var (
	// ErrEmptyQuestion is returned when there is nothing to ask.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrUnknownRole is returned for history entries with an unsupported role.
	ErrUnknownRole = errors.New("unknown message role")

	// ErrUpstream is returned when the chat endpoint fails.
	ErrUpstream = errors.New("assistant endpoint failed")
)

// Message is one turn of a conversation.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// ChatClient is the part of *openai.Client the service uses.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config configures the assistant
type Config struct {
	APIKey      string
	BaseURL     string  // OpenAI-compatible endpoint, e.g. Gemini's /v1beta/openai/
	Model       string  // gemini-2.0-flash
	Temperature float32 // sampling temperature
	MaxTokens   int     // answer length cap, 0 for the endpoint default
}

// NewClient creates a chat client for cfg.
func NewClient(cfg Config) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return openai.NewClientWithConfig(clientConfig)
}

// Service builds prompts from billing figures and sends them to the model.
type Service struct {
	client ChatClient
	config Config
	log    zerolog.Logger
}

// NewService creates an assistant using client.
func NewService(client ChatClient, config Config) *Service {
	return &Service{
		client: client,
		config: config,
		log:    logger.WithComponent("assistant"),
	}
}

// Ask answers question given the previous turns and a textual description
// of the data currently on screen.
func (s *Service) Ask(ctx context.Context, question string, history []Message, dataContext string) (string, error) {
	const op = "Ask"

	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyQuestion)
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(dataContext)},
	}
	for i, m := range history {
		role, err := chatRole(m.Role)
		if err != nil {
			return "", fmt.Errorf("%s: history entry %d: %w", op, i, err)
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: question})

	answer, err := s.complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return answer, nil
}

// SummarizeComparison asks the model to explain the change between two periods.
func (s *Service) SummarizeComparison(ctx context.Context, location string, diff metrics.PeriodDiff) (string, error) {
	const op = "SummarizeComparison"

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt("")},
		{Role: openai.ChatMessageRoleUser, Content: comparisonPrompt(location, diff)},
	}

	answer, err := s.complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return answer, nil
}

func (s *Service) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	s.log.Debug().
		Int("messages", len(messages)).
		Str("model", s.config.Model).
		Float32("temperature", s.config.Temperature).
		Msg("Sending chat completion request")

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Temperature: s.config.Temperature,
		MaxTokens:   s.config.MaxTokens,
		Messages:    messages,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Chat completion request failed")
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		s.log.Warn().Msg("Chat completion returned no answer")
		return FallbackAnswer, nil
	}

	s.log.Debug().
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("Received chat completion")

	return resp.Choices[0].Message.Content, nil
}

func chatRole(r Role) (string, error) {
	switch r {
	case RoleUser:
		return openai.ChatMessageRoleUser, nil
	case RoleModel:
		return openai.ChatMessageRoleAssistant, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, r)
	}
}
