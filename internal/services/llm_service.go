package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docchat_go_backend/internal/models"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type CompletionRequest struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Messages    []PromptMessage
}

type LLMConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	// Model is the provider default. The openai provider lets each chat's
	// settings override it.
	Model string
}

// NewLanguageModel builds the adapter for the configured provider.
func NewLanguageModel(ctx context.Context, cfg LLMConfig) (LanguageModel, error) {
	switch cfg.Provider {
	case "", "openai":
		chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create openai chat model: %w", err)
		}
		return NewEinoLanguageModel(chatModel, true), nil
	case "claude":
		var baseURL *string
		if cfg.BaseURL != "" {
			baseURL = &cfg.BaseURL
		}
		chatModel, err := claude.NewChatModel(ctx, &claude.Config{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   baseURL,
			MaxTokens: models.DefaultMaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create claude chat model: %w", err)
		}
		return NewEinoLanguageModel(chatModel, false), nil
	case "gemini":
		client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create GenAI client: %w", err)
		}
		return NewGeminiLanguageModel(client, cfg.Model), nil
	default:
		return nil, fmt.Errorf("invalid provider: %s", cfg.Provider)
	}
}

type chatGenerator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// EinoLanguageModel adapts an eino chat model.
type EinoLanguageModel struct {
	chatModel chatGenerator
	// perChatModel forwards CompletionRequest.Model to the provider.
	perChatModel bool
}

func NewEinoLanguageModel(chatModel chatGenerator, perChatModel bool) *EinoLanguageModel {
	return &EinoLanguageModel{chatModel: chatModel, perChatModel: perChatModel}
}

func (m *EinoLanguageModel) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]*schema.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, &schema.Message{
			Role:    toEinoRole(msg.Role),
			Content: msg.Content,
		})
	}

	opts := []model.Option{
		model.WithTemperature(float32(req.Temperature)),
		model.WithMaxTokens(req.MaxTokens),
	}
	if m.perChatModel && req.Model != "" {
		opts = append(opts, model.WithModel(req.Model))
	}

	resp, err := m.chatModel.Generate(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.New("empty completion")
	}
	return resp.Content, nil
}

func toEinoRole(role models.MessageRole) schema.RoleType {
	switch role {
	case models.RoleSystem:
		return schema.System
	case models.RoleAssistant:
		return schema.Assistant
	default:
		return schema.User
	}
}

// GeminiLanguageModel talks to Gemini through a genai chat session whose
// history is rebuilt from the prompt on every call.
type GeminiLanguageModel struct {
	client    *genai.Client
	modelName string
}

func NewGeminiLanguageModel(client *genai.Client, modelName string) *GeminiLanguageModel {
	return &GeminiLanguageModel{client: client, modelName: modelName}
}

func (g *GeminiLanguageModel) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	gm := g.client.GenerativeModel(g.modelName)
	gm.SetTemperature(float32(req.Temperature))
	gm.SetMaxOutputTokens(int32(req.MaxTokens))

	system, history, last, err := toGeminiHistory(req.Messages)
	if err != nil {
		return "", err
	}
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	cs := gm.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty completion")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

func (g *GeminiLanguageModel) Close() error {
	return g.client.Close()
}

// toGeminiHistory splits the prompt into a system instruction, prior turns
// and the final user text. Gemini wants history to open with a user turn and
// to alternate roles, so leading model turns are dropped and runs of one
// role are merged.
func toGeminiHistory(messages []PromptMessage) (string, []*genai.Content, string, error) {
	if len(messages) == 0 || messages[len(messages)-1].Role != models.RoleUser {
		return "", nil, "", errors.New("prompt must end with a user message")
	}

	var system []string
	var history []*genai.Content
	for _, msg := range messages[:len(messages)-1] {
		if msg.Role == models.RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		role := "user"
		if msg.Role == models.RoleAssistant {
			role = "model"
		}
		if len(history) == 0 && role == "model" {
			continue
		}
		if n := len(history); n > 0 && history[n-1].Role == role {
			history[n-1].Parts = append(history[n-1].Parts, genai.Text(msg.Content))
			continue
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(msg.Content)}})
	}

	return strings.Join(system, "\n\n"), history, messages[len(messages)-1].Content, nil
}
