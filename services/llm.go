package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"google.golang.org/genai"

	"github/itish2003/admissions/logger"
)

var ErrLLMUnavailable = errors.New("language model unavailable")

// maxToolRounds bounds the function-calling loop of one completion.
const maxToolRounds = 5

// Speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "model"
)

type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// ToolHandler runs a tool call and returns the text handed back to the model.
type ToolHandler func(ctx context.Context, args map[string]any) (string, error)

// Tool is a function the model may call during a completion.
type Tool struct {
	Declaration *genai.FunctionDeclaration
	Handle      ToolHandler
}

// CompletionRequest is one prompt with its system persona, earlier turns and
// the tools the model may call.
type CompletionRequest struct {
	System  string
	History []Turn
	Prompt  string
	Tools   []Tool
}

// Completer turns a prompt into a text completion.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// SupportsTools reports whether Tools in a request are offered to the model.
	SupportsTools() bool
}

// chatSession is the part of *genai.Chat the completer drives.
type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatFactory func(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)

// GeminiCompleter completes prompts with a Gemini chat session and answers
// function calls until the model returns text.
type GeminiCompleter struct {
	model   string
	newChat chatFactory
}

var _ Completer = (*GeminiCompleter)(nil)

func NewGeminiCompleter(client *genai.Client, model string) *GeminiCompleter {
	return &GeminiCompleter{
		model: model,
		newChat: func(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
			return client.Chats.Create(ctx, model, config, history)
		},
	}
}

func (g *GeminiCompleter) SupportsTools() bool { return true }

func (g *GeminiCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	config := &genai.GenerateContentConfig{SystemInstruction: GetSystemPrompt(req.System)}
	handlers := make(map[string]ToolHandler, len(req.Tools))
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, t.Declaration)
			handlers[t.Declaration.Name] = t.Handle
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	history := make([]*genai.Content, 0, len(req.History))
	for _, turn := range req.History {
		history = append(history, genai.NewContentFromText(turn.Text, genai.Role(turn.Role)))
	}

	session, err := g.newChat(ctx, g.model, config, history)
	if err != nil {
		return "", fmt.Errorf("%w: could not start chat session: %w", ErrLLMUnavailable, err)
	}

	currentPart := genai.Part{Text: req.Prompt}
	for round := 0; ; round++ {
		result, err := session.SendMessage(ctx, currentPart)
		if err != nil {
			return "", fmt.Errorf("%w: gemini api call failed: %w", ErrLLMUnavailable, err)
		}
		if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
			return "", fmt.Errorf("%w: empty response", ErrLLMUnavailable)
		}

		part := result.Candidates[0].Content.Parts[0]
		if part.FunctionCall == nil {
			var responseText strings.Builder
			for _, p := range result.Candidates[0].Content.Parts {
				responseText.WriteString(p.Text)
			}
			return responseText.String(), nil
		}
		if round >= maxToolRounds {
			return "", fmt.Errorf("%w: model kept calling tools after %d rounds", ErrLLMUnavailable, maxToolRounds)
		}

		call := part.FunctionCall
		logger.Debug("Model wants to call function", "function", call.Name, "args", call.Args)
		var toolResult string
		if handle, ok := handlers[call.Name]; ok {
			out, err := handle(ctx, call.Args)
			if err != nil {
				toolResult = fmt.Sprintf("Error: %v", err)
			} else {
				toolResult = out
			}
		} else {
			toolResult = fmt.Sprintf("Error: Unknown function '%s' requested.", call.Name)
		}
		currentPart = genai.Part{FunctionResponse: &genai.FunctionResponse{
			Name:     call.Name,
			Response: map[string]any{"result": toolResult},
		}}
	}
}

// OllamaCompleter completes prompts with a local model through langchaingo.
// It does not offer tools to the model.
type OllamaCompleter struct {
	llm llms.Model
}

var _ Completer = (*OllamaCompleter)(nil)

func NewOllamaCompleter(serverURL, model string) (*OllamaCompleter, error) {
	llm, err := ollama.New(ollama.WithServerURL(serverURL), ollama.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}
	return &OllamaCompleter{llm: llm}, nil
}

func (o *OllamaCompleter) SupportsTools() bool { return false }

func (o *OllamaCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]llms.MessageContent, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	for _, turn := range req.History {
		msgType := llms.ChatMessageTypeHuman
		if turn.Role == RoleAssistant {
			msgType = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(msgType, turn.Text))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	resp, err := o.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: ollama call failed: %w", ErrLLMUnavailable, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrLLMUnavailable)
	}
	return resp.Choices[0].Content, nil
}
