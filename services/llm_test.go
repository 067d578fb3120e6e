package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"
)

// scriptedChat replays canned responses and records what was sent.
type scriptedChat struct {
	responses []*genai.GenerateContentResponse
	sent      []genai.Part
}

func (c *scriptedChat) SendMessage(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	c.sent = append(c.sent, parts...)
	if len(c.responses) == 0 {
		return nil, errors.New("no more responses")
	}
	r := c.responses[0]
	c.responses = c.responses[1:]
	return r, nil
}

func modelReply(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Role: "model", Parts: parts},
	}}}
}

func TestGeminiCompleterAnswersToolCalls(t *testing.T) {
	chat := &scriptedChat{responses: []*genai.GenerateContentResponse{
		modelReply(&genai.Part{FunctionCall: &genai.FunctionCall{Name: "lookup", Args: map[string]any{"q": "fees"}}}),
		modelReply(&genai.Part{Text: "Fees are "}, &genai.Part{Text: "9500 euros."}),
	}}
	var gotConfig *genai.GenerateContentConfig
	var gotHistory []*genai.Content
	completer := &GeminiCompleter{model: "gemini-test", newChat: func(_ context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
		assert.Equal(t, "gemini-test", model)
		gotConfig, gotHistory = config, history
		return chat, nil
	}}

	var toolArgs map[string]any
	answer, err := completer.Complete(context.Background(), CompletionRequest{
		System:  "persona",
		History: []Turn{{Role: RoleUser, Text: "hi"}, {Role: RoleAssistant, Text: "hello"}},
		Prompt:  "What are the fees?",
		Tools: []Tool{{
			Declaration: &genai.FunctionDeclaration{Name: "lookup"},
			Handle: func(_ context.Context, args map[string]any) (string, error) {
				toolArgs = args
				return "9500", nil
			},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Fees are 9500 euros.", answer)
	assert.Equal(t, map[string]any{"q": "fees"}, toolArgs)

	require.Len(t, chat.sent, 2)
	assert.Equal(t, "What are the fees?", chat.sent[0].Text)
	require.NotNil(t, chat.sent[1].FunctionResponse)
	assert.Equal(t, map[string]any{"result": "9500"}, chat.sent[1].FunctionResponse.Response)

	require.Len(t, gotConfig.Tools, 1)
	assert.Equal(t, "lookup", gotConfig.Tools[0].FunctionDeclarations[0].Name)
	assert.Equal(t, "persona", gotConfig.SystemInstruction.Parts[0].Text)
	require.Len(t, gotHistory, 2)
	assert.Equal(t, "model", gotHistory[1].Role)
}

func TestGeminiCompleterUnknownToolAndFailures(t *testing.T) {
	chat := &scriptedChat{responses: []*genai.GenerateContentResponse{
		modelReply(&genai.Part{FunctionCall: &genai.FunctionCall{Name: "deleteEverything"}}),
		modelReply(&genai.Part{Text: "Sorry."}),
	}}
	completer := &GeminiCompleter{newChat: func(context.Context, string, *genai.GenerateContentConfig, []*genai.Content) (chatSession, error) {
		return chat, nil
	}}
	answer, err := completer.Complete(context.Background(), CompletionRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Sorry.", answer)
	assert.Contains(t, chat.sent[1].FunctionResponse.Response["result"], "Unknown function")

	_, err = completer.Complete(context.Background(), CompletionRequest{Prompt: "x"})
	assert.ErrorIs(t, err, ErrLLMUnavailable)

	empty := &scriptedChat{responses: []*genai.GenerateContentResponse{{}}}
	completer.newChat = func(context.Context, string, *genai.GenerateContentConfig, []*genai.Content) (chatSession, error) {
		return empty, nil
	}
	_, err = completer.Complete(context.Background(), CompletionRequest{Prompt: "x"})
	assert.ErrorIs(t, err, ErrLLMUnavailable)
}

func TestGeminiCompleterStopsEndlessToolCalls(t *testing.T) {
	call := modelReply(&genai.Part{FunctionCall: &genai.FunctionCall{Name: "loop"}})
	responses := make([]*genai.GenerateContentResponse, maxToolRounds+2)
	for i := range responses {
		responses[i] = call
	}
	chat := &scriptedChat{responses: responses}
	completer := &GeminiCompleter{newChat: func(context.Context, string, *genai.GenerateContentConfig, []*genai.Content) (chatSession, error) {
		return chat, nil
	}}

	_, err := completer.Complete(context.Background(), CompletionRequest{Prompt: "x"})
	assert.ErrorIs(t, err, ErrLLMUnavailable)
	assert.Len(t, chat.sent, maxToolRounds+1)
}

// fakeModel is an llms.Model that echoes the message types it received.
type fakeModel struct {
	messages []llms.MessageContent
	err      error
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "local answer"}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestOllamaCompleterBuildsMessages(t *testing.T) {
	model := &fakeModel{}
	completer := &OllamaCompleter{llm: model}

	answer, err := completer.Complete(context.Background(), CompletionRequest{
		System:  "persona",
		History: []Turn{{Role: RoleUser, Text: "hi"}, {Role: RoleAssistant, Text: "hello"}},
		Prompt:  "question",
	})
	require.NoError(t, err)
	assert.Equal(t, "local answer", answer)
	assert.False(t, completer.SupportsTools())

	var roles []llms.ChatMessageType
	for _, m := range model.messages {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []llms.ChatMessageType{
		llms.ChatMessageTypeSystem, llms.ChatMessageTypeHuman, llms.ChatMessageTypeAI, llms.ChatMessageTypeHuman,
	}, roles)
	assert.Equal(t, llms.TextContent{Text: "question"}, model.messages[3].Parts[0])

	model.err = errors.New("connection refused")
	_, err = completer.Complete(context.Background(), CompletionRequest{Prompt: "q"})
	assert.ErrorIs(t, err, ErrLLMUnavailable)
}
