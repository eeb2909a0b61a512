package agent

import (
	"context"
	"log"

	"ai-workflowgen-be/pkg/llm"
	"ai-workflowgen-be/pkg/workflow/parser"
	"ai-workflowgen-be/pkg/workflow/prompt"
)

// Agent drives one profile against an LLM provider: it formats the prompt,
// replays the supplied history, opens the streamed model response and adapts
// it into turn events. Agents hold no conversation state of their own; the
// history is always externally supplied.
type Agent struct {
	profile  Profile
	provider llm.LLMProvider
	parser   *parser.OutputParser
	logger   *log.Logger
}

func New(profile Profile, provider llm.LLMProvider, logger *log.Logger) *Agent {
	return &Agent{
		profile:  profile,
		provider: provider,
		parser:   parser.NewOutputParser(profile.DefaultSchema),
		logger:   logger,
	}
}

func (a *Agent) Profile() Profile {
	return a.profile
}

// Run executes one streamed turn. The returned channel carries content and
// tool-call events in model order, then exactly one done or error event.
func (a *Agent) Run(ctx context.Context, input string, history []llm.Message) (<-chan Event, error) {
	messages := a.buildMessages(input, history)

	chunks, err := a.provider.ChatStream(ctx, messages,
		llm.WithTemperature(a.profile.Temperature),
		llm.WithMaxTokens(a.profile.MaxTokens),
	)
	if err != nil {
		return nil, err
	}

	adapter := NewStreamAdapter(func(accumulated string) (map[string]interface{}, error) {
		if a.logger != nil {
			a.logger.Printf("[%s] post-processing %d chars", a.profile.Name, len(accumulated))
		}
		// Parse never fails; malformed output degrades to schema defaults.
		return a.parser.Parse(accumulated), nil
	})

	return adapter.Run(chunks), nil
}

// RunBlocking executes one non-streamed turn and returns the parsed result.
func (a *Agent) RunBlocking(ctx context.Context, input string, history []llm.Message) (map[string]interface{}, error) {
	messages := a.buildMessages(input, history)

	content, err := a.provider.Chat(ctx, messages,
		llm.WithTemperature(a.profile.Temperature),
		llm.WithMaxTokens(a.profile.MaxTokens),
	)
	if err != nil {
		return nil, err
	}

	return a.parser.Parse(content), nil
}

func (a *Agent) buildMessages(input string, history []llm.Message) []llm.Message {
	rendered := prompt.Render(a.profile.PromptTemplate, map[string]string{
		"input_requirement": input,
	})

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: a.profile.SystemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: rendered})
	return messages
}
