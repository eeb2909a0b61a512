package agent

import "ai-workflowgen-be/pkg/workflow/prompt"

// Profile is the capability set of one agent kind: its prompts, its default
// schema for heuristic extraction, and its model parameters. Agent variants
// are plain values, not a type hierarchy.
type Profile struct {
	Name           string
	SystemPrompt   string
	PromptTemplate string
	DefaultSchema  map[string]interface{}
	Temperature    float64
	MaxTokens      int
}

// UnderstandingProfile reformulates raw user input into a standardized
// requirement, asking clarification questions until it is complete.
func UnderstandingProfile() Profile {
	return Profile{
		Name:           "requirement_understanding",
		SystemPrompt:   prompt.UnderstandingSystemPrompt,
		PromptTemplate: prompt.UnderstandingPromptTemplate,
		DefaultSchema: map[string]interface{}{
			"complete": false,
			"requirement": map[string]interface{}{
				"intent":          "",
				"functionalities": []interface{}{},
				"components":      []interface{}{},
				"constraints":     []interface{}{},
			},
			"clarification_questions": []interface{}{},
		},
		Temperature: 0.3,
		MaxTokens:   4096,
	}
}

// ClarificationProfile refines a standardized requirement into a detailed
// specification.
func ClarificationProfile() Profile {
	return Profile{
		Name:           "requirement_clarification",
		SystemPrompt:   prompt.ClarificationSystemPrompt,
		PromptTemplate: prompt.ClarificationPromptTemplate,
		DefaultSchema: map[string]interface{}{
			"refined_intent":           "",
			"detailed_functionalities": []interface{}{},
			"workflow_steps":           []interface{}{},
			"open_points":              []interface{}{},
		},
		Temperature: 0.3,
		MaxTokens:   4096,
	}
}

// BreakdownProfile splits a detailed specification into workflow nodes.
func BreakdownProfile() Profile {
	return Profile{
		Name:           "workflow_breakdown",
		SystemPrompt:   prompt.BreakdownSystemPrompt,
		PromptTemplate: prompt.BreakdownPromptTemplate,
		DefaultSchema: map[string]interface{}{
			"nodes": []interface{}{},
			"edges": []interface{}{},
		},
		Temperature: 0.3,
		MaxTokens:   4096,
	}
}

// DetailingProfile produces full node configurations from a breakdown.
func DetailingProfile() Profile {
	return Profile{
		Name:           "workflow_detailing",
		SystemPrompt:   prompt.DetailingSystemPrompt,
		PromptTemplate: prompt.DetailingPromptTemplate,
		DefaultSchema: map[string]interface{}{
			"workflow": map[string]interface{}{},
			"notes":    []interface{}{},
		},
		Temperature: 0.3,
		MaxTokens:   4096,
	}
}
