package parser

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fencedJSONPattern = regexp.MustCompile("(?is)```[a-z]*\\s*([\\[{].*?[\\]}])\\s*```")
	bareJSONPattern   = regexp.MustCompile(`(?s)\{.*?\}`)
	languageTagLine   = regexp.MustCompile(`(?m)^[a-zA-Z]+\n`)
)

// OutputParser extracts a single best-guess structured result from a model's
// accumulated output. Strategies are tried in order: fenced JSON block, bare
// JSON span, schema-guided section extraction. It never returns an error for
// malformed input; the worst case is an empty map.
type OutputParser struct {
	defaultSchema map[string]interface{}
}

// NewOutputParser builds a parser. defaultSchema may be nil; when present it
// drives the heuristic text-extraction fallback and supplies field defaults.
func NewOutputParser(defaultSchema map[string]interface{}) *OutputParser {
	return &OutputParser{defaultSchema: defaultSchema}
}

// Parse extracts a JSON object from the response text.
func (p *OutputParser) Parse(text string) map[string]interface{} {
	// 1. Fenced code blocks
	if blocks := extractJSONFromCodeBlocks(text); len(blocks) > 0 {
		switch first := blocks[0].(type) {
		case map[string]interface{}:
			return first
		case []interface{}:
			for _, el := range first {
				if m, ok := el.(map[string]interface{}); ok {
					return m
				}
			}
		}
	}

	// 2. Bare JSON span
	if m := extractBareJSON(text); m != nil {
		return m
	}

	// 3. Schema-guided section extraction
	if len(p.defaultSchema) > 0 {
		return p.extractStructuredInformation(text)
	}

	return map[string]interface{}{}
}

// extractJSONFromCodeBlocks collects every parseable fenced JSON payload.
func extractJSONFromCodeBlocks(text string) []interface{} {
	matches := fencedJSONPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	var blocks []interface{}
	for _, match := range matches {
		payload := languageTagLine.ReplaceAllString(strings.TrimSpace(match[1]), "")
		var v interface{}
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			continue
		}
		blocks = append(blocks, v)
	}
	return blocks
}

// extractBareJSON tries the first non-greedy {...} span, then the widest
// first-to-last brace span for nested objects.
func extractBareJSON(text string) map[string]interface{} {
	if match := bareJSONPattern.FindString(text); match != "" {
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(match), &m); err == nil {
			return m
		}
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end <= start {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(text[start:end+1]), &m); err != nil {
		return nil
	}
	return m
}

// extractStructuredInformation falls back to plain-text section scanning:
// blank-line-delimited paragraphs, "<field>:" headers, bullet items for
// list-typed fields. Fields never matched keep their schema defaults.
func (p *OutputParser) extractStructuredInformation(text string) map[string]interface{} {
	result := make(map[string]interface{}, len(p.defaultSchema))
	for key, value := range p.defaultSchema {
		if _, isList := value.([]interface{}); isList {
			result[key] = []interface{}{}
		} else if _, isStringList := value.([]string); isStringList {
			result[key] = []interface{}{}
		} else {
			result[key] = value
		}
	}

	sections := strings.Split(text, "\n\n")
	for _, section := range sections {
		for key := range p.defaultSchema {
			pattern := regexp.MustCompile(`(?is)` + regexp.QuoteMeta(key) + `\s*:(.*)`)
			match := pattern.FindStringSubmatch(section)
			if match == nil {
				continue
			}
			content := strings.TrimSpace(match[1])

			if isListField(p.defaultSchema[key]) {
				result[key] = extractListItems(content)
			} else {
				result[key] = content
			}
		}
	}

	return result
}

func isListField(v interface{}) bool {
	switch v.(type) {
	case []interface{}, []string:
		return true
	default:
		return false
	}
}

// extractListItems collects bullet lines; without bullets every non-empty
// line becomes an item.
func extractListItems(content string) []interface{} {
	lines := strings.Split(content, "\n")

	var bullets []interface{}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "*") || strings.HasPrefix(trimmed, "•") {
			item := strings.TrimSpace(strings.TrimLeft(trimmed, "-*•"))
			if item != "" {
				bullets = append(bullets, item)
			}
		}
	}
	if len(bullets) > 0 {
		return bullets
	}

	var items []interface{}
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if items == nil {
		return []interface{}{}
	}
	return items
}
