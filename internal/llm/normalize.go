package llm

// ExtractResponseText pulls the reply text out of an arbitrary decoded
// provider body. Shapes are tried in fixed precedence: OpenAI chat
// completions (choices[0].message.content), Responses API output list,
// top-level content (block list or plain string), then a top-level
// response string. The first non-empty hit wins.
func ExtractResponseText(data map[string]any) string {
	if text := fromChoices(data["choices"]); text != "" {
		return text
	}
	if text := fromOutput(data["output"]); text != "" {
		return text
	}
	if text := fromContent(data["content"]); text != "" {
		return text
	}
	if text, ok := data["response"].(string); ok {
		return text
	}
	return ""
}

func fromChoices(v any) string {
	choices, ok := v.([]any)
	if !ok || len(choices) == 0 {
		return ""
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return ""
	}
	message, ok := first["message"].(map[string]any)
	if !ok {
		return ""
	}
	text, _ := message["content"].(string)
	return text
}

func fromOutput(v any) string {
	items, ok := v.([]any)
	if !ok {
		return ""
	}
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if text := firstBlockText(m["content"]); text != "" {
			return text
		}
	}
	return ""
}

func fromContent(v any) string {
	if text := firstBlockText(v); text != "" {
		return text
	}
	text, _ := v.(string)
	return text
}

// firstBlockText reads the text of the first block in a content list. Only
// the first block is consulted; providers place the reply there.
func firstBlockText(v any) string {
	blocks, ok := v.([]any)
	if !ok || len(blocks) == 0 {
		return ""
	}
	first, ok := blocks[0].(map[string]any)
	if !ok {
		return ""
	}
	text, _ := first["text"].(string)
	return text
}

// NormalizeResult enforces the success invariant on a provider result:
// success without a response id is not trusted and is downgraded to a
// reportable failure, since chaining would silently break on the next turn.
func NormalizeResult(r *CanonicalResult) *CanonicalResult {
	if r == nil {
		return &CanonicalResult{ErrorMessage: msgUnexpected}
	}
	out := *r
	if out.Success && out.ResponseID == "" {
		out.Success = false
		out.ResponseText = ""
		out.ErrorMessage = msgNoResponseID
	}
	if !out.Success && out.ErrorMessage == "" {
		out.ErrorMessage = msgUnexpected
	}
	return &out
}
