package prompt

import (
	"strings"

	"answerd/internal/generation"
)

// ChatML flattens messages into a single prompt for backends that accept raw
// text, leaving an open assistant turn at the end.
func ChatML(messages []generation.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString("<|im_start|>")
		sb.WriteString(string(m.Role))
		sb.WriteByte('\n')
		sb.WriteString(m.Content)
		sb.WriteString("<|im_end|>\n")
	}
	sb.WriteString("<|im_start|>assistant\n")
	return sb.String()
}

// StopSequences are the ChatML markers a raw-text backend should stop on.
var StopSequences = []string{"<|im_end|>", "<|im_start|>"}
