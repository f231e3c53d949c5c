package local

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"answerd/internal/generation"
)

// chatRequest is the payload for /v1/chat/completions.
type chatRequest struct {
	Messages         []chatMessage `json:"messages"`
	Stream           bool          `json:"stream"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
	Temperature      float32       `json:"temperature"`
	TopP             float32       `json:"top_p,omitempty"`
	MinP             float32       `json:"min_p,omitempty"`
	FrequencyPenalty float32       `json:"frequency_penalty,omitempty"`
	PresencePenalty  float32       `json:"presence_penalty,omitempty"`
	CachePrompt      bool          `json:"cache_prompt"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func newChatRequest(messages []generation.Message, p generation.Params) chatRequest {
	msgs := make([]chatMessage, len(messages))
	for i, m := range messages {
		msgs[i] = chatMessage{Role: string(m.Role), Content: m.Content}
	}
	return chatRequest{
		Messages:         msgs,
		Stream:           true,
		MaxTokens:        p.MaxTokens,
		Temperature:      p.Temperature,
		TopP:             p.TopP,
		MinP:             p.MinP,
		FrequencyPenalty: p.FrequencyPenalty,
		PresencePenalty:  p.PresencePenalty,
		CachePrompt:      true,
	}
}

// streamChunk is the subset of an OpenAI streaming chunk we read. Content
// covers servers that stream native {"content": ...} objects instead.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Content string `json:"content"`
	Stop    bool   `json:"stop"`
}

// errStreamTruncated reports a stream that ended without [DONE] or a finish
// reason.
var errStreamTruncated = errors.New("llama server stream ended early")

// readStream parses "data:" lines from r until [DONE] or EOF, passing content
// fragments to onToken. It returns the finish reason when one was reported.
// EOF is only a clean end once a finish reason was seen.
func readStream(ctx context.Context, r io.Reader, onToken func(string) error) (string, error) {
	log := zerolog.Ctx(ctx)
	br := bufio.NewReader(r)
	finish := ""
	for {
		line, err := br.ReadString('\n')
		if l := strings.TrimSpace(line); l != "" && strings.HasPrefix(strings.ToLower(l), "data:") {
			data := strings.TrimSpace(l[len("data:"):])
			if data == "[DONE]" {
				return finish, nil
			}
			var chunk streamChunk
			if jerr := json.Unmarshal([]byte(data), &chunk); jerr != nil {
				log.Debug().Str("line", l).Msg("unknown stream line")
			} else {
				frag := chunk.Content
				if len(chunk.Choices) > 0 {
					frag = chunk.Choices[0].Delta.Content
					if fr := chunk.Choices[0].FinishReason; fr != "" {
						finish = fr
					}
				}
				if frag != "" {
					if cbErr := onToken(frag); cbErr != nil {
						return finish, cbErr
					}
				}
				if chunk.Stop && finish == "" {
					finish = "stop"
				}
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return finish, generation.Interrupted(ctx.Err())
			}
			if errors.Is(err, io.EOF) {
				if finish == "" {
					return "", errStreamTruncated
				}
				return finish, nil
			}
			return finish, err
		}
	}
}
