package local

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestReadStream_OpenAIChunks(t *testing.T) {
	body := strings.Join([]string{
		`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
		``,
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		`data: {"choices":[{"delta":{"content":"lo"},"finish_reason":"stop"}]}`,
		`: keep-alive`,
		`data: [DONE]`,
		`data: {"choices":[{"delta":{"content":"ignored"}}]}`,
	}, "\n")
	var got []string
	finish, err := readStream(context.Background(), strings.NewReader(body), func(s string) error {
		got = append(got, s)
		return nil
	})
	if err != nil {
		t.Fatalf("readStream: %v", err)
	}
	if strings.Join(got, "") != "Hello" || finish != "stop" {
		t.Fatalf("got=%q finish=%q", got, finish)
	}
}

func TestReadStream_NativeContentAndEOF(t *testing.T) {
	body := "data: {\"content\":\"a\"}\ndata: {\"content\":\"b\",\"stop\":true}"
	var sb strings.Builder
	finish, err := readStream(context.Background(), strings.NewReader(body), func(s string) error {
		sb.WriteString(s)
		return nil
	})
	if err != nil || sb.String() != "ab" || finish != "stop" {
		t.Fatalf("text=%q finish=%q err=%v", sb.String(), finish, err)
	}
}

func TestReadStream_CallbackErrorStops(t *testing.T) {
	stop := errors.New("stop")
	body := "data: {\"content\":\"a\"}\ndata: {\"content\":\"b\"}\n"
	n := 0
	_, err := readStream(context.Background(), strings.NewReader(body), func(string) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) || n != 1 {
		t.Fatalf("err=%v calls=%d", err, n)
	}
}

func TestReadStream_EOFWithoutFinishIsTruncated(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n"
	var sb strings.Builder
	_, err := readStream(context.Background(), strings.NewReader(body), func(s string) error {
		sb.WriteString(s)
		return nil
	})
	if !errors.Is(err, errStreamTruncated) || sb.String() != "Hel" {
		t.Fatalf("text=%q err=%v", sb.String(), err)
	}
}

func TestReadStream_EmptyBodyIsTruncated(t *testing.T) {
	_, err := readStream(context.Background(), strings.NewReader(""), func(string) error { return nil })
	if !errors.Is(err, errStreamTruncated) {
		t.Fatalf("err=%v", err)
	}
}
