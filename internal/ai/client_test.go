package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

func reply(text string) string {
	payload, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}}},
	})
	return string(payload)
}

func TestClientCompleteSendsPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/flash:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "hello")
		_, _ = io.WriteString(w, reply("world"))
	}))
	defer srv.Close()

	client := NewClient(Config{Endpoint: srv.URL + "/models", APIKey: "secret", Model: "flash"}, nil)
	text, err := client.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "world", text)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, reply("ok"))
	}))
	defer srv.Close()

	client := NewClient(Config{Endpoint: srv.URL, MaxRetries: 2, RetryDelay: time.Millisecond}, nil)
	text, err := client.Complete(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientGivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(Config{Endpoint: srv.URL, MaxRetries: 1, RetryDelay: time.Millisecond}, nil)
	_, err := client.Complete(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrAIUnavailable))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(Config{Endpoint: srv.URL, MaxRetries: 3, RetryDelay: time.Millisecond}, nil)
	_, err := client.Complete(context.Background(), "x")
	assert.True(t, errors.Is(err, appErrors.ErrAIUnavailable))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNilClientIsUnavailable(t *testing.T) {
	client := NewClient(Config{}, nil)
	assert.Nil(t, client)
	_, err := client.Complete(context.Background(), "x")
	assert.True(t, errors.Is(err, appErrors.ErrAIUnavailable))
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		"```json\n[{\"name\":\"A\"}]\n```":     `[{"name":"A"}]`,
		"Sure! {\"a\":1} hope this helps":       `{"a":1}`,
		"  [1,[2,3]] trailing":                  `[1,[2,3]]`,
		"```\n{\"teachers\":[{\"name\":\"B\"}]}```": `{"teachers":[{"name":"B"}]}`,
	}
	for in, want := range cases {
		got, err := ExtractJSON(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ExtractJSON("no structured data here")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestTeacherImportPromptListsKnownNames(t *testing.T) {
	prompt := TeacherImportPrompt("  Ms. Ada teaches math ", []string{"Ada Lovelace", "Bo"})
	assert.Contains(t, prompt, "Ada Lovelace, Bo")
	assert.Contains(t, prompt, "Text:\nMs. Ada teaches math\n")
}
