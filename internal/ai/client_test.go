package ai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			_, _ = w.Write([]byte(line + "\n"))
		}
	}))
}

func TestStream_ForwardsFragments(t *testing.T) {
	server := sseServer(t, []string{
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		``,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		`data: [DONE]`,
	})
	defer server.Close()

	client := NewClient()
	var got []string
	err := client.Stream(context.Background(), ChatConfig{BaseURL: server.URL, Model: "m"}, nil, 100, func(frag string) error {
		got = append(got, frag)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, got)
}

func TestStream_SkipsMalformedLines(t *testing.T) {
	server := sseServer(t, []string{
		`data: not json at all`,
		`data: {"choices":[]}`,
		`: comment line`,
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
		`data: [DONE]`,
	})
	defer server.Close()

	client := NewClient()
	var got []string
	err := client.Stream(context.Background(), ChatConfig{BaseURL: server.URL}, nil, 100, func(frag string) error {
		got = append(got, frag)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, got)
}

func TestStream_HTTPErrorBecomesFragment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	client := NewClient()
	var got []string
	err := client.Stream(context.Background(), ChatConfig{BaseURL: server.URL}, nil, 100, func(frag string) error {
		got = append(got, frag)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "LLM error:")
	assert.Contains(t, got[0], "rate limited")
}

func TestStream_NetworkErrorBecomesFragment(t *testing.T) {
	client := NewClient()
	var got []string
	err := client.Stream(context.Background(), ChatConfig{BaseURL: "http://127.0.0.1:1"}, nil, 100, func(frag string) error {
		got = append(got, frag)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "LLM")
}

func TestStream_OnFragmentErrorPropagates(t *testing.T) {
	server := sseServer(t, []string{
		`data: {"choices":[{"delta":{"content":"first"}}]}`,
		`data: {"choices":[{"delta":{"content":"second"}}]}`,
		`data: [DONE]`,
	})
	defer server.Close()

	client := NewClient()
	wantErr := errors.New("client went away")
	err := client.Stream(context.Background(), ChatConfig{BaseURL: server.URL}, nil, 100, func(string) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestStream_CancelPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient()
	err := client.Stream(ctx, ChatConfig{BaseURL: "http://127.0.0.1:1"}, nil, 100, func(string) error {
		t.Fatal("no fragment expected")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
