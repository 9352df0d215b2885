package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient("test-key", srv.URL, "test-model", "https://example.com")
}

func respondChat(w http.ResponseWriter, content string) {
	json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
}

func TestComplete(t *testing.T) {
	var gotAuth string
	var calls int32
	_, c := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		gotAuth = r.Header.Get("Authorization")

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		respondChat(w, "hello")
	})

	text, err := c.Complete(context.Background(), "hi", 100)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCompleteRetriesOn429(t *testing.T) {
	var calls int32
	_, c := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		respondChat(w, "recovered")
	})

	text, err := c.Complete(context.Background(), "hi", 100)
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCompleteDoesNotRetryAuthFailure(t *testing.T) {
	var calls int32
	_, c := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad key"}})
	})

	_, err := c.Complete(context.Background(), "hi", 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCompleteHonorsContextDeadline(t *testing.T) {
	_, c := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server observes the client going away;
		// the handler must unblock for the test server to shut down.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, "hi", 100)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCompleteNoAPIKey(t *testing.T) {
	c := NewClient("", "http://localhost", "m", "s")
	_, err := c.Complete(context.Background(), "hi", 100)
	assert.Error(t, err)
}

func TestGenerateQuestions(t *testing.T) {
	_, c := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		respondChat(w, "1. Who are the target users of the product?\n2. Which platforms must be supported first?\n3. What is the expected launch timeline?")
	})

	questions, err := c.GenerateQuestions(context.Background(), "a habit tracker")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Who are the target users of the product?",
		"Which platforms must be supported first?",
		"What is the expected launch timeline?",
	}, questions)
}

func TestGenerateQuestionsEmptyOutput(t *testing.T) {
	_, c := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		respondChat(w, "I could not think of anything.")
	})

	_, err := c.GenerateQuestions(context.Background(), "a habit tracker")
	assert.Error(t, err)
}

func TestGenerateDocuments(t *testing.T) {
	var calls int32
	_, c := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		respondChat(w, "# Document")
	})

	docs, err := c.GenerateDocuments(context.Background(), "desc", "reqs")
	require.NoError(t, err)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls), "one call per document")
	assert.Equal(t, "# Document", docs.UserJourneyMap)
	assert.Equal(t, "# Document", docs.ProductRequirements)
	assert.Equal(t, "# Document", docs.FrontendDesign)
	assert.Equal(t, "# Document", docs.BackendDesign)
	assert.Equal(t, "# Document", docs.DatabaseDesign)
}

func TestGenerateDocumentsFailsAsAWhole(t *testing.T) {
	var calls int32
	_, c := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 3 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		respondChat(w, "# Document")
	})

	_, err := c.GenerateDocuments(context.Background(), "desc", "reqs")
	assert.Error(t, err, "a single failed document fails the whole run")
}

func TestParseQuestions(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "numbered list",
			in:   "1. What is the budget for this project?\n2) Who maintains it afterwards?",
			want: []string{"What is the budget for this project?", "Who maintains it afterwards?"},
		},
		{
			name: "bulleted list",
			in:   "- How many users do you expect?\n* Which integrations are required?",
			want: []string{"How many users do you expect?", "Which integrations are required?"},
		},
		{
			name: "quoted items",
			in:   `1. "What does success look like?"`,
			want: []string{"What does success look like?"},
		},
		{
			name: "caps at five",
			in:   "1. Question number one?\n2. Question number two?\n3. Question number three?\n4. Question number four?\n5. Question number five?\n6. Question number six?",
			want: []string{"Question number one?", "Question number two?", "Question number three?", "Question number four?", "Question number five?"},
		},
		{
			name: "fallback to question-mark lines",
			in:   "Here are some thoughts.\nWhat data must be retained?\nNothing else.",
			want: []string{"What data must be retained?"},
		},
		{
			name: "nothing usable",
			in:   "No questions here.",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseQuestions(tt.in))
		})
	}
}
