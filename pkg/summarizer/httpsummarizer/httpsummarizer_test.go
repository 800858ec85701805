package httpsummarizer_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukewwww/community-intern/pkg/summarizer/httpsummarizer"
)

func TestSummarizer_SummarizeRoundTrips(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SystemPrompt string `json:"system_prompt"`
			Text         string `json:"text"`
		}

		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sys", body.SystemPrompt)
		assert.Equal(t, "hello world", body.Text)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": "S"})
	}))
	defer srv.Close()

	s := httpsummarizer.New(srv.URL, 5*time.Second)

	text, err := s.Summarize(context.Background(), "sys", "hello world")
	require.NoError(t, err)
	assert.Equal(t, "S", text)
}

func TestSummarizer_NonOKStatusIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := httpsummarizer.New(srv.URL, 5*time.Second)

	_, err := s.Summarize(context.Background(), "sys", "text")
	require.Error(t, err)
}
