package moderation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClassifierScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		score := 0.1
		if req.Text == "you are awful" {
			score = 0.95
		}
		_ = json.NewEncoder(w).Encode(scoreResponse{Toxicity: score})
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, time.Second)
	s, err := c.Score(context.Background(), "nice post")
	require.NoError(t, err)
	assert.InDelta(t, 0.1, s, 1e-9)

	s, err = c.Score(context.Background(), "you are awful")
	require.NoError(t, err)
	assert.InDelta(t, 0.95, s, 1e-9)
}

func TestHTTPClassifierErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/range" {
			_, _ = w.Write([]byte(`{"toxicity": 3}`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPClassifier(srv.URL, time.Second).Score(context.Background(), "x")
	assert.ErrorContains(t, err, "status 503")

	_, err = NewHTTPClassifier(srv.URL+"/range", time.Second).Score(context.Background(), "x")
	assert.ErrorContains(t, err, "out of range")
}
