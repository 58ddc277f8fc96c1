package tavily

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

func TestSearch(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"results":[
			{"title":"Nike, Inc.","url":"https://example.com/nike","content":"<b>Just</b> do it"},
			{"title":"Nike culture","url":"https://example.com/culture","content":"Teamwork"}
		]}`))
	}))
	defer srv.Close()

	c := New("key", time.Second, WithBaseURL(srv.URL), WithMaxResults(2), WithDepth("basic"))
	res, err := c.Search(context.Background(), "Nike culture")
	require.NoError(t, err)

	assert.Equal(t, "Nike culture", got.Query)
	assert.Equal(t, "key", got.APIKey)
	assert.Equal(t, 2, got.MaxResults)
	assert.Equal(t, "basic", got.SearchDepth)

	require.Len(t, res.Sources, 2)
	assert.Equal(t, "https://example.com/nike", res.Sources[0].URL)
	assert.Contains(t, res.Text, "Content: Just do it")
	assert.NotContains(t, res.Text, "<b>")
}

func TestSearchMissingKey(t *testing.T) {
	_, err := New("", time.Second).Search(context.Background(), "q")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestSearchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New("key", time.Second, WithBaseURL(srv.URL)).Search(context.Background(), "q")
	assert.ErrorContains(t, err, "401")
}
