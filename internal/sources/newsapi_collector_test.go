package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maine/ai_news_digest/internal/config"
	"github.com/maine/ai_news_digest/internal/news"
)

func newCollector(t *testing.T, handler http.HandlerFunc) *NewsAPICollector {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.NewsAPI{
		BaseURL:  srv.URL,
		Query:    `"artificial intelligence" OR AI`,
		Language: "en",
		PageSize: 100,
	}
	return NewNewsAPICollector(cfg, "secret", srv.Client())
}

func TestNewsAPICollector_Collect(t *testing.T) {
	var gotQuery, gotKey string
	c := newCollector(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("X-Api-Key")
		assert.Equal(t, "/v2/everything", r.URL.Path)

		_, _ = w.Write([]byte(`{
			"status": "ok",
			"totalResults": 2,
			"articles": [
				{
					"source": {"id": null, "name": "The Verge"},
					"title": "New model",
					"description": "desc",
					"content": "body",
					"url": "https://www.theverge.com/a",
					"urlToImage": "https://img.example/a.png",
					"publishedAt": "2026-10-18T09:00:00Z"
				},
				{"title": "[Removed]", "source": {"name": "[Removed]"}}
			]
		}`))
	})

	got, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "The Verge", got[0].Source.Name)
	assert.Equal(t, "https://img.example/a.png", got[0].URLToImage)
	assert.Equal(t, "secret", gotKey)
	assert.Contains(t, gotQuery, "pageSize=50")
	assert.Contains(t, gotQuery, "sortBy=publishedAt")
	assert.Contains(t, gotQuery, "language=en")
}

func TestNewsAPICollector_TruncatesToMaxPageSize(t *testing.T) {
	c := newCollector(t, func(w http.ResponseWriter, r *http.Request) {
		resp := searchResponse{Status: "ok"}
		for i := 0; i < MaxPageSize+10; i++ {
			resp.Articles = append(resp.Articles, news.RawArticle{Title: fmt.Sprintf("t%d", i)})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	got, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, MaxPageSize)
}

func TestNewsAPICollector_SoftFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "api error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"bad key"}`))
			},
		},
		{
			name: "non json body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(`<html>bad gateway</html>`))
			},
		},
		{
			name: "status not ok",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":"error","code":"rateLimited"}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCollector(t, tt.handler)
			got, err := c.Collect(context.Background())
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestNewsAPICollector_TransportFailure(t *testing.T) {
	c := NewNewsAPICollector(config.NewsAPI{BaseURL: "http://127.0.0.1:1"}, "k", nil)
	got, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}
