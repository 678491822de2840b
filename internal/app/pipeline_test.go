package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maine/ai_news_digest/internal/config"
	"github.com/maine/ai_news_digest/internal/filter"
	"github.com/maine/ai_news_digest/internal/gemini"
	"github.com/maine/ai_news_digest/internal/news"
	"github.com/maine/ai_news_digest/internal/ranking"
	"github.com/maine/ai_news_digest/internal/rules"
	"github.com/maine/ai_news_digest/internal/snapshot"
)

type stubCollector struct {
	articles []news.RawArticle
	err      error
}

func (s stubCollector) Collect(context.Context) ([]news.RawArticle, error) {
	return s.articles, s.err
}

type recordingSummarizer struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	order       []string
	fail        map[string]bool
}

func (s *recordingSummarizer) Summarize(_ context.Context, a news.RawArticle) (news.Summary, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.order = append(s.order, a.Title)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if s.fail[a.Title] {
		return gemini.Fallback(a), errors.New("model down")
	}
	return news.Summary{TitleJA: a.Title + " (ja)", SummaryJA: "要約"}, nil
}

type countingPacer struct {
	waits int
	err   error
}

func (p *countingPacer) Wait(context.Context) error {
	p.waits++
	return p.err
}

type memoryStore struct {
	latest     *news.Snapshot
	archive    map[string]news.Snapshot
	latestErr  error
	archiveErr error
}

func (m *memoryStore) WriteLatest(_ context.Context, snap news.Snapshot) error {
	if m.latestErr != nil {
		return m.latestErr
	}
	m.latest = &snap
	return nil
}

func (m *memoryStore) WriteArchive(_ context.Context, key string, snap news.Snapshot) error {
	if m.archiveErr != nil {
		return m.archiveErr
	}
	if m.archive == nil {
		m.archive = map[string]news.Snapshot{}
	}
	m.archive[key] = snap
	return nil
}

var testRules = rules.New(rules.Document{
	AllowKeywords:   []string{"ai", "machine learning"},
	ExcludeDomains:  []string{"spam.example"},
	ExcludeKeywords: []string{"sports"},
})

func fixedClock() time.Time {
	// 2026-10-18 16:30 UTC = 2026-10-19 01:30 JST
	return time.Date(2026, 10, 18, 16, 30, 0, 0, time.UTC)
}

func newTestPipeline(collector SourceCollector, summarizer Summarizer, store SnapshotStore, pacer Pacer) *Pipeline {
	return NewPipeline(PipelineDeps{
		Collector:  collector,
		Filter:     filter.New(testRules),
		Ranker:     ranking.NewRanker(config.Pipeline{MaxArticles: 20}),
		Summarizer: summarizer,
		Store:      store,
		Pacer:      pacer,
		Clock:      fixedClock,
		Location:   time.FixedZone("JST", 9*60*60),
	})
}

func TestPipeline_Run(t *testing.T) {
	articles := []news.RawArticle{
		{Title: "Older AI story", URL: "https://a.example/1", PublishedAt: "2026-10-17T10:00:00Z"},
		{Title: news.RemovedTitle, Description: "ai", PublishedAt: "2026-10-18T12:00:00Z"},
		{Title: "AI in sports", URL: "https://a.example/2", PublishedAt: "2026-10-18T11:00:00Z"},
		{Title: "AI spam", URL: "https://www.spam.example/3", PublishedAt: "2026-10-18T11:00:00Z"},
		{Title: "Machine learning at scale", URL: "https://a.example/4", PublishedAt: "2026-10-18T09:00:00Z"},
		{Title: "Gardening", URL: "https://a.example/5", PublishedAt: "2026-10-18T12:00:00Z"},
		{Title: "Undated AI note", URL: "https://a.example/6"},
	}

	summarizer := &recordingSummarizer{fail: map[string]bool{"Older AI story": true}}
	store := &memoryStore{}
	pacer := &countingPacer{}

	snap, err := newTestPipeline(stubCollector{articles: articles}, summarizer, store, pacer).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.Equal(t, []string{"Machine learning at scale", "Older AI story", "Undated AI note"}, summarizer.order)
	assert.Equal(t, 1, summarizer.maxInFlight)
	assert.Equal(t, 2, pacer.waits)

	require.Len(t, snap.Articles, 3)
	assert.Equal(t, "Machine learning at scale (ja)", snap.Articles[0].TitleJA)
	assert.Equal(t, "https://a.example/4", snap.Articles[0].OriginalURL)
	assert.Equal(t, "Older AI story", snap.Articles[1].TitleJA)
	assert.True(t, snap.UpdatedAt.Equal(fixedClock()))

	require.NotNil(t, store.latest)
	assert.Equal(t, *snap, *store.latest)
	require.Contains(t, store.archive, "2026-10-19")
}

func TestPipeline_TruncatesToMax(t *testing.T) {
	var articles []news.RawArticle
	base := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 35; i++ {
		articles = append(articles, news.RawArticle{
			Title:       fmt.Sprintf("AI item %d", i),
			PublishedAt: base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
		})
	}

	summarizer := &recordingSummarizer{}
	pacer := &countingPacer{}
	snap, err := newTestPipeline(stubCollector{articles: articles}, summarizer, &memoryStore{}, pacer).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Articles, 20)
	assert.Equal(t, "AI item 34", snap.Articles[0].Title)
	assert.Equal(t, 19, pacer.waits)
}

func TestPipeline_NoOp(t *testing.T) {
	tests := []struct {
		name      string
		collector SourceCollector
	}{
		{name: "no candidates", collector: stubCollector{}},
		{name: "collector error", collector: stubCollector{err: errors.New("boom")}},
		{
			name: "nothing relevant",
			collector: stubCollector{articles: []news.RawArticle{
				{Title: "Gardening"},
				{Title: news.RemovedTitle},
				{Title: "AI in sports"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			latest := filepath.Join(dir, "latest.json")
			store := snapshot.NewFileStore(latest, filepath.Join(dir, "archive"))
			summarizer := &recordingSummarizer{}

			snap, err := newTestPipeline(tt.collector, summarizer, store, &countingPacer{}).Run(context.Background())
			require.NoError(t, err)
			assert.Nil(t, snap)
			assert.Empty(t, summarizer.order)

			assert.NoFileExists(t, latest)
			assert.NoDirExists(t, filepath.Join(dir, "archive"))
		})
	}
}

func TestPipeline_SameDayRerunOverwritesArchive(t *testing.T) {
	dir := t.TempDir()
	store := snapshot.NewFileStore(filepath.Join(dir, "latest.json"), filepath.Join(dir, "archive"))

	first := stubCollector{articles: []news.RawArticle{{Title: "AI first"}}}
	second := stubCollector{articles: []news.RawArticle{{Title: "AI second"}}}

	_, err := newTestPipeline(first, &recordingSummarizer{}, store, &countingPacer{}).Run(context.Background())
	require.NoError(t, err)
	_, err = newTestPipeline(second, &recordingSummarizer{}, store, &countingPacer{}).Run(context.Background())
	require.NoError(t, err)

	keys, err := store.ListArchive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-19"}, keys)

	got, err := store.ReadArchive(context.Background(), "2026-10-19")
	require.NoError(t, err)
	require.Len(t, got.Articles, 1)
	assert.Equal(t, "AI second", got.Articles[0].Title)
}

func TestPipeline_PersistFailures(t *testing.T) {
	collector := stubCollector{articles: []news.RawArticle{{Title: "AI story"}}}

	_, err := newTestPipeline(collector, &recordingSummarizer{}, &memoryStore{latestErr: errors.New("disk full")}, &countingPacer{}).
		Run(context.Background())
	assert.ErrorContains(t, err, "persist latest")

	_, err = newTestPipeline(collector, &recordingSummarizer{}, &memoryStore{archiveErr: errors.New("permission denied")}, &countingPacer{}).
		Run(context.Background())
	assert.ErrorContains(t, err, "persist archive")
}

func TestPipeline_PacerCancellationStopsRun(t *testing.T) {
	collector := stubCollector{articles: []news.RawArticle{{Title: "AI one"}, {Title: "AI two"}}}
	store := &memoryStore{}
	pacer := &countingPacer{err: context.Canceled}

	_, err := newTestPipeline(collector, &recordingSummarizer{}, store, pacer).Run(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, store.latest)
}

func TestPipeline_NotConfigured(t *testing.T) {
	_, err := NewPipeline(PipelineDeps{}).Run(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestFixedDelay_Wait(t *testing.T) {
	start := time.Now()
	require.NoError(t, FixedDelay(20*time.Millisecond).Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, FixedDelay(time.Hour).Wait(ctx), context.Canceled)
	assert.NoError(t, FixedDelay(0).Wait(context.Background()))
}
