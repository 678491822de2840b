package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maine/ai_news_digest/internal/news"
)

func testSnapshot(ts time.Time, titles ...string) news.Snapshot {
	snap := news.Snapshot{UpdatedAt: ts}
	for _, title := range titles {
		snap.Articles = append(snap.Articles, news.ProcessedArticle{Title: title, TitleJA: title + "_ja"})
	}
	return snap
}

func TestFileStore_WriteAndRead(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewFileStore(filepath.Join(tmpDir, "data", "latest.json"), filepath.Join(tmpDir, "data", "archive"))
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)

	t.Run("read missing latest", func(t *testing.T) {
		_, err := store.ReadLatest(ctx)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("ReadLatest() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("write and read latest", func(t *testing.T) {
		if err := store.WriteLatest(ctx, testSnapshot(now, "a", "b")); err != nil {
			t.Fatalf("WriteLatest() error = %v", err)
		}
		got, err := store.ReadLatest(ctx)
		if err != nil {
			t.Fatalf("ReadLatest() error = %v", err)
		}
		if !got.UpdatedAt.Equal(now) {
			t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, now)
		}
		if len(got.Articles) != 2 || got.Articles[1].TitleJA != "b_ja" {
			t.Errorf("Articles = %+v", got.Articles)
		}
	})

	t.Run("same day archive is overwritten", func(t *testing.T) {
		if err := store.WriteArchive(ctx, "2026-10-19", testSnapshot(now, "first")); err != nil {
			t.Fatalf("WriteArchive() error = %v", err)
		}
		if err := store.WriteArchive(ctx, "2026-10-19", testSnapshot(now.Add(time.Hour), "second")); err != nil {
			t.Fatalf("WriteArchive() error = %v", err)
		}

		got, err := store.ReadArchive(ctx, "2026-10-19")
		if err != nil {
			t.Fatalf("ReadArchive() error = %v", err)
		}
		if len(got.Articles) != 1 || got.Articles[0].Title != "second" {
			t.Errorf("archive Articles = %+v, want only 'second'", got.Articles)
		}

		keys, err := store.ListArchive(ctx)
		if err != nil {
			t.Fatalf("ListArchive() error = %v", err)
		}
		if len(keys) != 1 {
			t.Errorf("ListArchive() = %v, want one key", keys)
		}
	})

	t.Run("list archive newest first", func(t *testing.T) {
		_ = store.WriteArchive(ctx, "2026-10-17", testSnapshot(now))
		_ = os.WriteFile(filepath.Join(tmpDir, "data", "archive", "notes.txt"), []byte("x"), 0o644)

		keys, err := store.ListArchive(ctx)
		if err != nil {
			t.Fatalf("ListArchive() error = %v", err)
		}
		want := []string{"2026-10-19", "2026-10-17"}
		if len(keys) != len(want) || keys[0] != want[0] || keys[1] != want[1] {
			t.Errorf("ListArchive() = %v, want %v", keys, want)
		}
	})

	t.Run("invalid archive key", func(t *testing.T) {
		if err := store.WriteArchive(ctx, "../../etc", testSnapshot(now)); err == nil {
			t.Errorf("WriteArchive() with bad key should fail")
		}
		if _, err := store.ReadArchive(ctx, "2026-13-40"); !errors.Is(err, ErrNotFound) {
			t.Errorf("ReadArchive() bad key error = %v, want ErrNotFound", err)
		}
	})
}

func TestFileStore_EmptyArticlesSerializeAsArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.json")
	store := NewFileStore(path, t.TempDir())
	if err := store.WriteLatest(context.Background(), news.Snapshot{}); err != nil {
		t.Fatalf("WriteLatest() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"articles": []`) {
		t.Errorf("expected empty array in %s", data)
	}
}

func TestFileStore_FailedWriteKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "latest.json")
	store := NewFileStore(path, dir)
	ctx := context.Background()

	if err := store.WriteLatest(ctx, testSnapshot(time.Now(), "keep")); err != nil {
		t.Fatalf("WriteLatest() error = %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := store.WriteLatest(cancelled, testSnapshot(time.Now(), "lost")); err == nil {
		t.Fatalf("WriteLatest() with cancelled context should fail")
	}

	got, err := store.ReadLatest(ctx)
	if err != nil {
		t.Fatalf("ReadLatest() error = %v", err)
	}
	if got.Articles[0].Title != "keep" {
		t.Errorf("previous snapshot was modified: %+v", got.Articles)
	}
}

func TestArchiveKey(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	// 2026-10-18 20:00 UTC — уже 19 октября в Токио
	ts := time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC)

	if got := ArchiveKey(ts, tokyo); got != "2026-10-19" {
		t.Errorf("ArchiveKey(JST) = %q, want 2026-10-19", got)
	}
	if got := ArchiveKey(ts, nil); got != "2026-10-18" {
		t.Errorf("ArchiveKey(nil) = %q, want 2026-10-18", got)
	}
}
