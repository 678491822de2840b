package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/maine/ai_news_digest/internal/news"
)

// ArchiveKeyLayout — формат ключа архива.
const ArchiveKeyLayout = "2006-01-02"

// ErrNotFound возвращается, если запрошенного снапшота нет.
var ErrNotFound = errors.New("snapshot not found")

var archiveKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ArchiveKey возвращает календарную дату t в зоне loc.
func ArchiveKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(ArchiveKeyLayout)
}

// ValidArchiveKey проверяет, что ключ имеет вид YYYY-MM-DD.
func ValidArchiveKey(key string) bool {
	if !archiveKeyPattern.MatchString(key) {
		return false
	}
	_, err := time.Parse(ArchiveKeyLayout, key)
	return err == nil
}

// FileStore хранит текущий снапшот и дневной архив в JSON-файлах.
type FileStore struct {
	latestPath string
	archiveDir string
}

// NewFileStore создаёт новый файловый стор.
func NewFileStore(latestPath, archiveDir string) *FileStore {
	return &FileStore{latestPath: latestPath, archiveDir: archiveDir}
}

// WriteLatest перезаписывает текущий снапшот.
func (s *FileStore) WriteLatest(ctx context.Context, snap news.Snapshot) error {
	if err := writeJSON(ctx, s.latestPath, snap); err != nil {
		return fmt.Errorf("write latest snapshot: %w", err)
	}
	return nil
}

// WriteArchive перезаписывает архивную копию за дату dateKey.
func (s *FileStore) WriteArchive(ctx context.Context, dateKey string, snap news.Snapshot) error {
	if !ValidArchiveKey(dateKey) {
		return fmt.Errorf("invalid archive key %q", dateKey)
	}
	if err := writeJSON(ctx, s.archivePath(dateKey), snap); err != nil {
		return fmt.Errorf("write archive %s: %w", dateKey, err)
	}
	return nil
}

// ReadLatest читает текущий снапшот.
func (s *FileStore) ReadLatest(ctx context.Context) (news.Snapshot, error) {
	return readJSON(ctx, s.latestPath)
}

// ReadArchive читает архив за дату dateKey.
func (s *FileStore) ReadArchive(ctx context.Context, dateKey string) (news.Snapshot, error) {
	if !ValidArchiveKey(dateKey) {
		return news.Snapshot{}, ErrNotFound
	}
	return readJSON(ctx, s.archivePath(dateKey))
}

// ListArchive возвращает даты архивов, от новых к старым.
func (s *FileStore) ListArchive(ctx context.Context) ([]string, error) {
	_ = ctx

	entries, err := os.ReadDir(s.archiveDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read archive dir: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key := strings.TrimSuffix(e.Name(), ".json")
		if key == e.Name() || !ValidArchiveKey(key) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}

func (s *FileStore) archivePath(dateKey string) string {
	return filepath.Join(s.archiveDir, dateKey+".json")
}

func readJSON(ctx context.Context, path string) (news.Snapshot, error) {
	_ = ctx

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return news.Snapshot{}, ErrNotFound
		}
		return news.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var snap news.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return news.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// writeJSON записывает файл атомарно (через временный файл): при сбое
// прежнее содержимое остаётся нетронутым.
func writeJSON(ctx context.Context, path string, snap news.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if snap.Articles == nil {
		snap.Articles = []news.ProcessedArticle{}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}

	// Переименование атомарно на большинстве файловых систем
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
