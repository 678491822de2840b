// Package offline реализует клиентский офлайн-слой: статика отдаётся
// из кэша, данные — сначала из сети, при её недоступности из кэша.
package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// SourceHeader помечает ответы, отданные из кэша.
const (
	SourceHeader = "X-Offline-Source"
	SourceCache  = "cache"
)

const (
	strategyData        = "network_first"
	strategyStatic      = "cache_first"
	strategyPassthrough = "passthrough"

	backgroundWriteTimeout = 10 * time.Second
	cacheLookupTimeout     = 5 * time.Second
)

var (
	// ErrNoResponse — нет ни сети, ни копии в кэше.
	ErrNoResponse = errors.New("offline: no network response and no cached copy")
	// ErrInstallFailed — не удалось закэшировать статический набор.
	ErrInstallFailed = errors.New("offline: install failed")
)

// Config описывает одну версию офлайн-слоя.
type Config struct {
	// Origin — базовый адрес приложения, например https://news.example.
	Origin string
	// Version — имя текущей версии кэша.
	Version string
	// DataPath — путь эндпоинта со снапшотом.
	DataPath string
	// StaticAssets — пути статики, кэшируемые при установке.
	StaticAssets []string
}

// Worker перехватывает запросы клиента. Реализует http.RoundTripper.
type Worker struct {
	origin   *url.URL
	version  string
	dataPath string
	static   map[string]struct{}
	assets   []string

	storage Storage
	network http.RoundTripper
	metrics *Metrics
	logger  *slog.Logger

	pending sync.WaitGroup
}

var _ http.RoundTripper = (*Worker)(nil)

// NewWorker создаёт офлайн-слой. network — транспорт для реальных запросов
// (nil — http.DefaultTransport), metrics может быть nil.
func NewWorker(cfg Config, storage Storage, network http.RoundTripper, metrics *Metrics) (*Worker, error) {
	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	if origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("origin %q must be absolute", cfg.Origin)
	}
	if cfg.Version == "" {
		return nil, errors.New("cache version is required")
	}
	if storage == nil {
		return nil, errors.New("cache storage is required")
	}
	if network == nil {
		network = http.DefaultTransport
	}

	w := &Worker{
		origin:   origin,
		version:  cfg.Version,
		dataPath: cfg.DataPath,
		static:   make(map[string]struct{}, len(cfg.StaticAssets)),
		assets:   cfg.StaticAssets,
		storage:  storage,
		network:  network,
		metrics:  metrics,
		logger:   slog.Default().With("component", "offline", "cache_version", cfg.Version),
	}
	for _, p := range cfg.StaticAssets {
		w.static[p] = struct{}{}
	}
	return w, nil
}

// Install загружает весь статический набор и сохраняет его в текущую версию.
// Если не удалось получить или сохранить хотя бы один файл, версия остаётся
// в прежнем виде: записанные ключи откатываются, остальные копии не трогаются.
func (w *Worker) Install(ctx context.Context) error {
	fetched := make(map[string]*StoredResponse, len(w.assets))
	for _, asset := range w.assets {
		resp, err := w.fetchAsset(ctx, asset)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInstallFailed, asset, err)
		}
		fetched[w.resolve(asset)] = resp
	}

	_, existed, err := w.storage.Lookup(ctx, w.version)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}
	cache, err := w.storage.Open(ctx, w.version)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}

	previous := make(map[string]*StoredResponse)
	if existed {
		for key := range fetched {
			old, ok, err := cache.Match(ctx, key)
			if err != nil {
				return fmt.Errorf("%w: read %s: %v", ErrInstallFailed, key, err)
			}
			if ok {
				previous[key] = old
			}
		}
	}

	written := make([]string, 0, len(fetched))
	for key, resp := range fetched {
		if err := cache.Put(ctx, key, resp); err != nil {
			w.rollback(ctx, cache, existed, written, previous)
			return fmt.Errorf("%w: store %s: %v", ErrInstallFailed, key, err)
		}
		written = append(written, key)
	}

	w.logger.Info("offline cache installed", "assets", len(fetched))
	return nil
}

// rollback отменяет частичную установку. Новая версия удаляется целиком;
// в существующей восстанавливаются только ключи, записанные этой установкой.
func (w *Worker) rollback(ctx context.Context, cache Cache, existed bool, written []string, previous map[string]*StoredResponse) {
	ctx = context.WithoutCancel(ctx)

	if !existed {
		if _, err := w.storage.Delete(ctx, w.version); err != nil {
			w.logger.Error("rollback of partial install failed", "error", err)
		}
		return
	}

	for _, key := range written {
		var err error
		if old, ok := previous[key]; ok {
			err = cache.Put(ctx, key, old)
		} else {
			err = cache.Delete(ctx, key)
		}
		if err != nil {
			w.logger.Error("rollback of partial install failed", "key", key, "error", err)
		}
	}
}

// Activate удаляет все версии кэша, кроме текущей.
func (w *Worker) Activate(ctx context.Context) error {
	names, err := w.storage.Keys(ctx)
	if err != nil {
		return fmt.Errorf("list cache versions: %w", err)
	}
	for _, name := range names {
		if name == w.version {
			continue
		}
		if _, err := w.storage.Delete(ctx, name); err != nil {
			return fmt.Errorf("delete cache version %s: %w", name, err)
		}
		w.logger.Info("stale cache version deleted", "name", name)
	}
	return nil
}

// RoundTrip реализует http.RoundTripper (обработчик fetch).
func (w *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	switch {
	case w.isData(req):
		return w.networkFirst(req)
	case w.isStatic(req):
		return w.cacheFirst(req)
	default:
		w.metrics.request(strategyPassthrough, "network")
		return w.network.RoundTrip(req)
	}
}

// Wait дожидается завершения фоновых записей в кэш.
func (w *Worker) Wait() {
	w.pending.Wait()
}

func (w *Worker) networkFirst(req *http.Request) (*http.Response, error) {
	resp, netErr := w.network.RoundTrip(req)
	if netErr == nil {
		if resp.StatusCode == http.StatusOK && w.sameOrigin(responseRequest(resp, req)) {
			w.recordBody(cacheKey(req.URL), resp)
		}
		w.metrics.request(strategyData, "network")
		return resp, nil
	}

	cached, ok := w.match(req)
	if !ok {
		w.metrics.request(strategyData, "miss")
		return nil, fmt.Errorf("%w: %v", ErrNoResponse, netErr)
	}
	w.logger.Warn("network unavailable, serving cached snapshot",
		"url", req.URL.String(), "stored_at", cached.StoredAt, "error", netErr)
	w.metrics.request(strategyData, "cache_fallback")
	return cached.HTTPResponse(req), nil
}

func (w *Worker) cacheFirst(req *http.Request) (*http.Response, error) {
	if cached, ok := w.match(req); ok {
		w.metrics.request(strategyStatic, "hit")
		return cached.HTTPResponse(req), nil
	}
	w.metrics.request(strategyStatic, "network")
	return w.network.RoundTrip(req)
}

// match ищет копию ответа на req в текущей версии. Поиск не наследует
// отмену запроса: после таймаута сети кэш всё ещё должен быть доступен.
func (w *Worker) match(req *http.Request) (*StoredResponse, bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), cacheLookupTimeout)
	defer cancel()

	key := cacheKey(req.URL)
	cache, ok, err := w.storage.Lookup(ctx, w.version)
	if err != nil {
		w.logger.Error("cache lookup failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	resp, ok, err := cache.Match(ctx, key)
	if err != nil {
		w.logger.Error("cache match failed", "key", key, "error", err)
		return nil, false
	}
	return resp, ok
}

// recordBody подменяет тело ответа: клиент читает его без задержки,
// а полная копия уходит в кэш, когда тело дочитано до конца.
func (w *Worker) recordBody(key string, resp *http.Response) {
	if resp.Body == nil || resp.Body == http.NoBody {
		return
	}
	status := resp.StatusCode
	header := resp.Header.Clone()
	resp.Body = &recordingBody{
		rc: resp.Body,
		onComplete: func(body []byte) {
			w.storeAsync(key, &StoredResponse{
				StatusCode: status,
				Header:     header,
				Body:       body,
				StoredAt:   time.Now(),
			})
		},
	}
}

// storeAsync сохраняет копию в фоне. Ошибка записи не влияет на ответ клиенту.
func (w *Worker) storeAsync(key string, resp *StoredResponse) {
	w.pending.Add(1)
	go func() {
		defer w.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), backgroundWriteTimeout)
		defer cancel()

		cache, err := w.storage.Open(ctx, w.version)
		if err == nil {
			err = cache.Put(ctx, key, resp)
		}
		if err != nil {
			w.metrics.write("error")
			w.logger.Warn("background cache write failed", "key", key, "error", err)
			return
		}
		w.metrics.write("ok")
	}()
}

func (w *Worker) fetchAsset(ctx context.Context, asset string) (*StoredResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.resolve(asset), nil)
	if err != nil {
		return nil, err
	}
	resp, err := w.network.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &StoredResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		StoredAt:   time.Now(),
	}, nil
}

func (w *Worker) isData(req *http.Request) bool {
	return req.Method == http.MethodGet && w.sameOrigin(req) && req.URL.Path == w.dataPath
}

func (w *Worker) isStatic(req *http.Request) bool {
	if req.Method != http.MethodGet || !w.sameOrigin(req) {
		return false
	}
	_, ok := w.static[req.URL.Path]
	return ok
}

func (w *Worker) sameOrigin(req *http.Request) bool {
	if req == nil || req.URL == nil {
		return false
	}
	return req.URL.Scheme == w.origin.Scheme && req.URL.Host == w.origin.Host
}

// responseRequest возвращает запрос, которым был получен ответ.
func responseRequest(resp *http.Response, fallback *http.Request) *http.Request {
	if resp.Request != nil {
		return resp.Request
	}
	return fallback
}

func (w *Worker) resolve(asset string) string {
	ref, err := url.Parse(asset)
	if err != nil {
		return asset
	}
	return cacheKey(w.origin.ResolveReference(ref))
}

// recordingBody копит прочитанные клиентом байты. onComplete вызывается
// один раз и только если тело дочитано до io.EOF; обрыв или ранний Close
// копию отбрасывают.
type recordingBody struct {
	rc         io.ReadCloser
	buf        bytes.Buffer
	finished   bool
	onComplete func(body []byte)
}

func (b *recordingBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if b.finished {
		return n, err
	}
	if n > 0 {
		b.buf.Write(p[:n])
	}
	switch {
	case err == io.EOF:
		b.finished = true
		b.onComplete(bytes.Clone(b.buf.Bytes()))
		b.buf.Reset()
	case err != nil:
		b.finished = true
		b.buf.Reset()
	}
	return n, err
}

func (b *recordingBody) Close() error {
	b.finished = true
	b.buf.Reset()
	return b.rc.Close()
}

func cacheKey(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}
