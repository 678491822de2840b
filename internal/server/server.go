package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maine/ai_news_digest/internal/news"
)

// SnapshotReader — то, что сервер читает из хранилища снапшотов.
type SnapshotReader interface {
	ReadLatest(ctx context.Context) (news.Snapshot, error)
	ReadArchive(ctx context.Context, dateKey string) (news.Snapshot, error)
	ListArchive(ctx context.Context) ([]string, error)
}

// Options — параметры HTTP-сервера.
type Options struct {
	PublicDir string
	// DataPath — путь эндпоинта текущего снапшота, например /data/latest.json.
	DataPath string
	// Registry, если задан, получает метрики запросов и отдаётся на /metrics.
	Registry *prometheus.Registry
}

// New создаёт gin-движок со всеми маршрутами.
func New(store SnapshotReader, opts Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(requestLogger())
	r.Use(gin.Recovery())

	if opts.Registry != nil {
		r.Use(metricsMiddleware(opts.Registry))
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	}

	h := NewHandler(store)
	dataPath := opts.DataPath
	if dataPath == "" {
		dataPath = "/data/latest.json"
	}

	r.GET("/health", h.HealthCheck)
	r.GET(dataPath, h.GetLatest)
	r.GET("/data/archive", h.ListArchive)
	r.GET("/data/archive/:date", h.GetArchive)

	if opts.PublicDir != "" {
		files := http.FileServer(http.Dir(opts.PublicDir))
		r.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
				c.Status(http.StatusNotFound)
				return
			}
			files.ServeHTTP(c.Writer, c.Request)
		})
	}

	return r
}

func metricsMiddleware(reg prometheus.Registerer) gin.HandlerFunc {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ai_news",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"route", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ai_news",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
	reg.MustRegister(requests, duration)

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "static"
		}
		requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
