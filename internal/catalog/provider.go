package catalog

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/cursobot/internal/metrics"
)

// Source names the artifacts a Provider loads.
type Source struct {
	CoursesPath    string
	EmbeddingsPath string
	Sheet          string
}

// Status describes the active snapshot for health reporting.
type Status struct {
	Loaded     bool      `json:"loaded"`
	Rows       int       `json:"rows"`
	Dimensions int       `json:"dimensions"`
	Version    string    `json:"version,omitempty"`
	LoadedAt   time.Time `json:"loaded_at,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
}

// Provider hands out the current catalog snapshot and replaces it on reload.
// Get never blocks; Reload calls are serialised.
type Provider struct {
	source  Source
	current atomic.Pointer[Catalog]
	mu      sync.Mutex
	lastErr error
	logger  *zap.Logger
}

// NewProvider creates a provider for src. Nothing is loaded until Reload.
func NewProvider(src Source, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{source: src, logger: logger}
}

// NewStaticProvider serves a fixed catalog. Reload is a no-op returning it.
func NewStaticProvider(c *Catalog) *Provider {
	p := &Provider{logger: zap.NewNop()}
	p.current.Store(c)
	return p
}

// Get returns the active snapshot or ErrUnavailable.
func (p *Provider) Get() (*Catalog, error) {
	c := p.current.Load()
	if c == nil {
		return nil, ErrUnavailable
	}
	return c, nil
}

// Reload loads the artifacts and swaps in the new snapshot. On failure the
// previous snapshot stays active and the error is returned.
func (p *Provider) Reload() (*Catalog, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.source.CoursesPath == "" {
		c := p.current.Load()
		if c == nil {
			return nil, ErrUnavailable
		}
		return c, nil
	}

	start := time.Now()
	c, err := Load(p.source.CoursesPath, p.source.EmbeddingsPath, p.source.Sheet)
	if err != nil {
		p.lastErr = err
		metrics.CatalogReloads.WithLabelValues("failure").Inc()
		p.logger.Warn("catalog load failed",
			zap.String("courses", p.source.CoursesPath),
			zap.String("embeddings", p.source.EmbeddingsPath),
			zap.Error(err),
		)
		return nil, err
	}
	p.lastErr = nil
	p.current.Store(c)
	metrics.CatalogReloads.WithLabelValues("success").Inc()
	metrics.CatalogRows.Set(float64(c.Len()))
	p.logger.Info("catalog loaded",
		zap.Int("rows", c.Len()),
		zap.Int("dimensions", c.Embeddings().Dims()),
		zap.String("version", c.Version()),
		zap.Duration("took", time.Since(start)),
	)
	return c, nil
}

// Status reports the active snapshot and the last load error, if any.
func (p *Provider) Status() Status {
	p.mu.Lock()
	lastErr := p.lastErr
	p.mu.Unlock()

	var s Status
	if lastErr != nil {
		s.LastError = lastErr.Error()
	}
	c := p.current.Load()
	if c == nil {
		return s
	}
	s.Loaded = true
	s.Rows = c.Len()
	s.Dimensions = c.Embeddings().Dims()
	s.Version = c.Version()
	s.LoadedAt = c.LoadedAt()
	return s
}
