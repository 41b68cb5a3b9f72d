// Package health runs periodic reachability probes against the external
// systems the anchoring subsystem depends on (database, gist API, timestamp
// calendar), so that a backend outage shows up in logs and metrics before
// the next anchoring cycle fails on it.
package health

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds probe configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Probe checks one dependency.
type Probe interface {
	Name() string
	Check(ctx context.Context) error
}

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(name string, success bool)

// Checker runs the configured probes on a fixed interval and tracks
// consecutive failures per probe, logging degraded/recovered transitions
// exactly once at the threshold.
type Checker struct {
	probes     []Probe
	failCounts map[string]int
	mu         sync.Mutex
	cfg        Config
	onMetrics  MetricsRecordFunc
	logger     *zap.Logger
}

// New creates a Checker.
func New(probes []Probe, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 5 * time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}
	return &Checker{
		probes:     probes,
		failCounts: make(map[string]int),
		cfg:        cfg,
		logger:     logger,
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (c *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	c.onMetrics = fn
}

// Start runs the probe loop until quit is signalled.
func (c *Checker) Start(quit <-chan os.Signal) {
	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CheckInterval-time.Second)
			c.CheckAll(ctx)
			cancel()
		case <-quit:
			return
		}
	}
}

// CheckAll runs every probe once, concurrently.
func (c *Checker) CheckAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range c.probes {
		wg.Add(1)
		go func(p Probe) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
			err := p.Check(probeCtx)
			cancel()
			success := err == nil

			if c.onMetrics != nil {
				c.onMetrics(p.Name(), success)
			}

			c.mu.Lock()
			prevCount := c.failCounts[p.Name()]
			if success {
				c.failCounts[p.Name()] = 0
			} else {
				c.failCounts[p.Name()]++
			}
			count := c.failCounts[p.Name()]
			c.mu.Unlock()

			switch {
			case success && prevCount >= c.cfg.FailThreshold:
				c.logger.Info("health: recovered", zap.String("probe", p.Name()))
			case !success && count == c.cfg.FailThreshold:
				c.logger.Warn("health: degraded",
					zap.String("probe", p.Name()),
					zap.Int("fail_count", count),
					zap.Error(err),
				)
			case !success:
				c.logger.Debug("health: probe failed",
					zap.String("probe", p.Name()),
					zap.Error(err),
				)
			}
		}(p)
	}
	wg.Wait()
}

// HTTPProbe checks that an HTTP endpoint answers at all. Any response,
// including 4xx, counts as reachable: the gist API answers unauthenticated
// requests with 401, which still proves the route is up.
type HTTPProbe struct {
	name       string
	url        string
	httpClient *http.Client
}

// NewHTTPProbe creates an HTTPProbe.
func NewHTTPProbe(name, url string) *HTTPProbe {
	return &HTTPProbe{name: name, url: url, httpClient: &http.Client{}}
}

// Name implements Probe.
func (p *HTTPProbe) Name() string { return p.name }

// Check implements Probe.
func (p *HTTPProbe) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// PingProbe adapts any Ping-style dependency (such as a pgx pool).
type PingProbe struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingProbe creates a PingProbe around the given ping function.
func NewPingProbe(name string, ping func(ctx context.Context) error) *PingProbe {
	return &PingProbe{name: name, ping: ping}
}

// Name implements Probe.
func (p *PingProbe) Name() string { return p.name }

// Check implements Probe.
func (p *PingProbe) Check(ctx context.Context) error { return p.ping(ctx) }
