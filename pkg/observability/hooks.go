// Package observability provides hooks for metrics and tracing.
//
// Instrumentation is optional and explicit: callers build a [Hooks] value
// and pass it to the scan or the server. There is no global registry.
//
// # Usage
//
//	prom := observability.NewPrometheusHooks(nil)
//	res, err := scan.Run(ctx, root, scan.Options{Hooks: prom.Hooks()})
//	http.Handle("/metrics", prom.Handler())
package observability

import (
	"context"
	"time"
)

// ScanHooks receives events from the scan orchestrator.
type ScanHooks interface {
	OnScanStart(ctx context.Context, root string)
	// OnStateChange reports orchestrator phase transitions.
	OnStateChange(ctx context.Context, state string)
	// OnUnitComplete reports one (detector, file) unit. status is one of
	// "ok", "cached", "failed", "timeout", "canceled".
	OnUnitComplete(ctx context.Context, detectorID, status string, components int, duration time.Duration)
	OnScanComplete(ctx context.Context, root string, components int, duration time.Duration, err error)
}

// CacheHooks receives events from detector result caching.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, detectorID string)
	OnCacheMiss(ctx context.Context, detectorID string)
	OnCacheSet(ctx context.Context, detectorID string, size int)
}

// HTTPHooks receives events from the API server.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, route string, status int, duration time.Duration)
}

// NoopScanHooks is a no-op implementation of ScanHooks.
type NoopScanHooks struct{}

func (NoopScanHooks) OnScanStart(context.Context, string)                                {}
func (NoopScanHooks) OnStateChange(context.Context, string)                              {}
func (NoopScanHooks) OnUnitComplete(context.Context, string, string, int, time.Duration) {}
func (NoopScanHooks) OnScanComplete(context.Context, string, int, time.Duration, error)  {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, int, time.Duration) {}

// Hooks bundles the hook sets a component may emit to.
type Hooks struct {
	Scan  ScanHooks
	Cache CacheHooks
	HTTP  HTTPHooks
}

// WithDefaults returns a copy of h with nil members replaced by no-ops.
func (h Hooks) WithDefaults() Hooks {
	if h.Scan == nil {
		h.Scan = NoopScanHooks{}
	}
	if h.Cache == nil {
		h.Cache = NoopCacheHooks{}
	}
	if h.HTTP == nil {
		h.HTTP = NoopHTTPHooks{}
	}
	return h
}
