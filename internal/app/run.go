package app

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/specialistvlad/blockorder/internal/blockcache"
	"github.com/specialistvlad/blockorder/internal/config"
	"github.com/specialistvlad/blockorder/internal/ctxlog"
	"github.com/specialistvlad/blockorder/internal/scheduler"
	"github.com/specialistvlad/blockorder/internal/tracehook"
)

// Report summarizes one replay.
type Report struct {
	Ops     int
	Anchors int
	Cache   blockcache.Stats
}

// Run replays the workload and syncs the cache.
func (a *App) Run(ctx context.Context) (*Report, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	vol, err := openVolume(ctx, a.model.Volume, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open volume: %w", err)
	}
	defer func() {
		if err := vol.Close(); err != nil {
			a.logger.Error("Volume close failed.", "error", err)
		}
	}()

	observers := []scheduler.Observer{scheduler.LogObserver{Logger: a.logger}}
	if a.model.Trace != nil {
		pub, err := a.startTrace(ctx, a.model.Trace)
		if err != nil {
			a.logger.Warn("Trace publisher not started.", "error", err)
		} else {
			defer pub.Close()
			observers = append(observers, pub)
		}
	}

	cache, err := blockcache.New(vol, blockcache.Options{
		MaxJobs:  a.model.Scheduler.MaxJobs,
		MaxLinks: a.model.Scheduler.MaxLinks,
		Observer: scheduler.Multi(observers...),
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build cache: %w", err)
	}
	a.setCache(cache)

	if a.cfg.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.cfg.HealthcheckPort)
		defer a.closeHealthcheckServer(ctx)
	}

	a.logger.Info("🚀 Starting replay...", "ops", len(a.model.Workload))
	anchors, err := replay(ctx, cache, a.model.Workload)
	if err != nil {
		return nil, fmt.Errorf("replay failed: %w", err)
	}
	for _, h := range anchors {
		if _, err := cache.ReleaseAnchor(h); err != nil {
			return nil, fmt.Errorf("release anchor: %w", err)
		}
	}
	if err := cache.Sync(ctx); err != nil {
		return nil, fmt.Errorf("sync failed: %w", err)
	}

	report := &Report{Ops: len(a.model.Workload), Anchors: len(anchors), Cache: cache.Stats()}
	a.logger.Info("🏁 Replay finished.",
		"ops", report.Ops,
		"blocks_flushed", report.Cache.Flushed,
		"coalesced", report.Cache.Coalesced,
		"forced_flushes", report.Cache.ForcedFlushes,
		"bytes_written", humanize.Bytes(report.Cache.BytesWritten),
	)
	return report, nil
}

// replay issues every operation in declaration order. Dependencies name
// earlier operations; anchors without dependencies follow everything pending.
func replay(ctx context.Context, cache *blockcache.Cache, ops []*config.Op) ([]scheduler.Handle, error) {
	logger := ctxlog.FromContext(ctx)
	handles := make(map[string]scheduler.Handle, len(ops))
	var anchors []scheduler.Handle

	for _, op := range ops {
		after := make([]scheduler.Handle, 0, len(op.DependsOn))
		for _, dep := range op.DependsOn {
			after = append(after, handles[dep])
		}

		var (
			h   scheduler.Handle
			err error
		)
		switch op.Kind {
		case config.OpWrite:
			h, err = cache.Write(ctx, op.Block, []byte(op.Data), after...)
		case config.OpAnchor:
			h, err = cache.Anchor(ctx, after...)
			anchors = append(anchors, h)
		default:
			err = fmt.Errorf("unsupported operation %s", op.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", op.Kind, op.Name, err)
		}
		handles[op.Name] = h
		logger.Debug("Operation replayed.", "kind", op.Kind.String(), "name", op.Name, "job", h.String())
	}
	return anchors, nil
}

func (a *App) startTrace(ctx context.Context, cfg *config.Trace) (*tracehook.Publisher, error) {
	pub, err := tracehook.New(tracehook.Options{
		URL:       cfg.URL,
		Namespace: cfg.Namespace,
		Buffer:    cfg.Buffer,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	if err := pub.Start(ctx); err != nil {
		pub.Close()
		return nil, err
	}
	return pub, nil
}
