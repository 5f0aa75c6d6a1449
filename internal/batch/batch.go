// Package batch transcodes every channel of a container to another codec,
// several channels at a time.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"mediakit/internal/codec"
	"mediakit/internal/mediaerr"
	"mediakit/internal/progress"
	"mediakit/internal/session"
	"mediakit/internal/store"
)

// Config holds the transcode settings.
type Config struct {
	Session *session.Session
	// Target is the codec new channels are written with.
	Target      codec.ID
	Compression string
	Quality     int
	Workers     int
	// StateDir holds .progress.json and errors.log. Empty disables both.
	StateDir    string
	RetryFailed bool
	Logger      *slog.Logger
}

// Stats holds processing statistics.
type Stats struct {
	Success int
	Failed  int
	Skipped int
	Frames  int64
	// Outputs maps each transcoded source to its new descriptor.
	Outputs map[store.ObjectID]store.ObjectID
}

// ProgressCallback is called as channels finish.
type ProgressCallback func(current, total int, item store.ObjectID, status string)

// Status values passed to ProgressCallback.
const (
	StatusDone    = "done"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Transcode copies every channel present when it starts into a new channel
// written with cfg.Target. A failing channel is logged and counted; it does
// not stop the others. Cancelling ctx stops the run.
func Transcode(ctx context.Context, cfg Config, cb ProgressCallback) (*Stats, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "batch")
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	var (
		tracker   = progress.NewTracker("", logger)
		errLogger *progress.ErrorLogger
		err       error
	)
	if cfg.StateDir != "" {
		tracker = progress.NewTracker(filepath.Join(cfg.StateDir, ".progress.json"), logger)
		if errLogger, err = progress.NewErrorLogger(filepath.Join(cfg.StateDir, "errors.log")); err != nil {
			return nil, fmt.Errorf("could not create error logger: %w", err)
		}
	} else if errLogger, err = progress.NewErrorLogger(""); err != nil {
		return nil, err
	}
	defer errLogger.Close()
	if cfg.RetryFailed {
		tracker.ClearFailed()
	}

	sources := cfg.Session.Descriptors()
	logger.Info("transcode started", "channels", len(sources), "target", cfg.Target, "workers", cfg.Workers)

	var (
		mu    sync.Mutex
		done  int
		stats = &Stats{Outputs: make(map[store.ObjectID]store.ObjectID)}
	)
	report := func(id store.ObjectID, status string) {
		done++
		if cb != nil {
			cb(done, len(sources), id, status)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, src := range sources {
		src := src // per-iteration copy (go < 1.22 loop semantics)
		info, err := cfg.Session.Describe(src)
		if err != nil {
			mu.Lock()
			stats.Failed++
			errLogger.Log(string(src), err)
			report(src, StatusFailed)
			mu.Unlock()
			continue
		}
		fp := fingerprint(info, cfg)
		if tracker.IsDone(string(src), fp) || info.Codec == cfg.Target && info.Compression == cfg.Compression {
			mu.Lock()
			stats.Skipped++
			if out, ok := tracker.Output(string(src)); ok {
				stats.Outputs[src] = store.ObjectID(out)
			}
			report(src, StatusSkipped)
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dst, n, err := transcodeOne(ctx, cfg, info)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				stats.Failed++
				tracker.MarkError(string(src), fp, err)
				errLogger.Log(string(src), err)
				logger.Warn("channel failed", "descriptor", src, "error", err)
				report(src, StatusFailed)
				return nil
			}
			stats.Success++
			stats.Frames += n
			stats.Outputs[src] = dst
			tracker.MarkSuccess(string(src), fp, string(dst))
			report(src, StatusDone)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	logger.Info("transcode complete", "succeeded", stats.Success, "failed", stats.Failed,
		"skipped", stats.Skipped, "errors", errLogger.Summary())
	return stats, nil
}

func fingerprint(info session.Info, cfg Config) string {
	return fmt.Sprintf("%s/%s/%d->%s/%s/%d", info.Codec, info.Compression, info.Samples, cfg.Target, cfg.Compression, cfg.Quality)
}

// transcodeOne decodes every sample of one channel into a new channel.
func transcodeOne(ctx context.Context, cfg Config, info session.Info) (store.ObjectID, int64, error) {
	src, err := cfg.Session.Open(info.ID, session.OpenOptions{})
	if err != nil {
		return "", 0, err
	}
	defer src.Close()

	dst, err := cfg.Session.Create(session.Spec{
		Codec:       cfg.Target,
		Compression: cfg.Compression,
		Geometry:    info.Geometry,
		Quality:     cfg.Quality,
	})
	if err != nil {
		return "", 0, err
	}
	n, cerr := Copy(ctx, dst, src)
	if err := errors.Join(cerr, dst.Close()); err != nil {
		return dst.ID(), n, err
	}
	return dst.ID(), n, nil
}

// Copy moves every remaining sample of src into dst one at a time and
// returns how many were copied.
func Copy(ctx context.Context, dst, src *session.Media) (int64, error) {
	total := src.SampleCount()
	var n int64
	for n < total {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		b, err := src.ReadSamples(1)
		if err != nil {
			return n, fmt.Errorf("read sample %d: %w", n+1, err)
		}
		w, err := dst.WriteSamples(1, b)
		if err != nil {
			return n, fmt.Errorf("write sample %d: %w", n+1, err)
		}
		if w != 1 {
			return n, mediaerr.Errorf(mediaerr.KindEncode, "batch.Copy", "sample %d not written", n+1)
		}
		n++
	}
	return n, nil
}
