package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/splinegest/internal/cache"
	"github.com/dgallion1/splinegest/internal/collada"
	"github.com/dgallion1/splinegest/internal/metrics"
	"github.com/dgallion1/splinegest/internal/parser"
	"github.com/dgallion1/splinegest/internal/pathstore"
	"github.com/dgallion1/splinegest/internal/stats"
)

// SplineStore persists extracted splines. *pathstore.Client satisfies it.
type SplineStore interface {
	PutNode(ctx context.Context, key string, req pathstore.NodeRequest) error
	FindDuplicate(ctx context.Context, userID, contentHash string) (string, bool, error)
}

// cachedResult is the cache entry for one document's bytes.
type cachedResult struct {
	Tool       string             `json:"tool"`
	Geometries []collada.Geometry `json:"geometries"`
}

// Worker processes a single import job.
type Worker struct {
	cache   cache.Cache
	store   SplineStore
	window  *stats.Window
	log     *slog.Logger
	backoff func(int) time.Duration

	cacheTTL           time.Duration
	maxConcurrentStore int
}

// NewWorker builds a worker. store may be nil to skip persistence and window
// may be nil to skip latency recording.
func NewWorker(c cache.Cache, store SplineStore, window *stats.Window, log *slog.Logger, cacheTTL time.Duration, maxStore int) *Worker {
	if c == nil {
		c = cache.NullCache{}
	}
	if maxStore < 1 {
		maxStore = 1
	}
	return &Worker{
		cache:              c,
		store:              store,
		window:             window,
		log:                log,
		backoff:            Backoff,
		cacheTTL:           cacheTTL,
		maxConcurrentStore: maxStore,
	}
}

// Process runs the full import pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	start := time.Now()
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "user_id", job.UserID)
	defer func() {
		snap := job.Snapshot()
		if w.window != nil {
			w.window.Record(time.Since(start), string(snap.Status))
		}
		metrics.ImportsTotal.WithLabelValues(string(snap.Status)).Inc()
		metrics.ImportDuration.Observe(time.Since(start).Seconds())
		log.Info("import finished",
			"status", snap.Status,
			"splines", snap.Progress.Splines,
			"stored", snap.Progress.Stored,
			"elapsed_ms", time.Since(start).Milliseconds())
	}()

	job.SetStatus(StatusParsing, "parsing")
	data := job.FileData()
	hash := ContentHashHex(data)
	job.SetContentHash(hash)

	result, hit, phase, err := w.extract(ctx, job, data, hash, log)
	job.releaseFileData()
	if err != nil {
		if collada.IsSoft(err) {
			log.Info("authoring tool not supported", "tool", job.Snapshot().Tool)
			job.SetStatus(StatusUnsupported, "done")
			return
		}
		log.Error("import failed", "phase", phase, "error", err)
		job.AddError(fmt.Sprintf("%s: %s", phase, err))
		job.SetStatus(StatusFailed, phase)
		return
	}
	job.SetTool(result.Tool)
	job.SetResult(result.Geometries, hit)
	metrics.SplinesExtracted.Add(float64(len(result.Geometries)))
	log.Info("extraction complete", "splines", len(result.Geometries), "cache_hit", hit)

	if w.store == nil {
		job.SetStatus(StatusCompleted, "done")
		return
	}

	existing, found, err := w.store.FindDuplicate(ctx, job.UserID, hash)
	if err != nil {
		log.Warn("dedup check failed, proceeding", "error", err)
	} else if found {
		log.Info("duplicate document, skipping store", "existing_doc_id", existing)
		job.SetStatus(StatusDupSkipped, "dedup")
		return
	}

	job.SetStatus(StatusStoring, "storing")
	stored, failed := w.storeGeometries(ctx, job, result.Geometries, log)
	job.AddStored(stored)

	if err := w.put(ctx, pathstore.MetaKey(job.UserID, job.DocID), pathstore.NodeRequest{
		Value: map[string]any{
			"filename":     job.Filename,
			"title":        job.Title,
			"tool":         result.Tool,
			"content_hash": hash,
			"splines":      len(result.Geometries),
			"stored":       stored,
			"created_at":   job.CreatedAt.Format(time.RFC3339),
		},
		MemoryType: "metacognitive",
		Salience:   0.5,
		Source:     "splinegest:" + job.DocID,
	}); err != nil {
		log.Error("meta write failed", "error", err)
		job.AddError(fmt.Sprintf("meta: %s", err))
		failed++
	}

	// Only index the hash once the document is fully stored, so a failed
	// import can be retried.
	if failed == 0 {
		if err := w.put(ctx, pathstore.HashKey(job.UserID, hash, job.DocID), pathstore.NodeRequest{
			Value: map[string]any{
				"filename":   job.Filename,
				"created_at": job.CreatedAt.Format(time.RFC3339),
			},
			MemoryType: "metacognitive",
			Salience:   0.1,
			Source:     "splinegest:" + job.DocID,
		}); err != nil {
			log.Warn("hash index write failed", "error", err)
		}
	}

	switch {
	case failed == 0:
		job.SetStatus(StatusCompleted, "done")
	case stored > 0:
		job.SetStatus(StatusPartial, "done")
	default:
		job.SetStatus(StatusFailed, "storing")
	}
}

// extract returns the splines for data, from the cache when possible. The
// returned phase names where a failure happened.
func (w *Worker) extract(ctx context.Context, job *Job, data []byte, hash string, log *slog.Logger) (cachedResult, bool, string, error) {
	key := cache.Key(hash)
	if raw, ok, err := w.cache.Get(ctx, key); err != nil {
		log.Warn("cache lookup failed", "error", err)
	} else if ok {
		var cached cachedResult
		if err := json.Unmarshal(raw, &cached); err == nil {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return cached, true, "cache", nil
		}
		log.Warn("discarding unreadable cache entry", "key", key)
		_ = w.cache.Delete(ctx, key)
	}

	metrics.CacheLookups.WithLabelValues("miss").Inc()

	p, err := parser.ForFile(job.Filename)
	if err != nil {
		return cachedResult{}, false, "parsing", err
	}
	doc, err := p.Parse(bytes.NewReader(data), job.Filename)
	if err != nil {
		return cachedResult{}, false, "parsing", err
	}

	phase := "detecting"
	var tool collada.Tool
	im := collada.Importer{
		OnPhase: func(ph collada.Phase) {
			switch ph {
			case collada.PhaseDetecting:
				phase = "detecting"
				job.SetStatus(StatusDetecting, phase)
			case collada.PhaseExtracting:
				phase = "extracting"
				job.SetStatus(StatusExtracting, phase)
			}
		},
		OnTool: func(t collada.Tool, info string) {
			tool = t
			job.SetTool(string(t))
			log.Debug("authoring tool detected", "tool", t, "authoring_tool", info)
		},
	}
	geoms, err := im.Import(doc)
	if err != nil {
		return cachedResult{}, false, phase, err
	}

	result := cachedResult{Tool: string(tool), Geometries: geoms}
	if encoded, err := json.Marshal(result); err != nil {
		log.Warn("cache encode failed", "error", err)
	} else if err := w.cache.Set(ctx, key, encoded, w.cacheTTL); err != nil {
		log.Warn("cache store failed", "error", err)
	}
	return result, false, phase, nil
}

// storeGeometries writes each spline under its own key with bounded
// concurrency and returns the stored and failed counts.
func (w *Worker) storeGeometries(ctx context.Context, job *Job, geoms []collada.Geometry, log *slog.Logger) (int, int) {
	type storeResult struct {
		key string
		err error
	}
	results := make(chan storeResult, len(geoms))
	sem := make(chan struct{}, w.maxConcurrentStore)

	for i, g := range geoms {
		sem <- struct{}{}
		go func(i int, g collada.Geometry) {
			defer func() { <-sem }()
			key := pathstore.GeometryKey(job.UserID, job.DocID, i, g.ID)
			err := w.put(ctx, key, pathstore.NodeRequest{
				Value: map[string]any{
					"id":     g.ID,
					"name":   g.Name,
					"index":  i,
					"points": g.Points,
				},
				MemoryType: "semantic",
				Salience:   0.3,
				Source:     "splinegest:" + job.DocID,
			})
			results <- storeResult{key: key, err: err}
		}(i, g)
	}

	stored, failed := 0, 0
	for range geoms {
		r := <-results
		if r.err != nil {
			log.Error("store failed", "key", r.key, "error", r.err)
			job.AddError(fmt.Sprintf("store %s: %s", r.key, r.err))
			failed++
			continue
		}
		stored++
	}
	return stored, failed
}

func (w *Worker) put(ctx context.Context, key string, req pathstore.NodeRequest) error {
	err := withRetry(ctx, w.backoff, func() error {
		return w.store.PutNode(ctx, key, req)
	})
	if err != nil {
		metrics.StoreWrites.WithLabelValues("failed").Inc()
	} else {
		metrics.StoreWrites.WithLabelValues("ok").Inc()
	}
	return err
}
