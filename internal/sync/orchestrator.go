// Package sync drives the incremental pipeline: scan a source, diff its
// fingerprints against the collection, prune stale points, then stream
// chunk, embed, and upsert work under fixed memory bounds.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/ragsync/ragsync/internal/chunk"
	"github.com/ragsync/ragsync/internal/collection"
	"github.com/ragsync/ragsync/internal/config"
	"github.com/ragsync/ragsync/internal/diff"
	"github.com/ragsync/ragsync/internal/embed"
	"github.com/ragsync/ragsync/internal/errors"
	"github.com/ragsync/ragsync/internal/fingerprint"
	"github.com/ragsync/ragsync/internal/metrics"
	"github.com/ragsync/ragsync/internal/vectorstore"
	"github.com/ragsync/ragsync/internal/walker"
)

// ClientFunc returns an embedding client for a model.
type ClientFunc func(model string) (embed.Client, error)

// PoolClients adapts an embedder pool into a ClientFunc.
func PoolClients(p *embed.Pool, token string) ClientFunc {
	return func(model string) (embed.Client, error) {
		return p.Get(model, token)
	}
}

// Request describes one sync of a source tree into a collection.
type Request struct {
	// Root is the directory to walk.
	Root string
	// Prefix scopes logical paths in prefix-scoped mode. Ends with "/".
	Prefix string
	// Mode selects prefix-scoped or flat diff semantics.
	Mode diff.Mode
	// Collection is the target collection name.
	Collection string
	// Model is the requested embedding model. A bound collection wins.
	Model string
	// Include and Exclude are optional glob filters on logical paths.
	Include []string
	Exclude []string
}

// Orchestrator runs syncs. It is safe to reuse across runs.
type Orchestrator struct {
	store    vectorstore.Store
	clients  ClientFunc
	chunker  chunk.Chunker
	walk     *walker.Walker
	cfg      config.SyncConfig
	progress bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProgress enables the scan progress bar.
func WithProgress(on bool) Option {
	return func(o *Orchestrator) { o.progress = on }
}

// WithWalker substitutes the source walker.
func WithWalker(w *walker.Walker) Option {
	return func(o *Orchestrator) { o.walk = w }
}

// NewOrchestrator wires a sync engine. Zero fields in cfg fall back to the
// built-in defaults.
func NewOrchestrator(store vectorstore.Store, clients ClientFunc, chunker chunk.Chunker, cfg config.SyncConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:   store,
		clients: clients,
		chunker: chunker,
		walk:    walker.New(),
		cfg:     withDefaults(cfg),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func withDefaults(cfg config.SyncConfig) config.SyncConfig {
	def := config.Default().Sync
	if cfg.HashWorkers <= 0 {
		cfg.HashWorkers = def.HashWorkers
	}
	if cfg.ChunkWorkers <= 0 {
		cfg.ChunkWorkers = def.ChunkWorkers
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = def.MaxPending
	}
	if cfg.UploadThreshold <= 0 {
		cfg.UploadThreshold = def.UploadThreshold
	}
	if cfg.EmbedBatch <= 0 {
		cfg.EmbedBatch = def.EmbedBatch
	}
	if cfg.UpsertBatch <= 0 {
		cfg.UpsertBatch = def.UpsertBatch
	}
	if cfg.DeleteBatch <= 0 {
		cfg.DeleteBatch = def.DeleteBatch
	}
	return cfg
}

// run carries the per-sync state. The coordinator goroutine owns stats and
// the accumulator; the scan phase guards its maps with a mutex.
type run struct {
	o      *Orchestrator
	req    Request
	client embed.Client
	state  State
	stats  Stats

	mu           stdsync.Mutex
	local        map[string]string // logical path -> file hash
	abs          map[string]string // logical path -> absolute path
	seen         map[string]int    // logical path -> walk sequence
	remote       map[string]string // logical path -> parent file hash
	remoteChunks map[string]int
}

func (r *run) setState(s State) {
	slog.Debug("sync state",
		slog.String("from", r.state.String()),
		slog.String("to", s.String()))
	r.state = s
}

// Sync executes the three-phase pipeline and returns the run statistics.
// Per-file failures are recorded in the statistics; the returned error is
// non-nil only for terminal failures or cancellation.
func (o *Orchestrator) Sync(ctx context.Context, req Request) (*Stats, error) {
	r := &run{
		o:            o,
		req:          req,
		local:        make(map[string]string),
		abs:          make(map[string]string),
		seen:         make(map[string]int),
		remote:       make(map[string]string),
		remoteChunks: make(map[string]int),
	}

	r.setState(StateResolving)
	if err := r.resolve(ctx); err != nil {
		r.setState(StateFailed)
		return nil, err
	}

	r.setState(StateScanning)
	start := time.Now()
	if err := r.scan(ctx); err != nil {
		return r.finish(ctx, err)
	}
	metrics.TimePhase("scan", start)

	r.setState(StateDiffing)
	res := diff.Partition(r.local, r.remote, r.req.Mode)
	for _, p := range res.Unchanged {
		r.stats.Unchanged = append(r.stats.Unchanged, FileStat{Path: p, Chunks: r.remoteChunks[p]})
	}
	slog.Info("diff computed",
		slog.Int("new", len(res.New)),
		slog.Int("modified", len(res.Modified)),
		slog.Int("unchanged", len(res.Unchanged)),
		slog.Int("deleted", len(res.Deleted)))

	r.setState(StateDeleting)
	start = time.Now()
	if err := r.deleteStale(ctx, res); err != nil {
		return r.finish(ctx, err)
	}
	metrics.TimePhase("delete", start)

	r.setState(StateStreaming)
	start = time.Now()
	err := r.stream(ctx, res)
	metrics.TimePhase("stream", start)
	return r.finish(ctx, err)
}

func (r *run) finish(ctx context.Context, err error) (*Stats, error) {
	switch {
	case err == nil:
		r.setState(StateDone)
	case errors.GetCode(err) == errors.ErrCodeCancelled || ctx.Err() != nil:
		r.setState(StateCancelled)
		if errors.GetCode(err) != errors.ErrCodeCancelled {
			err = errors.Cancelled(err)
		}
	default:
		r.setState(StateFailed)
	}
	r.stats.sortAll()
	if err != nil {
		return nil, err
	}
	return &r.stats, nil
}

// resolve checks the collection and binds the embedding client, preferring
// the collection's bound model over the requested one.
func (r *run) resolve(ctx context.Context) error {
	mgr := collection.NewManager(r.o.store)

	exists, err := r.o.store.Exists(ctx, r.req.Collection)
	if err != nil {
		return err
	}
	if !exists {
		return errors.CollectionNotFound(r.req.Collection)
	}

	model, err := mgr.ResolveModel(ctx, r.req.Collection, r.req.Model)
	if err != nil {
		return err
	}
	if model == "" {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("collection %q has no bound model and none was requested", r.req.Collection), nil).
			WithSuggestion("pass --model or recreate the collection with a model binding")
	}

	r.client, err = r.o.clients(model)
	if err != nil {
		return err
	}

	info, err := mgr.GetInfo(ctx, r.req.Collection)
	if err != nil {
		return err
	}
	if dim := r.client.Dimensions(); dim != 0 && info.VectorSize != 0 && dim != info.VectorSize {
		return errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("model %s produces %d-dimensional vectors but collection %s stores %d",
				model, dim, r.req.Collection, info.VectorSize), nil)
	}
	return nil
}

// scan runs the hash pool and the remote snapshot scroll concurrently.
func (r *run) scan(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return r.scanRemote(ctx) })
	g.Go(func() error { return r.scanLocal(ctx) })

	return g.Wait()
}

// scanRemote makes a single pass over the collection, vectors excluded,
// building the logical-path to file-hash snapshot. The metadata point is
// never part of the snapshot.
func (r *run) scanRemote(ctx context.Context) error {
	req := vectorstore.ScrollRequest{
		PayloadFields: []string{"file_path", "parent_file_hash", "_collection_metadata"},
	}
	return vectorstore.ScrollAll(ctx, r.o.store, r.req.Collection, req, func(points []vectorstore.Point) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, p := range points {
			if p.ID == fingerprint.MetadataPointID || p.Payload.CollectionMetadata {
				continue
			}
			path := p.Payload.FilePath
			if r.req.Mode == diff.PrefixScoped && r.req.Prefix != "" && !strings.HasPrefix(path, r.req.Prefix) {
				continue
			}
			r.remote[path] = p.Payload.ParentFileHash
			r.remoteChunks[path]++
		}
		return nil
	})
}

// scanLocal walks the source and hashes every file with a worker pool.
// Hash and walk failures are file-local.
func (r *run) scanLocal(ctx context.Context) error {
	results, err := r.o.walk.Walk(ctx, r.req.Root, walker.Options{
		Prefix:  r.req.Prefix,
		Flat:    r.req.Mode == diff.Flat,
		Include: r.req.Include,
		Exclude: r.req.Exclude,
	})
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if r.o.progress {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("scanning"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionShowCount())
		defer func() { _ = bar.Finish() }()
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < r.o.cfg.HashWorkers; i++ {
		g.Go(func() error {
			for res := range results {
				if err := ctx.Err(); err != nil {
					return err
				}
				if res.Err != nil {
					r.recordError("", res.Err)
					continue
				}

				hash, err := fingerprint.HashFile(res.Entry.AbsPath)
				if err != nil {
					r.recordError(res.Entry.LogicalPath, err)
					continue
				}
				metrics.FilesHashed.Inc()
				if bar != nil {
					_ = bar.Add(1)
				}

				r.mu.Lock()
				if prevSeq, ok := r.seen[res.Entry.LogicalPath]; ok {
					// Hashing is concurrent, so the winner is decided
					// by walk order, not by worker interleaving.
					if res.Entry.Seq < prevSeq {
						r.mu.Unlock()
						continue
					}
					slog.Warn("flat name collision, keeping later file",
						slog.String("name", res.Entry.LogicalPath),
						slog.String("replaced", r.abs[res.Entry.LogicalPath]),
						slog.String("kept", res.Entry.AbsPath))
				}
				r.local[res.Entry.LogicalPath] = hash
				r.abs[res.Entry.LogicalPath] = res.Entry.AbsPath
				r.seen[res.Entry.LogicalPath] = res.Entry.Seq
				r.mu.Unlock()
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *run) recordError(path string, err error) {
	slog.Warn("file skipped after error",
		slog.String("path", path),
		slog.String("error", err.Error()))
	metrics.FileErrors.Inc()
	r.mu.Lock()
	r.stats.Errors = append(r.stats.Errors, FileError{Path: path, Reason: err.Error()})
	r.mu.Unlock()
}

// deleteStale removes every point of modified and deleted files. Modified
// files lose their old version before the new one streams in; deletions
// only exist in prefix-scoped mode.
func (r *run) deleteStale(ctx context.Context, res diff.Result) error {
	for _, p := range res.Deleted {
		r.stats.Deleted = append(r.stats.Deleted, FileStat{Path: p, Chunks: r.remoteChunks[p]})
	}

	stale := make([]string, 0, len(res.Modified)+len(res.Deleted))
	stale = append(stale, res.Modified...)
	stale = append(stale, res.Deleted...)
	if len(stale) == 0 {
		return nil
	}

	for start := 0; start < len(stale); start += r.o.cfg.DeleteBatch {
		end := start + r.o.cfg.DeleteBatch
		if end > len(stale) {
			end = len(stale)
		}
		group := stale[start:end]

		var ids []uuid.UUID
		req := vectorstore.ScrollRequest{
			Filter:        vectorstore.FilePathIn(group),
			PayloadFields: []string{"file_path"},
		}
		err := vectorstore.ScrollAll(ctx, r.o.store, r.req.Collection, req, func(points []vectorstore.Point) error {
			for _, p := range points {
				if p.ID == fingerprint.MetadataPointID {
					continue
				}
				ids = append(ids, p.ID)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			continue
		}
		if err := r.o.store.DeletePoints(ctx, r.req.Collection, ids); err != nil {
			return err
		}
		metrics.PointsDeleted.Add(float64(len(ids)))
		slog.Debug("stale points deleted",
			slog.Int("files", len(group)),
			slog.Int("points", len(ids)))
	}
	return nil
}

type workItem struct {
	abs      string
	logical  string
	hash     string
	modified bool
}

type fileResult struct {
	item   workItem
	chunks []chunk.Chunk
	err    error
}

// stream is Phase 3: a chunk worker pool feeds a single coordinator that
// owns the accumulator and issues embed and upsert calls. The completion
// channel depth bounds submitted-but-incomplete work.
func (r *run) stream(ctx context.Context, res diff.Result) error {
	items := make([]workItem, 0, len(res.New)+len(res.Modified))
	for _, p := range res.New {
		items = append(items, workItem{abs: r.abs[p], logical: p, hash: r.local[p]})
	}
	for _, p := range res.Modified {
		items = append(items, workItem{abs: r.abs[p], logical: p, hash: r.local[p], modified: true})
	}
	if len(items) == 0 {
		return ctx.Err()
	}

	work := make(chan workItem)
	// Each worker can hold one completed file while blocked on this
	// channel, so buffered plus held must not exceed MaxPending.
	depth := r.o.cfg.MaxPending - r.o.cfg.ChunkWorkers
	if depth < 1 {
		depth = 1
	}
	done := make(chan fileResult, depth)

	go func() {
		defer close(work)
		for _, it := range items {
			select {
			case work <- it:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg stdsync.WaitGroup
	for i := 0; i < r.o.cfg.ChunkWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range work {
				chunks, err := chunk.File(ctx, r.o.chunker, it.abs, it.logical, it.hash)
				done <- fileResult{item: it, chunks: chunks, err: err}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	var acc []chunk.Chunk
	var terminal error
	for fr := range done {
		if fr.err != nil {
			if ctx.Err() == nil {
				r.recordError(fr.item.logical, fr.err)
			}
			continue
		}
		if fr.chunks == nil {
			r.stats.Skipped = append(r.stats.Skipped, fr.item.logical)
			continue
		}

		stat := FileStat{Path: fr.item.logical, Chunks: len(fr.chunks)}
		if fr.item.modified {
			r.stats.Modified = append(r.stats.Modified, stat)
		} else {
			r.stats.Added = append(r.stats.Added, stat)
		}
		metrics.FilesChunked.Inc()

		if terminal != nil || ctx.Err() != nil {
			// Keep draining so the workers can exit.
			continue
		}

		acc = append(acc, fr.chunks...)
		if len(acc) >= r.o.cfg.UploadThreshold {
			if err := r.flush(ctx, acc); err != nil {
				terminal = err
				continue
			}
			acc = acc[:0]
		}
	}

	if terminal != nil {
		return terminal
	}
	if err := ctx.Err(); err != nil {
		return errors.Cancelled(err)
	}

	r.setState(StateDraining)
	if len(acc) > 0 {
		return r.flush(ctx, acc)
	}
	return nil
}

// flush embeds the accumulator in fixed batches and upserts the resulting
// points in sub-batches. Chunks from different files share batches.
func (r *run) flush(ctx context.Context, acc []chunk.Chunk) error {
	points := make([]vectorstore.Point, 0, len(acc))
	for start := 0; start < len(acc); start += r.o.cfg.EmbedBatch {
		end := start + r.o.cfg.EmbedBatch
		if end > len(acc) {
			end = len(acc)
		}
		batch := acc[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		began := time.Now()
		vectors, err := r.client.EmbedBatch(ctx, texts)
		metrics.EmbedBatchDuration.Observe(time.Since(began).Seconds())
		if err != nil {
			return err
		}
		metrics.ChunksEmbedded.Add(float64(len(batch)))

		for i, c := range batch {
			points = append(points, vectorstore.Point{
				ID:     c.ID,
				Vector: vectors[i],
				Payload: vectorstore.Payload{
					FilePath:       c.LogicalPath,
					ParentFileHash: c.FileHash,
					ChunkHash:      c.ChunkHash,
					Text:           c.Text,
				},
			})
		}
	}

	for start := 0; start < len(points); start += r.o.cfg.UpsertBatch {
		end := start + r.o.cfg.UpsertBatch
		if end > len(points) {
			end = len(points)
		}
		if err := r.o.store.Upsert(ctx, r.req.Collection, points[start:end]); err != nil {
			return err
		}
		metrics.ChunksUpserted.Add(float64(end - start))
	}
	slog.Debug("accumulator flushed", slog.Int("chunks", len(acc)))
	return nil
}
