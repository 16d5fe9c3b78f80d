package ingestor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"

	"github.com/jmylchreest/epgnow/pkg/xmltv"
	"golang.org/x/sync/errgroup"
)

// ErrChunkFailed is returned by a strict pool when any chunk fails.
var ErrChunkFailed = errors.New("chunk processing failed")

// ChunkFunc processes one chunk. It must not retain records.
type ChunkFunc func(ctx context.Context, records []xmltv.Programme) ([]Entry, error)

// PoolResult is the joined output of one Process call.
type PoolResult struct {
	Entries       []Entry
	Chunks        int
	RetriedChunks int
	FailedChunks  int
	Dropped       int
}

// Pool normalizes programme records in parallel chunks.
type Pool struct {
	workers  int
	strict   bool
	process  ChunkFunc
	fallback ChunkFunc
	logger   *slog.Logger
}

// DefaultWorkers returns max(1, NumCPU-1).
func DefaultWorkers() int {
	return max(1, runtime.NumCPU()-1)
}

// NewPool creates a pool with DefaultWorkers workers running ProcessChunk.
func NewPool() *Pool {
	return &Pool{
		workers:  DefaultWorkers(),
		process:  ProcessChunk,
		fallback: ProcessChunk,
		logger:   slog.Default(),
	}
}

// WithWorkers sets the worker count. Values below one select DefaultWorkers.
func (p *Pool) WithWorkers(n int) *Pool {
	if n < 1 {
		n = DefaultWorkers()
	}
	p.workers = n
	return p
}

// WithStrict makes any chunk failure fail the whole join. By default a failed
// chunk is re-run sequentially with the fallback function; if that fails too
// only its own output is discarded and it is counted in PoolResult.FailedChunks.
// A lenient join still fails when no chunk produced output.
func (p *Pool) WithStrict(strict bool) *Pool {
	p.strict = strict
	return p
}

// WithChunkFunc replaces the per-chunk function.
func (p *Pool) WithChunkFunc(fn ChunkFunc) *Pool {
	p.process = fn
	return p
}

// WithFallbackFunc sets the function a lenient pool re-runs failed chunks
// with. Nil disables the retry.
func (p *Pool) WithFallbackFunc(fn ChunkFunc) *Pool {
	p.fallback = fn
	return p
}

// WithLogger sets the logger.
func (p *Pool) WithLogger(logger *slog.Logger) *Pool {
	p.logger = logger
	return p
}

// Workers returns the configured worker count.
func (p *Pool) Workers() int {
	return p.workers
}

// Partition splits total records into at most workers contiguous ranges of
// ceil(total/workers) records each. The last range may be shorter.
func Partition(total, workers int) [][2]int {
	if total <= 0 {
		return nil
	}
	workers = max(1, workers)
	size := (total + workers - 1) / workers

	ranges := make([][2]int, 0, workers)
	for start := 0; start < total; start += size {
		ranges = append(ranges, [2]int{start, min(start+size, total)})
	}
	return ranges
}

// Process runs the chunk function over records and concatenates the results
// in chunk order. Each task writes only its own result slot.
func (p *Pool) Process(ctx context.Context, records []xmltv.Programme) (*PoolResult, error) {
	ranges := Partition(len(records), p.workers)
	results := make([][]Entry, len(ranges))
	failures := make([]error, len(ranges))

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range ranges {
		chunk := records[r[0]:r[1]]
		g.Go(func() error {
			entries, err := p.runChunk(gctx, p.process, chunk)
			if err != nil {
				failures[i] = fmt.Errorf("chunk %d [%d:%d]: %w", i, r[0], r[1], err)
				if p.strict {
					return failures[i]
				}
				return nil
			}
			results[i] = entries
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrChunkFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &PoolResult{Chunks: len(ranges)}
	for i, r := range ranges {
		if failures[i] == nil || p.fallback == nil {
			continue
		}
		entries, err := p.runChunk(ctx, p.fallback, records[r[0]:r[1]])
		if err != nil {
			failures[i] = errors.Join(failures[i], fmt.Errorf("retry: %w", err))
			continue
		}
		p.logger.Warn("chunk recovered by sequential retry",
			slog.Int("chunk", i),
			slog.String("error", failures[i].Error()),
		)
		failures[i] = nil
		results[i] = entries
		res.RetriedChunks++
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := 0
	for _, entries := range results {
		total += len(entries)
	}
	res.Entries = make([]Entry, 0, total)

	processed := 0
	for i, entries := range results {
		if failures[i] != nil {
			res.FailedChunks++
			p.logger.Warn("discarding failed chunk",
				slog.Int("chunk", i),
				slog.String("error", failures[i].Error()),
			)
			continue
		}
		processed += ranges[i][1] - ranges[i][0]
		res.Entries = append(res.Entries, entries...)
	}
	res.Dropped = processed - len(res.Entries)

	if res.Chunks > 0 && res.FailedChunks == res.Chunks {
		return nil, fmt.Errorf("%w: all %d chunks failed: %w", ErrChunkFailed, res.Chunks, errors.Join(failures...))
	}
	return res, nil
}

// runChunk converts a panic inside fn into an error.
func (p *Pool) runChunk(ctx context.Context, fn ChunkFunc, chunk []xmltv.Programme) (entries []Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx, chunk)
}
