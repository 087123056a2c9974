// Package batch runs bulk coordinate conversions on a fixed worker pool.
// Conversions are cheap but batch requests can carry tens of thousands of
// points; the pool bounds the CPU a single request can occupy.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/nav/navframe/geodesy"
)

// convertJob is a unit of work for the worker pool.
type convertJob struct {
	index int
	point geodesy.ECEF
}

// Result holds the converted forms of one input point. NED and AzEl are
// set only when the batch carried a reference point; AzEl stays nil when
// the point coincides with the reference.
type Result struct {
	Index int
	LLH   geodesy.LLH
	NED   *geodesy.NED
	AzEl  *geodesy.AzEl
}

// convertResult pairs a Result with its error for the collection loop.
type convertResult struct {
	result Result
	err    error
}

// Pool manages a fixed number of goroutines for parallel conversions.
type Pool struct {
	workers int
	logger  *slog.Logger
}

// NewPool creates a pool with the given number of workers.
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		workers: workers,
		logger:  logger,
	}
}

// Workers returns the pool's worker count.
func (p *Pool) Workers() int {
	return p.workers
}

// ConvertBatch converts every point to geodetic coordinates on the given
// ellipsoid; when ref is non-nil each point is also expressed as a NED
// vector and look angles relative to it. Results come back in input
// order. Points that fail to convert are logged at Warn and skipped.
// Returns the results plus success and error counts.
func (p *Pool) ConvertBatch(ctx context.Context, points []geodesy.ECEF, ref *geodesy.LLH, ell geodesy.Ellipsoid) ([]Result, int, int) {
	if len(points) == 0 {
		return nil, 0, 0
	}

	jobs := make(chan convertJob, p.workers*2)
	results := make(chan convertResult, p.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := convertSingle(job, ref, ell)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobs)
		for i, point := range points {
			job := convertJob{index: i, point: point}
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect into input order; results arrive interleaved.
	ordered := make([]*Result, len(points))
	var successCount, errorCount int

	for res := range results {
		if res.err != nil {
			errorCount++
			p.logger.Warn("conversion failed",
				"index", res.result.Index,
				"error", res.err,
			)
			continue
		}
		successCount++
		r := res.result
		ordered[r.Index] = &r
	}

	out := make([]Result, 0, successCount)
	for _, r := range ordered {
		if r != nil {
			out = append(out, *r)
		}
	}

	return out, successCount, errorCount
}

// convertSingle converts one point to LLH and, when a reference is
// supplied, to NED and look angles.
func convertSingle(job convertJob, ref *geodesy.LLH, ell geodesy.Ellipsoid) convertResult {
	llh, err := geodesy.LLHFromECEF(job.point, ell)
	if err != nil {
		return convertResult{result: Result{Index: job.index}, err: err}
	}

	result := Result{Index: job.index, LLH: llh}
	if ref == nil {
		return convertResult{result: result}
	}

	ned, err := geodesy.NEDFromECEF(job.point, *ref, ell)
	if err != nil {
		return convertResult{result: Result{Index: job.index}, err: err}
	}
	result.NED = &ned

	azel, err := geodesy.AzElFromECEF(*ref, job.point, ell)
	switch {
	case err == nil:
		result.AzEl = &azel
	case errors.Is(err, geodesy.ErrDegenerateGeometry):
		// Point sits on the reference; LLH and NED are still valid,
		// the look angles just don't exist.
	default:
		return convertResult{result: Result{Index: job.index}, err: err}
	}

	return convertResult{result: result}
}
