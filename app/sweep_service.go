package app

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/semaphore"

	"pslike/domain/core"
	"pslike/domain/params"
)

// SweepRequest is a batch of independent parameter proposals to evaluate.
type SweepRequest struct {
	Points []params.Vector
	// Parallelism bounds concurrent evaluations; 0 means GOMAXPROCS.
	Parallelism int64
	SweepID     core.SweepID // generated if empty
}

// SweepSummary aggregates a sweep's finite log-posteriors.
type SweepSummary struct {
	Evaluated     int     `json:"evaluated"`
	Finite        int     `json:"finite"`
	PriorRejected int     `json:"prior_rejected"`
	Degraded      int     `json:"degraded"`
	BestIndex     int     `json:"best_index"`
	BestLogPost   float64 `json:"best_log_posterior"`
	MeanLogPost   float64 `json:"mean_log_posterior"`
	MedianLogPost float64 `json:"median_log_posterior"`
	P5LogPost     float64 `json:"p5_log_posterior"`
	P95LogPost    float64 `json:"p95_log_posterior"`
}

// SweepResult holds per-point results in request order plus the summary.
type SweepResult struct {
	SweepID   core.SweepID       `json:"sweep_id"`
	Results   []LikelihoodResult `json:"results"`
	Summary   SweepSummary       `json:"summary"`
	RuntimeMs int64              `json:"runtime_ms"`
}

// SweepService evaluates batches of parameter vectors in parallel against a
// single LikelihoodService. Evaluations are independent and referentially
// transparent, so ordering of completion does not affect results.
type SweepService struct {
	likelihood *LikelihoodService
}

// NewSweepService creates a sweep service.
func NewSweepService(likelihood *LikelihoodService) *SweepService {
	return &SweepService{likelihood: likelihood}
}

// Run evaluates every point, preserving request ordering in the result
// slice. Cancellation is honored between evaluations; already-acquired
// evaluations run to completion.
func (s *SweepService) Run(ctx context.Context, req SweepRequest) (*SweepResult, error) {
	start := time.Now()

	sweepID := req.SweepID
	if sweepID == "" {
		sweepID = core.SweepID(core.NewID())
	}
	parallelism := req.Parallelism
	if parallelism <= 0 {
		parallelism = int64(runtime.GOMAXPROCS(0))
	}

	results := make([]LikelihoodResult, len(req.Points))
	sem := semaphore.NewWeighted(parallelism)
	var wg sync.WaitGroup

	for i, point := range req.Points {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(i int, point params.Vector) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = s.likelihood.Evaluate(point)
		}(i, point)
	}
	wg.Wait()

	return &SweepResult{
		SweepID:   sweepID,
		Results:   results,
		Summary:   summarize(results),
		RuntimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func summarize(results []LikelihoodResult) SweepSummary {
	summary := SweepSummary{
		Evaluated:   len(results),
		BestIndex:   -1,
		BestLogPost: math.Inf(-1),
	}

	finite := make([]float64, 0, len(results))
	for i, r := range results {
		if r.PriorRejected {
			summary.PriorRejected++
		}
		if r.DegradedCovariance {
			summary.Degraded++
		}
		if math.IsInf(r.LogPosterior, 0) || math.IsNaN(r.LogPosterior) {
			continue
		}
		finite = append(finite, r.LogPosterior)
		if r.LogPosterior > summary.BestLogPost {
			summary.BestLogPost = r.LogPosterior
			summary.BestIndex = i
		}
	}
	summary.Finite = len(finite)
	if len(finite) == 0 {
		return summary
	}

	summary.MeanLogPost, _ = stats.Mean(finite)
	summary.MedianLogPost, _ = stats.Median(finite)
	summary.P5LogPost, _ = stats.Percentile(finite, 5)
	summary.P95LogPost, _ = stats.Percentile(finite, 95)
	return summary
}
