// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package freshness probes the filesystem paths recorded in entries and
// diffs the observed facts against the recorded ones. Probing never writes;
// a failed probe degrades that one path to a probe-error diff instead of
// aborting the scan.
package freshness

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pdiddy/kbmd/pkg/types"
)

// scanNow returns the scan timestamp. Tests override it for stable output.
var scanNow = time.Now

const (
	defaultWorkers      = 8
	defaultProbeTimeout = 5 * time.Second
)

// ProbeResult holds the facts observed for one path.
type ProbeResult struct {
	Exists    bool
	SizeBytes int64
	ModTime   time.Time
}

// Prober stats a single path. Implementations must be safe for concurrent
// use; the scanner dispatches probes from a bounded worker pool.
type Prober interface {
	Probe(ctx context.Context, path string) (ProbeResult, error)
}

// OSProber probes the local filesystem with os.Stat, bounding each call by
// the configured timeout.
type OSProber struct {
	Timeout time.Duration
}

// Probe stats path. The stat runs in its own goroutine so a hung filesystem
// (e.g. a stale network mount) surfaces as a timeout for that path alone.
func (p OSProber) Probe(ctx context.Context, path string) (ProbeResult, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type statResult struct {
		info os.FileInfo
		err  error
	}
	ch := make(chan statResult, 1)
	go func() {
		info, err := os.Stat(path)
		ch <- statResult{info: info, err: err}
	}()

	select {
	case <-ctx.Done():
		return ProbeResult{}, fmt.Errorf("probing %s: %w", path, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			if os.IsNotExist(r.err) {
				return ProbeResult{Exists: false}, nil
			}
			return ProbeResult{}, fmt.Errorf("probing %s: %w", path, r.err)
		}
		return ProbeResult{Exists: true, SizeBytes: r.info.Size(), ModTime: r.info.ModTime()}, nil
	}
}

// DiffKind classifies the drift observed for one path.
type DiffKind string

const (
	Unchanged    DiffKind = "unchanged"
	SizeChanged  DiffKind = "size-changed"
	MtimeChanged DiffKind = "mtime-changed"
	Missing      DiffKind = "missing"
	Restored     DiffKind = "restored"
	ProbeError   DiffKind = "probe-error"
)

// Diff is the freshness result for one entry path.
type Diff struct {
	EntryID string
	Path    string
	Kind    DiffKind

	OldSize int64
	NewSize int64

	OldMtime time.Time
	NewMtime time.Time

	// Observed holds the probed facts and ObservedAt the scan time; both
	// are zero for probe errors, whose recorded facts stay untouched.
	Observed   ProbeResult
	ObservedAt time.Time

	// Err describes the probe failure for ProbeError diffs.
	Err string
}

// Summary counts scan outcomes by kind.
type Summary struct {
	Unchanged int
	Changed   int
	Missing   int
	Restored  int
	Errors    int
}

// Total returns the number of paths probed.
func (s Summary) Total() int {
	return s.Unchanged + s.Changed + s.Missing + s.Restored + s.Errors
}

// Scanner probes entry paths with a bounded worker pool.
type Scanner struct {
	prober  Prober
	workers int
}

// NewScanner builds a scanner. A nil prober defaults to an OSProber with
// the configured probe timeout.
func NewScanner(prober Prober, cfg types.ScanConfig) *Scanner {
	if prober == nil {
		prober = OSProber{Timeout: cfg.ProbeTimeout}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Scanner{prober: prober, workers: workers}
}

type probeJob struct {
	slot    int
	entryID string
	record  types.PathRecord
}

// Scan probes every path of every entry and returns one diff per path.
// Probes run concurrently but results are merged by path identity: the
// output order follows the input entry and path order, independent of
// probe completion order. Cancelling ctx stops dispatch; paths already
// probed keep their results and the rest are reported as probe errors.
func (s *Scanner) Scan(ctx context.Context, entries []types.Entry) ([]Diff, Summary) {
	var jobs []probeJob
	for _, e := range entries {
		for _, p := range e.Paths {
			jobs = append(jobs, probeJob{slot: len(jobs), entryID: e.ID, record: p})
		}
	}

	results := make([]Diff, len(jobs))
	now := scanNow().UTC()

	jobCh := make(chan probeJob)
	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				results[job.slot] = s.probeOne(ctx, job, now)
			}
		}()
	}

	markCancelled := func(from int) {
		for i := from; i < len(jobs); i++ {
			results[i] = Diff{
				EntryID: jobs[i].entryID,
				Path:    jobs[i].record.Location,
				Kind:    ProbeError,
				Err:     ctx.Err().Error(),
			}
		}
	}

dispatch:
	for _, job := range jobs {
		if ctx.Err() != nil {
			markCancelled(job.slot)
			break
		}
		select {
		case <-ctx.Done():
			markCancelled(job.slot)
			break dispatch
		case jobCh <- job:
		}
	}
	close(jobCh)
	wg.Wait()

	var summary Summary
	for _, d := range results {
		switch d.Kind {
		case Unchanged:
			summary.Unchanged++
		case SizeChanged, MtimeChanged:
			summary.Changed++
		case Missing:
			summary.Missing++
		case Restored:
			summary.Restored++
		case ProbeError:
			summary.Errors++
		}
	}
	return results, summary
}

func (s *Scanner) probeOne(ctx context.Context, job probeJob, now time.Time) Diff {
	d := Diff{
		EntryID:  job.entryID,
		Path:     job.record.Location,
		OldSize:  job.record.Recorded.SizeBytes,
		OldMtime: job.record.Recorded.ModTime,
	}

	observed, err := s.prober.Probe(ctx, job.record.Location)
	if err != nil {
		d.Kind = ProbeError
		d.Err = err.Error()
		return d
	}

	d.Observed = observed
	d.ObservedAt = now
	d.NewSize = observed.SizeBytes
	d.NewMtime = observed.ModTime

	recorded := job.record.Recorded
	switch {
	case recorded.Exists && !observed.Exists:
		d.Kind = Missing
	case !recorded.Exists && observed.Exists:
		d.Kind = Restored
	case !observed.Exists:
		d.Kind = Unchanged
	case observed.SizeBytes != recorded.SizeBytes:
		d.Kind = SizeChanged
	case !observed.ModTime.Equal(recorded.ModTime):
		d.Kind = MtimeChanged
	default:
		d.Kind = Unchanged
	}
	return d
}
