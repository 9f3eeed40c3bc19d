// Package batch runs many independent programs through the optimizer
// pipeline concurrently. Per §5 of the design, two optimizations on two
// independent programs can run on separate OS threads because each owns
// its own program and analysis tables; this package is the worker pool
// that exploits that.
package batch

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vectorwave/isavopt/pkg/config"
	"github.com/vectorwave/isavopt/pkg/diag"
	"github.com/vectorwave/isavopt/pkg/isa"
	"github.com/vectorwave/isavopt/pkg/optimizer"
)

// Job is one program to optimize, identified by its position in the
// caller's input batch so results can be reassembled in order.
type Job struct {
	Index   int
	Name    string
	Program isa.Program
}

// Result is the outcome of optimizing one Job.
type Result struct {
	Index   int
	Name    string
	Program isa.Program
	Stats   optimizer.Stats
	Err     error
}

// Table collects results from concurrent workers behind a mutex, the
// same shape the source's rule table uses to collect discoveries from
// parallel search workers.
type Table struct {
	mu      sync.Mutex
	results []Result
}

// NewTable creates an empty table.
func NewTable() *Table { return &Table{} }

// Add inserts one result.
func (t *Table) Add(r Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results = append(t.results, r)
}

// Results returns a copy of all results, ordered by job index.
func (t *Table) Results() []Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Result, len(t.results))
	copy(out, t.results)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Len returns the number of collected results.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.results)
}

// Pool runs Pipeline over a batch of jobs across NumWorkers goroutines.
type Pool struct {
	NumWorkers int
	Arch       config.Architecture
	ScalarMode bool
	Verbose    bool
	Sink       diag.Sink

	completed atomic.Int64
	failed    atomic.Int64
}

// NewPool builds a Pool, defaulting NumWorkers to the host's CPU count
// when given a non-positive value.
func NewPool(numWorkers int, arch config.Architecture, scalarMode bool) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &Pool{NumWorkers: numWorkers, Arch: arch, ScalarMode: scalarMode, Sink: diag.Stderr}
}

// Stats reports how many jobs have completed and failed across every Run
// call made on this Pool so far.
func (p *Pool) Stats() (completed, failed int64) {
	return p.completed.Load(), p.failed.Load()
}

// Run optimizes every job concurrently and returns a Table of results.
// Each worker goroutine only ever touches the Job it pulled off the
// channel and the Result it produces from it — no state is shared across
// jobs, matching the concurrency model's "no shared mutable state crosses
// pass boundaries" rule.
func (p *Pool) Run(jobs []Job) *Table {
	table := NewTable()
	total := int64(len(jobs))

	ch := make(chan Job, len(jobs))
	for _, j := range jobs {
		ch <- j
	}
	close(ch)

	done := make(chan struct{})
	start := time.Now()
	if p.Verbose {
		go p.reportProgress(total, start, done)
	}

	var wg sync.WaitGroup
	for i := 0; i < p.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range ch {
				table.Add(p.runOne(job))
			}
		}()
	}
	wg.Wait()
	close(done)

	return table
}

func (p *Pool) runOne(job Job) Result {
	out, stats, err := optimizer.Pipeline(job.Program, p.Arch, p.ScalarMode, false, p.Sink)
	if err != nil {
		p.failed.Add(1)
		p.completed.Add(1)
		return Result{Index: job.Index, Name: job.Name, Err: err}
	}
	p.completed.Add(1)
	return Result{Index: job.Index, Name: job.Name, Program: out, Stats: stats}
}

func (p *Pool) reportProgress(total int64, start time.Time, done <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			comp, failed := p.completed.Load(), p.failed.Load()
			elapsed := time.Since(start).Round(time.Second)
			fmt.Printf("  [%s] %d/%d programs optimized (%d failed)\n", elapsed, comp, total, failed)
		}
	}
}
