// Package search runs a pattern over a range of physical lines in the
// background and reports matching line numbers to a sink.
package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/dlclark/regexp2"
	"github.com/sourcegraph/conc/pool"
)

const (
	defaultChunkLines = 4096
	defaultWorkers    = 4
)

// Reader is the part of a file a search needs
type Reader interface {
	ReadLine(idx int) ([]byte, error)
}

// Sink receives the results of a Job. Match is called once per hit in
// ascending line order, then Done exactly once.
type Sink interface {
	Match(line int)
	Done(err error)
}

// Option configures a Job
type Option func(*options)

type options struct {
	chunk   int
	workers int
}

// WithChunkLines sets how many lines one worker task scans
func WithChunkLines(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunk = n
		}
	}
}

// WithWorkers bounds the number of concurrent worker tasks
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// Compile builds a case-insensitive search pattern
func Compile(pattern string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pattern, regexp2.IgnoreCase)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", pattern, err)
	}
	return re, nil
}

// Job is one running search
type Job struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	hits *roaring.Bitmap
	err  error
}

// Start searches lines [start, end) of r for re. The search stops early
// when ctx is cancelled or Cancel is called.
func Start(ctx context.Context, r Reader, re *regexp2.Regexp, start, end int, sink Sink, opts ...Option) *Job {
	o := options{chunk: defaultChunkLines, workers: defaultWorkers}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	j := &Job{
		cancel: cancel,
		done:   make(chan struct{}),
		hits:   roaring.New(),
	}
	go j.run(ctx, r, re, start, end, sink, o)
	return j
}

func (j *Job) run(ctx context.Context, r Reader, re *regexp2.Regexp, start, end int, sink Sink, o options) {
	defer close(j.done)
	defer j.cancel()

	p := pool.New().WithMaxGoroutines(o.workers).WithContext(ctx).WithCancelOnError()
	for lo := start; lo < end; lo += o.chunk {
		lo, hi := lo, min(lo+o.chunk, end)
		p.Go(func(ctx context.Context) error {
			return j.scan(ctx, r, re, lo, hi)
		})
	}
	err := p.Wait()
	if err == nil {
		err = ctx.Err()
	}

	j.mu.Lock()
	j.err = err
	hits := j.hits.Clone()
	j.mu.Unlock()

	if sink == nil {
		return
	}
	it := hits.Iterator()
	for it.HasNext() {
		sink.Match(int(it.Next()))
	}
	sink.Done(err)
}

func (j *Job) scan(ctx context.Context, r Reader, re *regexp2.Regexp, lo, hi int) error {
	local := roaring.New()
	for i := lo; i < hi; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		content, err := r.ReadLine(i)
		if err != nil {
			return fmt.Errorf("read line %d: %w", i, err)
		}
		// a timed out match counts as no match
		if ok, err := re.MatchString(string(content)); err == nil && ok {
			local.Add(uint32(i))
		}
	}

	j.mu.Lock()
	j.hits.Or(local)
	j.mu.Unlock()
	return nil
}

// Cancel stops the search. Results found so far are still reported.
func (j *Job) Cancel() {
	j.cancel()
}

// Wait blocks until the job has reported to its sink and returns its error
func (j *Job) Wait() error {
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Done is closed when the job has finished
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Hits returns the matching lines found so far in ascending order
func (j *Job) Hits() []int {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]int, 0, j.hits.GetCardinality())
	it := j.hits.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// Collector is a Sink that keeps every hit
type Collector struct {
	mu    sync.Mutex
	lines []int
	err   error
	done  bool
}

func (c *Collector) Match(line int) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
}

func (c *Collector) Done(err error) {
	c.mu.Lock()
	c.err = err
	c.done = true
	c.mu.Unlock()
}

// Lines returns the hits received so far
func (c *Collector) Lines() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, len(c.lines))
	copy(out, c.lines)
	return out
}

// Result reports whether Done was called and with what error
func (c *Collector) Result() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done, c.err
}
