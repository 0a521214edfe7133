package intruder

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/sentinel-intercept/proxy/internal/domain/eventbus"
	"github.com/sentinel-intercept/proxy/internal/domain/replay"
	"github.com/sentinel-intercept/proxy/internal/domain/rules"
)

// Result is the per-tuple outcome emitted as a "result" event (spec.md §4.12).
type Result struct {
	Payloads  []string
	URL       string
	Status    int
	Length    int
	Extracted []string
	Success   bool
	Err       string
}

// Job describes one Intruder run: the raw templated request, its payload
// positions, the per-position processor chains, and the attack plan to
// execute.
type Job struct {
	Raw        []byte
	Positions  []Position
	Chains     [][]Processor // len == len(Positions); may contain nil/empty chains
	Plan       [][]string
	Extractors []*Extractor
	Rules      []rules.Rule
}

// Runner executes an Intruder Job with a bounded worker pool, reporting
// progress and per-tuple results on an Event Bus.
type Runner struct {
	Executor *replay.Executor
	Bus      *eventbus.Bus
	Workers  int
}

// NewRunner creates a Runner with the given executor, event bus, and
// worker count (default 10, per spec.md §4.12).
func NewRunner(executor *replay.Executor, bus *eventbus.Bus, workers int) *Runner {
	if workers <= 0 {
		workers = 10
	}
	return &Runner{Executor: executor, Bus: bus, Workers: workers}
}

// Run executes every tuple in job.Plan, applying processors and
// substituting into job.Raw, sending each via the Replay Executor.
// Cancelling ctx propagates to all in-flight workers; each abandons its
// current request on its next I/O suspension point, per spec.md §5.
func (r *Runner) Run(ctx context.Context, job Job) []Result {
	total := len(job.Plan)
	r.publish(eventbus.TypeIntruderStart, map[string]any{"total": total})

	sem := semaphore.NewWeighted(int64(r.Workers))
	results := make([]Result, total)
	var completed int64
	var wg sync.WaitGroup

	for i, tuple := range job.Plan {
		i, tuple := i, tuple
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = Result{Payloads: tuple, Err: err.Error()}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			select {
			case <-ctx.Done():
				results[i] = Result{Payloads: tuple, Err: ctx.Err().Error()}
			default:
				results[i] = r.runOne(ctx, job, tuple)
			}
			r.publish(eventbus.TypeIntruderResult, results[i])

			done := atomic.AddInt64(&completed, 1)
			pct := int(done * 100 / int64(total))
			r.publish(eventbus.TypeIntruderUpdate, map[string]any{"percent": pct, "completed": done, "total": total})
		}()
	}

	wg.Wait()

	r.publish(eventbus.TypeIntruderDone, map[string]any{"total": total})
	return results
}

func (r *Runner) runOne(ctx context.Context, job Job, tuple []string) Result {
	raw, err := Substitute(job.Raw, job.Positions, job.Chains, tuple)
	if err != nil {
		return Result{Payloads: tuple, Err: err.Error()}
	}

	resp, err := r.Executor.Attempt(ctx, raw, job.Rules, "", "")
	if err != nil {
		return Result{Payloads: tuple, Err: err.Error()}
	}

	return Result{
		Payloads:  tuple,
		Status:    resp.StatusCode,
		Length:    len(resp.Body),
		Extracted: ExtractAll(job.Extractors, resp.Body),
		Success:   resp.StatusCode >= 200 && resp.StatusCode < 300,
	}
}

func (r *Runner) publish(typ string, data any) {
	if r.Bus == nil {
		return
	}
	r.Bus.PublishType(typ, data)
}

// Substitute applies each position's processor chain to its tuple value
// (resolving OriginalSentinel to the position's captured original text),
// then rewrites raw accordingly, dropping the § delimiters.
func Substitute(raw []byte, positions []Position, chains [][]Processor, tuple []string) ([]byte, error) {
	resolved := make([]string, len(positions))
	for i, pos := range positions {
		val := tuple[i]
		if val == OriginalSentinel {
			val = pos.Original
		} else if len(chains) > i && len(chains[i]) > 0 {
			v, err := ApplyChain(chains[i], val)
			if err != nil {
				return nil, err
			}
			val = v
		}
		resolved[i] = val
	}

	var out []byte
	cursor := 0
	for i, pos := range positions {
		out = append(out, raw[cursor:pos.Start]...)
		out = append(out, resolved[i]...)
		cursor = pos.End
	}
	out = append(out, raw[cursor:]...)
	return out, nil
}
