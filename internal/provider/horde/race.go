package horde

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"answerd/internal/generation"
)

// cancelTimeout bounds the best-effort server-side cancellation.
const cancelTimeout = 5 * time.Second

// job is one submitted generation.
type job struct {
	id       string
	ctx      context.Context
	abort    context.CancelFunc
	lastText string
	// finished is set once the server reports the job done or faulted.
	finished atomic.Bool
	stopOnce sync.Once
}

type jobResult struct {
	job  *job
	text string
	err  error
}

// jobSet runs jobs for one Generate call. Only the winner's text is forwarded.
type jobSet struct {
	p        *Provider
	onUpdate generation.UpdateFunc
	winner   atomic.Pointer[job]
	log      zerolog.Logger
}

// run submits n jobs concurrently and returns the winner's text.
func (p *Provider) run(ctx context.Context, in GenerationInput, n int, onUpdate generation.UpdateFunc) (string, error) {
	s := &jobSet{p: p, onUpdate: onUpdate, log: *zerolog.Ctx(ctx)}
	jobs, lastErr := s.submit(ctx, in, n)
	if ctx.Err() != nil {
		s.stop(jobs, nil)
		return "", generation.Interrupted(ctx.Err())
	}
	if len(jobs) == 0 {
		return "", startFailed(n, lastErr)
	}

	results := make(chan jobResult, len(jobs))
	for _, j := range jobs {
		go func(j *job) {
			text, err := s.poll(j)
			results <- jobResult{job: j, text: text, err: err}
		}(j)
	}

	for range jobs {
		res := <-results
		w := s.winner.Load()
		switch {
		case ctx.Err() != nil:
			s.stop(jobs, nil)
			return "", generation.Interrupted(ctx.Err())
		case res.err == nil:
			if w == nil && s.winner.CompareAndSwap(nil, res.job) {
				w = res.job
				if res.text != "" {
					onUpdate(res.text)
				}
			}
			if w != res.job {
				// A loser finished while the winner is still running.
				continue
			}
			s.stop(jobs, res.job)
			jobsTotal.WithLabelValues("won").Inc()
			s.log.Debug().Str("job", res.job.id).Int("jobs", len(jobs)).Msg("horde job won")
			return res.text, nil
		case w == res.job:
			s.stop(jobs, res.job)
			jobsTotal.WithLabelValues("faulted").Inc()
			return res.job.lastText, faulted("generate", res.err)
		default:
			jobsTotal.WithLabelValues("faulted").Inc()
			s.log.Warn().Err(res.err).Str("job", res.job.id).Msg("horde job failed")
			lastErr = res.err
		}
	}
	if ctx.Err() != nil {
		return "", generation.Interrupted(ctx.Err())
	}
	return "", faulted("generate", fmt.Errorf("all %d jobs failed: %w", len(jobs), lastErr))
}

// submit starts n jobs concurrently; jobs that fail to start are dropped.
func (s *jobSet) submit(ctx context.Context, in GenerationInput, n int) ([]*job, error) {
	slots := make([]*job, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			jctx, abort := context.WithCancel(ctx)
			resp, err := s.p.client.Submit(jctx, in)
			if err != nil {
				abort()
				errs[i] = err
				jobsTotal.WithLabelValues("submit_failed").Inc()
				return
			}
			jobsTotal.WithLabelValues("submitted").Inc()
			slots[i] = &job{id: resp.ID, ctx: jctx, abort: abort}
		}(i)
	}
	wg.Wait()
	var jobs []*job
	var lastErr error
	for i := range slots {
		if slots[i] != nil {
			jobs = append(jobs, slots[i])
		} else if errs[i] != nil {
			lastErr = errs[i]
			s.log.Warn().Err(errs[i]).Msg("horde submit failed")
		}
	}
	return jobs, lastErr
}

// poll follows a job until it finishes, faults or is aborted.
func (s *jobSet) poll(j *job) (string, error) {
	tick := time.NewTicker(s.p.cfg.PollInterval)
	defer tick.Stop()
	for {
		st, err := s.p.client.Status(j.ctx, j.id)
		if err != nil {
			if j.ctx.Err() != nil {
				return "", generation.Interrupted(j.ctx.Err())
			}
			return "", err
		}
		if !st.IsPossible {
			j.finished.Store(true)
			return "", errNotPossible
		}
		if st.Faulted {
			j.finished.Store(true)
			return "", fmt.Errorf("job %s faulted", j.id)
		}
		if text := st.Text(); text != "" && text != j.lastText {
			j.lastText = text
			if s.winner.CompareAndSwap(nil, j) || s.winner.Load() == j {
				s.onUpdate(text)
			}
		}
		if st.Done {
			j.finished.Store(true)
			return st.Text(), nil
		}
		select {
		case <-j.ctx.Done():
			return "", generation.Interrupted(j.ctx.Err())
		case <-tick.C:
		}
	}
}

// stop aborts every unfinished job except keep and cancels it server-side.
// Each job is stopped at most once.
func (s *jobSet) stop(jobs []*job, keep *job) {
	var wg sync.WaitGroup
	for _, j := range jobs {
		if j == keep {
			continue
		}
		j.stopOnce.Do(func() {
			j.abort()
			if j.finished.Load() {
				return
			}
			wg.Add(1)
			go func(j *job) {
				defer wg.Done()
				ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
				defer cancel()
				if err := s.p.client.Cancel(ctx, j.id); err != nil {
					s.log.Warn().Err(err).Str("job", j.id).Msg("horde cancel failed")
					return
				}
				jobsTotal.WithLabelValues("cancelled").Inc()
			}(j)
		})
	}
	wg.Wait()
	if keep != nil {
		keep.abort()
	}
}
