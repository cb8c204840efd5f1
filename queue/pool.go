package queue

import (
	"context"
	"errors"
	"log"
	"time"

	cache "github.com/Code-Hex/go-generics-cache"
	"github.com/matrix-org/policyrelay/audit"
	"github.com/matrix-org/policyrelay/chat"
	"github.com/matrix-org/policyrelay/metrics"
	"github.com/matrix-org/policyrelay/moderation"
	"github.com/matrix-org/policyrelay/session"
	"github.com/matrix-org/policyrelay/storage"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	typedsf "github.com/t2bot/go-typed-singleflight"
)

// How long a completed session turn is remembered against its idempotency key.
const idempotencyWindow = 15 * time.Minute

type PoolResult struct {
	// Nil if there was an error.
	Result *moderation.Result

	// The error processing the run, if any.
	Err error
}

type PoolConfig struct {
	ConcurrentPools int
	SizePerPool     int
	// Upper bound on a single run, including time spent waiting for earlier turns in the same session.
	RunTimeout time.Duration
}

// Runner - Executes one moderated turn. Implemented by moderation.Pipeline.
type Runner interface {
	Run(ctx context.Context, transcript []chat.Message) (*moderation.Result, error)
}

type Pool struct {
	runner     Runner
	sessions   *session.Store
	auditQueue *audit.Queue
	internal   *ants.MultiPool
	sf         *typedsf.Group[*moderation.Result] // keyed by session ID + idempotency key
	completed  *cache.Cache[string, *moderation.Result]
	runTimeout time.Duration
}

// NewPool - Creates a run queue. The auditQueue may be nil to skip auditing.
func NewPool(config *PoolConfig, runner Runner, sessions *session.Store, auditQueue *audit.Queue) (*Pool, error) {
	if config.RunTimeout <= 0 {
		return nil, errors.New("run timeout must be positive")
	}
	internal, err := ants.NewMultiPool(config.ConcurrentPools, config.SizePerPool, ants.RoundRobin, ants.WithOptions(ants.Options{
		ExpiryDuration:   1 * time.Minute,
		PreAlloc:         false,
		MaxBlockingTasks: 0, // no limit on submissions
		Nonblocking:      false,
		// If we don't supply a panic handler then ants will print a stack trace for us
		Logger:       log.Default(),
		DisablePurge: false,
	}))
	if err != nil {
		return nil, err
	}
	return &Pool{
		runner:     runner,
		sessions:   sessions,
		auditQueue: auditQueue,
		internal:   internal,
		sf:         new(typedsf.Group[*moderation.Result]),
		completed: cache.New[string, *moderation.Result](
			cache.WithJanitorInterval[string, *moderation.Result](1 * time.Minute),
		),
		runTimeout: config.RunTimeout,
	}, nil
}

// SubmitTranscript asks the queue to run the pipeline over a caller-supplied transcript. If `waitCh` is non-nil, it
// will be called with the result upon completion or error. The `waitCh` is not called if there was a submission
// error - that is instead returned from SubmitTranscript.
func (p *Pool) SubmitTranscript(ctx context.Context, transcript []chat.Message, waitCh chan<- *PoolResult) error {
	runTranscript := chat.Clone(transcript)
	return p.submit(ctx, "stateless", storage.NextId(), waitCh, func(runCtx context.Context) (*moderation.Result, error) {
		res, err := p.runner.Run(runCtx, runTranscript)
		if err != nil {
			return nil, err
		}
		p.audit(res, "")
		return res, nil
	})
}

// SubmitSessionMessage asks the queue to run a user message through the pipeline against a session's history. The
// user message and the outbound message are added to the history only when the run succeeds. Submissions sharing a
// non-empty idempotencyKey within a session produce a single run. See SubmitTranscript for `waitCh` semantics.
func (p *Pool) SubmitSessionMessage(ctx context.Context, sessionId string, content string, idempotencyKey string, waitCh chan<- *PoolResult) error {
	if p.sessions == nil {
		return errors.New("sessions are not available")
	}
	key := storage.NextId() // no deduplication
	if idempotencyKey != "" {
		key = sessionId + "|" + idempotencyKey
	}
	return p.submit(ctx, sessionId, key, waitCh, func(runCtx context.Context) (*moderation.Result, error) {
		if idempotencyKey != "" {
			if res, ok := p.completed.Get(key); ok {
				log.Printf("[%s] Replaying result for idempotency key", sessionId)
				return res, nil
			}
		}

		var res *moderation.Result
		err := p.sessions.Turn(runCtx, sessionId, func(history []chat.Message) ([]chat.Message, error) {
			userMessage := chat.UserMessage(content)
			r, err := p.runner.Run(runCtx, append(history, userMessage))
			if err != nil {
				return nil, err
			}
			res = r
			return []chat.Message{userMessage, r.Message}, nil
		})
		if err != nil {
			return nil, err
		}

		if idempotencyKey != "" {
			p.completed.Set(key, res, cache.WithExpiration(idempotencyWindow))
		}
		p.audit(res, sessionId)
		return res, nil
	})
}

func (p *Pool) submit(ctx context.Context, logTag string, sfKey string, waitCh chan<- *PoolResult, runFn func(runCtx context.Context) (*moderation.Result, error)) error {
	t := metrics.StartQueueTimer()

	// Note: waitCh might be nil or unbuffered, so we spawn this in a goroutine later on.
	notifyResult := func(res *moderation.Result, err error) {
		if err == nil {
			t.ObserveDurationWithExemplar(prometheus.Labels{"waitedUntil": "result"})
		} else if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			t.ObserveDurationWithExemplar(prometheus.Labels{"waitedUntil": "timeout"})
		} else {
			t.ObserveDurationWithExemplar(prometheus.Labels{"waitedUntil": "error"})
		}

		if waitCh != nil {
			poolRes := &PoolResult{
				Result: res,
				Err:    err,
			}

			// First, check to see if the channel is likely going to be closed already
			if err := ctx.Err(); err != nil {
				log.Printf("[%s] Result channel closed, not sending result: %s", logTag, err)
				return
			}

			// Consider the context in our delivery of the result
			select {
			case waitCh <- poolRes:
			case <-ctx.Done():
				log.Printf("[%s] Result channel closed, not sending result: %s", logTag, ctx.Err())
			}
		}
	}

	workFn := func() {
		// If the context is cancelled, save the model calls and don't bother running
		if err := ctx.Err(); err != nil {
			log.Printf("[%s] Not running because context was cancelled/timed out", logTag)
			go notifyResult(nil, err)
			return
		}

		// Ask the singleflight to do the work (deduplicating retried submissions)
		res, err, _ := p.sf.Do(sfKey, func() (*moderation.Result, error) {
			// We create a new context because the singleflight might span multiple requests, and we don't want to tie
			// results for all requests to the first (maybe cancelled) request. The run still has an upper bound.
			runCtx, cancel := context.WithTimeout(context.Background(), p.runTimeout)
			defer cancel()
			return runFn(runCtx)
		})
		if res == nil && err == nil {
			// "should never happen"
			err = errors.New("nil result")
		}
		if err != nil {
			log.Printf("[%s] Run failed: %s", logTag, err)
		}
		go notifyResult(res, err)
	}

	return p.internal.Submit(workFn)
}

func (p *Pool) audit(res *moderation.Result, sessionId string) {
	if p.auditQueue == nil {
		return
	}
	if err := p.auditQueue.Submit(audit.NewRecord(res, sessionId)); err != nil {
		log.Printf("[%s | %s] Failed to queue audit record: %s", res.RunId, sessionId, err)
	}
}

// Close - Waits (up to the timeout) for running work to finish, then stops the pool.
func (p *Pool) Close(timeout time.Duration) error {
	return p.internal.ReleaseTimeout(timeout)
}
