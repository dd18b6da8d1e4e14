package main

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fastrand"
	"golang.org/x/sync/errgroup"

	"github.com/aradilov/lockfree/array"
	"github.com/aradilov/lockfree/cell"
	"github.com/aradilov/lockfree/linked"
	"github.com/aradilov/lockfree/mpmc"
	"github.com/aradilov/lockfree/once"
	"github.com/aradilov/lockfree/pool"
	"github.com/aradilov/lockfree/pubsub"
	"github.com/aradilov/lockfree/ring"
	"github.com/aradilov/lockfree/spin"
	"github.com/aradilov/lockfree/spsc"
	"github.com/aradilov/lockfree/state"
)

// Result is the outcome of one stress run.
type Result struct {
	Structure  string        `json:"structure"`
	Producers  int           `json:"producers"`
	Consumers  int           `json:"consumers"`
	Items      int           `json:"items"`
	Received   int64         `json:"received"`
	Duplicates int           `json:"duplicates"`
	Missing    int           `json:"missing"`
	Dropped    int64         `json:"dropped,omitempty"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	OpsPerSec  float64       `json:"ops_per_sec"`
	Ring       *ring.Stats   `json:"ring_stats,omitempty"`
	Error      string        `json:"error,omitempty"`
	OK         bool          `json:"ok"`
}

// queue is the common shape of every FIFO-ish structure under test.
type queue interface {
	tryPush(v int) error
	tryPop() (int, error)
}

type ringQueue struct{ r *ring.Ring[int] }

func (q ringQueue) tryPush(v int) error  { return q.r.TryPush(v) }
func (q ringQueue) tryPop() (int, error) { return q.r.TryPop() }

type cellQueue struct{ c *cell.Cell[int] }

func (q cellQueue) tryPush(v int) error {
	err := q.c.TrySet(v)
	if errors.Is(err, state.ErrInitialized) {
		return state.Failure(state.Initialized, v, false, state.ErrFull)
	}
	return err
}

func (q cellQueue) tryPop() (int, error) {
	v, ok, err := q.c.TryTake()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, state.Failure(state.Uninitialized, struct{}{}, false, state.ErrEmpty)
	}
	return v, nil
}

type optionQueue struct{ o *once.Option[int] }

func (q optionQueue) tryPush(v int) error {
	err := q.o.TrySet(v)
	if errors.Is(err, state.ErrInitialized) {
		return state.Failure(state.Initialized, v, false, state.ErrFull)
	}
	return err
}

func (q optionQueue) tryPop() (int, error) {
	v, ok, err := q.o.TryTake()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, state.Failure(state.Uninitialized, struct{}{}, false, state.ErrEmpty)
	}
	return v, nil
}

type arrayQueue struct{ a *array.Array[int] }

func (q arrayQueue) tryPush(v int) error {
	_, err := q.a.Push(v)
	return err
}

func (q arrayQueue) tryPop() (int, error) {
	v, ok := q.a.Pop()
	if !ok {
		return 0, state.Failure(state.Uninitialized, struct{}{}, false, state.ErrEmpty)
	}
	return v, nil
}

// listQueue pushes a fresh node per value; the list is unbounded.
type listQueue struct{ l *linked.List[int] }

func (q listQueue) tryPush(v int) error {
	q.l.Push(linked.NewNodeWith(v))
	return nil
}

func (q listQueue) tryPop() (int, error) {
	n := q.l.Pop()
	if n == nil {
		return 0, state.Failure(state.Uninitialized, struct{}{}, false, state.ErrEmpty)
	}
	v, ok, err := n.Cell().Take()
	if err == nil && !ok {
		err = state.Failure(state.Uninitialized, struct{}{}, false, state.ErrUninitialized)
	}
	return v, err
}

type mpmcQueue struct {
	tx mpmc.Sender[int]
	rx mpmc.Receiver[int]
}

func (q mpmcQueue) tryPush(v int) error  { return q.tx.TrySend(v) }
func (q mpmcQueue) tryPop() (int, error) { return q.rx.TryRecv() }

type spscQueue struct {
	tx *spsc.Sender[int]
	rx *spsc.Receiver[int]
}

func (q spscQueue) tryPush(v int) error  { return q.tx.Send(v) }
func (q spscQueue) tryPop() (int, error) { return q.rx.Recv() }

// runStructure dispatches one run by structure name.
func runStructure(ctx context.Context, cfg Config, name string, log zerolog.Logger) Result {
	log = log.With().Str("structure", name).Logger()
	log.Info().
		Int("producers", cfg.Producers).
		Int("consumers", cfg.Consumers).
		Int("items", cfg.Items).
		Int("capacity", cfg.Capacity).
		Msg("starting run")

	var res Result
	switch name {
	case "ring":
		r := ring.New[int](cfg.Capacity, ring.WithHopLimit(cfg.HopLimit), ring.WithStats(true))
		res = runQueue(ctx, cfg, ringQueue{r})
		st := r.Stats()
		res.Ring = &st
	case "mpmc":
		m := mpmc.New[int](cfg.Capacity, ring.WithHopLimit(cfg.HopLimit), ring.WithStats(true))
		res = runQueue(ctx, cfg, mpmcQueue{m.Sender(), m.Receiver()})
		st := m.Stats()
		res.Ring = &st
	case "cell":
		res = runQueue(ctx, cfg, cellQueue{cell.New[int]()})
	case "option":
		res = runQueue(ctx, cfg, optionQueue{once.NewOption[int]()})
	case "array":
		res = runQueue(ctx, cfg, arrayQueue{array.New[int](cfg.Capacity)})
	case "list":
		res = runQueue(ctx, cfg, listQueue{linked.New[int]()})
	case "spsc":
		q := spsc.New[int](cfg.Capacity)
		tx, _ := q.TakeSender()
		rx, _ := q.TakeReceiver()
		one := cfg
		one.Producers, one.Consumers = 1, 1
		res = runQueue(ctx, one, spscQueue{tx, rx})
		tx.Close()
		rx.Close()
	case "pool":
		res = runPool(ctx, cfg)
	case "pubsub":
		res = runPubSub(ctx, cfg)
	default:
		res = Result{Error: fmt.Sprintf("unknown structure %q", name)}
	}
	res.Structure = name

	ev := log.Info()
	if !res.OK {
		ev = log.Error()
	}
	ev.Int64("received", res.Received).
		Int("duplicates", res.Duplicates).
		Int("missing", res.Missing).
		Dur("elapsed", res.Elapsed).
		Str("error", res.Error).
		Bool("ok", res.OK).
		Msg("run finished")
	return res
}

// retryable reports whether a failed attempt should simply be repeated:
// transient failures always, and wait (full or empty) while peers catch up.
func retryable(err, wait error) bool {
	return state.IsTransient(err) || errors.Is(err, wait)
}

// shake occasionally yields to vary the interleaving between runs.
func shake() {
	if fastrand.Uint32n(64) == 0 {
		runtime.Gosched()
	}
}

var backoff = spin.Backoff{Base: 1, Max: 16}

func runQueue(ctx context.Context, cfg Config, q queue) Result {
	res := Result{Producers: cfg.Producers, Consumers: cfg.Consumers, Items: cfg.Items}
	seen := make([]atomic.Int32, cfg.Items)
	var received atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	start := time.Now()

	per := (cfg.Items + cfg.Producers - 1) / cfg.Producers
	for p := 0; p < cfg.Producers; p++ {
		from, to := p*per, min((p+1)*per, cfg.Items)
		g.Go(func() error {
			for i := from; i < to; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				shake()
				for attempt := 1; ; attempt++ {
					err := q.tryPush(i)
					if err == nil {
						break
					}
					if !retryable(err, state.ErrFull) {
						return fmt.Errorf("push %d: %w", i, err)
					}
					if err := ctx.Err(); err != nil {
						return err
					}
					backoff.Spin(attempt)
				}
			}
			return nil
		})
	}
	for c := 0; c < cfg.Consumers; c++ {
		g.Go(func() error {
			for attempt := 1; received.Load() < int64(cfg.Items); {
				v, err := q.tryPop()
				if err != nil {
					if !retryable(err, state.ErrEmpty) {
						return fmt.Errorf("pop: %w", err)
					}
					if err := ctx.Err(); err != nil {
						return err
					}
					backoff.Spin(attempt)
					attempt++
					continue
				}
				attempt = 1
				if v < 0 || v >= cfg.Items {
					return fmt.Errorf("pop: out-of-range value %d", v)
				}
				seen[v].Add(1)
				received.Add(1)
			}
			return nil
		})
	}

	err := g.Wait()
	res.Elapsed = time.Since(start)
	res.Received = received.Load()
	for i := range seen {
		switch n := seen[i].Load(); {
		case n == 0:
			res.Missing++
		case n > 1:
			res.Duplicates += int(n - 1)
		}
	}
	return finish(res, err)
}

// runPool has every producer cycle handles through a pool: insert, check the
// handle is occupied, remove and compare.
func runPool(ctx context.Context, cfg Config) Result {
	res := Result{Producers: cfg.Producers, Items: cfg.Items}
	p := pool.New[int](cfg.Capacity)
	var received, mismatched atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	start := time.Now()
	per := (cfg.Items + cfg.Producers - 1) / cfg.Producers
	for w := 0; w < cfg.Producers; w++ {
		from, to := w*per, min((w+1)*per, cfg.Items)
		g.Go(func() error {
			for i := from; i < to; i++ {
				shake()
				var h int
				for attempt := 1; ; attempt++ {
					var err error
					if h, err = p.Insert(i); err == nil {
						break
					}
					if !retryable(err, state.ErrFull) {
						return fmt.Errorf("insert %d: %w", i, err)
					}
					if err := ctx.Err(); err != nil {
						return err
					}
					backoff.Spin(attempt)
				}
				if !p.Slot(h).IsSome() {
					mismatched.Add(1)
				}
				v, ok, err := p.Remove(h)
				if err != nil {
					return fmt.Errorf("remove %d: %w", h, err)
				}
				if !ok || v != i {
					mismatched.Add(1)
					continue
				}
				received.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	res.Elapsed = time.Since(start)
	res.Received = received.Load()
	res.Missing = cfg.Items - int(res.Received)
	res.Duplicates = int(mismatched.Load())
	return finish(res, err)
}

// runPubSub has one publisher fan Items values out to Consumers subscribers.
// Subscribers whose ring is full miss values, so loss is reported as dropped;
// a subscriber seeing a value twice or out of order fails the run.
func runPubSub(ctx context.Context, cfg Config) Result {
	res := Result{Producers: 1, Consumers: cfg.Consumers, Items: cfg.Items}
	p := pubsub.New[int](cfg.Consumers, cfg.Capacity, true)
	subs := make([]*pubsub.Subscriber[int], cfg.Consumers)
	for i := range subs {
		s, err := p.Subscribe()
		if err != nil {
			res.Error = err.Error()
			return res
		}
		subs[i] = s
	}

	var (
		received, disorder, delivered atomic.Int64
		published                     atomic.Bool
	)
	g, ctx := errgroup.WithContext(ctx)
	start := time.Now()
	g.Go(func() error {
		defer published.Store(true)
		for i := 0; i < cfg.Items; i++ {
			shake()
			delivered.Add(int64(p.Send(i)))
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		return nil
	})
	for _, s := range subs {
		g.Go(func() error {
			defer s.Close()
			last := -1
			for attempt := 1; ; {
				done := published.Load()
				v, err := s.TryRecv()
				if err != nil {
					if !retryable(err, state.ErrEmpty) {
						return fmt.Errorf("recv: %w", err)
					}
					if done {
						return nil
					}
					if err := ctx.Err(); err != nil {
						return err
					}
					backoff.Spin(attempt)
					attempt++
					continue
				}
				attempt = 1
				if v <= last {
					disorder.Add(1)
				}
				last = v
				received.Add(1)
			}
		})
	}
	err := g.Wait()
	res.Elapsed = time.Since(start)
	res.Received = received.Load()
	res.Duplicates = int(disorder.Load())
	res.Dropped = int64(cfg.Items*cfg.Consumers) - delivered.Load()
	if res.Received != delivered.Load() {
		res.Missing = int(delivered.Load() - res.Received)
	}
	return finish(res, err)
}

func finish(res Result, err error) Result {
	if err != nil {
		res.Error = err.Error()
	}
	if secs := res.Elapsed.Seconds(); secs > 0 {
		res.OpsPerSec = float64(res.Received) / secs
	}
	res.OK = err == nil && res.Duplicates == 0 && res.Missing == 0
	return res
}
