package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hyp3rd/otlplog/pkg/exporter"
	"github.com/hyp3rd/otlplog/pkg/logging"
	"github.com/hyp3rd/otlplog/pkg/queue"
	"github.com/hyp3rd/otlplog/pkg/record"
)

type flushRequest struct {
	target uint64
	done   chan error
}

type stopRequest struct {
	ctx  context.Context
	done chan error
}

// scheduler owns the exporter and the ticker. Only its goroutine drains the queue.
type scheduler struct {
	queue         *queue.Queue[record.LogRecord]
	exporter      exporter.Exporter
	logger        logging.Adapter
	batchSize     int
	delay         time.Duration
	exportTimeout time.Duration
	newTicker     tickerFactory
	onResult      func(exporter.Result)

	state     atomic.Int32
	abandoned atomic.Int64
	signal    chan struct{}
	flushes   chan flushRequest
	stops     chan stopRequest
	done      chan struct{}
}

func (s *scheduler) start() {
	s.signal = make(chan struct{}, 1)
	s.flushes = make(chan flushRequest)
	s.stops = make(chan stopRequest)
	s.done = make(chan struct{})

	go s.run()
}

func (s *scheduler) run() {
	defer close(s.done)

	tick := s.newTicker(s.delay)
	defer tick.Stop()

	for {
		select {
		case <-tick.C():
			s.cycle()
		case <-s.signal:
			s.cycle()
		case req := <-s.flushes:
			req.done <- s.flushTo(req.target)
		case req := <-s.stops:
			tick.Stop()
			req.done <- s.drainForStop(req.ctx)

			return
		}
	}
}

// wake nudges the scheduler without blocking; a pending nudge absorbs the new one.
func (s *scheduler) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// cycle exports one batch, and keeps going while a full batch is waiting.
// Once the queue is closed the remaining records belong to drainForStop.
func (s *scheduler) cycle() {
	for !s.queue.Closed() {
		s.setState(StateDraining)

		batch := s.queue.Drain(s.batchSize)
		if len(batch) == 0 {
			break
		}

		s.export(context.Background(), batch)

		if s.queue.Len() < s.batchSize {
			break
		}
	}

	s.setState(StateIdle)
}

// flushTo exports until every record accepted before target has left the queue.
// It gives up with ErrStopped when shutdown closes the queue midway.
func (s *scheduler) flushTo(target uint64) error {
	defer s.setState(StateIdle)

	for {
		head, _ := s.queue.Positions()
		if head >= target {
			return nil
		}

		if s.queue.Closed() {
			return ErrStopped
		}

		s.setState(StateDraining)

		batch := s.queue.Drain(s.batchSize)
		if len(batch) == 0 {
			return nil
		}

		s.export(context.Background(), batch)
	}
}

func (s *scheduler) drainForStop(ctx context.Context) error {
	s.setState(StateStopping)
	defer s.setState(StateStopped)

	for {
		if ctx.Err() != nil {
			leftover := len(s.queue.Drain(s.queue.Cap()))
			if leftover > 0 {
				s.abandoned.Add(int64(leftover))

				return ewrap.Wrapf(ctx.Err(), "shutdown deadline reached, %d records dropped", leftover)
			}

			return nil
		}

		batch := s.queue.Drain(s.batchSize)
		if len(batch) == 0 {
			return nil
		}

		s.export(ctx, batch)
	}
}

func (s *scheduler) export(parent context.Context, batch []record.LogRecord) {
	s.setState(StateExporting)

	ctx, cancel := context.WithTimeout(exporter.SuppressInstrumentation(parent), s.exportTimeout)
	defer cancel()

	res := s.safeExport(ctx, batch)
	if s.onResult != nil {
		s.onResult(res)
	}
}

// safeExport shields the scheduler goroutine from exporters that panic.
func (s *scheduler) safeExport(ctx context.Context, batch []record.LogRecord) (res exporter.Result) {
	defer func() {
		if recovered := recover(); recovered != nil {
			res = exporter.Result{Records: len(batch), Err: ewrap.Newf("exporter panicked: %v", recovered)}
			s.logger.Error(ctx, res.Err, "log export failed, batch dropped",
				attribute.Int("records", len(batch)))
		}
	}()

	return s.exporter.Export(ctx, batch)
}

// requestFlush blocks until the records accepted so far were exported or ctx ends.
// A caller that gives up leaves the flush running; records are never exported twice.
func (s *scheduler) requestFlush(ctx context.Context) error {
	_, tail := s.queue.Positions()
	req := flushRequest{target: tail, done: make(chan error, 1)}

	select {
	case s.flushes <- req:
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ewrap.Wrap(ctx.Err(), "force flush")
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ewrap.Wrap(ctx.Err(), "force flush")
	}
}

func (s *scheduler) stop(ctx context.Context) error {
	req := stopRequest{ctx: ctx, done: make(chan error, 1)}

	select {
	case s.stops <- req:
	case <-s.done:
		return nil
	case <-ctx.Done():
		// The scheduler is busy exporting; hand it the expired request so it
		// stops as soon as the current export returns.
		go func() {
			select {
			case s.stops <- req:
			case <-s.done:
			}
		}()

		return ewrap.Wrap(ctx.Err(), "stop scheduler")
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ewrap.Wrap(ctx.Err(), "stop scheduler")
	}
}

func (s *scheduler) setState(state State) {
	s.state.Store(int32(state))
}

func (s *scheduler) State() State {
	return State(s.state.Load())
}
