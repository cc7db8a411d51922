package pipeline

import (
	"context"
	"sync"
	"time"

	"authsignal/internal/assemble"
	"authsignal/internal/enrich"
	"authsignal/internal/extract"
	inputredis "authsignal/internal/input/redis"
	"authsignal/internal/logger"
	"authsignal/internal/metrics"
	"authsignal/internal/notify"
	"authsignal/internal/output/signaljson"
	"authsignal/internal/rules"
	"authsignal/pkg/models"
)

// Stream consumes raw log lines from Redis and emits one signal per
// event. There is no windowing state: cross-event patterns degrade to
// per-event visibility, so every signal can be produced independently.
type Stream struct {
	consumer      *inputredis.Consumer
	engine        rules.Engine
	writer        *signaljson.Writer
	collab        Collaborators
	workers       int
	batchSize     int
	flushInterval time.Duration
}

// NewStream creates an online pipeline over a Redis line queue.
func NewStream(consumer *inputredis.Consumer, engine rules.Engine, writer *signaljson.Writer, collab Collaborators, workers, batchSize int, flushInterval time.Duration) *Stream {
	if engine == nil {
		engine = &rules.NoopEngine{}
	}
	if collab.Enricher == nil {
		collab.Enricher = enrich.Noop{}
	}
	return &Stream{
		consumer:      consumer,
		engine:        engine,
		writer:        writer,
		collab:        collab,
		workers:       workers,
		batchSize:     batchSize,
		flushInterval: flushInterval,
	}
}

// Run starts the stream loop and blocks until the context is cancelled.
func (s *Stream) Run(ctx context.Context) error {
	logger.Infof("stream pipeline started")

	if s.workers <= 0 {
		s.workers = 8
	}
	if s.batchSize <= 0 {
		s.batchSize = 100
	}
	if s.flushInterval <= 0 {
		s.flushInterval = 2 * time.Second
	}

	lineCh := make(chan []byte, s.workers*4)
	sigCh := make(chan *models.Signal, s.workers*4)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.readLoop(ctx, lineCh)
		close(lineCh)
	}()

	var workerWg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		workerWg.Add(1)
		go func() {
			defer wg.Done()
			defer workerWg.Done()
			s.workerLoop(ctx, lineCh, sigCh)
		}()
	}

	go func() {
		workerWg.Wait()
		close(sigCh)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop(ctx, sigCh)
	}()

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Close releases pipeline resources.
func (s *Stream) Close() error {
	if s.writer != nil {
		if err := s.writer.Close(); err != nil {
			logger.Errorf("failed to close signal writer: %v", err)
		}
	}
	if s.consumer != nil {
		return s.consumer.Close()
	}
	return nil
}

func (s *Stream) readLoop(ctx context.Context, out chan<- []byte) {
	for {
		payload, err := s.consumer.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("failed to pop redis line: %v", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if payload == nil {
			continue
		}
		select {
		case out <- payload:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Stream) workerLoop(ctx context.Context, in <-chan []byte, out chan<- *models.Signal) {
	for payload := range in {
		metrics.LinesRead.WithLabelValues("redis").Inc()
		ev := extract.Extract(string(payload))
		if ev == nil {
			metrics.LinesDropped.WithLabelValues("redis").Inc()
			continue
		}
		ev.Detections = s.engine.Apply(ev)
		metrics.EventsExtracted.WithLabelValues(string(ev.Type)).Inc()

		sig := assemble.FromOnlineEvent(ev)
		if sig == nil {
			continue
		}
		if res := s.collab.Enricher.Enrich(ctx, s.collab.TenantID, sig); res.OK {
			enrich.Apply(sig, res.Value)
		}
		metrics.SignalsEmitted.WithLabelValues(string(sig.Type)).Inc()
		select {
		case out <- sig:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Stream) writeLoop(ctx context.Context, in <-chan *models.Signal) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	var batch []*models.Signal

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.writer.WriteSignals(batch); err != nil {
			logger.Errorf("failed to write signals: %v", err)
		}
		s.dispatchBatch(ctx, batch)
		batch = nil
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-ticker.C:
			flush()
		case sig, ok := <-in:
			if !ok {
				flush()
				return
			}
			batch = append(batch, sig)
			if len(batch) >= s.batchSize {
				flush()
			}
		}
	}
}

func (s *Stream) dispatchBatch(ctx context.Context, batch []*models.Signal) {
	for _, st := range s.collab.Stores {
		if err := st.Ingest(ctx, s.collab.TenantID, batch); err != nil {
			metrics.CollaboratorFailures.WithLabelValues(st.Name()).Inc()
			logger.Warnf("%s ingest failed: %v", st.Name(), err)
		}
	}
	for _, sig := range batch {
		s.collab.Enricher.Index(ctx, s.collab.TenantID, sig)
		if s.collab.Notifier != nil && notify.ShouldNotifySignal(sig) {
			if err := s.collab.Notifier.NotifySignal(ctx, sig); err != nil {
				metrics.CollaboratorFailures.WithLabelValues("notify").Inc()
				logger.Warnf("notification failed for %s: %v", sig.ID, err)
			}
		}
	}
}
