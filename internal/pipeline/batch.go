// Package pipeline drives log lines through extraction, windowing,
// assembly and the best-effort collaborator calls around them.
package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"authsignal/internal/assemble"
	"authsignal/internal/enrich"
	"authsignal/internal/extract"
	"authsignal/internal/logger"
	"authsignal/internal/metrics"
	"authsignal/internal/notify"
	"authsignal/internal/output/signaljson"
	"authsignal/internal/rules"
	"authsignal/internal/store"
	"authsignal/internal/summary"
	"authsignal/internal/window"
	"authsignal/pkg/models"
)

// maxLineSize bounds a single log line; syslog lines never come close.
const maxLineSize = 1 << 20

// Collaborators bundles the optional external services around the core.
// Every call into them is best-effort: a failure is logged and the
// deterministic output is emitted unchanged.
type Collaborators struct {
	TenantID string
	Enricher enrich.Enricher
	Stores   []store.Store
	Notifier *notify.Notifier
}

// Batch processes whole log sources into signals and per-source
// summaries.
type Batch struct {
	engine  rules.Engine
	writer  *signaljson.Writer
	collab  Collaborators
	workers int
}

// NewBatch creates a batch pipeline.
func NewBatch(engine rules.Engine, writer *signaljson.Writer, collab Collaborators, workers int) *Batch {
	if engine == nil {
		engine = &rules.NoopEngine{}
	}
	if collab.Enricher == nil {
		collab.Enricher = enrich.Noop{}
	}
	if workers <= 0 {
		workers = 4
	}
	return &Batch{engine: engine, writer: writer, collab: collab, workers: workers}
}

// RunFiles processes each named source and collects the per-source
// results for fleet rollup. An unreadable source is fatal for that source
// only; the remaining sources still run and the error comes back to the
// caller.
func (b *Batch) RunFiles(ctx context.Context, paths []string) ([]*models.SourceSummary, []*models.Signal, error) {
	var summaries []*models.SourceSummary
	var signals []*models.Signal
	var failed []string
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			logger.Errorf("source %s unreadable: %v", path, err)
			failed = append(failed, path)
			continue
		}
		sum, sigs, err := b.RunSource(ctx, path, f)
		f.Close()
		if err != nil {
			logger.Errorf("source %s failed: %v", path, err)
			failed = append(failed, path)
			continue
		}
		if sum != nil {
			summaries = append(summaries, sum)
			signals = append(signals, sigs...)
		}
	}
	if len(failed) > 0 {
		return summaries, signals, fmt.Errorf("%d of %d sources failed: %v", len(failed), len(paths), failed)
	}
	return summaries, signals, nil
}

// RunSource processes one source's lines end to end: extract, window,
// assemble, emit signals and the weekly summary. The summary line is only
// written when the source produced at least one signal.
func (b *Batch) RunSource(ctx context.Context, name string, r io.Reader) (*models.SourceSummary, []*models.Signal, error) {
	agg, err := b.aggregate(ctx, name, r)
	if err != nil {
		return nil, nil, err
	}

	signals := b.assembleSignals(agg)
	for _, sig := range signals {
		metrics.SignalsEmitted.WithLabelValues(string(sig.Type)).Inc()
		for _, tag := range sig.Detections {
			metrics.DetectionMatches.WithLabelValues(tag.ID).Inc()
		}
	}

	b.enrichSignals(ctx, signals)

	if err := b.writer.WriteSignals(signals); err != nil {
		return nil, nil, fmt.Errorf("write signals for %s: %w", name, err)
	}

	b.dispatch(ctx, signals)

	if len(signals) == 0 {
		logger.Infof("source %s produced no signals", name)
		return nil, nil, nil
	}

	sum := summary.Summarize(signals)
	if err := b.writer.WriteSourceSummary(sum); err != nil {
		return nil, nil, fmt.Errorf("write summary for %s: %w", name, err)
	}
	logger.Infof("source %s: %d signals, weekly tier %s", name, len(signals), sum.OverallRisk)
	return sum, signals, nil
}

// aggregate reads all lines and folds extracted events into sharded
// aggregators. Shards are keyed by (user, host), so each window lands on
// exactly one shard and the final merge reproduces a sequential pass.
func (b *Batch) aggregate(ctx context.Context, name string, r io.Reader) (*window.Aggregator, error) {
	shards := make([]*window.Aggregator, b.workers)
	chans := make([]chan *models.ParsedEvent, b.workers)
	var wg sync.WaitGroup
	for i := range shards {
		shards[i] = window.NewAggregator()
		chans[i] = make(chan *models.ParsedEvent, 256)
		wg.Add(1)
		go func(agg *window.Aggregator, in <-chan *models.ParsedEvent) {
			defer wg.Done()
			for ev := range in {
				agg.Fold(ev)
			}
		}(shards[i], chans[i])
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	var scanErr error
	for scanner.Scan() {
		if ctx.Err() != nil {
			scanErr = ctx.Err()
			break
		}
		metrics.LinesRead.WithLabelValues(name).Inc()
		ev := extract.Extract(scanner.Text())
		if ev == nil {
			// Lines that match no rule are noise, not errors.
			metrics.LinesDropped.WithLabelValues(name).Inc()
			continue
		}
		ev.Detections = b.engine.Apply(ev)
		metrics.EventsExtracted.WithLabelValues(string(ev.Type)).Inc()
		chans[window.ShardFor(ev, b.workers)] <- ev
	}
	for _, ch := range chans {
		close(ch)
	}
	wg.Wait()

	if scanErr == nil {
		scanErr = scanner.Err()
	}
	if scanErr != nil {
		return nil, fmt.Errorf("read %s: %w", name, scanErr)
	}

	merged := shards[0]
	for _, shard := range shards[1:] {
		merged.Merge(shard)
	}
	return merged, nil
}

func (b *Batch) assembleSignals(agg *window.Aggregator) []*models.Signal {
	var out []*models.Signal
	for _, acc := range agg.Finalize() {
		if sig := assemble.FromWindow(acc); sig != nil {
			out = append(out, sig)
		}
	}
	for _, ev := range agg.IAMEvents() {
		if sig := assemble.FromIAMEvent(ev); sig != nil {
			out = append(out, sig)
		}
	}
	return out
}

// enrichSignals consults the enrichment collaborator after deterministic
// narratives exist. A failure means the deterministic text stands.
func (b *Batch) enrichSignals(ctx context.Context, signals []*models.Signal) {
	for _, sig := range signals {
		res := b.collab.Enricher.Enrich(ctx, b.collab.TenantID, sig)
		if !res.OK {
			logger.Debugf("enrichment unavailable for %s: %s", sig.ID, res.Reason)
			continue
		}
		enrich.Apply(sig, res.Value)
	}
}

// dispatch runs the best-effort collaborator calls for emitted signals:
// store ingestion, similarity indexing and priority notifications.
func (b *Batch) dispatch(ctx context.Context, signals []*models.Signal) {
	if len(signals) == 0 {
		return
	}
	for _, st := range b.collab.Stores {
		if err := st.Ingest(ctx, b.collab.TenantID, signals); err != nil {
			metrics.CollaboratorFailures.WithLabelValues(st.Name()).Inc()
			logger.Warnf("%s ingest failed: %v", st.Name(), err)
		}
	}
	for _, sig := range signals {
		b.collab.Enricher.Index(ctx, b.collab.TenantID, sig)
		if b.collab.Notifier != nil && notify.ShouldNotifySignal(sig) {
			if err := b.collab.Notifier.NotifySignal(ctx, sig); err != nil {
				metrics.CollaboratorFailures.WithLabelValues("notify").Inc()
				logger.Warnf("notification failed for %s: %v", sig.ID, err)
			}
		}
	}
}
