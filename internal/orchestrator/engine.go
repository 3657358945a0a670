package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/alvesdmateus/base-images/internal/definitions"
	"github.com/alvesdmateus/base-images/internal/observability"
	"github.com/alvesdmateus/base-images/internal/state"
)

// Deps are the collaborators of an Orchestrator. History, Metrics, Tracer and
// Reporter are optional.
type Deps struct {
	Resolver  SetResolver
	Specs     SpecResolver
	Builder   Builder
	Publisher Publisher
	Revisions RevisionRecorder
	History   HistoryRecorder
	Metrics   *observability.Metrics
	Tracer    *observability.Tracer
	Reporter  Reporter
	// Out receives progress banners
	Out    io.Writer
	Logger zerolog.Logger
	// Now defaults to time.Now
	Now func() time.Time
}

// Orchestrator runs the select, resolve, build, publish and record pipeline
// over a batch of definitions, one at a time
type Orchestrator struct {
	resolver  SetResolver
	specs     SpecResolver
	builder   Builder
	publisher Publisher
	revisions RevisionRecorder
	history   HistoryRecorder
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	reporter  Reporter
	out       io.Writer
	logger    zerolog.Logger
	now       func() time.Time

	// set by Open
	closers         []func() error
	metricsTextfile string
}

// New creates an orchestrator from explicit collaborators
func New(deps Deps) *Orchestrator {
	o := &Orchestrator{
		resolver:  deps.Resolver,
		specs:     deps.Specs,
		builder:   deps.Builder,
		publisher: deps.Publisher,
		revisions: deps.Revisions,
		history:   deps.History,
		metrics:   deps.Metrics,
		tracer:    deps.Tracer,
		reporter:  deps.Reporter,
		out:       deps.Out,
		logger:    deps.Logger.With().Str("component", "orchestrator").Logger(),
		now:       deps.Now,
	}

	if o.metrics == nil {
		o.metrics = observability.NewMetrics("")
	}
	if o.tracer == nil {
		o.tracer = observability.NoopTracer()
	}
	if o.reporter == nil {
		o.reporter = ReporterFunc(func(string, Stage, error) {})
	}
	if o.out == nil {
		o.out = io.Discard
	}
	if o.now == nil {
		o.now = time.Now
	}

	return o
}

// Metrics returns the metrics the orchestrator records into
func (o *Orchestrator) Metrics() *observability.Metrics {
	return o.metrics
}

// Run processes the selected definitions in order. Selection and resolution of
// the whole batch happen before any build, so a bad selector or a definition
// without a build file aborts the run with no side effects. After that, a
// failing item is reported and the batch moves on. Only items that built
// successfully produce a BatchResult.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) ([]BatchResult, error) {
	if opts.Namespace == "" {
		return nil, errors.New("namespace must not be empty")
	}

	runID := uuid.New()
	logger := o.logger.With().Str("runID", runID.String()).Logger()
	defer o.writeMetrics(logger)

	if opts.Selector == definitions.Wildcard {
		fmt.Fprintln(o.out, "Building all Base images")
	}

	defs, err := o.resolver.Resolve(opts.Selector)
	if err != nil {
		return nil, fmt.Errorf("failed to select definitions: %w", err)
	}

	specs := make([]definitions.BuildSpec, 0, len(defs))
	for _, def := range defs {
		spec, err := o.specs.Resolve(def)
		if err != nil {
			o.metrics.RecordItem(string(StageResolve), observability.StatusFailed)
			return nil, fmt.Errorf("failed to resolve %s: %w", def.Name, err)
		}
		specs = append(specs, spec)
	}

	logger.Info().
		Str("selector", opts.Selector).
		Str("namespace", opts.Namespace).
		Int("definitions", len(specs)).
		Bool("buildOnly", opts.BuildOnly).
		Bool("noCache", opts.NoCache).
		Bool("autoRevision", opts.AutoRevision).
		Msg("Starting batch run")

	results := make([]BatchResult, 0, len(specs))
	for i, spec := range specs {
		if err := ctx.Err(); err != nil {
			logger.Warn().Err(err).Int("remaining", len(specs)-i).Msg("Batch run cancelled")
			return results, err
		}

		fmt.Fprintf(o.out, "\n\n------ Building %s (%d of %d) ------\n\n", spec.Definition.Name, i+1, len(specs))

		it := &item{
			runID:    runID,
			position: i + 1,
			total:    len(specs),
			spec:     spec,
			logger:   logger.With().Str("definition", spec.Definition.Name).Logger(),
		}
		if result, ok := o.process(ctx, it, opts); ok {
			results = append(results, result)
		}
	}

	logger.Info().
		Int("definitions", len(specs)).
		Int("built", len(results)).
		Msg("Batch run finished")

	return results, nil
}

// item carries the per-definition state through the pipeline
type item struct {
	runID    uuid.UUID
	position int
	total    int
	spec     definitions.BuildSpec
	logger   zerolog.Logger
	record   *state.BuildRecord
}

// process drives one definition from Resolved to Done. The returned bool is
// false when the build failed and no result exists.
func (o *Orchestrator) process(ctx context.Context, it *item, opts RunOptions) (BatchResult, bool) {
	def := it.spec.Definition

	ctx, span := o.tracer.StartSpan(ctx, "base-image "+def.Name,
		trace.WithAttributes(observability.ItemSpanAttributes(it.runID.String(), def.Name)...),
		trace.WithAttributes(
			observability.AttrBuildOnly.Bool(opts.BuildOnly),
			observability.AttrNoCache.Bool(opts.NoCache),
		),
	)
	defer span.End()

	it.record = &state.BuildRecord{
		RunID:      it.runID,
		Definition: def.Name,
		Namespace:  opts.Namespace,
		Repository: def.Name,
		BuildOnly:  opts.BuildOnly,
		StartedAt:  o.now(),
	}

	// Built
	it.logger.Info().
		Str("context", it.spec.ContextDir).
		Str("template", it.spec.Template).
		Strs("buildArgs", it.spec.BuildArgNames()).
		Msg("Building image")

	o.metrics.IncBuildsInProgress()
	buildStart := o.now()
	target, err := o.builder.Build(ctx, it.spec, opts.Namespace, def.Name, opts.NoCache)
	o.metrics.DecBuildsInProgress()
	if err != nil {
		o.metrics.RecordBuild(def.Name, observability.StatusFailed, o.since(buildStart))
		o.fail(ctx, it, StageBuild, err)
		return BatchResult{}, false
	}
	o.metrics.RecordBuild(def.Name, observability.StatusSuccess, o.since(buildStart))
	o.tracer.AddEvent(ctx, "built", observability.AttrImage.String(target.Reference()))

	it.record.Namespace = target.Namespace
	it.record.Repository = target.Repository
	it.record.Tag = target.Tag

	result := BatchResult{
		Definition: def.Name,
		Namespace:  target.Namespace,
		Repository: target.Repository,
		Tag:        target.Tag,
	}

	// PublishSkipped
	if opts.BuildOnly {
		fmt.Fprintln(o.out, "  - Skipping publish operation")
		result.BuildOnly = true
		o.finish(ctx, it)
		return result, true
	}

	// Published
	fmt.Fprintf(o.out, "\n\n------ Publishing %d of %d ------\n\n", it.position, it.total)

	publishStart := o.now()
	published, err := o.publisher.Publish(ctx, target)
	if err == nil && !published {
		err = fmt.Errorf("push of %s did not complete", target.Reference())
	}
	if err != nil {
		o.metrics.RecordPublish(def.Name, observability.StatusFailed, o.since(publishStart))
		o.fail(ctx, it, StagePublish, err)
		return result, true
	}
	o.metrics.RecordPublish(def.Name, observability.StatusSuccess, o.since(publishStart))
	o.tracer.AddEvent(ctx, "published", observability.AttrImage.String(target.Reference()))

	result.Published = true
	it.record.Published = true

	// RecordSkipped
	if !opts.AutoRevision {
		o.metrics.RecordRevision(observability.StatusSkipped)
		o.finish(ctx, it)
		return result, true
	}

	// Recorded
	path, err := o.revisions.RecordPublish(ctx, def, target.Namespace, target.Repository, target.Tag)
	if err != nil {
		o.metrics.RecordRevision(observability.StatusFailed)
		o.fail(ctx, it, StageRecord, err)
		return result, true
	}
	o.metrics.RecordRevision(observability.StatusSuccess)
	o.tracer.AddEvent(ctx, "recorded", observability.AttrRevision.String(path))

	result.RecordPath = path
	it.record.RecordPath = path

	o.finish(ctx, it)
	return result, true
}

// fail reports an item that stopped at stage
func (o *Orchestrator) fail(ctx context.Context, it *item, stage Stage, err error) {
	it.logger.Error().
		Err(err).
		Str("stage", string(stage)).
		Msg("Item failed")

	o.tracer.RecordError(ctx, err)
	trace.SpanFromContext(ctx).SetAttributes(
		observability.AttrStage.String(string(stage)),
		observability.AttrOutcome.String(observability.StatusFailed),
	)
	o.metrics.RecordItem(string(stage), observability.StatusFailed)
	o.reporter.ItemFailed(it.spec.Definition.Name, stage, err)

	it.record.Stage = string(stage)
	it.record.Status = state.StatusFailed
	it.record.Error = err.Error()
	o.recordHistory(ctx, it)
}

// finish marks an item Done
func (o *Orchestrator) finish(ctx context.Context, it *item) {
	it.logger.Info().
		Str("imageTag", fmt.Sprintf("%s/%s:%s", it.record.Namespace, it.record.Repository, it.record.Tag)).
		Bool("published", it.record.Published).
		Str("revisionRecord", it.record.RecordPath).
		Msg("Item completed")

	trace.SpanFromContext(ctx).SetAttributes(
		observability.AttrStage.String(string(StageDone)),
		observability.AttrOutcome.String(observability.StatusSuccess),
	)
	o.metrics.RecordItem(string(StageDone), observability.StatusSuccess)

	it.record.Stage = string(StageDone)
	it.record.Status = state.StatusSucceeded
	o.recordHistory(ctx, it)
}

// recordHistory stores the item outcome. A history failure never fails the item.
func (o *Orchestrator) recordHistory(ctx context.Context, it *item) {
	if o.history == nil {
		return
	}

	it.record.FinishedAt = o.now()
	if err := o.history.RecordItem(context.WithoutCancel(ctx), it.record); err != nil {
		it.logger.Warn().
			Err(err).
			Msg("Failed to write build history")
	}
}

func (o *Orchestrator) writeMetrics(logger zerolog.Logger) {
	if o.metricsTextfile == "" {
		return
	}
	if err := o.metrics.WriteTextfile(o.metricsTextfile); err != nil {
		logger.Warn().Err(err).Str("path", o.metricsTextfile).Msg("Failed to write metrics")
	}
}

func (o *Orchestrator) since(start time.Time) float64 {
	return o.now().Sub(start).Seconds()
}
