package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/alvesdmateus/base-images/internal/builder"
	"github.com/alvesdmateus/base-images/internal/builder/registry"
	"github.com/alvesdmateus/base-images/internal/builder/strategies"
	"github.com/alvesdmateus/base-images/internal/definitions"
	"github.com/alvesdmateus/base-images/internal/observability"
	"github.com/alvesdmateus/base-images/internal/revision"
	"github.com/alvesdmateus/base-images/internal/source"
	"github.com/alvesdmateus/base-images/internal/state"
	"github.com/alvesdmateus/base-images/pkg/config"
	"github.com/alvesdmateus/base-images/pkg/database"
)

// Open wires an orchestrator against the real docker engine, the git
// checkout under cfg.Builder.RootDir and the optional history database. The
// caller must Close it to release the engine handle.
func Open(ctx context.Context, cfg *config.Config, reporter Reporter, out, errOut io.Writer) (o *Orchestrator, err error) {
	var closers []func() error
	defer func() {
		if err != nil {
			closeAll(closers)
		}
	}()

	engine, err := builder.NewEngine(ctx, builder.EngineConfig{Host: cfg.Docker.Host})
	if err != nil {
		return nil, err
	}
	closers = append(closers, engine.Close)

	strategy, err := strategies.NewStrategyFactory(engine, strategies.Output{Out: out, Err: errOut}).
		CreateStrategy(strategies.StrategyTypeDocker)
	if err != nil {
		return nil, fmt.Errorf("failed to create build strategy: %w", err)
	}

	publisher, err := registry.NewPublisher(engine, registry.Config{
		ServerAddress: cfg.Registry.Server,
		Username:      cfg.Registry.Username,
		Password:      cfg.Registry.Password,
	}, out, errOut)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	tracer, err := observability.NewTracer(ctx, observability.TracingConfig{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Insecure:       cfg.Tracing.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	closers = append(closers, func() error { return tracer.Shutdown(context.Background()) })

	var history HistoryRecorder
	if cfg.History.Enabled {
		db, err := OpenHistory(cfg.History)
		if err != nil {
			return nil, fmt.Errorf("failed to open build history: %w", err)
		}
		closers = append(closers, func() error { return database.Close(db) })
		history = state.NewRepository(db)
	}

	o = New(Deps{
		Resolver: definitions.NewResolver(cfg.Builder.RootDir, cfg.Builder.TemplatesDir),
		Specs: definitions.NewTemplateResolver(definitions.TemplateResolverConfig{
			Root:           cfg.Builder.RootDir,
			TemplatesDir:   cfg.Builder.TemplatesDir,
			DescriptorFile: cfg.Builder.DescriptorFile,
			BuildFile:      cfg.Builder.BuildFile,
		}, source.NewGitSource(cfg.Builder.RootDir)),
		Builder:   strategy,
		Publisher: publisher,
		Revisions: revision.NewTracker(),
		History:   history,
		Metrics:   observability.NewMetrics(cfg.Metrics.Namespace),
		Tracer:    tracer,
		Reporter:  reporter,
		Out:       out,
		Logger:    log.Logger,
	})
	o.closers = closers
	o.metricsTextfile = cfg.Metrics.Textfile

	return o, nil
}

// Close releases everything Open acquired, in reverse order
func (o *Orchestrator) Close() error {
	closers := o.closers
	o.closers = nil
	return closeAll(closers)
}

func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
