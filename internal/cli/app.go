package cli

import (
	"log/slog"

	"github.com/roach88/strata/internal/canonical"
	"github.com/roach88/strata/internal/config"
	"github.com/roach88/strata/internal/connector"
	"github.com/roach88/strata/internal/drift"
	"github.com/roach88/strata/internal/mapping"
	"github.com/roach88/strata/internal/materialize"
	"github.com/roach88/strata/internal/store"
	"github.com/roach88/strata/internal/stream"
	"github.com/roach88/strata/internal/unify"
)

// app wires the engine's components for one command invocation.
type app struct {
	cfg       *config.Config
	store     *store.Store
	registry  *canonical.Registry
	mappings  *mapping.Store
	detector  *drift.Detector
	router    *drift.Router
	publisher *stream.Publisher
}

// openApp loads config, opens the database and wires the component graph.
func openApp(opts *RootOptions) (*app, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}
	if opts.Database != "" {
		cfg.DBPath = opts.Database
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	registry, err := canonical.NewRegistry()
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to build schema registry", err)
	}

	thresholds := cfg.DriftThresholds()
	mappings := mapping.NewStore(st, mapping.NewCache(cfg.CacheTTL()))
	detector := drift.NewDetector(st, drift.WithDetectorThresholds(thresholds))
	router := drift.NewRouter(st, mappings, drift.WithRouterThresholds(thresholds))
	publisher := stream.NewPublisher(st,
		stream.WithBatchSize(cfg.BatchSize),
		stream.WithMaxStreamLength(cfg.StreamCap),
	)

	return &app{
		cfg:       cfg,
		store:     st,
		registry:  registry,
		mappings:  mappings,
		detector:  detector,
		router:    router,
		publisher: publisher,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

func (a *app) pipeline() *connector.Pipeline {
	normalizer := connector.NewNormalizer(a.mappings, a.registry, a.detector, a.router)
	return connector.NewPipeline(normalizer, a.publisher, connector.NewHealthTracker())
}

func (a *app) materializer() *materialize.Engine {
	return materialize.NewEngine(a.store)
}

func (a *app) unifier() *unify.Unifier {
	return unify.NewUnifier(a.store)
}
