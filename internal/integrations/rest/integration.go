package rest

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/nerrad567/gray-logic-hub/internal/coordinator"
	"github.com/nerrad567/gray-logic-hub/internal/entity"
	"github.com/nerrad567/gray-logic-hub/internal/entry"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
)

// Integration sets up REST/JSON devices.
type Integration struct {
	sink     entity.Sink
	observer coordinator.RefreshObserver
	logger   *logging.Logger
	clock    clock.WithDelayedExecution
}

// Option configures an Integration.
type Option func(*Integration)

// WithObserver receives refresh events from every coordinator.
func WithObserver(obs coordinator.RefreshObserver) Option {
	return func(i *Integration) {
		i.observer = obs
	}
}

// WithLogger sets the logger. Coordinators log with entry and coordinator fields.
func WithLogger(l *logging.Logger) Option {
	return func(i *Integration) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithClock sets the clock coordinators schedule on.
func WithClock(c clock.WithDelayedExecution) Option {
	return func(i *Integration) {
		i.clock = c
	}
}

// New creates the integration. Entities write through sink.
func New(sink entity.Sink, opts ...Option) *Integration {
	i := &Integration{
		sink:   sink,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Setup creates one coordinator per category, runs their first refresh
// concurrently and attaches the configured sensors.
//
// Hooks run on unload in reverse: entities detach, the reboot group closes,
// coordinators shut down, then the HTTP client closes.
func (i *Integration) Setup(ctx context.Context, e *entry.Entry) error {
	cfg := e.Data
	log := i.logger.With("entry_id", e.ID)

	client, err := NewClient(cfg)
	if err != nil {
		return err
	}
	e.OnUnload(client.Close)

	group := coordinator.NewRebootGroup(e.ID, e.Signals(), log)

	coords := make([]*coordinator.Coordinator[[]byte], 0, len(cfg.Categories))
	for _, cat := range cfg.Categories {
		c, err := i.newCoordinator(e.ID, cfg, cat, client, log)
		if err != nil {
			group.Close()
			return err
		}
		e.AddCoordinator(c)
		group.Add(c)
		coords = append(coords, c)
	}
	e.OnUnload(group.Close)

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range coords {
		g.Go(func() error {
			return c.FirstRefresh(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for idx, cat := range cfg.Categories {
		for _, s := range cat.Sensors {
			id := entity.ID("sensor", e.ID+"_"+s.Key)
			ent := entity.NewCoordinatorEntity(id, entity.Description{
				Key:         s.Key,
				Name:        s.Name,
				Path:        s.Path,
				Unit:        s.Unit,
				DeviceClass: s.DeviceClass,
			}, coords[idx], entity.GJSONValue(s.Path), i.sink)
			ent.Attach()
			e.OnUnload(ent.Detach)
		}
	}

	if cfg.RebootPath != "" {
		e.SetRebooter(&rebooter{client: client, group: group, logger: log})
	}
	return nil
}

func (i *Integration) newCoordinator(entryID string, cfg config.EntryConfig, cat config.CategoryConfig, client *Client, log *logging.Logger) (*coordinator.Coordinator[[]byte], error) {
	opts := []coordinator.Option{
		coordinator.WithLogger(log.With("coordinator", cat.Name)),
		coordinator.WithEntryID(entryID),
		coordinator.WithFetchTimeout(cfg.Timeout),
		coordinator.WithObserver(i.observer),
	}
	if i.clock != nil {
		opts = append(opts, coordinator.WithClock(i.clock))
	}
	if cat.SkipUnchanged {
		opts = append(opts, coordinator.WithSkipUnchanged())
	}
	if cfg.Debounce.Cooldown > 0 {
		opts = append(opts, coordinator.WithRequestDebounce(cfg.Debounce.Cooldown, cfg.Debounce.Immediate))
	}
	if cfg.Retry.Enabled {
		opts = append(opts, coordinator.WithRetry(coordinator.RetryPolicy{
			Timeout:     cfg.Timeout,
			Multiplier:  cfg.Retry.Multiplier,
			MaxFailures: cfg.Retry.MaxFailures,
		}))
	}

	path := cat.Path
	c, err := coordinator.New(cat.Name, cat.Interval, func(ctx context.Context) ([]byte, error) {
		return client.Fetch(ctx, path)
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", entryID, err)
	}
	return c, nil
}

// rebooter restarts the device and tracks the restart through the reboot group.
type rebooter struct {
	client *Client
	group  *coordinator.RebootGroup
	logger *logging.Logger
}

func (r *rebooter) Reboot(ctx context.Context) error {
	if err := r.client.Reboot(ctx); err != nil {
		return fmt.Errorf("rebooting device: %w", err)
	}
	r.logger.Info("device reboot requested")
	r.group.RequestReboot()
	return nil
}
