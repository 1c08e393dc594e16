package app

import (
	"fmt"

	"github.com/yungbote/marketing-image-engine/internal/commands"
	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
	"github.com/yungbote/marketing-image-engine/internal/integration"
	"github.com/yungbote/marketing-image-engine/internal/observability"
	"github.com/yungbote/marketing-image-engine/internal/platform/logger"
	"github.com/yungbote/marketing-image-engine/internal/services"
)

type Services struct {
	Events     *services.EventDispatcher
	Commands   *commands.Dispatcher
	Publishing services.PublishingService
	Driving    services.DrivingService
	Query      services.QueryService
	Redelivery *services.RedeliveryWorker
}

func wireServices(log *logger.Logger, cfg Config, metrics *observability.Metrics, imageFactory marketingimage.Factory, repos Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	// Driven side: every domain event kind must route to publication before
	// any command can run.
	locator := clients.Objects.Locator()
	events := services.NewEventDispatcher()
	publishing := services.NewPublishingService(
		log,
		integration.NewFactory(cfg.IntegrationEventPrefix, cfg.ServiceName, locator),
		clients.Publisher,
		metrics,
	)
	if err := services.RegisterPublishing(events, publishing); err != nil {
		return Services{}, fmt.Errorf("register publishing: %w", err)
	}
	events.Seal()
	if err := events.Require(marketingimage.EventKinds()...); err != nil {
		return Services{}, fmt.Errorf("event dispatcher: %w", err)
	}
	log.Debug("Event handlers registered", "kinds", events.Registered())

	deps := services.CoreDeps{
		Log:           log,
		Repo:          repos.Images,
		Events:        repos.Images,
		Dispatcher:    events,
		Factory:       imageFactory,
		Metrics:       metrics,
		OutboxTimeout: cfg.OutboxTimeout,

		DeferToSweep:       cfg.RedeliveryEnabled,
		MaxPublishAttempts: cfg.RedeliveryMaxAttempts,
	}
	cmds := commands.NewDispatcher()
	err := services.RegisterCommandServices(cmds,
		services.NewGenerateService(deps, clients.Generator, clients.Objects),
		services.NewModifyService(deps),
		services.NewApproveService(deps),
		services.NewRejectService(deps),
		services.NewRemoveService(deps, clients.Objects),
		services.NewResubmitService(deps),
		services.NewChangeMetadataService(deps, locator),
	)
	if err != nil {
		return Services{}, fmt.Errorf("register command services: %w", err)
	}
	cmds.Seal()
	if err := cmds.Require(commands.Kinds()...); err != nil {
		return Services{}, fmt.Errorf("command dispatcher: %w", err)
	}
	log.Debug("Command handlers registered", "kinds", cmds.Registered())

	var redelivery *services.RedeliveryWorker
	if cfg.RedeliveryEnabled {
		redelivery = services.NewRedeliveryWorker(log, repos.Images, events, metrics, services.RedeliveryConfig{
			Interval:    cfg.RedeliveryInterval,
			BatchSize:   cfg.RedeliveryBatchSize,
			MaxAttempts: cfg.RedeliveryMaxAttempts,
			Concurrency: cfg.RedeliveryConcurrency,
			MinAge:      cfg.RedeliveryMinAge,
		})
	}

	return Services{
		Events:     events,
		Commands:   cmds,
		Publishing: publishing,
		Driving:    services.NewDrivingService(log, commands.NewFactory(cfg.CommandPrefix, cfg.ServiceName), cmds),
		Query:      services.NewQueryService(log, repos.Images, repos.Images),
		Redelivery: redelivery,
	}, nil
}
