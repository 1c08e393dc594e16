package app

import (
	"net"

	httpserver "github.com/yungbote/marketing-image-engine/internal/http"
	httpH "github.com/yungbote/marketing-image-engine/internal/http/handlers"
	"github.com/yungbote/marketing-image-engine/internal/observability"
	"github.com/yungbote/marketing-image-engine/internal/platform/logger"
)

type Handlers struct {
	Health *httpH.HealthHandler
	Image  *httpH.MarketingImageHandler
}

func wireHandlers(log *logger.Logger, services Services, clients Clients) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.HealthCheckFunc{}
	if clients.DB != nil {
		checks["database"] = clients.DB.Ping
	}
	if clients.Publisher != nil {
		checks["redis"] = clients.Publisher.Ping
	}
	return Handlers{
		Health: httpH.NewHealthHandler(checks),
		Image:  httpH.NewMarketingImageHandler(services.Driving, services.Query),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers) *httpserver.Server {
	return httpserver.NewServer(httpserver.RouterConfig{
		Log:           log,
		Metrics:       metrics,
		ServiceName:   cfg.ServiceName,
		CORSOrigins:   cfg.CORSOrigins,
		ImageHandler:  handlers.Image,
		HealthHandler: handlers.Health,
	}, net.JoinHostPort("", cfg.Port))
}
