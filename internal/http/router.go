package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/marketing-image-engine/internal/http/handlers"
	httpMW "github.com/yungbote/marketing-image-engine/internal/http/middleware"
	"github.com/yungbote/marketing-image-engine/internal/observability"
	"github.com/yungbote/marketing-image-engine/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	ImageHandler  *httpH.MarketingImageHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		if cfg.ImageHandler != nil {
			h := cfg.ImageHandler
			api.POST("/marketing-images", h.Generate)
			api.GET("/marketing-images", h.List)
			api.GET("/marketing-images/:id", h.Get)
			api.GET("/marketing-images/:id/events", h.History)
			api.POST("/marketing-images/:id/review", h.SubmitForReview)
			api.POST("/marketing-images/:id/approval", h.SetApprovalStatus)
			api.POST("/marketing-images/:id/resubmit", h.Resubmit)
			api.PATCH("/marketing-images/:id/metadata", h.ChangeMetadata)
			api.DELETE("/marketing-images/:id", h.Remove)
			api.GET("/marketing-image-events", h.EventsByKind)
		}
	}

	return r
}
