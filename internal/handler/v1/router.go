package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wardflow/wardflow/internal/config"
	"github.com/wardflow/wardflow/internal/domain"
	"github.com/wardflow/wardflow/pkg/auth"
	"github.com/wardflow/wardflow/pkg/metrics"
)

type RouterDeps struct {
	Config     *config.Config
	Log        *zap.Logger
	Metrics    *metrics.Collector
	Verifier   *auth.Verifier
	Authorizer auth.Authorizer
	DB         *gorm.DB
	Admissions *AdmissionHandler
	Registry   *RegistryHandler
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	RegisterValidations()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(deps.Log))
	r.Use(MetricsMiddleware(deps.Metrics))
	r.Use(CORSMiddleware(deps.Config.CORS))

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := deps.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	api := r.Group("/api/v1")
	api.Use(AuthMiddleware(deps.Verifier))

	view := RequirePermission(deps.Authorizer, domain.ActionViewAdmissions)

	admissions := api.Group("/admissions")
	{
		admissions.GET("", view, deps.Admissions.List)
		admissions.GET("/:id", view, deps.Admissions.Get)
		admissions.POST("", RequirePermission(deps.Authorizer, domain.ActionAdmitPatient), deps.Admissions.Admit)
		admissions.PATCH("/:id", RequirePermission(deps.Authorizer, domain.ActionEditAdmission), deps.Admissions.Patch)
		admissions.DELETE("/:id", RequirePermission(deps.Authorizer, domain.ActionDeleteAdmission), deps.Admissions.Delete)
		admissions.POST("/:id/discharge", RequirePermission(deps.Authorizer, domain.ActionDischargePatient), deps.Admissions.Discharge)
		admissions.POST("/:id/shift-bed", RequirePermission(deps.Authorizer, domain.ActionShiftBed), deps.Admissions.ShiftBed)
	}

	api.GET("/beds", view, deps.Registry.ListBeds)
	api.GET("/occupancy", view, deps.Registry.Occupancy)
	api.GET("/patients/:id", view, deps.Registry.GetPatient)
	api.GET("/doctors", view, deps.Registry.ListDoctors)
	api.GET("/panels", view, deps.Registry.ListPanels)

	return r
}
