package app

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/contrib/static"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	ginprometheus "github.com/zsais/go-gin-prometheus"

	"github.com/edtechhub/kerkoapp/internal/logging"
)

func (a *App) initRouter() {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(gin.LoggerWithWriter(logging.Writer(log.InfoLevel)))
	router.Use(gin.CustomRecovery(a.recoveryHandler))
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(a.errorHandler)

	p := ginprometheus.NewPrometheus("gin")

	// roundabout setup of /metrics endpoint to avoid double-gzip of response
	router.Use(p.HandlerFunc())
	h := promhttp.InstrumentMetricHandler(prometheus.DefaultRegisterer, promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{DisableCompression: true}))

	router.GET(p.MetricsPath, func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	})

	if a.config.Debug {
		pprof.Register(router)
	}

	router.HTMLRender = a.templates
	router.NoRoute(a.notFoundHandler)

	router.GET("/", a.homeHandler)
	router.GET("/favicon.ico", a.ignoreHandler)
	router.GET("/version", a.versionHandler)
	router.GET("/healthcheck", a.healthCheckHandler)

	if lib := router.Group("/lib", a.clientHandler); lib != nil {
		lib.GET("/", a.searchHandler)
		lib.GET("/:id", a.itemHandler)

		corsCfg := cors.DefaultConfig()
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowMethods = []string{"GET", "OPTIONS"}

		if api := lib.Group("/api", cors.New(corsCfg)); api != nil {
			api.GET("/search", a.apiSearchHandler)
		}
	}

	router.Use(static.Serve(staticURLPrefix, static.LocalFile(a.config.Assets.StaticDir, false)))

	a.router = router
}
