package httptransport

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"

	"storyteller-server-go/internal/platform/config"
	"storyteller-server-go/internal/platform/logging"
)

// Options configures the HTTP router builder.
type Options struct {
	Config *config.Config
	Logger *logging.Logger
	// StaticRoot is the directory of synthesized artifacts, served under
	// /static so cached references stay stable.
	StaticRoot string
}

// Router bundles the gin engine with the root route group.
type Router struct {
	Engine *gin.Engine
	Root   *gin.RouterGroup
}

// Build constructs a gin engine pre-configured with recovery, logging, CORS
// and artifact serving.
func Build(opts Options) (*Router, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("http router requires config")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger
	}

	if opts.Config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware(logger))

	engine.SetTrustedProxies([]string{"0.0.0.0"})

	engine.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
		},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if opts.StaticRoot != "" {
		engine.Use(static.Serve("/static", static.LocalFile(opts.StaticRoot, false)))
	}

	return &Router{
		Engine: engine,
		Root:   engine.Group(""),
	}, nil
}

func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		logger.InfoTag("HTTP", "%s %s -> %d (%s)",
			c.Request.Method,
			c.Request.URL.Path,
			status,
			duration,
		)
	}
}
