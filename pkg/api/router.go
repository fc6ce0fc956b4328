// Package api serves the admin face authentication HTTP API.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrCodeEU/faceadmin/pkg/logging"
)

// DefaultMaxBodyBytes bounds request bodies when RouterConfig.MaxBodyBytes
// is zero.
const DefaultMaxBodyBytes = 32 << 20

// RouterConfig configures NewRouter.
type RouterConfig struct {
	Service       Service
	APIKey        string
	CORS          bool
	CameraTimeout time.Duration
	MaxBodyBytes  int64
}

// NewRouter builds the gin engine with every endpoint registered.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())
	if cfg.CORS {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, apiKeyHeader, requestIDHeader)
		r.Use(cors.New(corsCfg))
	}

	h := NewHandler(cfg.Service, cfg.CameraTimeout)

	r.GET("/api/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	v := r.Group("/api")
	v.Use(APIKeyMiddleware(cfg.APIKey))
	v.Use(BodyLimitMiddleware(maxBody))
	v.POST("/register", h.Register)
	v.POST("/authenticate", h.Authenticate)
	v.POST("/authenticate/camera", h.AuthenticateCamera)
	v.GET("/admins", h.ListAdmins)
	v.DELETE("/admin/:id", h.DeleteAdmin)
	v.POST("/detect", h.Detect)

	return r
}

// Run serves handler on addr until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("HTTP API listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("Shutting down HTTP API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
