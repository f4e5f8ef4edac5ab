package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/edirooss/smokers/internal/http/handler"
	mw "github.com/edirooss/smokers/internal/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// startStatusServer serves the status API on addr until the returned stop
// function is called. An empty addr serves nothing.
func startStatusServer(log *zap.Logger, addr string, h *handler.StatusHandler) (stop func()) {
	if addr == "" {
		return func() {}
	}

	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = zap.NewStdLog(log.Named("gin")).Writer() // Configure Gin's logger to use Zap
	r := gin.New()
	r.Use(gin.Recovery())    // Recovery first (outermost)
	r.Use(mw.RequestID(log)) // request ID and request-scoped logger
	r.Use(mw.AccessLog(log.Named("http")))
	h.Register(r)

	httpsrv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info("running HTTP server", zap.String("addr", addr))
		if err := httpsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("status server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpsrv.Shutdown(ctx)
		log.Info("server closed")
	}
}
