/*
 * Copyright (c) 2026, the Harmony project authors. All rights reserved.
 * See LICENSE for license information.
 */

package workserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"k8s.io/klog/v2"

	"github.com/nasa/harmony-core/pkg/config"
	"github.com/nasa/harmony-core/pkg/store"
)

// Server hosts the work protocol plus the lease reaper that returns orphaned
// items (pod died mid-work) to the ready queue.
type Server struct {
	store      store.Interface
	httpServer *http.Server
	reaper     *cron.Cron
}

func NewServer(s store.Interface, port int) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	handler := NewHandler(s)
	service := engine.Group("/service", authMiddleware())
	service.GET("/work", handler.GetWork)
	service.PUT("/work/:id", handler.UpdateWork)
	engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	return &Server{
		store: s,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: engine,
		},
		reaper: cron.New(),
	}
}

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	lease := time.Duration(config.GetWorkItemLeaseSecond()) * time.Second
	if _, err := s.reaper.AddFunc("@every 1m", func() {
		if _, err := s.store.ExpireLeases(context.Background(), lease); err != nil {
			klog.ErrorS(err, "failed to expire work item leases")
		}
	}); err != nil {
		return err
	}
	s.reaper.Start()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	klog.Infof("work server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop() {
	reaperCtx := s.reaper.Stop()
	<-reaperCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		klog.ErrorS(err, "failed to shut down work server")
	}
}

// authMiddleware enforces the shared-secret bearer token every worker
// deployment is provisioned with.
func authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := config.GetSharedSecretKey()
		if secret == "" {
			c.Next()
			return
		}
		auth := c.GetHeader("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if auth == "" || token == auth || token != secret {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid or missing bearer token"})
			return
		}
		c.Next()
	}
}
