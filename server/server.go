// Package server exposes a read-only status API over the engine state.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"spiritual-shorts-pipeline/engine"
	"spiritual-shorts-pipeline/store"
)

const maxContentLimit = 100

// Server serves engine state and the content log as JSON
type Server struct {
	state  *engine.State
	store  store.Store
	Router *gin.Engine
}

// New builds the router; call Run to start listening
func New(state *engine.State, st store.Store) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{state: state, store: st, Router: router}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.Router.GET("/healthz", s.health)
	s.Router.GET("/stats", s.stats)
	s.Router.GET("/content", s.content)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"phase":  s.state.Phase(),
	})
}

func (s *Server) stats(c *gin.Context) {
	snap := s.state.Snapshot()
	pieces, err := s.store.ListContent(c.Request.Context(), 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load content log"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"engine":  snap,
		"content": store.Summarize(pieces),
	})
}

func (s *Server) content(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxContentLimit {
		limit = maxContentLimit
	}

	pieces, err := s.store.ListContent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load content log"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": pieces, "count": len(pieces)})
}

// Run serves on addr until ctx is done
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("[server] Status API listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
