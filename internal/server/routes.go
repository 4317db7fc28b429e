package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/san-kum/galtonsim/internal/analysis"
	"github.com/san-kum/galtonsim/internal/config"
	"github.com/san-kum/galtonsim/internal/galton"
)

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.log), corsMiddleware())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", s.health)
		v1.GET("/snapshot", s.getSnapshot)
		v1.GET("/comparison", s.getComparison)
		v1.GET("/errors", s.getErrors)
		v1.GET("/expected", getExpected)
		v1.GET("/config", s.getConfig)
		v1.PUT("/config", s.putConfig)
		v1.POST("/control/:action", s.control)
		v1.GET("/stream", s.stream)
	}
	return router
}

func (s *Server) health(c *gin.Context) {
	s.mu.Lock()
	phase := s.clock.Phase()
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "galtonsim",
		"phase":   phase,
		"clients": s.hub.Len(),
		"uptime":  time.Since(s.started).String(),
	})
}

func (s *Server) getSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) getComparison(c *gin.Context) {
	s.mu.Lock()
	cmp := s.clock.Comparison()
	s.mu.Unlock()
	c.JSON(http.StatusOK, cmp)
}

func (s *Server) getErrors(c *gin.Context) {
	s.mu.Lock()
	errs := s.clock.Errors()
	s.mu.Unlock()

	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	c.JSON(http.StatusOK, gin.H{"errors": out})
}

type expectedQuery struct {
	Rows      int     `form:"rows" binding:"required,min=1,max=10000"`
	Bias      float64 `form:"bias" binding:"min=-1,max=1"`
	Threshold int     `form:"threshold" binding:"min=0"`
}

// getExpected reports the theoretical distribution of an arbitrary board
// without touching the running one.
func getExpected(c *gin.Context) {
	var q expectedQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if q.Threshold == 0 {
		q.Threshold = galton.DefaultNormalThreshold
	}

	cmp := analysis.NewComparer(q.Rows, galton.BiasProbability(q.Bias), q.Threshold)
	c.JSON(http.StatusOK, gin.H{
		"rows":     q.Rows,
		"p":        galton.BiasProbability(q.Bias),
		"method":   cmp.Method(),
		"mean":     cmp.Mean(),
		"std_dev":  cmp.StdDev(),
		"expected": cmp.Expected(),
	})
}

func (s *Server) getConfig(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"config": s.cfg, "staged": s.staged})
}

// putConfig stages a config for the next reset. The body is merged over the
// current config, so partial documents are accepted. With ?apply=true the
// board is reset straight away.
func (s *Server) putConfig(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.Clone()
	if s.staged != nil {
		next = s.staged.Clone()
	}
	if err := c.ShouldBindJSON(next); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// The listener and stream rate are fixed for the life of the process.
	next.Serve = s.cfg.Serve

	if err := next.Validate(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if err := s.clock.Configure(next.Engine()); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	s.staged = next
	s.log.Info().Int("rows", next.Board.RowCount).Float64("bias", next.Board.HorizontalBias).Msg("config staged")

	if c.Query("apply") == "true" {
		s.reset()
		c.JSON(http.StatusOK, gin.H{"config": s.cfg, "snapshot": s.clock.Snapshot()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"staged": next})
}

// reset applies any staged config. Callers hold mu.
func (s *Server) reset() {
	s.clock.Reset()
	if s.staged == nil {
		return
	}
	changed := s.staged.Run.Dt != s.cfg.Run.Dt
	s.cfg = s.staged
	s.staged = nil
	if changed {
		select {
		case s.retime <- struct{}{}:
		default:
		}
	}
}

func (s *Server) control(c *gin.Context) {
	s.mu.Lock()
	var err error
	switch action := c.Param("action"); action {
	case "start":
		err = s.clock.Start()
	case "pause":
		err = s.clock.Pause()
	case "resume":
		err = s.clock.Resume()
	case "toggle":
		err = s.clock.Toggle()
	case "reset":
		s.reset()
	default:
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown action " + action})
		return
	}
	snap := s.clock.Snapshot()
	s.mu.Unlock()

	switch {
	case errors.Is(err, galton.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "phase": snap.Phase})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.Publish()
	c.JSON(http.StatusOK, snap)
}

func (s *Server) stream(c *gin.Context) {
	first := Message{Type: "snapshot", Data: s.snapshot()}
	if err := s.hub.Serve(s.ctx, c.Writer, c.Request, &first); err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
	}
}

// Staged reports the config waiting for the next reset, if any.
func (s *Server) Staged() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staged == nil {
		return nil
	}
	return s.staged.Clone()
}
