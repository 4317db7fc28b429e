// Package server exposes a running board over HTTP and streams its frames
// to websocket clients.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/san-kum/galtonsim/internal/config"
	"github.com/san-kum/galtonsim/internal/galton"
	"github.com/san-kum/galtonsim/internal/metrics"
	"github.com/san-kum/galtonsim/internal/sim"
)

const shutdownTimeout = 5 * time.Second

// Server owns one clock. Every access to it goes through mu.
type Server struct {
	mu     sync.Mutex
	clock  *sim.Clock
	cfg    *config.Config
	staged *config.Config

	// retime wakes drive when a reset changed dt.
	retime chan struct{}

	hub     *Hub
	router  *gin.Engine
	log     zerolog.Logger
	started time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg *config.Config, log zerolog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clock, err := sim.New(cfg.Engine(), log)
	if err != nil {
		return nil, err
	}
	for _, m := range metrics.Standard() {
		clock.AddMetric(m)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		clock:   clock,
		cfg:     cfg.Clone(),
		retime:  make(chan struct{}, 1),
		hub:     NewHub(log),
		log:     log.With().Str("component", "server").Logger(),
		started: time.Now(),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.router }
func (s *Server) Hub() *Hub             { return s.hub }

// Step advances the clock by one tick of the configured dt and tells stream
// clients when the run completes.
func (s *Server) Step() galton.Snapshot {
	s.mu.Lock()
	before := s.clock.Phase()
	snap := s.clock.Tick(s.cfg.Run.Dt)
	var done *Message
	if before == galton.Running && snap.Phase == galton.Complete {
		done = &Message{Type: "complete", Data: s.clock.Comparison()}
	}
	s.mu.Unlock()

	if done != nil {
		s.hub.Broadcast(*done)
	}
	return snap
}

// Apply validates cfg and resets the board onto it. The listener and stream
// rate stay as they are.
func (s *Server) Apply(cfg *config.Config) error {
	s.mu.Lock()
	next := cfg.Clone()
	next.Serve = s.cfg.Serve
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.clock.Configure(next.Engine()); err != nil {
		s.mu.Unlock()
		return err
	}
	s.staged = next
	s.reset()
	s.mu.Unlock()

	s.log.Info().Int("rows", next.Board.RowCount).Msg("config applied")
	s.Publish()
	return nil
}

// Publish sends the current snapshot to every stream client.
func (s *Server) Publish() {
	s.hub.Broadcast(Message{Type: "snapshot", Data: s.snapshot()})
}

func (s *Server) snapshot() galton.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Snapshot()
}

// Run serves HTTP on the configured address and drives the clock in real
// time until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.cancel()

	srv := &http.Server{
		Addr:              s.cfg.Serve.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	go s.drive(ctx)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	s.cancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// StepPeriod is the wall time between two ticks of the current config.
func (s *Server) StepPeriod() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Run.StepPeriod()
}

// drive ticks the clock every dt of wall time and publishes at the stream
// rate. The step ticker follows dt across resets.
func (s *Server) drive(ctx context.Context) {
	s.mu.Lock()
	publish := s.cfg.Serve.Period()
	s.mu.Unlock()

	step := time.NewTicker(s.StepPeriod())
	stream := time.NewTicker(publish)
	defer step.Stop()
	defer stream.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.retime:
			period := s.StepPeriod()
			step.Reset(period)
			s.log.Debug().Dur("period", period).Msg("step ticker re-armed")
		case <-step.C:
			s.Step()
		case <-stream.C:
			if s.hub.Len() > 0 {
				s.Publish()
			}
		}
	}
}
