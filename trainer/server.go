package trainer

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/zeu5/driving-rl/checkpoint"
	"github.com/zeu5/driving-rl/stats"
)

type ServerConfig struct {
	Addr           string
	CheckpointRoot string
	Experiment     string
	// StatsPath is the epoch statistics log summarized on /stats, optional
	StatsPath string
}

// Server exposes the checkpoints of an experiment over HTTP so that agents can pull the latest model
type Server struct {
	config ServerConfig
	server *http.Server
	logger zerolog.Logger
}

func NewServer(config ServerConfig, logger zerolog.Logger) *Server {
	s := &Server{
		config: config,
		logger: logger.With().Str("component", "trainer").Logger(),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	r.GET("/latest", s.handleLatest)
	r.GET("/checkpoints", s.handleCheckpoints)
	r.GET("/stats", s.handleStats)
	s.server = &http.Server{
		Addr:    config.Addr,
		Handler: r,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()
	s.logger.Info().Str("addr", s.config.Addr).Str("experiment", s.config.Experiment).Msg("serving checkpoints")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleLatest(c *gin.Context) {
	cp, err := checkpoint.ReadLatest(s.config.CheckpointRoot, s.config.Experiment)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNoCheckpoint) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no checkpoint yet"})
			return
		}
		s.logger.Error().Err(err).Msg("reading latest checkpoint")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read checkpoint"})
		return
	}
	c.JSON(http.StatusOK, cp)
}

func (s *Server) handleCheckpoints(c *gin.Context) {
	counts, err := checkpoint.List(s.config.CheckpointRoot, s.config.Experiment)
	if err != nil {
		s.logger.Error().Err(err).Msg("listing checkpoints")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list checkpoints"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"experiment": s.config.Experiment, "batch_counts": counts})
}

func (s *Server) handleStats(c *gin.Context) {
	if s.config.StatsPath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no statistics configured"})
		return
	}
	all, err := stats.ReadAll(s.config.StatsPath)
	if err != nil {
		s.logger.Error().Err(err).Msg("reading statistics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read statistics"})
		return
	}
	c.JSON(http.StatusOK, stats.Summarize(all))
}
