// Package httpapi exposes the orchestrator as a JSON API for a chat bot.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bnema/taskdump/internal/application"
	"github.com/bnema/taskdump/internal/domain"
	"github.com/bnema/taskdump/internal/logging"
	"github.com/bnema/taskdump/internal/ports"
	"github.com/gin-gonic/gin"
)

const (
	DefaultDedupeTTL = 10 * time.Minute

	retryHeader   = "X-Slack-Retry-Num"
	eventIDHeader = "X-Event-Id"
	maxBodyBytes  = 64 << 10
)

// Service is the slice of the orchestrator the API drives.
type Service interface {
	Organize(ctx context.Context, cmd application.OrganizeCommand) (application.OrganizeResult, error)
	Accept(ctx context.Context, cmd application.AcceptCommand) (application.AcceptResult, error)
	Breakdown(ctx context.Context, cmd application.BreakdownCommand) (application.BreakdownResult, error)
	Resume(ctx context.Context, userID domain.UserID, channelID domain.ChannelID) (domain.Session, error)
	Discard(ctx context.Context, userID domain.UserID, channelID domain.ChannelID) (domain.Session, error)
	CorrectLastTaskTime(ctx context.Context, cmd application.CorrectTimeCommand) (application.CorrectTimeResult, error)
}

var _ Service = (*application.Orchestrator)(nil)

type Options struct {
	Logger    *logging.Logger
	Clock     ports.Clock
	DedupeTTL time.Duration
}

type Server struct {
	service Service
	logger  *logging.Logger
	dedupe  *deduper
	router  *gin.Engine
}

func NewServer(service Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	clock := opts.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	ttl := opts.DedupeTTL
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}

	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		service: service,
		logger:  logger,
		dedupe:  newDeduper(ttl, clock),
		router:  router,
	}

	router.GET("/healthz", s.handleHealth)

	api := router.Group("/v1")
	api.Use(s.limitBody, s.suppressRetries)
	{
		api.POST("/organize", s.handleOrganize)
		api.POST("/accept", s.handleAccept)
		api.POST("/breakdown", s.handleBreakdown)
		api.POST("/resume", s.handleResume)
		api.POST("/discard", s.handleDiscard)
		api.POST("/correct-time", s.handleCorrectTime)
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on addr until ctx is done, then drains for up to five
// seconds.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("http api listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("http api shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	c.Next()
}

// suppressRetries acknowledges chat platform redeliveries without acting
// on them twice.
func (s *Server) suppressRetries(c *gin.Context) {
	if c.GetHeader(retryHeader) != "" {
		c.AbortWithStatusJSON(http.StatusOK, gin.H{"ignored": "retry"})
		return
	}
	if eventID := c.GetHeader(eventIDHeader); eventID != "" && s.dedupe.seen(eventID) {
		s.logger.Debug("duplicate event dropped", "event_id", eventID)
		c.AbortWithStatusJSON(http.StatusOK, gin.H{"ignored": "duplicate"})
		return
	}
	c.Next()
}
