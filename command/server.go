package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	// shutdownTimeout is the maximum duration allowed for a graceful shutdown.
	shutdownTimeout = time.Second * 5
	// readHeaderTimeout is the maximum duration allowed to read request headers.
	readHeaderTimeout = time.Second * 10
)

// ServerConfig represents the command webhook server configuration.
type ServerConfig struct {
	// Address is the listen address.
	Address string
	// Handle processes the provided command text of the provided subscriber and returns the reply.
	Handle func(ctx context.Context, subscriber string, text string) string
	// Dispatch sends the provided reply to the provided subscriber.
	Dispatch func(subscriber string, message string)
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ServerConfig) Validate() error {
	var errs error

	if cfg.Address == "" {
		errs = errors.Join(errs, fmt.Errorf("listen address cannot be an empty string"))
	}
	if cfg.Handle == nil {
		errs = errors.Join(errs, fmt.Errorf("handle function cannot be nil"))
	}
	if cfg.Dispatch == nil {
		errs = errors.Join(errs, fmt.Errorf("dispatch function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Server receives telegram webhook updates and replies to the commands they carry.
type Server struct {
	cfg    *ServerConfig
	router *gin.Engine
}

// NewServer initializes a new command webhook server.
func NewServer(cfg *ServerConfig) (*Server, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating server config: %w", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))

	s := &Server{
		cfg:    cfg,
		router: router,
	}
	s.routes()

	return s, nil
}

// requestLogger logs every request handled by the router.
func requestLogger(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug().Msgf("%s %s | %d | %v | %s", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}

func (s *Server) routes() {
	s.router.GET("/", s.home)
	s.router.GET("/keep-alive", s.keepAlive)
	s.router.POST("/webhook", s.webhook)
}

// Handler returns the http handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) home(c *gin.Context) {
	c.String(http.StatusOK, "ShadowFX Trading Bot - Operational")
}

func (s *Server) keepAlive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) webhook(c *gin.Context) {
	var update tgbotapi.Update
	err := c.ShouldBindJSON(&update)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid update"})
		return
	}

	// Updates without a text message are acknowledged and ignored.
	if update.Message == nil || update.Message.Chat == nil || update.Message.Text == "" {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	subscriber := strconv.FormatInt(update.Message.Chat.ID, 10)
	reply := s.cfg.Handle(c.Request.Context(), subscriber, update.Message.Text)
	s.cfg.Dispatch(subscriber, reply)

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Run serves webhook requests until the provided context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.cfg.Logger.Info().Msgf("command server listening on %s", s.cfg.Address)
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving commands: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutting down command server: %w", err)
	}

	return nil
}
