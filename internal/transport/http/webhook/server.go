// Package webhook exposes the TradingView alert endpoint and a small
// read-only API over the position store.
package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"easymarket/internal/logger"
	"easymarket/internal/router"
	"easymarket/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

const maxBodyBytes = 1 << 20

// alertSchema validates the webhook body shape before anything touches it.
var alertSchema = jsonschema.MustCompileString("alert.json", `{
	"type": "object",
	"required": ["message"],
	"properties": {
		"message": {"type": "string", "minLength": 3}
	}
}`)

// SignalHandler is the processing capability behind the webhook.
type SignalHandler interface {
	Handle(ctx context.Context, sig types.Signal) (router.Result, error)
}

// PositionLister backs the read-only positions endpoint.
type PositionLister interface {
	ListPositions(ctx context.Context, botID int64, limit int) ([]types.Position, error)
}

type Server struct {
	addr   string
	engine *gin.Engine
}

type ServerConfig struct {
	Addr      string
	Handler   SignalHandler
	Positions PositionLister
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Handler == nil {
		return nil, errors.New("webhook server requires a signal handler")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.POST("/webhook/tradingview", handleAlert(cfg.Handler))
	if cfg.Positions != nil {
		engine.GET("/api/positions", handleListPositions(cfg.Positions))
	}
	return &Server{addr: cfg.Addr, engine: engine}, nil
}

// Engine exposes the gin engine for tests.
func (s *Server) Engine() http.Handler { return s.engine }

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func handleAlert(handler SignalHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		parsed := gjson.ParseBytes(body)
		if !parsed.IsObject() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON object"})
			return
		}
		if err := alertSchema.Validate(parsed.Value()); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert payload"})
			return
		}

		sig, err := types.ParseSignalMessage(parsed.Get("message").String())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := handler.Handle(c.Request.Context(), sig)
		if err != nil {
			if errors.Is(err, router.ErrBotNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			logger.Errorf("webhook: handling %s for bot %d failed: %v", sig.Kind, sig.BotID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "signal processing failed"})
			return
		}
		c.JSON(statusCode(res.Status), resultBody(res))
	}
}

func statusCode(status router.Status) int {
	switch status {
	case router.StatusCreated, router.StatusClosed:
		return http.StatusOK
	case router.StatusPending:
		return http.StatusAccepted
	case router.StatusRejected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func resultBody(res router.Result) gin.H {
	body := gin.H{"status": string(res.Status)}
	if res.OrderID != "" {
		body["order_id"] = res.OrderID
	}
	if res.Reason != "" {
		body["reason"] = res.Reason
	}
	if res.Position != nil {
		body["position_id"] = res.Position.ID
	}
	return body
}

func handleListPositions(store PositionLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		botID, err := strconv.ParseInt(c.Query("bot_id"), 10, 64)
		if err != nil || botID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bot_id query parameter required"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		positions, err := store.ListPositions(c.Request.Context(), botID, limit)
		if err != nil {
			logger.Errorf("webhook: listing positions for bot %d failed: %v", botID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "listing positions failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"positions": positions})
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		client := c.ClientIP()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			method, path, c.Writer.Status(), client, time.Since(start))
	}
}
