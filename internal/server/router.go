// Package server exposes decks over HTTP: JSON control endpoints and a
// websocket stream of rendered PCM.
package server

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	scaler "github.com/tphakala/go-audio-scaler"
	"github.com/tphakala/go-audio-scaler/internal/deck"
	"github.com/tphakala/go-audio-scaler/internal/readahead"
)

const (
	streamWriteTimeout = 5 * time.Second
	wsBufferSize       = 4096
)

// Server handles the control API.
type Server struct {
	registry *Registry
	hub      *Hub
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New creates a Server over registry and hub.
func New(registry *Registry, hub *Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		registry: registry,
		hub:      hub,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsBufferSize,
			WriteBufferSize: wsBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.logger))

	router.GET("/healthz", s.health)

	decks := router.Group("/decks")
	decks.GET("", s.listDecks)
	decks.GET("/:id", s.withDeck(s.getDeck))
	decks.PUT("/:id/params", s.withDeck(s.putParams))
	decks.POST("/:id/seek", s.withDeck(s.postSeek))
	decks.POST("/:id/loop", s.withDeck(s.postLoop))
	decks.DELETE("/:id/loop", s.withDeck(s.deleteLoop))
	decks.GET("/:id/stream", s.withDeck(s.stream))

	return router
}

type deckHandler func(c *gin.Context, d *deck.Deck)

func (s *Server) withDeck(h deckHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, err := uuid.Parse(id); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deck id"})
			return
		}
		d, ok := s.registry.Get(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "deck not found"})
			return
		}
		h(c, d)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "decks": s.registry.Len()})
}

func (s *Server) listDecks(c *gin.Context) {
	c.JSON(http.StatusOK, s.registry.Snapshots())
}

func (s *Server) getDeck(c *gin.Context, d *deck.Deck) {
	c.JSON(http.StatusOK, d.Snapshot())
}

// paramsRequest changes tempo and pitch. Omitted fields keep their value;
// semitones, when given, replaces pitch.
type paramsRequest struct {
	Tempo     *float64 `json:"tempo"`
	Pitch     *float64 `json:"pitch"`
	Semitones *float64 `json:"semitones"`
}

func (s *Server) putParams(c *gin.Context, d *deck.Deck) {
	var req paramsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, v := range []*float64{req.Tempo, req.Pitch, req.Semitones} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "values must be finite"})
			return
		}
	}

	current := d.Params()
	tempo, pitch := current.TempoRatio, current.PitchRatio
	if req.Tempo != nil {
		tempo = *req.Tempo
	}
	if req.Pitch != nil {
		pitch = *req.Pitch
	}
	if req.Semitones != nil {
		pitch = scaler.PitchRatioFromSemitones(*req.Semitones)
	}
	d.SetParams(tempo, pitch)

	s.logger.Info("deck params changed",
		zap.String("deck", d.ID().String()),
		zap.Float64("tempo", d.Params().TempoRatio),
		zap.Float64("pitch", d.Params().PitchRatio))
	c.JSON(http.StatusOK, d.Params())
}

type seekRequest struct {
	Frame   *int     `json:"frame"`
	Seconds *float64 `json:"seconds"`
}

func (s *Server) postSeek(c *gin.Context, d *deck.Deck) {
	var req seekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var err error
	switch {
	case req.Frame != nil:
		err = d.Seek(*req.Frame)
	case req.Seconds != nil && *req.Seconds >= 0 && !math.IsInf(*req.Seconds, 0):
		err = d.SeekTime(time.Duration(*req.Seconds * float64(time.Second)))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "frame or non-negative seconds required"})
		return
	}

	if err != nil {
		s.commandError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

type loopRequest struct {
	Start *int `json:"start" binding:"required"`
	End   *int `json:"end" binding:"required"`
}

func (s *Server) postLoop(c *gin.Context, d *deck.Deck) {
	var req loopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := d.SetLoop(*req.Start, *req.End); err != nil {
		s.commandError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) deleteLoop(c *gin.Context, d *deck.Deck) {
	if err := d.ClearLoop(); err != nil {
		s.commandError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) commandError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, readahead.ErrInvalidLoop):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, deck.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// stream upgrades to a websocket and sends every rendered block as one
// binary message of little-endian float32 samples.
func (s *Server) stream(c *gin.Context, d *deck.Deck) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	id := d.ID().String()
	blocks, unsubscribe := s.hub.Subscribe(id)
	defer unsubscribe()

	s.logger.Info("stream opened", zap.String("deck", id), zap.String("client_ip", c.ClientIP()))

	// Reading is needed to notice the peer closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			s.logger.Info("stream closed", zap.String("deck", id))
			return
		case payload, ok := <-blocks:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
				s.logger.Debug("stream write failed", zap.String("deck", id), zap.Error(err))
				return
			}
		}
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
