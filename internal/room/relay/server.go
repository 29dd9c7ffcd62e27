package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/ayoisaiah/respawn/internal/room"
)

// ServerConfig holds relay server settings.
type ServerConfig struct {
	Addr           string
	AllowOrigins   []string
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	FrameRate      rate.Limit
	FrameBurst     int
}

// DefaultServerConfig returns the settings used by `respawn relay`.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           ":8787",
		AllowOrigins:   []string{"*"},
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   25 * time.Second,
		MaxMessageSize: 64 * 1024,
		FrameRate:      20,
		FrameBurst:     40,
	}
}

// Server exposes an in-memory room store to relay clients.
type Server struct {
	store    *room.Memory
	router   *gin.Engine
	upgrader websocket.Upgrader
	cfg      ServerConfig
}

// NewServer returns a relay server backed by store.
func NewServer(store *room.Memory, cfg ServerConfig) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		store: store,
		cfg:   cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/rooms", s.createRoom)
		api.GET("/rooms/:id", s.getRoom)
	}

	r.GET("/ws/rooms/:id", s.serveRoom)

	s.router = r

	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("relay listening", slog.String("addr", s.cfg.Addr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func (s *Server) createRoom(c *gin.Context) {
	var req createRoomRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if req.RoomID == "" {
		req.RoomID = room.NewID()
	}

	if err := room.ValidateID(req.RoomID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	err := s.store.CreateRoom(c.Request.Context(), req.RoomID, req.Host)
	if errors.Is(err, room.ErrRoomExists) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	slog.Info("room created", slog.String("room", req.RoomID), slog.String("host", req.Host))

	c.JSON(http.StatusCreated, createRoomResponse{RoomID: req.RoomID})
}

func (s *Server) getRoom(c *gin.Context) {
	snap, err := s.store.Snapshot(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, snap)
}

func (s *Server) serveRoom(c *gin.Context) {
	roomID := c.Param("id")
	userID := c.Query("user")
	role := room.Role(c.DefaultQuery("role", string(room.Guest)))

	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user is required"})
		return
	}

	if ok, _ := s.store.RoomExists(c.Request.Context(), roomID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": room.ErrRoomNotFound.Error()})
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", slog.Any("error", err))
		return
	}

	conn := &serverConn{
		server:  s,
		ws:      ws,
		roomID:  roomID,
		userID:  userID,
		send:    make(chan Frame, 64),
		limiter: rate.NewLimiter(s.cfg.FrameRate, s.cfg.FrameBurst),
	}

	if err := conn.subscribe(role); err != nil {
		slog.Error("room subscription failed", slog.String("room", roomID), slog.Any("error", err))
		ws.Close()

		return
	}

	slog.Info(
		"participant connected",
		slog.String("room", roomID),
		slog.String("user", userID),
		slog.String("role", string(role)),
	)

	go conn.writePump()
	conn.readPump()
}

// serverConn is one participant socket.
type serverConn struct {
	server  *Server
	ws      *websocket.Conn
	limiter *rate.Limiter
	send    chan Frame
	roomID  string
	userID  string
	subs    []room.Subscription
	mu      sync.Mutex
	closed  bool
}

func (c *serverConn) subscribe(role room.Role) error {
	ctx := context.Background()
	store := c.server.store

	member, err := store.Join(ctx, c.roomID, room.Presence{
		UserID:    c.userID,
		Role:      role,
		Heartbeat: time.Now(),
	})
	if err != nil {
		return err
	}

	c.subs = append(c.subs, member)

	timers, err := store.WatchTimers(ctx, c.roomID, func(entries map[string]room.Entry) {
		c.push(Frame{Type: FrameTimers, Timers: entries, At: time.Now()})
	})
	if err != nil {
		c.unsubscribe()
		return err
	}

	c.subs = append(c.subs, timers)

	status, err := store.WatchStatus(ctx, c.roomID, func(st room.Status) {
		c.push(Frame{Type: FrameStatus, Status: &st, At: time.Now()})
	})
	if err != nil {
		c.unsubscribe()
		return err
	}

	c.subs = append(c.subs, status)

	return nil
}

func (c *serverConn) unsubscribe() {
	for _, sub := range c.subs {
		_ = sub.Close()
	}
}

// push queues a frame without blocking. A client that cannot keep up is
// disconnected.
func (c *serverConn) push(f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- f:
	default:
		slog.Warn("send buffer full, closing connection", slog.String("user", c.userID))
		c.closed = true
		close(c.send)
	}
}

func (c *serverConn) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *serverConn) writePump() {
	ticker := time.NewTicker(c.server.cfg.PingInterval)

	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.server.cfg.WriteTimeout))

			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.ws.WriteJSON(f); err != nil {
				slog.Debug("write failed", slog.String("user", c.userID), slog.Any("error", err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.server.cfg.WriteTimeout))

			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *serverConn) readPump() {
	defer func() {
		c.unsubscribe()
		c.shutdown()
		c.ws.Close()

		slog.Info(
			"participant disconnected",
			slog.String("room", c.roomID),
			slog.String("user", c.userID),
		)
	}()

	c.ws.SetReadLimit(c.server.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.server.cfg.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.server.cfg.ReadTimeout))
	})

	for {
		var f Frame

		if err := c.ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("unexpected close", slog.String("user", c.userID), slog.Any("error", err))
			}

			return
		}

		_ = c.ws.SetReadDeadline(time.Now().Add(c.server.cfg.ReadTimeout))

		if !c.limiter.Allow() {
			c.push(Frame{Type: FrameError, Error: "rate limit exceeded", At: time.Now()})
			continue
		}

		if err := c.handle(f); err != nil {
			c.push(Frame{Type: FrameError, Error: err.Error(), At: time.Now()})
		}
	}
}

func (c *serverConn) handle(f Frame) error {
	ctx := context.Background()
	store := c.server.store

	switch f.Type {
	case FramePutTimers:
		return store.PutTimers(ctx, c.roomID, f.Entries)
	case FrameDeleteTimers:
		return store.DeleteTimers(ctx, c.roomID, f.IDs)
	case FrameHeartbeat:
		at := f.At
		if at.IsZero() {
			at = time.Now()
		}

		return store.Heartbeat(ctx, c.roomID, c.userID, at)
	case FrameSetStatus:
		if f.Status == nil {
			return errors.New("status frame without status")
		}

		return store.SetStatus(ctx, c.roomID, *f.Status)
	}

	return errors.New("unknown frame type " + string(f.Type))
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		slog.Debug(
			"request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}
