// Package remote exposes a websocket endpoint that a phone browser streams
// its DeviceMotion and DeviceOrientation events to. Opening the server root
// on the phone loads a sender page that does the streaming.
//
// Consent, when required, is a round trip: the server asks every connected
// client and the first answer for a sensor resolves all pending requests
// for it.
//
// Messages are JSON text frames {"t": type, "p": payload}:
//
//	phone -> server  motion       {"x","y","z","timestamp"}  m/s², ms
//	phone -> server  orientation  {"alpha","beta","gamma"}   degrees
//	phone -> server  permission   {"sensor","state"}         granted|denied|prompt
//	server -> phone  request_permission {"sensor"}           motion|orientation
package remote

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lixenwraith/gyro-particles/core"
	"github.com/lixenwraith/gyro-particles/sensor"
	"github.com/lixenwraith/gyro-particles/status"
)

// Config holds the endpoint settings
type Config struct {
	Listen string
	Path   string
	// RequireConsent makes both sources ask the phone before streaming
	RequireConsent bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
	ReadLimit    int64
}

// DefaultConfig returns development defaults
func DefaultConfig() Config {
	return Config{
		Listen:         ":8080",
		Path:           "/ws",
		RequireConsent: true,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		PingInterval:   25 * time.Second,
		ReadLimit:      1 << 16,
	}
}

// Server fans readings from any connected phone out to subscribers
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader

	motion      sensor.Feed[sensor.AccelerationReading]
	orientation sensor.Feed[sensor.OrientationReading]

	mu      sync.Mutex
	clients map[*client]struct{}
	waiters map[sensor.Kind][]chan sensor.Permission

	motionCount      *atomic.Int64
	orientationCount *atomic.Int64
	malformed        *atomic.Int64
	connected        *atomic.Int64
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewServer creates a server; reg may be nil
func NewServer(cfg Config, reg *status.Registry) *Server {
	if reg == nil {
		reg = status.NewRegistry()
	}
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			// Phones load the sender page from another origin during development
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:          make(map[*client]struct{}),
		waiters:          make(map[sensor.Kind][]chan sensor.Permission),
		motionCount:      reg.Counter(status.MotionReadings),
		orientationCount: reg.Counter(status.OrientationReadings),
		malformed:        reg.Counter(status.MalformedMessages),
		connected:        reg.Counter(status.ConnectedClients),
	}
}

// Motion returns the acceleration source backed by this server
func (s *Server) Motion() sensor.Source[sensor.AccelerationReading] {
	src := feedSource[sensor.AccelerationReading]{feed: &s.motion}
	if !s.cfg.RequireConsent {
		return src
	}
	return consentSource[sensor.AccelerationReading]{feedSource: src, s: s, kind: sensor.KindMotion}
}

// Orientation returns the orientation source backed by this server
func (s *Server) Orientation() sensor.Source[sensor.OrientationReading] {
	src := feedSource[sensor.OrientationReading]{feed: &s.orientation}
	if !s.cfg.RequireConsent {
		return src
	}
	return consentSource[sensor.OrientationReading]{feedSource: src, s: s, kind: sensor.KindOrientation}
}

type feedSource[T any] struct {
	feed *sensor.Feed[T]
}

func (f feedSource[T]) Subscribe(fn func(T)) func() {
	return f.feed.Subscribe(fn)
}

type consentSource[T any] struct {
	feedSource[T]
	s    *Server
	kind sensor.Kind
}

func (c consentSource[T]) RequestPermission(ctx context.Context) (sensor.Permission, error) {
	return c.s.requestPermission(ctx, c.kind)
}

// Handler serves the sender page at / and the websocket at Path
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.serveWS)
	if s.cfg.Path != "/" {
		mux.HandleFunc("GET /{$}", s.serveSender)
	}
	return mux
}

// ListenAndServe serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	core.Go(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.closeAll()
	})

	log.Printf("remote: listening on %s (ws endpoint: %s)", s.cfg.Listen, s.cfg.Path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("remote: upgrade: %v", err)
		return
	}
	c := &client{conn: conn}

	if s.cfg.ReadLimit > 0 {
		conn.SetReadLimit(s.cfg.ReadLimit)
	}
	s.extendDeadline(conn)
	conn.SetPongHandler(func(string) error {
		s.extendDeadline(conn)
		return nil
	})

	pending := s.register(c)
	log.Printf("remote: client %s connected", r.RemoteAddr)

	// Late joiners still get asked for outstanding consent
	for _, k := range pending {
		s.askPermission(c, k)
	}

	done := make(chan struct{})
	core.Go(func() { s.pingLoop(c, done) })

	s.readLoop(c)

	close(done)
	s.unregister(c)
	_ = conn.Close()
	log.Printf("remote: client %s disconnected", r.RemoteAddr)
}

func (s *Server) extendDeadline(conn *websocket.Conn) {
	if s.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}
}

func (s *Server) readLoop(c *client) {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("remote: read: %v", err)
			}
			return
		}
		s.extendDeadline(c.conn)
		if err := s.handleMessage(msg); err != nil {
			s.malformed.Add(1)
			log.Printf("remote: %v", err)
		}
	}
}

func (s *Server) handleMessage(msg []byte) error {
	env, err := DecodeEnvelope(msg)
	if err != nil {
		return err
	}

	switch env.T {
	case MsgMotion:
		p, err := DecodePayload[MotionPayload](env)
		if err != nil {
			return err
		}
		s.motionCount.Add(1)
		s.motion.Publish(p.Reading())

	case MsgOrientation:
		p, err := DecodePayload[OrientationPayload](env)
		if err != nil {
			return err
		}
		s.orientationCount.Add(1)
		s.orientation.Publish(p.Reading())

	case MsgPermission:
		p, err := DecodePayload[PermissionPayload](env)
		if err != nil {
			return err
		}
		kind, ok := parseSensor(p.Sensor)
		if !ok {
			return errors.New("permission for unknown sensor " + p.Sensor)
		}
		s.resolve(kind, sensor.ParsePermission(p.State))

	default:
		return errors.New("unknown message type " + env.T)
	}
	return nil
}

func (s *Server) pingLoop(c *client, done <-chan struct{}) {
	if s.cfg.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.write(c, websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) write(c *client, msgType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if s.cfg.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	return c.conn.WriteMessage(msgType, data)
}

// register adds c and returns the sensors with outstanding consent requests
func (s *Server) register(c *client) []sensor.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
	s.connected.Add(1)

	var pending []sensor.Kind
	for _, k := range []sensor.Kind{sensor.KindMotion, sensor.KindOrientation} {
		if len(s.waiters[k]) > 0 {
			pending = append(pending, k)
		}
	}
	return pending
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		s.connected.Add(-1)
	}
}

func (s *Server) snapshotClients() []*client {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		out = append(out, c)
	}
	return out
}

func (s *Server) closeAll() {
	for _, c := range s.snapshotClients() {
		_ = s.write(c, websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = c.conn.Close()
	}
}

// requestPermission blocks until a client answers for kind or ctx ends
// With no client connected the request waits for one to join
func (s *Server) requestPermission(ctx context.Context, kind sensor.Kind) (sensor.Permission, error) {
	ch := make(chan sensor.Permission, 1)

	s.mu.Lock()
	s.waiters[kind] = append(s.waiters[kind], ch)
	s.mu.Unlock()

	for _, c := range s.snapshotClients() {
		s.askPermission(c, kind)
	}

	select {
	case p := <-ch:
		return p, nil
	case <-ctx.Done():
		s.dropWaiter(kind, ch)
		return sensor.PermissionPrompt, ctx.Err()
	}
}

func (s *Server) askPermission(c *client, kind sensor.Kind) {
	msg, err := Encode(MsgRequestPermission, PermissionPayload{Sensor: sensorName(kind)})
	if err != nil {
		log.Printf("remote: %v", err)
		return
	}
	if err := s.write(c, websocket.TextMessage, msg); err != nil {
		log.Printf("remote: ask %s permission: %v", kind, err)
	}
}

func (s *Server) resolve(kind sensor.Kind, p sensor.Permission) {
	s.mu.Lock()
	ws := s.waiters[kind]
	delete(s.waiters, kind)
	s.mu.Unlock()

	log.Printf("remote: %s permission %s (%d waiting)", kind, p, len(ws))
	for _, ch := range ws {
		ch <- p
	}
}

func (s *Server) dropWaiter(kind sensor.Kind, ch chan sensor.Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.waiters[kind]
	for i, w := range ws {
		if w == ch {
			s.waiters[kind] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(s.waiters[kind]) == 0 {
		delete(s.waiters, kind)
	}
}
