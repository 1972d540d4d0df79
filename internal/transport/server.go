package transport

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"massivegame/server/internal/logging"
)

const (
	// writeWait bounds how long a single outbound frame (or ping) may take
	// to flush before the connection is considered dead.
	writeWait = 10 * time.Second
	// pongWaitMultiplier sets the read deadline as a multiple of the ping
	// interval; a missed pong by this margin drops the connection.
	pongWaitMultiplier = 2
)

var localHosts = map[string]struct{}{
	"127.0.0.1": {},
	"localhost": {},
	"::1":       {},
}

// Config configures a Server's upgrade and keepalive behavior.
type Config struct {
	MaxPayloadBytes int64
	PingInterval    time.Duration
	MaxClients      int
	AllowedOrigins  []string
}

// Server upgrades inbound HTTP requests to websocket connections and drives
// their reader/writer pumps, notifying a Handler of the resulting Sender
// lifecycle. It is the reference transport adapter for spec.md §6.1; the
// simulation core depends only on the Sender/Handler contract in
// transport.go, never on this type directly.
type Server struct {
	cfg      Config
	log      *logging.Logger
	handler  Handler
	auth     Authenticator
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*Conn
	pending int
}

// NewServer builds a Server. auth may be nil, in which case every upgrade
// request is accepted and the peer id defaults to the connection's remote
// address.
func NewServer(cfg Config, log *logging.Logger, handler Handler, authn Authenticator) *Server {
	if log == nil {
		log = logging.L()
	}
	if authn == nil {
		authn = allowAllAuthenticator{}
	}
	s := &Server{
		cfg:     cfg,
		log:     log,
		handler: handler,
		auth:    authn,
		clients: make(map[string]*Conn),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: buildOriginChecker(log, cfg.AllowedOrigins)}
	return s
}

// ActiveClients reports the number of currently open connections.
func (s *Server) ActiveClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ServeHTTP upgrades the request to a websocket connection and spins up its
// reader/writer pumps. It implements http.Handler so it can be registered
// directly on a mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, reqLogger, _ := logging.WithTrace(r.Context(), logging.LoggerFromContext(r.Context()), logging.TraceIDFromContext(r.Context()))
	reqLogger = reqLogger.With(logging.String("remote_addr", r.RemoteAddr))
	r = r.WithContext(logging.ContextWithLogger(ctx, reqLogger))

	peerID := r.RemoteAddr
	subject, err := s.auth.Authenticate(r)
	if err != nil {
		reqLogger.Warn("rejecting websocket connection: authentication failed", logging.Error(err))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if strings.TrimSpace(subject) != "" {
		peerID = subject
		reqLogger = reqLogger.With(logging.String("peer_id", peerID))
	}

	if s.cfg.MaxClients > 0 {
		s.mu.Lock()
		if len(s.clients)+s.pending >= s.cfg.MaxClients {
			s.mu.Unlock()
			reqLogger.Warn("refusing websocket connection: client limit reached", logging.Int("max_clients", s.cfg.MaxClients))
			http.Error(w, "service unavailable: client limit reached", http.StatusServiceUnavailable)
			return
		}
		s.pending++
		s.mu.Unlock()
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.cfg.MaxClients > 0 {
			s.mu.Lock()
			if s.pending > 0 {
				s.pending--
			}
			s.mu.Unlock()
		}
		reqLogger.Error("websocket upgrade failed", logging.Error(err))
		return
	}

	connLog := reqLogger.With(logging.String("peer_id", peerID))
	c := newConn(peerID, wsConn, connLog)

	if s.cfg.MaxPayloadBytes > 0 {
		wsConn.SetReadLimit(s.cfg.MaxPayloadBytes)
	}

	pingInterval := s.cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	waitDuration := time.Duration(pongWaitMultiplier) * pingInterval
	if err := wsConn.SetReadDeadline(time.Now().Add(waitDuration)); err != nil {
		connLog.Error("failed to set initial read deadline", logging.Error(err))
		_ = wsConn.Close()
		if s.cfg.MaxClients > 0 {
			s.mu.Lock()
			if s.pending > 0 {
				s.pending--
			}
			s.mu.Unlock()
		}
		return
	}
	wsConn.SetPongHandler(func(string) error {
		return wsConn.SetReadDeadline(time.Now().Add(waitDuration))
	})

	s.mu.Lock()
	if s.cfg.MaxClients > 0 && s.pending > 0 {
		s.pending--
	}
	s.clients[peerID] = c
	s.mu.Unlock()

	if s.handler != nil {
		s.handler.OnOpen(peerID, c)
	}

	go s.writePump(c, pingInterval)
	s.readPump(c, waitDuration)
}

// readPump owns the connection's teardown: once ReadMessage returns an
// error for any reason (remote close, oversized frame, deadline, or this
// connection's own Close from the writer side), the peer is removed and
// the handler is notified exactly once.
func (s *Server) readPump(c *Conn, waitDuration time.Duration) {
	defer s.teardown(c)
	for {
		messageType, msg, err := c.conn.ReadMessage()
		if err != nil {
			logReadError(c.log, err)
			return
		}
		if err := c.conn.SetReadDeadline(time.Now().Add(waitDuration)); err != nil {
			c.log.Error("failed to extend read deadline", logging.Error(err))
			return
		}
		if messageType != websocket.BinaryMessage {
			c.log.Debug("dropping non-binary message")
			continue
		}
		if s.handler != nil {
			s.handler.OnMessage(c.id, msg)
		}
	}
}

func logReadError(log *logging.Logger, err error) {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		log.Warn("read deadline exceeded", logging.Error(err))
	case websocket.IsCloseError(err, websocket.CloseMessageTooBig) || errors.Is(err, websocket.ErrReadLimit):
		log.Warn("closing connection due to oversized payload", logging.Error(err))
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure):
		log.Warn("unexpected websocket close", logging.Error(err))
	default:
		log.Debug("read loop ended", logging.Error(err))
	}
}

// writePump drains the connection's outbound queue and sends periodic
// pings. Closing c (from either side) unblocks this loop via c.closed.
func (s *Server) writePump(c *Conn, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Error("failed to set write deadline", logging.Error(err))
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				c.log.Error("write error", logging.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				c.log.Warn("ping failure", logging.Error(err))
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (s *Server) teardown(c *Conn) {
	c.close()
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	if s.handler != nil {
		s.handler.OnClose(c.id)
	}
}

func buildOriginChecker(logger *logging.Logger, allowlist []string) func(*http.Request) bool {
	if logger == nil {
		logger = logging.L()
	}
	allowed := make(map[string]struct{}, len(allowlist))
	for _, origin := range allowlist {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			logger.Warn("ignoring invalid allowed origin", logging.String("origin", origin), logging.Error(err))
			continue
		}
		allowed[strings.ToLower(u.Scheme+"://"+u.Host)] = struct{}{}
	}

	return func(r *http.Request) bool {
		originHeader := r.Header.Get("Origin")
		if originHeader == "" {
			return false
		}
		originURL, err := url.Parse(originHeader)
		if err != nil || originURL.Host == "" {
			logger.Warn("rejecting request with invalid origin", logging.String("origin", originHeader), logging.Error(err))
			return false
		}
		if _, ok := localHosts[originURL.Hostname()]; ok {
			return true
		}
		key := strings.ToLower(originURL.Scheme + "://" + originURL.Host)
		if _, ok := allowed[key]; ok {
			return true
		}
		logger.Warn("rejecting request from disallowed origin", logging.String("origin", originHeader))
		return false
	}
}
