package polymarket

// ws.go — conexión persistente al canal WS "market".
//
// Máquina de estados: Disconnected → Connecting → Connected, y de vuelta
// a Disconnected en cierre o error. La reconexión usa backoff exponencial
// (base 1s, doblada por intento) hasta un tope de intentos; agotado el
// tope el error es terminal y se publica en Errors().

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/polyscalp/internal/ports"
)

const (
	defaultWSURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

	wsHandshakeTimeout  = 10 * time.Second
	wsWriteTimeout      = 5 * time.Second
	wsPingInterval      = 10 * time.Second
	wsReconnectBase     = time.Second
	wsMaxReconnectTries = 10
)

// ConnState es el estado de la conexión WS.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Stream mantiene la conexión WS al canal market con reconexión
// automática y replay de la suscripción tras cada reconexión.
type Stream struct {
	url     string
	handler ports.StreamHandler

	mu     sync.Mutex
	conn   *websocket.Conn
	state  ConnState
	tokens []string
	closed bool

	// writeMu serializa los WriteJSON: Subscribe (goroutine del engine)
	// y la reconexión pueden escribir sobre la misma conn, y gorilla no
	// admite escritores concurrentes.
	writeMu sync.Mutex

	reconnectBase time.Duration
	maxReconnect  int

	errs chan error
}

// NewStream crea un Stream apuntando a url (vacío = producción).
func NewStream(url string, handler ports.StreamHandler) *Stream {
	if url == "" {
		url = defaultWSURL
	}
	return &Stream{
		url:           url,
		handler:       handler,
		reconnectBase: wsReconnectBase,
		maxReconnect:  wsMaxReconnectTries,
		errs:          make(chan error, 1),
	}
}

// Errors publica errores terminales (reconexión agotada). El caller
// decide si reinicia el stream o para el engine.
func (s *Stream) Errors() <-chan error {
	return s.errs
}

// State devuelve el estado actual de la conexión.
func (s *Stream) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect abre la conexión y arranca el read loop y el keepalive.
func (s *Stream) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("polymarket.Stream: closed")
	}
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.mu.Unlock()

	conn, err := s.dial(ctx)
	if err != nil {
		s.setState(StateDisconnected)
		return fmt.Errorf("polymarket.Stream.Connect: %w", err)
	}

	s.install(ctx, conn)
	if err := s.resubscribe(conn); err != nil {
		slog.Warn("ws subscribe failed after connect", "err", err)
	}
	return nil
}

// Subscribe reemplaza el set de tokens suscritos y, si hay conexión,
// envía la suscripción inmediatamente. El set se reenvía solo tras
// cada reconexión.
func (s *Stream) Subscribe(tokenIDs []string) error {
	s.mu.Lock()
	s.tokens = append([]string(nil), tokenIDs...)
	conn := s.conn
	connected := s.state == StateConnected
	s.mu.Unlock()

	if !connected || conn == nil {
		return nil
	}
	return s.resubscribe(conn)
}

// Close cierra la conexión y deshabilita la reconexión.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (s *Stream) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *Stream) install(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	s.mu.Lock()
	s.conn = conn
	s.state = StateConnected
	s.mu.Unlock()

	go s.readLoop(ctx, conn, done)
	go s.pingLoop(conn, done)

	slog.Info("ws connected", "url", s.url)
}

func (s *Stream) resubscribe(conn *websocket.Conn) error {
	s.mu.Lock()
	tokens := append([]string(nil), s.tokens...)
	s.mu.Unlock()

	if len(tokens) == 0 {
		return nil
	}

	msg := wsSubscribeMsg{Type: "market", AssetIDs: tokens}
	s.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	err := conn.WriteJSON(msg)
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("polymarket.Stream.resubscribe: %w", err)
	}
	slog.Debug("ws subscribed", "tokens", len(tokens))
	return nil
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if s.isClosed() || ctx.Err() != nil {
				return
			}
			slog.Warn("ws read failed, reconnecting", "err", err)
			s.setState(StateDisconnected)
			go s.reconnect(ctx)
			return
		}

		events, err := decodeFrame(raw)
		if err != nil {
			// Frame malo: se descarta, nunca tumba el loop.
			slog.Debug("dropping undecodable frame", "err", err)
			continue
		}
		for _, ev := range events {
			if ev.Kind == ports.EventUnknown {
				slog.Debug("dropping unrecognized frame shape")
				continue
			}
			if s.handler != nil {
				s.handler(ev)
			}
		}
	}
}

// pingLoop manda un ping cada wsPingInterval mientras la conexión viva.
// La ausencia de pong no es fallo en sí; confiamos en el close del
// transporte para detectar conexiones muertas.
func (s *Stream) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				slog.Debug("ws ping failed", "err", err)
				return
			}
		}
	}
}

func (s *Stream) reconnect(ctx context.Context) {
	s.setState(StateConnecting)

	for attempt := 1; attempt <= s.maxReconnect; attempt++ {
		delay := s.reconnectDelay(attempt)
		slog.Info("ws reconnect attempt", "attempt", attempt, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			s.setState(StateDisconnected)
			return
		}
		if s.isClosed() {
			return
		}

		conn, err := s.dial(ctx)
		if err != nil {
			slog.Warn("ws reconnect failed", "attempt", attempt, "err", err)
			continue
		}

		s.install(ctx, conn)
		if err := s.resubscribe(conn); err != nil {
			slog.Warn("ws resubscribe failed", "err", err)
		}
		return
	}

	s.setState(StateDisconnected)
	err := fmt.Errorf("polymarket.Stream: reconnect exhausted after %d attempts", s.maxReconnect)
	slog.Error("ws reconnect exhausted", "attempts", s.maxReconnect)
	select {
	case s.errs <- err:
	default:
	}
}

// reconnectDelay devuelve el delay del intento n: base doblada por
// intento (1s, 2s, 4s, ...).
func (s *Stream) reconnectDelay(attempt int) time.Duration {
	return s.reconnectBase << (attempt - 1)
}

func (s *Stream) setState(st ConnState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
