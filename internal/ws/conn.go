// Package ws owns the websocket session lifecycle: connect,
// authenticate, subscribe, failure detection, reconnect and shutdown.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"coinflow/internal/sign"
	"coinflow/internal/subs"
	"coinflow/logger"
	"coinflow/models"
)

// State is the session lifecycle state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Authenticating
	Subscribing
	Active
	Reconnecting
	Stopped
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Subscribing:
		return "subscribing"
	case Active:
		return "active"
	case Reconnecting:
		return "reconnecting"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrAuthFailed reports a rejected websocket login. Private
// subscription must not proceed after it and no automatic retry is
// attempted.
var ErrAuthFailed = errors.New("websocket login rejected")

// Conn is the subset of *websocket.Conn the manager uses. Tests swap
// in an in-process pipe.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// Dialer opens a websocket connection.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type wsDialer struct{}

func (wsDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	c, _, err := d.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Options configure one manager instance.
type Options struct {
	URL            string
	Private        bool
	Signer         sign.Signer
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	AuthTimeout    time.Duration
	Dialer         Dialer
}

// Manager owns exactly one logical session. A dropped transport is
// replaced transparently; a deliberate Stop is terminal.
type Manager struct {
	opts    Options
	subs    *subs.Controller
	onFrame func(models.RawFrame)
	log     *logger.Log

	mu        sync.Mutex
	state     State
	conn      Conn
	ctx       context.Context
	reconnect *time.Timer
	pingStop  chan struct{}
	gen       int
	wg        sync.WaitGroup
}

func NewManager(opts Options, sc *subs.Controller, onFrame func(models.RawFrame), log *logger.Log) *Manager {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 20 * time.Second
	}
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = 10 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = wsDialer{}
	}
	return &Manager{
		opts:    opts,
		subs:    sc,
		onFrame: onFrame,
		log:     log,
		state:   Disconnected,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect opens the session. For private sessions it authenticates and
// waits for an explicit login success before subscribing. A transport
// failure after this returns is retried with a fixed delay; a login
// rejection is returned to the caller and not retried.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state != Disconnected && m.state != Stopped {
		m.mu.Unlock()
		return fmt.Errorf("connect: session already %s", m.state)
	}
	m.ctx = ctx
	m.state = Disconnected
	m.mu.Unlock()
	return m.establish(true)
}

// establish runs one connect-auth-subscribe cycle. initial connects
// report dial errors to the caller; reconnect cycles schedule another
// retry instead.
func (m *Manager) establish(initial bool) error {
	log := m.log.WithComponent("ws_manager")

	m.setState(Connecting)
	conn, err := m.opts.Dialer.Dial(m.ctx, m.opts.URL)
	if err != nil {
		log.WithError(err).Warn("websocket dial failed")
		if initial {
			m.setState(Disconnected)
			return fmt.Errorf("dial %s: %w", m.opts.URL, err)
		}
		m.scheduleReconnect()
		return nil
	}

	if m.opts.Private {
		m.setState(Authenticating)
		if err := m.authenticate(conn); err != nil {
			conn.Close()
			if errors.Is(err, ErrAuthFailed) {
				// Deliberate halt: a rejected credential will not
				// succeed on retry.
				m.setState(Disconnected)
				log.WithError(err).Error("websocket authentication failed")
				return err
			}
			log.WithError(err).Warn("websocket authentication transport error")
			if initial {
				m.setState(Disconnected)
				return err
			}
			m.scheduleReconnect()
			return nil
		}
	}

	m.mu.Lock()
	if m.state == Stopped {
		// Stop won the race during the handshake; the doomed connection
		// gets no subscribe.
		m.mu.Unlock()
		conn.Close()
		return nil
	}
	m.state = Subscribing
	m.mu.Unlock()
	if err := conn.WriteJSON(m.subs.SubscribeFrame()); err != nil {
		conn.Close()
		log.WithError(err).Warn("subscribe send failed")
		if initial {
			m.setState(Disconnected)
			return err
		}
		m.scheduleReconnect()
		return nil
	}

	m.mu.Lock()
	if m.state == Stopped {
		// Stop won the race during the handshake; do not resurrect.
		m.mu.Unlock()
		conn.Close()
		return nil
	}
	m.conn = conn
	m.gen++
	gen := m.gen
	m.state = Active
	if m.opts.Private {
		m.startPingLocked(conn)
	}
	m.mu.Unlock()

	log.WithFields(logger.Fields{"url": m.opts.URL, "private": m.opts.Private}).Info("websocket session active")

	m.wg.Add(1)
	go m.readLoop(conn, gen)
	return nil
}

// authenticate sends the signed login frame and reads until the venue
// acknowledges or rejects it.
func (m *Manager) authenticate(conn Conn) error {
	arg := m.opts.Signer.LoginArg(sign.Timestamp())
	frame := models.ControlFrame{Op: models.OpLogin, Args: []any{arg}}
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("send login: %w", err)
	}

	// The read deadline bounds the whole exchange; a venue that accepts
	// the socket but never answers the login must not block the session
	// forever.
	deadline := time.Now().Add(m.opts.AuthTimeout)
	if err := conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("set login deadline: %w", err)
	}
	defer conn.SetReadDeadline(time.Time{})

	for time.Now().Before(deadline) {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return fmt.Errorf("%w: no login response within %s", ErrAuthFailed, m.opts.AuthTimeout)
			}
			return fmt.Errorf("read login response: %w", err)
		}
		msg, err := models.DecodeWireMessage(raw)
		if err != nil {
			m.log.WithComponent("ws_manager").WithError(err).Warn("malformed frame during login, dropping")
			continue
		}
		switch msg.Event {
		case models.EventLogin:
			if msg.Code != "" && msg.Code != "0" {
				return fmt.Errorf("%w: code=%s msg=%s", ErrAuthFailed, msg.Code, msg.Msg)
			}
			return nil
		case models.EventError:
			return fmt.Errorf("%w: code=%s msg=%s", ErrAuthFailed, msg.Code, msg.Msg)
		default:
			// Venue may interleave other control traffic; keep waiting.
		}
	}
	return fmt.Errorf("%w: no login response within %s", ErrAuthFailed, m.opts.AuthTimeout)
}

// readLoop receives frames until the transport fails or the session is
// stopped. Control events are handled here; data frames are forwarded.
func (m *Manager) readLoop(conn Conn, gen int) {
	defer m.wg.Done()
	log := m.log.WithComponent("ws_manager").WithFields(logger.Fields{"worker": "read_loop"})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.handleTransportLoss(gen, err)
			return
		}
		msg, derr := models.DecodeWireMessage(raw)
		if derr != nil {
			log.WithError(derr).Warn("malformed message, dropping")
			logger.IncrementMalformed()
			continue
		}
		switch msg.Event {
		case models.EventError:
			// Venue-reported errors never tear the connection down.
			log.WithFields(logger.Fields{"code": msg.Code, "msg": msg.Msg}).Warn("venue reported error")
		case models.EventSubscribed, models.EventLogin:
			log.WithFields(logger.Fields{"event": msg.Event, "channel": msg.Channel}).Debug("control event")
		case models.EventPong:
			// liveness reply, nothing to do
		default:
			m.onFrame(models.RawFrame{Data: raw, ReceivedAt: time.Now().UnixMilli()})
		}
	}
}

// handleTransportLoss reacts to a read error. Stale generations (a
// loop whose connection was already replaced or closed on purpose) are
// ignored.
func (m *Manager) handleTransportLoss(gen int, cause error) {
	m.mu.Lock()
	if m.state == Stopped || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.stopPingLocked()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.state = Reconnecting
	m.mu.Unlock()

	m.log.WithComponent("ws_manager").WithError(cause).Warn("transport lost, scheduling reconnect")
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Stopped {
		return
	}
	m.state = Reconnecting
	m.reconnect = time.AfterFunc(m.opts.ReconnectDelay, func() {
		m.mu.Lock()
		if m.state != Reconnecting {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()
		logger.IncrementReconnect()
		if err := m.establish(false); err != nil {
			m.log.WithComponent("ws_manager").WithError(err).Error("reconnect halted")
		}
	})
}

// Stop shuts the session down for good. The pending reconnect timer is
// cancelled before the transport closes so no connection can resurrect
// after a deliberate shutdown. Stop on an already stopped session is a
// no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.state == Stopped {
		m.mu.Unlock()
		return
	}
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	m.stopPingLocked()
	conn := m.conn
	m.conn = nil
	m.gen++
	m.state = Stopped
	m.mu.Unlock()

	log := m.log.WithComponent("ws_manager")
	if conn != nil {
		if err := conn.WriteJSON(m.subs.UnsubscribeFrame()); err != nil {
			log.WithError(err).Warn("unsubscribe during stop failed")
		}
		conn.Close()
	}
	m.wg.Wait()
	log.Info("websocket session stopped")
}

// startPingLocked launches the private liveness ping. Callers hold mu.
func (m *Manager) startPingLocked(conn Conn) {
	stop := make(chan struct{})
	m.pingStop = stop
	ticker := time.NewTicker(m.opts.PingInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := conn.WriteJSON(models.ControlFrame{Op: models.OpPing}); err != nil {
					m.log.WithComponent("ws_manager").WithError(err).Warn("liveness ping failed")
				}
			}
		}
	}()
}

// stopPingLocked tears the liveness timer down. Callers hold mu.
func (m *Manager) stopPingLocked() {
	if m.pingStop != nil {
		close(m.pingStop)
		m.pingStop = nil
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	// Stopped is terminal; a concurrent Stop must not be overwritten.
	if m.state != Stopped {
		m.state = s
	}
	m.mu.Unlock()
}
