package kis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chindada/leopard/pkg/log"
	"github.com/gorilla/websocket"
)

// State is the supervisor's connection lifecycle phase.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

const defaultReconnectBackoff = 5 * time.Second

var ErrAlreadyRunning = errors.New("kis: supervisor already started")

// RecordHandler receives every decoded record from the feed. It is
// called from the read loop, so it must not block.
type RecordHandler func(Record)

type SupervisorConfig struct {
	URL     string
	Auth    *Auth
	Logger  *log.Log
	Handler RecordHandler

	// Backoff between reconnect attempts. Zero means the default 5s.
	Backoff time.Duration
}

// Supervisor owns the single upstream feed connection. It dials, keeps
// the subscription registry, replays active subscriptions after every
// reconnect, and decodes inbound frames into the configured handler.
type Supervisor struct {
	url     string
	auth    *Auth
	logger  *log.Log
	handler RecordHandler
	backoff time.Duration

	registry *Registry
	running  atomic.Bool

	// mu guards conn, state and approvalKey. The gorilla connection
	// allows only one concurrent writer, so every write goes through
	// writeFrame under this mutex.
	mu          sync.Mutex
	conn        *websocket.Conn
	state       State
	approvalKey string

	seen   sync.Map // code -> struct{}, first-record log dedup
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultReconnectBackoff
	}
	return &Supervisor{
		url:      cfg.URL,
		auth:     cfg.Auth,
		logger:   cfg.Logger,
		handler:  cfg.Handler,
		backoff:  backoff,
		registry: NewRegistry(),
	}
}

// Start launches the connect loop. Only the first call wins; later
// calls return ErrAlreadyRunning.
func (s *Supervisor) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
	return nil
}

// Stop tears down the connection and ends the connect loop. It blocks
// until the loop has exited.
func (s *Supervisor) Stop() {
	if !s.running.Load() {
		return
	}
	s.cancel()
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.mu.Unlock()
	<-s.done
	s.running.Store(false)
}

// State reports the current connection phase.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ActiveCodes lists every instrument with at least one live watcher.
func (s *Supervisor) ActiveCodes() []string {
	return s.registry.ActiveCodes()
}

// WatcherCount reports the number of live watchers for code.
func (s *Supervisor) WatcherCount(code string) uint {
	return s.registry.WatcherCount(code)
}

// Subscribe registers a watcher for code. The upstream subscription is
// sent only for the first watcher, and only while connected; otherwise
// the replay after the next connect covers it. Holding mu across both
// the registry update and the send keeps a concurrent reconnect from
// double-subscribing.
func (s *Supervisor) Subscribe(code string) error {
	normalized, err := NormalizeCode(code)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	first := s.registry.Subscribe(normalized)
	if !first || s.state != StateConnected {
		return nil
	}
	if err = s.sendSubscription(normalized); err != nil {
		s.logger.Warnf("Subscribe %s send failed, will retry on reconnect: %v", normalized, err)
	}
	return nil
}

// Unsubscribe drops one watcher. The upstream subscription is kept even
// at zero watchers; the feed keeps streaming and records are discarded
// downstream. See Registry for the rationale.
func (s *Supervisor) Unsubscribe(code string) {
	normalized, err := NormalizeCode(code)
	if err != nil {
		return
	}
	s.registry.Unsubscribe(normalized)
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)
	for {
		if ctx.Err() != nil {
			s.setState(StateDisconnected)
			return
		}
		s.setState(StateConnecting)
		if err := s.connect(ctx); err != nil {
			if errors.Is(err, ErrMissingAppKey) {
				s.logger.Error("Feed credentials are not configured, retrying until they are")
			} else {
				s.logger.Warnf("Feed connect failed: %v", err)
			}
			s.setState(StateDisconnected)
			if !s.sleep(ctx) {
				return
			}
			continue
		}
		s.readLoop(ctx)
		s.setState(StateDisconnected)
		feedConnected.Set(0)
		if ctx.Err() != nil {
			return
		}
		feedReconnects.Inc()
		if !s.sleep(ctx) {
			return
		}
	}
}

func (s *Supervisor) connect(ctx context.Context) error {
	// A fresh approval key per attempt: the key is short-lived and
	// fetching it is cheap next to a reconnect.
	key, err := s.auth.ApprovalKey(ctx)
	if err != nil {
		return err
	}
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.url, nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.approvalKey = key
	s.state = StateConnected
	codes := s.registry.ActiveCodes()
	for _, code := range codes {
		if err = s.sendSubscription(code); err != nil {
			s.mu.Unlock()
			_ = conn.Close()
			return err
		}
	}
	s.mu.Unlock()
	feedConnected.Set(1)
	s.logger.Infof("Feed connected, replayed %d subscriptions", len(codes))
	return nil
}

// sendSubscription sends both the order book and trade subscriptions
// for code. Caller must hold mu.
func (s *Supervisor) sendSubscription(code string) error {
	if s.conn == nil {
		return errors.New("kis: connection is down")
	}
	for _, trID := range []string{OrderBookTrID(code), TrIDTrade} {
		frame, err := BuildSubscriptionFrame(s.approvalKey, trID, code)
		if err != nil {
			return err
		}
		if err = s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return err
		}
	}
	return nil
}

func (s *Supervisor) readLoop(ctx context.Context) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warnf("Feed read failed: %v", err)
			}
			s.mu.Lock()
			_ = conn.Close()
			s.conn = nil
			s.state = StateDisconnected
			s.mu.Unlock()
			return
		}
		s.handleFrame(string(raw))
	}
}

func (s *Supervisor) handleFrame(raw string) {
	framesReceived.Inc()
	if IsPing(raw) {
		// The upstream expects the ping frame echoed back verbatim.
		s.mu.Lock()
		if s.conn != nil {
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
				s.logger.Warnf("Feed pong failed: %v", err)
			}
		}
		s.mu.Unlock()
		return
	}
	record, err := ParseFrame(raw)
	if err != nil {
		decodeFailures.Inc()
		s.logger.Warnf("Feed frame dropped: %v", err)
		return
	}
	if record == nil {
		return
	}
	recordsDecoded.Inc()
	if _, logged := s.seen.LoadOrStore(record.InstrumentCode(), struct{}{}); !logged {
		s.logger.Infof("First record for %s (%s)", record.InstrumentCode(), record.TransactionID())
	}
	if s.handler != nil {
		s.handler(record)
	}
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Supervisor) sleep(ctx context.Context) bool {
	t := time.NewTimer(s.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
