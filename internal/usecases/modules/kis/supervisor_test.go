package kis

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chindada/leopard/pkg/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUpstream runs an in-process feed endpoint. It records every
// subscription frame it receives and lets tests push frames down and
// kill connections to force reconnects.
type fakeUpstream struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []subscriptionFrame
	echoed   []string
	connCh   chan struct{}
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{t: t, connCh: make(chan struct{}, 16)}
	mux := http.NewServeMux()
	mux.HandleFunc(approvalPath, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"approval_key": "approval-test"})
	})
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		conn, err := f.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conns = append(f.conns, conn)
		f.mu.Unlock()
		f.connCh <- struct{}{}
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame subscriptionFrame
			if json.Unmarshal(raw, &frame) == nil && frame.Body.Input.TrID != "" {
				f.mu.Lock()
				f.received = append(f.received, frame)
				f.mu.Unlock()
				continue
			}
			f.mu.Lock()
			f.echoed = append(f.echoed, string(raw))
			f.mu.Unlock()
		}
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeUpstream) wsURL() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/feed"
}

func (f *fakeUpstream) waitConn(t *testing.T) {
	t.Helper()
	select {
	case <-f.connCh:
	case <-time.After(3 * time.Second):
		t.Fatal("upstream connection did not arrive")
	}
}

func (f *fakeUpstream) latestConn() *websocket.Conn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[len(f.conns)-1]
}

func (f *fakeUpstream) subscriptions() []subscriptionFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]subscriptionFrame(nil), f.received...)
}

func (f *fakeUpstream) echoes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.echoed...)
}

func (f *fakeUpstream) send(t *testing.T, raw string) {
	t.Helper()
	require.NoError(t, f.latestConn().WriteMessage(websocket.TextMessage, []byte(raw)))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func newTestSupervisor(t *testing.T, f *fakeUpstream, handler RecordHandler) *Supervisor {
	t.Helper()
	s := NewSupervisor(SupervisorConfig{
		URL: f.wsURL(),
		Auth: NewAuth(AuthConfig{
			AppKey:    "app-key",
			AppSecret: "app-secret",
			RestURL:   f.srv.URL,
			Logger:    log.Get(),
		}),
		Logger:  log.Get(),
		Handler: handler,
		Backoff: 50 * time.Millisecond,
	})
	t.Cleanup(s.Stop)
	return s
}

func TestSupervisorStartOnlyOnce(t *testing.T) {
	f := newFakeUpstream(t)
	s := newTestSupervisor(t, f, nil)

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrAlreadyRunning)
	f.waitConn(t)
}

func TestSupervisorSubscribeSendsBothStreams(t *testing.T) {
	f := newFakeUpstream(t)
	s := newTestSupervisor(t, f, nil)
	require.NoError(t, s.Start())
	f.waitConn(t)
	waitFor(t, func() bool { return s.State() == StateConnected })

	require.NoError(t, s.Subscribe("005930"))
	waitFor(t, func() bool { return len(f.subscriptions()) == 2 })

	subs := f.subscriptions()
	ids := []string{subs[0].Body.Input.TrID, subs[1].Body.Input.TrID}
	assert.ElementsMatch(t, []string{TrIDOrderBook, TrIDTrade}, ids)
	for _, sub := range subs {
		assert.Equal(t, "005930", sub.Body.Input.TrKey)
		assert.Equal(t, "approval-test", sub.Header.ApprovalKey)
		assert.Equal(t, "1", sub.Header.TrType)
	}
}

func TestSupervisorSecondWatcherSendsNothing(t *testing.T) {
	f := newFakeUpstream(t)
	s := newTestSupervisor(t, f, nil)
	require.NoError(t, s.Start())
	f.waitConn(t)
	waitFor(t, func() bool { return s.State() == StateConnected })

	require.NoError(t, s.Subscribe("005930"))
	require.NoError(t, s.Subscribe("005930"))
	waitFor(t, func() bool { return len(f.subscriptions()) == 2 })
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, f.subscriptions(), 2)
	assert.Equal(t, uint(2), s.WatcherCount("005930"))
}

func TestSupervisorELWSubscription(t *testing.T) {
	f := newFakeUpstream(t)
	s := newTestSupervisor(t, f, nil)
	require.NoError(t, s.Start())
	f.waitConn(t)
	waitFor(t, func() bool { return s.State() == StateConnected })

	require.NoError(t, s.Subscribe("57JB95"))
	waitFor(t, func() bool { return len(f.subscriptions()) == 2 })
	ids := []string{f.subscriptions()[0].Body.Input.TrID, f.subscriptions()[1].Body.Input.TrID}
	assert.ElementsMatch(t, []string{TrIDOrderBookELW, TrIDTrade}, ids)
}

func TestSupervisorReconnectReplaysSubscriptions(t *testing.T) {
	f := newFakeUpstream(t)
	s := newTestSupervisor(t, f, nil)
	require.NoError(t, s.Start())
	f.waitConn(t)
	waitFor(t, func() bool { return s.State() == StateConnected })

	require.NoError(t, s.Subscribe("005930"))
	require.NoError(t, s.Subscribe("000660"))
	waitFor(t, func() bool { return len(f.subscriptions()) == 4 })

	_ = f.latestConn().Close()
	f.waitConn(t)
	waitFor(t, func() bool { return len(f.subscriptions()) == 8 })

	replayed := map[string]int{}
	for _, sub := range f.subscriptions()[4:] {
		replayed[sub.Body.Input.TrKey]++
	}
	assert.Equal(t, map[string]int{"005930": 2, "000660": 2}, replayed)
}

func TestSupervisorPingEchoedVerbatim(t *testing.T) {
	f := newFakeUpstream(t)
	s := newTestSupervisor(t, f, nil)
	require.NoError(t, s.Start())
	f.waitConn(t)
	waitFor(t, func() bool { return s.State() == StateConnected })

	ping := `{"header":{"tr_id":"PINGPONG","datetime":"20260901100000"}}`
	f.send(t, ping)
	waitFor(t, func() bool { return len(f.echoes()) == 1 })
	assert.Equal(t, ping, f.echoes()[0])
}

func TestSupervisorHandlerReceivesRecords(t *testing.T) {
	f := newFakeUpstream(t)
	var mu sync.Mutex
	var records []Record
	s := newTestSupervisor(t, f, func(r Record) {
		mu.Lock()
		records = append(records, r)
		mu.Unlock()
	})
	require.NoError(t, s.Start())
	f.waitConn(t)
	waitFor(t, func() bool { return s.State() == StateConnected })

	f.send(t, tickFrame(validTickFields()...))
	f.send(t, "0|H0STCNT0|001|broken")
	f.send(t, tickFrame(validTickFields()...))
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(records) == 2
	})
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "005930", records[0].InstrumentCode())
}

func TestSupervisorUnsubscribeKeepsUpstream(t *testing.T) {
	f := newFakeUpstream(t)
	s := newTestSupervisor(t, f, nil)
	require.NoError(t, s.Start())
	f.waitConn(t)
	waitFor(t, func() bool { return s.State() == StateConnected })

	require.NoError(t, s.Subscribe("005930"))
	waitFor(t, func() bool { return len(f.subscriptions()) == 2 })
	s.Unsubscribe("005930")
	time.Sleep(100 * time.Millisecond)

	// No unsubscribe frame goes upstream and the code stays out of the
	// replay set only while its count is zero.
	assert.Len(t, f.subscriptions(), 2)
	assert.Empty(t, s.ActiveCodes())
	assert.Equal(t, uint(0), s.WatcherCount("005930"))
}

func TestSupervisorStopIsIdempotent(t *testing.T) {
	f := newFakeUpstream(t)
	s := newTestSupervisor(t, f, nil)
	require.NoError(t, s.Start())
	f.waitConn(t)

	s.Stop()
	s.Stop()
	assert.Equal(t, StateDisconnected, s.State())
}

func TestSupervisorSubscribeDuringDisconnect(t *testing.T) {
	s := NewSupervisor(SupervisorConfig{Logger: log.Get()})

	// Recreate the instant between the read loop dropping the
	// connection and the run loop restarting it: the subscribe must
	// register the watcher and leave the send to the reconnect replay.
	s.mu.Lock()
	s.state = StateConnected
	s.conn = nil
	s.mu.Unlock()

	require.NotPanics(t, func() {
		require.NoError(t, s.Subscribe("005930"))
	})
	assert.Equal(t, []string{"005930"}, s.ActiveCodes())
}

func TestSupervisorReadLoopDropSetsDisconnected(t *testing.T) {
	f := newFakeUpstream(t)
	s := newTestSupervisor(t, f, nil)
	require.NoError(t, s.Start())
	defer s.Stop()
	f.waitConn(t)
	waitFor(t, func() bool { return s.State() == StateConnected })

	_ = f.latestConn().Close()

	// The state flips with the connection teardown, under the same
	// lock, never leaving a connected state with no connection.
	var stale bool
	waitFor(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.conn == nil {
			stale = s.state == StateConnected
			return true
		}
		return false
	})
	assert.False(t, stale)
}
