package interactive

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanlobby/lobby-go/pkg/connection"
	"github.com/lanlobby/lobby-go/pkg/credentials"
	"github.com/lanlobby/lobby-go/pkg/session"
	"github.com/lanlobby/lobby-go/pkg/transport"
)

// syncBuffer is written by handlers and listeners on other goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type fixture struct {
	broker *transport.Memory
	creds  *credentials.MemoryStore
	client *session.Client
	out    *syncBuffer
	shell  *Shell
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := session.DefaultConfig("mem://lobby")
	cfg.DisableHeartbeat = true
	cfg.ConnectTimeout = 500 * time.Millisecond
	cfg.Reconnect = connection.SchedulerConfig{
		Backoff:     connection.BackoffConfig{Initial: 10 * time.Millisecond, Max: 20 * time.Millisecond},
		MaxAttempts: 3,
	}

	f := &fixture{
		broker: transport.NewMemory(),
		creds:  credentials.NewMemoryStore("token"),
		out:    &syncBuffer{},
	}
	client, err := session.New(cfg, f.broker, f.creds)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	f.client = client
	f.shell = newShell(client, f.creds, f.out)
	return f
}

func (f *fixture) exec(t *testing.T, line string) string {
	t.Helper()
	f.out.Reset()
	require.True(t, f.shell.Exec(line))
	return f.out.String()
}

func TestShellConnectAndStatus(t *testing.T) {
	f := newFixture(t)

	out := f.exec(t, "connect")
	assert.Contains(t, out, "Connected (connection ")
	assert.True(t, f.client.IsConnected())

	out = f.exec(t, "status")
	assert.Contains(t, out, "State:          CONNECTED")
	assert.Contains(t, out, "Credentials:    true")
	assert.NotContains(t, out, "Heartbeat:")
}

func TestShellConnectFailure(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "reconnect off")
	f.creds.Invalidate()

	out := f.exec(t, "connect")
	assert.Contains(t, out, "Connect failed")
	assert.False(t, f.client.IsConnected())
}

func TestShellSubscribeAndReceive(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "connect")

	out := f.exec(t, "sub /topic/chat")
	assert.Contains(t, out, "Subscribed to /topic/chat (raw)")

	f.out.Reset()
	require.Eventually(t, func() bool {
		return f.broker.Publish("/topic/chat", []byte("hello there")) > 0
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return strings.Contains(f.out.String(), "/topic/chat: hello there")
	}, time.Second, 5*time.Millisecond)

	out = f.exec(t, "subs")
	assert.Contains(t, out, "/topic/chat")
	assert.Contains(t, out, "bound")

	out = f.exec(t, "unsub /topic/chat")
	assert.Contains(t, out, "Unsubscribed from /topic/chat")
	out = f.exec(t, "unsub /topic/chat")
	assert.Contains(t, out, "Not subscribed to /topic/chat")
}

func TestShellJSONSubscription(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "connect")
	f.exec(t, "sub /topic/json json")

	f.out.Reset()
	require.Eventually(t, func() bool {
		return f.broker.Publish("/topic/json", []byte(`{"n":1}`)) > 0
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return strings.Contains(f.out.String(), `/topic/json: {"n":1}`)
	}, time.Second, 5*time.Millisecond)
}

func TestShellSend(t *testing.T) {
	f := newFixture(t)

	out := f.exec(t, "send /app/chat hi")
	assert.Contains(t, out, "Send failed")

	received := make(chan string, 1)
	f.broker.Handle("/app/chat", func(_ string, fr transport.Frame) {
		received <- string(fr.Body)
	})

	f.exec(t, "connect")
	out = f.exec(t, "send /app/chat hello   spaced world")
	assert.Contains(t, out, "Sent 20 bytes to /app/chat")

	select {
	case body := <-received:
		assert.Equal(t, "hello   spaced world", body)
	case <-time.After(time.Second):
		t.Fatal("server did not receive the message")
	}

	out = f.exec(t, "send /app/chat")
	assert.Contains(t, out, "Usage: send")
}

func TestShellDisconnectKeepsSubscriptions(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "connect")
	f.exec(t, "sub /topic/a")

	out := f.exec(t, "disconnect")
	assert.Contains(t, out, "Disconnected")
	assert.Equal(t, connection.StateDisconnected, f.client.State())
	assert.Equal(t, []string{"/topic/a"}, f.client.Subscriptions())

	f.exec(t, "connect")
	f.exec(t, "clean")
	assert.Equal(t, connection.StateDisconnected, f.client.State())
}

func TestShellLogout(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "connect")
	f.exec(t, "sub /topic/a")

	out := f.exec(t, "logout")
	assert.Contains(t, out, "Logged out")
	assert.Empty(t, f.client.Subscriptions())
	assert.True(t, f.creds.Invalidated())
	assert.False(t, f.client.IsConnected())
}

func TestShellReconnectToggle(t *testing.T) {
	f := newFixture(t)

	out := f.exec(t, "reconnect off")
	assert.Contains(t, out, "Auto-reconnect: false")
	assert.False(t, f.client.AutoReconnect())

	out = f.exec(t, "reconnect on")
	assert.Contains(t, out, "Auto-reconnect: true")

	out = f.exec(t, "reconnect maybe")
	assert.Contains(t, out, "Usage: reconnect")
}

func TestShellMisc(t *testing.T) {
	f := newFixture(t)

	assert.Contains(t, f.exec(t, "help"), "Session Commands:")
	assert.Contains(t, f.exec(t, "bogus"), "Unknown command: bogus")
	assert.Contains(t, f.exec(t, "sub"), "Usage: sub")
	assert.Contains(t, f.exec(t, "subs"), "No subscriptions")
	assert.Empty(t, f.exec(t, "   "))
	assert.False(t, f.shell.Exec("quit"))
}

func TestShellPrintsTransitions(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "connect")

	require.Eventually(t, func() bool {
		return strings.Contains(f.out.String(), "[state] CONNECTING -> CONNECTED")
	}, time.Second, 5*time.Millisecond)
}
