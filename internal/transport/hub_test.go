package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clipsentry/clipsentry/internal/domain"
)

const testToken = "test-token"

type hubFixture struct {
	hub    *Hub
	server *httptest.Server
	wsURL  string

	mu       sync.Mutex
	received []domain.Envelope
}

func newHubFixture(t *testing.T, handler Handler) *hubFixture {
	t.Helper()
	f := &hubFixture{}
	wrapped := func(session domain.SessionInfo, env domain.Envelope) domain.Response {
		f.mu.Lock()
		f.received = append(f.received, env)
		f.mu.Unlock()
		if handler != nil {
			return handler(session, env)
		}
		return domain.Response{Success: true}
	}
	f.hub = NewHub(testToken, wrapped, zap.NewNop())
	f.server = httptest.NewServer(f.hub.Router())
	f.wsURL = strings.Replace(f.server.URL, "http://", "ws://", 1) + "/ws"
	t.Cleanup(f.server.Close)
	return f
}

func (f *hubFixture) dial(t *testing.T, role domain.SessionRole, sourceURL string, handler CommandHandler) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := Dial(ctx, f.wsURL, testToken, role, sourceURL, handler, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func (f *hubFixture) waitSessions(t *testing.T, role domain.SessionRole, n int) []domain.SessionInfo {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(f.hub.Sessions(role)) == n
	}, 2*time.Second, 5*time.Millisecond)
	return f.hub.Sessions(role)
}

func TestHub_RejectsBadToken(t *testing.T) {
	f := newHubFixture(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Dial(ctx, f.wsURL, "wrong", domain.RoleAgent, "", nil, zap.NewNop())
	assert.ErrorIs(t, err, domain.ErrEndpointGone)
}

func TestHub_RejectsUnknownRole(t *testing.T) {
	f := newHubFixture(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Dial(ctx, f.wsURL, testToken, domain.SessionRole("spectator"), "", nil, zap.NewNop())
	assert.Error(t, err)
}

func TestHub_RequestRoundTrip(t *testing.T) {
	f := newHubFixture(t, func(session domain.SessionInfo, env domain.Envelope) domain.Response {
		return domain.Response{Success: true, Message: "pong:" + string(env.Kind)}
	})
	client := f.dial(t, domain.RoleUI, "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	env, err := domain.NewEnvelope("", domain.MsgPing, nil)
	require.NoError(t, err)
	resp, err := client.Request(ctx, env)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "pong:PING", resp.Message)
	assert.Equal(t, env.ID, resp.ID, "responses are correlated by envelope ID")
}

func TestHub_SessionInfoCarriesRoleAndURL(t *testing.T) {
	f := newHubFixture(t, nil)
	f.dial(t, domain.RoleAgent, "https://example.com/login", nil)

	sessions := f.waitSessions(t, domain.RoleAgent, 1)
	assert.Equal(t, domain.RoleAgent, sessions[0].Role)
	assert.Equal(t, "https://example.com/login", sessions[0].SourceURL)
	assert.Empty(t, f.hub.Sessions(domain.RoleUI))
}

func TestHub_ActiveSessionTracksLastSender(t *testing.T) {
	f := newHubFixture(t, nil)
	a := f.dial(t, domain.RoleAgent, "https://a.example", nil)
	b := f.dial(t, domain.RoleAgent, "https://b.example", nil)
	f.waitSessions(t, domain.RoleAgent, 2)

	_, hasActive := f.hub.ActiveSession()
	assert.False(t, hasActive, "no events yet means no active session")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	env, _ := domain.NewEnvelope("", domain.MsgCopyDetected, domain.CopyDetected{TimestampMs: 1})
	_, err := a.Request(ctx, env)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		active, ok := f.hub.ActiveSession()
		return ok && active.SourceURL == "https://a.example"
	}, time.Second, 5*time.Millisecond)

	env, _ = domain.NewEnvelope("", domain.MsgCopyDetected, domain.CopyDetected{TimestampMs: 2})
	_, err = b.Request(ctx, env)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		active, ok := f.hub.ActiveSession()
		return ok && active.SourceURL == "https://b.example"
	}, time.Second, 5*time.Millisecond)
}

func TestHub_RequestSessionPushesCommand(t *testing.T) {
	f := newHubFixture(t, nil)

	var got domain.MsgKind
	var gotMu sync.Mutex
	f.dial(t, domain.RoleAgent, "https://example.com", func(env domain.Envelope) domain.Response {
		gotMu.Lock()
		got = env.Kind
		gotMu.Unlock()
		return domain.Response{Success: true}
	})
	sessions := f.waitSessions(t, domain.RoleAgent, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	env, _ := domain.NewEnvelope("", domain.MsgClearClipboardRequest, nil)
	resp, err := f.hub.RequestSession(ctx, sessions[0].ID, env)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	gotMu.Lock()
	defer gotMu.Unlock()
	assert.Equal(t, domain.MsgClearClipboardRequest, got)
}

func TestHub_RequestSessionUnknownID(t *testing.T) {
	f := newHubFixture(t, nil)

	env, _ := domain.NewEnvelope("", domain.MsgPing, nil)
	_, err := f.hub.RequestSession(context.Background(), "no-such-session", env)
	assert.ErrorIs(t, err, domain.ErrEndpointGone)
}

func TestHub_RequestSessionTimesOutOnSlowHandler(t *testing.T) {
	f := newHubFixture(t, nil)
	f.dial(t, domain.RoleAgent, "", func(env domain.Envelope) domain.Response {
		time.Sleep(500 * time.Millisecond)
		return domain.Response{Success: true}
	})
	sessions := f.waitSessions(t, domain.RoleAgent, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	env, _ := domain.NewEnvelope("", domain.MsgClearClipboardRequest, nil)
	_, err := f.hub.RequestSession(ctx, sessions[0].ID, env)
	assert.ErrorIs(t, err, domain.ErrTimeout)
}

func TestHub_DisconnectRemovesSession(t *testing.T) {
	f := newHubFixture(t, nil)
	client := f.dial(t, domain.RoleAgent, "", nil)
	f.waitSessions(t, domain.RoleAgent, 1)

	client.Close()
	f.waitSessions(t, domain.RoleAgent, 0)
}

func TestHub_RequestToClosedSessionFails(t *testing.T) {
	f := newHubFixture(t, nil)
	client := f.dial(t, domain.RoleAgent, "", nil)
	sessions := f.waitSessions(t, domain.RoleAgent, 1)

	client.Close()
	f.waitSessions(t, domain.RoleAgent, 0)

	env, _ := domain.NewEnvelope("", domain.MsgPing, nil)
	_, err := f.hub.RequestSession(context.Background(), sessions[0].ID, env)
	assert.ErrorIs(t, err, domain.ErrEndpointGone)
}

func TestClient_RequestAfterDaemonGone(t *testing.T) {
	f := newHubFixture(t, nil)
	client := f.dial(t, domain.RoleUI, "", nil)

	require.NoError(t, f.hub.Shutdown(context.Background()))
	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client never observed the teardown")
	}

	env, _ := domain.NewEnvelope("", domain.MsgPing, nil)
	_, err := client.Request(context.Background(), env)
	assert.ErrorIs(t, err, domain.ErrEndpointGone)
}

func TestClient_NilHandlerAnswersNonSuccess(t *testing.T) {
	f := newHubFixture(t, nil)
	f.dial(t, domain.RoleUI, "", nil)
	sessions := f.waitSessions(t, domain.RoleUI, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	env, _ := domain.NewEnvelope("", domain.MsgPing, nil)
	resp, err := f.hub.RequestSession(ctx, sessions[0].ID, env)
	require.NoError(t, err)
	assert.False(t, resp.Success)
}

func TestHub_SessionsOrderedByConnection(t *testing.T) {
	f := newHubFixture(t, nil)
	f.dial(t, domain.RoleAgent, "https://first.example", nil)
	f.waitSessions(t, domain.RoleAgent, 1)
	time.Sleep(5 * time.Millisecond)
	f.dial(t, domain.RoleAgent, "https://second.example", nil)

	sessions := f.waitSessions(t, domain.RoleAgent, 2)
	assert.Equal(t, "https://first.example", sessions[0].SourceURL)
	assert.Equal(t, "https://second.example", sessions[1].SourceURL)
}
