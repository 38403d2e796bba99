package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"formintake/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var secret = []byte("test-secret")

func sign(t *testing.T, sub string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub, "role": "reviewer"}).SignedString(secret)
	require.NoError(t, err)
	return s
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(&logger.Logger{Logger: zap.NewNop()})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ServeWs(hub, c, secret) })
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) (*gws.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	return gws.DefaultDialer.Dial(url, nil)
}

func TestSendToReachesOnlyRecipient(t *testing.T) {
	hub, srv := startHub(t)

	alice, _, err := dial(t, srv, sign(t, "alice"))
	require.NoError(t, err)
	defer alice.Close()
	bob, _, err := dial(t, srv, sign(t, "bob"))
	require.NoError(t, err)
	defer bob.Close()

	require.Eventually(t, func() bool {
		return hub.Connected("alice") == 1 && hub.Connected("bob") == 1
	}, time.Second, 10*time.Millisecond)

	assert.True(t, hub.SendTo("alice", []byte(`{"title":"Form Approved"}`)))

	_ = alice.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := alice.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Form Approved"}`, string(msg))

	_ = bob.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, _, err = bob.ReadMessage()
	assert.Error(t, err)
}

func TestServeWsRejectsBadTokens(t *testing.T) {
	_, srv := startHub(t)

	_, resp, err := dial(t, srv, "")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = dial(t, srv, "not-a-jwt")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "admin"}).SignedString(secret)
	require.NoError(t, err)
	_, resp, err = dial(t, srv, noSub)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, srv := startHub(t)

	conn, _, err := dial(t, srv, sign(t, "carol"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Connected("carol") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Connected("carol") == 0 }, time.Second, 10*time.Millisecond)
}
