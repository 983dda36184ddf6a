package boards

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/models"
	"github.com/bhavnindersingh/RecipeManager/internal/realtime"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type tokenAuth map[string]models.UserRole

func (t tokenAuth) Authenticate(_ context.Context, token string) (*auth.Session, error) {
	role, ok := t[token]
	if !ok {
		return nil, apperr.Unauthorized("Invalid or expired token", string(auth.ScreenLogin))
	}
	return &auth.Session{UserID: 1, Name: string(role), Role: role}, nil
}

func newGateway(t *testing.T) (*httptest.Server, *realtime.Hub) {
	t.Helper()
	hub := realtime.NewHub(zap.NewNop(), nil, nil)
	kitchen := New(Definition{
		Name:    Kitchen,
		Screens: []auth.Screen{auth.ScreenKDS},
		Watches: []Watch{{Table: realtime.TableOrders}},
		Fetch:   func(context.Context) (any, error) { return []string{"ORD-1"}, nil },
	}, hub, Options{Debounce: 10 * time.Millisecond, MaxWait: 50 * time.Millisecond}, zap.NewNop())
	reg := NewRegistry(kitchen)
	reg.Start(context.Background())

	toks := tokenAuth{"cook": models.RoleKitchen, "store": models.RoleStoreManager, "srv": models.RoleServer}
	gw := NewGateway(toks, reg, hub, GatewayOptions{AllowedOrigins: "*"}, zap.NewNop())
	srv := httptest.NewServer(gw.Router())
	t.Cleanup(func() {
		srv.Close()
		reg.Close()
		hub.Close()
	})
	return srv, hub
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestGatewayRejectsBeforeUpgrade(t *testing.T) {
	srv, _ := newGateway(t)

	cases := []struct {
		path string
		want int
	}{
		{"/ws/boards/kitchen", http.StatusUnauthorized},
		{"/ws/boards/kitchen?token=bad", http.StatusUnauthorized},
		{"/ws/boards/kitchen?token=store", http.StatusForbidden},
		{"/ws/boards/bar?token=cook", http.StatusNotFound},
		{"/ws/changes/users?token=cook", http.StatusNotFound},
		{"/ws/changes/stock_transactions?token=cook", http.StatusForbidden},
		{"/ws/changes/orders?token=cook&column=id", http.StatusBadRequest},
	}
	for _, tc := range cases {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, tc.path), nil)
		require.Error(t, err, tc.path)
		require.NotNil(t, resp, tc.path)
		assert.Equal(t, tc.want, resp.StatusCode, tc.path)
		resp.Body.Close()
	}
}

func TestGatewayStreamsBoardSnapshots(t *testing.T) {
	srv, hub := newGateway(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/boards/kitchen?token=cook"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var snap struct {
		Board   string   `json:"board"`
		Version uint64   `json:"version"`
		Data    []string `json:"data"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, "kitchen", snap.Board)
	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, []string{"ORD-1"}, snap.Data)

	hub.Publish(realtime.NewEvent(realtime.TableOrders, realtime.Insert, nil, map[string]any{"id": 1}))
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, uint64(2), snap.Version)
}

func TestGatewayStreamsFilteredChanges(t *testing.T) {
	srv, hub := newGateway(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/changes/order_items?token=srv&column=order_id&value=7"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers(realtime.TableOrderItems) == 1 },
		time.Second, 10*time.Millisecond)

	hub.Publish(realtime.NewEvent(realtime.TableOrderItems, realtime.Insert, nil, map[string]any{"id": 1, "order_id": 8}))
	hub.Publish(realtime.NewEvent(realtime.TableOrderItems, realtime.Insert, nil, map[string]any{"id": 2, "order_id": 7}))

	var ev realtime.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, realtime.TableOrderItems, ev.Table)
	assert.Equal(t, float64(2), ev.New["id"])

	conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers(realtime.TableOrderItems) == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker("http://localhost:3000, https://cafe.example")
	req := httptest.NewRequest(http.MethodGet, "/ws/boards/kitchen", nil)
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://cafe.example")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))
}
