package boards

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/httpx"
	"github.com/bhavnindersingh/RecipeManager/internal/realtime"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Authenticator resolves a bearer token to a session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Session, error)
}

// feedScreens lists, per change feed table, the screens allowed to follow it.
var feedScreens = map[string][]auth.Screen{
	realtime.TableOrders:            {auth.ScreenPOS, auth.ScreenServer, auth.ScreenKDS, auth.ScreenTables, auth.ScreenDashboard},
	realtime.TableOrderItems:        {auth.ScreenPOS, auth.ScreenServer, auth.ScreenKDS},
	realtime.TablePayments:          {auth.ScreenPOS, auth.ScreenTables, auth.ScreenDashboard},
	realtime.TableTables:            {auth.ScreenPOS, auth.ScreenServer, auth.ScreenTables},
	realtime.TableIngredients:       {auth.ScreenIngredients, auth.ScreenRecipes, auth.ScreenStock},
	realtime.TableRecipes:           {auth.ScreenRecipes, auth.ScreenPOS},
	realtime.TableStockTransactions: {auth.ScreenStock},
	realtime.TableIngredientStock:   {auth.ScreenStock, auth.ScreenIngredients},
	realtime.TableStockAlerts:       {auth.ScreenStock, auth.ScreenIngredients, auth.ScreenDashboard},
}

type GatewayOptions struct {
	// AllowedOrigins is the comma separated CORS list; "*" allows any.
	AllowedOrigins string
	WriteWait      time.Duration
	PingInterval   time.Duration
	PongWait       time.Duration
}

func (o *GatewayOptions) defaults() {
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
}

// Gateway serves boards and the raw change feed over websockets. It runs on
// net/http because upgrading needs a hijackable connection.
type Gateway struct {
	auth     Authenticator
	boards   *Registry
	hub      *realtime.Hub
	opts     GatewayOptions
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewGateway(a Authenticator, reg *Registry, hub *realtime.Hub, opts GatewayOptions, log *zap.Logger) *Gateway {
	opts.defaults()
	g := &Gateway{auth: a, boards: reg, hub: hub, opts: opts, log: log}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return g
}

func originChecker(allowed string) func(*http.Request) bool {
	set := map[string]bool{}
	for _, o := range strings.Split(allowed, ",") {
		if o = strings.TrimSpace(o); o != "" {
			set[o] = true
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

func (g *Gateway) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws/boards/{name}", g.serveBoard).Methods(http.MethodGet)
	r.HandleFunc("/ws/changes/{table}", g.serveChanges).Methods(http.MethodGet)
	return r
}

func (g *Gateway) session(r *http.Request) (*auth.Session, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return nil, apperr.Unauthorized("Missing token", string(auth.ScreenLogin))
	}
	return g.auth.Authenticate(r.Context(), token)
}

func (g *Gateway) serveBoard(w http.ResponseWriter, r *http.Request) {
	sess, err := g.session(r)
	if err != nil {
		g.fail(w, err)
		return
	}
	b, ok := g.boards.Get(mux.Vars(r)["name"])
	if !ok {
		g.fail(w, apperr.NotFound("Board not found"))
		return
	}
	if !b.Allows(sess.Role) {
		g.fail(w, apperr.Forbidden("You do not have access to this board", string(auth.DefaultScreen(sess.Role))))
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client.
		g.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	updates, stop := b.Listen()
	defer stop()
	first := b.Snapshot()
	g.log.Debug("board client connected", zap.String("board", b.Name()), zap.Uint("user_id", sess.UserID))
	serve(conn, g.opts, &first, updates)
}

func (g *Gateway) serveChanges(w http.ResponseWriter, r *http.Request) {
	sess, err := g.session(r)
	if err != nil {
		g.fail(w, err)
		return
	}
	table := mux.Vars(r)["table"]
	screens, ok := feedScreens[table]
	if !ok {
		g.fail(w, apperr.NotFound("Unknown table %q", table))
		return
	}
	if !anyScreen(sess, screens) {
		g.fail(w, apperr.Forbidden("You do not have access to this feed", string(auth.DefaultScreen(sess.Role))))
		return
	}
	q := r.URL.Query()
	filter := realtime.Filter{Column: q.Get("column"), Value: q.Get("value")}
	if (filter.Column == "") != (filter.Value == "") {
		g.fail(w, apperr.Validation("column and value must be given together"))
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	sub := g.hub.Subscribe(table, filter, realtime.DefaultBuffer)
	defer g.hub.Unsubscribe(sub)
	serve[realtime.Event](conn, g.opts, nil, sub.Events())
}

func anyScreen(sess *auth.Session, screens []auth.Screen) bool {
	for _, s := range screens {
		if auth.CanAccess(sess.Role, s) {
			return true
		}
	}
	return false
}

func (g *Gateway) fail(w http.ResponseWriter, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		g.log.Error("websocket handshake", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Unexpected server error"})
		return
	}
	body := map[string]string{"error": ae.Message}
	if ae.Redirect != "" {
		body["redirect"] = ae.Redirect
	}
	writeJSON(w, httpx.Status(ae.Kind), body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// serve is the connection's only writer. It sends first (when set), then
// every value from src until src closes or the client goes away. A reader
// goroutine drains client frames so pongs and close frames are seen.
func serve[T any](conn *websocket.Conn, o GatewayOptions, first *T, src <-chan T) {
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(o.PongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(o.PongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(v T) error {
		_ = conn.SetWriteDeadline(time.Now().Add(o.WriteWait))
		return conn.WriteJSON(v)
	}
	if first != nil {
		if err := send(*first); err != nil {
			return
		}
	}

	ping := time.NewTicker(o.PingInterval)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case v, ok := <-src:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(o.WriteWait))
				return
			}
			if err := send(v); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(o.WriteWait)); err != nil {
				return
			}
		}
	}
}
