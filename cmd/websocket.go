package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"doulitsa/internal/apperr"
	"doulitsa/internal/handlers"
	"doulitsa/internal/realtime"
)

const (
	readLimit          = 64 << 10
	readDeadline       = 120 * time.Second // extended by every pong
	writeDeadline      = 5 * time.Second
	pingInterval       = 15 * time.Second
	firstHelloDeadline = 30 * time.Second // time allowed for the {"token"} frame
	sendBuffer         = 32
)

// wsEvent is what subscribers receive for every matching row change.
type wsEvent struct {
	Event  string         `json:"event"`
	Table  string         `json:"table"`
	Record map[string]any `json:"record"`
}

// wsControl answers subscribe and unsubscribe frames.
type wsControl struct {
	Type    string `json:"type"`
	ChatID  int64  `json:"chat_id,omitempty"`
	Message string `json:"message,omitempty"`
}

type wsFrame struct {
	Type   string `json:"type"`
	ChatID int64  `json:"chat_id"`
}

type wsClient struct {
	userID int64
	conn   *websocket.Conn
	send   chan any
	done   chan struct{}
	once   sync.Once

	mu   sync.Mutex
	subs map[int64][]func()
}

func newWSClient(userID int64, conn *websocket.Conn) *wsClient {
	return &wsClient{
		userID: userID,
		conn:   conn,
		send:   make(chan any, sendBuffer),
		done:   make(chan struct{}),
		subs:   make(map[int64][]func()),
	}
}

// enqueue never blocks the feed. A client that cannot keep up is closed.
func (c *wsClient) enqueue(v any) {
	select {
	case <-c.done:
	case c.send <- v:
	default:
		c.close()
	}
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *wsClient) subscribed(chatID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[chatID]
	return ok
}

func (c *wsClient) addSubs(chatID int64, unsubs ...func()) {
	c.mu.Lock()
	c.subs[chatID] = append(c.subs[chatID], unsubs...)
	c.mu.Unlock()
}

func (c *wsClient) dropSubs(chatID int64) {
	c.mu.Lock()
	unsubs := c.subs[chatID]
	delete(c.subs, chatID)
	c.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

func (c *wsClient) dropAll() {
	c.mu.Lock()
	all := c.subs
	c.subs = make(map[int64][]func())
	c.mu.Unlock()
	for _, unsubs := range all {
		for _, u := range unsubs {
			u()
		}
	}
}

// WebSocketManager owns the set of connected clients. All map access happens
// in Run.
type WebSocketManager struct {
	clients    map[int64]map[*wsClient]struct{}
	register   chan *wsClient
	unregister chan *wsClient
	stopped    chan struct{}
	online     atomic.Int64
	log        logrus.FieldLogger
}

func NewWebSocketManager(log logrus.FieldLogger) *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[int64]map[*wsClient]struct{}),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		stopped:    make(chan struct{}),
		log:        log,
	}
}

func (ws *WebSocketManager) Run(ctx context.Context) {
	defer close(ws.stopped)
	for {
		select {
		case <-ctx.Done():
			for _, set := range ws.clients {
				for c := range set {
					c.close()
				}
			}
			ws.clients = make(map[int64]map[*wsClient]struct{})
			ws.online.Store(0)
			return

		case c := <-ws.register:
			set, ok := ws.clients[c.userID]
			if !ok {
				set = make(map[*wsClient]struct{})
				ws.clients[c.userID] = set
			}
			set[c] = struct{}{}
			ws.online.Add(1)
			ws.log.WithField("user_id", c.userID).Debug("ws register")

		case c := <-ws.unregister:
			set := ws.clients[c.userID]
			if _, ok := set[c]; !ok {
				continue
			}
			delete(set, c)
			if len(set) == 0 {
				delete(ws.clients, c.userID)
			}
			ws.online.Add(-1)
			ws.log.WithField("user_id", c.userID).Debug("ws unregister")
		}
	}
}

// add and remove give up once Run has returned.
func (ws *WebSocketManager) add(c *wsClient) bool {
	select {
	case ws.register <- c:
		return true
	case <-ws.stopped:
		return false
	}
}

func (ws *WebSocketManager) remove(c *wsClient) {
	select {
	case ws.unregister <- c:
	case <-ws.stopped:
	}
}

// Online is the number of open connections.
func (ws *WebSocketManager) Online() int64 { return ws.online.Load() }

var upgrader = websocket.Upgrader{
	ReadBufferSize:    1024,
	WriteBufferSize:   1024,
	EnableCompression: true,
}

// WebSocketHandler expects {"token": "<realtime jwt>"} as the first frame,
// then {"type":"subscribe","chat_id":N} or {"type":"unsubscribe","chat_id":N}.
func (app *application) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if app.chatService == nil || app.feed == nil {
		handlers.WriteError(w, r, apperr.ErrUnavailable)
		return
	}

	up := upgrader
	up.CheckOrigin = app.checkOrigin
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		app.log.WithError(err).Warn("websocket upgrade")
		return
	}

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(firstHelloDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	var hello struct {
		Token string `json:"token"`
	}
	if err := conn.ReadJSON(&hello); err != nil || hello.Token == "" {
		_ = writeClose(conn, websocket.ClosePolicyViolation, "token required")
		_ = conn.Close()
		return
	}
	userID, _, err := app.tokens.Parse(hello.Token)
	if err != nil {
		_ = writeClose(conn, websocket.ClosePolicyViolation, "invalid token")
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))

	client := newWSClient(userID, conn)
	if !app.wsManager.add(client) {
		_ = writeClose(conn, websocket.CloseGoingAway, "shutting down")
		_ = conn.Close()
		return
	}
	client.enqueue(wsControl{Type: "ready"})

	go writePump(client)
	app.readPump(r.Context(), client)
}

func (app *application) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range app.cfg.Server.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// writePump is the only writer on the connection.
func writePump(c *wsClient) {
	t := time.NewTicker(pingInterval)
	defer func() {
		t.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = writeClose(c.conn, websocket.CloseGoingAway, "bye")
			return
		case v := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteJSON(v); err != nil {
				c.close()
				return
			}
		case <-t.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (app *application) readPump(ctx context.Context, c *wsClient) {
	defer func() {
		c.dropAll()
		c.close()
		app.wsManager.remove(c)
	}()

	for {
		var frame wsFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			return
		}
		switch frame.Type {
		case "subscribe":
			if err := app.subscribeChat(ctx, c, frame.ChatID); err != nil {
				c.enqueue(wsControl{Type: "error", ChatID: frame.ChatID, Message: apperr.Message(err)})
				continue
			}
			c.enqueue(wsControl{Type: "subscribed", ChatID: frame.ChatID})
		case "unsubscribe":
			c.dropSubs(frame.ChatID)
			c.enqueue(wsControl{Type: "unsubscribed", ChatID: frame.ChatID})
		default:
			c.enqueue(wsControl{Type: "error", Message: apperr.MsgBadRequest})
		}
	}
}

// subscribeChat forwards message and read-marker changes of one chat.
func (app *application) subscribeChat(ctx context.Context, c *wsClient, chatID int64) error {
	if chatID <= 0 {
		return apperr.ErrBadRequest
	}
	if c.subscribed(chatID) {
		return nil
	}
	ok, err := app.chatService.IsMember(ctx, chatID, c.userID)
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return apperr.ErrForbidden
	}

	filter, err := realtime.ParseFilter(fmt.Sprintf("chat_id=eq.%d", chatID))
	if err != nil {
		return apperr.Internal(err)
	}
	forward := func(ch realtime.Change) {
		c.enqueue(wsEvent{Event: ch.Type, Table: ch.Table, Record: ch.Row()})
	}
	c.addSubs(chatID,
		app.feed.Subscribe(realtime.Subscription{Table: "messages", Event: realtime.EventAll, Filter: &filter}, forward),
		app.feed.Subscribe(realtime.Subscription{Table: "chat_members", Event: realtime.EventUpdate, Filter: &filter}, forward),
	)
	return nil
}

func writeClose(conn *websocket.Conn, code int, reason string) error {
	return conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeDeadline),
	)
}
