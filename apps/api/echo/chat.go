package echoapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/chat"
	"github.com/trezcool/darasa/core/user"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type chatApi struct {
	svc     chat.ServiceInterface
	userSvc user.ServiceInterface
	logger  core.Logger
	hub     *chatHub
}

func registerChatAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *server) {
	api := chatApi{
		svc:     s.deps.ChatSvc,
		userSvc: s.deps.UserSvc,
		logger:  s.deps.Logger,
		hub:     newChatHub(),
	}
	go api.hub.run()

	cg := g.Group("/chat", jwt)
	cg.GET("/messages", api.history)
	cg.POST("/messages", api.post)
	cg.GET("/ws", api.serveWS)
}

// Handlers

func (api *chatApi) history(ctx echo.Context) error {
	ms, err := api.svc.List()
	if err != nil {
		return errors.Wrap(err, "listing messages")
	}
	if ms == nil {
		ms = []chat.Message{}
	}
	return ctx.JSON(http.StatusOK, ms)
}

// post persists a message and fans it out to connected websocket clients.
func (api *chatApi) post(ctx echo.Context) error {
	var data PostMessageRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PostMessageRequest")
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	m, err := api.svc.Post(usr, data.Text)
	if err != nil {
		return errors.Wrap(err, "posting message")
	}
	api.hub.broadcastMessage(m)
	return ctx.JSON(http.StatusCreated, m)
}

func (api *chatApi) serveWS(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "upgrading connection")
	}

	client := &chatClient{
		hub:  api.hub,
		api:  api,
		usr:  usr,
		conn: conn,
		send: make(chan []byte, 16),
	}
	api.hub.register <- client

	go client.writePump()
	go client.readPump()
	return nil
}

type PostMessageRequest struct {
	Text string `json:"text"`
}

// chatHub fans chat messages out to all connected clients.
type chatHub struct {
	clients    map[*chatClient]struct{}
	broadcast  chan []byte
	register   chan *chatClient
	unregister chan *chatClient
}

func newChatHub() *chatHub {
	return &chatHub{
		clients:    make(map[*chatClient]struct{}),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *chatClient),
		unregister: make(chan *chatClient),
	}
}

func (h *chatHub) run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case payload := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- payload:
				default: // slow client; drop it
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

func (h *chatHub) broadcastMessage(m chat.Message) {
	if payload, err := json.Marshal(m); err == nil {
		h.broadcast <- payload
	}
}

type chatClient struct {
	hub  *chatHub
	api  *chatApi
	usr  user.User
	conn *websocket.Conn
	send chan []byte
}

// readPump reads inbound frames, persists each as a chat message and fans it out.
func (c *chatClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var data PostMessageRequest
		if err = json.Unmarshal(payload, &data); err != nil {
			continue
		}
		m, err := c.api.svc.Post(c.usr, data.Text)
		if err != nil {
			c.api.logger.Warn("dropping chat message: " + err.Error())
			continue
		}
		c.hub.broadcastMessage(m)
	}
}

func (c *chatClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
