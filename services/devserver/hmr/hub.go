// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package hmr

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/swissjs/swite/services/devserver/datatypes"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The dev server is loopback-only; any page it served may
		// connect.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

const (
	writeWait      = 5 * time.Second
	pingInterval   = 30 * time.Second
	clientSendSize = 64
)

// Hub owns the set of connected push-channel subscribers and fans each
// update message out to all of them.
//
// Broadcast never blocks on a slow subscriber: a client whose send
// buffer is full is dropped, and its browser triggers a full reload on
// reconnect.
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan datatypes.UpdateMessage
	hub  *Hub

	sendMu sync.Mutex
	closed bool
}

// trySend queues msg without blocking. The boolean is false when the
// client's buffer is full and it should be dropped.
func (cl *client) trySend(msg datatypes.UpdateMessage) bool {
	cl.sendMu.Lock()
	defer cl.sendMu.Unlock()
	if cl.closed {
		return true
	}
	select {
	case cl.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound queue exactly once.
func (cl *client) closeSend() {
	cl.sendMu.Lock()
	defer cl.sendMu.Unlock()
	if !cl.closed {
		cl.closed = true
		close(cl.send)
	}
}

// NewHub creates an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{log: log, clients: make(map[string]*client)}
}

// Handler returns the gin handler that upgrades a request to a push
// connection and registers the subscriber.
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.log.Warn("websocket upgrade failed", "error", err)
			return
		}
		cl := &client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan datatypes.UpdateMessage, clientSendSize),
			hub:  h,
		}

		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			_ = conn.Close()
			return
		}
		h.clients[cl.id] = cl
		count := len(h.clients)
		h.mu.Unlock()

		h.log.Info("push client connected", "client", cl.id, "subscribers", count)
		go cl.writePump()
		go cl.readPump()
	}
}

// Broadcast sends one classified change to every subscriber.
func (h *Hub) Broadcast(ev datatypes.ChangeEvent) {
	msg := datatypes.NewUpdateMessage(ev)

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, cl := range h.clients {
		targets = append(targets, cl)
	}
	h.mu.RUnlock()

	for _, cl := range targets {
		if !cl.trySend(msg) {
			h.log.Warn("dropping slow push client", "client", cl.id)
			h.drop(cl)
		}
	}
}

// Subscribers reports the current connection count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, cl := range h.clients {
		clients = append(clients, cl)
	}
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, cl := range clients {
		cl.closeSend()
	}
}

func (h *Hub) drop(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, cl.id)
	h.mu.Unlock()
	cl.closeSend()
}

// writePump serializes all writes to the connection: queued updates and
// keepalive pings.
func (cl *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			if !ok {
				_ = cl.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteJSON(msg); err != nil {
				cl.hub.drop(cl)
				return
			}
		case <-ticker.C:
			if err := cl.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				cl.hub.drop(cl)
				return
			}
		}
	}
}

// readPump discards inbound frames and detects disconnects.
func (cl *client) readPump() {
	cl.conn.SetReadLimit(1024)
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			cl.hub.drop(cl)
			return
		}
	}
}
