// Package wsmon serves live telemetry over WebSocket as JSON text
// frames, so a browser dashboard can watch a robot without speaking
// the serial protocol.
package wsmon

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"morse/pkg/protocol"
)

type Config struct {
	Addr    string
	Name    string
	SendBuf int
}

func DefaultConfig() Config {
	return Config{
		Addr:    "127.0.0.1:8765",
		Name:    "morse",
		SendBuf: 64,
	}
}

// Source is the telemetry feed the server drains, usually the session
// engine or its robot façade.
type Source interface {
	Subscribe() chan protocol.Event
	Unsubscribe(chan protocol.Event)
}

type Server struct {
	cfg     Config
	src     Source
	clients map[*client]struct{}
	mu      sync.RWMutex
}

type client struct {
	conn  *websocket.Conn
	send  chan []byte
	kinds map[string]struct{}
	all   bool
	mu    sync.RWMutex
	once  sync.Once
}

func NewServer(cfg Config, src Source) *Server {
	defaults := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = defaults.Addr
	}
	if cfg.Name == "" {
		cfg.Name = defaults.Name
	}
	if cfg.SendBuf <= 0 {
		cfg.SendBuf = defaults.SendBuf
	}
	return &Server{
		cfg:     cfg,
		src:     src,
		clients: make(map[*client]struct{}),
	}
}

func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)

	httpServer := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: mux,
	}

	if s.src != nil {
		sub := s.src.Subscribe()
		defer s.src.Unsubscribe(sub)
		go s.broadcastLoop(ctx, sub)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := newClient(conn, s.cfg.SendBuf)
	s.addClient(c)

	if err := conn.WriteJSON(s.hello()); err != nil {
		c.close()
		s.removeClient(c)
		return
	}

	go c.writeLoop()
	c.readLoop()

	c.close()
	s.removeClient(c)
}

func (s *Server) hello() HelloMsg {
	sensors := make([]string, 0, len(protocol.SensorKinds()))
	for _, kind := range protocol.SensorKinds() {
		sensors = append(sensors, string(kind))
	}
	return HelloMsg{
		Op:        OpHello,
		Name:      s.cfg.Name,
		Sensors:   sensors,
		Commands:  protocol.CommandNames(),
		SessionID: fmt.Sprintf("%d", time.Now().UTC().UnixNano()),
	}
}

func (s *Server) broadcastLoop(ctx context.Context, sub <-chan protocol.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			s.broadcastEvent(ev)
		}
	}
}

func (s *Server) broadcastEvent(ev protocol.Event) {
	payload, err := json.Marshal(eventMsg(ev))
	if err != nil {
		return
	}
	for _, c := range s.snapshotClients() {
		if c.wants(ev) {
			c.trySend(payload)
		}
	}
}

func eventMsg(ev protocol.Event) EventMsg {
	ts := ev.ReceivedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	msg := EventMsg{
		Op:         OpEvent,
		TS:         ts.UTC().Format(time.RFC3339Nano),
		Kind:       ev.Kind.String(),
		Sensor:     string(ev.Sensor),
		PayloadHex: hex.EncodeToString(ev.Payload),
		Data:       ev.Data,
	}
	if ev.Op != 0 {
		msg.Opcode = fmt.Sprintf("0x%02x", uint8(ev.Op))
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	return msg
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (s *Server) snapshotClients() []*client {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()
	return clients
}

func newClient(conn *websocket.Conn, sendBuf int) *client {
	if sendBuf <= 0 {
		sendBuf = DefaultConfig().SendBuf
	}
	return &client{
		conn:  conn,
		send:  make(chan []byte, sendBuf),
		kinds: make(map[string]struct{}),
		all:   true,
	}
}

func (c *client) readLoop() {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var header struct {
			Op string `json:"op"`
		}
		if err := json.Unmarshal(data, &header); err != nil {
			continue
		}

		switch header.Op {
		case OpSubscribe:
			var msg SubscribeMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			c.subscribe(msg.Kinds)
		case OpUnsubscribe:
			var msg UnsubscribeMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			c.unsubscribe(msg.Kinds)
		}
	}
}

func (c *client) subscribe(kinds []string) {
	c.mu.Lock()
	if len(kinds) == 0 {
		c.all = true
		c.kinds = make(map[string]struct{})
	} else {
		c.all = false
		for _, kind := range kinds {
			c.kinds[kind] = struct{}{}
		}
	}
	c.mu.Unlock()
}

func (c *client) unsubscribe(kinds []string) {
	c.mu.Lock()
	if len(kinds) == 0 {
		c.all = false
		c.kinds = make(map[string]struct{})
	} else {
		for _, kind := range kinds {
			delete(c.kinds, kind)
		}
	}
	c.mu.Unlock()
}

// wants reports whether this client's filter passes the event.
// Protocol errors always pass; hiding decode trouble from a monitor
// would defeat its point.
func (c *client) wants(ev protocol.Event) bool {
	if ev.Kind == protocol.EventProtocolError {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.all {
		return true
	}
	_, ok := c.kinds[string(ev.Sensor)]
	return ok
}

func (c *client) writeLoop() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.close()
			return
		}
	}
}

func (c *client) trySend(msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}
