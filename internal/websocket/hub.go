package websocket

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/hearthside/companion/domain/repositories"
	"github.com/hearthside/companion/live"
	"github.com/hearthside/companion/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 2 * 1024 * 1024 // relayed video frames are large

	// How long to wait for the dashboard to acquire its devices.
	captureTimeout = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The server binds to localhost; the dashboard is served from
		// the same origin.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Options carries the session parameters shared by every client.
type Options struct {
	Model            string
	Voice            string
	OutputSampleRate int
	FrameInterval    time.Duration
	Stats            live.Stats
}

// Hub maintains the set of connected dashboard clients and enforces
// that at most one companion session runs across all of them.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients and the active session
	// holder.
	mu     sync.RWMutex
	active *Client

	endpoint repositories.LiveEndpoint
	status   *usecase.StatusService
	opts     Options

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(
	endpoint repositories.LiveEndpoint,
	status *usecase.StatusService,
	opts Options,
	logger *zap.Logger,
) *Hub {
	if opts.OutputSampleRate == 0 {
		opts.OutputSampleRate = 24000
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		endpoint:   endpoint,
		status:     status,
		opts:       opts,
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.closeSend()
			}
			if h.active == client {
				h.active = nil
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))
		}
	}
}

// acquireSession claims the single session slot for a client. It fails
// when another client already holds it; re-claiming your own slot is
// fine, the session's own idle guard handles double starts.
func (h *Hub) acquireSession(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active != nil && h.active != c {
		return false
	}
	h.active = c
	return true
}

func (h *Hub) releaseSession(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active == c {
		h.active = nil
	}
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is one connected dashboard. It relays device capture up to
// the session and scheduled playback back down, so it doubles as the
// session's capture source and playback sink.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	id     string
	logger *zap.Logger

	// The companion session owned by this connection.
	session *live.Session

	// Capture handshake and relay state.
	mutex       sync.Mutex
	captureAck  chan error
	stream      *relayStream
	indicatorOn bool
	closed      bool
}

// HandleWebSocket handles websocket requests from the dashboard.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan WriteData, 256),
		id:     uuid.New().String(),
		logger: logger,
	}
	client.session = live.NewSession(
		live.Config{
			Model:            hub.opts.Model,
			Voice:            hub.opts.Voice,
			OutputSampleRate: hub.opts.OutputSampleRate,
			FrameInterval:    hub.opts.FrameInterval,
			Stats:            hub.opts.Stats,
			OnState:          client.onSessionState,
		},
		client,
		hub.endpoint,
		client,
		logger,
	)

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection into the
// session.
func (c *Client) readPump() {
	defer func() {
		c.session.Stop()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processAudioFrame(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage dispatches one control message from the dashboard.
func (c *Client) processMessage(message []byte) {
	msg, err := DecodeMessage(message)
	if err != nil {
		c.logger.Error("Failed to parse message", zap.Error(err))
		c.sendJSON(CreateErrorMessage("bad_message", err.Error()))
		return
	}

	switch m := msg.(type) {
	case *SessionStartMessage:
		// Start blocks on the capture handshake, which is answered on
		// this read loop, so it has to run elsewhere.
		go c.startSession()
	case *SessionStopMessage:
		c.session.Stop()
	case *CaptureReadyMessage:
		c.resolveCapture(nil)
	case *CaptureErrorMessage:
		c.resolveCapture(errors.New(m.Message))
	case *VideoFrameMessage:
		c.handleVideoFrame(m)
	}
}

// startSession claims the session slot, seeds the persona instruction
// with the current dashboard snapshot, and starts the session.
func (c *Client) startSession() {
	if !c.hub.acquireSession(c) {
		c.sendJSON(CreateErrorMessage("session_active", "another companion session is already running"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap, err := c.hub.status.Snapshot(ctx)
	if err != nil {
		c.logger.Error("Failed to build status snapshot", zap.Error(err))
		// Start anyway; the companion just opens without dashboard
		// context.
	}
	instruction := c.hub.status.BuildInstruction(snap, time.Now())

	if err := c.session.Start(ctx, instruction); err != nil {
		if errors.Is(err, live.ErrSessionActive) {
			// Already running for this client; nothing to do.
			return
		}
		c.hub.releaseSession(c)
		c.logger.Error("Failed to start companion session", zap.Error(err))
		c.sendJSON(CreateNoticeMessage("The companion could not start: " + err.Error()))
	}
}

// onSessionState forwards state transitions to the dashboard and frees
// the session slot once the session is idle again.
func (c *Client) onSessionState(state live.State) {
	if state == live.StateIdle {
		c.hub.releaseSession(c)
	}
	c.sendJSON(CreateSessionStateMessage(state))
}

// Acquire implements the session's capture source: it asks the
// dashboard to bring up mic and camera and waits for the answer.
func (c *Client) Acquire(ctx context.Context, constraints live.CaptureConstraints) (live.CaptureStream, error) {
	ack := make(chan error, 1)
	c.mutex.Lock()
	c.captureAck = ack
	c.mutex.Unlock()

	c.sendJSON(&CaptureRequestMessage{
		BaseMessage: BaseMessage{Type: MessageTypeCaptureRequest},
		Constraints: constraints,
	})

	select {
	case err := <-ack:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(captureTimeout):
		return nil, errors.New("timed out waiting for device acquisition")
	}

	stream := newRelayStream(func() {
		c.sendJSON(&CaptureStopMessage{BaseMessage: BaseMessage{Type: MessageTypeCaptureStop}})
	})

	c.mutex.Lock()
	c.captureAck = nil
	c.stream = stream
	c.mutex.Unlock()
	return stream, nil
}

// resolveCapture completes a pending Acquire.
func (c *Client) resolveCapture(err error) {
	c.mutex.Lock()
	ack := c.captureAck
	c.captureAck = nil
	c.mutex.Unlock()

	if ack == nil {
		c.logger.Warn("Capture answer with no pending request")
		return
	}
	ack <- err
}

// processAudioFrame relays one binary frame of raw little-endian
// float32 samples into the capture stream.
func (c *Client) processAudioFrame(data []byte) {
	if len(data) == 0 || len(data)%4 != 0 {
		c.logger.Warn("Dropping malformed audio frame", zap.Int("size", len(data)))
		return
	}

	c.mutex.Lock()
	stream := c.stream
	c.mutex.Unlock()
	if stream == nil {
		return
	}

	samples := make([]float32, len(data)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	if !stream.pushAudio(samples) {
		c.logger.Debug("Audio frame buffer full, dropping frame")
	}
}

// handleVideoFrame stores the relayed camera image for the sampler.
func (c *Client) handleVideoFrame(msg *VideoFrameMessage) {
	c.mutex.Lock()
	stream := c.stream
	c.mutex.Unlock()
	if stream == nil {
		return
	}

	img, err := decodeVideoFrame(msg)
	if err != nil {
		c.logger.Warn("Dropping malformed video frame", zap.Error(err))
		return
	}
	stream.setFrame(img)
}

// Play implements the session's playback sink: each scheduled chunk
// goes down to the dashboard with its playback slot attached.
func (c *Client) Play(chunk live.ScheduledChunk) {
	c.sendJSON(CreateAudioOutMessage(
		base64.StdEncoding.EncodeToString(chunk.PCM),
		c.hub.opts.OutputSampleRate,
		chunk,
	))
	c.markOutputActive()
}

// markOutputActive lights the speaking indicator and arranges for it
// to go out once the scheduled audio window closes.
func (c *Client) markOutputActive() {
	if c.session == nil {
		return
	}
	c.mutex.Lock()
	if c.indicatorOn {
		c.mutex.Unlock()
		return
	}
	c.indicatorOn = true
	c.mutex.Unlock()

	c.sendJSON(CreateOutputActiveMessage(true))
	go c.watchOutputActive()
}

func (c *Client) watchOutputActive() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		c.mutex.Lock()
		closed := c.closed
		c.mutex.Unlock()
		if !closed && c.session.OutputActive() {
			continue
		}
		c.mutex.Lock()
		c.indicatorOn = false
		c.mutex.Unlock()
		c.sendJSON(CreateOutputActiveMessage(false))
		return
	}
}

// closeSend marks the client closed and releases its send channel.
// Only the hub's unregister path calls this; everything else goes
// through sendJSON, which checks the flag under the same mutex.
func (c *Client) closeSend() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// sendJSON queues one text message, dropping it if the client has
// disconnected or its send buffer is full. Session callbacks and the
// indicator watcher can outlive the read pump, so the closed check and
// the channel send share the client mutex with closeSend.
func (c *Client) sendJSON(msg interface{}) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to encode message", zap.Error(err))
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Client send buffer full, dropping message")
	}
}
