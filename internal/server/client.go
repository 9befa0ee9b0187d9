package server

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gillesie/tankwars-online/internal/protocol"
	"github.com/gillesie/tankwars-online/internal/room"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 60 // state reports arrive at 30/s
)

var (
	ErrSlowClient   = errors.New("client send buffer full")
	ErrClientClosed = errors.New("client closed")
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan protocol.Frame
	remoteAddr string
	log        zerolog.Logger
	// owned by ReadPump until it hands the client to the hub
	room       *room.Room
	playerID   string
	msgCount   int
	msgResetAt time.Time
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan protocol.Frame, sendBufSize),
		remoteAddr: remoteAddr,
		log:        hub.log.With().Str("ip", remoteAddr).Logger(),
	}
}

// Send queues a frame without blocking; a full buffer drops it
func (c *Client) Send(f protocol.Frame) (err error) {
	defer func() {
		if recover() != nil {
			err = ErrClientClosed
		}
	}()
	select {
	case c.send <- f:
		return nil
	default:
		return ErrSlowClient
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("ws error")
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			c.log.Warn().Msg("rate limit exceeded, disconnecting")
			break
		}

		if msgType != websocket.TextMessage {
			continue
		}
		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			kind := websocket.TextMessage
			if frame.Binary {
				kind = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(kind, frame.Data); err != nil {
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

func (c *Client) sendMsg(t string, payload interface{}) {
	frame, err := protocol.TextFrame(t, payload)
	if err != nil {
		c.log.Error().Err(err).Msg("encode")
		return
	}
	c.Send(frame)
}

// handleMessage routes lobby messages here and everything else to the room
func (c *Client) handleMessage(raw []byte) {
	env, err := protocol.DecodeEnvelope(raw)
	if err != nil {
		c.log.Debug().Err(err).Msg("unmarshal error")
		return
	}

	switch env.T {
	case protocol.MsgList:
		c.sendMsg(protocol.MsgRoomList, c.hub.rooms.List())
	case protocol.MsgJoin:
		c.handleJoin(env)
	case protocol.MsgLeave:
		c.handleLeave()
	default:
		if c.room != nil {
			c.room.Dispatch(c.playerID, env)
		}
	}
}

func (c *Client) handleJoin(env protocol.InEnvelope) {
	msg, err := protocol.DecodePayload[protocol.JoinMsg](env)
	if err != nil {
		return
	}
	if c.room != nil {
		c.handleLeave()
	}
	r, id, err := c.hub.rooms.Join(c, msg)
	if err != nil {
		c.sendMsg(protocol.MsgError, protocol.ErrorMsg{Msg: err.Error()})
		return
	}
	c.room = r
	c.playerID = id
}

func (c *Client) handleLeave() {
	if c.room == nil {
		return
	}
	c.room.Leave(c.playerID)
	c.room = nil
	c.playerID = ""
	c.hub.rooms.Subscribe(c)
}
