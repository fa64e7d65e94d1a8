package websocket

import (
	"io"
	"sync"

	"nft-market/pkg/logger"

	"github.com/gorilla/websocket"
)

// Connection wraps a gorilla websocket connection for one auction watcher.
// Writes are serialized; gorilla connections allow a single concurrent
// writer.
type Connection struct {
	conn      *websocket.Conn
	account   string
	auctionID uint64
	writeMu   sync.Mutex
	log       logger.Logger
}

func NewConnection(conn *websocket.Conn, account string, auctionID uint64, log logger.Logger) *Connection {
	return &Connection{
		conn:      conn,
		account:   account,
		auctionID: auctionID,
		log:       log,
	}
}

func (c *Connection) Send(message interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(message)
}

// NextReader exposes the read side so callers can detect a departed peer.
func (c *Connection) NextReader() (int, io.Reader, error) {
	return c.conn.NextReader()
}

func (c *Connection) Close() error {
	return c.conn.Close()
}

func (c *Connection) Account() string {
	return c.account
}

func (c *Connection) AuctionID() uint64 {
	return c.auctionID
}
