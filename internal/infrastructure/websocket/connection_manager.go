package websocket

import (
	"sync"

	"nft-market/internal/domain"
	"nft-market/pkg/logger"
)

// ConnectionManager tracks live watcher connections per auction and per
// account.
type ConnectionManager struct {
	connections map[uint64]map[string]domain.WebSocketConnection // auctionID -> account -> connection
	byAccount   map[string][]domain.WebSocketConnection
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[uint64]map[string]domain.WebSocketConnection),
		byAccount:   make(map[string][]domain.WebSocketConnection),
		log:         log,
	}
}

func (cm *ConnectionManager) RegisterConnection(account string, auctionID uint64, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.connections[auctionID] == nil {
		cm.connections[auctionID] = make(map[string]domain.WebSocketConnection)
	}
	cm.connections[auctionID][account] = conn

	cm.byAccount[account] = append(cm.byAccount[account], conn)

	cm.log.Info("Connection registered", "account", account, "auction_id", auctionID)
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(account string, auctionID uint64) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if auctionConns, exists := cm.connections[auctionID]; exists {
		delete(auctionConns, account)
		if len(auctionConns) == 0 {
			delete(cm.connections, auctionID)
		}
	}

	if accountConns, exists := cm.byAccount[account]; exists {
		var remaining []domain.WebSocketConnection
		for _, existing := range accountConns {
			if existing.AuctionID() != auctionID {
				remaining = append(remaining, existing)
			}
		}

		if len(remaining) == 0 {
			delete(cm.byAccount, account)
		} else {
			cm.byAccount[account] = remaining
		}
	}

	cm.log.Info("Connection unregistered", "account", account, "auction_id", auctionID)
	return nil
}

func (cm *ConnectionManager) BroadcastToAuction(auctionID uint64, message interface{}) error {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	for account, conn := range cm.connections[auctionID] {
		if err := conn.Send(message); err != nil {
			cm.log.Error("Failed to send to connection", "account", account, "auction_id", auctionID, "error", err)
		}
	}
	return nil
}

func (cm *ConnectionManager) NotifyAccount(account string, message interface{}) error {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	for _, conn := range cm.byAccount[account] {
		if err := conn.Send(message); err != nil {
			cm.log.Error("Failed to notify account", "account", account, "error", err)
		}
	}
	return nil
}
