package handlers

import (
	"net/http"
	"time"

	"nft-market/internal/domain"
	"nft-market/internal/infrastructure/websocket"
	"nft-market/internal/services"
	"nft-market/pkg/logger"

	gorilla "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = gorilla.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// FeedHandler upgrades watchers to a websocket and streams the market events
// of one auction to them. The feed is one-way; bids go through the HTTP API.
type FeedHandler struct {
	market      *services.Marketplace
	connManager *websocket.ConnectionManager
	log         logger.Logger
}

func NewFeedHandler(market *services.Marketplace, connManager *websocket.ConnectionManager, log logger.Logger) *FeedHandler {
	return &FeedHandler{
		market:      market,
		connManager: connManager,
		log:         log,
	}
}

func (h *FeedHandler) HandleConnection(c echo.Context) error {
	auctionID, err := parseAuctionID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid auction id"})
	}

	auction, err := h.market.GetAuction(c.Request().Context(), auctionID)
	if err != nil {
		return h.feedError(c, err)
	}

	if auction.Ended(time.Now()) {
		h.log.Info("Rejected feed connection - auction has ended", "auction_id", auctionID)
		return c.JSON(http.StatusForbidden, map[string]string{"error": "auction has already ended"})
	}

	account := c.Request().Header.Get(AccountHeader)
	if account == "" {
		account = c.QueryParam("account")
	}
	if account == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "account is required"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return nil
	}

	wsConn := websocket.NewConnection(conn, account, auctionID, h.log)

	if err := h.connManager.RegisterConnection(account, auctionID, wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		conn.Close()
		return nil
	}

	go h.drain(wsConn, account, auctionID)
	return nil
}

// drain keeps the connection's read side alive until the peer goes away,
// then unregisters it. Inbound messages are ignored.
func (h *FeedHandler) drain(conn domain.WebSocketConnection, account string, auctionID uint64) {
	defer func() {
		h.connManager.UnregisterConnection(account, auctionID)
		conn.Close()
	}()

	raw, ok := conn.(*websocket.Connection)
	if !ok {
		return
	}
	for {
		if _, _, err := raw.NextReader(); err != nil {
			return
		}
	}
}

func (h *FeedHandler) feedError(c echo.Context, err error) error {
	if err == domain.ErrAuctionNotFound {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	h.log.Error("Feed lookup failed", "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
