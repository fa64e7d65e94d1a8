package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"nft-market/internal/domain"
	"nft-market/internal/services"
	"nft-market/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// AccountHeader names the caller's account. Every mutating operation
// requires it; the deposit rides in the request body.
const AccountHeader = "X-Market-Account"

type MarketHandler struct {
	market *services.Marketplace
	log    logger.Logger
}

func NewMarketHandler(market *services.Marketplace, log logger.Logger) *MarketHandler {
	return &MarketHandler{
		market: market,
		log:    log,
	}
}

type MintRequest struct {
	TokenID  string                `json:"token_id"`
	OwnerID  string                `json:"owner_id"`
	Metadata *domain.TokenMetadata `json:"metadata,omitempty"`
	Deposit  string                `json:"deposit"`
}

type TransferRequest struct {
	ReceiverID string `json:"receiver_id"`
}

type CreateAuctionRequest struct {
	TokenID    string `json:"token_id"`
	StartPrice string `json:"start_price"`
	StartTime  uint64 `json:"start_time"` // unix seconds
	EndTime    uint64 `json:"end_time"`   // unix seconds
	Deposit    string `json:"deposit"`
}

type BidRequest struct {
	Deposit string `json:"deposit"`
}

func (h *MarketHandler) Mint(c echo.Context) error {
	var req MintRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.TokenID == "" || req.OwnerID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "token_id and owner_id are required"})
	}

	call, err := h.call(c, req.Deposit)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	token, err := h.market.Mint(c.Request().Context(), call, req.TokenID, req.OwnerID, req.Metadata)
	if err != nil {
		return h.domainError(c, err)
	}

	return c.JSON(http.StatusCreated, token)
}

func (h *MarketHandler) GetToken(c echo.Context) error {
	token, err := h.market.Token(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(http.StatusOK, token)
}

func (h *MarketHandler) TransferToken(c echo.Context) error {
	var req TransferRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.ReceiverID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "receiver_id is required"})
	}

	call, err := h.call(c, "")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := h.market.TransferToken(c.Request().Context(), call, req.ReceiverID, c.Param("id")); err != nil {
		return h.domainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *MarketHandler) TokensByOwner(c echo.Context) error {
	tokens, err := h.market.TokensByOwner(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(http.StatusOK, tokens)
}

func (h *MarketHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	startPrice, err := decimal.NewFromString(req.StartPrice)
	if err != nil || startPrice.IsNegative() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "start_price must be a non-negative amount"})
	}

	call, err := h.call(c, req.Deposit)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	auction, err := h.market.CreateAuction(c.Request().Context(), call, req.TokenID, startPrice, req.StartTime, req.EndTime)
	if err != nil {
		return h.domainError(c, err)
	}

	h.log.Info("Auction created", "auction_id", auction.ID, "owner", auction.Owner)
	return c.JSON(http.StatusCreated, auction)
}

func (h *MarketHandler) GetAuction(c echo.Context) error {
	auctionID, err := parseAuctionID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid auction id"})
	}

	auction, err := h.market.GetAuction(c.Request().Context(), auctionID)
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(http.StatusOK, auction)
}

func (h *MarketHandler) AuctionsByOwner(c echo.Context) error {
	ids, err := h.market.AuctionsByOwner(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"auction_ids": ids})
}

func (h *MarketHandler) PlaceBid(c echo.Context) error {
	auctionID, err := parseAuctionID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid auction id"})
	}

	var req BidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	call, err := h.call(c, req.Deposit)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	auction, err := h.market.PlaceBid(c.Request().Context(), call, auctionID)
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(http.StatusOK, auction)
}

func (h *MarketHandler) ClaimToken(c echo.Context) error {
	return h.claim(c, h.market.ClaimToken)
}

func (h *MarketHandler) ClaimProceeds(c echo.Context) error {
	return h.claim(c, h.market.ClaimProceeds)
}

func (h *MarketHandler) ReclaimToken(c echo.Context) error {
	return h.claim(c, h.market.ReclaimToken)
}

type claimFunc func(ctx context.Context, call domain.Call, auctionID uint64) (*domain.Auction, error)

func (h *MarketHandler) claim(c echo.Context, op claimFunc) error {
	auctionID, err := parseAuctionID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid auction id"})
	}

	call, err := h.call(c, "")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	auction, err := op(c.Request().Context(), call, auctionID)
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(http.StatusOK, auction)
}

// call assembles the execution context of one operation: caller identity
// from the account header, attached deposit from the body, current time from
// the server clock.
func (h *MarketHandler) call(c echo.Context, deposit string) (domain.Call, error) {
	caller := c.Request().Header.Get(AccountHeader)

	amount := decimal.Zero
	if deposit != "" {
		parsed, err := decimal.NewFromString(deposit)
		if err != nil || parsed.IsNegative() {
			return domain.Call{}, errors.New("deposit must be a non-negative amount")
		}
		amount = parsed
	}

	return domain.Call{
		Caller:  caller,
		Deposit: amount,
		Now:     time.Now(),
	}, nil
}

func (h *MarketHandler) domainError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrAuctionNotFound), errors.Is(err, domain.ErrTokenNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotTokenOwner),
		errors.Is(err, domain.ErrNotWinner),
		errors.Is(err, domain.ErrNotAuctionOwner):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrTokenExists),
		errors.Is(err, domain.ErrTokenAlreadyLocked),
		errors.Is(err, domain.ErrTokenAlreadyClaimed),
		errors.Is(err, domain.ErrProceedsClaimed),
		errors.Is(err, domain.ErrAuctionSold),
		errors.Is(err, domain.ErrRefundBelowFee):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrAuctionNotStarted),
		errors.Is(err, domain.ErrAuctionAlreadyEnded),
		errors.Is(err, domain.ErrAuctionNotEnded),
		errors.Is(err, domain.ErrBidTooLow),
		errors.Is(err, domain.ErrInvalidAuctionWindow),
		errors.Is(err, domain.ErrWrongMintFee),
		errors.Is(err, domain.ErrWrongAuctionFee),
		errors.Is(err, domain.ErrMissingCaller):
		status = http.StatusBadRequest
	default:
		h.log.Error("Operation failed", "path", c.Path(), "error", err)
		return c.JSON(status, map[string]string{"error": "internal error"})
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func parseAuctionID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}
