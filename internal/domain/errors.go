package domain

import "errors"

// Every rejected precondition surfaces one of these, so a caller can tell
// "too early" from "already claimed" from "not authorized". A failed
// operation applies no state change.
var (
	ErrAuctionNotFound = errors.New("auction does not exist")
	ErrTokenNotFound   = errors.New("token does not exist")
	ErrTokenExists     = errors.New("token id already minted")

	ErrNotTokenOwner        = errors.New("caller does not own this token")
	ErrTokenAlreadyLocked   = errors.New("token is already locked in an auction")
	ErrAuctionNotStarted    = errors.New("auction has not started yet")
	ErrAuctionAlreadyEnded  = errors.New("auction has already ended")
	ErrAuctionNotEnded      = errors.New("auction is not over yet")
	ErrBidTooLow            = errors.New("bid must be greater than the current price")
	ErrRefundBelowFee       = errors.New("displaced bid does not cover the enrollment fee")
	ErrNotWinner            = errors.New("caller is not the auction winner")
	ErrNotAuctionOwner      = errors.New("caller is not the auction owner")
	ErrTokenAlreadyClaimed  = errors.New("token has already been claimed")
	ErrProceedsClaimed      = errors.New("proceeds have already been claimed")
	ErrAuctionSold          = errors.New("auction has a winner, token cannot be reclaimed")
	ErrInvalidAuctionWindow = errors.New("end time must be after start time")

	ErrWrongMintFee    = errors.New("attached deposit must equal the mint fee")
	ErrWrongAuctionFee = errors.New("attached deposit must equal the create-auction fee")
	ErrMissingCaller   = errors.New("caller account is required")
)
