package models

import "errors"

var (
	ErrInvalidCoinID    = errors.New("invalid coin ID")
	ErrInvalidCoinName  = errors.New("invalid coin name")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidEventKind = errors.New("invalid change event kind")
	ErrInvalidEventID   = errors.New("invalid change event ID")
	ErrInvalidRoomID    = errors.New("invalid room ID")
	ErrInvalidMemberKey = errors.New("invalid member key")
)
