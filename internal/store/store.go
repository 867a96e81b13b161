// Package store provides the durable per-room slot the game state machine
// persists into after every mutation. The slot is a plain get/put keyed by
// room code; the state machine owns the encoding.
package store

import "errors"

var ErrNotFound = errors.New("room state not found")

type RoomStore interface {
	Load(code string) ([]byte, error)
	Save(code string, data []byte) error
	Delete(code string) error
}
