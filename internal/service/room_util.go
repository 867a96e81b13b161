package service

import (
	"math/rand"
	"strings"
)

// Room codes avoid visually confusable characters (no 0/O, 1/I/L) since
// players pass them around verbally and on screens.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 4

func GenerateRoomCode() string {
	var b strings.Builder
	b.Grow(codeLength)

	for i := 0; i < codeLength; i++ {
		b.WriteByte(codeAlphabet[rand.Intn(len(codeAlphabet))])
	}

	return b.String()
}

// NormalizeCode maps whatever a caller typed onto the canonical room
// address.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
