package game

import (
	"github.com/google/uuid"
)

// GenID returns a short unique id for a player. Uniqueness only matters
// within one room.
func GenID() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic("failed to generate UUID: " + err.Error())
	}

	s := id.String()

	return s[len(s)-8:]
}
