package board

import "errors"

var (
	// ErrNoBoard is returned by mutations when no board has been loaded.
	ErrNoBoard = errors.New("no board loaded")

	// ErrItemNotFound is returned when an item id does not exist on the loaded board.
	ErrItemNotFound = errors.New("item not found")
)
