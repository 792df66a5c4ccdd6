package board

import (
	"context"

	"github.com/matt-steen/chore-board/pkg/model"
)

// Repository is the remote board service as seen by the Store. Implementations translate
// these calls to the wire and return fully normalized domain values.
type Repository interface {
	// FetchBoard returns the board with today's items. Editable reflects whether editToken was set.
	FetchBoard(ctx context.Context, boardCode, editToken string) (*model.Board, error)
	CreateItem(ctx context.Context, boardCode, title, assigneeID string) (*model.ChoreItem, error)
	UpdateItem(ctx context.Context, boardCode, itemID string, update model.ItemUpdate) (*model.ChoreItem, error)
	ToggleCompletion(ctx context.Context, boardCode, itemID string) (*model.ChoreItem, error)
	DeleteItem(ctx context.Context, boardCode, itemID string) error
	UpdateItemOrder(ctx context.Context, boardCode, itemID string, sortOrder int) error
	BulkUpdateAssignees(ctx context.Context, boardCode string, changes []model.AssigneeChange) error
}
