package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/matt-steen/chore-board/pkg/model"
)

// CreatedBoard is the result of CreateBoard. EditToken grants edit rights and is only
// returned once.
type CreatedBoard struct {
	BoardCode string
	EditToken string
	Title     string
}

// BoardSummary identifies a board without its items.
type BoardSummary struct {
	BoardCode string
	Title     string
}

// CreateBoard creates a new board with the given title.
func (c *Client) CreateBoard(ctx context.Context, title string) (*CreatedBoard, error) {
	var created wireCreatedBoard

	if err := c.do(ctx, http.MethodPost, "/boards", nil, map[string]string{"title": title}, &created); err != nil {
		return nil, fmt.Errorf("error creating board %q: %w", title, err)
	}

	out := &CreatedBoard{BoardCode: string(created.BoardCode), EditToken: created.EditToken, Title: created.Title}
	if out.Title == "" {
		out.Title = title
	}

	return out, nil
}

// BoardInfo checks that a board exists and returns its code and title.
func (c *Client) BoardInfo(ctx context.Context, boardCode string) (*BoardSummary, error) {
	var wb wireBoard

	if err := c.do(ctx, http.MethodGet, boardPath(boardCode), nil, nil, &wb); err != nil {
		return nil, fmt.Errorf("error looking up board %s: %w", boardCode, err)
	}

	return &BoardSummary{BoardCode: string(wb.BoardCode), Title: wb.Title}, nil
}

// JoinBoard adds a participant to the board after checking that the board exists.
func (c *Client) JoinBoard(ctx context.Context, boardCode, nickname, color string) (*model.User, error) {
	if _, err := c.BoardInfo(ctx, boardCode); err != nil {
		return nil, err
	}

	var p wireParticipant

	body := joinRequest{Nickname: nickname, Color: color}
	if err := c.do(ctx, http.MethodPost, boardPath(boardCode, "participants"), nil, body, &p); err != nil {
		return nil, fmt.Errorf("error joining board %s: %w", boardCode, err)
	}

	return toUser(&p), nil
}

// DeleteBoard deletes a board. The service requires the board's edit token.
func (c *Client) DeleteBoard(ctx context.Context, boardCode, editToken string) error {
	if err := c.do(ctx, http.MethodDelete, boardPath(boardCode), editHeaders(editToken), nil, nil); err != nil {
		return fmt.Errorf("error deleting board %s: %w", boardCode, err)
	}

	return nil
}
