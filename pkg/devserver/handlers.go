package devserver

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/matt-steen/chore-board/pkg/db"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
	defaultColor = "#2563eb"
	creatorName  = "owner"
)

// newBoardCode returns six random uppercase alphanumerics.
func newBoardCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("error generating board code: %w", err)
	}

	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}

	return string(buf), nil
}

// httpError maps database errors onto HTTP statuses.
func httpError(err error) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found").SetInternal(err)
	case errors.Is(err, db.ErrUnknownParticipant):
		return echo.NewHTTPError(http.StatusBadRequest, "unknown participant").SetInternal(err)
	case errors.Is(err, db.ErrBoardExists):
		return echo.NewHTTPError(http.StatusConflict, "board code taken").SetInternal(err)
	}

	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

func boardCode(c echo.Context) string {
	return strings.ToUpper(c.Param("code"))
}

func choreID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusNotFound, "not found")
	}

	return id, nil
}

func (s *Server) today() string {
	return s.now().Format(dateLayout)
}

func (s *Server) healthz(c echo.Context) error {
	if err := s.db.Ping(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable").SetInternal(err)
	}

	return c.NoContent(http.StatusOK)
}

func (s *Server) createBoard(c echo.Context) error {
	var req createBoardRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return badRequest("title is required")
	}

	creator := db.Participant{Nickname: strings.TrimSpace(req.Nickname), Color: req.Color}
	if creator.Nickname == "" {
		creator.Nickname = creatorName
	}

	if creator.Color == "" {
		creator.Color = defaultColor
	}

	editToken := uuid.NewString()

	for attempt := 1; ; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return httpError(err)
		}

		board, _, err := s.db.CreateBoard(c.Request().Context(), code, req.Title, editToken, creator)
		if errors.Is(err, db.ErrBoardExists) && attempt < maxCodeAttempts {
			continue
		}

		if err != nil {
			return httpError(err)
		}

		s.logger.Info().Str("board", board.Code).Msg("board created")

		return c.JSON(http.StatusCreated, createdBoardResponse{
			BoardCode: board.Code,
			EditToken: board.EditToken,
			Title:     board.Title,
		})
	}
}

// isEditor reports whether the request carries the board's edit token.
func isEditor(c echo.Context, board *db.Board) bool {
	token := c.Request().Header.Get(editTokenHeader)

	return token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(board.EditToken)) == 1
}

func (s *Server) getBoard(c echo.Context) error {
	ctx := c.Request().Context()

	board, err := s.db.Board(ctx, boardCode(c))
	if err != nil {
		return httpError(err)
	}

	participants, err := s.db.Participants(ctx, board.Code)
	if err != nil {
		return httpError(err)
	}

	resp := boardResponse{
		BoardCode:    board.Code,
		Title:        board.Title,
		CreatedAt:    formatTime(board.CreatedDatetime),
		Participants: make([]participantResponse, 0, len(participants)),
		IsRemove:     isEditor(c, board),
	}

	for _, p := range participants {
		resp.Participants = append(resp.Participants, toParticipantResponse(p))
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) deleteBoard(c echo.Context) error {
	ctx := c.Request().Context()

	board, err := s.db.Board(ctx, boardCode(c))
	if err != nil {
		return httpError(err)
	}

	if !isEditor(c, board) {
		return echo.NewHTTPError(http.StatusForbidden, "edit token required")
	}

	if err := s.db.DeleteBoard(ctx, board.Code); err != nil {
		return httpError(err)
	}

	s.logger.Info().Str("board", board.Code).Msg("board deleted")

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) addParticipant(c echo.Context) error {
	var req participantRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	req.Nickname = strings.TrimSpace(req.Nickname)
	if req.Nickname == "" {
		return badRequest("nickname is required")
	}

	if req.Color == "" {
		req.Color = defaultColor
	}

	participant, err := s.db.AddParticipant(c.Request().Context(), boardCode(c), req.Nickname, req.Color)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, toParticipantResponse(participant))
}

func (s *Server) listChores(c echo.Context) error {
	ctx := c.Request().Context()

	date := c.QueryParam("date")
	if date == "" {
		date = s.today()
	} else if _, err := time.Parse(dateLayout, date); err != nil {
		return badRequest("date must be formatted as YYYY-MM-DD")
	}

	board, err := s.db.Board(ctx, boardCode(c))
	if err != nil {
		return httpError(err)
	}

	chores, err := s.db.Chores(ctx, board.Code, date)
	if err != nil {
		return httpError(err)
	}

	if c.QueryParam("split") != "1" {
		flat := make([]choreResponse, 0, len(chores))
		for _, chore := range chores {
			flat = append(flat, toChoreResponse(chore))
		}

		return c.JSON(http.StatusOK, flat)
	}

	split := splitChoresResponse{Incomplete: []choreResponse{}, Completed: []choreResponse{}}

	for _, chore := range chores {
		if chore.Completed {
			split.Completed = append(split.Completed, toChoreResponse(chore))
		} else {
			split.Incomplete = append(split.Incomplete, toChoreResponse(chore))
		}
	}

	return c.JSON(http.StatusOK, split)
}

func (s *Server) createChore(c echo.Context) error {
	var req createChoreRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return badRequest("title is required")
	}

	if req.Date == "" {
		req.Date = s.today()
	} else if _, err := time.Parse(dateLayout, req.Date); err != nil {
		return badRequest("date must be formatted as YYYY-MM-DD")
	}

	assigneeID, err := parseRef(req.AssigneeID)
	if err != nil {
		return badRequest(err.Error())
	}

	chore, err := s.db.NewChore(c.Request().Context(), boardCode(c), req.Date, req.Title, assigneeID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, toChoreResponse(chore))
}

func (s *Server) updateChore(c echo.Context) error {
	id, err := choreID(c)
	if err != nil {
		return err
	}

	var req updateChoreRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	update := db.ChoreUpdate{Title: req.Title, SetAssignee: len(req.AssigneeID) > 0}

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return badRequest("title must not be empty")
		}

		update.Title = &title
	}

	if update.SetAssignee {
		if update.AssigneeID, err = parseRef(req.AssigneeID); err != nil {
			return badRequest(err.Error())
		}
	}

	chore, err := s.db.UpdateChore(c.Request().Context(), boardCode(c), id, update)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, toChoreResponse(chore))
}

func (s *Server) toggleChore(c echo.Context) error {
	id, err := choreID(c)
	if err != nil {
		return err
	}

	chore, err := s.db.ToggleChore(c.Request().Context(), boardCode(c), id, s.now())
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, toChoreResponse(chore))
}

func (s *Server) deleteChore(c echo.Context) error {
	id, err := choreID(c)
	if err != nil {
		return err
	}

	if err := s.db.DeleteChore(c.Request().Context(), boardCode(c), id); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) orderChore(c echo.Context) error {
	id, err := choreID(c)
	if err != nil {
		return err
	}

	var req orderRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	if req.SortOrder == nil {
		return badRequest("sortOrder is required")
	}

	if err := s.db.SetChoreOrder(c.Request().Context(), boardCode(c), id, *req.SortOrder); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) assignChores(c echo.Context) error {
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	changes := make([]db.AssigneeChange, 0, len(req.Items))

	for _, item := range req.Items {
		id, err := parseRef(item.ID)
		if err != nil || id == nil {
			return badRequest("every item needs an integer id")
		}

		assigneeID, err := parseRef(item.AssigneeID)
		if err != nil {
			return badRequest(err.Error())
		}

		changes = append(changes, db.AssigneeChange{ChoreID: *id, AssigneeID: assigneeID})
	}

	if err := s.db.SetAssignees(c.Request().Context(), boardCode(c), changes); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}
