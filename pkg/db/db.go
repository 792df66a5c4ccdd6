package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

//go:embed base.sql
var baseSQL string

var (
	// ErrNotFound is returned when a board, participant or chore does not exist on the board.
	ErrNotFound = errors.New("not found")
	// ErrBoardExists is returned when a board code is already taken.
	ErrBoardExists = errors.New("board code already exists")
	// ErrUnknownParticipant is returned when an assignee is not a participant of the board.
	ErrUnknownParticipant = errors.New("unknown participant")
)

// Database manages the sqlite connection backing the board service.
type Database struct {
	conn *sql.DB
}

// NewDatabase connects to the sqlite database at the given filename and initializes the
// structure if not present.
func NewDatabase(ctx context.Context, filename string) (*Database, error) {
	conn, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("error connecting to sqlite db at %s: %w", filename, err)
	}

	// sqlite allows one writer; a single connection keeps writers from failing with SQLITE_BUSY
	conn.SetMaxOpenConns(1)

	database := Database{conn: conn}

	err = database.initialize(ctx)
	if err != nil {
		conn.Close()

		return nil, err
	}

	return &database, nil
}

func (d *Database) initialize(ctx context.Context) error {
	// run idempotent setup sql to create empty tables if they don't exist
	if _, err := d.conn.ExecContext(ctx, baseSQL); err != nil {
		return fmt.Errorf("error running base sql: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	if err := d.conn.Close(); err != nil {
		return fmt.Errorf("error closing db: %w", err)
	}

	return nil
}

// Ping checks that the database answers.
func (d *Database) Ping(ctx context.Context) error {
	if err := d.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("error pinging db: %w", err)
	}

	return nil
}

func (d *Database) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

// CreateBoard inserts a board and its creator as the first participant.
func (d *Database) CreateBoard(
	ctx context.Context, code, title, editToken string, creator Participant,
) (*Board, *Participant, error) {
	board := &Board{Code: code, Title: title, EditToken: editToken, CreatedDatetime: time.Now().UTC()}
	participant := &Participant{BoardCode: code, Nickname: creator.Nickname, Color: creator.Color}

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO board (code, title, edit_token, created_datetime) VALUES ($1, $2, $3, $4)`,
			board.Code, board.Title, board.EditToken, board.CreatedDatetime,
		)
		if err != nil {
			var sqliteErr sqlite3.Error
			if errors.As(err, &sqliteErr) && (sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique) {
				return fmt.Errorf("error adding board %s: %w", code, ErrBoardExists)
			}

			return fmt.Errorf("error adding board %s: %w", code, err)
		}

		participant.ID, err = insertParticipant(ctx, tx, participant)

		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return board, participant, nil
}

// Board returns the board with the given code.
func (d *Database) Board(ctx context.Context, code string) (*Board, error) {
	var board Board

	err := d.conn.QueryRowContext(ctx,
		`SELECT code, title, edit_token, created_datetime FROM board WHERE code = $1`, code,
	).Scan(&board.Code, &board.Title, &board.EditToken, &board.CreatedDatetime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("error loading board %s: %w", code, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("error loading board %s: %w", code, err)
	}

	return &board, nil
}

// DeleteBoard removes a board with its participants and chores.
func (d *Database) DeleteBoard(ctx context.Context, code string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM chore WHERE board_code = $1`,
			`DELETE FROM participant WHERE board_code = $1`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, code); err != nil {
				return fmt.Errorf("error deleting board %s: %w", code, err)
			}
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM board WHERE code = $1`, code)
		if err != nil {
			return fmt.Errorf("error deleting board %s: %w", code, err)
		}

		return expectOneRow(result, "board "+code)
	})
}

// Participants lists the participants of a board, creator first.
func (d *Database) Participants(ctx context.Context, code string) ([]*Participant, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT id, board_code, nickname, color FROM participant WHERE board_code = $1 ORDER BY id`, code,
	)
	if err != nil {
		return nil, fmt.Errorf("error loading participants of board %s: %w", code, err)
	}
	defer rows.Close()

	participants := []*Participant{}

	for rows.Next() {
		var p Participant

		if err := rows.Scan(&p.ID, &p.BoardCode, &p.Nickname, &p.Color); err != nil {
			return nil, fmt.Errorf("error scanning participants of board %s: %w", code, err)
		}

		participants = append(participants, &p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning participants of board %s: %w", code, err)
	}

	return participants, nil
}

// AddParticipant adds a participant to an existing board.
func (d *Database) AddParticipant(ctx context.Context, code, nickname, color string) (*Participant, error) {
	participant := &Participant{BoardCode: code, Nickname: nickname, Color: color}

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if err := boardExists(ctx, tx, code); err != nil {
			return err
		}

		var err error
		participant.ID, err = insertParticipant(ctx, tx, participant)

		return err
	})
	if err != nil {
		return nil, err
	}

	return participant, nil
}

func insertParticipant(ctx context.Context, tx *sql.Tx, p *Participant) (int64, error) {
	result, err := tx.ExecContext(ctx,
		`INSERT INTO participant (board_code, nickname, color) VALUES ($1, $2, $3)`,
		p.BoardCode, p.Nickname, p.Color,
	)
	if err != nil {
		return 0, fmt.Errorf("error adding participant %s: %w", p.Nickname, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error getting id of new participant %s: %w", p.Nickname, err)
	}

	return id, nil
}

func boardExists(ctx context.Context, tx *sql.Tx, code string) error {
	var n int

	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM board WHERE code = $1`, code).Scan(&n); err != nil {
		return fmt.Errorf("error checking board %s: %w", code, err)
	}

	if n == 0 {
		return fmt.Errorf("error checking board %s: %w", code, ErrNotFound)
	}

	return nil
}

func checkParticipant(ctx context.Context, tx *sql.Tx, code string, id *int64) error {
	if id == nil {
		return nil
	}

	var n int

	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participant WHERE id = $1 AND board_code = $2`, *id, code,
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("error checking participant %d: %w", *id, err)
	}

	if n == 0 {
		return fmt.Errorf("error checking participant %d: %w", *id, ErrUnknownParticipant)
	}

	return nil
}

func expectOneRow(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking update of %s: %w", what, err)
	}

	if n == 0 {
		return fmt.Errorf("error updating %s: %w", what, ErrNotFound)
	}

	return nil
}

const choreSQL = `SELECT c.id, c.board_code, c.chore_date, c.title, c.completed, c.completed_datetime,
					c.sort_order, c.created_datetime, p.id, p.nickname, p.color
				FROM chore c
				LEFT JOIN participant p ON p.id = c.assignee_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChore(row rowScanner) (*Chore, error) {
	var (
		chore         Chore
		completedAt   sql.NullTime
		sortOrder     sql.NullInt64
		assigneeID    sql.NullInt64
		assigneeName  sql.NullString
		assigneeColor sql.NullString
	)

	err := row.Scan(
		&chore.ID, &chore.BoardCode, &chore.Date, &chore.Title, &chore.Completed, &completedAt,
		&sortOrder, &chore.CreatedDatetime, &assigneeID, &assigneeName, &assigneeColor,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		t := completedAt.Time
		chore.CompletedDatetime = &t
	}

	if sortOrder.Valid {
		v := int(sortOrder.Int64)
		chore.SortOrder = &v
	}

	if assigneeID.Valid {
		chore.Assignee = &Participant{
			ID:        assigneeID.Int64,
			BoardCode: chore.BoardCode,
			Nickname:  assigneeName.String,
			Color:     assigneeColor.String,
		}
	}

	return &chore, nil
}

// Chores lists the chores of a board for one day: incomplete chores by sort order, then
// completed chores, most recently completed first.
func (d *Database) Chores(ctx context.Context, code, date string) ([]*Chore, error) {
	rows, err := d.conn.QueryContext(ctx, choreSQL+`
				WHERE c.board_code = $1 AND c.chore_date = $2
				ORDER BY c.completed,
					CASE WHEN c.completed THEN 0 ELSE c.sort_order IS NULL END,
					CASE WHEN c.completed THEN 0 ELSE c.sort_order END,
					c.completed_datetime DESC, c.id`,
		code, date,
	)
	if err != nil {
		return nil, fmt.Errorf("error loading chores of board %s: %w", code, err)
	}
	defer rows.Close()

	chores := []*Chore{}

	for rows.Next() {
		chore, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning chores of board %s: %w", code, err)
		}

		chores = append(chores, chore)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning chores of board %s: %w", code, err)
	}

	return chores, nil
}

// Chore returns one chore of a board.
func (d *Database) Chore(ctx context.Context, code string, id int64) (*Chore, error) {
	return choreByID(ctx, d.conn, code, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func choreByID(ctx context.Context, q querier, code string, id int64) (*Chore, error) {
	chore, err := scanChore(q.QueryRowContext(ctx, choreSQL+` WHERE c.board_code = $1 AND c.id = $2`, code, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("error loading chore %d: %w", id, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("error loading chore %d: %w", id, err)
	}

	return chore, nil
}

// NewChore creates a chore for the given day; it is ranked after every incomplete chore of
// that day.
func (d *Database) NewChore(ctx context.Context, code, date, title string, assigneeID *int64) (*Chore, error) {
	var chore *Chore

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if err := boardExists(ctx, tx, code); err != nil {
			return err
		}

		if err := checkParticipant(ctx, tx, code, assigneeID); err != nil {
			return err
		}

		var maxOrder int

		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(sort_order), 0) FROM chore
				WHERE board_code = $1 AND chore_date = $2 AND completed = 0`,
			code, date,
		).Scan(&maxOrder)
		if err != nil {
			return fmt.Errorf("error ranking chore %s: %w", title, err)
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO chore (board_code, chore_date, title, assignee_id, completed, sort_order, created_datetime)
				VALUES ($1, $2, $3, $4, 0, $5, $6)`,
			code, date, title, assigneeID, maxOrder+1, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("error adding chore %s: %w", title, err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("error getting id of new chore %s: %w", title, err)
		}

		chore, err = choreByID(ctx, tx, code, id)

		return err
	})
	if err != nil {
		return nil, err
	}

	return chore, nil
}

// UpdateChore changes the title and/or the assignee of a chore.
func (d *Database) UpdateChore(ctx context.Context, code string, id int64, update ChoreUpdate) (*Chore, error) {
	var chore *Chore

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if update.Title != nil {
			result, err := tx.ExecContext(ctx,
				`UPDATE chore SET title = $1 WHERE board_code = $2 AND id = $3`, *update.Title, code, id,
			)
			if err != nil {
				return fmt.Errorf("error renaming chore %d: %w", id, err)
			}

			if err := expectOneRow(result, fmt.Sprintf("chore %d", id)); err != nil {
				return err
			}
		}

		if update.SetAssignee {
			if err := setAssignee(ctx, tx, code, AssigneeChange{ChoreID: id, AssigneeID: update.AssigneeID}); err != nil {
				return err
			}
		}

		var err error
		chore, err = choreByID(ctx, tx, code, id)

		return err
	})
	if err != nil {
		return nil, err
	}

	return chore, nil
}

func setAssignee(ctx context.Context, tx *sql.Tx, code string, change AssigneeChange) error {
	if err := checkParticipant(ctx, tx, code, change.AssigneeID); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE chore SET assignee_id = $1 WHERE board_code = $2 AND id = $3`,
		change.AssigneeID, code, change.ChoreID,
	)
	if err != nil {
		return fmt.Errorf("error assigning chore %d: %w", change.ChoreID, err)
	}

	return expectOneRow(result, fmt.Sprintf("chore %d", change.ChoreID))
}

// SetAssignees applies several assignee changes atomically.
func (d *Database) SetAssignees(ctx context.Context, code string, changes []AssigneeChange) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		for _, change := range changes {
			if err := setAssignee(ctx, tx, code, change); err != nil {
				return err
			}
		}

		return nil
	})
}

// ToggleChore flips the completion state of a chore, stamping or clearing the completion time.
func (d *Database) ToggleChore(ctx context.Context, code string, id int64, now time.Time) (*Chore, error) {
	var chore *Chore

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE chore
				SET completed = NOT completed,
					completed_datetime = CASE WHEN completed THEN NULL ELSE $1 END
				WHERE board_code = $2 AND id = $3`,
			now.UTC(), code, id,
		)
		if err != nil {
			return fmt.Errorf("error toggling chore %d: %w", id, err)
		}

		if err := expectOneRow(result, fmt.Sprintf("chore %d", id)); err != nil {
			return err
		}

		chore, err = choreByID(ctx, tx, code, id)

		return err
	})
	if err != nil {
		return nil, err
	}

	return chore, nil
}

// SetChoreOrder sets the sort order of a single chore.
func (d *Database) SetChoreOrder(ctx context.Context, code string, id int64, sortOrder int) error {
	result, err := d.conn.ExecContext(ctx,
		`UPDATE chore SET sort_order = $1 WHERE board_code = $2 AND id = $3`, sortOrder, code, id,
	)
	if err != nil {
		return fmt.Errorf("error ordering chore %d: %w", id, err)
	}

	return expectOneRow(result, fmt.Sprintf("chore %d", id))
}

// DeleteChore removes a chore.
func (d *Database) DeleteChore(ctx context.Context, code string, id int64) error {
	result, err := d.conn.ExecContext(ctx, `DELETE FROM chore WHERE board_code = $1 AND id = $2`, code, id)
	if err != nil {
		return fmt.Errorf("error deleting chore %d: %w", id, err)
	}

	return expectOneRow(result, fmt.Sprintf("chore %d", id))
}
