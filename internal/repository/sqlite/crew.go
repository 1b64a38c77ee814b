package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/crewcrew/internal/apperror"
	"github.com/sakif/crewcrew/internal/model"
	"github.com/sakif/crewcrew/internal/repository"
)

var _ repository.CrewRepository = (*CrewDB)(nil)

// CrewDB is the crew roster view of the database. It shares the connection
// with the key-value store; the method sets overlap so they are kept on
// separate types.
type CrewDB struct {
	conn *sql.DB
}

// Crews returns the roster repository backed by the same connection.
func (db *DB) Crews() *CrewDB {
	return &CrewDB{conn: db.conn}
}

// Create inserts a crew member. If crew.ID is empty a UUID is assigned.
// Timestamps are set here, and the caller's struct is updated in place.
func (db *CrewDB) Create(ctx context.Context, crew *model.Crew) error {
	if crew.ID == "" {
		crew.ID = uuid.NewString()
	}
	now := time.Now()
	crew.CreatedAt = now
	crew.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO crews (id, name, role, level, exp, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		crew.ID,
		crew.Name,
		crew.Role,
		crew.Level,
		crew.Exp,
		crew.CreatedAt,
		crew.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting crew %s: %w", crew.ID, err)
	}
	return nil
}

// GetByID returns apperror.ErrNotFound if no crew member has that ID.
func (db *CrewDB) GetByID(ctx context.Context, id string) (*model.Crew, error) {
	var c model.Crew
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, role, level, exp, created_at, updated_at
		 FROM crews WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.Name, &c.Role, &c.Level, &c.Exp, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("crew", id)
		}
		return nil, fmt.Errorf("sqlite: getting crew %s: %w", id, err)
	}
	return &c, nil
}

// List returns the whole roster, oldest hire first.
func (db *CrewDB) List(ctx context.Context) ([]model.Crew, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, role, level, exp, created_at, updated_at
		 FROM crews
		 ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing crews: %w", err)
	}
	defer rows.Close()

	crews := make([]model.Crew, 0)
	for rows.Next() {
		var c model.Crew
		if err := rows.Scan(&c.ID, &c.Name, &c.Role, &c.Level, &c.Exp, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning crew row: %w", err)
		}
		crews = append(crews, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating crews: %w", err)
	}
	return crews, nil
}

// Update saves name, role, level and exp. Returns NotFound if the row is gone.
func (db *CrewDB) Update(ctx context.Context, crew *model.Crew) error {
	crew.UpdatedAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE crews
		 SET name = ?, role = ?, level = ?, exp = ?, updated_at = ?
		 WHERE id = ?`,
		crew.Name,
		crew.Role,
		crew.Level,
		crew.Exp,
		crew.UpdatedAt,
		crew.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating crew %s: %w", crew.ID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("crew", crew.ID)
	}
	return nil
}

// Delete removes a crew member. Returns NotFound if it does not exist.
func (db *CrewDB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM crews WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting crew %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("crew", id)
	}
	return nil
}
