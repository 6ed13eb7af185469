package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/idea-service/internal/domain"
)

// UpdateRepository appends to idea update threads.
type UpdateRepository interface {
	// Append stores update and fills its ID, Seq and CreatedAt. Seq values are
	// unique and strictly increasing per idea. The insert only happens while
	// the idea matches scope; otherwise Append returns ErrNotVisible. It
	// returns the idea as read inside the same transaction.
	Append(ctx context.Context, update *domain.Update, scope IdeaFilter) (*domain.Idea, error)
}

type updateRepository struct {
	db DB
}

// NewUpdateRepository constructs a Postgres-backed update repository.
func NewUpdateRepository(db DB) UpdateRepository {
	return &updateRepository{db: db}
}

const appendUpdate = `
        WITH target AS (
            SELECT i.id FROM ideas i WHERE %s
        )
        INSERT INTO idea_updates (idea_id, author_id, author_role, message, seq)
        SELECT t.id, $2::uuid, $3, $4,
               COALESCE((SELECT MAX(seq) FROM idea_updates WHERE idea_id = t.id), 0) + 1
        FROM target t
        RETURNING id, seq, created_at`

func (r *updateRepository) Append(ctx context.Context, update *domain.Update, scope IdeaFilter) (*domain.Idea, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Appends for one idea queue behind this lock until commit.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, update.IdeaID); err != nil {
		return nil, normalizeErr(err)
	}

	idea, err := scanIdea(tx.QueryRow(ctx, selectIdea+" WHERE i.id=$1", update.IdeaID))
	if err != nil {
		return nil, normalizeErr(err)
	}

	args := []any{update.IdeaID, update.AuthorID, update.AuthorRole, update.Message}
	conds, args := scope.conditions("i.", args)
	where := strings.Join(append([]string{"i.id = $1::uuid"}, conds...), " AND ")

	err = tx.QueryRow(ctx, fmt.Sprintf(appendUpdate, where), args...).
		Scan(&update.ID, &update.Seq, &update.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotVisible
	}
	if err != nil {
		return nil, normalizeErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return idea, nil
}

func listUpdates(ctx context.Context, tx pgx.Tx, ideaID string) ([]domain.UpdateView, error) {
	const query = `
        SELECT m.id, m.idea_id, m.author_id, m.author_role, m.message, m.seq, m.created_at, u.name
        FROM idea_updates m
        JOIN users u ON u.id = m.author_id
        WHERE m.idea_id=$1
        ORDER BY m.seq ASC`

	rows, err := tx.Query(ctx, query, ideaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.UpdateView
	for rows.Next() {
		var view domain.UpdateView
		if err := rows.Scan(
			&view.ID,
			&view.IdeaID,
			&view.AuthorID,
			&view.AuthorRole,
			&view.Message,
			&view.Seq,
			&view.CreatedAt,
			&view.AuthorName,
		); err != nil {
			return nil, err
		}
		result = append(result, view)
	}
	return result, rows.Err()
}
