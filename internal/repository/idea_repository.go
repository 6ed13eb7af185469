package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/idea-service/internal/domain"
)

// IdeaFilter narrows list and count queries. Nil fields are not applied.
type IdeaFilter struct {
	CustomerID *string
	AssignedTo *string
	Status     *domain.IdeaStatus
	// Limit <= 0 returns every matching idea.
	Limit  int
	Offset int
}

// IdeaMutation edits idea in place and reports the history entries the edit
// produced. Returning no changes leaves the stored idea untouched.
type IdeaMutation func(idea *domain.Idea) ([]domain.IdeaChange, error)

// IdeaRepository handles idea persistence and history.
type IdeaRepository interface {
	Create(ctx context.Context, idea *domain.Idea) error
	GetByID(ctx context.Context, id string) (*domain.Idea, error)
	// List returns ideas newest first.
	List(ctx context.Context, filter IdeaFilter) ([]domain.Idea, error)
	CountByStatus(ctx context.Context, filter IdeaFilter) (domain.Stats, error)
	// Detail reads an idea, its updates and its history from one snapshot.
	Detail(ctx context.Context, id string) (*domain.IdeaDetail, error)
	// Mutate serializes fn against every other mutation of the same idea and
	// persists the result together with its history entries.
	Mutate(ctx context.Context, id string, fn IdeaMutation) (*domain.Idea, error)
}

type ideaRepository struct {
	db DB
}

// NewIdeaRepository constructs a Postgres-backed repository.
func NewIdeaRepository(db DB) IdeaRepository {
	return &ideaRepository{db: db}
}

const selectIdea = `
    SELECT i.id, i.customer_id, u.name, i.title, i.description, i.status,
           i.assigned_to, i.created_at, i.updated_at
    FROM ideas i
    JOIN users u ON u.id = i.customer_id`

func (r *ideaRepository) Create(ctx context.Context, idea *domain.Idea) error {
	const query = `
        WITH inserted AS (
            INSERT INTO ideas (customer_id, title, description, status)
            VALUES ($1, $2, $3, $4)
            RETURNING id, customer_id, created_at, updated_at
        )
        SELECT inserted.id, u.name, inserted.created_at, inserted.updated_at
        FROM inserted
        JOIN users u ON u.id = inserted.customer_id`

	err := r.db.QueryRow(ctx, query,
		idea.CustomerID,
		idea.Title,
		idea.Description,
		idea.Status,
	).Scan(&idea.ID, &idea.CustomerName, &idea.CreatedAt, &idea.UpdatedAt)
	return normalizeErr(err)
}

func (r *ideaRepository) GetByID(ctx context.Context, id string) (*domain.Idea, error) {
	idea, err := scanIdea(r.db.QueryRow(ctx, selectIdea+" WHERE i.id=$1", id))
	if err != nil {
		return nil, normalizeErr(err)
	}
	return idea, nil
}

func (r *ideaRepository) List(ctx context.Context, filter IdeaFilter) ([]domain.Idea, error) {
	where, args := filter.clauses("i.", nil)
	query := selectIdea + where + " ORDER BY i.created_at DESC, i.id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, normalizeErr(err)
	}
	defer rows.Close()

	var result []domain.Idea
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *idea)
	}
	return result, rows.Err()
}

func (r *ideaRepository) CountByStatus(ctx context.Context, filter IdeaFilter) (domain.Stats, error) {
	where, args := filter.clauses("", nil)
	query := `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status = 'pending'),
               COUNT(*) FILTER (WHERE status = 'in_progress'),
               COUNT(*) FILTER (WHERE status = 'completed')
        FROM ideas` + where

	var stats domain.Stats
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.InProgress,
		&stats.Completed,
	)
	return stats, normalizeErr(err)
}

func (r *ideaRepository) Detail(ctx context.Context, id string) (*domain.IdeaDetail, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	idea, err := scanIdea(tx.QueryRow(ctx, selectIdea+" WHERE i.id=$1", id))
	if err != nil {
		return nil, normalizeErr(err)
	}

	updates, err := listUpdates(ctx, tx, idea.ID)
	if err != nil {
		return nil, err
	}
	history, err := listHistory(ctx, tx, idea.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &domain.IdeaDetail{Idea: *idea, Updates: updates, History: history}, nil
}

func (r *ideaRepository) Mutate(ctx context.Context, id string, fn IdeaMutation) (*domain.Idea, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	idea, err := scanIdea(tx.QueryRow(ctx, selectIdea+" WHERE i.id=$1 FOR UPDATE OF i", id))
	if err != nil {
		return nil, normalizeErr(err)
	}

	changes, err := fn(idea)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return idea, tx.Commit(ctx)
	}
	if err := idea.CheckInvariants(); err != nil {
		return nil, err
	}

	const update = `
        UPDATE ideas SET status=$1, assigned_to=$2, updated_at=NOW()
        WHERE id=$3
        RETURNING updated_at`
	if err := tx.QueryRow(ctx, update, idea.Status, idea.AssignedTo, idea.ID).Scan(&idea.UpdatedAt); err != nil {
		return nil, err
	}

	const insertHistory = `
        INSERT INTO idea_history (idea_id, actor_id, actor_role, change_type, old_value, new_value)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at`
	for i := range changes {
		change := &changes[i]
		change.IdeaID = idea.ID
		if err := tx.QueryRow(ctx, insertHistory,
			change.IdeaID,
			change.ActorID,
			change.ActorRole,
			change.ChangeType,
			change.OldValue,
			change.NewValue,
		).Scan(&change.ID, &change.CreatedAt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return idea, nil
}

// clauses renders the filter as a WHERE clause. Placeholders continue after
// the len(args) parameters the caller already bound.
func (f IdeaFilter) clauses(prefix string, args []any) (string, []any) {
	parts, args := f.conditions(prefix, args)
	if len(parts) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func (f IdeaFilter) conditions(prefix string, args []any) ([]string, []any) {
	var parts []string
	if f.CustomerID != nil {
		args = append(args, *f.CustomerID)
		parts = append(parts, fmt.Sprintf("%scustomer_id=$%d", prefix, len(args)))
	}
	if f.AssignedTo != nil {
		args = append(args, *f.AssignedTo)
		parts = append(parts, fmt.Sprintf("%sassigned_to=$%d", prefix, len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		parts = append(parts, fmt.Sprintf("%sstatus=$%d", prefix, len(args)))
	}
	return parts, args
}

func listHistory(ctx context.Context, tx pgx.Tx, ideaID string) ([]domain.IdeaChange, error) {
	const query = `
        SELECT id, idea_id, actor_id, actor_role, change_type, old_value, new_value, created_at
        FROM idea_history
        WHERE idea_id=$1
        ORDER BY created_at ASC, id ASC`

	rows, err := tx.Query(ctx, query, ideaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.IdeaChange
	for rows.Next() {
		var change domain.IdeaChange
		if err := rows.Scan(
			&change.ID,
			&change.IdeaID,
			&change.ActorID,
			&change.ActorRole,
			&change.ChangeType,
			&change.OldValue,
			&change.NewValue,
			&change.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, change)
	}
	return result, rows.Err()
}

func scanIdea(row pgx.Row) (*domain.Idea, error) {
	var idea domain.Idea
	if err := row.Scan(
		&idea.ID,
		&idea.CustomerID,
		&idea.CustomerName,
		&idea.Title,
		&idea.Description,
		&idea.Status,
		&idea.AssignedTo,
		&idea.CreatedAt,
		&idea.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &idea, nil
}
