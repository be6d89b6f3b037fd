package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taskhub/taskhub/internal/domain/todo"
	"github.com/taskhub/taskhub/internal/observability"
)

type TodosRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTodosRepo(pool *pgxpool.Pool, prom *observability.Prom) *TodosRepo {
	return &TodosRepo{pool: pool, prom: prom}
}

func (r *TodosRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *TodosRepo) Create(ctx context.Context, ownerID int64, req todo.CreateToDoRequest) (todo.ToDo, error) {
	var t todo.ToDo

	err := r.observe("todos.create", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO todos (title, completed, user_id)
			VALUES ($1, $2, $3)
			RETURNING id, title, completed, user_id, created_at, updated_at`,
			req.Title, req.Completed, ownerID,
		).Scan(&t.ID, &t.Title, &t.Completed, &t.UserID, &t.CreatedAt, &t.UpdatedAt)
	})

	if err != nil {
		return todo.ToDo{}, err
	}

	return t, nil
}

// GetByID is ownership scoped: a todo belonging to another user is
// indistinguishable from a missing one.
func (r *TodosRepo) GetByID(ctx context.Context, id, ownerID int64) (todo.ToDo, error) {
	var t todo.ToDo

	err := r.observe("todos.get_by_id", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, title, completed, user_id, created_at, updated_at
			FROM todos
			WHERE id = $1 AND user_id = $2`,
			id, ownerID,
		).Scan(&t.ID, &t.Title, &t.Completed, &t.UserID, &t.CreatedAt, &t.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return todo.ToDo{}, todo.ErrNotFound
		}

		return todo.ToDo{}, err
	}

	return t, nil
}

func (r *TodosRepo) List(ctx context.Context, ownerID int64, filter todo.ListFilter) ([]todo.ToDo, int, error) {
	out := make([]todo.ToDo, 0, filter.Limit)
	total := 0

	err := r.observe("todos.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, title, completed, user_id, created_at, updated_at,
				COUNT(*) OVER() AS total
			FROM todos
			WHERE user_id = $1
			ORDER BY id ASC
			LIMIT $2 OFFSET $3`,
			ownerID, filter.Limit, filter.Skip,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			var t todo.ToDo
			var n int

			err = rows.Scan(&t.ID, &t.Title, &t.Completed, &t.UserID, &t.CreatedAt, &t.UpdatedAt, &n)

			if err != nil {
				return err
			}

			total = n
			out = append(out, t)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, 0, err
	}

	return out, total, nil
}

func (r *TodosRepo) Update(ctx context.Context, id, ownerID int64, req todo.UpdateToDoRequest) (todo.ToDo, error) {
	var t todo.ToDo

	err := r.observe("todos.update", func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE todos
				SET title = $3,
					completed = $4,
					updated_at = NOW()
			WHERE id = $1 AND user_id = $2
			RETURNING id, title, completed, user_id, created_at, updated_at`,
			id, ownerID, req.Title, req.Completed,
		).Scan(&t.ID, &t.Title, &t.Completed, &t.UserID, &t.CreatedAt, &t.UpdatedAt)
	})

	if err != nil {
		// no rows matching id+owner
		if errors.Is(err, pgx.ErrNoRows) {
			return todo.ToDo{}, todo.ErrNotFound
		}

		return todo.ToDo{}, err
	}

	return t, nil
}

// Delete removes the row permanently. There is no tombstone state.
func (r *TodosRepo) Delete(ctx context.Context, id, ownerID int64) error {
	var affected int64

	err := r.observe("todos.delete", func() error {
		tag, err := r.pool.Exec(ctx,
			`DELETE FROM todos WHERE id = $1 AND user_id = $2`,
			id, ownerID,
		)

		if err != nil {
			return err
		}

		affected = tag.RowsAffected()

		return nil
	})

	if err != nil {
		return err
	}

	if affected == 0 {
		return todo.ErrNotFound
	}

	return nil
}
