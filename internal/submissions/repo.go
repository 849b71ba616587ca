package submissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tadeportfolio/portfolio/internal/telemetry/tracing"
)

var ErrSubmissionNotFound = errors.New("submission not found")

var _ submissionsRepo = (*Repo)(nil)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, submission *Submission) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.submissions.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	err = r.db.QueryRow(
		ctx,
		`INSERT INTO submission
				(name, email, address, pnumber, message)
				VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at;`,
		submission.Name, submission.Email, submission.Address, submission.Phone, submission.Message,
	).Scan(&submission.ID, &submission.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	span.SetAttributes(attribute.Int("submission.id", submission.ID))
	return nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Submission, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.submissions.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	var s Submission
	err = r.db.QueryRow(
		ctx,
		`SELECT id, name, email, address, pnumber, message, created_at FROM submission WHERE id = $1;`,
		id,
	).Scan(&s.ID, &s.Name, &s.Email, &s.Address, &s.Phone, &s.Message, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}

	return &s, nil
}

// List returns all submissions, newest first
func (r *Repo) List(ctx context.Context) (_ []Submission, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.submissions.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, email, address, pnumber, message, created_at
			FROM submission
			ORDER BY created_at DESC, id DESC;`,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var submissions []Submission
	for rows.Next() {
		var s Submission
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.Address, &s.Phone, &s.Message, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		submissions = append(submissions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	span.SetAttributes(attribute.Int("submissions.count", len(submissions)))
	return submissions, nil
}

// Delete reports whether a row was removed, a missing row is not an error
func (r *Repo) Delete(ctx context.Context, id int) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.submissions.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM submission WHERE id = $1;`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("delete submission: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
