package resumes

import (
	"context"
	"database/sql"

	"skills-backend/internal/llm"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, resume Resume) error {
	const query = `
INSERT INTO resumes (id, account_id, filename, skills, feedback, storage_key, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var storageKey sql.NullString
	if resume.StorageKey != "" {
		storageKey = sql.NullString{String: resume.StorageKey, Valid: true}
	}
	_, err := r.DB.ExecContext(ctx, query,
		resume.ID,
		resume.AccountID,
		resume.Filename,
		llm.JoinSkills(resume.Skills),
		resume.Feedback,
		storageKey,
		resume.CreatedAt,
	)
	return err
}

func (r *PGRepo) ListByAccount(ctx context.Context, accountID int64, limit int) ([]Resume, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
SELECT id, account_id, filename, skills, feedback, storage_key, created_at
FROM resumes
WHERE account_id = $1
ORDER BY created_at DESC
LIMIT $2`
	rows, err := r.DB.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Resume, 0)
	for rows.Next() {
		var (
			resume     Resume
			skills     string
			storageKey sql.NullString
		)
		if err := rows.Scan(&resume.ID, &resume.AccountID, &resume.Filename, &skills, &resume.Feedback, &storageKey, &resume.CreatedAt); err != nil {
			return nil, err
		}
		resume.Skills = llm.SplitSkills(skills)
		resume.StorageKey = storageKey.String
		resume.CreatedAt = resume.CreatedAt.UTC()
		out = append(out, resume)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
