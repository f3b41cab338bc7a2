package resumes

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("resume not found")

// Repo persists analyzed resumes.
type Repo interface {
	Create(ctx context.Context, r Resume) error
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]Resume, error)
}
