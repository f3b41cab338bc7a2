package resumes

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-process Repo for dev mode and tests.
type MemoryRepo struct {
	mu      sync.RWMutex
	resumes []Resume
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) Create(ctx context.Context, resume Resume) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	resume.Skills = append([]string(nil), resume.Skills...)
	r.resumes = append(r.resumes, resume)
	return nil
}

func (r *MemoryRepo) ListByAccount(ctx context.Context, accountID int64, limit int) ([]Resume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Resume, 0)
	for _, resume := range r.resumes {
		if resume.AccountID == accountID {
			out = append(out, resume)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
