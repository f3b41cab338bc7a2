package resumes

import "time"

// Resume is one analyzed upload owned by an account.
type Resume struct {
	ID         string
	AccountID  int64
	Filename   string
	Skills     []string
	Feedback   string
	StorageKey string
	CreatedAt  time.Time
}
