package resumes

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"skills-backend/internal/accounts"
	"skills-backend/internal/extract"
	"skills-backend/internal/llm"
	"skills-backend/internal/quota"
	"skills-backend/internal/shared/metrics"
	"skills-backend/internal/shared/storage/object"
	"skills-backend/internal/shared/telemetry"
)

var (
	ErrInvalidUpload    = errors.New("invalid upload")
	ErrExtractionFailed = errors.New("skill extraction failed")
)

// Gatekeeper is the request gate as seen by the upload flow.
type Gatekeeper interface {
	Authorize(ctx context.Context, accountID int64) (accounts.Account, error)
	Reserve(ctx context.Context, accountID int64) (accounts.Account, error)
}

// Upload is one file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Usage is the caller's quota position after a call.
type Usage struct {
	Limit    int
	Used     int
	ResetsAt time.Time
}

// Analysis is the outcome of a successful upload.
type Analysis struct {
	Resume Resume
	Usage  Usage
}

type Service struct {
	Repo      Repo
	Gate      Gatekeeper
	Extractor llm.SkillExtractor
	Store     object.ObjectStore
	Policy    quota.Policy
	Timeout   time.Duration
	Now       func() time.Time
}

func NewService(repo Repo, gate Gatekeeper, extractor llm.SkillExtractor, store object.ObjectStore, policy quota.Policy, timeout time.Duration) *Service {
	return &Service{
		Repo:      repo,
		Gate:      gate,
		Extractor: extractor,
		Store:     store,
		Policy:    policy,
		Timeout:   timeout,
		Now:       time.Now,
	}
}

// Analyze gates the caller, reads the file, reserves one call, extracts
// skills and records the result. Unreadable files are rejected before any
// quota is consumed; extraction failures keep the reserved call.
func (s *Service) Analyze(ctx context.Context, accountID int64, upload Upload) (Analysis, error) {
	if _, err := s.Gate.Authorize(ctx, accountID); err != nil {
		return Analysis{}, err
	}

	filename := strings.TrimSpace(upload.Filename)
	if filename == "" {
		return Analysis{}, fmt.Errorf("%w: file name is required", ErrInvalidUpload)
	}
	text, err := extract.Text(ctx, upload.Data, upload.ContentType, filename)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupported) || errors.Is(err, extract.ErrEmpty) {
			return Analysis{}, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
		}
		return Analysis{}, err
	}

	acct, err := s.Gate.Reserve(ctx, accountID)
	if err != nil {
		return Analysis{}, err
	}

	result, err := s.extract(ctx, accountID, text)
	if err != nil {
		return Analysis{}, err
	}

	resume := Resume{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Filename:  filename,
		Skills:    result.Skills,
		Feedback:  result.Feedback,
		CreatedAt: s.now(),
	}
	resume.StorageKey = s.archive(ctx, accountID, upload, filename)

	if err := s.Repo.Create(ctx, resume); err != nil {
		if resume.StorageKey != "" {
			if delErr := s.Store.Delete(context.WithoutCancel(ctx), resume.StorageKey); delErr != nil {
				telemetry.Warn("resume.archive.cleanup_failed", map[string]any{
					"account_id":  accountID,
					"storage_key": resume.StorageKey,
					"error":       delErr.Error(),
				})
			}
		}
		return Analysis{}, fmt.Errorf("save resume: %w", err)
	}

	telemetry.Info("resume.analyzed", map[string]any{
		"account_id":  accountID,
		"resume_id":   resume.ID,
		"skill_count": len(resume.Skills),
		"calls_used":  acct.APICallsThisMonth,
	})
	return Analysis{
		Resume: resume,
		Usage: Usage{
			Limit:    s.Policy.Limit,
			Used:     acct.APICallsThisMonth,
			ResetsAt: s.Policy.ResetsAt(acct.Usage()),
		},
	}, nil
}

func (s *Service) List(ctx context.Context, accountID int64, limit int) ([]Resume, error) {
	return s.Repo.ListByAccount(ctx, accountID, limit)
}

func (s *Service) extract(ctx context.Context, accountID int64, text string) (llm.Result, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	start := time.Now()
	result, err := s.Extractor.ExtractSkills(ctx, text)
	if err != nil {
		metrics.ObserveExtraction(time.Since(start), "error")
		telemetry.Error("resume.extraction.failed", map[string]any{
			"account_id": accountID,
			"error":      err.Error(),
		})
		return llm.Result{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	metrics.ObserveExtraction(time.Since(start), "ok")
	return result, nil
}

// archive keeps a copy of the original upload. Archival is best effort.
func (s *Service) archive(ctx context.Context, accountID int64, upload Upload, filename string) string {
	if s.Store == nil {
		return ""
	}
	owner := "account:" + strconv.FormatInt(accountID, 10)
	key, err := s.Store.Put(ctx, owner, filename, upload.ContentType, upload.Data)
	if err != nil {
		telemetry.Warn("resume.archive.failed", map[string]any{"account_id": accountID, "error": err.Error()})
		return ""
	}
	return key
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}
