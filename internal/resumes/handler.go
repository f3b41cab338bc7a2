package resumes

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"skills-backend/internal/accounts"
	"skills-backend/internal/gate"
	"skills-backend/internal/shared/server/middleware"
	"skills-backend/internal/shared/server/respond"
)

const (
	defaultMaxUploadBytes int64 = 10 << 20
	defaultListLimit            = 50
	maxListLimit                = 100
)

type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
}

func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/upload-resume", h.upload)
	rg.GET("/resumes", h.list)
}

type usageResponse struct {
	Limit    int    `json:"limit"`
	Used     int    `json:"used"`
	ResetsAt string `json:"resetsAt,omitempty"`
}

type analysisResponse struct {
	ID       string        `json:"id"`
	Filename string        `json:"filename"`
	Skills   []string      `json:"skills"`
	Feedback string        `json:"feedback"`
	Usage    usageResponse `json:"usage"`
}

type resumeResponse struct {
	ID        string   `json:"id"`
	Filename  string   `json:"filename"`
	Skills    []string `json:"skills"`
	Feedback  string   `json:"feedback"`
	CreatedAt string   `json:"createdAt"`
}

func (h *Handler) upload(c *gin.Context) {
	accountID := middleware.AccountIDFromContext(c)
	if accountID == 0 {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "upload exceeds size limit", gin.H{"maxBytes": h.MaxUploadBytes})
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart field 'file' is required", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "could not read upload", nil)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "could not read upload", nil)
		return
	}

	analysis, err := h.Svc.Analyze(c.Request.Context(), accountID, Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	})
	c.Set("gateOutcome", gate.Outcome(gateError(err)))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := analysisResponse{
		ID:       analysis.Resume.ID,
		Filename: analysis.Resume.Filename,
		Skills:   analysis.Resume.Skills,
		Feedback: analysis.Resume.Feedback,
		Usage: usageResponse{
			Limit: analysis.Usage.Limit,
			Used:  analysis.Usage.Used,
		},
	}
	if !analysis.Usage.ResetsAt.IsZero() {
		resp.Usage.ResetsAt = analysis.Usage.ResetsAt.Format(time.RFC3339)
	}
	respond.OK(c, resp)
}

func (h *Handler) list(c *gin.Context) {
	accountID := middleware.AccountIDFromContext(c)
	if accountID == 0 {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "limit must be a positive integer", nil)
			return
		}
		limit = min(n, maxListLimit)
	}

	items, err := h.Svc.List(c.Request.Context(), accountID, limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list resumes", nil)
		return
	}
	out := make([]resumeResponse, 0, len(items))
	for _, r := range items {
		out = append(out, resumeResponse{
			ID:        r.ID,
			Filename:  r.Filename,
			Skills:    r.Skills,
			Feedback:  r.Feedback,
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
		})
	}
	respond.OK(c, gin.H{"items": out})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var quotaErr *gate.QuotaExceededError
	switch {
	case errors.Is(err, gate.ErrNotVerified):
		respond.Error(c, http.StatusForbidden, "email_not_verified", "verify your email before uploading", nil)
	case errors.Is(err, gate.ErrSubscriptionInactive):
		respond.Error(c, http.StatusPaymentRequired, "subscription_inactive", "an active subscription is required", nil)
	case errors.As(err, &quotaErr):
		details := gin.H{"limit": quotaErr.Limit, "used": quotaErr.Used}
		if !quotaErr.ResetsAt.IsZero() {
			details["resetsAt"] = quotaErr.ResetsAt.Format(time.RFC3339)
		}
		if wait := quotaErr.RetryAfter(h.Svc.now()); wait > 0 {
			c.Header("Retry-After", strconv.Itoa(int(wait/time.Second)))
		}
		respond.Error(c, http.StatusTooManyRequests, "quota_exceeded", "monthly API call limit reached", details)
	case errors.Is(err, ErrInvalidUpload):
		respond.Error(c, http.StatusBadRequest, "invalid_file", err.Error(), nil)
	case errors.Is(err, accounts.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "account not found", nil)
	case errors.Is(err, ErrExtractionFailed):
		respond.Error(c, http.StatusInternalServerError, "extraction_failed", "could not analyze resume", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to process resume", nil)
	}
}

// gateError keeps only errors the gate produced so non-gate failures after
// admission still log as admitted.
func gateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gate.ErrNotVerified), errors.Is(err, gate.ErrSubscriptionInactive), errors.Is(err, gate.ErrQuotaExceeded):
		return err
	default:
		return nil
	}
}
