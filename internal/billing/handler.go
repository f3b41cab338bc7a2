package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"skills-backend/internal/accounts"
	"skills-backend/internal/shared/metrics"
	"skills-backend/internal/shared/server/middleware"
	"skills-backend/internal/shared/server/respond"
	"skills-backend/internal/shared/telemetry"
)

const maxWebhookBytes = 256 << 10

type Handler struct {
	Verifier   Verifier
	Reconciler *Reconciler
	// Provider is nil when checkout is not configured.
	Provider Provider
	Accounts accounts.Repo
}

func NewHandler(verifier Verifier, reconciler *Reconciler, provider Provider, repo accounts.Repo) *Handler {
	return &Handler{Verifier: verifier, Reconciler: reconciler, Provider: provider, Accounts: repo}
}

// RegisterPublicRoutes attaches the provider-facing webhook.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/billing/webhook", h.webhook)
}

// RegisterRoutes attaches the authenticated billing endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/billing/checkout", h.checkout)
	rg.GET("/billing/portal", h.portal)
}

func (h *Handler) webhook(c *gin.Context) {
	if h.Verifier.Secret == "" {
		metrics.RecordWebhookRejection("not_configured")
		respond.Error(c, http.StatusInternalServerError, "webhook_not_configured", "webhook secret is not configured", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes+1))
	if err != nil {
		metrics.RecordWebhookRejection("unreadable")
		respond.Error(c, http.StatusBadRequest, "invalid_payload", "could not read body", nil)
		return
	}
	if len(body) > maxWebhookBytes {
		metrics.RecordWebhookRejection("too_large")
		respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "webhook body too large", nil)
		return
	}

	if err := h.Verifier.Verify(c.GetHeader(SignatureHeader), body); err != nil {
		switch {
		case errors.Is(err, ErrMissingSignature):
			metrics.RecordWebhookRejection("missing_signature")
			respond.Error(c, http.StatusBadRequest, "missing_signature", "signature header is required", nil)
		case errors.Is(err, ErrMalformedSignature):
			metrics.RecordWebhookRejection("malformed_signature")
			respond.Error(c, http.StatusBadRequest, "malformed_signature", "signature header is malformed", nil)
		case errors.Is(err, ErrSignatureExpired):
			metrics.RecordWebhookRejection("expired")
			respond.Error(c, http.StatusUnauthorized, "signature_expired", "signature timestamp outside tolerance", nil)
		default:
			metrics.RecordWebhookRejection("mismatch")
			respond.Error(c, http.StatusUnauthorized, "invalid_signature", "signature mismatch", nil)
		}
		return
	}

	ev, err := ParseEvent(body)
	if err != nil {
		telemetry.Warn("billing.event.malformed", map[string]any{"error": err.Error()})
		metrics.RecordWebhookEvent("unknown", string(ResultIgnored))
		respond.OK(c, gin.H{"status": ResultIgnored})
		return
	}

	result, err := h.Reconciler.Apply(c.Request.Context(), ev)
	if err != nil {
		telemetry.Error("billing.event.failed", map[string]any{
			"event_id":   ev.ID,
			"event_type": ev.Type,
			"error":      err.Error(),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to apply event", nil)
		return
	}
	respond.OK(c, gin.H{"status": result})
}

func (h *Handler) checkout(c *gin.Context) {
	acct, ok := h.caller(c)
	if !ok {
		return
	}
	if h.Provider == nil {
		respond.Error(c, http.StatusInternalServerError, "billing_not_configured", "payment provider is not configured", nil)
		return
	}
	checkoutURL, err := h.Provider.CreateCheckout(c.Request.Context(), acct.ID, acct.Email)
	if err != nil {
		writeProviderError(c, err)
		return
	}
	respond.OK(c, gin.H{"checkoutUrl": checkoutURL})
}

func (h *Handler) portal(c *gin.Context) {
	acct, ok := h.caller(c)
	if !ok {
		return
	}
	if h.Provider == nil {
		respond.Error(c, http.StatusInternalServerError, "billing_not_configured", "payment provider is not configured", nil)
		return
	}
	if acct.BillingCustomerID == "" {
		respond.Error(c, http.StatusConflict, "no_customer", "no billing customer on file yet", nil)
		return
	}
	portalURL, err := h.Provider.CreatePortalSession(c.Request.Context(), acct.BillingCustomerID)
	if err != nil {
		writeProviderError(c, err)
		return
	}
	respond.OK(c, gin.H{"portalUrl": portalURL})
}

func (h *Handler) caller(c *gin.Context) (accounts.Account, bool) {
	id := middleware.AccountIDFromContext(c)
	if id == 0 {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return accounts.Account{}, false
	}
	acct, err := h.Accounts.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "account not found", nil)
			return accounts.Account{}, false
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load account", nil)
		return accounts.Account{}, false
	}
	return acct, true
}

func writeProviderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrProviderUnavailable):
		respond.Error(c, http.StatusServiceUnavailable, "provider_unavailable", "could not reach payment provider", nil)
	case errors.Is(err, ErrProviderRejected):
		respond.Error(c, http.StatusBadGateway, "provider_error", "payment provider rejected the request", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "billing request failed", nil)
	}
}
