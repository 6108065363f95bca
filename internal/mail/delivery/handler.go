package delivery

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"mailbridge-backend/internal/mail/domain"
	"mailbridge-backend/internal/mail/repository"
	"mailbridge-backend/internal/mail/usecase"
	"mailbridge-backend/internal/search"
	"mailbridge-backend/pkg/nylas"

	"github.com/gin-gonic/gin"
)

type MailHandler struct {
	syncUsecase  usecase.SyncUsecase
	indexManager *search.Manager
	accountRepo  repository.AccountRepository
	mailStore    repository.MailStore
}

func NewMailHandler(syncUsecase usecase.SyncUsecase, indexManager *search.Manager, accountRepo repository.AccountRepository, mailStore repository.MailStore) *MailHandler {
	return &MailHandler{
		syncUsecase:  syncUsecase,
		indexManager: indexManager,
		accountRepo:  accountRepo,
		mailStore:    mailStore,
	}
}

// authorizeAccount loads the account and verifies the caller owns it.
func (h *MailHandler) authorizeAccount(c *gin.Context) (*domain.Account, bool) {
	accountID := c.Param("id")
	account, err := h.accountRepo.FindByID(accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if account == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return nil, false
	}
	if account.UserID != c.GetString("userID") {
		c.JSON(http.StatusForbidden, gin.H{"error": "you do not have access to this account"})
		return nil, false
	}
	return account, true
}

func (h *MailHandler) TriggerSync(c *gin.Context) {
	account, ok := h.authorizeAccount(c)
	if !ok {
		return
	}

	report, err := h.syncUsecase.Sync(c.Request.Context(), account.ID)
	if err != nil {
		h.writeSyncError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *MailHandler) SyncStatus(c *gin.Context) {
	account, ok := h.authorizeAccount(c)
	if !ok {
		return
	}

	state, err := h.syncUsecase.SyncState(account.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account_id": account.ID,
		"state":      state,
		"has_cursor": account.NextDeltaToken != nil && *account.NextDeltaToken != "",
	})
}

func (h *MailHandler) Search(c *gin.Context) {
	account, ok := h.authorizeAccount(c)
	if !ok {
		return
	}

	term := c.Query("q")
	if term == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}

	hits, err := h.indexManager.Search(account.ID, term)
	if err != nil {
		h.writeSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"hits": hits, "count": len(hits)})
}

type semanticSearchRequest struct {
	Prompt     string `json:"prompt" binding:"required"`
	NumResults int    `json:"num_results"`
}

func (h *MailHandler) SemanticSearch(c *gin.Context) {
	account, ok := h.authorizeAccount(c)
	if !ok {
		return
	}

	var req semanticSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.NumResults <= 0 {
		req.NumResults = 10
	}

	hits, err := h.indexManager.VectorSearch(c.Request.Context(), account.ID, req.Prompt, req.NumResults)
	if err != nil {
		h.writeSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"hits": hits, "count": len(hits)})
}

func (h *MailHandler) GetEmails(c *gin.Context) {
	account, ok := h.authorizeAccount(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	emails, total, err := h.mailStore.GetEmailsByAccount(account.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"emails": emails, "total": total, "limit": limit, "offset": offset})
}

func (h *MailHandler) GetThreads(c *gin.Context) {
	account, ok := h.authorizeAccount(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	threads, total, err := h.mailStore.GetThreadsByAccount(account.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"threads": threads, "total": total, "limit": limit, "offset": offset})
}

func (h *MailHandler) GetWebhooks(c *gin.Context) {
	account, ok := h.authorizeAccount(c)
	if !ok {
		return
	}

	webhooks, err := h.syncUsecase.ListWebhooks(c.Request.Context(), account.ID)
	if err != nil {
		h.writeSyncError(c, err)
		return
	}

	c.JSON(http.StatusOK, webhooks)
}

type createWebhookRequest struct {
	NotificationURL string   `json:"notification_url" binding:"required,url"`
	Triggers        []string `json:"triggers"`
}

func (h *MailHandler) CreateWebhook(c *gin.Context) {
	account, ok := h.authorizeAccount(c)
	if !ok {
		return
	}

	var req createWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	webhook, err := h.syncUsecase.CreateWebhook(c.Request.Context(), account.ID, req.NotificationURL, req.Triggers)
	if err != nil {
		h.writeSyncError(c, err)
		return
	}

	c.JSON(http.StatusCreated, webhook)
}

func (h *MailHandler) DeleteWebhook(c *gin.Context) {
	account, ok := h.authorizeAccount(c)
	if !ok {
		return
	}

	if err := h.syncUsecase.DeleteWebhook(c.Request.Context(), account.ID, c.Param("webhookId")); err != nil {
		h.writeSyncError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "webhook deleted"})
}

func (h *MailHandler) SendEmail(c *gin.Context) {
	account, ok := h.authorizeAccount(c)
	if !ok {
		return
	}

	var req nylas.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.syncUsecase.SendEmail(c.Request.Context(), account.ID, &req)
	if err != nil {
		h.writeSyncError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type providerNotification struct {
	Type string `json:"type"`
	Data struct {
		GrantID string `json:"grant_id"`
	} `json:"data"`
}

// ProviderWebhook receives change notifications from the mailbox provider
// and kicks off a delta sync for the referenced account. The provider
// only needs an acknowledgement, so the sync runs in the background.
func (h *MailHandler) ProviderWebhook(c *gin.Context) {
	// Subscription validation handshake: echo the challenge back.
	if challenge := c.Query("challenge"); challenge != "" {
		c.String(http.StatusOK, challenge)
		return
	}

	var notification providerNotification
	if err := c.ShouldBindJSON(&notification); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification payload"})
		return
	}
	if notification.Data.GrantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "notification missing grant id"})
		return
	}

	go func(accountID string) {
		if _, err := h.syncUsecase.Sync(context.Background(), accountID); err != nil {
			if errors.Is(err, domain.ErrSyncInProgress) {
				return
			}
			log.Printf("[Webhook] Sync triggered by notification failed for account %s: %v", accountID, err)
		}
	}(notification.Data.GrantID)

	c.JSON(http.StatusOK, gin.H{"message": "accepted"})
}

func (h *MailHandler) writeSyncError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrMissingCursor):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrSyncInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRemoteAuth):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRemoteUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrSyncTruncated):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *MailHandler) writeSearchError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrIndexNotInitialized) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = 20
	offset = 0

	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
