package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kolstack/koltime-api/internal/api/handler/v1/request"
	"github.com/kolstack/koltime-api/internal/api/handler/v1/response"
	"github.com/kolstack/koltime-api/internal/domain"
	"github.com/kolstack/koltime-api/internal/service"
)

type ReputationService interface {
	GetReputation(ctx context.Context, user string) (domain.ReputationRecord, error)
	GetActivity(ctx context.Context, user string) (domain.UserActivity, error)
	UpdateSocialMetrics(ctx context.Context, user string, metrics domain.SocialMetrics) error
	TrackTransaction(ctx context.Context, user string, value int64, counterparty, txID string) error
}

type ReputationHandler struct {
	svc  ReputationService
	uSvc UserService
}

func NewReputationHandler(svc ReputationService, uSvc UserService) *ReputationHandler {
	return &ReputationHandler{
		svc:  svc,
		uSvc: uSvc,
	}
}

// HandleGetReputation godoc
// @Summary      Get the scored reputation record for an address
// @Tags         reputation
// @Produce      json
// @Param        address path string true "wallet address"
// @Success      200 {object} domain.ReputationRecord
// @Failure      404 {object} response.Err
// @Router       /reputation/{address} [get]
// @Security BearerAuth
func (h *ReputationHandler) HandleGetReputation(ctx *gin.Context) {
	address := ctx.Param("address")

	record, err := h.svc.GetReputation(ctx.Request.Context(), address)
	if err != nil {
		if errors.Is(err, service.ErrReputationNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("reputation", "address", address))
			return
		}

		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("HandleGetReputation -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, record)
}

// HandleGetActivity godoc
// @Summary      Get the raw activity counters for an address
// @Tags         reputation
// @Produce      json
// @Param        address path string true "wallet address"
// @Success      200 {object} domain.UserActivity
// @Router       /reputation/{address}/activity [get]
// @Security BearerAuth
func (h *ReputationHandler) HandleGetActivity(ctx *gin.Context) {
	address := ctx.Param("address")

	activity, err := h.svc.GetActivity(ctx.Request.Context(), address)
	if err != nil {
		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("HandleGetActivity -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, activity)
}

// HandleUpdateSocialMetrics godoc
// @Summary      Replace the caller's social platform metrics
// @Tags         reputation
// @Accept       json
// @Produce      json
// @Param        input body request.SocialMetricsRequest true "social metrics"
// @Success      200 {object} domain.UserActivity
// @Failure      400 {object} response.Err
// @Router       /social/metrics [put]
// @Security BearerAuth
func (h *ReputationHandler) HandleUpdateSocialMetrics(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var input request.SocialMetricsRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	metrics := domain.SocialMetrics{
		TwitterConnected:    input.TwitterConnected,
		Followers:           input.Followers,
		Engagement:          input.Engagement,
		DiscordConnected:    input.DiscordConnected,
		DiscordActivity:     input.DiscordActivity,
		GithubConnected:     input.GithubConnected,
		GithubContributions: input.GithubContributions,
	}

	if err := h.svc.UpdateSocialMetrics(ctx.Request.Context(), user.WalletAddress, metrics); err != nil {
		response.RenderErr(ctx, domainErr(fmt.Errorf("HandleUpdateSocialMetrics -> %w", err)))
		return
	}

	activity, err := h.svc.GetActivity(ctx.Request.Context(), user.WalletAddress)
	if err != nil {
		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("HandleUpdateSocialMetrics -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, activity)
}

// HandleTrackTransaction godoc
// @Summary      Ingest an observed wallet transaction (admin only)
// @Description  Replayed transaction ids are rejected with a conflict
// @Tags         reputation
// @Accept       json
// @Produce      json
// @Param        input body request.TrackTransactionRequest true "transaction details"
// @Success      202 {object} map[string]string
// @Failure      403 {object} response.Err
// @Failure      409 {object} response.Err
// @Router       /admin/transactions [post]
// @Security BearerAuth
func (h *ReputationHandler) HandleTrackTransaction(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}
	if !user.IsAdmin() {
		response.RenderErr(ctx, response.ErrPermissionDenied(errors.New("admin role required")))
		return
	}

	var input request.TrackTransactionRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	err := h.svc.TrackTransaction(ctx.Request.Context(), input.User, input.Value, input.Counterparty, input.TxID)
	if err != nil {
		response.RenderErr(ctx, domainErr(fmt.Errorf("HandleTrackTransaction -> %w", err)))
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}
