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

type EscrowAdminService interface {
	SetPlatformFee(caller string, bps int64) error
	SetFeeRecipient(caller, addr string) error
	FeeBps() int64
	FeeRecipient() string
	ResolveDispute(ctx context.Context, id uint, caller string, releaseToKOL bool) (domain.Booking, error)
}

type ReputationAdminService interface {
	SetPointConfig(caller string, config domain.PointConfig) error
	PointConfig() domain.PointConfig
	SetTierThresholds(caller string, thresholds domain.TierThresholds) error
	RecomputeAll(ctx context.Context, caller string, users []string) error
}

type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

type AdminHandler struct {
	escrow     EscrowAdminService
	reputation ReputationAdminService
	sweeper    Sweeper
	uSvc       UserService

	// owner is the platform owner address the services expect as the
	// caller of owner-gated operations. Admin users act on its behalf;
	// their personal wallet addresses are unrelated to it.
	owner string
}

func NewAdminHandler(owner string, escrow EscrowAdminService, reputation ReputationAdminService, sweeper Sweeper, uSvc UserService) *AdminHandler {
	return &AdminHandler{
		escrow:     escrow,
		reputation: reputation,
		sweeper:    sweeper,
		uSvc:       uSvc,
		owner:      owner,
	}
}

// adminFromContext resolves the caller and rejects non-admin roles.
// The role check is the HTTP-layer authorization; calls into the
// services then carry the platform owner address.
func (h *AdminHandler) adminFromContext(ctx *gin.Context) (domain.User, *response.Err) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		return domain.User{}, respErr
	}
	if !user.IsAdmin() {
		return domain.User{}, response.ErrPermissionDenied(errors.New("admin role required"))
	}

	return user, nil
}

// HandleGetFeeTerms godoc
// @Summary      Current platform fee terms
// @Tags         admin
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Router       /admin/fee [get]
// @Security BearerAuth
func (h *AdminHandler) HandleGetFeeTerms(ctx *gin.Context) {
	if _, respErr := h.adminFromContext(ctx); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"fee_bps":       h.escrow.FeeBps(),
		"fee_recipient": h.escrow.FeeRecipient(),
	})
}

// HandleSetPlatformFee godoc
// @Summary      Set the platform fee in basis points
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        input body request.SetPlatformFeeRequest true "fee in bps, at most 1000"
// @Success      200 {object} map[string]interface{}
// @Failure      400 {object} response.Err
// @Failure      403 {object} response.Err
// @Router       /admin/fee [put]
// @Security BearerAuth
func (h *AdminHandler) HandleSetPlatformFee(ctx *gin.Context) {
	_, respErr := h.adminFromContext(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var input request.SetPlatformFeeRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := h.escrow.SetPlatformFee(h.owner, input.FeeBps); err != nil {
		response.RenderErr(ctx, domainErr(fmt.Errorf("HandleSetPlatformFee -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"fee_bps": h.escrow.FeeBps()})
}

// HandleSetFeeRecipient godoc
// @Summary      Redirect future platform fees to a new address
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        input body request.SetFeeRecipientRequest true "recipient address"
// @Success      200 {object} map[string]interface{}
// @Router       /admin/fee/recipient [put]
// @Security BearerAuth
func (h *AdminHandler) HandleSetFeeRecipient(ctx *gin.Context) {
	_, respErr := h.adminFromContext(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var input request.SetFeeRecipientRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := h.escrow.SetFeeRecipient(h.owner, input.Address); err != nil {
		response.RenderErr(ctx, domainErr(fmt.Errorf("HandleSetFeeRecipient -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"fee_recipient": h.escrow.FeeRecipient()})
}

// HandleResolveDispute godoc
// @Summary      Resolve a disputed booking by refund or release
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        bookingID path int true "booking id"
// @Param        input body request.ResolveDisputeRequest true "resolution"
// @Success      200 {object} domain.Booking
// @Failure      403 {object} response.Err
// @Failure      409 {object} response.Err
// @Router       /admin/bookings/{bookingID}/resolve [post]
// @Security BearerAuth
func (h *AdminHandler) HandleResolveDispute(ctx *gin.Context) {
	_, respErr := h.adminFromContext(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	id, respErr := bookingIDFromPath(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var input request.ResolveDisputeRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	booking, err := h.escrow.ResolveDispute(ctx.Request.Context(), id, h.owner, input.ReleaseToKOL)
	if err != nil {
		if errors.Is(err, service.ErrBookingNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("booking", "id", id))
			return
		}

		response.RenderErr(ctx, domainErr(fmt.Errorf("HandleResolveDispute -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, booking)
}

// HandleRunSweep godoc
// @Summary      Run the time-gate sweep now
// @Description  Expires overdue pending bookings and releases matured escrows; safe to repeat
// @Tags         admin
// @Produce      json
// @Success      200 {object} service.SweepResult
// @Router       /admin/sweep [post]
// @Security BearerAuth
func (h *AdminHandler) HandleRunSweep(ctx *gin.Context) {
	if _, respErr := h.adminFromContext(ctx); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	result, err := h.sweeper.Sweep(ctx.Request.Context())
	if err != nil {
		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("HandleRunSweep -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// HandleGetPointConfig godoc
// @Summary      Current reputation scoring weights
// @Tags         admin
// @Produce      json
// @Success      200 {object} domain.PointConfig
// @Router       /admin/reputation/config [get]
// @Security BearerAuth
func (h *AdminHandler) HandleGetPointConfig(ctx *gin.Context) {
	if _, respErr := h.adminFromContext(ctx); respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	ctx.JSON(http.StatusOK, h.reputation.PointConfig())
}

// HandleSetPointConfig godoc
// @Summary      Replace the reputation scoring weights
// @Description  Applies to future recomputations; stored scores refresh as events arrive
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        input body request.PointConfigRequest true "scoring weights"
// @Success      200 {object} domain.PointConfig
// @Router       /admin/reputation/config [put]
// @Security BearerAuth
func (h *AdminHandler) HandleSetPointConfig(ctx *gin.Context) {
	_, respErr := h.adminFromContext(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var input request.PointConfigRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	config := domain.PointConfig{
		TxBasePoints:           input.TxBasePoints,
		VolumeMultiplier:       input.VolumeMultiplier,
		BookingCreatedPoints:   input.BookingCreatedPoints,
		BookingAcceptedPoints:  input.BookingAcceptedPoints,
		BookingCompletedPoints: input.BookingCompletedPoints,
		HighRatingThreshold:    input.HighRatingThreshold,
		HighRatingBonus:        input.HighRatingBonus,
		DiversityBonus:         input.DiversityBonus,
		StreakBonus:            input.StreakBonus,
	}

	if err := h.reputation.SetPointConfig(h.owner, config); err != nil {
		response.RenderErr(ctx, domainErr(fmt.Errorf("HandleSetPointConfig -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, h.reputation.PointConfig())
}

// HandleSetTierThresholds godoc
// @Summary      Replace the reputation tier cut-offs
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        input body request.TierThresholdsRequest true "tier thresholds"
// @Success      200 {object} map[string]string
// @Router       /admin/reputation/tiers [put]
// @Security BearerAuth
func (h *AdminHandler) HandleSetTierThresholds(ctx *gin.Context) {
	_, respErr := h.adminFromContext(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var input request.TierThresholdsRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	thresholds := domain.TierThresholds{
		Silver:  input.Silver,
		Gold:    input.Gold,
		Diamond: input.Diamond,
	}

	if err := h.reputation.SetTierThresholds(h.owner, thresholds); err != nil {
		response.RenderErr(ctx, domainErr(fmt.Errorf("HandleSetTierThresholds -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// HandleRecomputeAll godoc
// @Summary      Recompute reputation for a list of users
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        input body request.RecomputeAllRequest true "wallet addresses"
// @Success      200 {object} map[string]string
// @Router       /admin/reputation/recompute [post]
// @Security BearerAuth
func (h *AdminHandler) HandleRecomputeAll(ctx *gin.Context) {
	_, respErr := h.adminFromContext(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var input request.RecomputeAllRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := h.reputation.RecomputeAll(ctx.Request.Context(), h.owner, input.Users); err != nil {
		response.RenderErr(ctx, domainErr(fmt.Errorf("HandleRecomputeAll -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "recomputed"})
}
