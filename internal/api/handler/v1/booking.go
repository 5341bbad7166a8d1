package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kolstack/koltime-api/internal/api/handler/v1/request"
	"github.com/kolstack/koltime-api/internal/api/handler/v1/response"
	"github.com/kolstack/koltime-api/internal/domain"
	"github.com/kolstack/koltime-api/internal/service"
)

type BookingService interface {
	CreateBooking(ctx context.Context, buyer, kol string, pricePerUnit, unitCount int64, fromTime, toTime time.Time, reason, metadataRef string, paidAmount int64) (domain.Booking, error)
	AcceptBooking(ctx context.Context, id uint, caller string) (domain.Booking, error)
	RejectBooking(ctx context.Context, id uint, caller string) (domain.Booking, error)
	CancelBooking(ctx context.Context, id uint, caller string) (domain.Booking, error)
	CompleteSession(ctx context.Context, id uint, caller string) (domain.Booking, error)
	ReportDispute(ctx context.Context, id uint, caller, reason string) (domain.Booking, error)
	RateSession(ctx context.Context, id uint, caller string, rating int) (domain.Booking, error)
	GetBooking(ctx context.Context, id uint) (domain.Booking, error)
	GetBookingsByParty(ctx context.Context, address string) ([]domain.Booking, error)
}

type TicketService interface {
	GetTicket(ctx context.Context, id uint) (domain.Ticket, error)
	GetTicketByBooking(ctx context.Context, bookingID uint) (domain.Ticket, error)
	Transfer(ctx context.Context, id uint, caller, to string) (domain.Ticket, error)
}

type Wallet interface {
	Balance(addr string) int64
	Deposit(addr string, amount int64) error
}

type BookingHandler struct {
	svc     BookingService
	tickets TicketService
	wallet  Wallet
	uSvc    UserService
}

func NewBookingHandler(svc BookingService, tickets TicketService, wallet Wallet, uSvc UserService) *BookingHandler {
	return &BookingHandler{
		svc:     svc,
		tickets: tickets,
		wallet:  wallet,
		uSvc:    uSvc,
	}
}

func bookingIDFromPath(ctx *gin.Context) (uint, *response.Err) {
	raw := ctx.Param("bookingID")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, response.ErrBadRequest(fmt.Errorf("invalid booking id %q", raw))
	}

	return uint(id), nil
}

// HandleCreateBooking godoc
// @Summary      Book a kol's time slot
// @Description  Escrows the payment, creates the booking and mints its ticket
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Param        input body request.CreateBookingRequest true "booking details"
// @Success      201 {object} domain.Booking
// @Failure      400 {object} response.Err
// @Failure      401 {object} response.Err
// @Failure      502 {object} response.Err
// @Router       /bookings [post]
// @Security BearerAuth
func (h *BookingHandler) HandleCreateBooking(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var input request.CreateBookingRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	fromTime, err := time.Parse(time.RFC3339, input.FromTime)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("invalid from_time: %v", err)))
		return
	}
	toTime, err := time.Parse(time.RFC3339, input.ToTime)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("invalid to_time: %v", err)))
		return
	}

	booking, err := h.svc.CreateBooking(ctx.Request.Context(), user.WalletAddress, input.KOLAddress,
		input.PricePerUnit, input.UnitCount, fromTime, toTime, input.Reason, input.MetadataRef, input.PaidAmount)
	if err != nil {
		response.RenderErr(ctx, domainErr(fmt.Errorf("HandleCreateBooking -> h.svc.CreateBooking -> %w", err)))
		return
	}

	ctx.JSON(http.StatusCreated, booking)
}

// HandleGetBooking godoc
// @Summary      Get a booking
// @Tags         bookings
// @Produce      json
// @Param        bookingID path int true "booking id"
// @Success      200 {object} domain.Booking
// @Failure      404 {object} response.Err
// @Router       /bookings/{bookingID} [get]
// @Security BearerAuth
func (h *BookingHandler) HandleGetBooking(ctx *gin.Context) {
	id, respErr := bookingIDFromPath(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	booking, err := h.svc.GetBooking(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrBookingNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("booking", "id", id))
			return
		}

		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("HandleGetBooking -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, booking)
}

// HandleListMyBookings godoc
// @Summary      List bookings for the authenticated user
// @Tags         bookings
// @Produce      json
// @Success      200 {array} domain.Booking
// @Router       /bookings [get]
// @Security BearerAuth
func (h *BookingHandler) HandleListMyBookings(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	bookings, err := h.svc.GetBookingsByParty(ctx.Request.Context(), user.WalletAddress)
	if err != nil {
		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("HandleListMyBookings -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, bookings)
}

// lifecycleCall runs one booking transition for the authenticated
// caller; every transition handler shares this shape.
func (h *BookingHandler) lifecycleCall(ctx *gin.Context, op string, call func(c context.Context, id uint, caller string) (domain.Booking, error)) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	id, respErr := bookingIDFromPath(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	booking, err := call(ctx.Request.Context(), id, user.WalletAddress)
	if err != nil {
		if errors.Is(err, service.ErrBookingNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("booking", "id", id))
			return
		}

		response.RenderErr(ctx, domainErr(fmt.Errorf("%s -> %w", op, err)))
		return
	}

	ctx.JSON(http.StatusOK, booking)
}

// HandleAcceptBooking godoc
// @Summary      Accept a pending booking (kol only)
// @Tags         bookings
// @Produce      json
// @Param        bookingID path int true "booking id"
// @Success      200 {object} domain.Booking
// @Failure      403 {object} response.Err
// @Failure      409 {object} response.Err
// @Failure      425 {object} response.Err
// @Router       /bookings/{bookingID}/accept [post]
// @Security BearerAuth
func (h *BookingHandler) HandleAcceptBooking(ctx *gin.Context) {
	h.lifecycleCall(ctx, "HandleAcceptBooking", h.svc.AcceptBooking)
}

// HandleRejectBooking godoc
// @Summary      Reject a pending booking and refund the buyer (kol only)
// @Tags         bookings
// @Produce      json
// @Param        bookingID path int true "booking id"
// @Success      200 {object} domain.Booking
// @Router       /bookings/{bookingID}/reject [post]
// @Security BearerAuth
func (h *BookingHandler) HandleRejectBooking(ctx *gin.Context) {
	h.lifecycleCall(ctx, "HandleRejectBooking", h.svc.RejectBooking)
}

// HandleCancelBooking godoc
// @Summary      Cancel a pending booking and refund (buyer only)
// @Tags         bookings
// @Produce      json
// @Param        bookingID path int true "booking id"
// @Success      200 {object} domain.Booking
// @Router       /bookings/{bookingID}/cancel [post]
// @Security BearerAuth
func (h *BookingHandler) HandleCancelBooking(ctx *gin.Context) {
	h.lifecycleCall(ctx, "HandleCancelBooking", h.svc.CancelBooking)
}

// HandleCompleteSession godoc
// @Summary      Mark the booked session as ended (kol only)
// @Tags         bookings
// @Produce      json
// @Param        bookingID path int true "booking id"
// @Success      200 {object} domain.Booking
// @Router       /bookings/{bookingID}/complete [post]
// @Security BearerAuth
func (h *BookingHandler) HandleCompleteSession(ctx *gin.Context) {
	h.lifecycleCall(ctx, "HandleCompleteSession", h.svc.CompleteSession)
}

// HandleReportDispute godoc
// @Summary      Report a dispute inside the dispute window (buyer only)
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Param        bookingID path int true "booking id"
// @Param        input body request.ReportDisputeRequest true "dispute reason"
// @Success      200 {object} domain.Booking
// @Router       /bookings/{bookingID}/dispute [post]
// @Security BearerAuth
func (h *BookingHandler) HandleReportDispute(ctx *gin.Context) {
	var input request.ReportDisputeRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	h.lifecycleCall(ctx, "HandleReportDispute", func(c context.Context, id uint, caller string) (domain.Booking, error) {
		return h.svc.ReportDispute(c, id, caller, input.Reason)
	})
}

// HandleRateSession godoc
// @Summary      Rate a finished session once (buyer only)
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Param        bookingID path int true "booking id"
// @Param        input body request.RateSessionRequest true "rating, tenths of a star"
// @Success      200 {object} domain.Booking
// @Router       /bookings/{bookingID}/rate [post]
// @Security BearerAuth
func (h *BookingHandler) HandleRateSession(ctx *gin.Context) {
	var input request.RateSessionRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	h.lifecycleCall(ctx, "HandleRateSession", func(c context.Context, id uint, caller string) (domain.Booking, error) {
		return h.svc.RateSession(c, id, caller, *input.Rating)
	})
}

// HandleGetTicket godoc
// @Summary      Get a ticket by id
// @Tags         tickets
// @Produce      json
// @Param        ticketID path int true "ticket id"
// @Success      200 {object} domain.Ticket
// @Failure      404 {object} response.Err
// @Router       /tickets/{ticketID} [get]
// @Security BearerAuth
func (h *BookingHandler) HandleGetTicket(ctx *gin.Context) {
	raw := ctx.Param("ticketID")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("invalid ticket id %q", raw)))
		return
	}

	ticket, err := h.tickets.GetTicket(ctx.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, service.ErrTicketNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("ticket", "id", id))
			return
		}

		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("HandleGetTicket -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, ticket)
}

// HandleTransferTicket godoc
// @Summary      Transfer a ticket, when policy allows transfers at all
// @Tags         tickets
// @Accept       json
// @Produce      json
// @Param        ticketID path int true "ticket id"
// @Param        input body request.TransferTicketRequest true "new owner address"
// @Success      200 {object} domain.Ticket
// @Failure      403 {object} response.Err
// @Failure      409 {object} response.Err
// @Router       /tickets/{ticketID}/transfer [post]
// @Security BearerAuth
func (h *BookingHandler) HandleTransferTicket(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	raw := ctx.Param("ticketID")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("invalid ticket id %q", raw)))
		return
	}

	var input request.TransferTicketRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	ticket, err := h.tickets.Transfer(ctx.Request.Context(), uint(id), user.WalletAddress, input.To)
	if err != nil {
		if errors.Is(err, service.ErrTicketNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("ticket", "id", id))
			return
		}

		response.RenderErr(ctx, domainErr(fmt.Errorf("HandleTransferTicket -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, ticket)
}

// HandleGetWalletBalance godoc
// @Summary      Get the authenticated user's ledger balance
// @Tags         wallet
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Router       /wallet/balance [get]
// @Security BearerAuth
func (h *BookingHandler) HandleGetWalletBalance(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"address": user.WalletAddress,
		"balance": h.wallet.Balance(user.WalletAddress),
	})
}

// HandleDeposit godoc
// @Summary      Credit the authenticated user's wallet
// @Description  Development on-ramp; production funding goes through the payment provider boundary
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Param        input body request.DepositRequest true "amount"
// @Success      200 {object} map[string]interface{}
// @Router       /wallet/deposit [post]
// @Security BearerAuth
func (h *BookingHandler) HandleDeposit(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var input request.DepositRequest
	if err := ctx.ShouldBindJSON(&input); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := input.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := h.wallet.Deposit(user.WalletAddress, input.Amount); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"address": user.WalletAddress,
		"balance": h.wallet.Balance(user.WalletAddress),
	})
}
