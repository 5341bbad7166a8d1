package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kolstack/koltime-api/internal/api/handler/v1/response"
	"github.com/kolstack/koltime-api/internal/api/middleware"
	"github.com/kolstack/koltime-api/internal/domain"
)

type UserService interface {
	GetUser(ctx context.Context, id uint) (domain.User, error)
}

// HandleHealthcheck godoc
// @Summary      Healthcheck
// @Tags         system
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       / [get]
func HandleHealthcheck(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func getUserFromContext(ctx *gin.Context, svc UserService) (domain.User, *response.Err) {
	raw, exists := ctx.Get(middleware.ContextKeyUserID)
	if !exists {
		return domain.User{}, response.ErrUnauthorized("missing authentication")
	}

	userID, ok := raw.(uint)
	if !ok {
		return domain.User{}, response.ErrUnauthorized("invalid authentication context")
	}

	user, err := svc.GetUser(ctx.Request.Context(), userID)
	if err != nil {
		return domain.User{}, response.ErrUnauthorized("unknown user")
	}

	return user, nil
}

// domainErr maps the core error taxonomy onto HTTP semantics. Anything
// untagged is treated as an infrastructure failure.
func domainErr(err error) *response.Err {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return response.ErrBadRequest(err)
	case errors.Is(err, domain.ErrAuthorization):
		return response.ErrPermissionDenied(err)
	case errors.Is(err, domain.ErrDuplicate), errors.Is(err, domain.ErrState):
		return response.ErrConflict(err)
	case errors.Is(err, domain.ErrGuard):
		return response.ErrTooEarly(err)
	case errors.Is(err, domain.ErrTransfer):
		return response.ErrPaymentFailed(err)
	default:
		return response.ErrInternalServerError(err)
	}
}
