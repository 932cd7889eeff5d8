package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/pgbilling/internal/authorization"
	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
	pricingdomain "github.com/smallbiznis/pgbilling/internal/pricing/domain"
	subscriptiondomain "github.com/smallbiznis/pgbilling/internal/subscription/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// classifyErrorForLog feeds the request logger the same type and code the client sees.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, subscriptiondomain.ErrBedLimitReached),
		errors.Is(err, subscriptiondomain.ErrBranchLimitReached):
		return http.StatusForbidden, errorPayload{
			Type:    "upgrade_required",
			Message: "plan limit reached, upgrade to continue",
			Errors: []ValidationError{
				{
					Field:   limitField(err),
					Code:    err.Error(),
					Message: "limit reached",
				},
			},
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidRole):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, plandomain.ErrDuplicateCode),
		errors.Is(err, plandomain.ErrArchived),
		errors.Is(err, subscriptiondomain.ErrNotMutable),
		errors.Is(err, subscriptiondomain.ErrConcurrentUpdate):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isPlanValidationError(err),
		isSubscriptionValidationError(err),
		isPricingValidationError(err),
		isAuthorizationValidationError(err):
		return true
	default:
		return false
	}
}

func isPlanValidationError(err error) bool {
	switch {
	case errors.Is(err, plandomain.ErrInvalidID),
		errors.Is(err, plandomain.ErrInvalidName),
		errors.Is(err, plandomain.ErrInvalidCode),
		errors.Is(err, plandomain.ErrInvalidBillingCycle),
		errors.Is(err, plandomain.ErrInvalidPrice),
		errors.Is(err, plandomain.ErrInvalidCount),
		errors.Is(err, plandomain.ErrInvalidDiscount),
		errors.Is(err, plandomain.ErrInvalidModule),
		errors.Is(err, plandomain.ErrDuplicateModule):
		return true
	default:
		return false
	}
}

func isSubscriptionValidationError(err error) bool {
	switch {
	case errors.Is(err, subscriptiondomain.ErrInvalidOrganization),
		errors.Is(err, subscriptiondomain.ErrInvalidSubscription),
		errors.Is(err, subscriptiondomain.ErrInvalidPlan),
		errors.Is(err, subscriptiondomain.ErrInvalidTrialDays),
		errors.Is(err, subscriptiondomain.ErrInvalidUsage),
		errors.Is(err, subscriptiondomain.ErrInvalidQuantity),
		errors.Is(err, subscriptiondomain.ErrInvalidBillingCycle),
		errors.Is(err, subscriptiondomain.ErrPlanUnavailable):
		return true
	default:
		return false
	}
}

func isPricingValidationError(err error) bool {
	switch {
	case errors.Is(err, pricingdomain.ErrInvalidPlanID),
		errors.Is(err, pricingdomain.ErrInvalidBeds),
		errors.Is(err, pricingdomain.ErrInvalidBranches),
		errors.Is(err, pricingdomain.ErrInvalidBillingCycle),
		errors.Is(err, pricingdomain.ErrInvalidPrice),
		errors.Is(err, pricingdomain.ErrNoPlans):
		return true
	default:
		return false
	}
}

func isAuthorizationValidationError(err error) bool {
	switch {
	case errors.Is(err, authorization.ErrInvalidOrganization),
		errors.Is(err, authorization.ErrInvalidObject),
		errors.Is(err, authorization.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, plandomain.ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrNotFound),
		errors.Is(err, pricingdomain.ErrPlanNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func limitField(err error) string {
	if errors.Is(err, subscriptiondomain.ErrBranchLimitReached) {
		return "branches"
	}
	return "beds"
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return strings.ReplaceAll(err.Error(), "_", " ")
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
