package verification

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/fulfillment/internal/auth"
	"github.com/Additional-Code/fulfillment/internal/dto"
	"github.com/Additional-Code/fulfillment/internal/entity"
	"github.com/Additional-Code/fulfillment/internal/presentation/http/request"
	"github.com/Additional-Code/fulfillment/internal/presentation/http/response"
	service "github.com/Additional-Code/fulfillment/internal/service/verification"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/fulfillment/transport/http/verification")

// Module wires the delivery verification endpoints.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler exposes delivery code endpoints.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a verification Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts issue, reissue and verify routes.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/orders/:id/logistics/verification-codes", h.issue(false))
	e.POST("/orders/:id/logistics/verification-codes/reissue", h.issue(true))
	e.POST("/verification-codes/:orderId/verify", h.verify)
}

func (h *Handler) issue(reissue bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		b := response.New(c)

		id, err := request.ParamID(c, "id")
		if err != nil {
			return b.WithError(err).Build()
		}
		identity, err := auth.Require(c)
		if err != nil {
			return b.WithError(err).Build()
		}
		var payload dto.IssueCodeRequest
		if err := request.Bind(c, &payload); err != nil {
			return b.WithError(err).Build()
		}

		ctx, span := httpTracer.Start(c.Request().Context(), "verification.issue", trace.WithAttributes(
			attribute.Int64("order.id", id),
			attribute.Bool("reissue", reissue),
		))
		defer span.End()

		in := service.IssueInput{
			OrderID:       id,
			CustomerPhone: payload.CustomerPhone,
			CustomerName:  payload.CustomerName,
			Department:    identity.Department,
			Actor:         identity.Subject,
		}
		issue := h.svc.Issue
		if reissue {
			issue = h.svc.Reissue
		}
		code, err := issue(ctx, in)
		if code == nil {
			return b.WithError(err).Build()
		}

		body := dto.IssueCodeResponse{
			VerificationCode: service.Mask(code.Code),
			ExpiresAt:        code.ExpiresAt,
			SMSStatus:        string(code.SMSStatus),
		}
		if err != nil {
			return b.WithError(err).WithMeta("verificationCode", body).Build()
		}
		return b.WithStatus(http.StatusCreated).WithData(body).Build()
	}
}

func (h *Handler) verify(c echo.Context) error {
	b := response.New(c)

	orderID, err := request.ParamID(c, "orderId")
	if err != nil {
		return b.WithError(err).Build()
	}
	identity, err := auth.Require(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	if identity.Department != entity.DepartmentLogistics && identity.Department != entity.DepartmentAdmin {
		return b.WithError(errorbank.Forbidden("only logistics may verify deliveries")).Build()
	}
	var payload dto.VerifyCodeRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	verifiedBy := strings.TrimSpace(payload.VerifiedBy)
	if verifiedBy == "" {
		verifiedBy = identity.Subject
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "verification.verify", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	res, err := h.svc.Verify(ctx, service.VerifyInput{
		OrderID:    orderID,
		Code:       payload.Code,
		VerifiedBy: verifiedBy,
		Location:   payload.Location,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	body := dto.VerifyCodeResponse{
		Verified:   res.Verified,
		VerifiedAt: res.Code.VerifiedAt,
		VerifiedBy: res.Code.VerifiedBy,
	}
	if res.Order != nil {
		order := dto.NewOrderResponse(res.Order)
		body.Order = &order
	}
	return b.WithData(body).Build()
}
