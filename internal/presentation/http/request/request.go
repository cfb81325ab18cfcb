// Package request binds and validates HTTP input for the transport handlers.
package request

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/fulfillment/internal/entity"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

// Validator adapts go-playground/validator to echo.
type Validator struct {
	v *validator.Validate
}

// NewValidator returns the validator registered on the echo instance.
func NewValidator() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate reports the first failing field as a bad request.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return errorbank.BadRequest(fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()),
			errorbank.WithDetail("field", fe.Field()))
	}
	return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
}

// Bind decodes the body into dst and validates it.
func Bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(dst)
}

// ParamID parses a positive integer path parameter.
func ParamID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest(fmt.Sprintf("invalid %s", name), errorbank.WithDetail(name, c.Param(name)))
	}
	return id, nil
}

// QueryLimit parses the limit query parameter, falling back to def and capping at max.
func QueryLimit(c echo.Context, def, max int) int {
	raw := c.QueryParam("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// Status parses a canonical or legacy status name. An empty value yields fallback.
func Status(raw string, fallback entity.Status) (entity.Status, error) {
	if strings.TrimSpace(raw) == "" {
		if fallback == "" {
			return "", errorbank.BadRequest("status is required")
		}
		return fallback, nil
	}
	s, ok := entity.ParseStatus(raw)
	if !ok {
		return "", errorbank.BadRequest(fmt.Sprintf("unknown status %q", raw))
	}
	return s, nil
}
