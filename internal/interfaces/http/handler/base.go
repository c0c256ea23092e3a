package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	inventoryapp "github.com/pharmaledger/backend/internal/application/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"github.com/pharmaledger/backend/internal/infrastructure/logger"
	"github.com/pharmaledger/backend/internal/infrastructure/scheduler"
	"github.com/pharmaledger/backend/internal/interfaces/http/dto"
	"github.com/pharmaledger/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// DateLayout is the calendar date format of query parameters
const DateLayout = middleware.DateLayout

// BaseHandler provides common handler utilities
type BaseHandler struct{}

func getRequestID(c *gin.Context) string {
	if id := c.GetString(logger.GinRequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the given status
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// Unauthorized sends a 401 response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// HandleError converts an error returned by a service into a response.
// Domain errors keep their code. Several domain errors joined together are
// reported under the first one's code with every offender listed in details.
// Anything else is logged and hidden behind ERR_INTERNAL.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := getRequestID(c)

	if errors.Is(err, scheduler.ErrSweepInProgress) {
		c.JSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeSweepInProgress, "An expiry sweep is already running", requestID))
		return
	}

	if domainErrs := collectDomainErrors(err); len(domainErrs) > 0 {
		first := domainErrs[0]
		resp := dto.NewErrorResponseWithRequestID(first.Code, first.Message, requestID)
		resp.Error.EntityID = first.EntityID
		if len(domainErrs) > 1 {
			messages := make([]string, 0, len(domainErrs))
			for _, de := range domainErrs {
				messages = append(messages, de.Message)
				resp.Error.Details = append(resp.Error.Details, dto.ValidationDetail{
					Field:   de.EntityID,
					Message: de.Message,
				})
			}
			resp.Error.Message = strings.Join(messages, "; ")
		}
		c.JSON(dto.GetHTTPStatus(first.Code), resp)
		return
	}

	_ = c.Error(err)
	logger.GetGinLogger(c).Error("Request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}

// collectDomainErrors walks wrapped and joined errors depth first
func collectDomainErrors(err error) []*shared.DomainError {
	var out []*shared.DomainError
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if de, ok := e.(*shared.DomainError); ok {
			out = append(out, de)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}

// bindJSON binds the body and writes the 400 itself on failure
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// pathID parses a uuid path parameter
func (h *BaseHandler) pathID(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+label+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// actorPtr returns the authenticated actor, or nil when the request is anonymous
func actorPtr(c *gin.Context) *uuid.UUID {
	if id, ok := middleware.GetActorID(c); ok {
		return &id
	}
	return nil
}

// requireActor is for workflow actions that record who did them
func (h *BaseHandler) requireActor(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.GetActorID(c)
	if !ok {
		h.Unauthorized(c, "An authenticated user is required")
		return uuid.Nil, false
	}
	return id, true
}

// listQuery is the query string shared by list endpoints
type listQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Search   string `form:"search"`
	Status   string `form:"status"`
	BatchID  string `form:"batch_id" binding:"omitempty,uuid"`
	Result   string `form:"result" binding:"omitempty,oneof=success not_found expired error"`
	From     string `form:"from" binding:"omitempty,isodate"`
	To       string `form:"to" binding:"omitempty,isodate"`
}

// listFilter binds the list query into a service filter
func (h *BaseHandler) listFilter(c *gin.Context) (inventoryapp.ListFilter, bool) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return inventoryapp.ListFilter{}, false
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = 20
	}

	filter := inventoryapp.ListFilter{
		Page:     q.Page,
		PageSize: q.PageSize,
		Search:   q.Search,
		Status:   q.Status,
		Result:   q.Result,
	}
	if q.BatchID != "" {
		id := uuid.MustParse(q.BatchID)
		filter.BatchID = &id
	}
	if q.From != "" {
		from, _ := time.Parse(DateLayout, q.From)
		filter.From = &from
	}
	if q.To != "" {
		// inclusive of the whole day
		to, _ := time.Parse(DateLayout, q.To)
		to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		filter.To = &to
	}
	return filter, true
}

// parseDate parses a YYYY-MM-DD value as midnight UTC
func parseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// parseOptionalDate returns nil for an empty string
func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// optionalDate parses an optional date field and writes the 400 itself
func (h *BaseHandler) optionalDate(c *gin.Context, field, value string) (*time.Time, bool) {
	t, err := parseOptionalDate(value)
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, field+" must be a date in YYYY-MM-DD format")
		return nil, false
	}
	return t, true
}

func queryBool(c *gin.Context, key string) bool {
	v, _ := strconv.ParseBool(c.Query(key))
	return v
}
