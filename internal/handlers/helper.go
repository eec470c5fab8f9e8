package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/auth"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// parseIDParam returns 0 after writing a 400 when the path parameter is not a positive id
func (h *BaseHandler) parseIDParam(c *gin.Context, param string) uint {
	idStr := strings.TrimSpace(c.Param(param))
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidationFailed, "Invalid "+param, err, "ID must be a positive integer")
		return 0
	}
	return uint(id)
}

// optionalUintQuery parses an optional numeric filter; ok is false after a 400 was written
func (h *BaseHandler) optionalUintQuery(c *gin.Context, key string) (*uint, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidationFailed, "Invalid "+key, err)
		return nil, false
	}
	id := uint(v)
	return &id, true
}

func parsePagination(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// actor returns the authenticated caller or writes a 401
func (h *BaseHandler) actor(c *gin.Context) (models.Actor, bool) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		h.RespondWithError(c, http.StatusUnauthorized, CodeUnauthenticated, "Authentication required", nil)
		return models.Actor{}, false
	}
	return actor, true
}

// bindJSON writes a 400 when the body cannot be decoded
func (h *BaseHandler) bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidationFailed, "Invalid request payload", err, err.Error())
		return false
	}
	return true
}
