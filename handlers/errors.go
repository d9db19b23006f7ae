package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/printworks_backend/config"
	"github.com/mmdatafocus/printworks_backend/utils"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch utils.KindOf(err) {
	case utils.KindValidation:
		return http.StatusBadRequest
	case utils.KindBusinessRule:
		return http.StatusUnprocessableEntity
	case utils.KindNotFound:
		return http.StatusNotFound
	case utils.KindConcurrency:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	body := gin.H{
		"error": err.Error(),
		"kind":  string(utils.KindOf(err)),
	}
	if rule := utils.RuleOf(err); rule != "" {
		body["rule"] = rule
	}
	if utils.IsRetryable(err) {
		body["retryable"] = true
	}
	if cid, ok := utils.GetCorrelationIdFromContext(c.Request.Context()); ok {
		body["correlation_id"] = cid
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

// bindJSON reports a malformed body as a ValidationError.
func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		respondError(c, utils.NewValidationError("invalid_request", "invalid request body: %s", err.Error()))
		return false
	}
	return true
}

func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		respondError(c, utils.NewValidationError("invalid_"+name, "%s must be a positive integer", name))
		return 0, false
	}
	return id, true
}

func storeOrError(c *gin.Context) bool {
	if config.GetDB() == nil {
		respondError(c, &utils.Error{Kind: utils.KindPersistence, Rule: "store_unavailable", Message: "store is not connected", Err: errors.New("db is nil")})
		return false
	}
	return true
}
