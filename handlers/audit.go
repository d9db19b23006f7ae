package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/printworks_backend/config"
	"github.com/mmdatafocus/printworks_backend/models"
	"github.com/mmdatafocus/printworks_backend/utils"
)

var referenceTypes = map[string]bool{
	models.ReferenceTypeCustomer:      true,
	models.ReferenceTypeOrder:         true,
	models.ReferenceTypeOrderItem:     true,
	models.ReferenceTypeChallan:       true,
	models.ReferenceTypeInvoice:       true,
	models.ReferenceTypePayment:       true,
	models.ReferenceTypeReturn:        true,
	models.ReferenceTypeInventoryItem: true,
}

func referenceParams(c *gin.Context) (string, int, bool) {
	refType := c.Param("type")
	if !referenceTypes[refType] {
		respondError(c, utils.NewValidationError("invalid_reference_type", "unknown reference type %q", refType))
		return "", 0, false
	}
	id, ok := paramID(c, "id")
	return refType, id, ok
}

func listHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		refType, id, ok := referenceParams(c)
		if !ok {
			return
		}
		rows, err := models.ListHistory(c.Request.Context(), refType, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func listOutboxHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		refType, id, ok := referenceParams(c)
		if !ok || !storeOrError(c) {
			return
		}
		rows, err := models.ListOutboxMessages(c.Request.Context(), config.GetDB(), refType, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}
