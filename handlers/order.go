package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/printworks_backend/config"
	"github.com/mmdatafocus/printworks_backend/models"
)

type updateOrderItemsRequest struct {
	Mutations []models.OrderItemMutation `json:"mutations"`
}

type updateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status"`
	Reason string             `json:"reason"`
}

type advanceStageRequest struct {
	Stage models.ProductionStage `json:"stage"`
	Notes string                 `json:"notes"`
}

func createOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewOrder
		if !bindJSON(c, &input) {
			return
		}
		order, err := models.CreateOrder(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func getOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		order, err := models.GetOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func updateOrderItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req updateOrderItemsRequest
		if !bindJSON(c, &req) {
			return
		}
		order, err := models.UpdateOrderItems(c.Request.Context(), id, req.Mutations)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func updateOrderStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req updateOrderStatusRequest
		if !bindJSON(c, &req) {
			return
		}
		order, err := models.UpdateOrderStatus(c.Request.Context(), id, req.Status, req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func advanceStageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req advanceStageRequest
		if !bindJSON(c, &req) {
			return
		}
		item, err := models.AdvanceStage(c.Request.Context(), id, req.Stage, req.Notes)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func stageHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		logs, err := models.GetStageHistory(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, logs)
	}
}

func remainingQuantityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok || !storeOrError(c) {
			return
		}
		remaining, err := models.RemainingQuantity(config.GetDB().WithContext(c.Request.Context()), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_item_id": id, "remaining_quantity": remaining})
	}
}

func listItemReturnsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		returns, err := models.ListItemReturns(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, returns)
	}
}
