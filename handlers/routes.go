package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts every operation. Mutations need an actor in the
// request context (middlewares.AuthMiddleware).
func RegisterRoutes(r gin.IRouter) {
	r.POST("/customers", createCustomerHandler())
	r.GET("/customers", findCustomerHandler())
	r.GET("/customers/:id", getCustomerHandler())
	r.PUT("/customers/:id", updateCustomerHandler())
	r.DELETE("/customers/:id", deleteCustomerHandler())
	r.GET("/customers/:id/orders", listCustomerOrdersHandler())

	r.POST("/orders", createOrderHandler())
	r.GET("/orders/:id", getOrderHandler())
	r.PATCH("/orders/:id/items", updateOrderItemsHandler())
	r.POST("/orders/:id/status", updateOrderStatusHandler())

	r.POST("/order-items/:id/stage", advanceStageHandler())
	r.GET("/order-items/:id/stages", stageHistoryHandler())
	r.GET("/order-items/:id/remaining", remainingQuantityHandler())
	r.GET("/order-items/:id/returns", listItemReturnsHandler())

	r.POST("/challans", createChallanHandler())
	r.GET("/challans/:id", getChallanHandler())
	r.POST("/challans/:id/deliver", deliverChallanHandler())
	r.DELETE("/challans/:id", deleteChallanHandler())

	r.POST("/invoices", createInvoiceHandler())
	r.GET("/invoices/:id", getInvoiceHandler())
	r.GET("/invoices/:id/payments", listInvoicePaymentsHandler())

	r.POST("/payments", recordPaymentHandler())
	r.DELETE("/payments/:id", deletePaymentHandler())

	r.POST("/returns", recordReturnHandler())

	r.POST("/inventory", createInventoryItemHandler())
	r.GET("/inventory/:id", getInventoryItemHandler())
	r.POST("/inventory/:id/adjustments", adjustStockHandler())
	r.GET("/inventory/:id/adjustments", listAdjustmentsHandler())
	r.GET("/inventory-alerts/low-stock", lowStockHandler())

	r.GET("/history/:type/:id", listHistoryHandler())
	r.GET("/outbox/:type/:id", listOutboxHandler())
}
