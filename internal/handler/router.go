package handler

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	{
		// 订单相关
		order := api.Group("/order")
		{
			order.POST("/create", h.CreateOrder)
			order.GET("/detail", h.GetOrder)
			order.GET("/list", h.ListOrders)
			order.POST("/transition", h.TransitionOrder)
			order.POST("/payment/capture", h.CapturePayment)
			order.GET("/stats/today", h.TodayStats)
		}

		// 核销相关
		verify := api.Group("/verify")
		{
			verify.POST("/code", h.VerifyByCode)
			verify.POST("/qr", h.VerifyByQR)
			verify.POST("/batch", h.BatchVerify)
		}

		// 退款相关
		refund := api.Group("/refund")
		{
			refund.POST("/request", h.RequestRefund)
			refund.POST("/approve", h.ApproveRefund)
			refund.POST("/reject", h.RejectRefund)
		}

		// 财务查询
		finance := api.Group("/finance")
		{
			finance.GET("/summary", h.GetDailySummary)
			finance.GET("/reconciliation", h.GetReconciliation)
		}

		// 跑批手工触发（运维用）
		jobs := api.Group("/jobs")
		{
			jobs.POST("/daily-summary/trigger", h.TriggerDailySummary)
			jobs.POST("/settlement/trigger", h.TriggerSettlement)
			jobs.POST("/reconciliation/trigger", h.TriggerReconciliation)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
