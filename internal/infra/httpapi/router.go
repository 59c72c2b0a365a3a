package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewRouter builds the gin engine serving the Equb API under /api/v1.
func NewRouter(h *Handler, logger *logrus.Entry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	v1 := r.Group("/api/v1", RequireUser())
	{
		equbs := v1.Group("/equbs")
		equbs.POST("", h.CreateEqub)
		equbs.GET("", h.ListEqubs)
		equbs.DELETE("/:id", h.DeleteEqub)
		equbs.POST("/contributions/:id/pay", h.PayContribution)
		equbs.POST("/payouts/:id/receive", h.ReceivePayout)
		equbs.POST("/reminders/check", h.CheckReminders)

		v1.GET("/accounts", h.ListAccounts)

		notifications := v1.Group("/notifications")
		notifications.GET("", h.ListNotifications)
		notifications.DELETE("", h.DismissAllNotifications)
		notifications.DELETE("/:id", h.DismissNotification)
		notifications.POST("/:id/action", h.NotificationAction)

		v1.POST("/telegram/link-code", h.IssueLinkCode)
	}
	return r
}
