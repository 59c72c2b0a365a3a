package httpapi

import (
	"context"
	"net/http"
	"time"

	"equb_tracker/internal/app"
	"equb_tracker/internal/domain/equb"
	"equb_tracker/internal/domain/ledger"
	"equb_tracker/internal/domain/notification"

	"github.com/gin-gonic/gin"
)

// The services the handlers call. *app.EqubService and friends satisfy them.
type (
	EqubAPI interface {
		CreateEqub(ctx context.Context, userID string, params equb.CreateParams) (*equb.Equb, error)
		GetEqubs(ctx context.Context, userID string) ([]*equb.Equb, error)
		DeleteEqub(ctx context.Context, userID, id string) error
	}
	SettlementAPI interface {
		MarkContributionPaid(ctx context.Context, userID, contributionID, accountID string) error
		ReceiveEqubPayout(ctx context.Context, userID, payoutID, accountID string) error
		ListAccounts(ctx context.Context, userID string) ([]*ledger.Account, error)
	}
	ReminderAPI interface {
		CheckPendingEqubs(ctx context.Context, userID string) (int, error)
	}
	NotificationAPI interface {
		ListNotifications(ctx context.Context, userID string) ([]*notification.Notification, error)
		DismissNotification(ctx context.Context, userID, id string) error
		DismissAll(ctx context.Context, userID string) error
		HandleReminderAction(ctx context.Context, userID, id string, choice app.ReminderChoice) error
	}
	LinkAPI interface {
		IssueCode(ctx context.Context, userID string) (string, error)
	}
)

type Handler struct {
	equbs         EqubAPI
	settlements   SettlementAPI
	reminders     ReminderAPI
	notifications NotificationAPI
	links         LinkAPI
	location      *time.Location
}

func NewHandler(equbs EqubAPI, settlements SettlementAPI, reminders ReminderAPI, notifications NotificationAPI, links LinkAPI, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		equbs:         equbs,
		settlements:   settlements,
		reminders:     reminders,
		notifications: notifications,
		links:         links,
		location:      loc,
	}
}

func (h *Handler) CreateEqub(c *gin.Context) {
	var req createEqubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	params, err := req.params(h.location)
	if err != nil {
		ServiceError(c, err, "Invalid request")
		return
	}

	created, err := h.equbs.CreateEqub(c.Request.Context(), currentUserID(c), params)
	if err != nil {
		ServiceError(c, err, "Failed to create Equb")
		return
	}
	Success(c, "Equb created", toEqubDTO(created))
}

func (h *Handler) ListEqubs(c *gin.Context) {
	equbs, err := h.equbs.GetEqubs(c.Request.Context(), currentUserID(c))
	if err != nil {
		ServiceError(c, err, "Failed to fetch Equbs")
		return
	}
	out := make([]equbDTO, 0, len(equbs))
	for _, e := range equbs {
		out = append(out, toEqubDTO(e))
	}
	Success(c, "success", out)
}

func (h *Handler) DeleteEqub(c *gin.Context) {
	if err := h.equbs.DeleteEqub(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		ServiceError(c, err, "Failed to delete Equb")
		return
	}
	Success(c, "Equb deleted", nil)
}

func (h *Handler) PayContribution(c *gin.Context) {
	req, ok := bindOptionalSettle(c)
	if !ok {
		return
	}
	err := h.settlements.MarkContributionPaid(c.Request.Context(), currentUserID(c), c.Param("id"), req.AccountID)
	if err != nil {
		ServiceError(c, err, "Failed to record payment")
		return
	}
	Success(c, "Payment recorded", nil)
}

func (h *Handler) ReceivePayout(c *gin.Context) {
	req, ok := bindOptionalSettle(c)
	if !ok {
		return
	}
	err := h.settlements.ReceiveEqubPayout(c.Request.Context(), currentUserID(c), c.Param("id"), req.AccountID)
	if err != nil {
		ServiceError(c, err, "Failed to record payout")
		return
	}
	Success(c, "Payout recorded", nil)
}

// bindOptionalSettle accepts an empty body as a cash settlement.
func bindOptionalSettle(c *gin.Context) (settleRequest, bool) {
	var req settleRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "Invalid request body")
		return req, false
	}
	return req, true
}

func (h *Handler) CheckReminders(c *gin.Context) {
	created, err := h.reminders.CheckPendingEqubs(c.Request.Context(), currentUserID(c))
	if err != nil {
		// Partial sweeps still report how many reminders were created.
		c.JSON(statusFor(err), Response{
			Code:    statusFor(err),
			Message: app.UserMessage(err, "Some reminders could not be created"),
			Data:    gin.H{"created": created},
		})
		return
	}
	Success(c, "success", gin.H{"created": created})
}

func (h *Handler) ListAccounts(c *gin.Context) {
	accounts, err := h.settlements.ListAccounts(c.Request.Context(), currentUserID(c))
	if err != nil {
		ServiceError(c, err, "Failed to fetch accounts")
		return
	}
	Success(c, "success", toAccountDTOs(accounts))
}

func (h *Handler) ListNotifications(c *gin.Context) {
	notifs, err := h.notifications.ListNotifications(c.Request.Context(), currentUserID(c))
	if err != nil {
		ServiceError(c, err, "Failed to fetch notifications")
		return
	}
	Success(c, "success", toNotificationDTOs(notifs))
}

func (h *Handler) DismissNotification(c *gin.Context) {
	if err := h.notifications.DismissNotification(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		ServiceError(c, err, "Failed to delete notification")
		return
	}
	Success(c, "Notification dismissed", nil)
}

func (h *Handler) DismissAllNotifications(c *gin.Context) {
	if err := h.notifications.DismissAll(c.Request.Context(), currentUserID(c)); err != nil {
		ServiceError(c, err, "Failed to clear notifications")
		return
	}
	Success(c, "Notifications cleared", nil)
}

func (h *Handler) NotificationAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	err := h.notifications.HandleReminderAction(c.Request.Context(), currentUserID(c), c.Param("id"), app.ReminderChoice(req.Choice))
	if err != nil {
		ServiceError(c, err, "Failed to process action")
		return
	}
	Success(c, "success", nil)
}

func (h *Handler) IssueLinkCode(c *gin.Context) {
	code, err := h.links.IssueCode(c.Request.Context(), currentUserID(c))
	if err != nil {
		ServiceError(c, err, "Failed to generate code")
		return
	}
	Success(c, "success", gin.H{"code": code})
}
