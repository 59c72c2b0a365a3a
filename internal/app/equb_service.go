package app

import (
	"context"
	"errors"
	"time"

	"equb_tracker/internal/domain/equb"
	"equb_tracker/internal/domain/notification"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EqubService owns creation, retrieval and deletion of Equbs.
type EqubService struct {
	store    Store
	notifier *Notifier
	logger   *logrus.Entry
	now      func() time.Time
}

func NewEqubService(store Store, notifier *Notifier, logger *logrus.Entry) *EqubService {
	return &EqubService{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateEqub validates params, generates the schedule and persists the Equb with all of its
// contributions and its payout in one transaction.
func (s *EqubService) CreateEqub(ctx context.Context, userID string, params equb.CreateParams) (*equb.Equb, error) {
	log := s.logger.WithField("user_id", userID)

	if err := params.Validate(); err != nil {
		log.WithError(err).Info("Rejected Equb creation")
		return nil, err
	}

	schedule, err := equb.GenerateSchedule(params.StartDate, params.Frequency, params.TotalCycles, params.PayoutCycle, params.ContributionAmount)
	if err != nil {
		return nil, err
	}

	now := s.now()
	newEqub := &equb.Equb{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Name:               params.Name,
		ContributionAmount: params.ContributionAmount,
		Frequency:          params.Frequency,
		StartDate:          params.StartDate,
		TotalCycles:        params.TotalCycles,
		PayoutCycle:        params.PayoutCycle,
		CreatedAt:          now,
	}
	for _, sc := range schedule.Contributions {
		newEqub.Contributions = append(newEqub.Contributions, &equb.Contribution{
			ID:          uuid.NewString(),
			EqubID:      newEqub.ID,
			CycleNumber: sc.CycleNumber,
			Amount:      sc.Amount,
			DueDate:     sc.DueDate,
			Status:      equb.ContributionPending,
			CreatedAt:   now,
			EqubName:    newEqub.Name,
			UserID:      userID,
		})
	}
	newEqub.Payout = &equb.Payout{
		ID:        uuid.NewString(),
		EqubID:    newEqub.ID,
		Amount:    schedule.Payout.Amount,
		DueDate:   schedule.Payout.DueDate,
		Status:    equb.PayoutPending,
		CreatedAt: now,
		EqubName:  newEqub.Name,
		UserID:    userID,
	}

	err = s.store.WithinTx(ctx, func(repos Repositories) error {
		return repos.Equbs.Create(ctx, newEqub)
	})
	if err != nil {
		log.WithError(err).Error("Failed to create Equb")
		return nil, internalError("Failed to create Equb", err)
	}

	log.WithFields(logrus.Fields{
		"equb_id":      newEqub.ID,
		"total_cycles": newEqub.TotalCycles,
		"frequency":    newEqub.Frequency,
	}).Info("Equb created")
	return newEqub, nil
}

// GetEqubs returns the user's Equbs, newest first, with ordered contributions and the payout attached.
func (s *EqubService) GetEqubs(ctx context.Context, userID string) ([]*equb.Equb, error) {
	equbs, err := s.store.Repos().Equbs.ListByUser(ctx, userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("Failed to fetch Equbs")
		return nil, internalError("Failed to fetch Equbs", err)
	}
	return equbs, nil
}

// DeleteEqub removes an Equb and its schedule. An id that does not exist or belongs to another
// user is a silent success so callers cannot probe for other users' Equbs. An Equb with any
// settled contribution or a received payout is kept, since its ledger transactions would be orphaned.
// The schedule rows stay locked until the delete commits, so a settlement cannot slip in between.
func (s *EqubService) DeleteEqub(ctx context.Context, userID, id string) error {
	log := s.logger.WithFields(logrus.Fields{"user_id": userID, "equb_id": id})

	var mirrored []*notification.Notification
	err := s.store.WithinTx(ctx, func(repos Repositories) error {
		existing, err := repos.Equbs.GetByID(ctx, id, userID)
		if err != nil {
			if errors.Is(err, equb.ErrEqubNotFound) {
				return nil
			}
			return err
		}
		settled, err := repos.Equbs.LockSchedule(ctx, id)
		if err != nil {
			return err
		}
		if settled {
			return errEqubHasSettlements
		}

		contributionIDs := make(map[string]bool, len(existing.Contributions))
		ids := make([]string, 0, len(existing.Contributions))
		for _, c := range existing.Contributions {
			contributionIDs[c.ID] = true
			ids = append(ids, c.ID)
		}
		unread, err := repos.Notifications.ListUnreadByUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, n := range unread {
			if n.Mirrored() && n.ActionType == notification.ActionMarkEqubPaid && contributionIDs[n.ActionID.String] {
				mirrored = append(mirrored, n)
			}
		}

		if err := repos.Equbs.Delete(ctx, id, userID); err != nil {
			return err
		}
		return repos.Notifications.DeleteUnreadByActionIDs(ctx, userID, ids)
	})
	if err != nil {
		if errors.Is(err, ErrEqubHasSettlements) {
			log.Info("Refused to delete Equb with settlements")
			return err
		}
		log.WithError(err).Error("Failed to delete Equb")
		return internalError("Failed to delete Equb", err)
	}

	// Reminders of a deleted Equb would otherwise leave dead "Pay now" buttons in the chat.
	for _, n := range mirrored {
		s.notifier.deleteMirror(ctx, n)
	}
	log.WithField("mirrors_removed", len(mirrored)).Info("Equb delete processed")
	return nil
}

// UpcomingContributions lists the user's next pending contributions by due date.
func (s *EqubService) UpcomingContributions(ctx context.Context, userID string, limit int) ([]*equb.Contribution, error) {
	contributions, err := s.store.Repos().Equbs.ListUpcomingContributions(ctx, userID, limit)
	if err != nil {
		return nil, internalError("Failed to fetch Equb status", err)
	}
	return contributions, nil
}
