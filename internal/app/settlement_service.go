package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"equb_tracker/internal/domain/equb"
	"equb_tracker/internal/domain/ledger"
	"equb_tracker/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

// SettlementService moves contributions PENDING→PAID and payouts PENDING→RECEIVED, posting the
// matching ledger transaction in the same database transaction as the status flip.
type SettlementService struct {
	store    Store
	bridge   *LedgerBridge
	notifier *Notifier
	logger   *logrus.Entry
	currency string
	now      func() time.Time
}

func NewSettlementService(store Store, bridge *LedgerBridge, notifier *Notifier, logger *logrus.Entry, currency string) *SettlementService {
	return &SettlementService{
		store:    store,
		bridge:   bridge,
		notifier: notifier,
		logger:   logger,
		currency: currency,
		now:      time.Now,
	}
}

// MarkContributionPaid settles a contribution with an EXPENSE transaction. accountID may be empty
// for cash; when set, the account must belong to the user and its balance must cover the amount.
// The balance check reads outside the transaction and is advisory only.
func (s *SettlementService) MarkContributionPaid(ctx context.Context, userID, contributionID, accountID string) error {
	log := s.logger.WithFields(logrus.Fields{
		"user_id":         userID,
		"contribution_id": contributionID,
		"account_id":      accountID,
	})
	repos := s.store.Repos()

	contribution, err := repos.Equbs.GetContribution(ctx, contributionID, userID)
	if err != nil {
		if errors.Is(err, equb.ErrContributionNotFound) {
			return errContributionNotFound
		}
		log.WithError(err).Error("Failed to load contribution")
		return internalError("Failed to record payment", err)
	}
	if contribution.Paid() {
		return errAlreadyPaid
	}

	if accountID != "" {
		if err := s.checkBalance(ctx, userID, accountID, contribution); err != nil {
			return err
		}
	}

	category, err := s.bridge.ResolveOrCreateCategory(ctx, repos.Ledger, userID, CategoryEqubContribution, ledger.TypeExpense)
	if err != nil {
		log.WithError(err).Error("Failed to resolve contribution category")
		return internalError("Failed to record payment", err)
	}

	var txn *ledger.Transaction
	err = s.store.WithinTx(ctx, func(tx Repositories) error {
		var err error
		txn, err = s.bridge.PostEntry(ctx, tx.Ledger, userID, LedgerEntry{
			CategoryID:  category.ID,
			Type:        ledger.TypeExpense,
			Amount:      contribution.Amount,
			Description: fmt.Sprintf("Equb Contribution: %s (Cycle %d)", contribution.EqubName, contribution.CycleNumber),
			Date:        s.now(),
			AccountID:   accountID,
		})
		if err != nil {
			return err
		}
		return tx.Equbs.SettleContribution(ctx, contribution.ID, txn.ID)
	})
	if err != nil {
		if errors.Is(err, equb.ErrNotPending) {
			log.Info("Contribution was settled by a concurrent request")
			return errAlreadyPaid
		}
		log.WithError(err).Error("Failed to record payment")
		return internalError("Failed to record payment", err)
	}
	log.WithField("transaction_id", txn.ID).Info("Contribution marked paid")

	s.notifier.ResolveAction(ctx, userID, contribution.ID, notification.ActionMarkEqubPaid)
	s.emit(ctx, log, &notification.Notification{
		UserID:  userID,
		Title:   "Equb Payment Recorded 💸",
		Message: fmt.Sprintf("You paid %s %s for your %s (Cycle %d).", FormatAmount(contribution.Amount), s.currency, contribution.EqubName, contribution.CycleNumber),
		Type:    notification.TypeSuccess,
	})
	return nil
}

func (s *SettlementService) checkBalance(ctx context.Context, userID, accountID string, contribution *equb.Contribution) error {
	repos := s.store.Repos()
	if _, err := repos.Ledger.GetAccount(ctx, accountID, userID); err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return errAccountNotFound
		}
		return internalError("Failed to record payment", err)
	}
	balance, err := repos.Ledger.AccountBalance(ctx, accountID, userID)
	if err != nil {
		return internalError("Failed to record payment", err)
	}
	if balance.LessThan(contribution.Amount) {
		return &InsufficientFundsError{Balance: balance, Currency: s.currency}
	}
	return nil
}

// ReceiveEqubPayout settles the payout with an INCOME transaction. Receiving money has no balance check.
func (s *SettlementService) ReceiveEqubPayout(ctx context.Context, userID, payoutID, accountID string) error {
	log := s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"payout_id":  payoutID,
		"account_id": accountID,
	})
	repos := s.store.Repos()

	payout, err := repos.Equbs.GetPayout(ctx, payoutID, userID)
	if err != nil {
		if errors.Is(err, equb.ErrPayoutNotFound) {
			return errPayoutNotFound
		}
		log.WithError(err).Error("Failed to load payout")
		return internalError("Failed to record payout", err)
	}
	if payout.Received() {
		return errAlreadyReceived
	}

	if accountID != "" {
		if _, err := repos.Ledger.GetAccount(ctx, accountID, userID); err != nil {
			if errors.Is(err, ledger.ErrAccountNotFound) {
				return errAccountNotFound
			}
			return internalError("Failed to record payout", err)
		}
	}

	category, err := s.bridge.ResolveOrCreateCategory(ctx, repos.Ledger, userID, CategoryEqubPayout, ledger.TypeIncome)
	if err != nil {
		log.WithError(err).Error("Failed to resolve payout category")
		return internalError("Failed to record payout", err)
	}

	var txn *ledger.Transaction
	err = s.store.WithinTx(ctx, func(tx Repositories) error {
		var err error
		txn, err = s.bridge.PostEntry(ctx, tx.Ledger, userID, LedgerEntry{
			CategoryID:  category.ID,
			Type:        ledger.TypeIncome,
			Amount:      payout.Amount,
			Description: fmt.Sprintf("Equb Payout: %s", payout.EqubName),
			Date:        s.now(),
			AccountID:   accountID,
		})
		if err != nil {
			return err
		}
		return tx.Equbs.SettlePayout(ctx, payout.ID, txn.ID)
	})
	if err != nil {
		if errors.Is(err, equb.ErrNotPending) {
			log.Info("Payout was received by a concurrent request")
			return errAlreadyReceived
		}
		log.WithError(err).Error("Failed to record payout")
		return internalError("Failed to record payout", err)
	}
	log.WithField("transaction_id", txn.ID).Info("Payout received")

	s.emit(ctx, log, &notification.Notification{
		UserID:  userID,
		Title:   "Equb Payout Received! 💰",
		Message: fmt.Sprintf("Hooray! You received a lump sum of %s %s from %s.", FormatAmount(payout.Amount), s.currency, payout.EqubName),
		Type:    notification.TypeSuccess,
	})
	return nil
}

// ListAccounts returns the accounts a settlement can be posted against.
func (s *SettlementService) ListAccounts(ctx context.Context, userID string) ([]*ledger.Account, error) {
	accounts, err := s.store.Repos().Ledger.ListAccounts(ctx, userID)
	if err != nil {
		return nil, internalError("Failed to fetch accounts", err)
	}
	return accounts, nil
}

// emit sends the post-settlement notification. The settlement is already committed, so a failure
// here is only logged.
func (s *SettlementService) emit(ctx context.Context, log *logrus.Entry, notif *notification.Notification) {
	if err := s.notifier.Notify(ctx, notif, nil); err != nil {
		log.WithError(err).Warn("Settlement recorded but notification could not be stored")
	}
}
