package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"equb_tracker/internal/domain/equb"
	"equb_tracker/internal/domain/ledger"
	"equb_tracker/internal/domain/notification"
	"equb_tracker/internal/domain/user"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"gopkg.in/telebot.v3"
)

var errInjected = errors.New("injected failure")

// memState is one snapshot of the database. Values, not pointers, so a transaction can copy it.
type memState struct {
	equbs         map[string]equb.Equb
	contributions map[string]equb.Contribution
	payouts       map[string]equb.Payout
	categories    map[string]ledger.Category
	accounts      map[string]ledger.Account
	transactions  map[string]ledger.Transaction
	notifications map[string]notification.Notification
	notifOrder    []string
	users         map[string]user.User
}

func newMemState() *memState {
	return &memState{
		equbs:         map[string]equb.Equb{},
		contributions: map[string]equb.Contribution{},
		payouts:       map[string]equb.Payout{},
		categories:    map[string]ledger.Category{},
		accounts:      map[string]ledger.Account{},
		transactions:  map[string]ledger.Transaction{},
		notifications: map[string]notification.Notification{},
		users:         map[string]user.User{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memState) clone() *memState {
	return &memState{
		equbs:         copyMap(s.equbs),
		contributions: copyMap(s.contributions),
		payouts:       copyMap(s.payouts),
		categories:    copyMap(s.categories),
		accounts:      copyMap(s.accounts),
		transactions:  copyMap(s.transactions),
		notifications: copyMap(s.notifications),
		notifOrder:    append([]string(nil), s.notifOrder...),
		users:         copyMap(s.users),
	}
}

// faults lets a test make a repository call fail.
type faults struct {
	createPayout       error
	createTransaction  error
	settle             error
	commit             error
	createNotification func(n *notification.Notification) error
	beforeLock         func(st *memState) // a write committed just before LockSchedule reads the rows
}

// fakeStore is an in-memory Store. WithinTx works on a copy of the state and swaps it in on success,
// holding the lock for the whole transaction so transactions are serializable.
type fakeStore struct {
	mu     sync.Mutex
	state  *memState
	faults faults
}

func newFakeStore() *fakeStore {
	return &fakeStore{state: newMemState()}
}

func (s *fakeStore) Repos() Repositories {
	return memDB{store: s}.repos()
}

func (s *fakeStore) WithinTx(ctx context.Context, fn func(repos Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txState := s.state.clone()
	if err := fn(memDB{store: s, tx: txState}.repos()); err != nil {
		return err
	}
	if s.faults.commit != nil {
		return s.faults.commit
	}
	s.state = txState
	return nil
}

func (s *fakeStore) snapshot() *memState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

type memDB struct {
	store *fakeStore
	tx    *memState
}

func (d memDB) repos() Repositories {
	return Repositories{
		Equbs:         memEqubs{d},
		Ledger:        memLedger{d},
		Notifications: memNotifications{d},
		Users:         memUsers{d},
	}
}

func (d memDB) with(fn func(st *memState) error) error {
	if d.tx != nil {
		return fn(d.tx)
	}
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	return fn(d.store.state)
}

type memEqubs struct{ memDB }

func (r memEqubs) Create(ctx context.Context, e *equb.Equb) error {
	return r.with(func(st *memState) error {
		if _, ok := st.equbs[e.ID]; ok {
			return fmt.Errorf("duplicate equb %s", e.ID)
		}
		row := *e
		row.Contributions, row.Payout = nil, nil
		st.equbs[e.ID] = row
		for _, c := range e.Contributions {
			st.contributions[c.ID] = *c
		}
		if r.store.faults.createPayout != nil {
			return r.store.faults.createPayout
		}
		if e.Payout != nil {
			st.payouts[e.Payout.ID] = *e.Payout
		}
		return nil
	})
}

func (r memEqubs) assemble(st *memState, row equb.Equb) *equb.Equb {
	e := row
	for _, c := range st.contributions {
		if c.EqubID == e.ID {
			c := c
			c.EqubName, c.UserID = e.Name, e.UserID
			e.Contributions = append(e.Contributions, &c)
		}
	}
	sort.Slice(e.Contributions, func(i, j int) bool { return e.Contributions[i].CycleNumber < e.Contributions[j].CycleNumber })
	for _, p := range st.payouts {
		if p.EqubID == e.ID {
			p := p
			p.EqubName, p.UserID = e.Name, e.UserID
			e.Payout = &p
		}
	}
	return &e
}

func (r memEqubs) GetByID(ctx context.Context, id, userID string) (*equb.Equb, error) {
	var out *equb.Equb
	err := r.with(func(st *memState) error {
		row, ok := st.equbs[id]
		if !ok || row.UserID != userID {
			return equb.ErrEqubNotFound
		}
		out = r.assemble(st, row)
		return nil
	})
	return out, err
}

func (r memEqubs) ListByUser(ctx context.Context, userID string) ([]*equb.Equb, error) {
	out := make([]*equb.Equb, 0)
	err := r.with(func(st *memState) error {
		for _, row := range st.equbs {
			if row.UserID == userID {
				out = append(out, r.assemble(st, row))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r memEqubs) Delete(ctx context.Context, id, userID string) error {
	return r.with(func(st *memState) error {
		row, ok := st.equbs[id]
		if !ok || row.UserID != userID {
			return nil
		}
		delete(st.equbs, id)
		for cid, c := range st.contributions {
			if c.EqubID == id {
				delete(st.contributions, cid)
			}
		}
		for pid, p := range st.payouts {
			if p.EqubID == id {
				delete(st.payouts, pid)
			}
		}
		return nil
	})
}

func (r memEqubs) LockSchedule(ctx context.Context, equbID string) (bool, error) {
	settled := false
	err := r.with(func(st *memState) error {
		if r.store.faults.beforeLock != nil {
			r.store.faults.beforeLock(st)
		}
		for _, c := range st.contributions {
			if c.EqubID == equbID && c.Status != equb.ContributionPending {
				settled = true
			}
		}
		for _, p := range st.payouts {
			if p.EqubID == equbID && p.Status != equb.PayoutPending {
				settled = true
			}
		}
		return nil
	})
	return settled, err
}

func (r memEqubs) GetContribution(ctx context.Context, id, userID string) (*equb.Contribution, error) {
	var out *equb.Contribution
	err := r.with(func(st *memState) error {
		c, ok := st.contributions[id]
		if !ok {
			return equb.ErrContributionNotFound
		}
		owner := st.equbs[c.EqubID]
		if owner.UserID != userID {
			return equb.ErrContributionNotFound
		}
		c.EqubName, c.UserID = owner.Name, owner.UserID
		out = &c
		return nil
	})
	return out, err
}

func (r memEqubs) SettleContribution(ctx context.Context, id, transactionID string) error {
	return r.with(func(st *memState) error {
		if r.store.faults.settle != nil {
			return r.store.faults.settle
		}
		c, ok := st.contributions[id]
		if !ok || c.Status != equb.ContributionPending {
			return equb.ErrNotPending
		}
		c.Status = equb.ContributionPaid
		c.TransactionID = sql.NullString{String: transactionID, Valid: true}
		st.contributions[id] = c
		return nil
	})
}

func (r memEqubs) GetPayout(ctx context.Context, id, userID string) (*equb.Payout, error) {
	var out *equb.Payout
	err := r.with(func(st *memState) error {
		p, ok := st.payouts[id]
		if !ok {
			return equb.ErrPayoutNotFound
		}
		owner := st.equbs[p.EqubID]
		if owner.UserID != userID {
			return equb.ErrPayoutNotFound
		}
		p.EqubName, p.UserID = owner.Name, owner.UserID
		out = &p
		return nil
	})
	return out, err
}

func (r memEqubs) SettlePayout(ctx context.Context, id, transactionID string) error {
	return r.with(func(st *memState) error {
		if r.store.faults.settle != nil {
			return r.store.faults.settle
		}
		p, ok := st.payouts[id]
		if !ok || p.Status != equb.PayoutPending {
			return equb.ErrNotPending
		}
		p.Status = equb.PayoutReceived
		p.TransactionID = sql.NullString{String: transactionID, Valid: true}
		st.payouts[id] = p
		return nil
	})
}

func (r memEqubs) pending(st *memState, keep func(c equb.Contribution, owner equb.Equb) bool) []*equb.Contribution {
	out := make([]*equb.Contribution, 0)
	for _, c := range st.contributions {
		owner := st.equbs[c.EqubID]
		if c.Status != equb.ContributionPending || !keep(c, owner) {
			continue
		}
		c := c
		c.EqubName, c.UserID = owner.Name, owner.UserID
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].CycleNumber < out[j].CycleNumber
	})
	return out
}

func (r memEqubs) ListDueContributions(ctx context.Context, userID string, dueBy time.Time) ([]*equb.Contribution, error) {
	var out []*equb.Contribution
	err := r.with(func(st *memState) error {
		out = r.pending(st, func(c equb.Contribution, owner equb.Equb) bool {
			return owner.UserID == userID && !c.DueDate.After(dueBy)
		})
		return nil
	})
	return out, err
}

func (r memEqubs) ListUsersWithDueContributions(ctx context.Context, dueBy time.Time) ([]string, error) {
	seen := map[string]bool{}
	out := make([]string, 0)
	err := r.with(func(st *memState) error {
		for _, c := range r.pending(st, func(c equb.Contribution, _ equb.Equb) bool { return !c.DueDate.After(dueBy) }) {
			if !seen[c.UserID] {
				seen[c.UserID] = true
				out = append(out, c.UserID)
			}
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

func (r memEqubs) ListUpcomingContributions(ctx context.Context, userID string, limit int) ([]*equb.Contribution, error) {
	var out []*equb.Contribution
	err := r.with(func(st *memState) error {
		out = r.pending(st, func(_ equb.Contribution, owner equb.Equb) bool { return owner.UserID == userID })
		return nil
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

type memLedger struct{ memDB }

func (r memLedger) FindCategory(ctx context.Context, userID, name string, typ ledger.TransactionType) (*ledger.Category, error) {
	var out *ledger.Category
	err := r.with(func(st *memState) error {
		for _, c := range st.categories {
			if c.UserID == userID && c.Name == name && c.Type == typ {
				c := c
				out = &c
				return nil
			}
		}
		return ledger.ErrCategoryNotFound
	})
	return out, err
}

func (r memLedger) CreateCategory(ctx context.Context, c *ledger.Category) error {
	return r.with(func(st *memState) error {
		for _, existing := range st.categories {
			if existing.UserID == c.UserID && existing.Name == c.Name && existing.Type == c.Type {
				return ledger.ErrDuplicateCategory
			}
		}
		st.categories[c.ID] = *c
		return nil
	})
}

func (r memLedger) CreateTransaction(ctx context.Context, t *ledger.Transaction) error {
	return r.with(func(st *memState) error {
		if r.store.faults.createTransaction != nil {
			return r.store.faults.createTransaction
		}
		st.transactions[t.ID] = *t
		return nil
	})
}

func (r memLedger) GetTransaction(ctx context.Context, id, userID string) (*ledger.Transaction, error) {
	var out *ledger.Transaction
	err := r.with(func(st *memState) error {
		t, ok := st.transactions[id]
		if !ok || t.UserID != userID {
			return ledger.ErrTransactionNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

func (r memLedger) GetAccount(ctx context.Context, id, userID string) (*ledger.Account, error) {
	var out *ledger.Account
	err := r.with(func(st *memState) error {
		a, ok := st.accounts[id]
		if !ok || a.UserID != userID {
			return ledger.ErrAccountNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

func (r memLedger) ListAccounts(ctx context.Context, userID string) ([]*ledger.Account, error) {
	out := make([]*ledger.Account, 0)
	err := r.with(func(st *memState) error {
		for _, a := range st.accounts {
			if a.UserID == userID {
				a := a
				out = append(out, &a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r memLedger) AccountBalance(ctx context.Context, accountID, userID string) (decimal.Decimal, error) {
	balance := decimal.Zero
	err := r.with(func(st *memState) error {
		for _, t := range st.transactions {
			if t.UserID != userID || t.AccountID.String != accountID || !t.AccountID.Valid {
				continue
			}
			switch t.Type {
			case ledger.TypeIncome:
				balance = balance.Add(t.Amount)
			case ledger.TypeExpense:
				balance = balance.Sub(t.Amount)
			}
		}
		return nil
	})
	return balance, err
}

type memNotifications struct{ memDB }

func (r memNotifications) Create(ctx context.Context, n *notification.Notification) error {
	return r.with(func(st *memState) error {
		if f := r.store.faults.createNotification; f != nil {
			if err := f(n); err != nil {
				return err
			}
		}
		if n.ActionID.Valid && !n.Read {
			for _, existing := range st.notifications {
				if existing.UserID == n.UserID && !existing.Read && existing.ActionID == n.ActionID && existing.ActionType == n.ActionType {
					return notification.ErrDuplicateReminder
				}
			}
		}
		st.notifications[n.ID] = *n
		st.notifOrder = append(st.notifOrder, n.ID)
		return nil
	})
}

func (r memNotifications) GetByID(ctx context.Context, id, userID string) (*notification.Notification, error) {
	var out *notification.Notification
	err := r.with(func(st *memState) error {
		n, ok := st.notifications[id]
		if !ok || n.UserID != userID {
			return notification.ErrNotificationNotFound
		}
		out = &n
		return nil
	})
	return out, err
}

func (r memNotifications) FindUnreadByAction(ctx context.Context, userID, actionID string, actionType notification.ActionType) (*notification.Notification, error) {
	var out *notification.Notification
	err := r.with(func(st *memState) error {
		for _, id := range st.notifOrder {
			n, ok := st.notifications[id]
			if ok && n.UserID == userID && !n.Read && n.ActionID.Valid && n.ActionID.String == actionID && n.ActionType == actionType {
				out = &n
				return nil
			}
		}
		return notification.ErrNotificationNotFound
	})
	return out, err
}

func (r memNotifications) list(userID string, unreadOnly bool) ([]*notification.Notification, error) {
	out := make([]*notification.Notification, 0)
	err := r.with(func(st *memState) error {
		for i := len(st.notifOrder) - 1; i >= 0; i-- { // newest first
			n, ok := st.notifications[st.notifOrder[i]]
			if !ok || n.UserID != userID || (unreadOnly && n.Read) {
				continue
			}
			out = append(out, &n)
		}
		return nil
	})
	return out, err
}

func (r memNotifications) ListByUser(ctx context.Context, userID string) ([]*notification.Notification, error) {
	return r.list(userID, false)
}

func (r memNotifications) ListUnreadByUser(ctx context.Context, userID string) ([]*notification.Notification, error) {
	return r.list(userID, true)
}

func (r memNotifications) SetExternalMessageID(ctx context.Context, id string, messageID int64) error {
	return r.with(func(st *memState) error {
		n, ok := st.notifications[id]
		if !ok {
			return nil
		}
		n.ExternalMessageID = sql.NullInt64{Int64: messageID, Valid: true}
		st.notifications[id] = n
		return nil
	})
}

func (r memNotifications) MarkRead(ctx context.Context, id, userID string) error {
	return r.with(func(st *memState) error {
		n, ok := st.notifications[id]
		if !ok || n.UserID != userID {
			return notification.ErrNotificationNotFound
		}
		n.Read = true
		st.notifications[id] = n
		return nil
	})
}

func (r memNotifications) MarkAllRead(ctx context.Context, userID string) error {
	return r.with(func(st *memState) error {
		for id, n := range st.notifications {
			if n.UserID == userID {
				n.Read = true
				st.notifications[id] = n
			}
		}
		return nil
	})
}

func (r memNotifications) DeleteUnreadByActionIDs(ctx context.Context, userID string, actionIDs []string) error {
	return r.with(func(st *memState) error {
		targets := map[string]bool{}
		for _, id := range actionIDs {
			targets[id] = true
		}
		for id, n := range st.notifications {
			if n.UserID == userID && !n.Read && n.ActionID.Valid && targets[n.ActionID.String] {
				delete(st.notifications, id)
			}
		}
		return nil
	})
}

type memUsers struct{ memDB }

func (r memUsers) find(match func(u user.User) bool) (*user.User, error) {
	var out *user.User
	err := r.with(func(st *memState) error {
		for _, u := range st.users {
			if match(u) {
				u := u
				out = &u
				return nil
			}
		}
		return user.ErrUserNotFound
	})
	return out, err
}

func (r memUsers) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.find(func(u user.User) bool { return u.ID == id })
}

func (r memUsers) GetByTelegramChatID(ctx context.Context, chatID int64) (*user.User, error) {
	return r.find(func(u user.User) bool { return u.TelegramChatID.Valid && u.TelegramChatID.Int64 == chatID })
}

func (r memUsers) GetByVerificationCode(ctx context.Context, code string) (*user.User, error) {
	return r.find(func(u user.User) bool {
		return u.TelegramVerificationCode.Valid && u.TelegramVerificationCode.String == code
	})
}

func (r memUsers) SetVerificationCode(ctx context.Context, id, code string) error {
	return r.with(func(st *memState) error {
		u, ok := st.users[id]
		if !ok {
			return user.ErrUserNotFound
		}
		u.TelegramVerificationCode = sql.NullString{String: code, Valid: true}
		st.users[id] = u
		return nil
	})
}

func (r memUsers) LinkTelegram(ctx context.Context, id string, chatID int64) error {
	return r.with(func(st *memState) error {
		for _, other := range st.users {
			if other.ID != id && other.TelegramChatID.Valid && other.TelegramChatID.Int64 == chatID {
				return user.ErrDuplicateTelegramChat
			}
		}
		u, ok := st.users[id]
		if !ok {
			return user.ErrUserNotFound
		}
		u.TelegramChatID = sql.NullInt64{Int64: chatID, Valid: true}
		u.TelegramVerificationCode = sql.NullString{}
		st.users[id] = u
		return nil
	})
}

type sentMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	Options   *telebot.SendOptions
}

// fakeTelegram records what the services send and delete.
type fakeTelegram struct {
	mu      sync.Mutex
	nextID  int
	sendErr error
	sent    []sentMessage
	deleted []int
}

func (f *fakeTelegram) SendMessage(chatID int64, text string, options *telebot.SendOptions) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{ChatID: chatID, MessageID: f.nextID, Text: text, Options: options})
	return f.nextID, nil
}

func (f *fakeTelegram) DeleteMessage(chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeTelegram) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// testEnv wires every service against one fake store with a fixed clock.
type testEnv struct {
	t             *testing.T
	ctx           context.Context
	now           time.Time
	store         *fakeStore
	telegram      *fakeTelegram
	logs          *logtest.Hook
	notifier      *Notifier
	equbs         *EqubService
	settlements   *SettlementService
	reminders     *ReminderService
	notifications *NotificationService
	links         *LinkService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	base, hook := logtest.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	log := logrus.NewEntry(base)

	env := &testEnv{
		t:        t,
		ctx:      context.Background(),
		now:      time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC),
		store:    newFakeStore(),
		telegram: &fakeTelegram{},
		logs:     hook,
	}
	clock := func() time.Time { return env.now }

	env.notifier = NewNotifier(env.store, env.telegram, log)
	env.notifier.now = clock
	bridge := NewLedgerBridge(log)
	bridge.now = clock
	env.equbs = NewEqubService(env.store, env.notifier, log)
	env.equbs.now = clock
	env.settlements = NewSettlementService(env.store, bridge, env.notifier, log, "ETB")
	env.settlements.now = clock
	env.reminders = NewReminderService(env.store, env.notifier, log, ReminderOptions{Currency: "ETB", Location: time.UTC})
	env.reminders.now = clock
	env.notifications = NewNotificationService(env.store, env.notifier, env.settlements, log)
	env.links = NewLinkService(env.store, env.notifier, log)
	return env
}

func (e *testEnv) addUser(id string, chatID int64) {
	u := user.User{ID: id, Name: "User " + id, CreatedAt: e.now, UpdatedAt: e.now}
	if chatID != 0 {
		u.TelegramChatID = sql.NullInt64{Int64: chatID, Valid: true}
	}
	e.store.state.users[id] = u
}

func (e *testEnv) addAccount(userID, id string, deposit int64) {
	e.store.state.accounts[id] = ledger.Account{ID: id, UserID: userID, Name: "Account " + id, CreatedAt: e.now}
	if deposit > 0 {
		txID := "deposit-" + id
		e.store.state.transactions[txID] = ledger.Transaction{
			ID:        txID,
			UserID:    userID,
			AccountID: sql.NullString{String: id, Valid: true},
			Type:      ledger.TypeIncome,
			Amount:    decimal.NewFromInt(deposit),
			Date:      e.now,
		}
	}
}

// createEqub makes a monthly Equb of 500 x cycles whose first cycle falls due on start.
func (e *testEnv) createEqub(userID, name string, start time.Time, cycles int) *equb.Equb {
	e.t.Helper()
	created, err := e.equbs.CreateEqub(e.ctx, userID, equb.CreateParams{
		Name:               name,
		ContributionAmount: decimal.NewFromInt(500),
		Frequency:          equb.FrequencyMonthly,
		StartDate:          start,
		TotalCycles:        cycles,
		PayoutCycle:        cycles,
	})
	if err != nil {
		e.t.Fatalf("create equb: %v", err)
	}
	return created
}

func (e *testEnv) contribution(id string) equb.Contribution {
	return e.store.snapshot().contributions[id]
}

func (e *testEnv) transactionsOf(userID string) []ledger.Transaction {
	var out []ledger.Transaction
	for _, t := range e.store.snapshot().transactions {
		if t.UserID == userID && !strings.HasPrefix(t.ID, "deposit-") {
			out = append(out, t)
		}
	}
	return out
}

func (e *testEnv) notificationsOf(userID string) []notification.Notification {
	var out []notification.Notification
	st := e.store.snapshot()
	for _, id := range st.notifOrder {
		if n, ok := st.notifications[id]; ok && n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}
