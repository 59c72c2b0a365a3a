package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"equb_tracker/internal/domain/notification"
	domainTelegram "equb_tracker/internal/domain/telegram"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

func TestReminderService_CheckPendingEqubs(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", 777)
	// Monthly from Feb 10: cycles due Feb 10 and Mar 10 (today), Apr 10 and May 10 later.
	e := env.createEqub("u1", "Office", time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC), 4)

	created, err := env.reminders.CheckPendingEqubs(env.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	notifs := env.notificationsOf("u1")
	require.Len(t, notifs, 2)
	first, second := notifs[0], notifs[1]

	assert.Equal(t, "Equb Payment Due 🗓️", first.Title)
	assert.Equal(t, notification.TypeEqubReminder, first.Type)
	assert.Equal(t, notification.ActionMarkEqubPaid, first.ActionType)
	assert.Equal(t, e.Contributions[0].ID, first.ActionID.String)
	assert.Equal(t, "Your Office contribution of 500 ETB (Cycle 1) was due on Feb 10, 2026. Have you paid it?", first.Message)
	assert.Equal(t, e.Contributions[1].ID, second.ActionID.String)
	assert.Equal(t, "Your Office contribution of 500 ETB (Cycle 2) was due today. Have you paid it?", second.Message)

	require.Equal(t, 2, env.telegram.sentCount())
	msg := env.telegram.sent[0]
	assert.Equal(t, int64(777), msg.ChatID)
	assert.Contains(t, msg.Text, "<b>Equb Payment Due 🗓️</b>")
	assert.Equal(t, telebot.ModeHTML, msg.Options.ParseMode)
	require.NotNil(t, msg.Options.ReplyMarkup)
	buttons := msg.Options.ReplyMarkup.InlineKeyboard[0]
	require.Len(t, buttons, 2)
	assert.Equal(t, domainTelegram.CallbackPayContribution, buttons[0].Unique)
	assert.Equal(t, e.Contributions[0].ID, buttons[0].Data)
	assert.Equal(t, domainTelegram.CallbackDismissNotification, buttons[1].Unique)
	assert.Equal(t, first.ID, buttons[1].Data)

	assert.Equal(t, int64(msg.MessageID), first.ExternalMessageID.Int64)
}

func TestReminderService_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	env.createEqub("u1", "Office", time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC), 4)

	created, err := env.reminders.CheckPendingEqubs(env.ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 2, created)

	for i := 0; i < 3; i++ {
		created, err = env.reminders.CheckPendingEqubs(env.ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 0, created)
	}
	assert.Len(t, env.notificationsOf("u1"), 2)
}

func TestReminderService_ConcurrentSweepsCreateOneReminderEach(t *testing.T) {
	env := newTestEnv(t)
	env.createEqub("u1", "Office", time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC), 4)

	const sweeps = 6
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < sweeps; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := env.reminders.CheckPendingEqubs(env.ctx, "u1")
			assert.NoError(t, err)
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, total)
	assert.Len(t, env.notificationsOf("u1"), 2)
}

func TestReminderService_RemindsAgainAfterDismissal(t *testing.T) {
	env := newTestEnv(t)
	env.createEqub("u1", "Office", env.now, 2)

	created, err := env.reminders.CheckPendingEqubs(env.ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, created)

	reminder := env.notificationsOf("u1")[0]
	require.NoError(t, env.notifications.HandleReminderAction(env.ctx, "u1", reminder.ID, ChoiceNo))

	created, err = env.reminders.CheckPendingEqubs(env.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestReminderService_SkipsPaidAndFuture(t *testing.T) {
	env := newTestEnv(t)
	e := env.createEqub("u1", "Office", time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC), 4)
	require.NoError(t, env.settlements.MarkContributionPaid(env.ctx, "u1", e.Contributions[0].ID, ""))

	created, err := env.reminders.CheckPendingEqubs(env.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	for _, n := range env.notificationsOf("u1") {
		if n.Type == notification.TypeEqubReminder {
			assert.Equal(t, e.Contributions[1].ID, n.ActionID.String)
		}
	}
}

func TestReminderService_DueLaterToday(t *testing.T) {
	env := newTestEnv(t)
	// Due at 18:00 while the clock reads 10:00: still "today".
	env.createEqub("u1", "Evening", time.Date(2026, time.March, 10, 18, 0, 0, 0, time.UTC), 2)

	created, err := env.reminders.CheckPendingEqubs(env.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestReminderService_MirrorFailureKeepsInAppReminder(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", 777)
	env.createEqub("u1", "Office", env.now, 2)
	env.telegram.sendErr = errors.New("telegram down")

	created, err := env.reminders.CheckPendingEqubs(env.ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, created)

	reminder := env.notificationsOf("u1")[0]
	assert.False(t, reminder.Mirrored())

	// Without the retry option a later sweep leaves the reminder alone.
	env.telegram.sendErr = nil
	created, err = env.reminders.CheckPendingEqubs(env.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 0, env.telegram.sentCount())

	env.reminders.opts.RetryMirror = true
	created, err = env.reminders.CheckPendingEqubs(env.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 1, env.telegram.sentCount())
	assert.True(t, env.notificationsOf("u1")[0].Mirrored())

	// Once mirrored, retries stop.
	_, err = env.reminders.CheckPendingEqubs(env.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, env.telegram.sentCount())
	assert.Len(t, env.notificationsOf("u1"), 1)
}

func TestReminderService_PartialFailureContinues(t *testing.T) {
	env := newTestEnv(t)
	e := env.createEqub("u1", "Office", time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC), 4)
	failing := e.Contributions[0].ID
	env.store.faults.createNotification = func(n *notification.Notification) error {
		if n.ActionID.String == failing {
			return errInjected
		}
		return nil
	}

	created, err := env.reminders.CheckPendingEqubs(env.ctx, "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, "Internal", Kind(err))
	assert.Equal(t, 1, created)

	notifs := env.notificationsOf("u1")
	require.Len(t, notifs, 1)
	assert.Equal(t, e.Contributions[1].ID, notifs[0].ActionID.String)

	env.store.faults.createNotification = nil
	created, err = env.reminders.CheckPendingEqubs(env.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestReminderService_OwnershipIsolation(t *testing.T) {
	env := newTestEnv(t)
	env.createEqub("u1", "Mine", env.now, 2)
	env.createEqub("u2", "Theirs", env.now, 2)

	created, err := env.reminders.CheckPendingEqubs(env.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Empty(t, env.notificationsOf("u2"))
}

func TestReminderService_SweepAll(t *testing.T) {
	env := newTestEnv(t)
	env.createEqub("u1", "One", env.now, 2)
	env.createEqub("u2", "Two", time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC), 3)
	env.createEqub("u3", "Later", env.now.AddDate(0, 0, 1), 2)

	created, err := env.reminders.SweepAll(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, created)
	assert.Len(t, env.notificationsOf("u1"), 1)
	assert.Len(t, env.notificationsOf("u2"), 2)
	assert.Empty(t, env.notificationsOf("u3"))

	created, err = env.reminders.SweepAll(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}

func TestReminderService_UsesConfiguredTimezone(t *testing.T) {
	env := newTestEnv(t)
	loc := time.FixedZone("EAT", 3*60*60)
	env.reminders.opts.Location = loc
	env.now = time.Date(2026, time.March, 10, 22, 0, 0, 0, time.UTC) // already Mar 11, 01:00 in EAT
	env.createEqub("u1", "Office", time.Date(2026, time.March, 11, 9, 0, 0, 0, loc), 2)

	created, err := env.reminders.CheckPendingEqubs(env.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Contains(t, env.notificationsOf("u1")[0].Message, "was due today")
}
