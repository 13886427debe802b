package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/warrantykeeper/warranty-server-go/internal/config"
	"github.com/warrantykeeper/warranty-server-go/internal/dateparse"
	"github.com/warrantykeeper/warranty-server-go/internal/gateway"
	"github.com/warrantykeeper/warranty-server-go/internal/repository"
)

// reminderThresholds are the days-left values that trigger a reminder, each
// with its own message. A scan sends at most one reminder per product.
var reminderThresholds = []int{30, 14, 7, 1, 0}

// ReminderJob sends warranty reminders once a day at a fixed local
// wall-clock time. Delivery is at least once: a restart around the trigger
// time may repeat a day's reminders.
type ReminderJob struct {
	products repository.ProductRepository
	gw       gateway.Gateway
	hour     int
	minute   int
	pace     time.Duration
	now      func() time.Time
	done     chan struct{}
}

func NewReminderJob(products repository.ProductRepository, gw gateway.Gateway, hour, minute int, pace time.Duration) *ReminderJob {
	return &ReminderJob{
		products: products,
		gw:       gw,
		hour:     hour,
		minute:   minute,
		pace:     pace,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

func (j *ReminderJob) Start() {
	go j.run()
	log.Info().Int("hour", j.hour).Int("minute", j.minute).Msg("reminder job started")
}

func (j *ReminderJob) Stop() {
	close(j.done)
	log.Info().Msg("reminder job stopped")
}

func (j *ReminderJob) run() {
	for {
		wait := time.Until(nextTrigger(j.now(), j.hour, j.minute))
		timer := time.NewTimer(wait)

		select {
		case <-j.done:
			timer.Stop()
			return
		case <-timer.C:
			j.scan()
		}
	}
}

func (j *ReminderJob) scan() {
	ctx, cancel := context.WithTimeout(context.Background(), config.ReminderScanTimeout)
	defer cancel()

	sent, err := j.RunScan(ctx)
	if err != nil {
		log.Error().Err(err).Msg("reminder scan failed")
		return
	}
	log.Info().Int("sent", sent).Msg("reminder scan completed")
}

// RunScan walks every product whose warranty has not yet run out and sends
// a reminder to its owner when today sits exactly on one of the thresholds.
// A failed send is logged and skipped; it never aborts the scan. Returns the
// number of reminders delivered.
func (j *ReminderJob) RunScan(ctx context.Context) (int, error) {
	today := dateparse.DateOnly(j.now())

	products, err := j.products.FindActive(ctx, today)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, p := range products {
		left := dateparse.DaysUntil(p.WarrantyDate, today)
		text, ok := reminderText(left, p.Name)
		if !ok {
			continue
		}

		if _, err := j.gw.SendText(ctx, p.OwnerID, text, nil); err != nil {
			log.Error().
				Err(err).
				Str("user_id", p.OwnerID).
				Str("product_id", p.ID).
				Msg("failed to send reminder")
			continue
		}
		sent++

		// pacing between sends keeps the platform rate limiter happy
		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case <-time.After(j.pace):
		}
	}

	return sent, nil
}

// nextTrigger returns the next occurrence of hour:minute strictly after now,
// in now's location. An occurrence earlier today that has already passed
// rolls over to tomorrow.
func nextTrigger(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func reminderText(daysLeft int, name string) (string, bool) {
	switch daysLeft {
	case 30:
		return "🔔 Reminder\n\n📦 " + name + "\n⏳ The warranty ends in 30 days.", true
	case 14:
		return "🔔 Reminder\n\n📦 " + name + "\n⏳ The warranty ends in 14 days. Time to check the product!", true
	case 7:
		return "⚠️ One week left!\n\n📦 " + name + "\n⏳ The warranty ends in 7 days.", true
	case 1:
		return "🔥 Last chance!\n\n📦 " + name + "\n⏳ The warranty ends tomorrow!", true
	case 0:
		return "❗ Last day!\n\n📦 " + name + "\n⏳ The warranty ends today. Check the product while you still can!", true
	default:
		return "", false
	}
}
