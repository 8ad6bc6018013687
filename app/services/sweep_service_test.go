package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftmarket/driftmarket/app/models"
	"github.com/driftmarket/driftmarket/app/repositories"
	"github.com/driftmarket/driftmarket/app/services"
	"github.com/driftmarket/driftmarket/pkg/cache"
	"github.com/driftmarket/driftmarket/pkg/workerpool"
)

func newSweep(t *testing.T, orders *repositories.OrderRepository, transport *fakeTransport) *services.SweepService {
	t.Helper()
	pool := workerpool.New(4)
	t.Cleanup(pool.Shutdown)
	mailer := services.NewOrderMailer(transport, orders)
	return services.NewSweepService(orders, mailer, cache.NewMutexLocker(), pool, 10, 0)
}

func TestSweep_SendsPendingEmails(t *testing.T) {
	orders := repositories.NewOrderRepository(testDB(t), models.MaxEmailRetries)
	transport := &fakeTransport{}
	sweep := newSweep(t, orders, transport)

	for i := 0; i < 25; i++ {
		seedUnsentOrder(t, orders, fmt.Sprintf("item-%d", i))
	}

	result, err := sweep.Run(context.Background(), 100, "cli")
	require.NoError(t, err)
	assert.Equal(t, 25, result.Processed)
	assert.Equal(t, 25, result.Sent)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 25, transport.sentCount())

	// Nothing left to sweep.
	result, err = sweep.Run(context.Background(), 100, "cli")
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
}

func TestSweep_MaxOrdersZeroIsNoop(t *testing.T) {
	orders := repositories.NewOrderRepository(testDB(t), models.MaxEmailRetries)
	transport := &fakeTransport{}
	sweep := newSweep(t, orders, transport)

	seedUnsentOrder(t, orders, "item")

	result, err := sweep.Run(context.Background(), 0, "admin")
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Zero(t, transport.sentCount())
}

func TestSweep_FailuresCountedNotFatal(t *testing.T) {
	orders := repositories.NewOrderRepository(testDB(t), models.MaxEmailRetries)
	transport := &fakeTransport{err: errors.New("smtp down")}
	sweep := newSweep(t, orders, transport)

	for i := 0; i < 3; i++ {
		seedUnsentOrder(t, orders, fmt.Sprintf("item-%d", i))
	}

	result, err := sweep.Run(context.Background(), 100, "cron")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Zero(t, result.Sent)
	assert.Equal(t, 3, result.Failed)
}

func TestSweep_LockPreventsOverlap(t *testing.T) {
	orders := repositories.NewOrderRepository(testDB(t), models.MaxEmailRetries)
	transport := &fakeTransport{}
	pool := workerpool.New(2)
	t.Cleanup(pool.Shutdown)
	locker := cache.NewMutexLocker()
	mailer := services.NewOrderMailer(transport, orders)
	sweep := services.NewSweepService(orders, mailer, locker, pool, 10, 0)

	ok, err := locker.TryLock(context.Background(), "sweep:order-emails", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = sweep.Run(context.Background(), 10, "admin")
	assert.ErrorIs(t, err, services.ErrSweepRunning)

	require.NoError(t, locker.Unlock(context.Background(), "sweep:order-emails"))
	_, err = sweep.Run(context.Background(), 10, "admin")
	assert.NoError(t, err)
}

func TestSweep_RetryOne(t *testing.T) {
	orders := repositories.NewOrderRepository(testDB(t), models.MaxEmailRetries)
	transport := &fakeTransport{err: errors.New("smtp down")}
	sweep := newSweep(t, orders, transport)

	o := seedUnsentOrder(t, orders, "item")

	// Failed attempt bumps the counter and surfaces the error.
	got, err := sweep.RetryOne(o.PublicID)
	require.Error(t, err)
	assert.Equal(t, 1, got.EmailRetryCount)

	// Recovery: transport works again.
	transport.setErr(nil)
	got, err = sweep.RetryOne(o.PublicID)
	require.NoError(t, err)
	assert.True(t, got.EmailSent)

	// Already sent: no further sends.
	before := transport.sentCount()
	_, err = sweep.RetryOne(o.PublicID)
	require.NoError(t, err)
	assert.Equal(t, before, transport.sentCount())
}

func TestSweep_RetryOneAtCap(t *testing.T) {
	db := testDB(t)
	orders := repositories.NewOrderRepository(db, models.MaxEmailRetries)
	transport := &fakeTransport{}
	sweep := newSweep(t, orders, transport)

	o := seedUnsentOrder(t, orders, "item")
	require.NoError(t, db.Model(&models.Order{}).
		Where("public_id = ?", o.PublicID).
		Update("email_retry_count", models.MaxEmailRetries).Error)

	_, err := sweep.RetryOne(o.PublicID)
	require.Error(t, err)
	assert.Zero(t, transport.sentCount())
}
