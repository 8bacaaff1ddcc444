package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"fundsledger/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestWorker(expiry *testhelpers.MockPromoExpiryService, batchSize int) *PromoExpiryWorker {
	w := NewPromoExpiryWorker(expiry, time.Hour, batchSize)
	w.clock = func() time.Time { return fixedNow }
	return w
}

func TestPromoExpiryWorker_RunOnceDrainsFullBatches(t *testing.T) {
	t.Parallel()

	expiry := new(testhelpers.MockPromoExpiryService)
	expiry.On("ExpirePromos", mock.Anything, fixedNow, 2).Return(2, nil).Twice()
	expiry.On("ExpirePromos", mock.Anything, fixedNow, 2).Return(1, nil).Once()

	total, err := newTestWorker(expiry, 2).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	expiry.AssertNumberOfCalls(t, "ExpirePromos", 3)
}

func TestPromoExpiryWorker_RunOnceStopsOnError(t *testing.T) {
	t.Parallel()

	expiry := new(testhelpers.MockPromoExpiryService)
	expiry.On("ExpirePromos", mock.Anything, fixedNow, 2).Return(2, nil).Once()
	expiry.On("ExpirePromos", mock.Anything, fixedNow, 2).Return(0, errors.New("database unavailable")).Once()

	total, err := newTestWorker(expiry, 2).RunOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, total)
}

func TestPromoExpiryWorker_RunOnceHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	expiry := new(testhelpers.MockPromoExpiryService)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestWorker(expiry, 2).RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	expiry.AssertNotCalled(t, "ExpirePromos", mock.Anything, mock.Anything, mock.Anything)
}

func TestPromoExpiryWorker_StartRunsImmediately(t *testing.T) {
	t.Parallel()

	ran := make(chan struct{}, 1)
	expiry := new(testhelpers.MockPromoExpiryService)
	expiry.On("ExpirePromos", mock.Anything, fixedNow, 10).
		Run(func(mock.Arguments) {
			select {
			case ran <- struct{}{}:
			default:
			}
		}).
		Return(0, nil)

	stop := newTestWorker(expiry, 10).Start(context.Background())
	defer stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not run a pass on start")
	}
}

func TestNewPromoExpiryWorker_Defaults(t *testing.T) {
	t.Parallel()

	w := NewPromoExpiryWorker(new(testhelpers.MockPromoExpiryService), 0, 0)
	assert.Equal(t, time.Minute, w.interval)
	assert.Equal(t, 100, w.batchSize)
}
