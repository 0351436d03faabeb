package shipper_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tournevent/shiplite/pkg/shipper"
)

func TestShipperError_Error(t *testing.T) {
	err := shipper.NewShipperError("easypost", shipper.OpCreateShipment, "ADDRESS.VERIFY.FAILURE", "Invalid zip")
	assert.Equal(t, "easypost create_shipment failed (ADDRESS.VERIFY.FAILURE): Invalid zip", err.Error())
}

func TestShipperError_ErrorWithCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := shipper.NewShipperError("easypost", shipper.OpBuyLabel, "API_ERROR", "API call failed").WithCause(cause)
	assert.Contains(t, err.Error(), "API call failed")
	assert.Contains(t, err.Error(), "connection reset")
	assert.True(t, errors.Is(err, cause))
}

func TestShipperError_IsByCode(t *testing.T) {
	err1 := shipper.NewShipperError("easypost", shipper.OpBuyLabel, "RATE_LIMIT", "slow down")
	err2 := shipper.NewShipperError("other", shipper.OpCreateShipment, "RATE_LIMIT", "different")
	err3 := shipper.NewShipperError("easypost", shipper.OpBuyLabel, "OTHER", "different")

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestShipperError_WithStatusCode(t *testing.T) {
	tests := []struct {
		op        string
		status    int
		retryable bool
	}{
		{shipper.OpCreateShipment, 400, false},
		{shipper.OpCreateShipment, 401, false},
		{shipper.OpCreateShipment, 422, false},
		{shipper.OpCreateShipment, 429, true},
		{shipper.OpCreateShipment, 500, true},
		{shipper.OpCreateShipment, 503, true},
		{shipper.OpBuyLabel, 422, false},
		{shipper.OpBuyLabel, 429, true},
		{shipper.OpBuyLabel, 500, false},
		{shipper.OpBuyLabel, 502, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%d", tt.op, tt.status), func(t *testing.T) {
			err := shipper.NewShipperError("easypost", tt.op, "X", "x").WithStatusCode(tt.status)
			assert.Equal(t, tt.status, err.StatusCode)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.retryable, shipper.IsRetryable(err))
		})
	}
}

func TestWrap(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, shipper.Wrap("easypost", shipper.OpBuyLabel, nil))
	})

	t.Run("passes shipper errors through", func(t *testing.T) {
		orig := shipper.NewShipperError("easypost", shipper.OpBuyLabel, "X", "x")
		assert.Same(t, orig, shipper.Wrap("other", shipper.OpCreateShipment, fmt.Errorf("ctx: %w", orig)))
	})

	t.Run("deadline is not retryable", func(t *testing.T) {
		err := shipper.Wrap("easypost", shipper.OpBuyLabel, context.DeadlineExceeded)
		assert.Equal(t, "TIMEOUT", err.Code)
		assert.False(t, err.Retryable)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})

	t.Run("unavailable is retryable", func(t *testing.T) {
		err := shipper.Wrap("easypost", shipper.OpCreateShipment, shipper.ErrServiceUnavailable)
		assert.True(t, err.Retryable)
	})

	t.Run("unavailable during purchase is not retryable", func(t *testing.T) {
		err := shipper.Wrap("easypost", shipper.OpBuyLabel, shipper.ErrServiceUnavailable)
		assert.False(t, err.Retryable)
		assert.False(t, shipper.IsRetryable(err))
	})

	t.Run("unknown", func(t *testing.T) {
		err := shipper.Wrap("easypost", shipper.OpCreateShipment, errors.New("boom"))
		assert.Equal(t, "PROVIDER_ERROR", err.Code)
		assert.Equal(t, "easypost", err.Provider)
		assert.False(t, err.Retryable)
	})
}

func TestIsRetryable_Sentinels(t *testing.T) {
	assert.True(t, shipper.IsRetryable(shipper.ErrServiceUnavailable))
	assert.True(t, shipper.IsRetryable(shipper.ErrRateLimitExceeded))
	assert.False(t, shipper.IsRetryable(shipper.ErrInvalidAddress))
	assert.False(t, shipper.IsRetryable(errors.New("plain")))
}
