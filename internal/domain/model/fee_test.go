package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeFeeSplit_StandardFee(t *testing.T) {
	split, err := ComputeFeeSplit(1000, 250)
	require.NoError(t, err)
	assert.Equal(t, int64(975), split.DriverShare)
	assert.Equal(t, int64(25), split.PlatformFee)
}

func TestComputeFeeSplit_Conservation(t *testing.T) {
	// Driver share plus fee must always reconstruct the escrowed amount,
	// whatever the rounding.
	amounts := []int64{1, 3, 7, 99, 100, 101, 999, 1000, 123456789}
	bps := []int64{0, 1, 250, 333, 999, 1000}
	for _, amount := range amounts {
		for _, feeBps := range bps {
			split, err := ComputeFeeSplit(amount, feeBps)
			require.NoError(t, err)
			assert.Equal(t, amount, split.DriverShare+split.PlatformFee,
				"amount=%d feeBps=%d", amount, feeBps)
			assert.GreaterOrEqual(t, split.DriverShare, int64(0))
			assert.GreaterOrEqual(t, split.PlatformFee, int64(0))
		}
	}
}

func TestComputeFeeSplit_TruncatesTowardDriver(t *testing.T) {
	// 101 * 250 / 10000 = 2.525 → fee 2, remainder stays with the driver.
	split, err := ComputeFeeSplit(101, 250)
	require.NoError(t, err)
	assert.Equal(t, int64(2), split.PlatformFee)
	assert.Equal(t, int64(99), split.DriverShare)
}

func TestComputeFeeSplit_LargeAmountDoesNotOverflow(t *testing.T) {
	// amount * feeBps would wrap int64 here; the split must still be
	// exact at the maximum fee rate.
	amount := int64(5_000_000_000_000_000_000)
	split, err := ComputeFeeSplit(amount, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(500_000_000_000_000_000), split.PlatformFee)
	assert.Equal(t, amount-split.PlatformFee, split.DriverShare)

	// Near MaxInt64 with a remainder in the low digits.
	amount = int64(9_223_372_036_854_775_807)
	split, err = ComputeFeeSplit(amount, 250)
	require.NoError(t, err)
	assert.Equal(t, amount, split.DriverShare+split.PlatformFee)
	assert.Equal(t, int64(230_584_300_921_369_395), split.PlatformFee)
}

func TestComputeFeeSplit_ZeroFee(t *testing.T) {
	split, err := ComputeFeeSplit(500, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(500), split.DriverShare)
	assert.Equal(t, int64(0), split.PlatformFee)
}

func TestComputeFeeSplit_SmallAmountFullToDriver(t *testing.T) {
	// 3 * 250 / 10000 truncates to zero fee.
	split, err := ComputeFeeSplit(3, 250)
	require.NoError(t, err)
	assert.Equal(t, int64(3), split.DriverShare)
	assert.Equal(t, int64(0), split.PlatformFee)
}

func TestComputeFeeSplit_InvalidInputs(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		feeBps int64
	}{
		{"zero amount", 0, 250},
		{"negative amount", -1, 250},
		{"negative bps", 100, -1},
		{"bps above cap", 100, MaxFeeBps + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeFeeSplit(tt.amount, tt.feeBps)
			assert.Error(t, err)
		})
	}
}

func TestSplitCancellation_Bounds(t *testing.T) {
	driver, passenger, err := SplitCancellation(1000, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(300), driver)
	assert.Equal(t, int64(700), passenger)

	driver, passenger, err = SplitCancellation(1000, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), driver)
	assert.Equal(t, int64(1000), passenger)

	driver, passenger, err = SplitCancellation(1000, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), driver)
	assert.Equal(t, int64(0), passenger)
}

func TestSplitCancellation_RejectsOutOfRange(t *testing.T) {
	_, _, err := SplitCancellation(1000, -1)
	assert.Error(t, err)

	_, _, err = SplitCancellation(1000, 1001)
	assert.Error(t, err)
}

func TestEscrowStatus_IsTerminal(t *testing.T) {
	assert.False(t, EscrowActive.IsTerminal())
	assert.False(t, EscrowDisputed.IsTerminal())
	assert.True(t, EscrowReleased.IsTerminal())
	assert.True(t, EscrowRefunded.IsTerminal())
}
