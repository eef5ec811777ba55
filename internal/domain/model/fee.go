package model

import "fmt"

// MaxFeeBps caps the platform fee at 10%.
const MaxFeeBps = 1000

// FeeSplit is the settlement outcome of a release.
type FeeSplit struct {
	DriverShare int64
	PlatformFee int64
}

// ComputeFeeSplit splits amount into driver share and platform fee at
// feeBps basis points. The fee truncates toward zero so the truncation
// remainder always lands on the driver side; DriverShare + PlatformFee
// == amount holds for every input.
func ComputeFeeSplit(amount int64, feeBps int64) (FeeSplit, error) {
	if amount <= 0 {
		return FeeSplit{}, fmt.Errorf("amount must be positive, got %d", amount)
	}
	if feeBps < 0 || feeBps > MaxFeeBps {
		return FeeSplit{}, fmt.Errorf("fee bps %d out of range [0, %d]", feeBps, MaxFeeBps)
	}
	// Split before multiplying so amounts near the int64 ceiling cannot
	// overflow; the quotient/remainder form keeps the same truncation.
	fee := amount/10000*feeBps + amount%10000*feeBps/10000
	return FeeSplit{
		DriverShare: amount - fee,
		PlatformFee: fee,
	}, nil
}

// SplitCancellation splits amount into a driver share (the caller-decided
// cancellation fee) and the passenger refund of the remainder. The two
// shares always sum to amount.
func SplitCancellation(amount, driverFee int64) (driverShare, passengerShare int64, err error) {
	if amount <= 0 {
		return 0, 0, fmt.Errorf("amount must be positive, got %d", amount)
	}
	if driverFee < 0 || driverFee > amount {
		return 0, 0, fmt.Errorf("cancellation fee %d out of range [0, %d]", driverFee, amount)
	}
	return driverFee, amount - driverFee, nil
}
