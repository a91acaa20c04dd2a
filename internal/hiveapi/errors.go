package hiveapi

import "errors"

var (
	// ErrDuplicateSlot means another activation won the slot first.
	// The placement engine retries with a fresh search, callers never see it.
	ErrDuplicateSlot = errors.New("matrix slot already occupied")

	// ErrDuplicateMember means the member already has a placement under
	// this root. The engine resolves it to the existing row.
	ErrDuplicateMember = errors.New("member already placed in this matrix")

	// ErrMatrixFull means no free slot exists within the configured depth.
	ErrMatrixFull = errors.New("matrix is full up to the configured depth")

	// ErrNotEligible rejects a claim by the wrong wallet or wrong state.
	ErrNotEligible = errors.New("not eligible to claim this reward")

	// ErrStaleReward is a lost optimistic-lock race on a reward row.
	ErrStaleReward = errors.New("reward was modified concurrently")

	ErrMemberUnknown = errors.New("member not registered")
	ErrInvalidLevel  = errors.New("invalid membership level")
)
