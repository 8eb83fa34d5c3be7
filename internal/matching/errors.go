package matching

import "errors"

// All engine errors are rejected preconditions, not transient
// failures. None of them is worth retrying: only a different input
// (e.g. cancelling another booking first) can resolve them.
var (
	// ErrPeriodNotConfirmed rejects accept/cancel on a period whose
	// matching has not been confirmed yet.
	ErrPeriodNotConfirmed = errors.New("period is not confirmed")

	// ErrInvalidBookingState rejects an operation on a booking whose
	// state does not allow it.
	ErrInvalidBookingState = errors.New("booking is not in an acceptable state")

	// ErrOccasionFull rejects an accept on an occasion without
	// available spots.
	ErrOccasionFull = errors.New("occasion is already full")

	// ErrSchedulingConflict rejects an accept that would overlap with
	// an already accepted booking of the same attendee.
	ErrSchedulingConflict = errors.New("booking conflicts with an accepted booking")

	// ErrBookingLimitReached rejects an accept beyond the attendee's
	// booking limit.
	ErrBookingLimitReached = errors.New("booking limit reached")

	// ErrPeriodNotConfirmable rejects confirming a period twice or
	// while its wishlist is still open.
	ErrPeriodNotConfirmable = errors.New("period cannot be confirmed")

	// ErrPeriodNotFinalized rejects archiving a period that has not
	// been confirmed and finalized.
	ErrPeriodNotFinalized = errors.New("period is not finalized")
)
