package ledger

import "errors"

// Ledger errors are hard failures: the enclosing store transaction rolls
// back and no partial state commits. Callers match with errors.Is.
var (
	// ErrNoPassKey is returned when points are recorded for a user that has
	// not generated a pass key for the campaign this week.
	ErrNoPassKey = errors.New("ledger: no pass key for campaign this week")

	// ErrPassKeyExists is returned when a user re-keys an already-keyed
	// campaign within the same week. Re-keying is rejected rather than
	// double-charged or refunded.
	ErrPassKeyExists = errors.New("ledger: pass key already generated for campaign this week")

	// ErrAlreadyClaimed is returned on a duplicate claim for the same
	// (user, week, campaign).
	ErrAlreadyClaimed = errors.New("ledger: reward already claimed")

	// ErrClaimWindowExpired is returned when a claim lands after the
	// settled week's claim deadline.
	ErrClaimWindowExpired = errors.New("ledger: claim window expired")

	// ErrNothingToClaim is returned when no nonzero snapshot exists for the
	// caller, or the snapshot was swept after expiry.
	ErrNothingToClaim = errors.New("ledger: nothing to claim")

	// ErrTooEarlyForTransition is returned when settlement is attempted
	// before the epoch's transition date.
	ErrTooEarlyForTransition = errors.New("ledger: too early for weekly transition")

	// ErrUnauthorized is returned when the caller lacks the role a
	// privileged operation requires.
	ErrUnauthorized = errors.New("ledger: caller not authorized")

	// ErrBlacklisted is returned when a banned user records points or
	// claims for the banning campaign.
	ErrBlacklisted = errors.New("ledger: user banned from campaign")

	// ErrInsufficientFunds is returned when a treasury debit fails or an
	// attached value does not cover the required fee.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrUnknownCampaign is returned for operations naming an unregistered
	// campaign hash.
	ErrUnknownCampaign = errors.New("ledger: unknown campaign")

	// ErrCampaignExists is returned when registering a name that already
	// has a campaign.
	ErrCampaignExists = errors.New("ledger: campaign already registered")

	// ErrLengthMismatch is returned by batch operations whose parallel
	// arrays differ in length.
	ErrLengthMismatch = errors.New("ledger: array length mismatch")

	// ErrWeekSettled guards the no-rug invariant: pools of a settled week
	// cannot be adjusted.
	ErrWeekSettled = errors.New("ledger: week already settled")

	// ErrClaimWindowOpen is returned when a sweep is attempted before the
	// claim window has expired.
	ErrClaimWindowOpen = errors.New("ledger: claim window still open")

	// ErrWeekNotSettled is returned when a sweep targets a week that has
	// not been settled.
	ErrWeekNotSettled = errors.New("ledger: week not settled")
)
