package core

import "fmt"

// Error is a governance failure carrying a numeric code. Codes are grouped in
// contiguous ranges per component so a receipt can be traced back to the
// extension that rejected it.
type Error struct {
	Code uint32
	Name string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (u%d)", e.Name, e.Code)
}

func newError(code uint32, name string) *Error {
	return &Error{Code: code, Name: name}
}

// executor core
var (
	ErrUnauthorised     = newError(1000, "err_unauthorised")
	ErrAlreadyExecuted  = newError(1001, "err_already_executed")
	ErrInvalidExtension = newError(1002, "err_invalid_extension")
	ErrUnknownPayload   = newError(1003, "err_unknown_payload")
)

// governance token
var (
	ErrTokenUnauthorised   = newError(2000, "err_unauthorised")
	ErrNotTokenOwner       = newError(2001, "err_not_token_owner")
	ErrInsufficientBalance = newError(2002, "err_insufficient_balance")
	ErrInsufficientLocked  = newError(2003, "err_insufficient_locked")
	ErrSupplyOverflow      = newError(2004, "err_supply_overflow")
)

// proposal voting
var (
	ErrVotingUnauthorised       = newError(3000, "err_unauthorised")
	ErrNotGovernanceToken       = newError(3001, "err_not_governance_token")
	ErrProposalAlreadyExecuted  = newError(3002, "err_proposal_already_executed")
	ErrProposalAlreadyExists    = newError(3003, "err_proposal_already_exists")
	ErrUnknownProposal          = newError(3004, "err_unknown_proposal")
	ErrProposalAlreadyConcluded = newError(3005, "err_proposal_already_concluded")
	ErrProposalInactive         = newError(3006, "err_proposal_inactive")
	ErrProposalNotConcluded     = newError(3007, "err_proposal_not_concluded")
	ErrNoVotesToReturn          = newError(3008, "err_no_votes_to_return")
	ErrEndBlockHeightNotReached = newError(3009, "err_end_block_height_not_reached")
	ErrVotingAmountOverflow     = newError(3010, "err_votes_overflow")
)

// proposal submission
var (
	ErrSubmissionUnauthorised       = newError(3100, "err_unauthorised")
	ErrSubmissionNotGovernanceToken = newError(3101, "err_not_governance_token")
	ErrProposerInsufficientBalance  = newError(3102, "err_insufficient_balance")
	ErrUnknownParameter             = newError(3103, "err_unknown_parameter")
	ErrProposalMinimumStartDelay    = newError(3104, "err_proposal_minimum_start_delay")
	ErrProposalMaximumStartDelay    = newError(3105, "err_proposal_maximum_start_delay")
)

// emergency proposals
var (
	ErrEmergencyUnauthorised        = newError(3200, "err_unauthorised")
	ErrNotEmergencyTeamMember       = newError(3201, "err_not_emergency_team_member")
	ErrEmergencySunsetHeightReached = newError(3202, "err_sunset_height_reached")
	ErrEmergencySunsetHeightInPast  = newError(3203, "err_sunset_height_in_past")
)

// emergency execute
var (
	ErrExecutiveUnauthorised        = newError(3300, "err_unauthorised")
	ErrNotExecutiveTeamMember       = newError(3301, "err_not_executive_team_member")
	ErrExecutiveSunsetHeightReached = newError(3302, "err_sunset_height_reached")
	ErrExecutiveSunsetHeightInPast  = newError(3303, "err_sunset_height_in_past")
)
