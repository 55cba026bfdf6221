package domain

// OperationType is the closed set of ledger movements the coordinator accepts.
// Dispatch happens on this type, never on raw request strings.
type OperationType string

const (
	OpDeposit           OperationType = "DEPOSIT"
	OpWithdrawal        OperationType = "WITHDRAWAL"
	OpInternalTransfer  OperationType = "INTERNAL_TRANSFER"
	OpOutboundInterbank OperationType = "OUTBOUND_INTERBANK"
	OpInboundInterbank  OperationType = "INBOUND_INTERBANK"
	OpReversal          OperationType = "REVERSAL"
)

// ParseOperationType normalizes a request string into the closed set.
// The second return is false for anything outside it.
func ParseOperationType(s string) (OperationType, bool) {
	switch OperationType(s) {
	case OpDeposit, OpWithdrawal, OpInternalTransfer, OpOutboundInterbank, OpInboundInterbank, OpReversal:
		return OperationType(s), true
	default:
		return "", false
	}
}

// Interbank reports whether the operation crosses the switch boundary.
func (t OperationType) Interbank() bool {
	return t == OpOutboundInterbank || t == OpInboundInterbank
}

// TransactionState is the lifecycle flag on a transaction record.
type TransactionState string

const (
	StatePending   TransactionState = "PENDING"
	StateCompleted TransactionState = "COMPLETED"
	StateReversed  TransactionState = "REVERSED"
	StateReturned  TransactionState = "RETURNED"
)

// Terminal reports whether no further transition may leave the state.
func (s TransactionState) Terminal() bool {
	return s == StateReversed || s == StateReturned
}

// CanTransition enforces the monotonic lifecycle:
// PENDING -> COMPLETED -> {REVERSED | RETURNED}.
func CanTransition(from, to TransactionState) bool {
	switch from {
	case StatePending:
		return to == StateCompleted
	case StateCompleted:
		return to == StateReversed || to == StateReturned
	default:
		return false
	}
}

// ExternalStatus maps the internal state onto the simplified vocabulary
// exposed to external callers. RETURNED reports as REVERSED.
func ExternalStatus(s TransactionState) string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateCompleted:
		return "COMPLETED"
	case StateReversed, StateReturned:
		return "REVERSED"
	default:
		return string(s)
	}
}

const (
	// Currency is fixed for the whole ledger; the switch contract pins it too.
	Currency = "USD"

	ChannelWeb    = "WEB"
	ChannelSwitch = "SWITCH"

	// StatusNotFound is the external status for unknown references.
	StatusNotFound = "NOT_FOUND"
)
