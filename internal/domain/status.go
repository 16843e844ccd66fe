package domain

import "strings"

// SlipStatus is the local lifecycle state of a bank slip.
type SlipStatus string

const (
	SlipOpen       SlipStatus = "OPEN"
	SlipProcessing SlipStatus = "PROCESSING"
	SlipPaid       SlipStatus = "PAID"
	SlipWrittenOff SlipStatus = "WRITTEN_OFF"
	SlipOverdue    SlipStatus = "OVERDUE"
	SlipError      SlipStatus = "ERROR"
)

// Terminal reports whether the status closes the lifecycle.
func (s SlipStatus) Terminal() bool {
	return s == SlipPaid || s == SlipWrittenOff
}

// statusByBankCode maps the bank's numeric situation codes onto the
// local enum. Codes the bank adds later fall back to OPEN so an unknown
// code can never lock a slip out of its lifecycle.
var statusByBankCode = map[int]SlipStatus{
	1:  SlipOpen,
	6:  SlipPaid,
	7:  SlipWrittenOff,
	10: SlipPaid,
	11: SlipPaid,
	12: SlipPaid,
	18: SlipPaid,
}

// StatusFromBankCode translates a numeric bank situation code.
func StatusFromBankCode(code int) SlipStatus {
	if s, ok := statusByBankCode[code]; ok {
		return s
	}
	return SlipOpen
}

// StatusFromBankText is the legacy fallback for payloads that only carry
// a textual situation. Matching is by substring, case-insensitive.
func StatusFromBankText(text string) SlipStatus {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "LIQUIDADO"):
		return SlipPaid
	case strings.Contains(upper, "BAIXADO"):
		return SlipWrittenOff
	case strings.Contains(upper, "VENCIDO"):
		return SlipOverdue
	case strings.Contains(upper, "ERRO"):
		return SlipError
	}
	return SlipOpen
}

// MutationKind is a state-machine-guarded operation on a slip.
type MutationKind string

const (
	MutationAlter    MutationKind = "alter"
	MutationWriteOff MutationKind = "write_off"
)

// AllowedMutations declares, in one place, which statuses accept which
// mutations. Payment confirmation is intentionally absent: settling a
// slip is not gated by the mutation table.
var AllowedMutations = map[SlipStatus][]MutationKind{
	SlipOpen:       {MutationAlter, MutationWriteOff},
	SlipProcessing: {MutationAlter, MutationWriteOff},
}

// CanMutate reports whether the status accepts the given mutation.
func CanMutate(status SlipStatus, kind MutationKind) bool {
	for _, k := range AllowedMutations[status] {
		if k == kind {
			return true
		}
	}
	return false
}

// IsAlreadyWrittenOffMessage classifies a bank error text as the
// "slip already written off / cancelled" case, which the caller treats
// as success. The matching rule is fragile by nature, so it lives here
// and nowhere else.
func IsAlreadyWrittenOffMessage(msg string) bool {
	upper := strings.ToUpper(msg)
	for _, needle := range []string{"JA BAIXADO", "JÁ BAIXADO", "BAIXA JA EFETUADA", "TITULO CANCELADO", "TÍTULO CANCELADO"} {
		if strings.Contains(upper, needle) {
			return true
		}
	}
	return false
}
