package gateway

import "strings"

// FallbackReason is the generic technical reason code used when a failure
// cannot be classified more precisely.
const FallbackReason = "MS03"

var reasonTable = map[string]string{
	"TECH":               "MS03",
	"ERROR_TECNICO":      "MS03",
	"CUENTA_INVALIDA":    "AC03",
	"AC03":               "AC03",
	"SALDO_INSUFICIENTE": "AM04",
	"AM04":               "AM04",
	"DUPLICADO":          "MD01",
	"DUPL":               "MD01",
	"MD01":               "MD01",
	"FRAUDE":             "FR01",
	"FRAD":               "FR01",
	"FR01":               "FR01",
	"CUST":               "CUST",
	"CLIENTE":            "CUST",
}

// MapReason maps a free-form failure reason onto the fixed 4-character code
// vocabulary the switch understands. Known aliases map through the table, an
// already-well-formed code passes through unchanged, and anything else falls
// back to the generic technical code.
func MapReason(reason string) string {
	normalized := strings.ToUpper(strings.TrimSpace(reason))
	if code, ok := reasonTable[normalized]; ok {
		return code
	}
	if wellFormedReason(normalized) {
		return normalized
	}
	return FallbackReason
}

func wellFormedReason(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
