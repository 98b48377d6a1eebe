// Package fees computes how a registration payment is divided between the
// parent-name owner and the treasury. It is pure arithmetic; fund movement
// belongs to the ledger collaborator.
package fees

// ParentPercent is the share of a subdomain payment owed to the parent-name
// owner. Fixed at build time, not configurable.
const ParentPercent int64 = 20

// Distribution is the outcome of splitting one payment.
type Distribution struct {
	ParentShare   int64
	TreasuryShare int64
}

// Split divides payment by domain level. Top-level registrations send the
// whole payment to the treasury. For subdomains the parent receives
// floor(payment * ParentPercent / 100); the integer-division remainder is
// absorbed by the treasury share, a deliberate tie-break so the shares always
// sum to the payment exactly.
func Split(payment int64, level int) Distribution {
	if level <= 1 {
		return Distribution{ParentShare: 0, TreasuryShare: payment}
	}
	parent := payment * ParentPercent / 100
	return Distribution{
		ParentShare:   parent,
		TreasuryShare: payment - parent,
	}
}
