// Package verify is the identity-verification boundary. The actual
// verification happens in an external collaborator (the Self Protocol
// verifier in production); the ledger only consumes a pass/fail result plus
// the disclosed attributes, checked against a configured policy.
package verify

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrConfigMismatch is returned when a user's disclosed attributes do not
// satisfy the configured policy (age / country / OFAC).
var ErrConfigMismatch = errors.New("verify: disclosed attributes do not satisfy policy")

// Result is what the external verifier discloses about a user.
type Result struct {
	Valid       bool
	Age         int
	Country     string // ISO 3166-1 alpha-2
	OFACFlagged bool
}

// Verifier returns the verification result for a user. Implementations
// wrap the external SDK; the ledger never sees more than this.
type Verifier interface {
	Verify(ctx context.Context, user common.Address) (Result, error)
}

// Policy is the admission policy checked against disclosed attributes. The
// zero Policy accepts everything.
type Policy struct {
	MinimumAge        int
	ExcludedCountries []string
	RejectOFACFlagged bool
}

// Check validates a result against the policy. An invalid result or any
// unsatisfied constraint yields ErrConfigMismatch.
func (p Policy) Check(r Result) error {
	if !r.Valid {
		return ErrConfigMismatch
	}
	if p.MinimumAge > 0 && r.Age < p.MinimumAge {
		return ErrConfigMismatch
	}
	if len(p.ExcludedCountries) > 0 {
		// Both sides are normalized so a policy configured with lowercase
		// ISO codes still excludes.
		country := strings.ToUpper(r.Country)
		if slices.ContainsFunc(p.ExcludedCountries, func(c string) bool {
			return strings.ToUpper(c) == country
		}) {
			return ErrConfigMismatch
		}
	}
	if p.RejectOFACFlagged && r.OFACFlagged {
		return ErrConfigMismatch
	}
	return nil
}

// StaticVerifier is a Verifier backed by a fixed result table, used in
// tests and dev mode. Unknown users verify as valid with no attributes
// disclosed unless DefaultInvalid is set.
type StaticVerifier struct {
	Results        map[common.Address]Result
	DefaultInvalid bool
}

func (v *StaticVerifier) Verify(_ context.Context, user common.Address) (Result, error) {
	if r, ok := v.Results[user]; ok {
		return r, nil
	}
	return Result{Valid: !v.DefaultInvalid}, nil
}
