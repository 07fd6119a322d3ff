package verify

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_ZeroPolicyAcceptsValidResults(t *testing.T) {
	t.Parallel()

	var p Policy
	assert.NoError(t, p.Check(Result{Valid: true}))
	assert.NoError(t, p.Check(Result{Valid: true, Age: 12, Country: "KP", OFACFlagged: true}))
	assert.ErrorIs(t, p.Check(Result{Valid: false}), ErrConfigMismatch)
}

func TestPolicy_MinimumAge(t *testing.T) {
	t.Parallel()

	p := Policy{MinimumAge: 18}
	assert.ErrorIs(t, p.Check(Result{Valid: true, Age: 17}), ErrConfigMismatch)
	assert.NoError(t, p.Check(Result{Valid: true, Age: 18}))
	assert.NoError(t, p.Check(Result{Valid: true, Age: 40}))

	// Undisclosed age reads as zero and fails a positive minimum.
	assert.ErrorIs(t, p.Check(Result{Valid: true}), ErrConfigMismatch)
}

func TestPolicy_ExcludedCountries(t *testing.T) {
	t.Parallel()

	p := Policy{ExcludedCountries: []string{"KP", "IR"}}
	assert.ErrorIs(t, p.Check(Result{Valid: true, Country: "KP"}), ErrConfigMismatch)
	assert.ErrorIs(t, p.Check(Result{Valid: true, Country: "ir"}), ErrConfigMismatch)
	assert.NoError(t, p.Check(Result{Valid: true, Country: "AR"}))
	assert.NoError(t, p.Check(Result{Valid: true}))

	// A policy written with lowercase codes excludes just the same.
	lower := Policy{ExcludedCountries: []string{"kp"}}
	assert.ErrorIs(t, lower.Check(Result{Valid: true, Country: "KP"}), ErrConfigMismatch)
	assert.ErrorIs(t, lower.Check(Result{Valid: true, Country: "kp"}), ErrConfigMismatch)
	assert.NoError(t, lower.Check(Result{Valid: true, Country: "AR"}))
}

func TestPolicy_OFACFlag(t *testing.T) {
	t.Parallel()

	p := Policy{RejectOFACFlagged: true}
	assert.ErrorIs(t, p.Check(Result{Valid: true, OFACFlagged: true}), ErrConfigMismatch)
	assert.NoError(t, p.Check(Result{Valid: true, OFACFlagged: false}))
}

func TestStaticVerifier(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	alice := common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob := common.HexToAddress("0x2222222222222222222222222222222222222222")

	v := &StaticVerifier{
		Results: map[common.Address]Result{
			alice: {Valid: true, Age: 25, Country: "AR"},
		},
	}

	got, err := v.Verify(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, Result{Valid: true, Age: 25, Country: "AR"}, got)

	// Unknown users default to valid with nothing disclosed.
	got, err = v.Verify(ctx, bob)
	require.NoError(t, err)
	assert.True(t, got.Valid)

	v.DefaultInvalid = true
	got, err = v.Verify(ctx, bob)
	require.NoError(t, err)
	assert.False(t, got.Valid)
}
