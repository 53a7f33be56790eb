package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulator_ChargeSucceedsAfterDelay(t *testing.T) {
	sim := NewSimulator(20*time.Millisecond, nil, nil, zerolog.Nop())

	start := time.Now()
	receipt, err := sim.Charge(context.Background(), Charge{Reference: "ref-1", Amount: 500})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, "ref-1", receipt.Reference)
	assert.Equal(t, int64(500), receipt.Amount)
	assert.Contains(t, receipt.ProviderRef, "SIM-")
}

func TestSimulator_DeclinesListedPhones(t *testing.T) {
	sim := NewSimulator(0, []string{"+254 700 000 001"}, nil, zerolog.Nop())

	_, err := sim.Charge(context.Background(), Charge{Reference: "r", Phone: "254700000001", Amount: 1})
	assert.ErrorIs(t, err, ErrDeclined)

	_, err = sim.Charge(context.Background(), Charge{Reference: "r", Phone: "254700000002", Amount: 1})
	assert.NoError(t, err)
}

func TestSimulator_HonoursContext(t *testing.T) {
	sim := NewSimulator(time.Second, nil, nil, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := sim.Charge(ctx, Charge{Reference: "r", Amount: 1})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSimulator_RejectsNegativeAmount(t *testing.T) {
	sim := NewSimulator(0, nil, nil, zerolog.Nop())
	_, err := sim.Charge(context.Background(), Charge{Reference: "r", Amount: -1})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCallbackSigner_RoundTrip(t *testing.T) {
	signer, err := NewCallbackSigner("s3cret")
	require.NoError(t, err)
	sim := NewSimulator(0, nil, signer, zerolog.Nop())

	token, err := sim.SignCallback("ref-42", CallbackSucceeded)
	require.NoError(t, err)

	cb, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ref-42", cb.Reference)
	assert.Equal(t, CallbackSucceeded, cb.Status)
}

func TestCallbackSigner_RejectsForeignSecret(t *testing.T) {
	ours, err := NewCallbackSigner("ours")
	require.NoError(t, err)
	theirs, err := NewCallbackSigner("theirs")
	require.NoError(t, err)

	token, err := theirs.Sign("ref", CallbackSucceeded)
	require.NoError(t, err)

	_, err = ours.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidCallback)

	_, err = ours.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidCallback)
}

func TestCallbackSigner_RejectsExpiredAndUnknownStatus(t *testing.T) {
	signer, err := NewCallbackSigner("secret")
	require.NoError(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, callbackClaims{
		Ref:    "ref",
		Status: CallbackSucceeded,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    callbackIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	raw, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = signer.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidCallback)

	odd, err := signer.Sign("ref", CallbackStatus("refunded"))
	require.NoError(t, err)
	_, err = signer.Verify(odd)
	assert.ErrorIs(t, err, ErrInvalidCallback)
}

func TestSimulator_SignCallbackWithoutSigner(t *testing.T) {
	sim := NewSimulator(0, nil, nil, zerolog.Nop())
	_, err := sim.SignCallback("ref", CallbackSucceeded)
	assert.ErrorIs(t, err, ErrCallbacksDisabled)
}
