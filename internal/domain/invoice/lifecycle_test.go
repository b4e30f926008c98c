package invoice

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugohenrick/nfse-emissor/pkg/errs"
)

func TestNext_TotalTransitionTable(t *testing.T) {
	allowed := map[Status]map[Trigger]Status{
		StatusDraft: {
			TriggerSubmit:    StatusSubmitted,
			TriggerAuthorize: StatusAuthorized,
			TriggerReject:    StatusRejected,
		},
		StatusSubmitted: {
			TriggerAuthorize: StatusAuthorized,
			TriggerReject:    StatusRejected,
		},
		StatusAuthorized: {
			TriggerCancel: StatusCancelled,
		},
		StatusRejected: {
			TriggerRevert: StatusDraft,
		},
		StatusCancelled: {},
	}

	for _, from := range AllStatuses {
		for _, trigger := range AllTriggers {
			t.Run(string(from)+"/"+string(trigger), func(t *testing.T) {
				got, err := Next(from, trigger)
				want, ok := allowed[from][trigger]
				if ok {
					require.NoError(t, err)
					assert.Equal(t, want, got)
					return
				}
				var te *errs.TransitionError
				require.True(t, errors.As(err, &te), "esperado TransitionError, obtido %v", err)
				assert.Equal(t, string(from), te.From)
				assert.Equal(t, string(trigger), te.Trigger)
				assert.Equal(t, from, got)
			})
		}
	}
}

func newDraft(t *testing.T) *Invoice {
	t.Helper()
	inv, err := NewInvoice("t1", "", "1", time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), []Item{{
		Code:        "01.07",
		Description: "Suporte técnico",
		Quantity:    decimal.NewFromInt(1),
		UnitValue:   decimal.RequireFromString("1000.00"),
		TaxRate:     decimal.RequireFromString("2"),
	}})
	require.NoError(t, err)
	return inv
}

func TestCancel_OnDraftIsRejectedAndUnchanged(t *testing.T) {
	inv := newDraft(t)
	before := *inv

	err := inv.Cancel("erro de digitação", time.Now())

	var te *errs.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StatusDraft, inv.Status)
	assert.Empty(t, inv.CancelReason)
	assert.Nil(t, inv.CancelledAt)
	assert.Equal(t, before.UpdatedAt, inv.UpdatedAt)
}

func TestCancel_RequiresReason(t *testing.T) {
	inv := newDraft(t)
	require.NoError(t, inv.MarkAuthorized(Authorization{AccessKeyNFSe: "NFSE1"}, time.Now()))

	err := inv.Cancel("   ", time.Now())
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, StatusAuthorized, inv.Status)

	require.NoError(t, inv.Cancel("serviço não prestado", time.Now()))
	assert.Equal(t, StatusCancelled, inv.Status)
	assert.NotNil(t, inv.CancelledAt)
}

func TestLifecycle_SubmitAuthorize(t *testing.T) {
	inv := newDraft(t)
	inv.Number = "000007"
	require.NoError(t, inv.RecordDPS("DPS123", "CHDPS"))

	now := time.Now()
	require.NoError(t, inv.MarkSubmitted("REC-1", "", `{"cStat":"103"}`, now))
	assert.Equal(t, StatusSubmitted, inv.Status)
	assert.Equal(t, "REC-1", inv.ReceiptNumber)
	assert.Equal(t, "CHDPS", inv.AccessKeyDPS)
	assert.False(t, inv.IsEditable())

	require.NoError(t, inv.MarkAuthorized(Authorization{
		VerificationCode: "ABC123",
		AccessKeyNFSe:    "NFSE-KEY",
		Raw:              `{"cStat":"100"}`,
	}, now))
	assert.Equal(t, StatusAuthorized, inv.Status)
	assert.Equal(t, "000007", inv.Number)
	assert.Equal(t, "NFSE-KEY", inv.AccessKeyNFSe)
	assert.NotNil(t, inv.AuthorizedAt)

	assert.Error(t, inv.RecordDPS("outro", ""))
}

func TestMarkAuthorized_WithoutAccessKeyKeepsState(t *testing.T) {
	inv := newDraft(t)
	inv.Number = "000007"
	require.NoError(t, inv.RecordDPS("DPS1", "CH1"))
	require.NoError(t, inv.MarkSubmitted("REC-1", "", "", time.Now()))

	err := inv.MarkAuthorized(Authorization{VerificationCode: "V1", Raw: `{"cStat":"100"}`}, time.Now())
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "access_key_nfse", ve.Field)

	assert.Equal(t, StatusSubmitted, inv.Status)
	assert.Empty(t, inv.AccessKeyNFSe)
	assert.Empty(t, inv.VerificationCode)
	assert.Nil(t, inv.AuthorizedAt)
}

func TestMarkAuthorized_KeepsAllocatedNumber(t *testing.T) {
	inv := newDraft(t)
	inv.Number = "000007"
	require.NoError(t, inv.MarkAuthorized(Authorization{Number: "7", AccessKeyNFSe: "NFSE-KEY"}, time.Now()))
	assert.Equal(t, "000007", inv.Number)

	semNumero := newDraft(t)
	require.NoError(t, semNumero.MarkAuthorized(Authorization{Number: "000042", AccessKeyNFSe: "NFSE-KEY"}, time.Now()))
	assert.Equal(t, "000042", semNumero.Number)
}

func TestLifecycle_RejectRevertKeepsNumber(t *testing.T) {
	inv := newDraft(t)
	inv.Number = "000003"
	require.NoError(t, inv.RecordDPS("DPS1", "CH1"))
	require.NoError(t, inv.MarkSubmitted("REC", "", "", time.Now()))
	require.NoError(t, inv.MarkRejected("E0014 - CNPJ do prestador inválido", `{"erro":1}`))
	assert.Equal(t, "E0014 - CNPJ do prestador inválido", inv.RejectionReason)

	require.NoError(t, inv.Revert())
	assert.Equal(t, StatusDraft, inv.Status)
	assert.Equal(t, "000003", inv.Number)
	assert.Empty(t, inv.DPSID)
	assert.Empty(t, inv.ReceiptNumber)
	assert.Empty(t, inv.AccessKeyDPS)
	assert.Empty(t, inv.RejectionReason)
	assert.Nil(t, inv.SubmittedAt)
}

func TestRevert_OnlyFromRejected(t *testing.T) {
	inv := newDraft(t)
	var te *errs.TransitionError
	assert.ErrorAs(t, inv.Revert(), &te)
	assert.False(t, inv.CanFire(TriggerRevert))
	assert.True(t, inv.CanFire(TriggerSubmit))
}
