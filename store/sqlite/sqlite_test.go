package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/reconciliation-engine/recon"
	"github.com/warp/reconciliation-engine/store/sqlite"
)

var created = time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func march(day int) recon.Date { return recon.NewDate(2024, time.March, day) }

func marchRange() recon.DateRange {
	return recon.DateRange{Start: march(1), End: march(31)}
}

func newLedger(id string, r recon.DateRange) *recon.Ledger {
	l := recon.NewLedger(r, created)
	l.ID = id
	return l
}

func cashSheet() recon.DailySales {
	return recon.DailySales{
		ID:   "sales-0301",
		Date: march(1),
		Especes: []recon.SalesEntry{
			{Client: "Boulangerie Martin", Amount: decimal.NewNullDecimal(decimal.RequireFromString("500"))},
			{Client: "Café des Arts", Amount: decimal.NewNullDecimal(decimal.RequireFromString("100"))},
		},
	}
}

// =============================================================================
// LEDGER TESTS
// =============================================================================

func TestStore_LedgerRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	l := newLedger("ledger-1", marchRange())
	l.SAPDiscrepancies = append(l.SAPDiscrepancies, recon.SAPRecord{
		ID:       "INV-1003",
		DocDate:  march(15),
		CardName: "Boucherie Centrale",
		DocTotal: decimal.RequireFromString("42.10"),
	})
	require.NoError(t, store.CreateLedger(ctx, l))
	assert.Equal(t, 1, l.Revision)

	got, err := store.GetLedger(ctx, "ledger-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Revision)
	assert.Equal(t, marchRange(), got.DateRange)
	require.Len(t, got.SAPDiscrepancies, 1)
	assert.True(t, decimal.RequireFromString("42.10").Equal(got.SAPDiscrepancies[0].DocTotal))

	found, err := store.FindLedgerByRange(ctx, marchRange())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "ledger-1", found.ID)

	april := recon.DateRange{Start: recon.NewDate(2024, time.April, 1), End: recon.NewDate(2024, time.April, 30)}
	none, err := store.FindLedgerByRange(ctx, april)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = store.GetLedger(ctx, "missing")
	assert.True(t, recon.IsNotFound(err))
}

func TestStore_CreateLedger_DuplicateRange(t *testing.T) {
	// GIVEN: A ledger for March
	// WHEN: Another run inserts a ledger for the same range
	// THEN: The unique range rejects it

	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateLedger(ctx, newLedger("ledger-1", marchRange())))

	err := store.CreateLedger(ctx, newLedger("ledger-2", marchRange()))
	assert.True(t, errors.Is(err, recon.ErrDuplicateRange))

	// A different range with the same start is fine
	shorter := recon.DateRange{Start: march(1), End: march(15)}
	assert.NoError(t, store.CreateLedger(ctx, newLedger("ledger-3", shorter)))
}

func TestStore_UpdateLedger_RevisionCheck(t *testing.T) {
	// GIVEN: Two readers of the same ledger revision
	// WHEN: Both write back
	// THEN: The second write is rejected and keeps its revision

	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateLedger(ctx, newLedger("ledger-1", marchRange())))

	first, err := store.GetLedger(ctx, "ledger-1")
	require.NoError(t, err)
	second, err := store.GetLedger(ctx, "ledger-1")
	require.NoError(t, err)

	require.NoError(t, store.UpdateLedger(ctx, first))
	assert.Equal(t, 2, first.Revision)

	err = store.UpdateLedger(ctx, second)
	assert.True(t, errors.Is(err, recon.ErrConcurrentModification))
	assert.True(t, recon.IsRetryable(err))
	assert.Equal(t, 1, second.Revision)

	got, err := store.GetLedger(ctx, "ledger-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Revision)

	err = store.UpdateLedger(ctx, newLedger("ghost", marchRange()))
	assert.True(t, recon.IsNotFound(err))
}

func TestStore_LedgerIDs(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	ids, err := store.LedgerIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, store.CreateLedger(ctx, newLedger("ledger-b", marchRange())))
	require.NoError(t, store.CreateLedger(ctx, newLedger("ledger-a", recon.DateRange{Start: march(1), End: march(15)})))

	ids, err = store.LedgerIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ledger-a", "ledger-b"}, ids, "same update time falls back to id order")
}

// =============================================================================
// COLLABORATOR DATA TESTS
// =============================================================================

func TestStore_DailySalesAndVerifiedFlag(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveDailySales(ctx, []recon.DailySales{cashSheet()}))

	err := store.MarkVerified(ctx, recon.SalesRef{DocID: "sales-0301", Category: recon.CategoryEspeces, Index: 1})
	require.NoError(t, err)

	doc, err := store.GetDailySales(ctx, "sales-0301")
	require.NoError(t, err)
	assert.False(t, doc.Especes[0].Verified)
	assert.True(t, doc.Especes[1].Verified)
	assert.Equal(t, "Café des Arts", doc.Especes[1].Client)

	err = store.MarkVerified(ctx, recon.SalesRef{DocID: "sales-0301", Category: recon.CategoryEspeces, Index: 5})
	assert.True(t, errors.Is(err, recon.ErrSalesRecordNotFound))

	err = store.MarkVerified(ctx, recon.SalesRef{DocID: "sales-0999", Category: recon.CategoryEspeces})
	assert.True(t, errors.Is(err, recon.ErrSalesRecordNotFound))

	_, err = store.GetDailySales(ctx, "sales-0999")
	assert.True(t, recon.IsNotFound(err))
}

func TestStore_SAPRecordsBetween(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSAPRecords(ctx, []recon.SAPRecord{
		{ID: "INV-1002", DocNum: "1002", DocDate: recon.NewDate(2024, time.April, 10), CardName: "Traiteur Lefèvre", DocTotal: decimal.RequireFromString("999")},
		{ID: "INV-1001", DocNum: "1001", DocDate: march(2), CardName: "SARL Boulangerie Martin", DocTotal: decimal.RequireFromString("503.40")},
		{ID: "PAY-7", DocDate: march(20), CardName: "Boucherie Centrale", DocTotal: decimal.RequireFromString("42"), Kind: recon.SAPPayment},
	}))

	records, err := store.SAPRecordsBetween(ctx, marchRange())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "INV-1001", records[0].ID)
	assert.Equal(t, march(2), records[0].DocDate)
	assert.Equal(t, "503.4", records[0].DocTotal.String())
	assert.Equal(t, recon.SAPInvoice, records[0].Kind, "kind defaults to invoice")
	assert.Equal(t, recon.SAPPayment, records[1].Kind)

	// Upsert replaces by id
	require.NoError(t, store.SaveSAPRecords(ctx, []recon.SAPRecord{
		{ID: "INV-1001", DocDate: march(2), CardName: "SARL Boulangerie Martin", DocTotal: decimal.RequireFromString("500")},
	}))
	records, err = store.SAPRecordsBetween(ctx, marchRange())
	require.NoError(t, err)
	assert.Equal(t, "500", records[0].DocTotal.String())
}

func TestStore_BankStatements(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveBankStatements(ctx, []recon.BankStatement{
		{ID: "BNK-2", Date: march(12), Label: "PRLV URSSAF", Amount: decimal.RequireFromString("-1820")},
		{ID: "BNK-1", Date: march(5), Label: "VIR BOULANGERIE MARTIN", Amount: decimal.RequireFromString("500"), Reference: "VIR-88"},
	}))

	all, err := store.BankStatements(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "BNK-1", all[0].ID)
	assert.Equal(t, "VIR-88", all[0].Reference)
	assert.Empty(t, all[1].Reference)
	assert.Equal(t, "-1820", all[1].Amount.String())

	week := recon.DateRange{Start: march(1), End: march(7)}
	some, err := store.BankStatements(ctx, &week)
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "BNK-1", some[0].ID)
}

func TestStore_Reset(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateLedger(ctx, newLedger("ledger-1", marchRange())))
	require.NoError(t, store.SaveDailySales(ctx, []recon.DailySales{cashSheet()}))

	require.NoError(t, store.Reset(ctx))

	_, err := store.GetLedger(ctx, "ledger-1")
	assert.True(t, recon.IsNotFound(err))
	_, err = store.GetDailySales(ctx, "sales-0301")
	assert.True(t, recon.IsNotFound(err))

	// The range is free again
	assert.NoError(t, store.CreateLedger(ctx, newLedger("ledger-2", marchRange())))
}
