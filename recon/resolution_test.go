package recon_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/reconciliation-engine/recon"
)

// =============================================================================
// EXCEL RESOLUTION TESTS
// =============================================================================

func boucherieInvoice() recon.MatchedInvoice {
	return recon.MatchedInvoice{
		TargetRef:    "INV-1003",
		TargetAmount: money("42"),
		DocNum:       "INV-1003",
		DocDate:      march(15),
		CustomerName: "Boucherie Centrale",
	}
}

func TestResolveExcelDiscrepancy_IsAdditive(t *testing.T) {
	// GIVEN: An open cheque discrepancy
	// WHEN: An operator resolves it against an SAP invoice
	// THEN: The discrepancy stays in place flagged resolved, and a resolved
	//       match is appended under "Resolved and Matched"

	l := martinLedger(t)
	before := l.DiscrepancyCount()

	result, err := l.ResolveExcelDiscrepancy(recon.ExcelResolution{
		DiscrepancyID:   cafeLineID,
		Resolution:      "paid with the butcher's invoice",
		ResolvedBy:      "claire",
		MatchedInvoices: []recon.MatchedInvoice{boucherieInvoice()},
	}, testNow)
	require.NoError(t, err)

	assert.Equal(t, before, l.DiscrepancyCount())
	d := l.ExcelDiscrepancies[recon.CategoryCheques][0]
	assert.True(t, d.Resolved)
	assert.Equal(t, "claire", d.ResolvedBy)
	require.NotNil(t, d.ResolvedTimestamp)
	assert.Equal(t, testNow, *d.ResolvedTimestamp)
	assert.Len(t, d.MatchedInvoices, 1)

	resolved := l.Matches[recon.CategoryResolvedExcel]
	require.Len(t, resolved, 1)
	assert.Equal(t, cafeLineID, resolved[0].SourceID)
	assert.Equal(t, "INV-1003", resolved[0].TargetID)
	assert.Equal(t, recon.ExactScore, resolved[0].ConfidenceScore)
	assert.True(t, resolved[0].IsResolved)
	assert.Equal(t, result.Matches, resolved)

	// The automatic matches are untouched
	assert.Len(t, l.Matches[recon.CategoryEspeces], 1)
	assert.Empty(t, l.UnresolvedExcelDiscrepancies())
}

func TestResolveExcelDiscrepancy_Twice(t *testing.T) {
	l := martinLedger(t)
	req := recon.ExcelResolution{
		DiscrepancyID:   cafeLineID,
		MatchedInvoices: []recon.MatchedInvoice{boucherieInvoice()},
	}

	_, err := l.ResolveExcelDiscrepancy(req, testNow)
	require.NoError(t, err)

	_, err = l.ResolveExcelDiscrepancy(req, testNow)
	assert.True(t, errors.Is(err, recon.ErrAlreadyResolved))
	assert.Len(t, l.Matches[recon.CategoryResolvedExcel], 1, "no match appended on conflict")
}

func TestResolveExcelDiscrepancy_ByPosition(t *testing.T) {
	l := martinLedger(t)

	result, err := l.ResolveExcelDiscrepancy(recon.ExcelResolution{
		Category:        recon.CategoryCheques,
		Index:           intPtr(0),
		MatchedInvoices: []recon.MatchedInvoice{boucherieInvoice()},
	}, testNow)
	require.NoError(t, err)
	assert.Equal(t, cafeLineID, result.Discrepancy.ID)
}

func TestResolveExcelDiscrepancy_Errors(t *testing.T) {
	l := martinLedger(t)
	invoices := []recon.MatchedInvoice{boucherieInvoice()}

	_, err := l.ResolveExcelDiscrepancy(recon.ExcelResolution{DiscrepancyID: cafeLineID}, testNow)
	assert.True(t, recon.IsClientError(err), "no invoices")

	_, err = l.ResolveExcelDiscrepancy(recon.ExcelResolution{
		DiscrepancyID:   cafeLineID,
		MatchedInvoices: []recon.MatchedInvoice{{TargetRef: " "}},
	}, testNow)
	assert.True(t, recon.IsClientError(err), "blank target ref")

	_, err = l.ResolveExcelDiscrepancy(recon.ExcelResolution{MatchedInvoices: invoices}, testNow)
	assert.True(t, recon.IsClientError(err), "no address")

	_, err = l.ResolveExcelDiscrepancy(recon.ExcelResolution{DiscrepancyID: "nope", MatchedInvoices: invoices}, testNow)
	assert.True(t, errors.Is(err, recon.ErrDiscrepancyNotFound))

	_, err = l.ResolveExcelDiscrepancy(recon.ExcelResolution{
		Category:        recon.CategoryCheques,
		Index:           intPtr(3),
		MatchedInvoices: invoices,
	}, testNow)
	var nf *recon.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Chèques[3]", nf.ID)
}

// =============================================================================
// SAP RESOLUTION TESTS
// =============================================================================

func TestResolveSAPDiscrepancy(t *testing.T) {
	// GIVEN: An open SAP invoice present in both SAP discrepancy lists
	// WHEN: An operator ties it to the cafe cheque
	// THEN: Both copies are resolved, a match is appended under
	//       "SAP Resolved Matches" and the cheque is listed for verification

	l := martinLedger(t)

	result, err := l.ResolveSAPDiscrepancy(recon.SAPResolution{
		SAPRecordID: "INV-1003",
		Resolution:  "wrong client on the sheet",
		ResolvedBy:  "claire",
		MatchedTransactions: []recon.MatchedTransaction{
			{Ref: cafeLineID, Client: "Café des Arts", Amount: money("100"), Date: march(2)},
		},
	}, testNow)
	require.NoError(t, err)

	assert.True(t, l.SAPDiscrepancies[0].Resolved)
	for _, s := range l.ExtendedSAPDiscrepancies {
		if s.ID == "INV-1003" {
			assert.True(t, s.Resolved)
			assert.Equal(t, "claire", s.ResolvedBy)
		} else {
			assert.False(t, s.Resolved)
		}
	}

	resolved := l.Matches[recon.CategoryResolvedSAP]
	require.Len(t, resolved, 1)
	assert.Equal(t, cafeLineID, resolved[0].SourceID)
	assert.Equal(t, "INV-1003", resolved[0].TargetID)
	assert.Equal(t, "Boucherie Centrale", resolved[0].TargetCustomerName)

	require.Len(t, result.Verify, 1)
	assert.Equal(t, recon.SalesRef{DocID: "sales-0302", Category: recon.CategoryCheques, Index: 0}, result.Verify[0])
	assert.True(t, result.Record.Resolved)
}

func TestResolveSAPDiscrepancy_Errors(t *testing.T) {
	l := martinLedger(t)
	txs := []recon.MatchedTransaction{{Ref: cafeLineID}}

	_, err := l.ResolveSAPDiscrepancy(recon.SAPResolution{MatchedTransactions: txs}, testNow)
	assert.True(t, recon.IsClientError(err))

	_, err = l.ResolveSAPDiscrepancy(recon.SAPResolution{SAPRecordID: "INV-1003"}, testNow)
	assert.True(t, recon.IsClientError(err))

	_, err = l.ResolveSAPDiscrepancy(recon.SAPResolution{SAPRecordID: "INV-1001", MatchedTransactions: txs}, testNow)
	assert.True(t, errors.Is(err, recon.ErrSAPRecordNotFound), "matched invoices cannot be resolved")

	_, err = l.ResolveSAPDiscrepancy(recon.SAPResolution{SAPRecordID: "INV-1003", MatchedTransactions: txs}, testNow)
	require.NoError(t, err)
	_, err = l.ResolveSAPDiscrepancy(recon.SAPResolution{SAPRecordID: "INV-1003", MatchedTransactions: txs}, testNow)
	assert.True(t, errors.Is(err, recon.ErrAlreadyResolved))
}
