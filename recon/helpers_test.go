package recon_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/reconciliation-engine/recon"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var testNow = time.Date(2024, time.April, 2, 9, 0, 0, 0, time.UTC)

// march returns a day of March 2024.
func march(day int) recon.Date {
	return recon.NewDate(2024, time.March, day)
}

func march2024() recon.DateRange {
	return recon.DateRange{Start: march(1), End: march(31)}
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, money(want).Equal(got), "want %s, got %s", want, got.String())
}

func excelRecord(id string, date recon.Date, client, amount string) recon.TransactionRecord {
	return recon.TransactionRecord{
		ID:       id,
		Date:     date,
		Client:   client,
		Amount:   money(amount),
		Category: recon.CategoryCheques,
		Source:   recon.SourceExcel,
	}
}

func sapRecord(id string, date recon.Date, cardName, total string) recon.SAPRecord {
	return recon.SAPRecord{
		ID:       id,
		DocNum:   id,
		DocDate:  date,
		CardName: cardName,
		DocTotal: money(total),
		Kind:     recon.SAPInvoice,
	}
}

func entry(client, amount string) recon.SalesEntry {
	return recon.SalesEntry{Client: client, Amount: decimal.NewNullDecimal(money(amount))}
}

func statement(id string, date recon.Date, label, amount string) recon.BankStatement {
	return recon.BankStatement{ID: id, Date: date, Label: label, Amount: money(amount)}
}

// martinSales is one cash sale to Boulangerie Martin and one cheque from a
// client SAP never invoiced.
func martinSales() []recon.DailySales {
	return []recon.DailySales{
		{
			ID:      "sales-0301",
			Date:    march(1),
			Especes: []recon.SalesEntry{entry("Boulangerie Martin", "500")},
		},
		{
			ID:      "sales-0302",
			Date:    march(2),
			Cheques: []recon.SalesEntry{entry("Café des Arts", "100")},
		},
	}
}

// martinSAP holds the matching invoice, one open invoice in the range and
// one open invoice of the widened window only.
func martinSAP() []recon.SAPRecord {
	return []recon.SAPRecord{
		sapRecord("INV-1001", march(2), "SARL Boulangerie Martin", "503"),
		sapRecord("INV-1003", march(15), "Boucherie Centrale", "42"),
		sapRecord("INV-1002", recon.NewDate(2024, time.April, 10), "Traiteur Lefèvre", "999"),
	}
}

const (
	martinLineID = "sales-0301:Espèces:0"
	cafeLineID   = "sales-0302:Chèques:0"
)

func martinLedger(t *testing.T) *recon.Ledger {
	t.Helper()
	m := recon.NewMatcher(recon.DefaultMatchingConfig())
	l := m.BuildLedger(recon.LedgerInput{
		Range: march2024(),
		Excel: recon.FlattenAll(martinSales()),
		SAP:   martinSAP(),
	}, testNow)
	l.ID = "ledger-1"
	return l
}

func intPtr(i int) *int { return &i }
