package recon

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// POS ANALYSIS - Point-of-sale lines reconciled as daily totals
// =============================================================================

type POSDayStatus string

const (
	POSDayMatched      POSDayStatus = "matched"
	POSDayMismatch     POSDayStatus = "mismatch"
	POSDayMissingSAP   POSDayStatus = "missing_sap"
	POSDayMissingExcel POSDayStatus = "missing_excel"
)

type POSSummary struct {
	ExcelTotal     decimal.Decimal `json:"excelTotal"`
	SAPTotal       decimal.Decimal `json:"sapTotal"`
	Difference     decimal.Decimal `json:"difference"`
	MatchedDays    int             `json:"matchedDays"`
	MismatchedDays int             `json:"mismatchedDays"`
}

type POSDailyComparison struct {
	Date       Date            `json:"date"`
	ExcelTotal decimal.Decimal `json:"excelTotal"`
	SAPTotal   decimal.Decimal `json:"sapTotal"`
	Difference decimal.Decimal `json:"difference"`
	Status     POSDayStatus    `json:"status"`
}

type POSAnalysis struct {
	Summary          POSSummary           `json:"summary"`
	SAPDetails       []SAPRecord          `json:"sapDetails"`
	ExcelDetails     []TransactionRecord  `json:"excelDetails"`
	DailyComparisons []POSDailyComparison `json:"dailyComparisons"`
}

func emptyPOSAnalysis() POSAnalysis {
	return POSAnalysis{
		SAPDetails:       []SAPRecord{},
		ExcelDetails:     []TransactionRecord{},
		DailyComparisons: []POSDailyComparison{},
	}
}

type posDay struct {
	excel, sap       decimal.Decimal
	hasExcel, hasSAP bool
}

// AnalyzePOS sums POS lines per day on both sides. A day is matched when the
// excel total is within tolerance of the SAP total (anchored on SAP).
func AnalyzePOS(excel []TransactionRecord, sap []SAPRecord, tolerance decimal.Decimal) POSAnalysis {
	analysis := emptyPOSAnalysis()
	days := make(map[string]*posDay)
	dayFor := func(d Date) *posDay {
		key := d.String()
		if days[key] == nil {
			days[key] = &posDay{}
		}
		return days[key]
	}

	for _, rec := range excel {
		day := dayFor(rec.Date)
		day.excel = day.excel.Add(rec.Amount)
		day.hasExcel = true
		analysis.ExcelDetails = append(analysis.ExcelDetails, rec)
	}
	for _, rec := range sap {
		day := dayFor(rec.DocDate)
		day.sap = day.sap.Add(rec.DocTotal)
		day.hasSAP = true
		analysis.SAPDetails = append(analysis.SAPDetails, rec)
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		day := days[key]
		date, _ := ParseDate(key)
		cmp := POSDailyComparison{
			Date:       date,
			ExcelTotal: day.excel,
			SAPTotal:   day.sap,
			Difference: day.excel.Sub(day.sap),
		}
		switch {
		case !day.hasSAP:
			cmp.Status = POSDayMissingSAP
		case !day.hasExcel:
			cmp.Status = POSDayMissingExcel
		case WithinTolerance(day.excel, day.sap, tolerance):
			cmp.Status = POSDayMatched
		default:
			cmp.Status = POSDayMismatch
		}

		if cmp.Status == POSDayMatched {
			analysis.Summary.MatchedDays++
		} else {
			analysis.Summary.MismatchedDays++
		}
		analysis.Summary.ExcelTotal = analysis.Summary.ExcelTotal.Add(day.excel)
		analysis.Summary.SAPTotal = analysis.Summary.SAPTotal.Add(day.sap)
		analysis.DailyComparisons = append(analysis.DailyComparisons, cmp)
	}
	analysis.Summary.Difference = analysis.Summary.ExcelTotal.Sub(analysis.Summary.SAPTotal)
	return analysis
}
