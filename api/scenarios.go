/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario seeds SAP documents and bank
	statements, then runs the reconciliation for its date range so a ledger
	is ready to explore.

AVAILABLE SCENARIOS:

	boulangerie-martin:  One cash sale, one SAP invoice, one bank credit
	month-end:           Every payment category, POS days, open items
	greedy-double-claim: Two sales lines claiming the same SAP invoice

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Ingest SAP documents and bank statements
 3. Run the reconciliation with the scenario's daily sales
 4. Return the analysis id

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "month-end"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create a data builder: xxxScenario() scenarioData
 3. Add case to scenarioDataFor

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase
  - recon/service.go: Compare
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/reconciliation-engine/recon"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "boulangerie-martin",
		Name:        "Boulangerie Martin",
		Description: "Cash sale matched to a SARL-prefixed SAP invoice and a bank credit",
		Category:    "matching",
	},
	{
		ID:          "month-end",
		Name:        "Month End",
		Description: "All payment categories, POS daily totals, open SAP and bank items",
		Category:    "bank",
	},
	{
		ID:          "greedy-double-claim",
		Name:        "Greedy Double Claim",
		Description: "Two identical sales lines both matched to one SAP invoice",
		Category:    "resolution",
	},
}

type scenarioData struct {
	Range recon.DateRange
	Sales []recon.DailySales
	SAP   []recon.SAPRecord
	Bank  []recon.BankStatement
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, map[string]any{"scenario": s})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	data, ok := scenarioDataFor(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	ledger, err := h.loadScenario(ctx, data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	// Track the loaded scenario
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "loaded",
		"scenario":   req.ScenarioID,
		"analysisId": ledger.ID,
	})
}

func (h *Handler) loadScenario(ctx context.Context, data scenarioData) (*recon.Ledger, error) {
	if err := h.Service.IngestSAPRecords(ctx, data.SAP); err != nil {
		return nil, fmt.Errorf("ingest sap records: %w", err)
	}
	if err := h.Service.IngestBankStatements(ctx, data.Bank); err != nil {
		return nil, fmt.Errorf("ingest bank statements: %w", err)
	}
	ledger, _, err := h.Service.Compare(ctx, data.Range, data.Sales)
	if err != nil {
		return nil, fmt.Errorf("run reconciliation: %w", err)
	}
	return ledger, nil
}

func scenarioDataFor(id string) (scenarioData, bool) {
	switch id {
	case "boulangerie-martin":
		return boulangerieMartinScenario(), true
	case "month-end":
		return monthEndScenario(), true
	case "greedy-double-claim":
		return greedyDoubleClaimScenario(), true
	default:
		return scenarioData{}, false
	}
}

// =============================================================================
// SCENARIO DATA
// =============================================================================

func day(month, d int) recon.Date {
	return recon.NewDate(2024, time.Month(month), d)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func line(client, amount string) recon.SalesEntry {
	return recon.SalesEntry{Client: client, Amount: decimal.NewNullDecimal(money(amount))}
}

// banked is a line whose banked amount differs from the declared one.
func banked(client, amount, bank string) recon.SalesEntry {
	e := line(client, amount)
	e.Bank = decimal.NewNullDecimal(money(bank))
	return e
}

func invoice(id, docNum string, date recon.Date, cardName, total string) recon.SAPRecord {
	return recon.SAPRecord{
		ID: id, DocNum: docNum, DocDate: date, CardName: cardName,
		DocTotal: money(total), Kind: recon.SAPInvoice,
	}
}

func statement(id string, date recon.Date, label, amount string) recon.BankStatement {
	return recon.BankStatement{ID: id, Date: date, Label: label, Amount: money(amount)}
}

func boulangerieMartinScenario() scenarioData {
	return scenarioData{
		Range: recon.DateRange{Start: day(3, 1), End: day(3, 31)},
		Sales: []recon.DailySales{{
			ID:      "sales-2024-03-01",
			Date:    day(3, 1),
			Especes: []recon.SalesEntry{line("Boulangerie Martin", "500")},
		}},
		SAP: []recon.SAPRecord{
			invoice("INV-1001", "1001", day(3, 2), "SARL Boulangerie Martin", "503"),
		},
		Bank: []recon.BankStatement{
			statement("BNK-0001", day(3, 5), "VIR BOULANGERIE MARTIN", "500"),
		},
	}
}

func monthEndScenario() scenarioData {
	pos := recon.SAPRecord{
		ID: "POS-0304", DocNum: "9304", DocDate: day(3, 4), CardName: "Client POS",
		DocTotal: money("412.50"), Kind: recon.SAPInvoice, IsPOS: true,
	}
	payment := recon.SAPRecord{
		ID: "PAY-2001", DocNum: "2001", DocDate: day(3, 6), CardName: "Traiteur Lefèvre & Fils",
		DocTotal: money("1250"), Kind: recon.SAPPayment,
	}

	return scenarioData{
		Range: recon.DateRange{Start: day(3, 1), End: day(3, 31)},
		Sales: []recon.DailySales{
			{
				ID:   "sales-2024-03-04",
				Date: day(3, 4),
				Cheques: []recon.SalesEntry{
					line("Hôtel du Parc", "860"),
					line("TOTAL CHEQUES", "860"),
				},
				Especes: []recon.SalesEntry{
					line("Café des Arts", "145.20"),
					line("total", "145.20"),
				},
				CBSite: []recon.SalesEntry{
					banked("Restaurant Le Zinc", "318", "317.40"),
				},
				POS: &recon.POSSales{
					Especes: []recon.SalesEntry{line("Client comptoir", "212.50")},
					CB:      []recon.SalesEntry{line("Client comptoir", "200")},
				},
			},
			{
				ID:   "sales-2024-03-06",
				Date: day(3, 6),
				Virements: []recon.SalesEntry{
					line("Traiteur Lefevre et Fils", "1250"),
				},
				CBPhone: []recon.SalesEntry{
					line("Mme Durand", "64.90"),
				},
				LivraisonsNonPayees: []recon.SalesEntry{
					line("Crèche Les Lutins", "230"),
				},
				POS: &recon.POSSales{
					TicketsRestaurant: []recon.SalesEntry{line("Client comptoir", "96")},
				},
			},
		},
		SAP: []recon.SAPRecord{
			invoice("INV-1101", "1101", day(3, 5), "HOTEL DU PARC SAS", "860"),
			invoice("INV-1102", "1102", day(3, 4), "Café des Arts", "145.20"),
			invoice("INV-1103", "1103", day(3, 7), "SARL Restaurant Le Zinc", "317.40"),
			invoice("INV-1104", "1104", day(3, 20), "Boucherie Centrale", "540"),
			invoice("INV-1105", "1105", day(3, 8), "Creche les Lutins", "260"),
			payment,
			pos,
		},
		Bank: []recon.BankStatement{
			statement("BNK-0301", day(3, 6), "REMISE CHQ HOTEL DU PARC", "860"),
			statement("BNK-0302", day(3, 8), "VIR TRAITEUR LEFEVRE", "1250"),
			statement("BNK-0303", day(3, 9), "CB 0412 REGLEMENT", "317.40"),
			statement("BNK-0304", day(3, 12), "PRLV URSSAF", "-1820.00"),
		},
	}
}

func greedyDoubleClaimScenario() scenarioData {
	return scenarioData{
		Range: recon.DateRange{Start: day(4, 1), End: day(4, 30)},
		Sales: []recon.DailySales{
			{
				ID:      "sales-2024-04-02",
				Date:    day(4, 2),
				Cheques: []recon.SalesEntry{line("Pâtisserie Dupont Frères", "120")},
			},
			{
				ID:      "sales-2024-04-03",
				Date:    day(4, 3),
				Cheques: []recon.SalesEntry{line("Patisserie Dupont Freres", "120")},
			},
		},
		SAP: []recon.SAPRecord{
			invoice("INV-1201", "1201", day(4, 2), "SARL Patisserie Dupont Bros", "120"),
		},
	}
}
