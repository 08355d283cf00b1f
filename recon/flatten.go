package recon

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECORD FLATTENER - DailySales -> []TransactionRecord
// =============================================================================

// Category labels as they appear in matches and discrepancies.
const (
	CategoryCheques             = "Chèques"
	CategoryEspeces             = "Espèces"
	CategoryCBSite              = "CB Site"
	CategoryCBPhone             = "CB Internet & Phone"
	CategoryVirements           = "Virements"
	CategoryLivraisonsNonPayees = "Livraisons non payées"
	CategoryPOSEspeces          = "POS Espèces"
	CategoryPOSCB               = "POS CB"
	CategoryPOSCheques          = "POS Chèques"
	CategoryPOSTickets          = "POS Tickets Restaurant"
)

// sentinelLabels are summary rows exported inside the line lists.
var sentinelLabels = map[string]bool{
	"total":                     true,
	"client":                    true,
	"total especes":             true,
	"total espèces":             true,
	"total cheques":             true,
	"total chèques":             true,
	"total cb internet & phone": true,
}

// IsSentinelLabel reports whether a client label is a total/header row.
func IsSentinelLabel(label string) bool {
	return sentinelLabels[strings.ToLower(strings.TrimSpace(label))]
}

type categoryList struct {
	category string
	pos      bool
	entries  []SalesEntry
}

func (d DailySales) categories() []categoryList {
	lists := []categoryList{
		{CategoryCheques, false, d.Cheques},
		{CategoryEspeces, false, d.Especes},
		{CategoryCBSite, false, d.CBSite},
		{CategoryCBPhone, false, d.CBPhone},
		{CategoryVirements, false, d.Virements},
		{CategoryLivraisonsNonPayees, false, d.LivraisonsNonPayees},
	}
	if d.POS != nil {
		lists = append(lists,
			categoryList{CategoryPOSEspeces, true, d.POS.Especes},
			categoryList{CategoryPOSCB, true, d.POS.CB},
			categoryList{CategoryPOSCheques, true, d.POS.Cheques},
			categoryList{CategoryPOSTickets, true, d.POS.TicketsRestaurant},
		)
	}
	return lists
}

// Entry returns the line a SalesRef points at.
func (d *DailySales) Entry(category string, index int) (*SalesEntry, bool) {
	var list *[]SalesEntry
	switch category {
	case CategoryCheques:
		list = &d.Cheques
	case CategoryEspeces:
		list = &d.Especes
	case CategoryCBSite:
		list = &d.CBSite
	case CategoryCBPhone:
		list = &d.CBPhone
	case CategoryVirements:
		list = &d.Virements
	case CategoryLivraisonsNonPayees:
		list = &d.LivraisonsNonPayees
	}
	if d.POS != nil {
		switch category {
		case CategoryPOSEspeces:
			list = &d.POS.Especes
		case CategoryPOSCB:
			list = &d.POS.CB
		case CategoryPOSCheques:
			list = &d.POS.Cheques
		case CategoryPOSTickets:
			list = &d.POS.TicketsRestaurant
		}
	}
	if list == nil || index < 0 || index >= len(*list) {
		return nil, false
	}
	return &(*list)[index], true
}

// EntryAmount falls back from the bank amount to the declared amount to zero.
func EntryAmount(e SalesEntry) decimal.Decimal {
	if e.Bank.Valid {
		return e.Bank.Decimal
	}
	if e.Amount.Valid {
		return e.Amount.Decimal
	}
	return decimal.Zero
}

// Flatten emits one record per sales line, skipping sentinel rows and blank
// rows without an amount. A line with an amount but no client is kept; it
// never scores and ends up a discrepancy.
// Record ids are "<docID>:<category>:<index>" where index is the position in
// the original list, so they stay stable across runs.
func Flatten(doc DailySales) []TransactionRecord {
	var records []TransactionRecord
	for _, list := range doc.categories() {
		for i, e := range list.entries {
			if IsSentinelLabel(e.Client) || isEmptyLine(e) {
				continue
			}
			records = append(records, TransactionRecord{
				ID:       fmt.Sprintf("%s:%s:%d", doc.ID, list.category, i),
				Date:     doc.Date,
				Client:   strings.TrimSpace(e.Client),
				Amount:   EntryAmount(e),
				Category: list.category,
				Remarks:  e.Remarks,
				Source:   SourceExcel,
				IsPOS:    list.pos,
				SalesRef: &SalesRef{DocID: doc.ID, Category: list.category, Index: i},
			})
		}
	}
	return records
}

func isEmptyLine(e SalesEntry) bool {
	return strings.TrimSpace(e.Client) == "" && EntryAmount(e).IsZero()
}

// FlattenAll flattens several documents in order.
func FlattenAll(docs []DailySales) []TransactionRecord {
	var records []TransactionRecord
	for _, doc := range docs {
		records = append(records, Flatten(doc)...)
	}
	return records
}
