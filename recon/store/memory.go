// Package store provides in-memory recon.Repository implementations.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/reconciliation-engine/recon"
)

var (
	_ recon.Repository           = (*Memory)(nil)
	_ recon.SalesRecordAnnotator = (*Memory)(nil)
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps ledgers as encoded documents, so callers never share state
// with the store; the same isolation a database gives.
type Memory struct {
	mu         sync.RWMutex
	ledgers    map[string]storedLedger
	byRange    map[rangeKey]string
	sales      map[string]recon.DailySales
	sap        map[string]recon.SAPRecord
	statements map[string]recon.BankStatement
}

type storedLedger struct {
	revision int
	doc      []byte
}

type rangeKey struct {
	Start, End string
}

func keyOf(r recon.DateRange) rangeKey {
	return rangeKey{Start: r.Start.String(), End: r.End.String()}
}

func NewMemory() *Memory {
	return &Memory{
		ledgers:    make(map[string]storedLedger),
		byRange:    make(map[rangeKey]string),
		sales:      make(map[string]recon.DailySales),
		sap:        make(map[string]recon.SAPRecord),
		statements: make(map[string]recon.BankStatement),
	}
}

// =============================================================================
// LEDGERS
// =============================================================================

func (m *Memory) CreateLedger(_ context.Context, l *recon.Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := keyOf(l.DateRange)
	if _, exists := m.byRange[k]; exists {
		return recon.ErrDuplicateRange
	}
	l.Revision = 1
	doc, err := json.Marshal(l)
	if err != nil {
		return err
	}
	m.ledgers[l.ID] = storedLedger{revision: 1, doc: doc}
	m.byRange[k] = l.ID
	return nil
}

func (m *Memory) GetLedger(_ context.Context, id string) (*recon.Ledger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.decodeLocked(id)
}

func (m *Memory) FindLedgerByRange(_ context.Context, r recon.DateRange) (*recon.Ledger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byRange[keyOf(r)]
	if !ok {
		return nil, nil
	}
	return m.decodeLocked(id)
}

func (m *Memory) decodeLocked(id string) (*recon.Ledger, error) {
	stored, ok := m.ledgers[id]
	if !ok {
		return nil, &recon.NotFoundError{Kind: "ledger", ID: id, Err: recon.ErrLedgerNotFound}
	}
	var l recon.Ledger
	if err := json.Unmarshal(stored.doc, &l); err != nil {
		return nil, err
	}
	l.Revision = stored.revision
	return &l, nil
}

func (m *Memory) UpdateLedger(_ context.Context, l *recon.Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.ledgers[l.ID]
	if !ok {
		return &recon.NotFoundError{Kind: "ledger", ID: l.ID, Err: recon.ErrLedgerNotFound}
	}
	if stored.revision != l.Revision {
		return recon.ErrConcurrentModification
	}

	l.Revision++
	doc, err := json.Marshal(l)
	if err != nil {
		l.Revision--
		return err
	}
	m.ledgers[l.ID] = storedLedger{revision: l.Revision, doc: doc}
	return nil
}

// =============================================================================
// COLLABORATOR DATA
// =============================================================================

func (m *Memory) SaveDailySales(_ context.Context, docs []recon.DailySales) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range docs {
		m.sales[doc.ID] = cloneSales(doc)
	}
	return nil
}

func (m *Memory) GetDailySales(_ context.Context, id string) (*recon.DailySales, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.sales[id]
	if !ok {
		return nil, &recon.NotFoundError{Kind: "daily sales", ID: id, Err: recon.ErrSalesRecordNotFound}
	}
	out := cloneSales(doc)
	return &out, nil
}

func (m *Memory) MarkVerified(_ context.Context, ref recon.SalesRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.sales[ref.DocID]
	if !ok {
		return &recon.NotFoundError{Kind: "daily sales", ID: ref.DocID, Err: recon.ErrSalesRecordNotFound}
	}
	entry, ok := doc.Entry(ref.Category, ref.Index)
	if !ok {
		return &recon.NotFoundError{
			Kind: "sales line",
			ID:   fmt.Sprintf("%s:%s:%d", ref.DocID, ref.Category, ref.Index),
			Err:  recon.ErrSalesRecordNotFound,
		}
	}
	entry.Verified = true
	m.sales[ref.DocID] = doc
	return nil
}

func (m *Memory) SaveSAPRecords(_ context.Context, records []recon.SAPRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.sap[r.ID] = r
	}
	return nil
}

func (m *Memory) SAPRecordsBetween(_ context.Context, r recon.DateRange) ([]recon.SAPRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []recon.SAPRecord
	for _, rec := range m.sap {
		if r.Contains(rec.DocDate) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DocDate.Equal(out[j].DocDate) {
			return out[i].DocDate.Before(out[j].DocDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) SaveBankStatements(_ context.Context, statements []recon.BankStatement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range statements {
		m.statements[st.ID] = st
	}
	return nil
}

func (m *Memory) BankStatements(_ context.Context, r *recon.DateRange) ([]recon.BankStatement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []recon.BankStatement
	for _, st := range m.statements {
		if r == nil || r.Contains(st.Date) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// cloneSales copies every line list so stored documents are never aliased.
func cloneSales(doc recon.DailySales) recon.DailySales {
	cp := func(in []recon.SalesEntry) []recon.SalesEntry {
		if in == nil {
			return nil
		}
		return append([]recon.SalesEntry(nil), in...)
	}
	out := doc
	out.Cheques = cp(doc.Cheques)
	out.Especes = cp(doc.Especes)
	out.CBSite = cp(doc.CBSite)
	out.CBPhone = cp(doc.CBPhone)
	out.Virements = cp(doc.Virements)
	out.LivraisonsNonPayees = cp(doc.LivraisonsNonPayees)
	if doc.POS != nil {
		pos := recon.POSSales{
			Especes:           cp(doc.POS.Especes),
			CB:                cp(doc.POS.CB),
			Cheques:           cp(doc.POS.Cheques),
			TicketsRestaurant: cp(doc.POS.TicketsRestaurant),
		}
		out.POS = &pos
	}
	return out
}
