// Package utxo maintains the chain's single source of truth for
// spendability: the set of unspent transaction outputs, keyed by the
// OutPoint that created them, plus a secondary index by address.
package utxo

import (
	"errors"
	"sort"
	"sync"

	"github.com/carbonchain/node/foundation/blockchain/chainmodel"
)

// ErrNotFound is returned by Apply/Undo when an OutPoint is not present in
// the index.
var ErrNotFound = errors.New("utxo: outpoint not found")

// ErrAlreadyExists is returned by Apply when an insert names an OutPoint
// already present in the index — this would indicate a duplicate txid,
// which the validation engine is responsible for rejecting before Apply
// is ever called.
var ErrAlreadyExists = errors.New("utxo: outpoint already exists")

// entry pairs an OutPoint with the output it refers to, the unit both
// halves of a Diff are expressed in.
type entry struct {
	OutPoint chainmodel.OutPoint
	Output   chainmodel.TxOutput
}

// Diff is a block-sized, atomically-applied change to the index: Inserts
// are the outputs a block's transactions create, Removes are the outputs
// they spend. Removes carries the spent outputs themselves (not just
// their OutPoints) so that Undo can restore them exactly.
type Diff struct {
	Inserts []entry
	Removes []entry
}

// Insert records a new output to be added by this diff.
func (d *Diff) Insert(op chainmodel.OutPoint, out chainmodel.TxOutput) {
	d.Inserts = append(d.Inserts, entry{OutPoint: op, Output: out})
}

// Remove records an existing output, being spent, that this diff will
// remove. out is the output as it existed before removal, needed to
// restore it on Undo.
func (d *Diff) Remove(op chainmodel.OutPoint, out chainmodel.TxOutput) {
	d.Removes = append(d.Removes, entry{OutPoint: op, Output: out})
}

// Index is the chain's live UTXO set. It is owned exclusively by the
// chain manager for mutation (Apply/Undo); concurrent readers (query
// handlers, mempool admission) only ever call the read-only methods.
type Index struct {
	mu sync.RWMutex

	outputs map[chainmodel.OutPoint]chainmodel.TxOutput
	byAddr  map[string]map[chainmodel.OutPoint]struct{}
}

// New constructs an empty UTXO index.
func New() *Index {
	return &Index{
		outputs: make(map[chainmodel.OutPoint]chainmodel.TxOutput),
		byAddr:  make(map[string]map[chainmodel.OutPoint]struct{}),
	}
}

// Get returns the output at op, if it is currently unspent.
func (idx *Index) Get(op chainmodel.OutPoint) (chainmodel.TxOutput, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out, ok := idx.outputs[op]
	return out, ok
}

// Apply atomically inserts and removes the outputs named by d. Both
// halves of the diff are applied under a single write lock so that no
// reader ever observes a partially-applied block.
func (idx *Index) Apply(d Diff) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, e := range d.Inserts {
		if _, exists := idx.outputs[e.OutPoint]; exists {
			return ErrAlreadyExists
		}
	}

	for _, e := range d.Removes {
		if _, exists := idx.outputs[e.OutPoint]; !exists {
			return ErrNotFound
		}
	}

	for _, e := range d.Removes {
		idx.removeLocked(e.OutPoint)
	}

	for _, e := range d.Inserts {
		idx.insertLocked(e.OutPoint, e.Output)
	}

	return nil
}

// Undo reverses a previously-applied diff exactly: every inserted output
// is removed, every removed output is restored. Callers apply diffs in
// reverse block order to disconnect a branch.
func (idx *Index) Undo(d Diff) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, e := range d.Inserts {
		if _, exists := idx.outputs[e.OutPoint]; !exists {
			return ErrNotFound
		}
	}

	for _, e := range d.Inserts {
		idx.removeLocked(e.OutPoint)
	}

	for _, e := range d.Removes {
		idx.insertLocked(e.OutPoint, e.Output)
	}

	return nil
}

func (idx *Index) insertLocked(op chainmodel.OutPoint, out chainmodel.TxOutput) {
	idx.outputs[op] = out

	set, ok := idx.byAddr[out.Address]
	if !ok {
		set = make(map[chainmodel.OutPoint]struct{})
		idx.byAddr[out.Address] = set
	}
	set[op] = struct{}{}
}

func (idx *Index) removeLocked(op chainmodel.OutPoint) {
	out, ok := idx.outputs[op]
	if !ok {
		return
	}
	delete(idx.outputs, op)

	set := idx.byAddr[out.Address]
	delete(set, op)
	if len(set) == 0 {
		delete(idx.byAddr, out.Address)
	}
}

// Balance returns the sum of every unspent, spendable-or-not output
// belonging to address. COMPENSATED and CERTIFIED coins still count
// toward balance (they have value, just restricted transferability);
// callers that need only freely-spendable value should filter via
// UTXOsOf and TxOutput.CoinState.
func (idx *Index) Balance(address string) uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var total uint64
	for op := range idx.byAddr[address] {
		total += idx.outputs[op].Amount
	}
	return total
}

// UTXOsOf returns every OutPoint currently credited to address, in
// deterministic order (see sortOutPoints).
func (idx *Index) UTXOsOf(address string) []chainmodel.OutPoint {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ops := make([]chainmodel.OutPoint, 0, len(idx.byAddr[address]))
	for op := range idx.byAddr[address] {
		ops = append(ops, op)
	}

	sortOutPoints(ops)
	return ops
}

// Select performs deterministic coin selection for address: largest
// output first, tiebroken by OutPoint ordering, accumulating OutPoints
// until their total amount covers target. It returns the chosen
// OutPoints and their sum; if the address's total spendable balance is
// less than target, it returns everything available and ok=false.
func (idx *Index) Select(address string, target uint64) (chosen []chainmodel.OutPoint, total uint64, ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type candidate struct {
		op     chainmodel.OutPoint
		amount uint64
	}

	candidates := make([]candidate, 0, len(idx.byAddr[address]))
	for op := range idx.byAddr[address] {
		out := idx.outputs[op]
		if !out.IsSpendable() {
			continue
		}
		candidates = append(candidates, candidate{op: op, amount: out.Amount})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].amount != candidates[j].amount {
			return candidates[i].amount > candidates[j].amount
		}
		return candidates[i].op.Less(candidates[j].op)
	})

	for _, c := range candidates {
		if total >= target {
			break
		}
		chosen = append(chosen, c.op)
		total += c.amount
	}

	return chosen, total, total >= target
}

// sortOutPoints orders OutPoints deterministically by OutPoint.Less.
func sortOutPoints(ops []chainmodel.OutPoint) {
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].Less(ops[j])
	})
}
