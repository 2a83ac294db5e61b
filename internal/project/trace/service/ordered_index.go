package service

import (
	"cmp"

	"github.com/Avi18971911/Beacon/internal/project/trace/model"
	"github.com/google/btree"
)

const btreeDegree = 32

// orderedEntry breaks ties between equal keys by ingestion sequence so that records with
// identical timestamps or latencies stay distinct. Sequences start at 1, which lets a
// pivot with seq 0 sit strictly before every real entry sharing its key.
type orderedEntry[K cmp.Ordered] struct {
	key    K
	seq    uint64
	record *model.SpanRecord
}

func orderedEntryLess[K cmp.Ordered](a, b orderedEntry[K]) bool {
	if a.key != b.key {
		return a.key < b.key
	}
	return a.seq < b.seq
}

// orderedIndex keeps entries in a btree for range iteration and mirrors their keys in a
// rankTree so that counts over a key range cost O(log n).
type orderedIndex[K cmp.Ordered] struct {
	tree  *btree.BTreeG[orderedEntry[K]]
	ranks *rankTree[K]
}

func newOrderedIndex[K cmp.Ordered]() *orderedIndex[K] {
	return &orderedIndex[K]{
		tree:  btree.NewG[orderedEntry[K]](btreeDegree, orderedEntryLess[K]),
		ranks: &rankTree[K]{},
	}
}

// insert expects seq to be unique across calls.
func (o *orderedIndex[K]) insert(key K, seq uint64, record *model.SpanRecord) {
	if _, replaced := o.tree.ReplaceOrInsert(orderedEntry[K]{key: key, seq: seq, record: record}); !replaced {
		o.ranks.insert(key, seq)
	}
}

func (o *orderedIndex[K]) len() int {
	return o.tree.Len()
}

func (o *orderedIndex[K]) bounds() (K, K, bool) {
	first, ok := o.tree.Min()
	if !ok {
		var zero K
		return zero, zero, false
	}
	last, _ := o.tree.Max()
	return first.key, last.key, true
}

// descending returns the records whose key lies in [lo, hi), largest key first.
func (o *orderedIndex[K]) descending(lo, hi K) []*model.SpanRecord {
	var records []*model.SpanRecord
	o.tree.DescendRange(
		orderedEntry[K]{key: hi},
		orderedEntry[K]{key: lo},
		func(e orderedEntry[K]) bool {
			records = append(records, e.record)
			return true
		},
	)
	return records
}

// count returns the number of entries whose key lies in [lo, hi).
func (o *orderedIndex[K]) count(lo, hi K) int {
	if hi <= lo {
		return 0
	}
	return o.ranks.countLess(hi) - o.ranks.countLess(lo)
}

func (o *orderedIndex[K]) countBelow(pivot K) int {
	return o.ranks.countLess(pivot)
}
