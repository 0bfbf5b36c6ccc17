package metadata

import (
	"strconv"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Index is a Roaring-bitmap inverted index over equality terms.
//
// It maps key=value terms to the set of dense slots whose metadata carries that
// exact pair, letting the store pre-filter a brute-force scan instead of
// matching every document. Only scalar values (strings, bools, numbers) are
// indexed; range and substring operators always fall back to per-document
// matching.
type Index struct {
	mu    sync.RWMutex
	terms map[string]*roaring.Bitmap
	docs  map[uint32][]string // slot -> indexed term keys, for removal
}

// NewIndex creates an empty inverted index.
func NewIndex() *Index {
	return &Index{
		terms: make(map[string]*roaring.Bitmap),
		docs:  make(map[uint32][]string),
	}
}

// Set indexes the metadata for a slot, replacing any previous terms.
func (ix *Index) Set(slot uint32, md Metadata) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(slot)

	if len(md) == 0 {
		return
	}

	terms := make([]string, 0, len(md))
	for key, value := range md {
		term, ok := termKey(key, value)
		if !ok {
			continue
		}
		bm := ix.terms[term]
		if bm == nil {
			bm = roaring.New()
			ix.terms[term] = bm
		}
		bm.Add(slot)
		terms = append(terms, term)
	}
	if len(terms) > 0 {
		ix.docs[slot] = terms
	}
}

// Remove drops all terms for a slot.
func (ix *Index) Remove(slot uint32) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(slot)
}

func (ix *Index) removeLocked(slot uint32) {
	terms, ok := ix.docs[slot]
	if !ok {
		return
	}
	for _, term := range terms {
		if bm := ix.terms[term]; bm != nil {
			bm.Remove(slot)
			if bm.IsEmpty() {
				delete(ix.terms, term)
			}
		}
	}
	delete(ix.docs, slot)
}

// Candidates intersects the bitmaps of all indexable equality filters in fs.
//
// The returned bitmap is a fresh copy owned by the caller. ok reports whether
// at least one filter was answerable from the index; exact reports whether the
// bitmap alone is sufficient (no residual per-document matching needed).
func (ix *Index) Candidates(fs *FilterSet) (bm *roaring.Bitmap, exact, ok bool) {
	if fs == nil || len(fs.Filters) == 0 {
		return nil, false, false
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	exact = true
	for i := range fs.Filters {
		f := &fs.Filters[i]
		if f.Operator != OpEqual {
			exact = false
			continue
		}
		term, indexable := termKey(f.Key, f.Value)
		if !indexable {
			exact = false
			continue
		}

		termBM := ix.terms[term]
		if termBM == nil {
			// Term absent: the conjunction can never match.
			return roaring.New(), true, true
		}
		if bm == nil {
			bm = termBM.Clone()
		} else {
			bm.And(termBM)
		}
	}

	if bm == nil {
		return nil, false, false
	}
	return bm, exact, true
}

// termKey canonicalizes a key/value pair into an index term.
// Numbers are normalized so 3, int64(3) and 3.0 share a term, matching
// compareEqual's cross-type numeric semantics.
func termKey(key string, value any) (string, bool) {
	if f, isNum := asFloat64(value); isNum {
		return key + "\x00n:" + strconv.FormatFloat(f, 'g', -1, 64), true
	}
	switch v := value.(type) {
	case string:
		return key + "\x00s:" + v, true
	case bool:
		return key + "\x00b:" + strconv.FormatBool(v), true
	default:
		return "", false
	}
}
