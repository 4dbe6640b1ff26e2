package usftp

import "sort"

// request is an outstanding request descriptor: an id, whether it has
// been committed to the registry, and an opaque slot of caller-owned data
// used to route a reply back to its originator. userdata is always one of
// a small closed set of concrete types this package defines (callback
// func, or transferHandoff carrying a transferSlot index) rather than an
// unsafe pointer.
type request struct {
	id         uint32
	registered bool
	userdata   any
}

// transferSlot is the index into the transfer engine's own req arena that
// it attaches to a request inside a transferHandoff. An index can never dangle the
// way a bare pointer could if the transfer is torn down before stray
// replies drain.
type transferSlot int

// requestRegistry is the ordered, id-keyed container of outstanding
// requests: a counted order-statistics structure supporting insert,
// remove, find-by-id, index(k), and count. A sorted slice with
// sort.Search does the job of a rank-augmented tree here: requests are
// inserted at the tail in allocation order far more often than at
// arbitrary positions, and tail insert/delete on a slice is O(1).
type requestRegistry struct {
	items []*request // sorted by id ascending
}

// count returns the number of outstanding requests.
func (r *requestRegistry) count() int { return len(r.items) }

// index returns the k-th request in id order.
func (r *requestRegistry) index(k int) *request { return r.items[k] }

// positionOf returns the slice position at which id is (or would be)
// located.
func (r *requestRegistry) positionOf(id uint32) int {
	return sort.Search(len(r.items), func(i int) bool {
		return r.items[i].id >= id
	})
}

// findByID looks up a request by id.
func (r *requestRegistry) findByID(id uint32) (*request, bool) {
	pos := r.positionOf(id)
	if pos < len(r.items) && r.items[pos].id == id {
		return r.items[pos], true
	}
	return nil, false
}

// alloc returns the smallest unused id >= requestIDOffset by binary
// search over positions: if the element at position mid has id
// mid+requestIDOffset, the contiguous prefix of ids extends at least that
// far. Invariant: positions 0..low hold exactly ids
// requestIDOffset..requestIDOffset+low.
func (r *requestRegistry) alloc() uint32 {
	low, high := -1, len(r.items)
	for high-low > 1 {
		mid := (low + high) / 2
		if r.items[mid].id == uint32(mid)+requestIDOffset {
			low = mid
		} else {
			high = mid
		}
	}
	return uint32(low+1) + requestIDOffset
}

// insert commits a request to the registry at the id it was allocated
// for, marking it registered. A request that is allocated but never
// registered will never be found by the demultiplexer.
func (r *requestRegistry) insert(req *request) {
	pos := r.positionOf(req.id)
	req.registered = true
	r.items = append(r.items, nil)
	copy(r.items[pos+1:], r.items[pos:])
	r.items[pos] = req
}

// remove deletes the request with the given id, returning it.
func (r *requestRegistry) remove(id uint32) (*request, bool) {
	pos := r.positionOf(id)
	if pos >= len(r.items) || r.items[pos].id != id {
		return nil, false
	}
	req := r.items[pos]
	r.items = append(r.items[:pos], r.items[pos+1:]...)
	return req, true
}

// allocAndInsert is the common path: allocate the next id and commit a
// request for it in one step.
func (r *requestRegistry) allocAndInsert(u any) *request {
	req := &request{id: r.alloc(), userdata: u}
	r.insert(req)
	return req
}
