package usftp

import "math"

// transferDirection distinguishes a download (pipelined READs) from an
// upload (pipelined WRITEs) transfer.
type transferDirection int8

const (
	transferDownload transferDirection = iota
	transferUpload
)

// transferReqState is the completion state of one in-flight request.
type transferReqState int8

const (
	reqPending transferReqState = iota
	reqSuccess
	reqFailed
)

// noSlot marks an absent arena index (head/tail/next/prev).
const noSlot = -1

// transferReq is one in-flight READ or WRITE, arena-allocated inside
// transfer.arena and linked into the FIFO queue via next/prev indices.
type transferReq struct {
	inUse  bool
	buffer []byte // download only; nil for upload
	length uint32
	retlen uint32
	state  transferReqState
	offset uint64
	next   int
	prev   int
}

// transferHandoff is the userdata a transfer attaches to each request it
// registers, so Client.dispatch can route an inbound packet straight to
// the transfer and the arena slot it belongs to.
type transferHandoff struct {
	xfer *transfer
	slot transferSlot
}

// transfer is the windowed pipelined transfer engine: one direction, one
// borrowed file handle, a bounded in-flight byte budget, and the
// believed-filesize/furthest-data bookkeeping that detects logical EOF
// from a short read.
type transfer struct {
	client *Client
	handle string

	direction transferDirection

	nextOffset       uint64
	furthestData     uint64
	believedFilesize uint64

	inFlightBytes int
	maxInFlight   int
	readSize      uint32

	eof   bool
	err   bool
	cause error

	head, tail int // arena indices; noSlot when empty
	arena      []transferReq
	freeSlots  []int

	sendBuf []byte
}

func newTransfer(c *Client, handle string, dir transferDirection, offset uint64, maxInFlight, readSize int) *transfer {
	return &transfer{
		client:           c,
		handle:           handle,
		direction:        dir,
		nextOffset:       offset,
		believedFilesize: math.MaxUint64,
		maxInFlight:      maxInFlight,
		readSize:         uint32(readSize),
		head:             noSlot,
		tail:             noSlot,
	}
}

// newDownloadTransfer starts a download: eof starts false, and the window
// is filled immediately.
func newDownloadTransfer(c *Client, handle string, offset uint64, maxInFlight, readSize int) *transfer {
	x := newTransfer(c, handle, transferDownload, offset, maxInFlight, readSize)
	x.queueMore()
	return x
}

// newUploadTransfer starts an upload. eof starts true, meaning "we will
// never queue more reads" (there are no reads in an upload); it only
// governs when done() can return true once the caller stops writing.
func newUploadTransfer(c *Client, handle string, offset uint64, maxInFlight, readSize int) *transfer {
	x := newTransfer(c, handle, transferUpload, offset, maxInFlight, readSize)
	x.eof = true
	return x
}

func (x *transfer) allocSlot() int {
	if n := len(x.freeSlots); n > 0 {
		slot := x.freeSlots[n-1]
		x.freeSlots = x.freeSlots[:n-1]
		return slot
	}
	x.arena = append(x.arena, transferReq{})
	return len(x.arena) - 1
}

// pushBack appends slot to the tail of the FIFO queue.
func (x *transfer) pushBack(slot int) {
	r := &x.arena[slot]
	r.inUse = true
	r.next = noSlot
	r.prev = x.tail
	if x.tail != noSlot {
		x.arena[x.tail].next = slot
	} else {
		x.head = slot
	}
	x.tail = slot
}

// unlink removes slot from whatever position it occupies in the queue.
// Upload acks may arrive out of order, so this must support arbitrary
// positions, not just the head.
func (x *transfer) unlink(slot int) {
	r := &x.arena[slot]
	if r.prev != noSlot {
		x.arena[r.prev].next = r.next
	} else {
		x.head = r.next
	}
	if r.next != noSlot {
		x.arena[r.next].prev = r.prev
	} else {
		x.tail = r.prev
	}
	r.inUse = false
	r.buffer = nil
	x.freeSlots = append(x.freeSlots, slot)
}

// queueMore issues new READ requests at nextOffset until the window is
// full or eof/err is set.
func (x *transfer) queueMore() {
	for x.inFlightBytes < x.maxInFlight && !x.eof && !x.err {
		slot := x.allocSlot()
		r := &x.arena[slot]
		r.offset = x.nextOffset
		r.length = x.readSize
		r.buffer = nil
		r.retlen = 0
		r.state = reqPending
		x.pushBack(slot)

		req := x.client.registry.allocAndInsert(transferHandoff{xfer: x, slot: transferSlot(slot)})
		payload := putUint32(nil, req.id)
		payload = putString(payload, x.handle)
		payload = putUint64(payload, r.offset)
		payload = putUint32(payload, r.length)

		if sendErr := sendFrame(x.client.transport, x.sendBuf, sshFxpRead, payload); sendErr != nil {
			x.client.registry.remove(req.id)
			x.setError(sendErr)
			return
		}

		x.nextOffset += uint64(r.length)
		x.inFlightBytes += int(r.length)
	}
}

// ready reports whether the caller may call data() without exceeding the
// in-flight byte budget.
func (x *transfer) ready() bool {
	return x.inFlightBytes < x.maxInFlight
}

// data issues one WRITE of buf at the current offset. The caller should
// poll ready() first.
func (x *transfer) data(buf []byte) error {
	if x.err {
		return x.cause
	}
	slot := x.allocSlot()
	r := &x.arena[slot]
	r.offset = x.nextOffset
	r.length = uint32(len(buf))
	r.buffer = nil
	r.state = reqPending
	x.pushBack(slot)

	req := x.client.registry.allocAndInsert(transferHandoff{xfer: x, slot: transferSlot(slot)})
	payload := putUint32(nil, req.id)
	payload = putString(payload, x.handle)
	payload = putUint64(payload, r.offset)
	payload = putBytes(payload, buf)

	if sendErr := sendFrame(x.client.transport, x.sendBuf, sshFxpWrite, payload); sendErr != nil {
		x.client.registry.remove(req.id)
		x.unlink(slot)
		x.setError(sendErr)
		return sendErr
	}

	x.nextOffset += uint64(r.length)
	x.inFlightBytes += int(r.length)
	return nil
}

func (x *transfer) setError(err error) {
	x.err = true
	if x.cause == nil {
		x.cause = err
	}
}

// gotPacket is the arrival entry point. The registry has already resolved
// the packet to this transfer and arena slot (see Client.dispatch). A
// reply for a slot no longer in use, including any reply that arrives
// after cleanup, is dropped.
func (x *transfer) gotPacket(slot int, typ byte, payload []byte) {
	if slot >= len(x.arena) || !x.arena[slot].inUse {
		return
	}
	if x.direction == transferDownload {
		x.downloadGotPacket(slot, typ, payload)
	} else {
		x.uploadGotPacket(slot, typ, payload)
	}
}

// downloadGotPacket parses a READ reply. A short read implies an upper
// bound on the file size; data arriving beyond that bound means the
// server handed back a short buffer somewhere other than EOF.
func (x *transfer) downloadGotPacket(slot int, typ byte, payload []byte) {
	r := &x.arena[slot]
	x.inFlightBytes -= int(r.length)

	switch typ {
	case sshFxpData:
		data, _, err := getBytes(payload)
		if err != nil {
			r.state = reqFailed
			x.setError(newProtocolError("malformed DATA packet: %v", err))
			return
		}
		if uint32(len(data)) > r.length {
			r.state = reqFailed
			x.setError(newProtocolError("READ: got %d bytes, requested %d", len(data), r.length))
			return
		}
		if len(data) == 0 {
			x.eof = true
			r.state = reqFailed
			return
		}
		r.buffer = data
		r.retlen = uint32(len(data))
		r.state = reqSuccess

		if r.offset > x.furthestData {
			x.furthestData = r.offset
		}
		if r.retlen < r.length {
			implied := r.offset + uint64(r.retlen)
			if implied < x.believedFilesize {
				x.believedFilesize = implied
			}
		}
		if x.furthestData > x.believedFilesize {
			x.setError(newProtocolError("received a short buffer from FXP_READ, but not at EOF"))
		}

	case sshFxpStatus:
		statusErr := x.client.decodeStatusAsError(payload)
		if se, ok := statusErr.(*StatusError); ok && se.Code == sshFxEOF {
			x.eof = true
			r.state = reqFailed
			return
		}
		r.state = reqFailed
		if statusErr == nil {
			statusErr = newProtocolError("READ: STATUS OK is not a valid reply")
		}
		x.setError(statusErr)

	default:
		r.state = reqFailed
		x.setError(newProtocolError("expected DATA or STATUS, got packet type %d", typ))
	}
}

// uploadGotPacket parses a WRITE status reply. The req is unlinked
// regardless of position or success, since upload acks may arrive out of
// order.
func (x *transfer) uploadGotPacket(slot int, typ byte, payload []byte) {
	r := &x.arena[slot]
	x.inFlightBytes -= int(r.length)

	var failErr error
	if typ == sshFxpStatus {
		failErr = x.client.decodeStatusAsError(payload)
	} else {
		failErr = newProtocolError("expected STATUS reply to WRITE, got packet type %d", typ)
	}

	x.unlink(slot)

	if failErr != nil {
		x.setError(failErr)
	}
}

// pullData walks the head of the queue, discarding failed entries and
// handing back the first successful one. It stops at the first
// still-pending entry.
func (x *transfer) pullData() (data []byte, ok bool) {
	for x.head != noSlot {
		r := &x.arena[x.head]
		if r.state == reqPending {
			return nil, false
		}
		slot := x.head
		success := r.state == reqSuccess
		var buf []byte
		if success {
			buf = r.buffer[:r.retlen]
		}
		x.unlink(slot)
		if success {
			return buf, true
		}
	}
	return nil, false
}

// done reports whether the transfer has seen eof or err and drained its
// queue.
func (x *transfer) done() bool {
	return (x.eof || x.err) && x.head == noSlot
}

// Err reports the first error recorded against this transfer, if any.
func (x *transfer) Err() error { return x.cause }

// cleanup frees all queued req records (and their buffers, in download
// mode) and leaves the transfer unusable. Request ids still outstanding
// in the registry are left for dispatch to drain.
func (x *transfer) cleanup() {
	for slot := x.head; slot != noSlot; {
		next := x.arena[slot].next
		x.arena[slot] = transferReq{}
		slot = next
	}
	x.head, x.tail = noSlot, noSlot
	x.arena = nil
	x.freeSlots = nil
}
