package usftp

import (
	"encoding/binary"
	"fmt"
)

var bigEnd_ = binary.BigEndian

// errShortPacket is returned whenever a getter would have to read past the
// end of the packet's buffer.
const errShortPacket = Const("sftp: packet too short")

// errLongPacket is returned when a peer declares a frame length larger than
// this client is willing to allocate for.
const errLongPacket = Const("sftp: packet too long")

// newOutPacket starts an outbound packet of the given type with inB as the
// (possibly non-empty) backing slice to append to.
func newOutPacket(typ byte, inB []byte) []byte {
	return putByte(inB, typ)
}

func putByte(b []byte, v byte) []byte {
	return append(b, v)
}

func putUint32(b []byte, v uint32) []byte {
	return bigEnd_.AppendUint32(b, v)
}

func putUint64(b []byte, v uint64) []byte {
	return bigEnd_.AppendUint64(b, v)
}

func putString(b []byte, s string) []byte {
	b = putUint32(b, uint32(len(s)))
	return append(b, s...)
}

func putBytes(b []byte, v []byte) []byte {
	b = putUint32(b, uint32(len(v)))
	return append(b, v...)
}

// beginString reserves 4 bytes for a deferred-length string and returns the
// extended slice along with the position of the reservation, to be closed
// later with endString.
func beginString(b []byte) (outB []byte, mark int) {
	mark = len(b)
	outB = putUint32(b, 0)
	return
}

// endString patches the length reserved by beginString to cover exactly the
// bytes appended since the reservation.
func endString(b []byte, mark int) []byte {
	n := uint32(len(b) - mark - 4)
	bigEnd_.PutUint32(b[mark:mark+4], n)
	return b
}

// putAttrs appends an attribute record, respecting the flag-gated field
// order: size, uid+gid, permissions, atime+mtime, extended.
func putAttrs(b []byte, a *Attributes) []byte {
	b = putUint32(b, a.Flags)
	if a.Flags&sshFileXferAttrSize != 0 {
		b = putUint64(b, a.Size)
	}
	if a.Flags&sshFileXferAttrUIDGID != 0 {
		b = putUint32(b, a.UID)
		b = putUint32(b, a.GID)
	}
	if a.Flags&sshFileXferAttrPermissions != 0 {
		b = putUint32(b, a.Permissions)
	}
	if a.Flags&sshFileXferAttrACmodTime != 0 {
		b = putUint32(b, a.Atime)
		b = putUint32(b, a.Mtime)
	}
	if a.Flags&sshFileXferAttrExtended != 0 {
		b = putUint32(b, uint32(len(a.Extended)))
		for _, ext := range a.Extended {
			b = putString(b, ext.Type)
			b = putString(b, ext.Data)
		}
	}
	return b
}

// getByte reads one byte, checking remaining length first.
func getByte(b []byte) (v byte, rest []byte, err error) {
	if len(b) < 1 {
		return 0, b, errShortPacket
	}
	return b[0], b[1:], nil
}

func getUint32(b []byte) (v uint32, rest []byte, err error) {
	if len(b) < 4 {
		return 0, b, errShortPacket
	}
	return bigEnd_.Uint32(b), b[4:], nil
}

func getUint64(b []byte) (v uint64, rest []byte, err error) {
	if len(b) < 8 {
		return 0, b, errShortPacket
	}
	return bigEnd_.Uint64(b), b[8:], nil
}

// getString decodes a length-prefixed string, failing if the declared
// length exceeds the remaining bytes.
func getString(b []byte) (s string, rest []byte, err error) {
	length, rest, err := getUint32(b)
	if err != nil {
		return "", b, err
	}
	if uint64(length) > uint64(len(rest)) {
		return "", b, errShortPacket
	}
	return string(rest[:length]), rest[length:], nil
}

func getBytes(b []byte) (v []byte, rest []byte, err error) {
	length, rest, err := getUint32(b)
	if err != nil {
		return nil, b, err
	}
	if uint64(length) > uint64(len(rest)) {
		return nil, b, errShortPacket
	}
	return rest[:length], rest[length:], nil
}

// getAttrs decodes an attribute record, reading only the fields whose
// flag bits are set.
func getAttrs(b []byte) (a Attributes, rest []byte, err error) {
	a.Flags, rest, err = getUint32(b)
	if err != nil {
		return
	}
	if a.Flags&sshFileXferAttrSize != 0 {
		a.Size, rest, err = getUint64(rest)
		if err != nil {
			return
		}
	}
	if a.Flags&sshFileXferAttrUIDGID != 0 {
		a.UID, rest, err = getUint32(rest)
		if err != nil {
			return
		}
		a.GID, rest, err = getUint32(rest)
		if err != nil {
			return
		}
	}
	if a.Flags&sshFileXferAttrPermissions != 0 {
		a.Permissions, rest, err = getUint32(rest)
		if err != nil {
			return
		}
	}
	if a.Flags&sshFileXferAttrACmodTime != 0 {
		a.Atime, rest, err = getUint32(rest)
		if err != nil {
			return
		}
		a.Mtime, rest, err = getUint32(rest)
		if err != nil {
			return
		}
	}
	if a.Flags&sshFileXferAttrExtended != 0 {
		var count uint32
		count, rest, err = getUint32(rest)
		if err != nil {
			return
		}
		for i := uint32(0); i < count; i++ {
			var typ, data string
			typ, rest, err = getString(rest)
			if err != nil {
				return
			}
			data, rest, err = getString(rest)
			if err != nil {
				return
			}
			a.Extended = append(a.Extended, ExtendedAttr{Type: typ, Data: data})
		}
	}
	return
}

// sendFrame writes the framed payload over t: u32 length (type+payload),
// then type, then payload. buf is reused scratch space for the length
// prefix plus typ byte and payload; it is not retained by t.
func sendFrame(t Transport, buf []byte, typ byte, payload []byte) error {
	buf = buf[:0]
	buf = putUint32(buf, uint32(len(payload)+1))
	buf = newOutPacket(typ, buf)
	buf = append(buf, payload...)
	return t.SendBytes(buf)
}

// recvFrame reads one framed packet from t: 4-byte length, then exactly
// that many bytes, splitting off the leading type byte.
func recvFrame(t Transport, maxPacket int) (typ byte, payload []byte, err error) {
	var hdr [4]byte
	if err = t.RecvExactBytes(hdr[:]); err != nil {
		return
	}
	length := bigEnd_.Uint32(hdr[:])
	if length == 0 {
		return 0, nil, errShortPacket
	}
	// Room for the type byte plus the request id and length prefix that
	// precede a maxPacket-sized DATA payload.
	if int(length) > maxPacket+9 {
		return 0, nil, fmt.Errorf("%w: %d bytes, max is %d", errLongPacket, length, maxPacket)
	}
	body := make([]byte, length)
	if err = t.RecvExactBytes(body); err != nil {
		return
	}
	typ = body[0]
	payload = body[1:]
	return
}
