package compilationcache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// magic is the prefix of every serialized Entry.
const magic = "EXPRJIT"

// Entry is the cached form of a compiled cell.
type Entry struct {
	Variant   string
	Lanes     uint32
	Code      []byte
	ConstPool []byte
	Listing   []string
	Registers []string
}

// Serialize encodes e, tagged with the version of the compiler which produced it.
func Serialize(version string, e *Entry) io.Reader {
	buf := bytes.NewBuffer(nil)
	buf.WriteString(magic)
	writeShortString(buf, version)
	writeShortString(buf, e.Variant)
	writeUint32(buf, e.Lanes)
	writeBytes(buf, e.Code)
	writeBytes(buf, e.ConstPool)
	writeStrings(buf, e.Listing)
	writeStrings(buf, e.Registers)
	return buf
}

// Deserialize decodes an Entry written by Serialize. staleCache is true, with a
// nil entry, when the content was written by another version.
func Deserialize(version string, reader io.Reader) (e *Entry, staleCache bool, err error) {
	r := &decoder{r: reader}

	header := r.next(len(magic) + 1)
	if r.err != nil {
		return nil, false, fmt.Errorf("invalid header length: %d", r.n)
	}
	if string(header[:len(magic)]) != magic {
		return nil, false, fmt.Errorf("invalid magic number: got %q but want %q", header[:len(magic)], magic)
	}
	if cached := string(r.next(int(header[len(magic)]))); r.err == nil && cached != version {
		return nil, true, nil
	}

	e = &Entry{}
	e.Variant = string(r.next(int(r.byte())))
	e.Lanes = r.uint32()
	e.Code = r.bytes()
	e.ConstPool = r.bytes()
	e.Listing = r.strings()
	e.Registers = r.strings()
	if r.err != nil {
		return nil, false, fmt.Errorf("compilationcache: error reading entry: %v", r.err)
	}
	return e, false, nil
}

func writeShortString(buf *bytes.Buffer, s string) {
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(b)))
	buf.Write(n[:])
	buf.Write(b)
}

func writeStrings(buf *bytes.Buffer, ss []string) {
	writeUint32(buf, uint32(len(ss)))
	for _, s := range ss {
		writeUint32(buf, uint32(len(s)))
		buf.WriteString(s)
	}
}

// decoder reads the fields of an Entry, remembering the first error.
type decoder struct {
	r   io.Reader
	n   int
	err error
}

func (d *decoder) next(size int) []byte {
	if d.err != nil {
		return nil
	}
	b := make([]byte, size)
	n, err := io.ReadFull(d.r, b)
	d.n += n
	if err != nil {
		d.err = err
		return nil
	}
	return b
}

func (d *decoder) byte() byte {
	if b := d.next(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *decoder) uint32() uint32 {
	if b := d.next(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *decoder) bytes() []byte {
	b := d.next(8)
	if b == nil {
		return nil
	}
	size := binary.LittleEndian.Uint64(b)
	if size > 1<<30 {
		d.err = fmt.Errorf("length %d out of range", size)
		return nil
	}
	if size == 0 {
		return nil
	}
	return d.next(int(size))
}

func (d *decoder) strings() []string {
	n := d.uint32()
	if d.err != nil || n == 0 {
		return nil
	}
	if n > 1<<20 {
		d.err = fmt.Errorf("count %d out of range", n)
		return nil
	}
	ret := make([]string, 0, n)
	for i := uint32(0); i < n && d.err == nil; i++ {
		size := d.uint32()
		if size > 1<<20 {
			d.err = fmt.Errorf("length %d out of range", size)
			return nil
		}
		ret = append(ret, string(d.next(int(size))))
	}
	return ret
}
