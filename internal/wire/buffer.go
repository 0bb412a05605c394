// Package wire implements the chunked, append-only line-protocol buffer
// described in spec.md §4.2: a growable sequence of fixed-size byte chunks
// that a row-builder façade (see the root package) fills one table, tag,
// and field at a time, with a rewind point that lets an in-progress row be
// cancelled without touching already-committed lines.
package wire

import (
	"io"
	"math"
	"strconv"

	qerr "github.com/lineflux/qdbsender/errors"
	"github.com/lineflux/qdbsender/internal/protocol"
	"github.com/lineflux/qdbsender/internal/state"
)

// Buffer is the chunked, append-only byte store backing a Sender. It is
// not safe for concurrent use; the root package serializes access. Row
// lifecycle legality (what call is allowed next) is delegated to an
// internal/state Machine; Buffer itself only ever decides how bytes get
// written and rewound.
type Buffer struct {
	chunks    [][]byte
	chunkSize int
	maxSize   int
	maxName   int

	chunkIdx int // index of the chunk currently being written
	pos      int // write cursor within chunks[chunkIdx]
	length   int // total committed bytes across all chunks

	rowCount int

	lineStartChunk int
	lineStartPos   int

	sm *state.Machine
}

// NewBuffer allocates a Buffer whose first chunk is initSize bytes, growing
// in initSize increments up to maxSize.
func NewBuffer(initSize, maxSize, maxNameLen int) *Buffer {
	b := &Buffer{
		chunkSize: initSize,
		maxSize:   maxSize,
		maxName:   maxNameLen,
		sm:        state.New(),
	}
	b.chunks = [][]byte{make([]byte, initSize)}
	return b
}

// Len returns the total number of committed bytes currently buffered.
func (b *Buffer) Len() int { return b.length }

// RowCount returns the number of complete rows committed since the last
// Clear.
func (b *Buffer) RowCount() int { return b.rowCount }

// HasPendingRow reports whether a row has been opened (via Table) but not
// yet committed (via At/AtNow).
func (b *Buffer) HasPendingRow() bool { return b.sm.Phase() != state.Idle }

// HasTagsOrFields reports whether the row currently open has accumulated at
// least one symbol or field, the precondition for At/AtNow per §4.2.
func (b *Buffer) HasTagsOrFields() bool { return b.sm.HasTagOrField() }

// Clear discards all buffered content and resets row-tracking state,
// without shrinking allocated chunk capacity.
func (b *Buffer) Clear() {
	b.chunkIdx = 0
	b.pos = 0
	b.length = 0
	b.rowCount = 0
	b.lineStartChunk = 0
	b.lineStartPos = 0
	b.sm.Reset()
}

// Trim releases chunks beyond the first, shrinking the buffer back to its
// initial single-chunk footprint. Only valid when the buffer is empty.
func (b *Buffer) Trim() {
	if len(b.chunks) > 1 {
		b.chunks = b.chunks[:1]
	}
}

// CancelRow discards everything written since the last committed line,
// rewinding to the line-start mark captured by Table. It is an error to
// call CancelRow when no row is open.
func (b *Buffer) CancelRow() error {
	if err := b.sm.CheckCancel(); err != nil {
		return err
	}
	b.chunkIdx = b.lineStartChunk
	b.pos = b.lineStartPos
	b.length = b.lineStartChunk*b.chunkSize + b.lineStartPos
	b.sm.Cancel()
	return nil
}

// Table opens a new row: marks the rewind point, writes the validated
// table name with separator escaping, and arms the builder to accept
// symbols or fields.
func (b *Buffer) Table(name string) error {
	if err := b.sm.CheckTable(); err != nil {
		return err
	}
	if err := validateName("table", name, b.maxName); err != nil {
		return err
	}
	b.lineStartChunk = b.chunkIdx
	b.lineStartPos = b.pos

	if err := b.writeEscapedUnquoted(name); err != nil {
		return err
	}
	b.sm.EnterTable()
	return nil
}

// Symbol appends a `,name=value` tag to the open row.
func (b *Buffer) Symbol(name, value string) error {
	if err := b.sm.CheckSymbol(); err != nil {
		return err
	}
	if err := validateColumnName("symbol", name, b.maxName); err != nil {
		return err
	}
	if err := b.writeByte(protocol.Comma); err != nil {
		return err
	}
	if err := b.writeEscapedUnquoted(name); err != nil {
		return err
	}
	if err := b.writeByte(protocol.Equals); err != nil {
		return err
	}
	if err := b.writeEscapedUnquoted(value); err != nil {
		return err
	}
	b.sm.MarkSymbol()
	return nil
}

// fieldPrefix writes the separator and "name=" prefix shared by every
// *Column method: a space before the first field, a comma between
// subsequent fields. It does not itself advance the state machine — the
// caller does that once the field's value has also been written
// successfully, via markFieldWritten.
func (b *Buffer) fieldPrefix(name string) error {
	if err := b.sm.CheckColumn(); err != nil {
		return err
	}
	if err := validateColumnName("column", name, b.maxName); err != nil {
		return err
	}
	sep := byte(protocol.Space)
	if b.sm.Phase() == state.OpenFields {
		sep = protocol.Comma
	}
	if err := b.writeByte(sep); err != nil {
		return err
	}
	if err := b.writeEscapedUnquoted(name); err != nil {
		return err
	}
	return b.writeByte(protocol.Equals)
}

// markFieldWritten advances the state machine once a *Column method has
// finished writing its value successfully.
func (b *Buffer) markFieldWritten() {
	b.sm.EnterFields()
}

// StringColumn appends a double-quoted string field.
func (b *Buffer) StringColumn(name, value string) error {
	if err := b.fieldPrefix(name); err != nil {
		return err
	}
	if err := b.writeByte(protocol.Quote); err != nil {
		return err
	}
	if err := b.writeEscapedQuoted(value); err != nil {
		return err
	}
	if err := b.writeByte(protocol.Quote); err != nil {
		return err
	}
	b.markFieldWritten()
	return nil
}

// Int64Column appends an integer field with the 'i' suffix. IntMin is
// rejected because QuestDB reserves it on the wire (§4.2).
func (b *Buffer) Int64Column(name string, value int64) error {
	if value == protocol.IntMin {
		return qerr.New(qerr.InvalidApiCall, "int64 column value must not be math.MinInt64")
	}
	if err := b.fieldPrefix(name); err != nil {
		return err
	}
	if err := b.writeString(strconv.FormatInt(value, 10)); err != nil {
		return err
	}
	if err := b.writeByte(protocol.IntSuffix); err != nil {
		return err
	}
	b.markFieldWritten()
	return nil
}

// Float64Column appends a floating-point field. NaN and infinities are
// rejected: QuestDB's wire format has no representation for them (§6, Open
// Question resolution).
func (b *Buffer) Float64Column(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return qerr.New(qerr.InvalidApiCall, "float64 column value must not be NaN or +/-Inf")
	}
	if err := b.fieldPrefix(name); err != nil {
		return err
	}
	if err := b.writeString(strconv.FormatFloat(value, 'g', -1, 64)); err != nil {
		return err
	}
	b.markFieldWritten()
	return nil
}

// BoolColumn appends a boolean field as a bare 't' or 'f'.
func (b *Buffer) BoolColumn(name string, value bool) error {
	if err := b.fieldPrefix(name); err != nil {
		return err
	}
	lit := byte(protocol.BooleanFalse)
	if value {
		lit = protocol.BooleanTrue
	}
	if err := b.writeByte(lit); err != nil {
		return err
	}
	b.markFieldWritten()
	return nil
}

// TimestampColumn appends a microsecond-precision timestamp field with the
// 't' suffix, distinguishing it from the designated timestamp written by At.
func (b *Buffer) TimestampColumn(name string, micros int64) error {
	if err := b.fieldPrefix(name); err != nil {
		return err
	}
	if err := b.writeString(strconv.FormatInt(micros, 10)); err != nil {
		return err
	}
	if err := b.writeByte(protocol.TimeSuffix); err != nil {
		return err
	}
	b.markFieldWritten()
	return nil
}

// At closes the open row with an explicit designated timestamp in
// nanoseconds and commits it: a space, the timestamp, and a newline.
func (b *Buffer) At(nanos int64) error {
	if err := b.sm.CheckCommit(); err != nil {
		return err
	}
	if err := b.writeByte(protocol.Space); err != nil {
		return err
	}
	if err := b.writeString(strconv.FormatInt(nanos, 10)); err != nil {
		return err
	}
	return b.commitLine()
}

// AtNow closes the open row without a client-supplied timestamp, letting
// the server assign one on receipt.
func (b *Buffer) AtNow() error {
	if err := b.sm.CheckCommit(); err != nil {
		return err
	}
	return b.commitLine()
}

func (b *Buffer) commitLine() error {
	if err := b.writeByte(protocol.Newline); err != nil {
		return err
	}
	b.rowCount++
	b.sm.Commit()
	return nil
}

// WriteTo streams every committed chunk to w, in order, without copying
// the buffer into a single contiguous allocation first.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	var written int64
	full := b.chunkIdx
	for i := 0; i <= full; i++ {
		end := b.chunkSize
		if i == full {
			end = b.pos
		}
		if end == 0 {
			continue
		}
		n, err := w.Write(b.chunks[i][:end])
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (b *Buffer) writeString(s string) error {
	for i := 0; i < len(s); i++ {
		if err := b.writeByte(s[i]); err != nil {
			return err
		}
	}
	return nil
}

// writeEscapedUnquoted writes value with the separator-escaping rules that
// apply outside double quotes: space, comma, and equals are backslash
// escaped, along with backslash itself and embedded newlines.
func (b *Buffer) writeEscapedUnquoted(value string) error {
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch c {
		case protocol.Space, protocol.Comma, protocol.Equals, protocol.Backslash, protocol.Newline, protocol.CarriageRet:
			if err := b.writeByte(protocol.Backslash); err != nil {
				return err
			}
		}
		if err := b.writeByte(c); err != nil {
			return err
		}
	}
	return nil
}

// writeEscapedQuoted writes value with the escaping rules that apply
// inside a double-quoted string field: only the quote and backslash
// characters themselves need escaping.
func (b *Buffer) writeEscapedQuoted(value string) error {
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c == protocol.Quote || c == protocol.Backslash {
			if err := b.writeByte(protocol.Backslash); err != nil {
				return err
			}
		}
		if err := b.writeByte(c); err != nil {
			return err
		}
	}
	return nil
}

// writeByte appends a single byte, growing the chunk list when the current
// chunk is full, and failing once maxSize would be exceeded.
func (b *Buffer) writeByte(c byte) error {
	if b.pos == b.chunkSize {
		if err := b.grow(); err != nil {
			return err
		}
	}
	b.chunks[b.chunkIdx][b.pos] = c
	b.pos++
	b.length++
	return nil
}

func (b *Buffer) grow() error {
	if b.length+b.chunkSize > b.maxSize {
		return qerr.Newf(qerr.InvalidApiCall, "buffer would exceed max_buf_size of %d bytes", b.maxSize)
	}
	b.chunkIdx++
	b.pos = 0
	if b.chunkIdx == len(b.chunks) {
		b.chunks = append(b.chunks, make([]byte, b.chunkSize))
	}
	return nil
}
