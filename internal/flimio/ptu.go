package flimio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
)

// PicoQuant PTU files start with an 8-byte magic, an 8-byte version
// string, and a sequence of 48-byte tag records (ident, index, type,
// value) terminated by the Header_End tag. String, array, and blob tags
// carry their payload immediately after the fixed record.
const ptuMagic = "PQTTTR"

// PTU tag value types.
const (
	tyEmpty8      = 0xFFFF0008
	tyBool8       = 0x00000008
	tyInt8        = 0x10000008
	tyBitSet64    = 0x11000008
	tyColor8      = 0x12000008
	tyFloat8      = 0x20000008
	tyTDateTime   = 0x21000008
	tyFloat8Array = 0x2001FFFF
	tyAnsiString  = 0x4001FFFF
	tyWideString  = 0x4002FFFF
	tyBinaryBlob  = 0xFFFFFFFF
)

// TTTR record type identifiers (TTResultFormat_TTTRRecType tag).
const (
	recPicoHarpT3     = 0x00010303
	recPicoHarpT2     = 0x00010203
	recHydraHarpT3    = 0x00010304
	recHydraHarpT2    = 0x00010204
	recHydraHarp2T3   = 0x01010304
	recHydraHarp2T2   = 0x01010204
	recTimeHarp260NT3 = 0x00010305
	recTimeHarp260NT2 = 0x00010205
	recTimeHarp260PT3 = 0x00010306
	recTimeHarp260PT2 = 0x00010206
	recMultiHarpT3    = 0x00010307
	recMultiHarpT2    = 0x00010207
)

// PTUTag is one decoded header tag. Value holds int64, float64, bool,
// string, []float64, or []byte depending on the tag type.
type PTUTag struct {
	Ident string
	Index int
	Value interface{}
}

// Name returns the tag identifier, with the index appended for array tags.
func (t PTUTag) Name() string {
	if t.Index >= 0 {
		return fmt.Sprintf("%s(%d)", t.Ident, t.Index)
	}
	return t.Ident
}

// PTUHeader is the decoded tag header of a PTU file.
type PTUHeader struct {
	Version string
	Tags    []PTUTag

	byName map[string]PTUTag
}

// ReadPTUHeader reads the magic, version, and all tags up to and including
// Header_End, leaving the reader positioned at the first TTTR record.
func ReadPTUHeader(r io.Reader) (*PTUHeader, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if !strings.HasPrefix(string(magic[:]), ptuMagic) {
		return nil, fmt.Errorf("not a PTU file (magic %q)", strings.TrimRight(string(magic[:]), "\x00"))
	}

	var version [8]byte
	if _, err := io.ReadFull(r, version[:]); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}

	hdr := &PTUHeader{
		Version: strings.TrimRight(string(version[:]), "\x00"),
		byName:  make(map[string]PTUTag),
	}

	for {
		tag, err := readTag(r)
		if err != nil {
			return nil, err
		}
		if tag.Ident == "Header_End" {
			return hdr, nil
		}
		hdr.Tags = append(hdr.Tags, tag)
		hdr.byName[tag.Name()] = tag
	}
}

// readTag decodes one 48-byte tag record plus any trailing payload.
func readTag(r io.Reader) (PTUTag, error) {
	var raw [48]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return PTUTag{}, fmt.Errorf("read tag record: %w", err)
	}

	tag := PTUTag{
		Ident: strings.TrimRight(string(raw[:32]), "\x00"),
		Index: int(int32(binary.LittleEndian.Uint32(raw[32:36]))),
	}
	typ := binary.LittleEndian.Uint32(raw[36:40])
	value := binary.LittleEndian.Uint64(raw[40:48])

	switch typ {
	case tyEmpty8:
		tag.Value = nil
	case tyBool8:
		tag.Value = value != 0
	case tyInt8, tyBitSet64, tyColor8:
		tag.Value = int64(value)
	case tyFloat8:
		tag.Value = math.Float64frombits(value)
	case tyTDateTime:
		// Days since 1899-12-30, kept as-is; nothing downstream needs it
		// as a time.Time.
		tag.Value = math.Float64frombits(value)
	case tyFloat8Array:
		n := int64(value)
		if n < 0 || n%8 != 0 {
			return PTUTag{}, fmt.Errorf("tag %s: bad float array length %d", tag.Ident, n)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return PTUTag{}, fmt.Errorf("tag %s payload: %w", tag.Ident, err)
		}
		vals := make([]float64, n/8)
		for i := range vals {
			vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
		}
		tag.Value = vals
	case tyAnsiString:
		buf := make([]byte, int64(value))
		if _, err := io.ReadFull(r, buf); err != nil {
			return PTUTag{}, fmt.Errorf("tag %s payload: %w", tag.Ident, err)
		}
		tag.Value = strings.TrimRight(string(buf), "\x00")
	case tyWideString:
		buf := make([]byte, int64(value))
		if _, err := io.ReadFull(r, buf); err != nil {
			return PTUTag{}, fmt.Errorf("tag %s payload: %w", tag.Ident, err)
		}
		tag.Value = decodeUTF16LE(buf)
	case tyBinaryBlob:
		buf := make([]byte, int64(value))
		if _, err := io.ReadFull(r, buf); err != nil {
			return PTUTag{}, fmt.Errorf("tag %s payload: %w", tag.Ident, err)
		}
		tag.Value = buf
	default:
		return PTUTag{}, fmt.Errorf("tag %s: unknown type 0x%08X", tag.Ident, typ)
	}

	return tag, nil
}

func decodeUTF16LE(b []byte) string {
	var sb strings.Builder
	for i := 0; i+1 < len(b); i += 2 {
		c := rune(binary.LittleEndian.Uint16(b[i:]))
		if c == 0 {
			break
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

// Int returns an integer tag value by name.
func (h *PTUHeader) Int(name string) (int64, bool) {
	tag, ok := h.byName[name]
	if !ok {
		return 0, false
	}
	v, ok := tag.Value.(int64)
	return v, ok
}

// Float returns a float tag value by name.
func (h *PTUHeader) Float(name string) (float64, bool) {
	tag, ok := h.byName[name]
	if !ok {
		return 0, false
	}
	v, ok := tag.Value.(float64)
	return v, ok
}

// String returns a string tag value by name.
func (h *PTUHeader) String(name string) (string, bool) {
	tag, ok := h.byName[name]
	if !ok {
		return "", false
	}
	v, ok := tag.Value.(string)
	return v, ok
}

// RecordTypeName returns a human-readable name for a TTTR record type id.
func RecordTypeName(id int64) string {
	switch id {
	case recPicoHarpT3:
		return "PicoHarp T3"
	case recPicoHarpT2:
		return "PicoHarp T2"
	case recHydraHarpT3:
		return "HydraHarp T3"
	case recHydraHarpT2:
		return "HydraHarp T2"
	case recHydraHarp2T3:
		return "HydraHarp v2 T3"
	case recHydraHarp2T2:
		return "HydraHarp v2 T2"
	case recTimeHarp260NT3:
		return "TimeHarp 260N T3"
	case recTimeHarp260NT2:
		return "TimeHarp 260N T2"
	case recTimeHarp260PT3:
		return "TimeHarp 260P T3"
	case recTimeHarp260PT2:
		return "TimeHarp 260P T2"
	case recMultiHarpT3:
		return "MultiHarp T3"
	case recMultiHarpT2:
		return "MultiHarp T2"
	default:
		return fmt.Sprintf("unknown (0x%08X)", id)
	}
}
