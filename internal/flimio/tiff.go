package flimio

import (
	"encoding/binary"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"

	"golang.org/x/image/tiff"

	"phasor-studio/internal/signal"
)

// TIFF tag ids used by the page walker.
const (
	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagImageDescription = 270
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
)

// tiffPage describes one IFD of a FLIM TIFF stack.
type tiffPage struct {
	width, height   int
	bitsPerSample   int
	compression     int
	samplesPerPixel int
	rowsPerStrip    int
	stripOffsets    []int64
	stripCounts     []int64
	description     string
}

// LoadTIFF reads a FLIM TIFF stack where each page is one arrival-time bin
// of a grayscale image. Multi-page files are read with a hand-rolled IFD
// walk since the stdlib-adjacent decoder only surfaces the first page;
// single-page files go through x/image/tiff directly.
func LoadTIFF(path string) (*signal.Signal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	pages, order, err := walkTIFFPages(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if len(pages) == 1 {
		sig, err := loadSinglePageTIFF(path)
		if err != nil {
			return nil, err
		}
		sig.FrequencyMHz = descriptionFrequencyMHz(pages[0].description)
		return sig, nil
	}

	first := pages[0]
	for i, p := range pages {
		if p.width != first.width || p.height != first.height {
			return nil, fmt.Errorf("%s: page %d is %dx%d, page 0 is %dx%d",
				path, i, p.width, p.height, first.width, first.height)
		}
		if p.compression != 1 {
			return nil, fmt.Errorf("%s: page %d uses compression %d; only uncompressed stacks are supported",
				path, i, p.compression)
		}
		if p.samplesPerPixel != 1 {
			return nil, fmt.Errorf("%s: page %d has %d samples per pixel; expected grayscale",
				path, i, p.samplesPerPixel)
		}
		if p.bitsPerSample != 8 && p.bitsPerSample != 16 {
			return nil, fmt.Errorf("%s: page %d has %d bits per sample; expected 8 or 16",
				path, i, p.bitsPerSample)
		}
	}

	sig, err := signal.New(len(pages), first.height, first.width)
	if err != nil {
		return nil, err
	}
	sig.Path = path
	sig.FrequencyMHz = descriptionFrequencyMHz(first.description)

	for bin, p := range pages {
		if err := readPagePixels(data, order, p, sig, bin); err != nil {
			return nil, fmt.Errorf("%s: page %d: %w", path, bin, err)
		}
	}
	return sig, nil
}

// walkTIFFPages parses the TIFF header and follows the IFD chain,
// collecting the tags needed to read each page's pixel data.
func walkTIFFPages(data []byte) ([]tiffPage, binary.ByteOrder, error) {
	if len(data) < 8 {
		return nil, nil, fmt.Errorf("file too short for a TIFF header")
	}

	var order binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		order = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, nil, fmt.Errorf("not a valid TIFF file")
	}
	if order.Uint16(data[2:4]) != 42 {
		return nil, nil, fmt.Errorf("bad TIFF version marker")
	}

	var pages []tiffPage
	offset := int64(order.Uint32(data[4:8]))
	for offset != 0 {
		if len(pages) > 65535 {
			return nil, nil, fmt.Errorf("IFD chain loop detected")
		}
		page, next, err := readIFD(data, order, offset)
		if err != nil {
			return nil, nil, err
		}
		pages = append(pages, page)
		offset = next
	}
	if len(pages) == 0 {
		return nil, nil, fmt.Errorf("no IFDs found")
	}
	return pages, order, nil
}

// readIFD decodes one image file directory and returns the offset of the
// next one (0 for the last).
func readIFD(data []byte, order binary.ByteOrder, offset int64) (tiffPage, int64, error) {
	page := tiffPage{compression: 1, samplesPerPixel: 1, bitsPerSample: 8}

	if offset < 0 || offset+2 > int64(len(data)) {
		return page, 0, fmt.Errorf("IFD offset %d out of range", offset)
	}
	numEntries := int(order.Uint16(data[offset : offset+2]))
	entriesEnd := offset + 2 + int64(numEntries)*12
	if entriesEnd+4 > int64(len(data)) {
		return page, 0, fmt.Errorf("truncated IFD at offset %d", offset)
	}

	for i := 0; i < numEntries; i++ {
		entry := data[offset+2+int64(i)*12:]
		tag := int(order.Uint16(entry[0:2]))
		fieldType := int(order.Uint16(entry[2:4]))
		count := int64(order.Uint32(entry[4:8]))

		switch tag {
		case tagImageWidth:
			page.width = int(entryValue(entry, order, fieldType))
		case tagImageLength:
			page.height = int(entryValue(entry, order, fieldType))
		case tagBitsPerSample:
			page.bitsPerSample = int(entryValue(entry, order, fieldType))
		case tagCompression:
			page.compression = int(entryValue(entry, order, fieldType))
		case tagSamplesPerPixel:
			page.samplesPerPixel = int(entryValue(entry, order, fieldType))
		case tagRowsPerStrip:
			page.rowsPerStrip = int(entryValue(entry, order, fieldType))
		case tagStripOffsets:
			vals, err := entryValues(data, entry, order, fieldType, count)
			if err != nil {
				return page, 0, fmt.Errorf("strip offsets: %w", err)
			}
			page.stripOffsets = vals
		case tagStripByteCounts:
			vals, err := entryValues(data, entry, order, fieldType, count)
			if err != nil {
				return page, 0, fmt.Errorf("strip byte counts: %w", err)
			}
			page.stripCounts = vals
		case tagImageDescription:
			raw, err := entryBytes(data, entry, order, count)
			if err == nil {
				page.description = strings.TrimRight(string(raw), "\x00")
			}
		}
	}

	if page.width < 1 || page.height < 1 {
		return page, 0, fmt.Errorf("IFD at %d has no image dimensions", offset)
	}
	if len(page.stripOffsets) == 0 || len(page.stripOffsets) != len(page.stripCounts) {
		return page, 0, fmt.Errorf("IFD at %d has inconsistent strip layout", offset)
	}
	if page.rowsPerStrip == 0 {
		page.rowsPerStrip = page.height
	}

	next := int64(order.Uint32(data[entriesEnd : entriesEnd+4]))
	return page, next, nil
}

// entryValue extracts a single SHORT or LONG value stored inline.
func entryValue(entry []byte, order binary.ByteOrder, fieldType int) int64 {
	switch fieldType {
	case 3: // SHORT
		return int64(order.Uint16(entry[8:10]))
	case 4: // LONG
		return int64(order.Uint32(entry[8:12]))
	default:
		return 0
	}
}

// entryValues extracts a SHORT or LONG array, inline or at an offset.
func entryValues(data, entry []byte, order binary.ByteOrder, fieldType int, count int64) ([]int64, error) {
	var size int64
	switch fieldType {
	case 3:
		size = 2
	case 4:
		size = 4
	default:
		return nil, fmt.Errorf("unsupported field type %d", fieldType)
	}

	raw := entry[8:12]
	if count*size > 4 {
		off := int64(order.Uint32(entry[8:12]))
		if off < 0 || off+count*size > int64(len(data)) {
			return nil, fmt.Errorf("value offset %d out of range", off)
		}
		raw = data[off : off+count*size]
	}

	vals := make([]int64, count)
	for i := int64(0); i < count; i++ {
		if fieldType == 3 {
			vals[i] = int64(order.Uint16(raw[i*2:]))
		} else {
			vals[i] = int64(order.Uint32(raw[i*4:]))
		}
	}
	return vals, nil
}

// entryBytes extracts an ASCII or byte field, inline or at an offset.
func entryBytes(data, entry []byte, order binary.ByteOrder, count int64) ([]byte, error) {
	if count <= 4 {
		return entry[8 : 8+count], nil
	}
	off := int64(order.Uint32(entry[8:12]))
	if off < 0 || off+count > int64(len(data)) {
		return nil, fmt.Errorf("value offset %d out of range", off)
	}
	return data[off : off+count], nil
}

// readPagePixels copies one page's strip data into time bin `bin`.
func readPagePixels(data []byte, order binary.ByteOrder, p tiffPage, sig *signal.Signal, bin int) error {
	bytesPerPixel := p.bitsPerSample / 8
	row := 0
	for s := range p.stripOffsets {
		off, cnt := p.stripOffsets[s], p.stripCounts[s]
		if off < 0 || off+cnt > int64(len(data)) {
			return fmt.Errorf("strip %d out of range", s)
		}
		strip := data[off : off+cnt]

		rows := int(cnt) / (p.width * bytesPerPixel)
		for r := 0; r < rows && row < p.height; r++ {
			line := strip[r*p.width*bytesPerPixel:]
			for x := 0; x < p.width; x++ {
				var v float64
				if p.bitsPerSample == 8 {
					v = float64(line[x])
				} else {
					v = float64(order.Uint16(line[x*2:]))
				}
				sig.Counts[sig.Index(bin, row, x)] = v
			}
			row++
		}
	}
	if row != p.height {
		return fmt.Errorf("strips cover %d rows, expected %d", row, p.height)
	}
	return nil
}

// loadSinglePageTIFF decodes a one-page file via x/image/tiff as a
// single-bin signal. Such files only carry intensity, so phasor analysis
// needs the time axis from elsewhere, but import and inspection work.
func loadSinglePageTIFF(path string) (*signal.Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	bounds := img.Bounds()
	sig, err := signal.New(1, bounds.Dy(), bounds.Dx())
	if err != nil {
		return nil, err
	}
	sig.Path = path

	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			switch px := img.(type) {
			case *image.Gray:
				sig.Counts[sig.Index(0, y, x)] = float64(px.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			case *image.Gray16:
				sig.Counts[sig.Index(0, y, x)] = float64(px.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y)
			default:
				r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				sig.Counts[sig.Index(0, y, x)] = float64(r+g+b) / 3 / 257
			}
		}
	}
	return sig, nil
}

// descriptionFrequencyMHz scans an ImageDescription blob for a laser
// repetition frequency. Acquisition software embeds metadata in varying
// shapes; this looks for "frequency" followed by a number, with an
// optional Hz/kHz/MHz unit nearby.
func descriptionFrequencyMHz(desc string) float64 {
	lower := strings.ToLower(desc)
	idx := strings.Index(lower, "frequency")
	if idx < 0 {
		return 0
	}
	rest := lower[idx+len("frequency"):]

	// Skip separators up to the number.
	start := -1
	for i, c := range rest {
		if c >= '0' && c <= '9' {
			start = i
			break
		}
		if i > 32 {
			break
		}
	}
	if start < 0 {
		return 0
	}
	end := start
	for end < len(rest) && (rest[end] == '.' || rest[end] == 'e' || rest[end] == '+' ||
		rest[end] == '-' || (rest[end] >= '0' && rest[end] <= '9')) {
		end++
	}
	val, err := strconv.ParseFloat(rest[start:end], 64)
	if err != nil || val <= 0 {
		return 0
	}

	unit := strings.TrimSpace(rest[end:])
	switch {
	case strings.HasPrefix(unit, "mhz"):
		return val
	case strings.HasPrefix(unit, "khz"):
		return val / 1e3
	case strings.HasPrefix(unit, "hz"):
		return val / 1e6
	}
	// No unit: frequencies in plausible MHz range pass through, large
	// values are assumed to be Hz.
	if val > 1e4 {
		return val / 1e6
	}
	return val
}
