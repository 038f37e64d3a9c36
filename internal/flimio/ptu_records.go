package flimio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"phasor-studio/internal/signal"
)

// t3Event is one decoded T3 record of interest.
type t3Event struct {
	sync    uint64 // absolute sync counter
	dtime   int    // arrival-time bin
	channel int    // 0-based detector channel; -1 for markers
	markers uint8  // marker bit mask, 0 for photons
}

// t3Decoder converts raw 32-bit records into t3Events, tracking sync
// counter overflows.
type t3Decoder struct {
	recType  int64
	overflow uint64
}

// decode returns the event for one record and whether it is relevant
// (photon or marker). Overflow records only update internal state.
func (d *t3Decoder) decode(rec uint32) (t3Event, bool) {
	switch d.recType {
	case recPicoHarpT3:
		nsync := uint64(rec & 0xFFFF)
		dtime := int((rec >> 16) & 0xFFF)
		ch := rec >> 28
		if ch == 0xF {
			// Special record: low dtime bits carry markers, zero means
			// a sync counter overflow.
			if dtime&0xF == 0 {
				d.overflow += 65536
				return t3Event{}, false
			}
			return t3Event{sync: d.overflow + nsync, channel: -1, markers: uint8(dtime & 0xF)}, true
		}
		// PicoHarp photon channels are 1-based in the record.
		return t3Event{sync: d.overflow + nsync, dtime: dtime, channel: int(ch) - 1}, true

	default:
		// HydraHarp, TimeHarp 260, MultiHarp share the generic layout.
		special := rec >> 31
		ch := int((rec >> 25) & 0x3F)
		dtime := int((rec >> 10) & 0x7FFF)
		nsync := uint64(rec & 0x3FF)
		if special == 1 {
			if ch == 0x3F {
				if d.recType == recHydraHarpT3 {
					d.overflow += 1024
				} else {
					n := nsync
					if n == 0 {
						n = 1
					}
					d.overflow += 1024 * n
				}
				return t3Event{}, false
			}
			if ch >= 1 && ch <= 15 {
				return t3Event{sync: d.overflow + nsync, channel: -1, markers: uint8(ch)}, true
			}
			return t3Event{}, false
		}
		return t3Event{sync: d.overflow + nsync, dtime: dtime, channel: ch}, true
	}
}

// ptuImaging holds the scan geometry tags needed to place photons.
type ptuImaging struct {
	pixX, pixY  int
	lineStart   uint8 // marker bit flagging line start
	lineStop    uint8 // marker bit flagging line stop
	frame       uint8 // marker bit flagging frame boundary, 0 if absent
	bidirection bool
}

func imagingFromHeader(hdr *PTUHeader) (ptuImaging, error) {
	var img ptuImaging
	px, okX := hdr.Int("ImgHdr_PixX")
	py, okY := hdr.Int("ImgHdr_PixY")
	if !okX || !okY || px < 1 || py < 1 {
		return img, fmt.Errorf("no scan geometry (ImgHdr_PixX/PixY): not an imaging acquisition")
	}
	img.pixX = int(px)
	img.pixY = int(py)

	if v, ok := hdr.Int("ImgHdr_LineStart"); ok && v >= 1 && v <= 8 {
		img.lineStart = 1 << (v - 1)
	}
	if v, ok := hdr.Int("ImgHdr_LineStop"); ok && v >= 1 && v <= 8 {
		img.lineStop = 1 << (v - 1)
	}
	if v, ok := hdr.Int("ImgHdr_Frame"); ok && v >= 1 && v <= 8 {
		img.frame = 1 << (v - 1)
	}
	if v, ok := hdr.Int("ImgHdr_BiDirect"); ok && v != 0 {
		img.bidirection = true
	}
	if img.lineStart == 0 || img.lineStop == 0 {
		return img, fmt.Errorf("no line markers (ImgHdr_LineStart/LineStop) in header")
	}
	return img, nil
}

// PTUStats summarizes a decoded record stream, used by diagnostics tools.
type PTUStats struct {
	Records        int
	Photons        int
	PhotonsByChan  map[int]int
	Markers        int
	Lines          int
	Frames         int
	DroppedNoLine  int // photons outside an active line
	DroppedDtime   int // photons with arrival bin past the histogram
	DroppedChannel int // photons on unselected channels
}

// LoadPTU reads a PicoQuant PTU file in T3 imaging mode and histograms the
// selected channel's photons into an H x Y x X signal.
func LoadPTU(path string, channel int) (*signal.Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sig, _, err := DecodePTU(bufio.NewReaderSize(f, 1<<20), channel)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	sig.Path = path
	return sig, nil
}

// DecodePTU decodes a PTU stream. The returned stats describe the whole
// record stream regardless of the channel filter.
func DecodePTU(r io.Reader, channel int) (*signal.Signal, *PTUStats, error) {
	hdr, err := ReadPTUHeader(r)
	if err != nil {
		return nil, nil, err
	}

	recType, ok := hdr.Int("TTResultFormat_TTTRRecType")
	if !ok {
		return nil, nil, fmt.Errorf("missing TTResultFormat_TTTRRecType tag")
	}
	switch recType {
	case recPicoHarpT3, recHydraHarpT3, recHydraHarp2T3,
		recTimeHarp260NT3, recTimeHarp260PT3, recMultiHarpT3:
		// supported
	default:
		return nil, nil, fmt.Errorf("unsupported record format %s: FLIM imaging requires T3 mode",
			RecordTypeName(recType))
	}

	img, err := imagingFromHeader(hdr)
	if err != nil {
		return nil, nil, err
	}

	bins, binWidthNS, freqMHz, err := timingFromHeader(hdr)
	if err != nil {
		return nil, nil, err
	}

	sig, err := signal.New(bins, img.pixY, img.pixX)
	if err != nil {
		return nil, nil, err
	}
	sig.FrequencyMHz = freqMHz
	sig.BinWidthNS = binWidthNS
	sig.Channel = channel

	stats := &PTUStats{PhotonsByChan: make(map[int]int)}
	dec := &t3Decoder{recType: recType}

	var (
		lineActive bool
		lineStart  uint64
		lineY      int
		buffered   []linePhoton
		rawRec     [4]byte
	)

	for {
		if _, err := io.ReadFull(r, rawRec[:]); err != nil {
			if err == io.EOF {
				break
			}
			if err == io.ErrUnexpectedEOF {
				return nil, nil, fmt.Errorf("truncated record stream after %d records", stats.Records)
			}
			return nil, nil, fmt.Errorf("read record: %w", err)
		}
		stats.Records++

		ev, relevant := dec.decode(binary.LittleEndian.Uint32(rawRec[:]))
		if !relevant {
			continue
		}

		if ev.channel < 0 {
			stats.Markers++
			if img.frame != 0 && ev.markers&img.frame != 0 {
				stats.Frames++
				lineY = 0
				lineActive = false
				buffered = buffered[:0]
			}
			// A single marker can flag both start and stop when the scanner
			// uses one toggle line.
			if ev.markers&img.lineStop != 0 && lineActive {
				stats.Lines++
				// Bidirectional scanners sweep odd lines right to left.
				reverse := img.bidirection && lineY%2 == 1
				flushLine(sig, buffered, lineStart, ev.sync, lineY, img.pixX, reverse)
				buffered = buffered[:0]
				lineActive = false
				lineY++
				if lineY >= img.pixY {
					lineY = 0
				}
				continue
			}
			if ev.markers&img.lineStart != 0 && !lineActive {
				lineActive = true
				lineStart = ev.sync
			}
			continue
		}

		stats.Photons++
		stats.PhotonsByChan[ev.channel]++
		if ev.channel != channel {
			stats.DroppedChannel++
			continue
		}
		if !lineActive {
			stats.DroppedNoLine++
			continue
		}
		if ev.dtime >= bins {
			stats.DroppedDtime++
			continue
		}
		buffered = append(buffered, linePhoton{sync: ev.sync, dtime: ev.dtime})
	}

	if stats.Lines == 0 {
		return nil, stats, fmt.Errorf("no complete scan lines found in record stream")
	}
	if stats.PhotonsByChan[channel] == 0 {
		return nil, stats, fmt.Errorf("no photons on channel %d; channels present: %v",
			channel, channelList(stats.PhotonsByChan))
	}
	return sig, stats, nil
}

// linePhoton is a photon buffered while its scan line is still open.
type linePhoton struct {
	sync  uint64
	dtime int
}

// flushLine assigns the buffered photons of one completed line to pixels
// by their fractional position between the line start and stop syncs.
// reverse mirrors the position for return sweeps of bidirectional scans.
func flushLine(sig *signal.Signal, photons []linePhoton, start, stop uint64, y, pixX int, reverse bool) {
	if stop <= start || y < 0 || y >= sig.Height {
		return
	}
	span := float64(stop - start)
	for _, p := range photons {
		if p.sync < start || p.sync > stop {
			continue
		}
		x := int(float64(p.sync-start) / span * float64(pixX))
		if x >= pixX {
			x = pixX - 1
		}
		if reverse {
			x = pixX - 1 - x
		}
		sig.Add(p.dtime, y, x, 1)
	}
}

// timingFromHeader derives the histogram bin count, bin width, and laser
// frequency from the measurement description tags.
func timingFromHeader(hdr *PTUHeader) (bins int, binWidthNS, freqMHz float64, err error) {
	res, okR := hdr.Float("MeasDesc_Resolution")
	global, okG := hdr.Float("MeasDesc_GlobalResolution")
	if !okR || !okG || res <= 0 || global <= 0 {
		return 0, 0, 0, fmt.Errorf("missing timing tags (MeasDesc_Resolution/GlobalResolution)")
	}

	bins = int(global/res + 0.5)
	if bins < 1 {
		bins = 1
	}
	if bins > 32768 {
		bins = 32768
	}

	binWidthNS = res * 1e9
	if rate, ok := hdr.Int("TTResult_SyncRate"); ok && rate > 0 {
		freqMHz = float64(rate) / 1e6
	} else {
		freqMHz = 1 / global / 1e6
	}
	return bins, binWidthNS, freqMHz, nil
}

func channelList(byChan map[int]int) []int {
	chans := make([]int, 0, len(byChan))
	for ch, n := range byChan {
		if n > 0 {
			chans = append(chans, ch)
		}
	}
	sort.Ints(chans)
	return chans
}
