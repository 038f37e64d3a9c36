package flimio

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

// writeStackTIFF assembles a little-endian multi-page TIFF with one
// uncompressed 8-bit grayscale page per element of pixels. Every page is
// width x height, one strip each.
func writeStackTIFF(t *testing.T, width, height int, pixels [][]byte) string {
	t.Helper()

	const numEntries = 8
	ifdSize := int64(2 + numEntries*12 + 4)
	pageSize := int64(width * height)

	var buf bytes.Buffer
	le := binary.LittleEndian

	dataStart := int64(8)
	ifdStart := dataStart + int64(len(pixels))*pageSize

	buf.WriteString("II")
	binary.Write(&buf, le, uint16(42))
	binary.Write(&buf, le, uint32(ifdStart))

	for i, p := range pixels {
		require.Len(t, p, width*height, "page %d", i)
		buf.Write(p)
	}

	entry := func(tag, fieldType uint16, count, value uint32) {
		binary.Write(&buf, le, tag)
		binary.Write(&buf, le, fieldType)
		binary.Write(&buf, le, count)
		if fieldType == 3 {
			binary.Write(&buf, le, uint16(value))
			binary.Write(&buf, le, uint16(0))
		} else {
			binary.Write(&buf, le, value)
		}
	}

	for p := range pixels {
		binary.Write(&buf, le, uint16(numEntries))
		entry(tagImageWidth, 3, 1, uint32(width))
		entry(tagImageLength, 3, 1, uint32(height))
		entry(tagBitsPerSample, 3, 1, 8)
		entry(tagCompression, 3, 1, 1)
		entry(tagStripOffsets, 4, 1, uint32(dataStart+int64(p)*pageSize))
		entry(tagSamplesPerPixel, 3, 1, 1)
		entry(tagRowsPerStrip, 3, 1, uint32(height))
		entry(tagStripByteCounts, 4, 1, uint32(pageSize))

		next := uint32(0)
		if p != len(pixels)-1 {
			next = uint32(ifdStart + int64(p+1)*ifdSize)
		}
		binary.Write(&buf, le, next)
	}

	path := filepath.Join(t.TempDir(), "stack.tiff")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestLoadTIFFStack(t *testing.T) {
	path := writeStackTIFF(t, 2, 2, [][]byte{
		{1, 2, 3, 4},
		{5, 6, 7, 8},
		{9, 10, 11, 12},
	})

	sig, err := LoadTIFF(path)
	require.NoError(t, err)

	assert.Equal(t, 3, sig.Bins)
	assert.Equal(t, 2, sig.Height)
	assert.Equal(t, 2, sig.Width)
	assert.Equal(t, path, sig.Path)

	assert.Equal(t, 1.0, sig.At(0, 0, 0))
	assert.Equal(t, 4.0, sig.At(0, 1, 1))
	assert.Equal(t, 6.0, sig.At(1, 0, 1))
	assert.Equal(t, 11.0, sig.At(2, 1, 0))
	assert.Equal(t, 78.0, sig.TotalCount())
}

func TestLoadTIFFSinglePage(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 3, 2))
	img.SetGray16(0, 0, color.Gray16{Y: 500})
	img.SetGray16(2, 1, color.Gray16{Y: 1000})

	path := filepath.Join(t.TempDir(), "intensity.tif")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, tiff.Encode(f, img, nil))
	require.NoError(t, f.Close())

	sig, err := LoadTIFF(path)
	require.NoError(t, err)
	assert.Equal(t, 1, sig.Bins)
	assert.Equal(t, 2, sig.Height)
	assert.Equal(t, 3, sig.Width)
	assert.Equal(t, 500.0, sig.At(0, 0, 0))
	assert.Equal(t, 1000.0, sig.At(0, 1, 2))
}

func TestLoadTIFFErrors(t *testing.T) {
	t.Run("not a TIFF", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.tif")
		require.NoError(t, os.WriteFile(path, []byte("PQTTTR junk"), 0o644))
		_, err := LoadTIFF(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTIFF(filepath.Join(t.TempDir(), "missing.tif"))
		assert.Error(t, err)
	})
}

func TestDescriptionFrequencyMHz(t *testing.T) {
	cases := []struct {
		desc string
		want float64
	}{
		{"frequency = 80 MHz", 80},
		{"Frequency: 80000 kHz", 80},
		{"frequency=80000000 Hz", 80},
		{"frequency 80000000", 80},
		{"frequency 80", 80},
		{"no metadata here", 0},
		{"frequency unknown", 0},
		{"", 0},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, descriptionFrequencyMHz(c.desc), 1e-9, "%q", c.desc)
	}
}

func TestWriteIntensityTIFF(t *testing.T) {
	t.Run("roundtrip", func(t *testing.T) {
		plane := [][]float64{
			{0, 50},
			{math.NaN(), 100},
		}
		path := filepath.Join(t.TempDir(), "sum.tiff")
		require.NoError(t, WriteIntensityTIFF(path, plane))

		f, err := os.Open(path)
		require.NoError(t, err)
		defer f.Close()
		img, err := tiff.Decode(f)
		require.NoError(t, err)

		gray, ok := img.(*image.Gray16)
		require.True(t, ok)
		assert.Equal(t, uint16(0), gray.Gray16At(0, 0).Y)
		assert.Equal(t, uint16(0), gray.Gray16At(0, 1).Y) // NaN maps to zero
		assert.Equal(t, uint16(65535), gray.Gray16At(1, 1).Y)
		assert.InDelta(t, 65535.0/2, float64(gray.Gray16At(1, 0).Y), 1)
	})

	t.Run("empty plane rejected", func(t *testing.T) {
		err := WriteIntensityTIFF(filepath.Join(t.TempDir(), "x.tiff"), nil)
		assert.Error(t, err)
	})
}

func TestLoadDispatch(t *testing.T) {
	_, err := Load("sample.dat", 0)
	assert.ErrorContains(t, err, "unsupported file extension")

	assert.True(t, IsSupportedFormat("a.ptu"))
	assert.True(t, IsSupportedFormat("A.TIFF"))
	assert.False(t, IsSupportedFormat("a.png"))
	assert.Equal(t, []string{".ptu", ".tif", ".tiff"}, SupportedFormats())
}
