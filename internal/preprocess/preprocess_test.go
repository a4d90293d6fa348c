package preprocess

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(width, height int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodePNGAndJPEG(t *testing.T) {
	src := solidImage(31, 17, color.NRGBA{R: 10, G: 200, B: 30, A: 255})

	img, format, err := Decode(encodePNG(t, src))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, src.Bounds(), img.Bounds())

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, &jpeg.Options{Quality: 90}))
	img, format, err = Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 31, img.Bounds().Dx())
	assert.Equal(t, 17, img.Bounds().Dy())
}

func TestDecodeRejectsNoise(t *testing.T) {
	noise := make([]byte, 4096)
	rand.New(rand.NewSource(1)).Read(noise)
	// Keep the first bytes clear of any registered magic number.
	copy(noise, "noise")

	_, _, err := Decode(noise)
	assert.ErrorIs(t, err, image.ErrFormat)
}

func TestDecodeRejectsEmpty(t *testing.T) {
	_, _, err := Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestDecodeRejectsTruncatedPNG(t *testing.T) {
	data := encodePNG(t, solidImage(8, 8, color.White))
	_, _, err := Decode(data[:len(data)/2])
	assert.Error(t, err)
}

func TestResizeAlwaysProducesSquareInput(t *testing.T) {
	sizes := [][2]int{{1, 1}, {224, 224}, {640, 480}, {50, 900}, {1000, 3}, {223, 225}}
	for _, size := range sizes {
		img := solidImage(size[0], size[1], color.NRGBA{R: 1, G: 2, B: 3, A: 255})
		resized := Resize(img, InputSize)
		assert.Equal(t, image.Rect(0, 0, InputSize, InputSize), resized.Bounds(), "source %dx%d", size[0], size[1])
	}
}

func TestResizeHandlesOffsetBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 20, 40, 60))
	resized := Resize(img, InputSize)
	assert.Equal(t, image.Rect(0, 0, InputSize, InputSize), resized.Bounds())
}

func TestToRGBDropsAlpha(t *testing.T) {
	img := solidImage(2, 2, color.NRGBA{R: 200, G: 100, B: 50, A: 0x40})
	rgb := ToRGB(img)
	assert.Equal(t, []uint8{200, 100, 50, 0xff}, rgb.Pix[:4])
}

func TestNormalizeMidGray(t *testing.T) {
	img := solidImage(1, 1, color.NRGBA{R: 128, G: 128, B: 128, A: 255})

	tensor := Tensor(img)
	require.Equal(t, InputShape(), tensor.Shape)
	require.Len(t, tensor.Data, Channels*InputSize*InputSize)

	plane := InputSize * InputSize
	want := [Channels]float64{
		(128.0/255.0 - 0.485) / 0.229,
		(128.0/255.0 - 0.456) / 0.224,
		(128.0/255.0 - 0.406) / 0.225,
	}
	for c := 0; c < Channels; c++ {
		assert.InDelta(t, want[c], tensor.Data[c*plane], 1e-6, "channel %d", c)
		assert.InDelta(t, want[c], tensor.Data[(c+1)*plane-1], 1e-6, "channel %d", c)
	}
}

func TestNormalizeIsPlanarRGB(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{B: 255, A: 255})

	data := Normalize(img)
	require.Len(t, data, 6)

	red := func(v uint8) float32 { return (float32(v)/255 - Mean[0]) / Std[0] }
	green := func(v uint8) float32 { return (float32(v)/255 - Mean[1]) / Std[1] }
	blue := func(v uint8) float32 { return (float32(v)/255 - Mean[2]) / Std[2] }

	assert.Equal(t, []float32{
		red(255), red(0),
		green(0), green(0),
		blue(0), blue(255),
	}, data)
}

func TestTensorIsDeterministic(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 97, 61))
	rng := rand.New(rand.NewSource(7))
	rng.Read(img.Pix)

	a := Tensor(img)
	b := Tensor(img)
	assert.Equal(t, a.Data, b.Data)
}

// pngHeader returns a PNG signature and IHDR chunk declaring an 8-bit
// grayscale image of the given size, with no pixel data following.
func pngHeader(width, height uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], width)
	binary.BigEndian.PutUint32(ihdr[4:], height)
	ihdr[8] = 8 // bit depth; colour type, compression, filter and interlace stay 0

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecodeConfigReadsHeaderOnly(t *testing.T) {
	cfg, format, err := DecodeConfig(pngHeader(100000, 90000))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 100000, cfg.Width)
	assert.Equal(t, 90000, cfg.Height)
}

func TestDecodeConfigRejectsNoise(t *testing.T) {
	_, _, err := DecodeConfig([]byte("plain text, not an image"))
	assert.ErrorIs(t, err, image.ErrFormat)

	_, _, err = DecodeConfig(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)
}
