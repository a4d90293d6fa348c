package preprocess

import (
	"image"
	"image/color"

	"github.com/Brownie44l1/id-validator/internal/model"
	"github.com/nfnt/resize"
)

const (
	Channels  = 3
	InputSize = 224
)

// ImageNet statistics, indexed R, G, B.
var (
	Mean = [Channels]float32{0.485, 0.456, 0.406}
	Std  = [Channels]float32{0.229, 0.224, 0.225}
)

// InputShape is the NCHW shape Tensor produces.
func InputShape() []int64 {
	return []int64{1, Channels, InputSize, InputSize}
}

// ToRGB copies img into an opaque 8-bit RGB buffer. Alpha is dropped rather
// than blended, so translucent pixels keep their straight colour.
func ToRGB(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	rgb := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			i := rgb.PixOffset(x-bounds.Min.X, y-bounds.Min.Y)
			rgb.Pix[i+0] = c.R
			rgb.Pix[i+1] = c.G
			rgb.Pix[i+2] = c.B
			rgb.Pix[i+3] = 0xff
		}
	}
	return rgb
}

// Resize scales img to size×size with a triangle (bilinear) filter. The
// aspect ratio is not preserved.
func Resize(img image.Image, size int) *image.RGBA {
	resized := resize.Resize(uint(size), uint(size), ToRGB(img), resize.Bilinear)
	if rgba, ok := resized.(*image.RGBA); ok {
		return rgba
	}
	return ToRGB(resized)
}

// Normalize lays img out as planar CHW float32 values with every channel
// scaled to [0,1] and standardized with Mean and Std.
func Normalize(img *image.RGBA) []float32 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height

	data := make([]float32, Channels*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := img.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			pixelIndex := y*width + x
			for c := 0; c < Channels; c++ {
				value := float32(img.Pix[i+c]) / 255.0
				data[c*plane+pixelIndex] = (value - Mean[c]) / Std[c]
			}
		}
	}
	return data
}

// Tensor resizes img to InputSize and returns the normalized (1,3,224,224)
// model input.
func Tensor(img image.Image) model.Tensor {
	return model.NewTensor(InputShape(), Normalize(Resize(img, InputSize)))
}
