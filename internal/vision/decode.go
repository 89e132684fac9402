package vision

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrInvalidImage is returned when an upload cannot be decoded.
var ErrInvalidImage = errors.New("Uploaded file is not a valid image or could not be opened")

// VGG-family (caffe mode) per-channel means, BGR order.
var vggMeanBGR = [3]float32{103.939, 116.779, 123.68}

// Tensor is a float32 image batch of one in the layout of its InputSpec.
type Tensor struct {
	Shape []int64
	Data  []float32
}

func DecodeFile(path string, spec InputSpec) (*Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	defer f.Close()
	return Decode(f, spec)
}

// Decode reads any registered image format, forces three colour channels,
// resizes with nearest-neighbour sampling and applies VGG preprocessing:
// RGB to BGR and mean subtraction, no scaling.
func Decode(r io.Reader, spec InputSpec) (*Tensor, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, spec.Width, spec.Height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	h, w := spec.Height, spec.Width
	data := make([]float32, h*w*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := color.NRGBAModel.Convert(dst.At(x, y)).(color.NRGBA)
			bgr := [3]float32{float32(px.B), float32(px.G), float32(px.R)}
			for c := 0; c < 3; c++ {
				v := bgr[c] - vggMeanBGR[c]
				if spec.Order == ChannelsFirst {
					data[c*h*w+y*w+x] = v
				} else {
					data[(y*w+x)*3+c] = v
				}
			}
		}
	}

	return &Tensor{Shape: spec.Shape(), Data: data}, nil
}
