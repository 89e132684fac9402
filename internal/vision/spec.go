package vision

import "fmt"

type ChannelOrder string

const (
	ChannelsLast  ChannelOrder = "channels_last"
	ChannelsFirst ChannelOrder = "channels_first"
)

// DefaultInputSize is used for any dimension the artifact leaves open.
const DefaultInputSize = 224

// InputSpec is the image shape a loaded classifier expects. It is computed
// once when the artifact is loaded.
type InputSpec struct {
	Height int
	Width  int
	Order  ChannelOrder
}

func DefaultInputSpec() InputSpec {
	return InputSpec{Height: DefaultInputSize, Width: DefaultInputSize, Order: ChannelsLast}
}

// InputSpecFromShape reads a 4-D input shape. A last dimension of 1 or 3
// means channels-last ([N,H,W,C]), anything else channels-first ([N,C,H,W]).
// Non-positive dimensions are unknown and fall back to 224.
func InputSpecFromShape(dims []int64) InputSpec {
	spec := DefaultInputSpec()
	if len(dims) != 4 {
		return spec
	}

	var h, w int64
	if dims[3] == 1 || dims[3] == 3 {
		h, w = dims[1], dims[2]
	} else {
		spec.Order = ChannelsFirst
		h, w = dims[2], dims[3]
	}
	if h > 0 {
		spec.Height = int(h)
	}
	if w > 0 {
		spec.Width = int(w)
	}
	return spec
}

// Override replaces any non-zero field of s with the configured value.
func (s InputSpec) Override(height, width int, order ChannelOrder) InputSpec {
	if height > 0 {
		s.Height = height
	}
	if width > 0 {
		s.Width = width
	}
	if order != "" {
		s.Order = order
	}
	return s
}

func (s InputSpec) Validate() error {
	if s.Height <= 0 || s.Width <= 0 {
		return fmt.Errorf("invalid model input size %dx%d", s.Height, s.Width)
	}
	if s.Order != ChannelsLast && s.Order != ChannelsFirst {
		return fmt.Errorf("invalid channel order %q", s.Order)
	}
	return nil
}

// Shape is the tensor shape for a batch of one.
func (s InputSpec) Shape() []int64 {
	if s.Order == ChannelsFirst {
		return []int64{1, 3, int64(s.Height), int64(s.Width)}
	}
	return []int64{1, int64(s.Height), int64(s.Width), 3}
}
