package image

import (
	"bytes"
	"image"
	"image/jpeg"
	"io"
)

func RGBToRGBA(in, out []byte, width, height int) {
	outStride := width * 4
	inStride := len(in) / height

	for i := 0; i < height; i++ {
		oIndex := i * outStride
		iIndex := i * inStride
		for j := 0; j < width; j++ {
			out[oIndex] = in[iIndex]
			out[oIndex+1] = in[iIndex+1]
			out[oIndex+2] = in[iIndex+2]
			out[oIndex+3] = 0xff

			oIndex += 4
			iIndex += 3
		}
	}
}

// DecodeRGB wraps a packed RGB24 buffer into an opaque RGBA image.
func DecodeRGB(data []byte, width, height int) image.Image {
	i := image.NewRGBA(image.Rect(0, 0, width, height))
	RGBToRGBA(data, i.Pix, width, height)

	return i
}

func EncodeJPEG(img image.Image, dst io.Writer, quality int) error {
	return jpeg.Encode(dst, img, &jpeg.Options{Quality: quality})
}

// TestPattern renders a width x height JPEG of horizontal bars whose hue
// shifts with n, so consecutive frames are distinguishable.
func TestPattern(width, height, n int) ([]byte, error) {
	rgb := make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		bar := byte((y*8/height + n) % 8)
		for x := 0; x < width; x++ {
			i := (y*width + x) * 3
			rgb[i] = bar * 32
			rgb[i+1] = byte(x * 255 / width)
			rgb[i+2] = 255 - bar*32
		}
	}

	var buf bytes.Buffer
	if err := EncodeJPEG(DecodeRGB(rgb, width, height), &buf, 80); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
