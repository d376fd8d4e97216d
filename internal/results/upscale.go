package results

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// ScaleUpscaler enlarges images with a resampling kernel. It stands in for a
// learned upscaler behind the same hand-off.
type ScaleUpscaler struct {
	Factor int
	kernel draw.Interpolator
	name   string
}

// NewCatmullRom returns an upscaler using the Catmull-Rom kernel.
func NewCatmullRom(factor int) *ScaleUpscaler {
	if factor < 2 {
		factor = 2
	}
	return &ScaleUpscaler{Factor: factor, kernel: draw.CatmullRom, name: "catmull-rom"}
}

// Label identifies the upscaler on result records.
func (u *ScaleUpscaler) Label() string { return fmt.Sprintf("%s-%dx", u.name, u.Factor) }

// Upscale returns the enlarged image and the label recorded on the result.
func (u *ScaleUpscaler) Upscale(ctx context.Context, img image.Image) (image.Image, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if img == nil {
		return nil, "", fmt.Errorf("upscale: nil image")
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*u.Factor, b.Dy()*u.Factor))
	u.kernel.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst, u.Label(), nil
}

// Thumbnail scales img down so its longer side is at most maxSide.
// Images already within bounds are returned unchanged.
func Thumbnail(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img
	}
	if w >= h {
		h = max(1, h*maxSide/w)
		w = maxSide
	} else {
		w = max(1, w*maxSide/h)
		h = maxSide
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
