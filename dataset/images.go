package dataset

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

// FromImages builds an RGB tensor from decoded images. Images whose bounds
// differ from width×height are resized with a Lanczos filter so that every
// sample has the same shape. Pixel values are kept on the 0–255 scale.
func FromImages(imgs []image.Image, width, height int) (*ImageTensor, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.NewValueError("FromImages", "width and height must be positive")
	}
	t, err := NewImageTensor(len(imgs), height, width, 3, nil)
	if err != nil {
		return nil, err
	}
	for n, img := range imgs {
		b := img.Bounds()
		var nrgba *image.NRGBA
		if b.Dx() != width || b.Dy() != height {
			nrgba = imaging.Resize(img, width, height, imaging.Lanczos)
		} else {
			nrgba = imaging.Clone(img)
		}
		for h := 0; h < height; h++ {
			for w := 0; w < width; w++ {
				i := nrgba.PixOffset(w, h)
				t.Set(n, h, w, 0, float64(nrgba.Pix[i]))
				t.Set(n, h, w, 1, float64(nrgba.Pix[i+1]))
				t.Set(n, h, w, 2, float64(nrgba.Pix[i+2]))
			}
		}
	}
	return t, nil
}

// LoadImages opens and decodes image files in order.
func LoadImages(paths []string) ([]image.Image, error) {
	imgs := make([]image.Image, 0, len(paths))
	for _, p := range paths {
		img, err := imaging.Open(p)
		if err != nil {
			return nil, errors.Wrapf(err, "loading image %s", p)
		}
		imgs = append(imgs, img)
	}
	return imgs, nil
}
