// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"fmt"
	"image"
	"io"

	// decoders registered for image.Decode
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	"golang.org/x/image/draw"

	"github.com/devblok/umbra/core"
)

// TextureData is a tightly packed RGBA8 image
type TextureData struct {
	Width, Height uint32
	Pixels        []byte
}

// NewTextureData converts any image to RGBA8
func NewTextureData(img image.Image) (TextureData, error) {
	pixels, err := core.GetPixels(img, 0)
	if err != nil {
		return TextureData{}, err
	}
	return TextureData{
		Width:  uint32(img.Bounds().Dx()),
		Height: uint32(img.Bounds().Dy()),
		Pixels: pixels,
	}, nil
}

// SolidTexture is a single texel texture
func SolidTexture(r, g, b, a uint8) TextureData {
	return TextureData{Width: 1, Height: 1, Pixels: []byte{r, g, b, a}}
}

// DecodeTexture decodes a png, jpeg, bmp or tiff image. Images with a side
// longer than maxSize are scaled down to fit, keeping the aspect ratio.
// A maxSize of zero disables scaling.
func DecodeTexture(r io.Reader, maxSize int) (TextureData, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return TextureData{}, fmt.Errorf("decode texture: %w", err)
	}

	b := img.Bounds()
	if maxSize > 0 && (b.Dx() > maxSize || b.Dy() > maxSize) {
		w, h := maxSize, maxSize
		if b.Dx() > b.Dy() {
			h = max(1, b.Dy()*maxSize/b.Dx())
		} else {
			w = max(1, b.Dx()*maxSize/b.Dy())
		}
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, draw.Src, nil)
		img = scaled
	}

	tex, err := NewTextureData(img)
	if err != nil {
		return TextureData{}, fmt.Errorf("%s texture: %w", format, err)
	}
	return tex, nil
}
