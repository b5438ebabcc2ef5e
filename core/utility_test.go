// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"image"
	"image/color"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/umbra/core"
)

var testImage = func() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 256, 256))
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}()

func TestGetPixels(t *testing.T) {
	c := qt.New(t)

	img := image.NewNRGBA(image.Rect(10, 10, 13, 12))
	img.Set(10, 10, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	img.Set(12, 11, color.NRGBA{R: 4, G: 5, B: 6, A: 255})

	pixels, err := core.GetPixels(img, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(pixels, qt.HasLen, 3*2*4)
	c.Assert(pixels[:4], qt.DeepEquals, []uint8{1, 2, 3, 255})
	c.Assert(pixels[20:], qt.DeepEquals, []uint8{4, 5, 6, 255})

	padded, err := core.GetPixels(img, 16)
	c.Assert(err, qt.IsNil)
	c.Assert(padded, qt.HasLen, 2*16)
	c.Assert(padded[16+8:16+12], qt.DeepEquals, []uint8{4, 5, 6, 255})

	_, err = core.GetPixels(image.NewRGBA(image.Rectangle{}), 0)
	c.Assert(err, qt.ErrorMatches, "image has no pixels")
}

func TestSliceUint32(t *testing.T) {
	c := qt.New(t)
	c.Assert(core.SliceUint32([]byte{1, 2}), qt.IsNil)
	c.Assert(core.SliceUint32([]byte{0x03, 0x02, 0x23, 0x07, 0xff}), qt.DeepEquals, []uint32{0x07230203})
}

func BenchmarkSliceUint32Small(b *testing.B) {
	data := make([]byte, 100)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}

func BenchmarkSliceUint32Medium(b *testing.B) {
	data := make([]byte, 1000)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}

func BenchmarkSliceUint32Big(b *testing.B) {
	data := make([]byte, 100000)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}

func BenchmarkGetPixelsNoRowPitch(b *testing.B) {
	for idx := 0; idx < b.N; idx++ {
		core.GetPixels(testImage, 0)
	}
}

func BenchmarkGetPixelsBigRowPitch(b *testing.B) {
	for idx := 0; idx < b.N; idx++ {
		core.GetPixels(testImage, 2048)
	}
}
