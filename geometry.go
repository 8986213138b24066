package pptxtemplate

import "math"

// Box is a shape's bounding box on the slide, in EMU.
type Box struct {
	X  int64 // left
	Y  int64 // top
	CX int64 // width
	CY int64 // height
}

// Center returns the centre point of the box. Halving truncates, so odd
// sizes round the centre toward the top-left.
func (b Box) Center() (x, y int64) {
	return b.X + b.CX/2, b.Y + b.CY/2
}

// Fitted is the result of fitting an image into a box.
type Fitted struct {
	Box   Box
	Scale float64
}

// Fit scales an image into box. The image keeps its aspect ratio, is only
// ever shrunk (scale <= 1), and is positioned so its centre matches the
// centre of box. dpi is used for images without resolution metadata.
func Fit(box Box, img ImageInfo, dpi float64) Fitted {
	imgW, imgH := img.Inches(dpi)
	boxW, boxH := EMUToInch(box.CX), EMUToInch(box.CY)

	scale := math.Min(math.Min(boxW/imgW, boxH/imgH), 1.0)

	finalW := Inch(imgW * scale)
	finalH := Inch(imgH * scale)
	cx, cy := box.Center()

	return Fitted{
		Box: Box{
			X:  clampEMU(float64(cx) - float64(finalW)/2),
			Y:  clampEMU(float64(cy) - float64(finalH)/2),
			CX: finalW,
			CY: finalH,
		},
		Scale: scale,
	}
}
