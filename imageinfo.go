package pptxtemplate

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultDPI is the resolution assumed for images that carry no
// resolution metadata.
const DefaultDPI = 96.0

// ImageInfo describes the intrinsic size of an image.
type ImageInfo struct {
	Format string
	Width  int // pixels
	Height int // pixels
	// DPIX and DPIY are zero when the image carries no resolution metadata.
	DPIX float64
	DPIY float64
}

// Inches returns the physical size of the image, using fallback for any
// axis without resolution metadata.
func (ii ImageInfo) Inches(fallback float64) (w, h float64) {
	if fallback <= 0 {
		fallback = DefaultDPI
	}
	dx, dy := ii.DPIX, ii.DPIY
	if dx <= 0 {
		dx = fallback
	}
	if dy <= 0 {
		dy = fallback
	}
	return float64(ii.Width) / dx, float64(ii.Height) / dy
}

// ReadImageInfo reads the image file at path and decodes its metadata.
func ReadImageInfo(path string) (ImageInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	return DecodeImageInfo(data)
}

// DecodeImageInfo decodes pixel dimensions and resolution from image bytes
// without decoding the pixel data.
func DecodeImageInfo(data []byte) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to decode image: %w", err)
	}
	info := ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}
	if info.Width <= 0 || info.Height <= 0 {
		return ImageInfo{}, fmt.Errorf("image has invalid dimensions %dx%d", info.Width, info.Height)
	}
	switch format {
	case "png":
		info.DPIX, info.DPIY = pngDPI(data)
	case "jpeg":
		info.DPIX, info.DPIY = jpegDPI(data)
	case "bmp":
		info.DPIX, info.DPIY = bmpDPI(data)
	}
	return info, nil
}

const inchesPerMeter = 0.0254

// pngDPI reads the pHYs chunk. Only the metre unit carries a resolution.
func pngDPI(data []byte) (float64, float64) {
	pos := 8 // signature
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos:]))
		typ := string(data[pos+4 : pos+8])
		body := pos + 8
		if body+length > len(data) {
			return 0, 0
		}
		switch typ {
		case "pHYs":
			if length < 9 || data[body+8] != 1 {
				return 0, 0
			}
			x := binary.BigEndian.Uint32(data[body:])
			y := binary.BigEndian.Uint32(data[body+4:])
			return float64(x) * inchesPerMeter, float64(y) * inchesPerMeter
		case "IDAT", "IEND":
			return 0, 0
		}
		pos = body + length + 4 // crc
	}
	return 0, 0
}

// jpegDPI reads the JFIF APP0 density. Unit 1 is dots per inch, unit 2
// dots per centimetre; unit 0 only gives an aspect ratio.
func jpegDPI(data []byte) (float64, float64) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return 0, 0
	}
	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			return 0, 0
		}
		marker := data[pos+1]
		if marker == 0xDA || marker == 0xD9 { // start of scan, end of image
			return 0, 0
		}
		length := int(binary.BigEndian.Uint16(data[pos+2:]))
		seg := pos + 4
		if length < 2 || seg+length-2 > len(data) {
			return 0, 0
		}
		if marker == 0xE0 && length >= 16 && string(data[seg:seg+5]) == "JFIF\x00" {
			unit := data[seg+7]
			x := float64(binary.BigEndian.Uint16(data[seg+8:]))
			y := float64(binary.BigEndian.Uint16(data[seg+10:]))
			switch unit {
			case 1:
				return x, y
			case 2:
				return x * 2.54, y * 2.54
			}
			return 0, 0
		}
		pos = seg + length - 2
	}
	return 0, 0
}

// bmpDPI reads the pixels-per-metre fields of a BITMAPINFOHEADER.
func bmpDPI(data []byte) (float64, float64) {
	const fileHeader = 14
	if len(data) < fileHeader+40 {
		return 0, 0
	}
	if binary.LittleEndian.Uint32(data[fileHeader:]) < 40 {
		return 0, 0
	}
	x := int32(binary.LittleEndian.Uint32(data[fileHeader+24:]))
	y := int32(binary.LittleEndian.Uint32(data[fileHeader+28:]))
	if x <= 0 || y <= 0 {
		return 0, 0
	}
	return float64(x) * inchesPerMeter, float64(y) * inchesPerMeter
}
