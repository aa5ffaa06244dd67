package render

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code39"
)

// Barcode raster parameters: 50mm x 15mm at 300 dpi.
const (
	barcodeWidthMM  = 50.0
	barcodeHeightMM = 15.0
	barcodeDPI      = 300.0
)

func mmToPx(mm float64) int {
	return int(mm / 25.4 * barcodeDPI)
}

// code39PNG renders value as a Code39 barcode PNG without human-readable
// text.
func code39PNG(value string) ([]byte, error) {
	bc, err := code39.Encode(value, false, true)
	if err != nil {
		return nil, fmt.Errorf("encode code39: %w", err)
	}
	scaled, err := barcode.Scale(bc, mmToPx(barcodeWidthMM), mmToPx(barcodeHeightMM))
	if err != nil {
		return nil, fmt.Errorf("scale code39: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("rasterize code39: %w", err)
	}
	return buf.Bytes(), nil
}
