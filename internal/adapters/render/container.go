package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"

	"github.com/go-pdf/fpdf"

	"vnexim/mavach/internal/core/declaration"
)

var containerColumns = []float64{12, 30, 28, 28, 32, 30}

var containerHeaders = []string{
	"STT",
	"SỐ HIỆU CONTAINER (1)",
	"SỐ SEAL CONTAINER (Nếu có) (2)",
	"SỐ SEAL HẢI QUAN (Nếu có) (3)",
	"XÁC NHẬN CỦA CÔNG CHỨC HẢI QUAN (4)",
	"MÃ VẠCH (5)",
}

var containerNotes = []string{
	"Người khai hải quan xuất trình danh sách container kèm hàng hóa cho doanh nghiệp kinh doanh kho, bãi, cảng khi đưa hàng qua khu vực giám sát hải quan.",
	"Doanh nghiệp kinh doanh kho, bãi, cảng đối chiếu số container, số seal thực tế với danh sách trước khi cho hàng qua khu vực giám sát.",
	"Trường hợp danh sách container không còn giá trị, cơ quan hải quan sẽ thông báo cho doanh nghiệp kinh doanh kho, bãi, cảng.",
}

// QR cell image size (mm).
const containerQRSize = 20.0

// containerTable draws one row per container, embedding the per-container QR
// image the service returns as base64 PNG. Undecodable images leave the cell
// empty.
func (r *Renderer) containerTable(pdf *fpdf.Fpdf, fs fontSet, rec *declaration.Record) {
	headerHeight := 60 * ptToMM
	rowHeight := 65 * ptToMM

	y := pdf.GetY()
	y = drawTableRow(pdf, fs, marginLeft, y, containerColumns, containerHeaders,
		headerHeight, 10, 12, true, true)

	for i, c := range rec.Containers {
		if y+rowHeight > 297-marginBottom {
			pdf.AddPage()
			y = pdf.GetY()
			y = drawTableRow(pdf, fs, marginLeft, y, containerColumns, containerHeaders,
				headerHeight, 10, 12, true, true)
		}

		stt := c.STT
		if stt == "" {
			stt = fmt.Sprintf("%d", i+1)
		}
		row := []string{stt, c.SoContainer, c.SoSeal, c.SoSealHQ, "", ""}
		next := drawTableRow(pdf, fs, marginLeft, y, containerColumns, row,
			rowHeight, 9, 11, false, false)
		r.placeQR(pdf, c, i, y, rowHeight)
		y = next
	}
	pdf.SetY(y)
}

// placeQR decodes the base64 PNG for a container row and centers it in the
// barcode column.
func (r *Renderer) placeQR(pdf *fpdf.Fpdf, c declaration.Container, index int, rowY, rowHeight float64) {
	if c.BarcodeImage == "" {
		return
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.BarcodeImage))
	if err != nil {
		r.log.Warn("container barcode image is not valid base64, skipping",
			"container", c.SoContainer, "error", err)
		return
	}
	if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
		r.log.Warn("container barcode image is not a PNG, skipping",
			"container", c.SoContainer, "error", err)
		return
	}

	colX := marginLeft
	for _, w := range containerColumns[:5] {
		colX += w
	}
	colWidth := containerColumns[5]

	name := fmt.Sprintf("container-qr-%d-%s", index, c.SoContainer)
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	pdf.ImageOptions(name,
		colX+(colWidth-containerQRSize)/2, rowY+(rowHeight-containerQRSize)/2,
		containerQRSize, containerQRSize, false, opts, 0, "")
}
