package render

import (
	"github.com/go-pdf/fpdf"

	"vnexim/mavach/internal/core/declaration"
)

var cargoColumns = []float64{12, 35, 40, 40, 40}

var cargoHeaders = []string{
	"STT",
	"SỐ LƯỢNG HÀNG (1)",
	"TỔNG TRỌNG LƯỢNG HÀNG (2)",
	"LƯỢNG HÀNG HÓA THỰC TẾ QUA KHU VỰC GIÁM SÁT HẢI QUAN (3)",
	"XÁC NHẬN CỦA CÔNG CHỨC HẢI QUAN (4)",
}

var cargoNotes = []string{
	"Người khai hải quan xuất trình danh sách hàng hóa kèm hàng hóa cho doanh nghiệp kinh doanh kho, bãi, cảng khi đưa hàng qua khu vực giám sát hải quan.",
	"Trường hợp danh sách hàng hóa không còn giá trị, cơ quan hải quan sẽ thông báo cho doanh nghiệp kinh doanh kho, bãi, cảng.",
}

// cargoTable draws the single-row quantity/weight table for the cargo
// variant. Zero quantities are left blank rather than printed as "0".
func (r *Renderer) cargoTable(pdf *fpdf.Fpdf, fs fontSet, rec *declaration.Record) {
	headerHeight := 45 * ptToMM
	rowHeight := 30 * ptToMM

	quantity := ""
	if rec.SoLuongHang != "" && rec.SoLuongHang != "0" {
		quantity = rec.SoLuongHang + " " + rec.DVTSoLuongHang
	}
	weight := ""
	if rec.TongTrongLuongHang != "" && rec.TongTrongLuongHang != "0" {
		weight = rec.TongTrongLuongHang + " " + rec.DVTTongTrongLuong
	}

	y := pdf.GetY()
	y = drawTableRow(pdf, fs, marginLeft, y, cargoColumns, cargoHeaders,
		headerHeight, 10, 12, true, true)
	row := []string{"1", quantity, weight, "", ""}
	y = drawTableRow(pdf, fs, marginLeft, y, cargoColumns, row,
		rowHeight, 9, 11, false, false)
	pdf.SetY(y)
}
