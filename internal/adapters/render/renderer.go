package render

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-pdf/fpdf"

	"vnexim/mavach/internal/core/declaration"
	"vnexim/mavach/internal/infrastructure/resilience"
)

// Page geometry (mm).
const (
	marginLeft   = 20.0
	marginRight  = 20.0
	marginTop    = 15.0
	marginBottom = 15.0
	pageWidth    = 210.0
	usableWidth  = pageWidth - marginLeft - marginRight
)

const ptToMM = 25.4 / 72.0

// Default strings used when the service omits the corresponding field.
const (
	defaultCucHaiQuan    = "Chi cục Hải quan khu vực V"
	defaultChiCucHaiQuan = "Hải quan Bắc Ninh"
	defaultChiCucGS      = "CC HQ CK Sân bay QT Nội Bài"
	defaultSubtitle      = "Tờ khai không phải niêm phong"
)

// Renderer lays out barcode documents from declaration records. Apart from
// the current date/time in the header and footer, output is a deterministic
// function of the record.
type Renderer struct {
	log *slog.Logger
	now func() time.Time
}

// New creates a renderer.
func New(log *slog.Logger) *Renderer {
	return &Renderer{log: log, now: time.Now}
}

// Render produces the PDF for a record, choosing the container variant when
// ma_ptvc is "2" and the cargo variant otherwise.
func (r *Renderer) Render(rec *declaration.Record) ([]byte, error) {
	if !rec.IsValid() {
		return nil, resilience.NewError(resilience.KindData, fmt.Errorf("cannot render invalid record"))
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(r.now())
	pdf.SetModificationDate(r.now())
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(true, marginBottom)
	fs := setupFonts(pdf)
	pdf.AddPage()

	container := rec.IsContainerDocument()
	r.header(pdf, fs, rec, container)
	r.titleBlock(pdf, fs, rec, container)
	r.infoBlock(pdf, fs, rec)
	if container {
		r.containerTable(pdf, fs, rec)
	} else {
		r.cargoTable(pdf, fs, rec)
	}
	r.footer(pdf, fs, container)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, resilience.NewError(resilience.KindData, fmt.Errorf("emit pdf: %w", err))
	}
	return buf.Bytes(), nil
}

// header draws the issuing-office block on the left and, for the cargo
// variant, the Code39 barcode with the date line on the right.
func (r *Renderer) header(pdf *fpdf.Fpdf, fs fontSet, rec *declaration.Record, container bool) {
	const officeWidth = 160 * ptToMM
	const lineHeight = 6.0

	cuc := rec.TenCucHaiQuan
	if cuc == "" {
		cuc = defaultCucHaiQuan
	}
	chiCuc := rec.TenChiCucHaiQuan
	if chiCuc == "" {
		chiCuc = defaultChiCucHaiQuan
	}

	top := pdf.GetY()
	pdf.SetFont(fs.family, "B", 10)
	pdf.SetXY(marginLeft, top)
	pdf.CellFormat(officeWidth, lineHeight, fs.tr(cuc), "", 1, "L", false, 0, "")
	pdf.SetX(marginLeft)
	pdf.CellFormat(officeWidth, lineHeight, fs.tr(chiCuc), "", 1, "C", false, 0, "")

	dateY := top
	if !container {
		if img, err := code39PNG(rec.BarcodeValue()); err != nil {
			r.log.Warn("barcode generation failed, rendering without it",
				"declaration", rec.SoToKhai, "error", err)
		} else {
			name := "code39-" + rec.BarcodeValue()
			opts := fpdf.ImageOptions{ImageType: "PNG"}
			pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img))
			pdf.ImageOptions(name, pageWidth-marginRight-barcodeWidthMM, top,
				barcodeWidthMM, barcodeHeightMM, false, opts, 0, "")
			dateY = top + barcodeHeightMM + 2
		}
	}

	now := r.now()
	dateLine := fmt.Sprintf("Ngày %02d tháng %02d năm %d", now.Day(), int(now.Month()), now.Year())
	pdf.SetFont(fs.family, "I", 10)
	pdf.SetXY(marginLeft, dateY)
	pdf.CellFormat(usableWidth, lineHeight, fs.tr(dateLine), "", 1, "R", false, 0, "")

	bottom := pdf.GetY()
	if y := top + 2*lineHeight; y > bottom {
		bottom = y
	}
	pdf.SetY(bottom + 4)
}

func (r *Renderer) titleBlock(pdf *fpdf.Fpdf, fs fontSet, rec *declaration.Record, container bool) {
	title := "DANH SÁCH HÀNG HÓA"
	if container {
		title = "DANH SÁCH CONTAINER"
	}

	pdf.SetFont(fs.family, "B", 13)
	pdf.SetX(marginLeft)
	pdf.CellFormat(usableWidth, 7, fs.tr(title), "", 1, "C", false, 0, "")
	pdf.SetX(marginLeft)
	pdf.CellFormat(usableWidth, 7, fs.tr("ĐỦ ĐIỀU KIỆN QUA KHU VỰC GIÁM SÁT HẢI QUAN"), "", 1, "C", false, 0, "")

	subtitle := rec.GhiChu
	if subtitle == "" {
		subtitle = defaultSubtitle
	}
	pdf.SetFont(fs.family, "B", 10)
	pdf.SetX(marginLeft)
	pdf.CellFormat(usableWidth, 6, fs.tr(subtitle), "", 1, "C", false, 0, "")
	pdf.Ln(2)
}

// infoBlock renders the numbered items 1-9: 1, 2 and 9 full width, 3-5 and
// 6-8 as two columns.
func (r *Renderer) infoBlock(pdf *fpdf.Fpdf, fs fontSet, rec *declaration.Record) {
	const lineHeight = 5.5

	item := func(x, width float64, label, value string) {
		pdf.SetX(x)
		pdf.SetFont(fs.family, "B", 10)
		labelText := fs.tr(label + " ")
		labelWidth := pdf.GetStringWidth(labelText)
		pdf.CellFormat(labelWidth, lineHeight, labelText, "", 0, "L", false, 0, "")
		pdf.SetFont(fs.family, "", 10)
		pdf.CellFormat(width-labelWidth, lineHeight, fs.tr(value), "", 0, "L", false, 0, "")
	}

	chiCucGS := rec.TenChiCucHQGS
	if chiCucGS == "" {
		chiCucGS = defaultChiCucGS
	}
	supervision := chiCucGS
	if rec.MaDDGS != "" && rec.TenDDGS != "" {
		supervision += fmt.Sprintf(" - %s: %s", rec.MaDDGS, rec.TenDDGS)
	}
	if rec.MaPTVC != "" {
		supervision += " - " + rec.MaPTVC
	}

	item(marginLeft, usableWidth, "1. Chi cục hải quan giám sát:", supervision)
	pdf.Ln(lineHeight)
	item(marginLeft, usableWidth, "2. Đơn vị XNK:", rec.TenDonViXNK)
	pdf.Ln(lineHeight)

	half := usableWidth / 2
	left := [][2]string{
		{"3. Mã số thuế:", rec.MaDoanhNghiep},
		{"4. Số tờ khai:", rec.SoToKhai},
		{"5. Trạng thái tờ khai:", rec.TenTrangThai},
	}
	right := [][2]string{
		{"6. Ngày tờ khai:", rec.NgayDangKy},
		{"7. Loại hình:", rec.TenLoaiHinh},
		{"8. Luồng:", rec.LuongToKhai},
	}
	for i := range left {
		item(marginLeft, half, left[i][0], left[i][1])
		item(marginLeft+half, half, right[i][0], right[i][1])
		pdf.Ln(lineHeight)
	}

	item(marginLeft, usableWidth, "9. Số quản lý hàng hóa:", rec.SoDinhDanh)
	pdf.Ln(lineHeight + 2)
}

// drawTableRow draws one bordered row with centered, wrapped cell text and a
// fixed height. Returns the y position below the row.
func drawTableRow(pdf *fpdf.Fpdf, fs fontSet, x, y float64, widths []float64, texts []string, height, fontSize, leading float64, bold bool, fill bool) float64 {
	style := ""
	if bold {
		style = "B"
	}
	pdf.SetFont(fs.family, style, fontSize)
	lineHeight := leading * ptToMM

	cellX := x
	for i, w := range widths {
		if fill {
			pdf.SetFillColor(210, 210, 210)
			pdf.Rect(cellX, y, w, height, "DF")
		} else {
			pdf.Rect(cellX, y, w, height, "D")
		}

		text := fs.tr(texts[i])
		if text != "" {
			lines := pdf.SplitText(text, w-2)
			textHeight := float64(len(lines)) * lineHeight
			lineY := y + (height-textHeight)/2 + lineHeight*0.8
			for _, line := range lines {
				lineWidth := pdf.GetStringWidth(line)
				pdf.Text(cellX+(w-lineWidth)/2, lineY, line)
				lineY += lineHeight
			}
		}
		cellX += w
	}
	return y + height
}

// footer writes the export timestamp and the fixed notes section.
func (r *Renderer) footer(pdf *fpdf.Fpdf, fs fontSet, container bool) {
	pdf.Ln(3)
	pdf.SetFont(fs.family, "I", 8)
	stamp := r.now().Format("02/01/2006 03:04 PM")
	pdf.SetX(marginLeft)
	pdf.CellFormat(usableWidth, 4.5, fs.tr("Kết xuất dữ liệu lúc: "+stamp), "", 1, "L", false, 0, "")
	pdf.Ln(1)

	notes := cargoNotes
	if container {
		notes = containerNotes
	}
	pdf.SetFont(fs.family, "B", 9)
	pdf.SetX(marginLeft)
	pdf.CellFormat(usableWidth, 4.5, fs.tr("Ghi chú:"), "", 1, "L", false, 0, "")
	pdf.SetFont(fs.family, "", 9)
	for _, note := range notes {
		pdf.SetX(marginLeft)
		pdf.MultiCell(usableWidth, 4.5, fs.tr("- "+note), "", "L", false)
	}
}
