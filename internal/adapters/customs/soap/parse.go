package soap

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"vnexim/mavach/internal/core/declaration"
	"vnexim/mavach/internal/infrastructure/resilience"
)

// ErrNotFound is returned when the response carries no result element; the
// service answers this way for unknown declarations.
var ErrNotFound = errors.New("no query result in response")

// blankedSeal is the placeholder the service emits for absent customs seals.
const blankedSeal = "#####"

// resultPayload mirrors the QueryBangKeDanhSachContainerResult element.
// Field matching is by local name, which also covers unqualified and
// fully-qualified variants of the schema.
type resultPayload struct {
	MaDoanhNghiep      string     `xml:"MaDoanhNghiep"`
	SoToKhai           string     `xml:"SoToKhai"`
	NgayDangKy         string     `xml:"NgayDangKy"`
	TenDonViXNK        string     `xml:"TenDonViXNK"`
	TenCucHaiQuan      string     `xml:"TenCucHaiQuan"`
	TenChiCucHaiQuan   string     `xml:"TenChiCucHaiQuan"`
	MaHaiQuanGS        string     `xml:"MaHaiQuanGS"`
	TenChiCucHQGS      string     `xml:"TenChiCucHaiQuanGS"`
	MaDDGS             string     `xml:"MaDDGS"`
	TenDDGS            string     `xml:"TenDDGS"`
	MaLoaiHinh         string     `xml:"MaLoaiHinh"`
	TenLoaiHinh        string     `xml:"TenLoaiHinh"`
	MaTrangThai        string     `xml:"MaTrangThai"`
	TenTrangThai       string     `xml:"TenTrangThai"`
	LuongToKhai        string     `xml:"LuongToKhai"`
	SoLuongHang        string     `xml:"SoLuongHang"`
	DVTSoLuongHang     string     `xml:"DVTSoLuongHang"`
	TongTrongLuongHang string     `xml:"TongTrongLuongHang"`
	DVTTongTrongLuong  string     `xml:"DVTTongTrongLuongHang"`
	MaPTVC             string     `xml:"MaPTVC"`
	SoDinhDanh         string     `xml:"SoDinhDanh"`
	GhiChu             string     `xml:"GhiChu"`
	NgayGioServer      string     `xml:"NgayGioServer"`
	ThongBaoLoi        string     `xml:"ThongBaoLoi"`
	BangKe             bangKeList `xml:"BangKe"`
}

type containerRow struct {
	STT          string `xml:"STT"`
	SoContainer  string `xml:"SoContainer"`
	SoSeal       string `xml:"SoSeal"`
	SoSealHQ     string `xml:"SoSealHQ"`
	BarcodeImage string `xml:"BarcodeImage"`
	GhiChu       string `xml:"GhiChu"`
}

// bangKeList collects container rows from any descendant whose tag contains
// "Table" ("Table_BangKe", dataset-generated "Table1", ...).
type bangKeList struct {
	Rows []containerRow
}

func (b *bangKeList) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if strings.Contains(t.Name.Local, "Table") {
				var row containerRow
				if err := d.DecodeElement(&row, &t); err != nil {
					return err
				}
				b.Rows = append(b.Rows, row)
			} else if err := d.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			if t.Name == start.Name {
				return nil
			}
		}
	}
}

// envelopeBody walks Envelope/Body/Response to the result element without
// binding to a specific response-element namespace.
type envelopeBody struct {
	Body struct {
		Response struct {
			Result *resultPayload `xml:"QueryBangKeDanhSachContainerResult"`
		} `xml:"QueryBangKeDanhSachContainerResponse"`
	} `xml:"Body"`
}

// ParseResponse extracts the declaration record from a SOAP response body.
// A missing result element yields ErrNotFound; malformed XML is a data error.
// A result whose ThongBaoLoi is set is still returned to the caller.
func ParseResponse(body []byte) (*declaration.Record, error) {
	var env envelopeBody
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, resilience.NewError(resilience.KindData, fmt.Errorf("parse soap response: %w", err))
	}

	payload := env.Body.Response.Result
	if payload == nil {
		return nil, ErrNotFound
	}

	record := &declaration.Record{
		MaDoanhNghiep:      strings.TrimSpace(payload.MaDoanhNghiep),
		SoToKhai:           strings.TrimSpace(payload.SoToKhai),
		NgayDangKy:         strings.TrimSpace(payload.NgayDangKy),
		TenDonViXNK:        payload.TenDonViXNK,
		TenCucHaiQuan:      payload.TenCucHaiQuan,
		TenChiCucHaiQuan:   payload.TenChiCucHaiQuan,
		MaHaiQuanGS:        payload.MaHaiQuanGS,
		TenChiCucHQGS:      payload.TenChiCucHQGS,
		MaDDGS:             payload.MaDDGS,
		TenDDGS:            payload.TenDDGS,
		MaLoaiHinh:         payload.MaLoaiHinh,
		TenLoaiHinh:        payload.TenLoaiHinh,
		MaTrangThai:        payload.MaTrangThai,
		TenTrangThai:       payload.TenTrangThai,
		LuongToKhai:        payload.LuongToKhai,
		SoLuongHang:        payload.SoLuongHang,
		DVTSoLuongHang:     payload.DVTSoLuongHang,
		TongTrongLuongHang: payload.TongTrongLuongHang,
		DVTTongTrongLuong:  payload.DVTTongTrongLuong,
		MaPTVC:             strings.TrimSpace(payload.MaPTVC),
		SoDinhDanh:         strings.TrimSpace(payload.SoDinhDanh),
		GhiChu:             payload.GhiChu,
		NgayGioServer:      payload.NgayGioServer,
		ThongBaoLoi:        strings.TrimSpace(payload.ThongBaoLoi),
	}

	for _, row := range payload.BangKe.Rows {
		sealHQ := strings.TrimSpace(row.SoSealHQ)
		if sealHQ == blankedSeal {
			sealHQ = ""
		}
		record.Containers = append(record.Containers, declaration.Container{
			STT:          strings.TrimSpace(row.STT),
			SoContainer:  strings.TrimSpace(row.SoContainer),
			SoSeal:       strings.TrimSpace(row.SoSeal),
			SoSealHQ:     sealHQ,
			BarcodeImage: strings.TrimSpace(row.BarcodeImage),
			GhiChu:       row.GhiChu,
		})
	}

	return record, nil
}
