package declaration

// Record is the authoritative declaration data returned by the customs
// QueryBangKeDanhSachContainer service. Field names follow the wire schema.
type Record struct {
	MaDoanhNghiep       string      `json:"ma_doanh_nghiep"` // tax code
	SoToKhai            string      `json:"so_to_khai"`      // declaration number
	NgayDangKy          string      `json:"ngay_dang_ky"`    // registration date
	TenDonViXNK         string      `json:"ten_don_vi_xnk"`    // importer/exporter name
	TenCucHaiQuan       string      `json:"ten_cuc_hai_quan"`  // issuing department, header row 1
	TenChiCucHaiQuan    string      `json:"ten_chi_cuc_hai_quan"` // issuing sub-department, header row 2
	MaHaiQuanGS         string      `json:"ma_hai_quan_gs"`    // supervising office code
	TenChiCucHQGS       string      `json:"ten_chi_cuc_hq_gs"`
	MaDDGS              string      `json:"ma_ddgs"` // supervising sub-office code
	TenDDGS             string      `json:"ten_ddgs"`
	MaLoaiHinh          string      `json:"ma_loai_hinh"`
	TenLoaiHinh         string      `json:"ten_loai_hinh"`
	MaTrangThai         string      `json:"ma_trang_thai"`
	TenTrangThai        string      `json:"ten_trang_thai"`
	LuongToKhai         string      `json:"luong_to_khai"` // channel display name
	SoLuongHang         string      `json:"so_luong_hang"`
	DVTSoLuongHang      string      `json:"dvt_so_luong_hang"`
	TongTrongLuongHang  string      `json:"tong_trong_luong_hang"`
	DVTTongTrongLuong   string      `json:"dvt_tong_trong_luong_hang"`
	MaPTVC              string      `json:"ma_ptvc"` // "2" means container transport
	SoDinhDanh          string      `json:"so_dinh_danh"`
	GhiChu              string      `json:"ghi_chu"`
	NgayGioServer       string      `json:"ngay_gio_server"`
	ThongBaoLoi         string      `json:"thong_bao_loi"`
	Containers          []Container `json:"containers,omitempty"`
}

// Container is a per-container row from the BangKe sub-tree.
type Container struct {
	STT          string `json:"stt"`
	SoContainer  string `json:"so_container"`
	SoSeal       string `json:"so_seal"`
	SoSealHQ     string `json:"so_seal_hq"`
	BarcodeImage string `json:"barcode_image,omitempty"` // base64 PNG
	GhiChu       string `json:"ghi_chu,omitempty"`
}

// IsValid reports whether the record carries usable declaration data.
func (r *Record) IsValid() bool {
	return r != nil && r.SoToKhai != "" && r.MaDoanhNghiep != "" && r.ThongBaoLoi == ""
}

// HasError reports whether the service attached an error message.
func (r *Record) HasError() bool {
	return r != nil && r.ThongBaoLoi != ""
}

// IsContainerDocument reports whether the record describes container
// transport, which selects the container PDF variant.
func (r *Record) IsContainerDocument() bool {
	return r != nil && r.MaPTVC == "2"
}

// BarcodeValue returns the value encoded in the Code39 header barcode.
func (r *Record) BarcodeValue() string {
	if r.SoDinhDanh != "" {
		return r.SoDinhDanh
	}
	return r.SoToKhai
}
