package declaration

import (
	"strings"
	"time"
)

// Channel represents the customs risk lane assigned to a declaration.
type Channel string

const (
	// ChannelGreen is "Xanh": auto-cleared, eligible for barcode retrieval.
	ChannelGreen Channel = "Xanh"
	// ChannelYellow is "Vang": document check, eligible for barcode retrieval.
	ChannelYellow Channel = "Vang"
	// ChannelRed is "Do": physical inspection, not eligible.
	ChannelRed Channel = "Do"
)

// StatusCleared is the clearance status ("thông quan") required before a
// barcode document can be issued.
const StatusCleared = "T"

// TransportExcluded is the transport-method code that marks a declaration as
// out of scope for barcode retrieval.
const TransportExcluded = "9999"

// Internal goods-description markers that exclude a declaration.
const (
	MarkerImportExcluded = "#&NKTC"
	MarkerExportExcluded = "#&XKTC"
)

// Declaration identifies a customs filing in the source system (ECUS5).
// It is an immutable value; identity is (TaxCode, Number).
type Declaration struct {
	Number            string    `json:"declaration_number"`
	TaxCode           string    `json:"tax_code"`
	Date              time.Time `json:"declaration_date"`
	CustomsOfficeCode string    `json:"customs_office_code"`
	TransportMethod   string    `json:"transport_method"`
	Channel           Channel   `json:"channel"`
	Status            string    `json:"status"`
	GoodsDescription  string    `json:"goods_description,omitempty"`
	InvoiceNumber     string    `json:"invoice_number,omitempty"`
	BillOfLading      string    `json:"bill_of_lading,omitempty"`
}

// ID returns the tracking-store identity for the declaration.
func (d Declaration) ID() string {
	return d.TaxCode + "_" + d.Number
}

// IsImport reports whether the declaration number carries the import prefix.
func (d Declaration) IsImport() bool {
	return strings.HasPrefix(d.Number, "10")
}

// IsExport reports whether the declaration number carries the export prefix.
func (d Declaration) IsExport() bool {
	return strings.HasPrefix(d.Number, "30")
}
