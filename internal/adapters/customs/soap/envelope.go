package soap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"
)

const (
	// Namespace is the service namespace of the barcode query operation.
	Namespace = "http://tempuri.org/"
	// Action is the SOAPAction header value for QueryBangKeDanhSachContainer.
	Action = "http://tempuri.org/QueryBangKeDanhSachContainer"

	envelopeOpen = `<?xml version="1.0" encoding="utf-8"?>` +
		`<soap:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"` +
		` xmlns:xsd="http://www.w3.org/2001/XMLSchema"` +
		` xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">` +
		`<soap:Body>`
	envelopeClose = `</soap:Body></soap:Envelope>`
)

// QueryRequest carries the four identifiers of a barcode query.
type QueryRequest struct {
	TaxCode           string
	DeclarationNumber string
	CustomsOfficeCode string
	RegistrationDate  time.Time
}

// BuildEnvelope renders the SOAP 1.1 request body. Child element order is
// fixed: Ma_Doanh_Nghiep, TK_ID, Ma_HQ, Ngay_DK. The registration date is
// formatted as a local datetime at midnight.
func BuildEnvelope(req QueryRequest) []byte {
	var buf bytes.Buffer
	buf.WriteString(envelopeOpen)
	fmt.Fprintf(&buf, `<QueryBangKeDanhSachContainer xmlns=%q>`, Namespace)
	writeElement(&buf, "Ma_Doanh_Nghiep", req.TaxCode)
	writeElement(&buf, "TK_ID", req.DeclarationNumber)
	writeElement(&buf, "Ma_HQ", req.CustomsOfficeCode)
	writeElement(&buf, "Ngay_DK", req.RegistrationDate.Format("2006-01-02")+"T00:00:00")
	buf.WriteString(`</QueryBangKeDanhSachContainer>`)
	buf.WriteString(envelopeClose)
	return buf.Bytes()
}

func writeElement(buf *bytes.Buffer, name, value string) {
	var escaped bytes.Buffer
	_ = xml.EscapeText(&escaped, []byte(value))
	fmt.Fprintf(buf, "<%s>%s</%s>", name, escaped.String(), name)
}
