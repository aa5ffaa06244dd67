package web

import "strings"

// Dialect distinguishes the two lookup-site implementations.
type Dialect int

const (
	// DialectASPNet is the classic WebForms page with a plain form POST.
	DialectASPNet Dialect = iota
	// DialectADF is the Oracle ADF Faces page driven by AJAX.
	DialectADF
)

func (d Dialect) String() string {
	if d == DialectADF {
		return "oracle_adf"
	}
	return "aspnet"
}

// DetectDialect inspects the lookup URL. ADF deployments expose their pages
// under a /faces path segment.
func DetectDialect(url string) Dialect {
	if strings.Contains(url, "/faces") {
		return DialectADF
	}
	return DialectASPNet
}
