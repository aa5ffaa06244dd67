package render

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/go-pdf/fpdf"
)

// arialCandidates lists the usual install locations of the Arial family.
var arialCandidates = map[string][]string{
	"": {
		"/usr/share/fonts/truetype/msttcorefonts/Arial.ttf",
		"/usr/share/fonts/truetype/msttcorefonts/arial.ttf",
		"/Library/Fonts/Arial.ttf",
		`C:\Windows\Fonts\arial.ttf`,
	},
	"B": {
		"/usr/share/fonts/truetype/msttcorefonts/Arial_Bold.ttf",
		"/usr/share/fonts/truetype/msttcorefonts/arialbd.ttf",
		"/Library/Fonts/Arial Bold.ttf",
		`C:\Windows\Fonts\arialbd.ttf`,
	},
	"I": {
		"/usr/share/fonts/truetype/msttcorefonts/Arial_Italic.ttf",
		"/usr/share/fonts/truetype/msttcorefonts/ariali.ttf",
		"/Library/Fonts/Arial Italic.ttf",
		`C:\Windows\Fonts\ariali.ttf`,
	},
}

// fontSet carries the active font family and the text encoder matching it.
// With the Arial TTFs registered the document is full Unicode; with the
// Helvetica fallback text is folded to ASCII, which keeps the layout intact
// at the cost of the diacritics.
type fontSet struct {
	family string
	utf8   bool
	tr     func(string) string
}

// setupFonts registers Arial from the system when available and silently
// falls back to the built-in Helvetica family.
func setupFonts(pdf *fpdf.Fpdf) fontSet {
	found := map[string]string{}
	for style, candidates := range arialCandidates {
		for _, path := range candidates {
			if fileExists(path) {
				found[style] = path
				break
			}
		}
	}

	// All three styles must resolve or the document would mix families.
	if len(found) == len(arialCandidates) {
		for style, path := range found {
			pdf.AddUTF8Font("Arial", style, filepath.Clean(path))
		}
		if !pdf.Err() {
			return fontSet{family: "Arial", utf8: true, tr: func(s string) string { return s }}
		}
		// Registration failed; clear the error and fall back.
		pdf.ClearError()
	}

	return fontSet{family: "Helvetica", utf8: false, tr: foldToASCII}
}

// vietnameseFold maps every accented Vietnamese letter to its unaccented
// base.
var vietnameseFold = map[rune]rune{}

func init() {
	groups := map[rune]string{
		'a': "àáãăằắặẳẵâầấậẩẫạả",
		'd': "đ",
		'e': "èéẹẻẽêềếệểễ",
		'i': "ìíĩỉị",
		'o': "òóõôồốộổỗơờớợởỡọỏ",
		'u': "ùúưừứựửữũụủ",
		'y': "ýỳỵỷỹ",
	}
	for base, letters := range groups {
		for _, r := range letters {
			vietnameseFold[r] = base
			vietnameseFold[unicode.ToUpper(r)] = unicode.ToUpper(base)
		}
	}
}

// foldToASCII is the text encoder for the Helvetica fallback. The core fonts
// carry 256-entry width tables and take their text as raw bytes, so every
// rune must come out single-byte: Vietnamese letters fold to their base
// letter, anything else non-ASCII becomes '?'.
func foldToASCII(s string) string {
	return strings.Map(func(r rune) rune {
		if base, ok := vietnameseFold[r]; ok {
			return base
		}
		if r > 0x7F {
			return '?'
		}
		return r
	}, s)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
