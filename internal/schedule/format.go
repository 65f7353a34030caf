package schedule

import (
	"bytes"
	"encoding/xml"
)

// Format identifies a schedule file format.
type Format string

const (
	FormatUnknown Format = ""
	FormatMSPDI   Format = "MSPDI"
	FormatMPP     Format = "MPP"
	FormatPMXML   Format = "PMXML"
	FormatXER     Format = "XER"
	FormatPP      Format = "PP"
)

// ExternalIDType is the source system an external id originates from.
type ExternalIDType string

const (
	ExternalIDMSProject ExternalIDType = "MS_PROJECT"
	ExternalIDP6        ExternalIDType = "P6"
	ExternalIDPP        ExternalIDType = "PP"
)

// ExternalIDType returns the source system family of the format.
func (f Format) ExternalIDType() ExternalIDType {
	switch f {
	case FormatPMXML, FormatXER:
		return ExternalIDP6
	case FormatPP:
		return ExternalIDPP
	default:
		return ExternalIDMSProject
	}
}

const mspdiNamespace = "http://schemas.microsoft.com/project"

var (
	oleHeader    = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	xerHeader    = []byte("ERMHDR")
	sqliteHeader = []byte("SQLite format 3\x00")
	astaHeader   = []byte("ASTA")
	utf8BOM      = []byte{0xEF, 0xBB, 0xBF}
)

// sniffLimit bounds how many bytes are inspected to find the XML root.
const sniffLimit = 64 * 1024

// Sniff detects the format from content. The file name is never consulted.
func Sniff(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, oleHeader):
		return FormatMPP
	case bytes.HasPrefix(data, xerHeader):
		return FormatXER
	case bytes.HasPrefix(data, sqliteHeader), bytes.HasPrefix(data, astaHeader):
		return FormatPP
	}

	head := bytes.TrimPrefix(data, utf8BOM)
	if len(head) > sniffLimit {
		head = head[:sniffLimit]
	}
	head = bytes.TrimLeft(head, " \t\r\n")
	if !bytes.HasPrefix(head, []byte("<")) {
		return FormatUnknown
	}

	root, ok := xmlRoot(head)
	if !ok {
		return FormatUnknown
	}
	switch {
	case root.Local == "Project" && (root.Space == mspdiNamespace || root.Space == ""):
		return FormatMSPDI
	case root.Local == "APIBusinessObjects":
		return FormatPMXML
	}
	return FormatUnknown
}

func xmlRoot(head []byte) (xml.Name, bool) {
	dec := xml.NewDecoder(bytes.NewReader(head))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.Name{}, false
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name, true
		}
	}
}
