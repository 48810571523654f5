package format

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Tag identifies a document format.
type Tag string

const (
	PDF     Tag = "pdf"
	Doc     Tag = "doc"
	Docx    Tag = "docx"
	HWP     Tag = "hwp"
	HWPX    Tag = "hwpx"
	Unknown Tag = "unknown"
)

// sniffWindow bounds how far into a buffer signature markers are searched.
const sniffWindow = 1000

var (
	magicPDF  = []byte("%PDF-")
	magicCFB  = []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}
	magicZIP  = []byte("PK\x03\x04")
	markWord  = []byte("word/")
	markOOXML = []byte("[Content_Types].xml")
	markHWP   = []byte("HWP Document File")
)

// extTags maps a lower-cased filename extension to its format. Extensions
// outside this set are ignored and the buffer is sniffed instead.
var extTags = map[string]Tag{
	".pdf":  PDF,
	".doc":  Doc,
	".docx": Docx,
	".hwp":  HWP,
	".hwpx": HWPX,
}

// Resolve determines a buffer's format. A filename whose extension maps to a
// known format wins; any other filename, or none, falls through to Sniff.
func Resolve(b []byte, filename string) Tag {
	if filename != "" {
		ext := strings.ToLower(filepath.Ext(filename))
		if tag, ok := extTags[ext]; ok {
			return tag
		}
	}
	return Sniff(b)
}

// Sniff identifies a buffer by its content signature alone. Markers are
// matched within the first sniffWindow bytes, in fixed precedence. Buffers
// matching no signature yield Unknown; Sniff never fails.
func Sniff(b []byte) Tag {
	window := b
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}
	switch {
	case bytes.HasPrefix(window, magicPDF):
		return PDF
	case bytes.HasPrefix(window, magicCFB):
		return Doc
	case bytes.HasPrefix(window, magicZIP) &&
		(bytes.Contains(window, markWord) || bytes.Contains(window, markOOXML)):
		return Docx
	case bytes.Contains(window, markHWP):
		return HWP
	}
	return Unknown
}

// Convertible reports whether documents of this format can be normalized to
// PDF by an external converter.
func (t Tag) Convertible() bool {
	switch t {
	case Doc, Docx, HWP, HWPX:
		return true
	}
	return false
}

// Ext returns the canonical filename extension for the format, or an empty
// string for Unknown.
func (t Tag) Ext() string {
	for ext, tag := range extTags {
		if tag == t {
			return ext
		}
	}
	return ""
}

func (t Tag) String() string {
	return string(t)
}
