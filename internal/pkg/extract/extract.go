// Package extract turns uploaded files into plain text.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/kart-io/moktashif/pkg/utils/json"
)

// Supported file types.
const (
	TypeText = "txt"
	TypeJSON = "json"
	TypePDF  = "pdf"
	TypeDOCX = "docx"
)

// ErrUnsupported is returned for file extensions that cannot be extracted.
var ErrUnsupported = errors.New("unsupported file type")

var extractors = map[string]func([]byte) (string, error){
	TypeText: extractText,
	TypeJSON: extractJSON,
	TypePDF:  extractPDF,
	TypeDOCX: extractDOCX,
}

// TypeOf returns the lower-cased extension of name without the dot.
func TypeOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Supported reports whether name has an extractable extension.
func Supported(name string) bool {
	_, ok := extractors[TypeOf(name)]
	return ok
}

// Extract reads the file at path and returns its text and detected type.
func Extract(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return Bytes(filepath.Base(path), data)
}

// Bytes extracts text from data, using name's extension to pick the parser.
func Bytes(name string, data []byte) (string, string, error) {
	typ := TypeOf(name)
	fn, ok := extractors[typ]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupported, typ)
	}
	text, err := fn(data)
	if err != nil {
		return "", typ, fmt.Errorf("failed to parse %s: %w", typ, err)
	}
	return text, typ, nil
}

func extractText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return strings.ToValidUTF8(string(data), "�"), nil
	}
	return string(data), nil
}

func extractJSON(data []byte) (string, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", err
	}
	return string(data), nil
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var content strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// 跳过无法解析的页面
			continue
		}
		if content.Len() > 0 {
			content.WriteString("\n\n")
		}
		content.WriteString(strings.TrimSpace(text))
	}
	return content.String(), nil
}

// extractDOCX reads word/document.xml and keeps paragraph breaks and tabs.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", errors.New("word/document.xml not found")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var (
		out    strings.Builder
		inText bool
	)
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				out.WriteByte('\t')
			case "br":
				out.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		}
	}
	return strings.TrimRight(out.String(), "\n"), nil
}
