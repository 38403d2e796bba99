// Package document classifies uploads and pulls plain text out of the formats it can read.
package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

type Type int

const (
	TypeUnknown Type = iota
	TypeImage
	TypePDF
	TypeDoc
	TypeDocx
)

func (t Type) String() string {
	switch t {
	case TypeImage:
		return "image"
	case TypePDF:
		return "pdf"
	case TypeDoc:
		return "doc"
	case TypeDocx:
		return "docx"
	default:
		return "unknown"
	}
}

// MaxUploadBytes is the largest file accepted for generation.
const MaxUploadBytes = 10 * 1024 * 1024

var (
	ErrUnsupported = errors.New("document type not supported")
	ErrTooLarge    = errors.New("file exceeds upload limit")
)

var extensions = map[string]Type{
	".jpg":  TypeImage,
	".jpeg": TypeImage,
	".png":  TypeImage,
	".gif":  TypeImage,
	".pdf":  TypePDF,
	".doc":  TypeDoc,
	".docx": TypeDocx,
}

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

func Detect(fileName string) Type {
	return extensions[strings.ToLower(filepath.Ext(fileName))]
}

func ContentType(fileName string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(fileName))]; ok {
		return ct
	}
	return "application/octet-stream"
}

func IsDocument(t Type) bool {
	return t == TypePDF || t == TypeDoc || t == TypeDocx
}

// CheckUpload enforces the extension whitelist and the size limit.
func CheckUpload(fileName string, size, limit int64) error {
	if Detect(fileName) == TypeUnknown {
		return fmt.Errorf("%w: %q", ErrUnsupported, filepath.Ext(fileName))
	}
	if limit <= 0 {
		limit = MaxUploadBytes
	}
	if size > limit {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, size, limit)
	}
	return nil
}

type Extractor interface {
	ExtractText(data []byte, fileName string) (string, error)
}

// TextExtractor reads PDF and Word 2007+ documents. Legacy .doc reports ErrUnsupported.
type TextExtractor struct{}

func (TextExtractor) ExtractText(data []byte, fileName string) (string, error) {
	switch t := Detect(fileName); t {
	case TypePDF:
		return extractPDF(data)
	case TypeDocx:
		return extractDocx(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, t)
	}
}

// extractPDF returns the text of every page in order. The pdf reader panics on some
// malformed inputs, so those surface as errors too.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to read pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func extractDocx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document part: %w", err)
		}
		defer rc.Close()
		return paragraphs(rc)
	}
	return "", nil
}

// paragraphs joins w:t runs per w:p and emits one line per non-blank paragraph.
// Tables are flattened the same way since their cells hold paragraphs too.
func paragraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		out    strings.Builder
		para   strings.Builder
		inText bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document xml: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				if line := strings.TrimSpace(para.String()); line != "" {
					out.WriteString(line)
					out.WriteByte('\n')
				}
				para.Reset()
			}
		case xml.CharData:
			if inText {
				para.Write(el)
			}
		}
	}
	return out.String(), nil
}
