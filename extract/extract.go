// Package extract converts raw document bytes into plain text, dispatching on
// the filename extension.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

var (
	// ErrUnsupportedFormat marks extensions this package cannot handle. It is
	// a client-input error, not a server fault.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrParse marks malformed content for a recognized extension.
	ErrParse = errors.New("failed to parse document")
)

// Extract returns the plain text of a document. The format is chosen from the
// filename's extension, case-insensitively.
func Extract(data []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".txt", ".md":
		return extractPlainText(data)
	case ".pdf":
		return extractPDF(data)
	case ".docx":
		return extractDOCX(data)
	case ".pptx":
		return extractPPTX(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func extractPlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: content is not valid UTF-8", ErrParse)
	}
	return string(data), nil
}

// extractPDF concatenates the text of every page in order, each followed by a
// newline.
func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %v", ErrParse, err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: extract pdf page %d: %v", ErrParse, i, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

var docxRunTextRe = regexp.MustCompile(`(?s)<w:t(?: [^>]*)?>(.*?)</w:t>`)

// extractDOCX joins the document's paragraph texts in order with newlines.
// The docx library hands back the raw document.xml; each "</w:p>" closes one
// paragraph whose text is the concatenation of its <w:t> runs.
func extractDOCX(data []byte) (string, error) {
	reader, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open docx: %v", ErrParse, err)
	}
	defer reader.Close()

	content := reader.Editable().GetContent()

	segments := strings.Split(content, "</w:p>")
	if len(segments) > 0 {
		segments = segments[:len(segments)-1]
	}
	texts := make([]string, 0, len(segments))
	for _, segment := range segments {
		var sb strings.Builder
		for _, match := range docxRunTextRe.FindAllStringSubmatch(segment, -1) {
			sb.WriteString(unescapeXML(match[1]))
		}
		texts = append(texts, sb.String())
	}
	return strings.Join(texts, "\n"), nil
}

var xmlUnescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&amp;", "&",
)

func unescapeXML(s string) string {
	return xmlUnescaper.Replace(s)
}
