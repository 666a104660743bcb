package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestExtractPlainTextVerbatim(t *testing.T) {
	for _, name := range []string{"notes.txt", "README.md", "UPPER.TXT"} {
		text, err := Extract([]byte("hello\nworld"), name)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if text != "hello\nworld" {
			t.Fatalf("%s: expected verbatim text, got %q", name, text)
		}
	}
}

func TestExtractInvalidUTF8(t *testing.T) {
	_, err := Extract([]byte{0xff, 0xfe, 0xfd}, "broken.txt")
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("anything"), {0x00, 0x01}} {
		_, err := Extract(data, "archive.xyz")
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
		}
	}
}

func TestExtractMalformedPDF(t *testing.T) {
	_, err := Extract([]byte("not a pdf at all"), "doc.pdf")
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestExtractMalformedDOCX(t *testing.T) {
	_, err := Extract([]byte("not a zip archive"), "doc.docx")
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractDOCXParagraphs(t *testing.T) {
	document := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr/><w:r><w:t>First </w:t></w:r><w:r><w:t xml:space="preserve">paragraph</w:t></w:r></w:p>
<w:p><w:r><w:t>Fish &amp; chips</w:t></w:r></w:p>
</w:body>
</w:document>`

	data := buildZip(t, map[string]string{
		"word/document.xml": document,
		"word/_rels/document.xml.rels": `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
	})
	text, err := Extract(data, "report.docx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "First paragraph\nFish & chips"
	if text != want {
		t.Fatalf("expected %q, got %q", want, text)
	}
}

const slideXMLTemplate = `<?xml version="1.0"?>
<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"
       xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
<p:cSld><p:spTree>%s</p:spTree></p:cSld>
</p:sld>`

func TestExtractPPTXNumericOrderFallback(t *testing.T) {
	slideOne := `<p:sp><p:txBody>
<a:p><a:r><a:t>Title </a:t></a:r><a:r><a:t>one</a:t></a:r></a:p>
<a:p><a:r><a:t>   </a:t></a:r></a:p>
</p:txBody></p:sp>
<p:graphicFrame><a:graphic><a:graphicData><a:tbl>
<a:tr><a:tc><a:txBody><a:p><a:r><a:t>cell a</a:t></a:r></a:p></a:txBody></a:tc>
<a:tc><a:txBody><a:p><a:r><a:t>cell b</a:t></a:r></a:p></a:txBody></a:tc></a:tr>
<a:tr><a:tc><a:txBody><a:p><a:r><a:t> </a:t></a:r></a:p></a:txBody></a:tc></a:tr>
</a:tbl></a:graphicData></a:graphic></p:graphicFrame>`
	slideTwo := `<p:sp><p:txBody><a:p><a:r><a:t>Second slide</a:t></a:r></a:p></p:txBody></p:sp>`

	// No slide-id list, so ordering falls back to the numeric suffix:
	// slide10 sorts after slide2 numerically, not lexically.
	data := buildZip(t, map[string]string{
		"ppt/slides/slide10.xml": strings.ReplaceAll(slideXMLTemplate, "%s", slideTwo),
		"ppt/slides/slide2.xml":  strings.ReplaceAll(slideXMLTemplate, "%s", slideOne),
		"ppt/presentation.xml":   "<p:presentation/>",
	})

	text, err := Extract(data, "deck.pptx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "--- Slide 1 ---\nTitle one\ncell a | cell b\n\n--- Slide 2 ---\nSecond slide"
	if text != want {
		t.Fatalf("expected %q, got %q", want, text)
	}
}

func TestExtractPPTXFollowsPresentationOrder(t *testing.T) {
	slideAlpha := `<p:sp><p:txBody><a:p><a:r><a:t>Alpha</a:t></a:r></a:p></p:txBody></p:sp>`
	slideBeta := `<p:sp><p:txBody><a:p><a:r><a:t>Beta</a:t></a:r></a:p></p:txBody></p:sp>`

	// The deck was reordered: the slide-id list puts slide2 before slide1,
	// and that list wins over the file numbering.
	presentation := `<?xml version="1.0"?>
<p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"
                xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<p:sldIdLst>
<p:sldId id="257" r:id="rId2"/>
<p:sldId id="256" r:id="rId1"/>
</p:sldIdLst>
</p:presentation>`
	rels := `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide1.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide2.xml"/>
</Relationships>`

	data := buildZip(t, map[string]string{
		"ppt/slides/slide1.xml":           strings.ReplaceAll(slideXMLTemplate, "%s", slideAlpha),
		"ppt/slides/slide2.xml":           strings.ReplaceAll(slideXMLTemplate, "%s", slideBeta),
		"ppt/presentation.xml":            presentation,
		"ppt/_rels/presentation.xml.rels": rels,
	})

	text, err := Extract(data, "reordered.pptx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "--- Slide 1 ---\nBeta\n\n--- Slide 2 ---\nAlpha"
	if text != want {
		t.Fatalf("expected %q, got %q", want, text)
	}
}

func TestExtractMalformedPPTX(t *testing.T) {
	_, err := Extract([]byte("still not a zip"), "deck.pptx")
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}
