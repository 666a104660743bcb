package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var slideNameRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// extractPPTX walks every slide in presentation order. Each slide emits a
// boundary marker followed by the text-frame paragraphs and table rows of its
// shapes, in shape order; slides are separated by a blank line.
func extractPPTX(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open pptx: %v", ErrParse, err)
	}

	byName := make(map[string]*zip.File)
	for _, file := range archive.File {
		if slideNameRe.MatchString(file.Name) {
			byName[file.Name] = file
		}
	}

	slides := orderedSlides(archive, byName)

	texts := make([]string, 0, len(slides))
	for i, file := range slides {
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("%w: open %s: %v", ErrParse, file.Name, err)
		}
		var root xmlNode
		decodeErr := xml.NewDecoder(rc).Decode(&root)
		rc.Close()
		if decodeErr != nil {
			return "", fmt.Errorf("%w: parse %s: %v", ErrParse, file.Name, decodeErr)
		}

		parts := []string{fmt.Sprintf("--- Slide %d ---", i+1)}
		parts = append(parts, slideParts(&root)...)
		texts = append(texts, strings.Join(parts, "\n"))
	}
	return strings.Join(texts, "\n\n"), nil
}

type presentationXML struct {
	SlideIDs []struct {
		RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
}

type relationshipsXML struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// orderedSlides returns the slide parts in the order the presentation shows
// them: the sldIdLst in presentation.xml is authoritative and survives slide
// reordering, while the slideN.xml numbering only reflects creation order.
// Decks without a usable slide-id list fall back to the numeric suffix.
func orderedSlides(archive *zip.Reader, byName map[string]*zip.File) []*zip.File {
	ordered := make([]*zip.File, 0, len(byName))

	var pres presentationXML
	var rels relationshipsXML
	if decodeZipXML(archive, "ppt/presentation.xml", &pres) == nil &&
		decodeZipXML(archive, "ppt/_rels/presentation.xml.rels", &rels) == nil {
		targets := make(map[string]string, len(rels.Relationships))
		for _, rel := range rels.Relationships {
			targets[rel.ID] = rel.Target
		}

		for _, sld := range pres.SlideIDs {
			name := resolveSlideTarget(targets[sld.RID])
			file, ok := byName[name]
			if !ok {
				ordered = ordered[:0]
				break
			}
			ordered = append(ordered, file)
		}
		if len(ordered) == len(byName) {
			return ordered
		}
	}

	ordered = ordered[:0]
	for _, file := range byName {
		ordered = append(ordered, file)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return slideNumber(ordered[i].Name) < slideNumber(ordered[j].Name)
	})
	return ordered
}

// resolveSlideTarget normalizes a relationship target, which is relative to
// ppt/ unless rooted, to the archive entry name.
func resolveSlideTarget(target string) string {
	if target == "" {
		return ""
	}
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return "ppt/" + target
}

func slideNumber(name string) int {
	m := slideNameRe.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func decodeZipXML(archive *zip.Reader, name string, out any) error {
	rc, err := archive.Open(name)
	if err != nil {
		return err
	}
	defer rc.Close()
	return xml.NewDecoder(rc).Decode(out)
}

// xmlNode is a generic element tree; it preserves document order, which is
// what gives us shape order within a slide.
type xmlNode struct {
	XMLName  xml.Name
	Text     string    `xml:",chardata"`
	Children []xmlNode `xml:",any"`
}

// slideParts collects one line per non-empty text-frame paragraph and one per
// non-empty table row (cells joined by " | ").
func slideParts(node *xmlNode) []string {
	switch node.XMLName.Local {
	case "txBody":
		parts := make([]string, 0)
		for i := range node.Children {
			child := &node.Children[i]
			if child.XMLName.Local != "p" {
				continue
			}
			if line := strings.TrimSpace(nodeText(child)); line != "" {
				parts = append(parts, line)
			}
		}
		return parts
	case "tbl":
		parts := make([]string, 0)
		for i := range node.Children {
			row := &node.Children[i]
			if row.XMLName.Local != "tr" {
				continue
			}
			cells := make([]string, 0)
			for j := range row.Children {
				cell := &row.Children[j]
				if cell.XMLName.Local != "tc" {
					continue
				}
				if text := strings.TrimSpace(nodeText(cell)); text != "" {
					cells = append(cells, text)
				}
			}
			if len(cells) > 0 {
				parts = append(parts, strings.Join(cells, " | "))
			}
		}
		return parts
	}

	parts := make([]string, 0)
	for i := range node.Children {
		parts = append(parts, slideParts(&node.Children[i])...)
	}
	return parts
}

// nodeText concatenates every <a:t> run beneath the node.
func nodeText(node *xmlNode) string {
	if node.XMLName.Local == "t" {
		return node.Text
	}
	var sb strings.Builder
	for i := range node.Children {
		sb.WriteString(nodeText(&node.Children[i]))
	}
	return sb.String()
}
