package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	docxMainPart = "word/document.xml"
	wordMLNS     = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
)

// extractDOCX joins the non-empty paragraphs of a Word document with newlines
func extractDOCX(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX archive: %w", err)
	}

	part, err := archive.Open(docxMainPart)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", docxMainPart, err)
	}
	defer part.Close()

	return paragraphs(part)
}

// paragraphs collects the run text of each w:p directly under w:body.
// Paragraphs in tables and text boxes are not part of the body text.
func paragraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	body := xml.Name{Space: wordMLNS, Local: "body"}

	var (
		out     []string
		current strings.Builder
		stack   []xml.Name
		para    = -1 // stack depth of the open body paragraph
		nested  int
		inProps int
		inText  bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			var parent xml.Name
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			stack = append(stack, t.Name)
			if t.Name.Space != wordMLNS {
				continue
			}

			switch t.Name.Local {
			case "p":
				if para < 0 && parent == body {
					para = len(stack)
					current.Reset()
				} else if para >= 0 {
					nested++
				}
			case "pPr":
				inProps++
			case "t":
				inText = para >= 0 && nested == 0
			case "tab":
				// w:tab inside paragraph properties is a tab stop, not text
				if para >= 0 && nested == 0 && inProps == 0 {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if para >= 0 && nested == 0 {
					current.WriteByte('\n')
				}
			}
		case xml.EndElement:
			depth := len(stack)
			if depth > 0 {
				stack = stack[:depth-1]
			}
			if t.Name.Space != wordMLNS {
				continue
			}

			switch t.Name.Local {
			case "pPr":
				inProps--
			case "t":
				inText = false
			case "p":
				switch {
				case para >= 0 && depth == para:
					if current.Len() > 0 {
						out = append(out, current.String())
					}
					para = -1
				case nested > 0:
					nested--
				}
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}

	return strings.Join(out, "\n"), nil
}
