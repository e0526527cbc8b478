package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
)

const docxBodyPart = "word/document.xml"

// docxExtractor reads paragraph text from the main document part of an OOXML package.
type docxExtractor struct{}

// extract returns paragraphs in document order joined with "\n". Empty paragraphs
// contribute empty lines; w:tab and w:br/w:cr inside a paragraph become "\t" and "\n".
func (docxExtractor) extract(ctx context.Context, blob []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return "", domain.CorruptDocument("failed to open DOCX package", err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == docxBodyPart {
			part = f
			break
		}
	}
	if part == nil {
		return "", domain.CorruptDocument("DOCX package has no "+docxBodyPart, nil)
	}

	rc, err := part.Open()
	if err != nil {
		return "", domain.CorruptDocument("failed to open "+docxBodyPart, err)
	}
	defer rc.Close()

	paragraphs, err := readParagraphs(ctx, rc)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", domain.CorruptDocument("failed to parse "+docxBodyPart, err)
	}

	return strings.Join(paragraphs, "\n"), nil
}

// readParagraphs streams WordprocessingML tokens and collects text per w:p element.
// Nested paragraphs (text boxes) are flattened into the enclosing one.
func readParagraphs(ctx context.Context, r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		depth      int
		inText     bool
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if depth == 0 {
					current.Reset()
				}
				depth++
			case "t":
				inText = depth > 0
			case "tab":
				if depth > 0 {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if depth > 0 {
					current.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if depth > 0 {
					depth--
					if depth == 0 {
						paragraphs = append(paragraphs, current.String())
					}
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}

	if depth != 0 {
		return nil, errors.New("unterminated paragraph")
	}
	return paragraphs, nil
}
