package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
)

// pdfExtractor reads page text with MuPDF via go-fitz.
type pdfExtractor struct{}

// extract joins per-page text with "\n" in page order. Pages without a text layer contribute "".
func (pdfExtractor) extract(ctx context.Context, blob []byte) (string, error) {
	doc, err := fitz.NewFromMemory(blob)
	if err != nil {
		return "", domain.CorruptDocument("failed to open PDF", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	pages := make([]string, 0, pageCount)

	for pageNum := 0; pageNum < pageCount; pageNum++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := doc.Text(pageNum)
		if err != nil {
			return "", domain.CorruptDocument(fmt.Sprintf("failed to read page %d", pageNum+1), err)
		}
		pages = append(pages, strings.TrimRight(text, "\n"))
	}

	return strings.Join(pages, "\n"), nil
}
