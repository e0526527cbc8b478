package extract

import (
	"bytes"
	"context"
	"unicode/utf8"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// textExtractor decodes plain text as strict UTF-8.
type textExtractor struct{}

func (textExtractor) extract(_ context.Context, blob []byte) (string, error) {
	blob = bytes.TrimPrefix(blob, utf8BOM)
	if !utf8.Valid(blob) {
		return "", domain.DecodeError("text is not valid UTF-8", nil)
	}
	return string(blob), nil
}
