package highlight

import (
	"testing"

	"github.com/tchow-twistedxcom/tgarchive/internal/archive"
)

func prepared(t *testing.T, ocr string) []archive.Message {
	t.Helper()
	return archive.Prepare([]archive.Message{{ID: 1, Media: "images/1.jpg", OCR: ocr}})
}
