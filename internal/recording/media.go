package recording

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// defaultMediaType is the format recordings are requested in.
const defaultMediaType = "video/mp4"

// mediaType sniffs the MIME type of a downloaded artifact. Content that is
// not recognisably audio or video is labelled with defaultMediaType.
func mediaType(data []byte) string {
	m := mimetype.Detect(data)
	base, _, _ := strings.Cut(m.String(), ";")
	if strings.HasPrefix(base, "video/") || strings.HasPrefix(base, "audio/") {
		return base
	}
	return defaultMediaType
}
