// Package lightbox is the single-image viewer opened from a row.
package lightbox

// Slide is the image shown by the viewer.
type Slide struct {
	Src       string `json:"src"`
	Alt       string `json:"alt"`
	MessageID int64  `json:"messageId"`
}

// Lightbox holds at most one open slide. Navigation between slides is
// disabled: the archive shows one image at a time.
type Lightbox struct {
	current *Slide
}

// Open shows s, replacing any open slide.
func (l *Lightbox) Open(s Slide) {
	l.current = &s
}

// Close hides the viewer.
func (l *Lightbox) Close() {
	l.current = nil
}

// IsOpen reports whether a slide is shown.
func (l *Lightbox) IsOpen() bool { return l.current != nil }

// Current returns the open slide.
func (l *Lightbox) Current() (Slide, bool) {
	if l.current == nil {
		return Slide{}, false
	}
	return *l.current, true
}

// Prev is disabled and always reports false.
func (l *Lightbox) Prev() bool { return false }

// Next is disabled and always reports false.
func (l *Lightbox) Next() bool { return false }
