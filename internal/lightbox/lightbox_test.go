package lightbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenClose(t *testing.T) {
	var lb Lightbox
	assert.False(t, lb.IsOpen())

	lb.Open(Slide{Src: "images/1.jpg", Alt: "cat", MessageID: 1})
	assert.True(t, lb.IsOpen())
	s, ok := lb.Current()
	assert.True(t, ok)
	assert.Equal(t, "images/1.jpg", s.Src)

	lb.Open(Slide{Src: "images/2.jpg"})
	s, _ = lb.Current()
	assert.Equal(t, "images/2.jpg", s.Src, "a second open replaces the slide")

	assert.False(t, lb.Next())
	assert.False(t, lb.Prev())
	s, _ = lb.Current()
	assert.Equal(t, "images/2.jpg", s.Src)

	lb.Close()
	assert.False(t, lb.IsOpen())
	_, ok = lb.Current()
	assert.False(t, ok)
}
