package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripImagePrompt(t *testing.T) {
	assert.Equal(t, "Bir gün her şey yerine oturacak.",
		StripImagePrompt("Bir gün her şey yerine oturacak.\n\n**Görsel Prompu:** soft pastel background"))
	assert.Equal(t, "Hello", StripImagePrompt("Hello\nImage prompt: sunset"))
	assert.Equal(t, "Plain caption", StripImagePrompt("  Plain caption  "))
}

func TestFormatCaptionGroupsHashtags(t *testing.T) {
	got := FormatCaption("Caption text", []string{"#a", "b", "#c", "#d", "#e", " ", "#A"})
	assert.Equal(t, "Caption text\n\n#a #b #c #d\n#e", got)
}

func TestFormatCaptionWithoutHashtags(t *testing.T) {
	assert.Equal(t, "Only text", FormatCaption("Only text\nGörsel prompt: x", nil))
}
