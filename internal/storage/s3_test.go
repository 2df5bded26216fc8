package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "pitch_deck.mp4", SanitizeFilename("pitch deck.mp4"))
	assert.Equal(t, "pitch_.._final.mov", SanitizeFilename("pitch/..\\final.mov"))
	assert.Equal(t, "d_mo.webm", SanitizeFilename("démo🎥.webm"))
	assert.Equal(t, "a_b.mp4", SanitizeFilename("a   b.mp4"))
}

func TestValidateVideo(t *testing.T) {
	assert.NoError(t, ValidateVideo("pitch.mp4", "video/mp4", 1024))
	assert.ErrorIs(t, ValidateVideo("pitch.mp4", "video/mp4", 0), ErrEmptyFile)
	assert.ErrorIs(t, ValidateVideo("pitch.mp4", "video/mp4", MaxVideoSize+1), ErrFileTooLarge)
	assert.ErrorIs(t, ValidateVideo("pitch.exe", "video/mp4", 1024), ErrInvalidFileType)
	assert.ErrorIs(t, ValidateVideo("pitch.mp4", "application/octet-stream", 1024), ErrInvalidFileType)
}

func TestValidateImage(t *testing.T) {
	assert.NoError(t, ValidateImage("image/png", 1024))
	assert.ErrorIs(t, ValidateImage("image/gif", 1024), ErrInvalidFileType)
	assert.ErrorIs(t, ValidateImage("image/png", MaxImageSize+1), ErrFileTooLarge)
}

func TestObjectKeys(t *testing.T) {
	assert.Equal(t, "submissions/3/9/video.mov", VideoKey(3, 9, "My Pitch.MOV"))
	assert.Equal(t, "submissions/3/9/video.mp4", VideoKey(3, 9, "noext"))
	assert.Equal(t, "avatars/5/avatar.png", AvatarKey(5, "me.png"))
	assert.Equal(t, "competitions/2/image.jpg", CompetitionImageKey(2, "banner.JPG"))
}
