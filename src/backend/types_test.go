package backend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"screen-capture/src/screenshot"
)

func TestQualityPresets(t *testing.T) {
	assert.Equal(t, 720, QualityLow.MaxHeight())
	assert.Equal(t, 1080, QualityMedium.MaxHeight())
	assert.Equal(t, 0, QualityHigh.MaxHeight())
	assert.Equal(t, 8_000_000, QualityMedium.Bitrate())
	assert.Equal(t, QualityLow, ParseQuality(" LOW "))
	assert.Equal(t, QualityHigh, ParseQuality("ultra"))
}

func TestDefaultRecordingConfig(t *testing.T) {
	cfg := DefaultRecordingConfig()
	assert.Equal(t, 60, cfg.FPS)
	assert.True(t, cfg.IncludeCursor)
	assert.True(t, cfg.ShowMouseClicks)
	assert.False(t, cfg.IncludeMicrophone)
	assert.True(t, cfg.IncludeSystemAudio)
	assert.True(t, cfg.ExcludeAppAudio)
	assert.NoError(t, cfg.Validate())

	cfg.Quality = "bogus"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestTargetValidate(t *testing.T) {
	assert.NoError(t, Fullscreen(AllDisplays).Validate())
	assert.NoError(t, Area(screenshot.Region{Width: 10, Height: 10}, 0).Validate())
	assert.ErrorIs(t, Target{Kind: "nope"}.Validate(), ErrInvalidConfig)
	assert.Equal(t, "fullscreen (all displays)", Fullscreen(AllDisplays).String())
	assert.Equal(t, "window 7", Window(7).String())
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := wrap(ErrStorage, cause)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "storage error: disk full", err.Error())

	assert.Same(t, err, wrap(ErrCaptureFailed, err), "already tagged errors keep their kind")
	assert.Nil(t, wrap(ErrStorage, nil))
	assert.Equal(t, "recording not active", (&Error{Kind: ErrRecordingNotActive}).Error())
}
