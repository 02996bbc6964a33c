package x11

import (
	"errors"
	"testing"

	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"

	"github.com/shelepuginivan/xpanel"
)

func TestDesktopConversion(t *testing.T) {
	assert.Equal(t, xpanel.AllDesktops, fromDesktop(0xFFFFFFFF))
	assert.Equal(t, 3, fromDesktop(3))

	assert.Equal(t, uint(0xFFFFFFFF), toDesktop(xpanel.AllDesktops))
	assert.Equal(t, uint(2), toDesktop(2))
}

func TestConfigureValues(t *testing.T) {
	mask, values := configureValues(xpanel.Rect{X: -4, Y: 10, Width: 22, Height: 0})

	assert.Equal(t, uint16(xproto.ConfigWindowX|xproto.ConfigWindowY|
		xproto.ConfigWindowWidth|xproto.ConfigWindowHeight), mask)
	assert.Equal(t, []uint32{0xFFFFFFFC, 10, 22, 1}, values)
}

func TestToUint32(t *testing.T) {
	assert.Equal(t, []uint32{1, 2, 0xFFFFFFFF}, toUint32([]uint{1, 2, 0xFFFFFFFF}))
	assert.Empty(t, toUint32(nil))
}

func TestWrapError(t *testing.T) {
	err := wrapError(10, xproto.WindowError{BadValue: 10})
	assert.ErrorIs(t, err, xpanel.ErrWindowGone)

	err = wrapError(10, xproto.DrawableError{BadValue: 10})
	assert.ErrorIs(t, err, xpanel.ErrWindowGone)

	err = wrapError(10, errors.New("boom"))
	assert.NotErrorIs(t, err, xpanel.ErrWindowGone)
	assert.ErrorContains(t, err, "window 10: boom")
}
