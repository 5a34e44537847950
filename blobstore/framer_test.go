package blobstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFramerRoundTrip(t *testing.T) {
	f := NewFramer()
	require.NoError(t, f.AddFrame([]byte("first")))
	require.NoError(t, f.AddFrame([]byte("second-frame")))
	require.NoError(t, f.AddFrame([]byte{}))

	blob, err := f.Seal()
	require.NoError(t, err)

	frames, err := UnframeAll(blob)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	require.Equal(t, []byte("first"), frames[0])
	require.Equal(t, []byte("second-frame"), frames[1])
	require.Empty(t, frames[2])
}

func TestFramerEmpty(t *testing.T) {
	f := NewFramer()
	blob, err := f.Seal()
	require.NoError(t, err)

	frames, err := UnframeAll(blob)
	require.NoError(t, err)
	require.Empty(t, frames)
}

func TestFramerRejectsFrameAfterSeal(t *testing.T) {
	f := NewFramer()
	_, err := f.Seal()
	require.NoError(t, err)

	err = f.AddFrame([]byte("too late"))
	require.Error(t, err)
}

func TestUnframeAllRejectsBadMagic(t *testing.T) {
	_, err := UnframeAll([]byte("not a frame blob!!"))
	require.Error(t, err)
}

func TestUnframeAllRejectsTruncated(t *testing.T) {
	f := NewFramer()
	require.NoError(t, f.AddFrame([]byte("data")))
	blob, err := f.Seal()
	require.NoError(t, err)

	_, err = UnframeAll(blob[:len(blob)-2])
	require.Error(t, err)
}
