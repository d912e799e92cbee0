package node

import "errors"

var (
	ErrNotConnected      = errors.New("node channel is not connected")
	ErrChannelOpenFailed = errors.New("failed to open node channel")
	ErrDecodeFailure     = errors.New("failed to decode node frame")
	ErrResolutionFailed  = errors.New("track resolution failed")
	ErrNoTrackPlaying    = errors.New("no track is currently playing")
	ErrEmptyChannelID    = errors.New("voice channel id is empty")
)
