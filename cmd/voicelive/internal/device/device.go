// Package device opens the host's default microphone and speaker through
// PortAudio for voicelive engines.
package device

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stylehub-project/news-sub000/pkg/audio/capture"
	"github.com/stylehub-project/news-sub000/pkg/audio/pcm"
	"github.com/stylehub-project/news-sub000/pkg/audio/portaudio"
	"github.com/stylehub-project/news-sub000/pkg/voicelive"
)

// Microphone opens the default input device.
func Microphone() capture.Opener {
	return capture.OpenerFunc(func(ctx context.Context, f pcm.Format, frames int) (capture.Device, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		in, err := portaudio.NewInputStream(f, frames)
		if err != nil {
			return nil, Classify(err)
		}
		return in, nil
	})
}

// Speaker opens the default output device.
func Speaker() voicelive.OutputOpener {
	return voicelive.OutputOpenerFunc(func(ctx context.Context, f pcm.Format, frames int) (voicelive.OutputDevice, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := portaudio.NewOutputStream(f, frames)
		if err != nil {
			return nil, fmt.Errorf("speaker: %w", err)
		}
		return out, nil
	})
}

// Classify maps a PortAudio open error to the capture sentinels. Host audio
// stacks report a refused microphone only as error text.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, capture.ErrPermissionDenied) || errors.Is(err, capture.ErrDeviceUnavailable) {
		return err
	}
	text := strings.ToLower(err.Error())
	if strings.Contains(text, "permission") || strings.Contains(text, "denied") || strings.Contains(text, "not authorized") {
		return fmt.Errorf("%w: %w", capture.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %w", capture.ErrDeviceUnavailable, err)
}
