package player

import (
	"strconv"
	"strings"
	"time"

	"github.com/giongto35/voice-relay/pkg/bridge"
	"github.com/pkg/errors"
)

var silenceFrame = []byte{0xf8, 0xff, 0xfe}

const silenceFrameTime = 20 * time.Millisecond

// Silence is an AudioManager that plays opus silence,
// identifiers look like silence:10s.
type Silence struct{}

func (Silence) Load(identifier string) (bridge.SendHandler, error) {
	length, ok := strings.CutPrefix(identifier, "silence:")
	if !ok {
		return nil, errors.Errorf("unknown track %q", identifier)
	}
	d, err := time.ParseDuration(length)
	if err != nil {
		if n, err2 := strconv.Atoi(length); err2 == nil {
			d, err = time.Duration(n)*time.Second, nil
		}
	}
	if err != nil || d <= 0 {
		return nil, errors.Errorf("bad silence length %q", length)
	}
	frames := int(d / silenceFrameTime)
	return bridge.SendHandlerFunc(func() ([]byte, time.Duration, bool) {
		if frames <= 0 {
			return nil, 0, false
		}
		frames--
		return silenceFrame, silenceFrameTime, true
	}), nil
}
