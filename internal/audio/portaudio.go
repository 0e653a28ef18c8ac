package audio

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	apperrors "github.com/GriffinCanCode/vadrec/internal/errors"
)

// DeviceInfo describes an input device.
type DeviceInfo struct {
	Name              string  `json:"name"`
	MaxInputChannels  int     `json:"max_input_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
	IsDefault         bool    `json:"is_default"`
	Loopback          bool    `json:"loopback"`
}

// PortAudio acquires the microphone through PortAudio.
type PortAudio struct {
	cfg          StreamConfig
	device       string
	excludedDevs []string
	framesPerBuf int
}

// NewPortAudio creates a PortAudio source. device pins an input by
// case-insensitive substring; excluded names are never chosen.
func NewPortAudio(cfg StreamConfig, device string, excluded []string) *PortAudio {
	return &PortAudio{
		cfg:          cfg,
		device:       device,
		excludedDevs: excluded,
		framesPerBuf: FramesPerBuffer,
	}
}

// Acquire opens and starts the selected input device.
func (p *PortAudio) Acquire(ctx context.Context) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMicUnavailable, "audio subsystem unavailable")
	}

	dev, err := p.pickDevice()
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(p.cfg.SampleRate),
		FramesPerBuffer: p.framesPerBuf,
	}

	buf := make([]int16, p.framesPerBuf)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, apperrors.Wrap(err, apperrors.CodeMicUnavailable, "open input device").WithMetadata("device", dev.Name)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, apperrors.Wrap(err, apperrors.CodeMicUnavailable, "start input device").WithMetadata("device", dev.Name)
	}

	slog.Info("started audio capture", "device", dev.Name, "sample_rate", p.cfg.SampleRate)

	cfg := p.cfg
	cfg.Device = dev.Name
	return NewStream(&paInput{stream: stream, buf: buf}, cfg), nil
}

func (p *PortAudio) pickDevice() (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMicUnavailable, "enumerate devices")
	}

	def, _ := portaudio.DefaultInputDevice()

	var pinned, fallback, mic *portaudio.DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels < 1 || p.isExcluded(dev.Name) || isLoopback(dev.Name) {
			continue
		}
		if p.device != "" {
			if containsIgnoreCase(dev.Name, p.device) && pinned == nil {
				pinned = dev
			}
			continue
		}
		if def != nil && dev.Name == def.Name {
			return dev, nil
		}
		if isMicrophone(dev.Name) {
			if mic == nil || preferDevice(dev.Name, mic.Name) {
				mic = dev
			}
		} else if fallback == nil {
			fallback = dev
		}
	}

	switch {
	case p.device != "" && pinned != nil:
		return pinned, nil
	case p.device != "":
		return nil, apperrors.Newf(apperrors.CodeMicUnavailable, "input device %q not found", p.device)
	case mic != nil:
		return mic, nil
	case fallback != nil:
		return fallback, nil
	}
	return nil, apperrors.New(apperrors.CodeMicUnavailable, "no input device available")
}

func (p *PortAudio) isExcluded(name string) bool {
	for _, ex := range p.excludedDevs {
		if containsIgnoreCase(name, ex) {
			return true
		}
	}
	return false
}

// Devices lists input-capable devices.
func Devices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMicUnavailable, "audio subsystem unavailable")
	}
	defer func() { _ = portaudio.Terminate() }()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMicUnavailable, "enumerate devices")
	}
	def, _ := portaudio.DefaultInputDevice()

	var out []DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels < 1 {
			continue
		}
		out = append(out, DeviceInfo{
			Name:              dev.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			IsDefault:         def != nil && def.Name == dev.Name,
			Loopback:          isLoopback(dev.Name),
		})
	}
	return out, nil
}

// paInput reads a started PortAudio stream.
type paInput struct {
	stream   *portaudio.Stream
	buf      []int16
	stopOnce sync.Once
	mu       sync.Mutex
	closed   bool
}

func (in *paInput) Read() ([]int16, error) {
	in.mu.Lock()
	closed := in.closed
	in.mu.Unlock()
	if closed {
		return nil, ErrInputClosed
	}

	if err := in.stream.Read(); err != nil && err != portaudio.InputOverflowed {
		return nil, err
	}
	return append([]int16(nil), in.buf...), nil
}

func (in *paInput) Close() error {
	var err error
	in.stopOnce.Do(func() {
		in.mu.Lock()
		in.closed = true
		in.mu.Unlock()

		_ = in.stream.Stop()
		err = in.stream.Close()
		_ = portaudio.Terminate()
	})
	return err
}

var (
	loopbackKeywords   = []string{"blackhole", "vb-cable", "loopback", "monitor", "soundflower"}
	microphoneKeywords = []string{"microphone", "input", "mic", "built-in"}
	preferredKeywords  = []string{"macbook", "built-in"}
)

func isLoopback(name string) bool {
	for _, kw := range loopbackKeywords {
		if containsIgnoreCase(name, kw) {
			return true
		}
	}
	return false
}

func isMicrophone(name string) bool {
	for _, kw := range microphoneKeywords {
		if containsIgnoreCase(name, kw) {
			return true
		}
	}
	return false
}

// preferDevice reports whether name should replace current.
func preferDevice(name, current string) bool {
	for _, p := range preferredKeywords {
		if containsIgnoreCase(name, p) && !containsIgnoreCase(current, p) {
			return true
		}
	}
	return false
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
