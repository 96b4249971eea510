package capture

import (
	"context"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rotisserie/eris"
)

// AudioConfig selects and shapes the PortAudio input stream.
type AudioConfig struct {
	// DeviceIndex is the PortAudio device index; negative selects the
	// system default input device.
	DeviceIndex int
	FrameSize   int
	Channels    int
	// SampleRate of 0 uses the device default.
	SampleRate float64
	// Latency of 0 uses the device's default low input latency.
	Latency time.Duration
}

// AudioSource captures audio frames from a PortAudio input stream. The
// PortAudio callback hands frames off with latest-wins semantics so a slow
// consumer never blocks the audio thread.
type AudioSource struct {
	stream     *portaudio.Stream
	frames     chan Batch
	channels   int
	sampleRate float64
}

// NewAudioSource resolves the configured input device and opens the capture
// stream. The caller must have initialized PortAudio. The returned source is
// not started; call Start before NextBatch.
func NewAudioSource(cfg AudioConfig) (*AudioSource, error) {
	device, err := resolveInputDevice(cfg.DeviceIndex)
	if err != nil {
		return nil, err
	}
	if device.MaxInputChannels < 1 {
		return nil, eris.Errorf("device %q has no input channels; select a loopback/monitor device", device.Name)
	}

	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}
	if channels > device.MaxInputChannels {
		channels = device.MaxInputChannels
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = device.DefaultSampleRate
	}
	if sampleRate <= 0 {
		sampleRate = 44100
	}

	frameSize := cfg.FrameSize
	if frameSize <= 0 {
		frameSize = 1024
	}

	src := &AudioSource{
		frames:     make(chan Batch, 4),
		channels:   channels,
		sampleRate: sampleRate,
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: frameSize,
	}
	if cfg.Latency > 0 {
		params.Input.Latency = cfg.Latency
	}

	stream, err := portaudio.OpenStream(params, src.onFrame)
	if err != nil {
		return nil, eris.Wrap(err, "open audio stream")
	}
	src.stream = stream

	return src, nil
}

func resolveInputDevice(index int) (*portaudio.DeviceInfo, error) {
	if index < 0 {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, eris.Wrap(err, "resolve default audio input device")
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, eris.Wrap(err, "enumerate audio devices")
	}
	if index >= len(devices) {
		return nil, eris.Errorf("invalid audio device index %d (have %d devices)", index, len(devices))
	}
	return devices[index], nil
}

func (s *AudioSource) onFrame(in []float32) {
	samples := make([]float32, len(in))
	copy(samples, in)

	Offer(s.frames, Batch{
		Type:       SourceAudio,
		Timestamp:  time.Now(),
		Samples:    samples,
		Channels:   s.channels,
		SampleRate: s.sampleRate,
	})
}

// Start begins capturing.
func (s *AudioSource) Start() error {
	if err := s.stream.Start(); err != nil {
		return eris.Wrap(err, "start audio stream")
	}
	return nil
}

// SampleRate returns the effective capture sample rate.
func (s *AudioSource) SampleRate() float64 {
	return s.sampleRate
}

// NextBatch returns the next captured frame or ctx's error on cancellation.
func (s *AudioSource) NextBatch(ctx context.Context) (Batch, error) {
	select {
	case <-ctx.Done():
		return Batch{}, ctx.Err()
	case batch := <-s.frames:
		return batch, nil
	}
}

// Close stops and releases the stream.
func (s *AudioSource) Close() error {
	if err := s.stream.Stop(); err != nil {
		return eris.Wrap(err, "stop audio stream")
	}
	return s.stream.Close()
}
