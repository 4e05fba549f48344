package voice

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoSource captures the default microphone through miniaudio. Frames
// are requested as float32 so the PCM conversion (and its clamping) stays
// in one place.
type MalgoSource struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	// partial frame carried between device callbacks
	pending []float32
}

// NewMalgoSource returns an unstarted source. The audio context is created
// per Start so a stopped source holds no device handles.
func NewMalgoSource() *MalgoSource {
	return &MalgoSource{}
}

// Start opens the capture device. Mono, float32, realtime priority. Echo
// cancellation and noise suppression are left to the OS capture stack;
// miniaudio exposes no toggles for them.
func (m *MalgoSource) Start(sampleRate, frameSamples int, onFrame func(samples []float32)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return fmt.Errorf("capture source already started")
	}

	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	allocated, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return fmt.Errorf("%w: init audio context: %v", ErrMicrophoneAccess, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	m.pending = m.pending[:0]
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			m.pending = append(m.pending, DecodeF32LE(input)...)
			for len(m.pending) >= frameSamples {
				frame := make([]float32, frameSamples)
				copy(frame, m.pending[:frameSamples])
				m.pending = m.pending[frameSamples:]
				onFrame(frame)
			}
		},
	}

	device, err := malgo.InitDevice(allocated.Context, deviceConfig, callbacks)
	if err != nil {
		_ = allocated.Uninit()
		return fmt.Errorf("%w: init capture device: %v", ErrMicrophoneAccess, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = allocated.Uninit()
		return fmt.Errorf("%w: start capture device: %v", ErrMicrophoneAccess, err)
	}

	m.ctx = allocated
	m.device = device
	return nil
}

// Stop releases the device and audio context. Safe to call repeatedly.
func (m *MalgoSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		_ = m.device.Stop()
		m.device.Uninit()
		m.device = nil
	}
	if m.ctx != nil {
		_ = m.ctx.Uninit()
		m.ctx = nil
	}
	m.pending = nil
	return nil
}
