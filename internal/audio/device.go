// Package audio implements a software audio device: a dedicated audio
// thread that mixes one buffer per period and hands it to a post-mix hook
// before it reaches the sink.
package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/corrreia/hostbridge/internal/runtime"
)

var (
	ErrDeviceRunning = errors.New("audio: device already running")
	ErrDeviceClosed  = errors.New("audio: device closed")
	ErrInvalidSpec   = errors.New("audio: invalid spec")
)

// Spec describes the device format. Samples are signed 16-bit little endian.
type Spec struct {
	SampleRate int
	Channels   int
	Samples    int // frames per buffer
}

// BytesPerFrame returns the size of one frame across all channels
func (s Spec) BytesPerFrame() int {
	return s.Channels * 2
}

// BufferSize returns the size in bytes of one mix buffer
func (s Spec) BufferSize() int {
	return s.Samples * s.BytesPerFrame()
}

// Period returns the playback duration of one buffer
func (s Spec) Period() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(s.Samples) * time.Second / time.Duration(s.SampleRate)
}

func (s Spec) valid() bool {
	return s.SampleRate > 0 && s.Channels > 0 && s.Samples > 0
}

// Hook post-processes a mixed buffer in place
type Hook func(stream []byte)

// Source mixes samples into stream
type Source func(stream []byte)

// Sink consumes a finished buffer
type Sink func(stream []byte)

// Device is a software audio device with its own audio thread
type Device struct {
	spec   Spec
	source Source
	sink   Sink

	hookMu sync.RWMutex
	hook   Hook

	mixMu  sync.Mutex
	buffer []byte

	stateMu sync.Mutex
	running bool
	closed  bool
	stop    chan struct{}
	done    chan struct{}
}

// NewDevice creates a stopped device. source and sink may be nil.
func NewDevice(spec Spec, source Source, sink Sink) (*Device, error) {
	if !spec.valid() {
		return nil, ErrInvalidSpec
	}
	return &Device{
		spec:   spec,
		source: source,
		sink:   sink,
		buffer: make([]byte, spec.BufferSize()),
	}, nil
}

// Spec returns the device format
func (d *Device) Spec() Spec {
	return d.spec
}

// SetPostMixHook installs the hook run on every mixed buffer. nil removes it.
func (d *Device) SetPostMixHook(h Hook) {
	d.hookMu.Lock()
	d.hook = h
	d.hookMu.Unlock()
}

// Start launches the audio thread
func (d *Device) Start() error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	if d.closed {
		return ErrDeviceClosed
	}
	if d.running {
		return ErrDeviceRunning
	}

	d.running = true
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.thread(d.stop, d.done)
	return nil
}

// Close stops the audio thread and waits for the current buffer to finish
func (d *Device) Close() {
	d.stateMu.Lock()
	if d.closed {
		d.stateMu.Unlock()
		return
	}
	d.closed = true
	running := d.running
	d.running = false
	stop, done := d.stop, d.done
	d.stateMu.Unlock()

	if running {
		close(stop)
		<-done
	}
}

func (d *Device) thread(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.spec.Period())
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.MixOnce()
		}
	}
}

// MixOnce produces one buffer: silence, then the source, then the post-mix
// hook, then the sink. The audio thread calls it once per period.
func (d *Device) MixOnce() {
	d.mixMu.Lock()
	defer d.mixMu.Unlock()

	buf := d.buffer
	clear(buf)

	if d.source != nil {
		d.source(buf)
	}

	d.hookMu.RLock()
	hook := d.hook
	d.hookMu.RUnlock()

	if hook != nil {
		runtime.SafeCall("post-mix hook", func() {
			hook(buf)
		})
	}

	if d.sink != nil {
		d.sink(buf)
	}
}

// Tone returns a source that writes a sine wave at freq Hz with the given
// amplitude (0..1) to every channel.
func Tone(spec Spec, freq, amplitude float64) Source {
	var phase float64
	step := 2 * math.Pi * freq / float64(spec.SampleRate)
	frame := spec.BytesPerFrame()

	return func(stream []byte) {
		for off := 0; off+frame <= len(stream); off += frame {
			v := int16(math.Sin(phase) * amplitude * math.MaxInt16)
			for ch := 0; ch < spec.Channels; ch++ {
				binary.LittleEndian.PutUint16(stream[off+ch*2:], uint16(v))
			}
			phase += step
			if phase >= 2*math.Pi {
				phase -= 2 * math.Pi
			}
		}
	}
}

// Gain scales every signed 16-bit little endian sample in stream in place,
// clipping at the sample range.
func Gain(stream []byte, factor float64) {
	for off := 0; off+1 < len(stream); off += 2 {
		v := float64(int16(binary.LittleEndian.Uint16(stream[off:]))) * factor
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(stream[off:], uint16(int16(v)))
	}
}
