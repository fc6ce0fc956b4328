// Package capture provides the frame sources used by enrollment and
// authentication: a live camera read through ffmpeg, a single still image,
// or a finite sequence of uploaded images.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// Kind selects the variant of a Source.
type Kind int

const (
	KindLiveDevice Kind = iota
	KindStaticImage
	KindFrameSequence
)

func (k Kind) String() string {
	switch k {
	case KindLiveDevice:
		return "camera"
	case KindStaticImage:
		return "image"
	case KindFrameSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Source describes where frames come from. Build it with LiveDevice,
// StaticImage, StaticImageBytes or FrameSequence.
type Source struct {
	Kind   Kind
	Device int
	Path   string
	Data   []byte
	Frames [][]byte
}

// LiveDevice selects the video device /dev/video<index>.
func LiveDevice(index int) Source {
	return Source{Kind: KindLiveDevice, Device: index}
}

// StaticImage selects an encoded image file on disk.
func StaticImage(path string) Source {
	return Source{Kind: KindStaticImage, Path: path}
}

// StaticImageBytes selects an encoded image already in memory.
func StaticImageBytes(data []byte) Source {
	return Source{Kind: KindStaticImage, Data: data}
}

// FrameSequence selects a finite list of encoded images, read in order.
func FrameSequence(frames [][]byte) Source {
	return Source{Kind: KindFrameSequence, Frames: frames}
}

func (s Source) String() string {
	switch s.Kind {
	case KindLiveDevice:
		return fmt.Sprintf("camera %d", s.Device)
	case KindStaticImage:
		if s.Path != "" {
			return "image " + s.Path
		}
		return fmt.Sprintf("image (%d bytes)", len(s.Data))
	case KindFrameSequence:
		return fmt.Sprintf("sequence of %d frames", len(s.Frames))
	default:
		return "unknown source"
	}
}

// Validate checks that the variant carries what it needs.
func (s Source) Validate() error {
	switch s.Kind {
	case KindLiveDevice:
		if s.Device < 0 {
			return fmt.Errorf("%w: negative device index %d", ErrInvalidSource, s.Device)
		}
	case KindStaticImage:
		if s.Path == "" && len(s.Data) == 0 {
			return fmt.Errorf("%w: image source has no data", ErrInvalidSource)
		}
	case KindFrameSequence:
		if len(s.Frames) == 0 {
			return fmt.Errorf("%w: empty frame sequence", ErrInvalidSource)
		}
	default:
		return fmt.Errorf("%w: kind %d", ErrInvalidSource, s.Kind)
	}
	return nil
}

// Camera yields encoded frames until the source is exhausted.
type Camera interface {
	// NextFrame blocks until a frame is available, the source ends
	// (ErrEndOfStream) or ctx is done.
	NextFrame(ctx context.Context) ([]byte, error)
	Close() error
	// Live reports whether callers should keep polling frames. It is
	// false only for a single still image.
	Live() bool
}

// Opener resolves a Source into a Camera.
type Opener interface {
	Open(ctx context.Context, src Source) (Camera, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, src Source) (Camera, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, src Source) (Camera, error) {
	return f(ctx, src)
}

// Options configures live device capture.
type Options struct {
	FFmpegPath  string
	InputFormat string
	Width       int
	Height      int
	FPS         int
}

// DefaultOptions returns the settings used when none are configured.
func DefaultOptions() Options {
	return Options{
		FFmpegPath:  "ffmpeg",
		InputFormat: "v4l2",
		Width:       640,
		Height:      480,
		FPS:         15,
	}
}

// DeviceOpener opens sources with fixed live capture options.
type DeviceOpener struct {
	Options Options
}

// Open implements Opener.
func (o DeviceOpener) Open(ctx context.Context, src Source) (Camera, error) {
	return Open(ctx, src, o.Options)
}

// ErrInvalidSource is returned for a Source missing its payload.
var ErrInvalidSource = errors.New("invalid capture source")

// ErrSourceUnavailable is returned when the device or file cannot be read.
var ErrSourceUnavailable = errors.New("capture source unavailable")

// ErrEndOfStream is returned once a finite source has no more frames.
var ErrEndOfStream = errors.New("end of stream")

// ErrClosed is returned by NextFrame after Close.
var ErrClosed = errors.New("capture closed")

// Open resolves src into a Camera. The caller must Close it.
func Open(ctx context.Context, src Source, opts Options) (Camera, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	switch src.Kind {
	case KindStaticImage:
		data := src.Data
		if src.Path != "" {
			b, err := os.ReadFile(src.Path)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
			}
			data = b
		}
		return &frameList{frames: [][]byte{data}, live: false}, nil
	case KindFrameSequence:
		return &frameList{frames: src.Frames, live: true}, nil
	default:
		return openDevice(ctx, src.Device, opts)
	}
}

// frameList serves frames from memory.
type frameList struct {
	mu     sync.Mutex
	frames [][]byte
	next   int
	live   bool
	closed bool
}

func (f *frameList) NextFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrClosed
	}
	if f.next >= len(f.frames) {
		return nil, ErrEndOfStream
	}
	frame := f.frames[f.next]
	f.next++
	return frame, nil
}

func (f *frameList) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *frameList) Live() bool {
	return f.live
}
