package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/MrCodeEU/faceadmin/pkg/logging"
)

// maxFrameSize caps a single JPEG read from the pipe.
const maxFrameSize = 10 * 1024 * 1024

var execCommand = exec.Command

// deviceCamera streams MJPEG frames out of an ffmpeg child process. Only
// the newest frame is kept so a slow consumer never works on stale images.
type deviceCamera struct {
	device string
	cmd    *exec.Cmd

	frames     chan []byte
	done       chan struct{}
	readerDone chan struct{}

	mu      sync.Mutex
	readErr error

	closeOnce sync.Once
}

// DevicePath returns the V4L2 node for a camera index.
func DevicePath(index int) string {
	return fmt.Sprintf("/dev/video%d", index)
}

func ffmpegArgs(device string, opts Options) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", opts.InputFormat,
	}
	if opts.FPS > 0 {
		args = append(args, "-framerate", fmt.Sprintf("%d", opts.FPS))
	}
	if opts.Width > 0 && opts.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", opts.Width, opts.Height))
	}
	args = append(args,
		"-i", device,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"pipe:1",
	)
	return args
}

func openDevice(ctx context.Context, index int, opts Options) (Camera, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defaults := DefaultOptions()
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = defaults.FFmpegPath
	}
	if opts.InputFormat == "" {
		opts.InputFormat = defaults.InputFormat
	}

	device := DevicePath(index)
	cmd := execCommand(opts.FFmpegPath, ffmpegArgs(device, opts)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", ErrSourceUnavailable, err)
	}

	c := &deviceCamera{
		device:     device,
		cmd:        cmd,
		frames:     make(chan []byte, 1),
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
	}

	log := logging.Component("capture")
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.WithField("device", device).Debugf("ffmpeg: %s", scanner.Text())
		}
	}()
	go c.readLoop(stdout)

	log.Debugf("Opened %s via %s", device, opts.FFmpegPath)
	return c, nil
}

func (c *deviceCamera) readLoop(r io.Reader) {
	defer close(c.readerDone)
	defer close(c.frames)

	n, err := readJPEGFrames(bufio.NewReaderSize(r, 512*1024), c.publish)

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case errors.Is(err, errStopped):
		c.readErr = ErrClosed
	case n == 0:
		c.readErr = fmt.Errorf("%w: no frames from %s", ErrSourceUnavailable, c.device)
	case err == nil || errors.Is(err, io.EOF):
		c.readErr = ErrEndOfStream
	default:
		c.readErr = fmt.Errorf("read frames from %s: %w", c.device, err)
	}
}

var errStopped = errors.New("stopped")

// publish replaces any unread frame with frame.
func (c *deviceCamera) publish(frame []byte) error {
	for {
		select {
		case <-c.done:
			return errStopped
		case c.frames <- frame:
			return nil
		default:
		}
		select {
		case <-c.frames:
		default:
		}
	}
}

func (c *deviceCamera) NextFrame(ctx context.Context) ([]byte, error) {
	select {
	case <-c.done:
		return nil, ErrClosed
	default:
	}

	select {
	case frame, ok := <-c.frames:
		if !ok {
			c.mu.Lock()
			defer c.mu.Unlock()
			return nil, c.readErr
		}
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

// Close stops ffmpeg and waits for it to exit.
func (c *deviceCamera) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		<-c.readerDone
		_ = c.cmd.Wait()
		logging.Component("capture").Debugf("Released %s", c.device)
	})
	return nil
}

func (c *deviceCamera) Live() bool {
	return true
}

// readJPEGFrames splits a stream of concatenated JPEG images and hands each
// one to emit. It returns the number of frames read.
func readJPEGFrames(r *bufio.Reader, emit func([]byte) error) (int, error) {
	count := 0
	for {
		if err := findJPEGStart(r); err != nil {
			return count, err
		}

		frame, err := readUntilJPEGEnd(r)
		if err != nil {
			return count, err
		}

		count++
		if err := emit(frame); err != nil {
			return count, err
		}
	}
}

func findJPEGStart(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b != 0xFF {
			continue
		}
		b, err = r.ReadByte()
		if err != nil {
			return err
		}
		if b == 0xD8 {
			return nil
		}
		if b == 0xFF {
			_ = r.UnreadByte()
		}
	}
}

func readUntilJPEGEnd(r *bufio.Reader) ([]byte, error) {
	data := []byte{0xFF, 0xD8}

	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		data = append(data, b)

		for b == 0xFF {
			b, err = r.ReadByte()
			if err != nil {
				return nil, err
			}
			data = append(data, b)
			if b == 0xD9 {
				return data, nil
			}
		}

		if len(data) > maxFrameSize {
			return nil, fmt.Errorf("jpeg frame too large: %d bytes", len(data))
		}
	}
}
