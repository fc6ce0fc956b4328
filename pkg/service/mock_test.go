package service

import (
	"context"

	"github.com/MrCodeEU/faceadmin/pkg/recognition"
)

// MockEngine implements recognition.Engine for testing
type MockEngine struct {
	DetectFunc  func(frame []byte) (recognition.Region, bool, error)
	ExtractFunc func(frame []byte, region recognition.Region) (recognition.Embedding, bool, error)
	Loaded      bool
	Closed      bool
}

func (m *MockEngine) Detect(frame []byte) (recognition.Region, bool, error) {
	if m.DetectFunc != nil {
		return m.DetectFunc(frame)
	}
	return recognition.Region{X: 4, Y: 4, Width: 16, Height: 16}, true, nil
}

func (m *MockEngine) Extract(frame []byte, region recognition.Region) (recognition.Embedding, bool, error) {
	if m.ExtractFunc != nil {
		return m.ExtractFunc(frame, region)
	}
	return make(recognition.Embedding, 128), true, nil
}

func (m *MockEngine) IsLoaded() bool {
	return m.Loaded
}

func (m *MockEngine) Close() error {
	m.Closed = true
	return nil
}

// MockCamera implements capture.Camera for testing
type MockCamera struct {
	NextFrameFunc func(ctx context.Context) ([]byte, error)
	Closed        int
}

func (m *MockCamera) NextFrame(ctx context.Context) ([]byte, error) {
	if m.NextFrameFunc != nil {
		return m.NextFrameFunc(ctx)
	}
	return []byte("frame"), nil
}

func (m *MockCamera) Close() error {
	m.Closed++
	return nil
}

func (m *MockCamera) Live() bool {
	return true
}
