package auth

import (
	"context"

	"github.com/MrCodeEU/faceadmin/pkg/recognition"
	"github.com/MrCodeEU/faceadmin/pkg/storage"
)

// MockEngine implements recognition.Engine for testing
type MockEngine struct {
	DetectFunc  func(frame []byte) (recognition.Region, bool, error)
	ExtractFunc func(frame []byte, region recognition.Region) (recognition.Embedding, bool, error)
}

func (m *MockEngine) Detect(frame []byte) (recognition.Region, bool, error) {
	if m.DetectFunc != nil {
		return m.DetectFunc(frame)
	}
	return recognition.Region{Width: 100, Height: 100}, true, nil
}

func (m *MockEngine) Extract(frame []byte, region recognition.Region) (recognition.Embedding, bool, error) {
	if m.ExtractFunc != nil {
		return m.ExtractFunc(frame, region)
	}
	return make(recognition.Embedding, 128), true, nil
}

// MockCamera implements capture.Camera for testing
type MockCamera struct {
	NextFrameFunc func(ctx context.Context) ([]byte, error)
	LiveValue     bool
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
	return m.LiveValue
}

// MockStore implements Store for testing
type MockStore struct {
	Records []storage.Record
}

func (m *MockStore) Snapshot() []storage.Record {
	return m.Records
}
