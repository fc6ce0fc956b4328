package enrollment

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
	ExistsFunc func(id int64) bool
	InsertFunc func(rec storage.Record) error
	Inserted   []storage.Record
}

func (m *MockStore) Exists(id int64) bool {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(id)
	}
	return false
}

func (m *MockStore) Insert(rec storage.Record) error {
	if m.InsertFunc != nil {
		if err := m.InsertFunc(rec); err != nil {
			return err
		}
	}
	m.Inserted = append(m.Inserted, rec)
	return nil
}
