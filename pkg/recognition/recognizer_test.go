package recognition

import (
	"errors"
	"image"
	"testing"

	"github.com/Kagami/go-face"
)

func loadedEngine(t *testing.T, mock *MockFaceEngine) *DlibEngine {
	t.Helper()
	e := NewDlibEngine()
	e.factory = func(path string) (FaceEngine, error) {
		return mock, nil
	}
	if err := e.LoadModels("/tmp/models"); err != nil {
		t.Fatalf("LoadModels failed: %v", err)
	}
	return e
}

func descriptor(first float32) face.Descriptor {
	var d face.Descriptor
	d[0] = first
	return d
}

func TestLargestRegion(t *testing.T) {
	regions := []Region{
		{X: 10, Y: 10, Width: 20, Height: 20},
		{X: -5, Y: -3, Width: 50, Height: 40},
		{X: 0, Y: 0, Width: 30, Height: 30},
	}

	r, ok := LargestRegion(regions)
	if !ok {
		t.Fatal("expected a region")
	}
	if r.Width != 50 || r.Height != 40 {
		t.Errorf("expected the 50x40 region, got %+v", r)
	}
	if r.X != 0 || r.Y != 0 {
		t.Errorf("origin should be clamped to non-negative, got (%d,%d)", r.X, r.Y)
	}

	if _, ok := LargestRegion(nil); ok {
		t.Error("expected no region for empty input")
	}
}

func TestLoadModels(t *testing.T) {
	e := loadedEngine(t, &MockFaceEngine{})
	if !e.IsLoaded() {
		t.Error("expected loaded to be true")
	}
	if err := e.LoadModels("/tmp/models"); err != nil {
		t.Errorf("second LoadModels should be a no-op, got %v", err)
	}
}

func TestLoadModels_Failure(t *testing.T) {
	e := NewDlibEngine()
	e.factory = func(path string) (FaceEngine, error) {
		return nil, errors.New("load failed")
	}

	if err := e.LoadModels("/tmp/models"); err == nil {
		t.Error("expected LoadModels to fail")
	}
	if e.IsLoaded() {
		t.Error("expected loaded to be false")
	}
}

func TestDetect_NotLoaded(t *testing.T) {
	e := NewDlibEngine()
	if _, _, err := e.Detect([]byte("image")); !errors.Is(err, ErrModelNotLoaded) {
		t.Errorf("expected ErrModelNotLoaded, got %v", err)
	}
}

func TestDetect_PicksLargestFace(t *testing.T) {
	mock := &MockFaceEngine{
		RecognizeFunc: func(data []byte) ([]face.Face, error) {
			return []face.Face{
				{Rectangle: image.Rect(0, 0, 40, 40), Descriptor: descriptor(1)},
				{Rectangle: image.Rect(100, 50, 220, 170), Descriptor: descriptor(2)},
			}, nil
		},
	}
	e := loadedEngine(t, mock)

	r, found, err := e.Detect([]byte("frame"))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if !found {
		t.Fatal("expected a face")
	}
	if r != (Region{X: 100, Y: 50, Width: 120, Height: 120}) {
		t.Errorf("unexpected region %+v", r)
	}
}

func TestDetect_NoFace(t *testing.T) {
	e := loadedEngine(t, &MockFaceEngine{})

	_, found, err := e.Detect([]byte("frame"))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if found {
		t.Error("expected no face")
	}
}

func TestDetect_EngineError(t *testing.T) {
	mock := &MockFaceEngine{
		RecognizeFunc: func(data []byte) ([]face.Face, error) {
			return nil, errors.New("decode failed")
		},
	}
	e := loadedEngine(t, mock)

	if _, _, err := e.Detect([]byte("frame")); err == nil {
		t.Error("expected detection error")
	}
}

func TestExtract_UsesCachedFrame(t *testing.T) {
	mock := &MockFaceEngine{
		RecognizeFunc: func(data []byte) ([]face.Face, error) {
			return []face.Face{
				{Rectangle: image.Rect(0, 0, 40, 40), Descriptor: descriptor(1)},
				{Rectangle: image.Rect(100, 50, 220, 170), Descriptor: descriptor(2)},
			}, nil
		},
	}
	e := loadedEngine(t, mock)
	frame := []byte("frame")

	r, _, _ := e.Detect(frame)
	emb, ok, err := e.Extract(frame, r)
	if err != nil || !ok {
		t.Fatalf("Extract failed: ok=%v err=%v", ok, err)
	}
	if len(emb) != 128 {
		t.Errorf("expected 128-d embedding, got %d", len(emb))
	}
	if emb[0] != 2 {
		t.Errorf("expected descriptor of the largest face, got first component %f", emb[0])
	}
	if mock.Calls != 1 {
		t.Errorf("expected one model pass per frame, got %d", mock.Calls)
	}

	_, _, _ = e.Detect([]byte("another frame"))
	if mock.Calls != 2 {
		t.Errorf("a new frame must run the model again, got %d calls", mock.Calls)
	}
}

func TestExtract_EmptyOrMissingRegion(t *testing.T) {
	mock := &MockFaceEngine{
		RecognizeFunc: func(data []byte) ([]face.Face, error) {
			return []face.Face{{Rectangle: image.Rect(0, 0, 10, 10)}}, nil
		},
	}
	e := loadedEngine(t, mock)

	if _, ok, err := e.Extract([]byte("f"), Region{X: 0, Y: 0, Width: 0, Height: 10}); ok || err != nil {
		t.Errorf("empty crop should yield none, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := e.Extract([]byte("f"), Region{X: 500, Y: 500, Width: 10, Height: 10}); ok || err != nil {
		t.Errorf("non-overlapping region should yield none, got ok=%v err=%v", ok, err)
	}
}

func TestClose(t *testing.T) {
	closed := false
	e := loadedEngine(t, &MockFaceEngine{CloseFunc: func() { closed = true }})

	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !closed {
		t.Error("expected underlying recognizer to be closed")
	}
	if e.IsLoaded() {
		t.Error("engine should report unloaded after Close")
	}
}
