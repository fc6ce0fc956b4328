// Package recognition provides face detection, embedding extraction and
// matching. Detection and extraction use dlib through go-face; matching is
// a plain Euclidean comparison against a threshold.
package recognition

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/Kagami/go-face"
	"github.com/MrCodeEU/faceadmin/pkg/logging"
	"github.com/MrCodeEU/faceadmin/pkg/metrics"
)

// Region is a face bounding box within a single frame.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the region's pixel area.
func (r Region) Area() int {
	return r.Width * r.Height
}

// Empty reports whether the region has no pixels.
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Rect converts the region to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Detector finds the primary face in an encoded frame.
type Detector interface {
	// Detect returns the largest face region; found is false when the
	// frame has no face.
	Detect(frame []byte) (region Region, found bool, err error)
}

// Extractor turns a face region into an embedding.
type Extractor interface {
	// Extract returns ok=false when no usable crop exists for the region.
	Extract(frame []byte, region Region) (emb Embedding, ok bool, err error)
}

// Engine is the pair of external models the coordinators depend on.
type Engine interface {
	Detector
	Extractor
}

// ErrModelNotLoaded is returned when models are not loaded.
var ErrModelNotLoaded = errors.New("recognition models not loaded")

// LargestRegion picks the region with the largest area, clamping its origin
// to non-negative coordinates. The first region wins ties.
func LargestRegion(regions []Region) (Region, bool) {
	if len(regions) == 0 {
		return Region{}, false
	}

	best := regions[0]
	for _, r := range regions[1:] {
		if r.Area() > best.Area() {
			best = r
		}
	}

	if best.X < 0 {
		best.X = 0
	}
	if best.Y < 0 {
		best.Y = 0
	}
	return best, true
}

// FaceEngine is the subset of go-face's Recognizer used by DlibEngine.
type FaceEngine interface {
	Recognize(imgData []byte) ([]face.Face, error)
	Close()
}

// DlibEngine implements Engine on top of the dlib models via go-face.
// go-face computes detection and descriptors in one pass, so the result of
// the last frame is cached for the Extract call that follows Detect.
type DlibEngine struct {
	mu        sync.Mutex
	rec       FaceEngine
	modelPath string
	loaded    bool
	factory   func(path string) (FaceEngine, error)

	lastFrame []byte
	lastFaces []face.Face
}

// NewDlibEngine creates an engine; call LoadModels before use.
func NewDlibEngine() *DlibEngine {
	return &DlibEngine{
		factory: func(path string) (FaceEngine, error) {
			return face.NewRecognizer(path)
		},
	}
}

// LoadModels loads the dlib models from modelPath. The directory must
// contain shape_predictor_5_face_landmarks.dat,
// dlib_face_recognition_resnet_model_v1.dat and mmod_human_face_detector.dat.
func (e *DlibEngine) LoadModels(modelPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loaded {
		return nil
	}

	logging.Infof("Loading face recognition models from: %s", modelPath)

	rec, err := e.factory(modelPath)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}

	e.rec = rec
	e.modelPath = modelPath
	e.loaded = true

	logging.Info("Face recognition models loaded successfully")
	return nil
}

// IsLoaded returns true if models are loaded.
func (e *DlibEngine) IsLoaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// Close releases the recognizer resources.
func (e *DlibEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec != nil {
		e.rec.Close()
		e.rec = nil
	}
	e.loaded = false
	e.lastFrame = nil
	e.lastFaces = nil
	return nil
}

// recognize runs the model, reusing the cached result for the same frame.
// Callers must hold e.mu.
func (e *DlibEngine) recognize(frame []byte) ([]face.Face, error) {
	if !e.loaded {
		return nil, ErrModelNotLoaded
	}
	if e.lastFrame != nil && bytes.Equal(e.lastFrame, frame) {
		return e.lastFaces, nil
	}

	start := time.Now()
	faces, err := e.rec.Recognize(frame)
	metrics.InferenceDuration.WithLabelValues("recognize").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	e.lastFrame = append(e.lastFrame[:0], frame...)
	e.lastFaces = faces
	return faces, nil
}

// Detect implements Detector.
func (e *DlibEngine) Detect(frame []byte) (Region, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	faces, err := e.recognize(frame)
	if err != nil {
		return Region{}, false, err
	}

	regions := make([]Region, len(faces))
	for i, f := range faces {
		regions[i] = regionFromRect(f.Rectangle)
	}

	logging.Debugf("Detected %d face(s) in frame", len(regions))
	r, ok := LargestRegion(regions)
	return r, ok, nil
}

// Extract implements Extractor. It returns the descriptor of the face whose
// box overlaps the region the most.
func (e *DlibEngine) Extract(frame []byte, region Region) (Embedding, bool, error) {
	if region.Empty() {
		return nil, false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	faces, err := e.recognize(frame)
	if err != nil {
		return nil, false, err
	}

	target := region.Rect()
	bestIdx, bestArea := -1, 0
	for i, f := range faces {
		overlap := f.Rectangle.Intersect(target)
		if a := overlap.Dx() * overlap.Dy(); a > bestArea {
			bestIdx, bestArea = i, a
		}
	}
	if bestIdx < 0 {
		return nil, false, nil
	}

	desc := faces[bestIdx].Descriptor
	emb := make(Embedding, len(desc))
	copy(emb, desc[:])
	return emb, true, nil
}

func regionFromRect(rect image.Rectangle) Region {
	return Region{
		X:      rect.Min.X,
		Y:      rect.Min.Y,
		Width:  rect.Dx(),
		Height: rect.Dy(),
	}
}
