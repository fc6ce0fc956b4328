// Package service wires storage, the face engine and the capture layer into
// the operations exposed by the CLI and the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/MrCodeEU/faceadmin/pkg/auth"
	"github.com/MrCodeEU/faceadmin/pkg/capture"
	"github.com/MrCodeEU/faceadmin/pkg/config"
	"github.com/MrCodeEU/faceadmin/pkg/enrollment"
	"github.com/MrCodeEU/faceadmin/pkg/imageutil"
	"github.com/MrCodeEU/faceadmin/pkg/logging"
	"github.com/MrCodeEU/faceadmin/pkg/metrics"
	"github.com/MrCodeEU/faceadmin/pkg/recognition"
	"github.com/MrCodeEU/faceadmin/pkg/status"
	"github.com/MrCodeEU/faceadmin/pkg/storage"
)

// Service owns the identity store and runs one capture session at a time.
type Service struct {
	cfg      *config.Config
	store    *storage.Store
	engine   recognition.Engine
	opener   capture.Opener
	enroller *enrollment.Coordinator
	auth     *auth.Authenticator

	// sessionMu serializes register, authenticate, detect and delete. One
	// camera and one engine are never shared, and matching never reads a
	// record a concurrent delete has already acknowledged.
	sessionMu sync.Mutex
	started   time.Time
}

// New assembles a Service from its parts.
func New(cfg *config.Config, store *storage.Store, engine recognition.Engine, opener capture.Opener) *Service {
	metrics.RegisteredAdmins.Set(float64(store.Len()))
	return &Service{
		cfg:      cfg,
		store:    store,
		engine:   engine,
		opener:   opener,
		enroller: enrollment.NewCoordinator(store, engine, opener),
		auth:     auth.NewAuthenticator(store, engine, opener, cfg.Recognition.Threshold),
		started:  time.Now(),
	}
}

// CaptureOptions converts the capture section of cfg.
func CaptureOptions(cfg *config.Config) capture.Options {
	return capture.Options{
		FFmpegPath:  cfg.Capture.FFmpegPath,
		InputFormat: cfg.Capture.InputFormat,
		Width:       cfg.Capture.Width,
		Height:      cfg.Capture.Height,
		FPS:         cfg.Capture.FPS,
	}
}

// Open loads the store and the dlib models described by cfg.
func Open(cfg *config.Config) (*Service, error) {
	store, err := storage.Open(cfg.Storage.DataDir, cfg.Storage.EncryptionEnabled)
	if err != nil {
		return nil, fmt.Errorf("failed to open face database: %w", err)
	}

	engine := recognition.NewDlibEngine()
	if err := engine.LoadModels(cfg.Recognition.ModelPath); err != nil {
		return nil, fmt.Errorf("failed to load recognition models: %w", err)
	}

	return New(cfg, store, engine, capture.DeviceOpener{Options: CaptureOptions(cfg)}), nil
}

// Close releases the face engine.
func (s *Service) Close() error {
	if c, ok := s.engine.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Store returns the underlying identity store.
func (s *Service) Store() *storage.Store {
	return s.store
}

// Config returns the configuration the service was built with.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// RegisterRequest selects how samples are collected. Images take
// precedence over ImagePath, which takes precedence over the camera.
type RegisterRequest struct {
	AdminID   int64
	Name      string
	Images    [][]byte
	ImagePath string
	// Camera overrides the configured device index when non-nil.
	Camera *int
	// Samples overrides the configured camera sample count when positive.
	Samples  int
	OnSample func(count, target int)
}

// Register enrolls a new admin.
func (s *Service) Register(ctx context.Context, req RegisterRequest) enrollment.Result {
	src, samples, err := s.registerSource(req)
	if err != nil {
		return enrollment.Result{
			AdminID: req.AdminID,
			Name:    req.Name,
			Code:    status.InvalidInput,
			Message: err.Error(),
			Err:     err,
		}
	}

	var timeout time.Duration
	if src.Kind == capture.KindLiveDevice {
		timeout = s.cfg.EnrollmentTimeout()
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	res := s.enroller.Enroll(ctx, enrollment.Request{
		AdminID:  req.AdminID,
		Name:     req.Name,
		Source:   src,
		Samples:  samples,
		Timeout:  timeout,
		OnSample: req.OnSample,
	})
	if res.Success {
		metrics.RegisteredAdmins.Set(float64(s.store.Len()))
	}
	return res
}

func (s *Service) registerSource(req RegisterRequest) (capture.Source, int, error) {
	switch {
	case len(req.Images) == 1:
		data, err := imageutil.NormalizeJPEG(req.Images[0])
		if err != nil {
			return capture.Source{}, 0, err
		}
		return capture.StaticImageBytes(data), 1, nil
	case len(req.Images) > 1:
		frames := make([][]byte, len(req.Images))
		for i, img := range req.Images {
			data, err := imageutil.NormalizeJPEG(img)
			if err != nil {
				return capture.Source{}, 0, fmt.Errorf("image %d: %w", i+1, err)
			}
			frames[i] = data
		}
		return capture.FrameSequence(frames), len(frames), nil
	case req.ImagePath != "":
		data, err := loadImage(req.ImagePath)
		if err != nil {
			return capture.Source{}, 0, err
		}
		return capture.StaticImageBytes(data), 1, nil
	default:
		samples := s.cfg.Enrollment.Samples
		if req.Samples > 0 {
			samples = req.Samples
		}
		return capture.LiveDevice(s.device(req.Camera)), samples, nil
	}
}

func (s *Service) device(override *int) int {
	if override != nil {
		return *override
	}
	return s.cfg.Capture.Device
}

func loadImage(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return imageutil.NormalizeJPEG(raw)
}

// AuthRequest selects the probe. Image takes precedence over ImagePath,
// which takes precedence over the camera.
type AuthRequest struct {
	Image     []byte
	ImagePath string
	Camera    *int
	// Timeout overrides the configured session bound when positive.
	Timeout time.Duration
}

// Authenticate matches one probe against the enrolled admins.
func (s *Service) Authenticate(ctx context.Context, req AuthRequest) auth.Result {
	var src capture.Source
	timeout := s.cfg.AuthTimeout()
	switch {
	case len(req.Image) > 0 || req.ImagePath != "":
		data := req.Image
		var err error
		if len(data) > 0 {
			data, err = imageutil.NormalizeJPEG(data)
		} else {
			data, err = loadImage(req.ImagePath)
		}
		if err != nil {
			return auth.Result{Code: status.InvalidInput, Message: err.Error(), Err: err}
		}
		src = capture.StaticImageBytes(data)
	default:
		src = capture.LiveDevice(s.device(req.Camera))
	}
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	return s.auth.Authenticate(ctx, src, timeout)
}

// List returns all enrolled admins in registration order.
func (s *Service) List() []storage.Summary {
	return s.store.List()
}

// Delete removes an admin. It waits for a running session, so a
// successful delete is never followed by a match against the removed admin.
func (s *Service) Delete(id int64) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if err := s.store.Remove(id); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return status.New(status.NotFound, err)
		case errors.Is(err, storage.ErrStorageWrite):
			return status.New(status.StorageWriteFailure, err)
		default:
			return status.New(status.Internal, err)
		}
	}
	metrics.RegisteredAdmins.Set(float64(s.store.Len()))
	logging.Component("service").Infof("Admin %d deleted", id)
	return nil
}

// DetectResult is the outcome of a detection preview.
type DetectResult struct {
	FaceDetected   bool                `json:"face_detected"`
	FaceBox        *recognition.Region `json:"face_box,omitempty"`
	AnnotatedImage string              `json:"annotated_image,omitempty"`
}

// Detect locates the primary face in an image and returns an annotated
// preview.
func (s *Service) Detect(image []byte) (DetectResult, error) {
	data, err := imageutil.NormalizeJPEG(image)
	if err != nil {
		return DetectResult{}, status.Errorf(status.InvalidInput, "Invalid image data", err)
	}

	s.sessionMu.Lock()
	region, found, err := s.engine.Detect(data)
	s.sessionMu.Unlock()
	if err != nil {
		return DetectResult{}, status.New(status.Internal, err)
	}
	if !found {
		return DetectResult{}, nil
	}

	annotated, err := imageutil.Annotate(data, region)
	if err != nil {
		return DetectResult{}, status.New(status.Internal, err)
	}
	return DetectResult{
		FaceDetected:   true,
		FaceBox:        &region,
		AnnotatedImage: imageutil.DataURL(annotated),
	}, nil
}

// Health describes service readiness.
type Health struct {
	Status           string `json:"status"`
	RegisteredAdmins int    `json:"registered_admins"`
	ModelsLoaded     bool   `json:"models_loaded"`
	Uptime           string `json:"uptime"`
}

// Health reports readiness.
func (s *Service) Health() Health {
	loaded := true
	if l, ok := s.engine.(interface{ IsLoaded() bool }); ok {
		loaded = l.IsLoaded()
	}
	st := "healthy"
	if !loaded {
		st = "degraded"
	}
	return Health{
		Status:           st,
		RegisteredAdmins: s.store.Len(),
		ModelsLoaded:     loaded,
		Uptime:           time.Since(s.started).Round(time.Second).String(),
	}
}
