// Package enrollment collects face samples for a new admin and persists the
// resulting identity record once the target sample count is reached.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrCodeEU/faceadmin/pkg/capture"
	"github.com/MrCodeEU/faceadmin/pkg/logging"
	"github.com/MrCodeEU/faceadmin/pkg/metrics"
	"github.com/MrCodeEU/faceadmin/pkg/recognition"
	"github.com/MrCodeEU/faceadmin/pkg/status"
	"github.com/MrCodeEU/faceadmin/pkg/storage"
)

// DefaultSamples is the number of samples collected from a live camera.
const DefaultSamples = 5

// Store is the part of storage.Store enrollment needs.
type Store interface {
	Exists(id int64) bool
	Insert(rec storage.Record) error
}

// Request describes one enrollment.
type Request struct {
	AdminID int64
	Name    string
	Source  capture.Source
	// Samples is the target count. Zero means DefaultSamples.
	Samples int
	// Timeout bounds the capture loop. Zero means no bound beyond ctx.
	Timeout time.Duration
	// OnSample is called after every accepted sample.
	OnSample func(count, target int)
}

// Result is the outcome of an enrollment.
type Result struct {
	Success         bool          `json:"success"`
	Code            status.Code   `json:"code"`
	Message         string        `json:"message"`
	AdminID         int64         `json:"admin_id"`
	Name            string        `json:"name,omitempty"`
	SamplesCaptured int           `json:"samples_captured"`
	Duration        time.Duration `json:"-"`
	Err             error         `json:"-"`
}

// Coordinator runs enrollments against a store, a face engine and a frame
// source opener.
type Coordinator struct {
	store  Store
	engine recognition.Engine
	opener capture.Opener
	now    func() time.Time
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(store Store, engine recognition.Engine, opener capture.Opener) *Coordinator {
	return &Coordinator{
		store:  store,
		engine: engine,
		opener: opener,
		now:    time.Now,
	}
}

func (c *Coordinator) fail(res Result, code status.Code, msg string, err error) Result {
	res.Success = false
	res.Code = code
	res.Message = msg
	res.Err = err
	metrics.Enrollments.WithLabelValues(string(code)).Inc()
	return res
}

// Enroll captures req.Samples embeddings from req.Source and stores their
// mean as a new record. Nothing is persisted unless every sample was
// collected.
func (c *Coordinator) Enroll(ctx context.Context, req Request) Result {
	start := c.now()
	log := logging.Component("enrollment").WithField("admin_id", req.AdminID)
	res := Result{AdminID: req.AdminID, Name: req.Name}

	target := req.Samples
	if target <= 0 {
		target = DefaultSamples
	}

	if req.AdminID <= 0 {
		return c.fail(res, status.InvalidInput, "admin_id must be a positive integer", nil)
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.fail(res, status.InvalidInput, "admin_name is required", nil)
	}
	if c.store.Exists(req.AdminID) {
		log.Warn("Admin ID already registered")
		return c.fail(res, status.DuplicateIdentity, fmt.Sprintf("Admin ID %d already registered", req.AdminID), storage.ErrDuplicateID)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	cam, err := c.opener.Open(ctx, req.Source)
	if err != nil {
		log.WithError(err).Error("Failed to open capture source")
		return c.fail(res, status.CaptureFailure, status.Message(status.CaptureFailure), err)
	}
	defer func() {
		if err := cam.Close(); err != nil {
			log.WithError(err).Warn("Failed to release capture source")
		}
	}()

	log.Infof("Registering %s from %s, need %d samples", req.Name, req.Source, target)

	samples := make([]recognition.Embedding, 0, target)
	lastMiss := ""
	for len(samples) < target {
		frame, err := cam.NextFrame(ctx)
		if err != nil {
			if errors.Is(err, capture.ErrEndOfStream) || ctx.Err() != nil {
				res.SamplesCaptured = len(samples)
				msg := fmt.Sprintf("Only captured %d/%d samples", len(samples), target)
				if lastMiss != "" {
					msg += " (" + lastMiss + ")"
				}
				log.Warn(msg)
				return c.fail(res, status.InsufficientSamples, msg, err)
			}
			log.WithError(err).Error("Failed to read frame")
			res.SamplesCaptured = len(samples)
			return c.fail(res, status.CaptureFailure, status.Message(status.CaptureFailure), err)
		}
		metrics.FramesProcessed.WithLabelValues("enrollment").Inc()

		region, found, err := c.engine.Detect(frame)
		if err != nil {
			log.WithError(err).Debug("Detection failed on frame")
			lastMiss = "no face detected"
			continue
		}
		if !found {
			lastMiss = "no face detected"
			continue
		}
		metrics.FacesDetected.WithLabelValues("enrollment").Inc()

		embedding, ok, err := c.engine.Extract(frame, region)
		if err != nil || !ok {
			if err != nil {
				log.WithError(err).Debug("Extraction failed on frame")
			}
			lastMiss = "face embedding could not be extracted"
			continue
		}

		samples = append(samples, embedding)
		log.Debugf("Captured sample %d/%d", len(samples), target)
		if req.OnSample != nil {
			req.OnSample(len(samples), target)
		}
	}
	res.SamplesCaptured = len(samples)

	rec, err := storage.NewRecord(req.AdminID, req.Name, samples, c.now())
	if err != nil {
		return c.fail(res, status.ExtractionFailure, status.Message(status.ExtractionFailure), err)
	}

	if err := c.store.Insert(rec); err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicateID):
			return c.fail(res, status.DuplicateIdentity, fmt.Sprintf("Admin ID %d already registered", req.AdminID), err)
		case errors.Is(err, storage.ErrStorageWrite):
			log.WithError(err).Error("Failed to persist record")
			return c.fail(res, status.StorageWriteFailure, status.Message(status.StorageWriteFailure), err)
		default:
			return c.fail(res, status.Internal, status.Message(status.Internal), err)
		}
	}

	res.Success = true
	res.Code = status.OK
	res.Message = fmt.Sprintf("Successfully registered %s (ID: %d)", req.Name, req.AdminID)
	res.Duration = c.now().Sub(start)
	metrics.Enrollments.WithLabelValues(string(status.OK)).Inc()
	log.Infof("Registered %s with %d samples", req.Name, len(samples))
	return res
}
