// Package auth matches a captured face against the enrolled admins.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrCodeEU/faceadmin/pkg/capture"
	"github.com/MrCodeEU/faceadmin/pkg/logging"
	"github.com/MrCodeEU/faceadmin/pkg/metrics"
	"github.com/MrCodeEU/faceadmin/pkg/recognition"
	"github.com/MrCodeEU/faceadmin/pkg/status"
	"github.com/MrCodeEU/faceadmin/pkg/storage"
)

// DefaultThreshold is the distance below which two faces are the same admin.
const DefaultThreshold = 0.6

// Store is the part of storage.Store authentication needs.
type Store interface {
	Snapshot() []storage.Record
}

// Result represents the result of an authentication attempt.
type Result struct {
	Success    bool          `json:"success"`
	Code       status.Code   `json:"code"`
	Message    string        `json:"message"`
	AdminID    int64         `json:"admin_id,omitempty"`
	Name       string        `json:"admin_name,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
	Distance   float64       `json:"distance,omitempty"`
	Frames     int           `json:"frames"`
	Duration   time.Duration `json:"-"`
	Err        error         `json:"-"`
}

// Authenticator runs authentication sessions.
type Authenticator struct {
	store     Store
	engine    recognition.Engine
	opener    capture.Opener
	threshold float64
	now       func() time.Time
}

// NewAuthenticator creates an Authenticator. A non-positive threshold
// selects DefaultThreshold.
func NewAuthenticator(store Store, engine recognition.Engine, opener capture.Opener, threshold float64) *Authenticator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Authenticator{
		store:     store,
		engine:    engine,
		opener:    opener,
		threshold: threshold,
		now:       time.Now,
	}
}

// Threshold returns the configured match threshold.
func (a *Authenticator) Threshold() float64 {
	return a.threshold
}

func (a *Authenticator) finish(res Result, start time.Time, code status.Code, msg string, err error) Result {
	res.Code = code
	res.Message = msg
	res.Err = err
	res.Success = code == status.OK
	res.Duration = a.now().Sub(start)
	metrics.AuthAttempts.WithLabelValues(string(code)).Inc()
	return res
}

// Authenticate reads frames from src until one matches an enrolled admin.
// Live sources are polled while the elapsed time is within timeout; a still
// image is examined exactly once.
func (a *Authenticator) Authenticate(ctx context.Context, src capture.Source, timeout time.Duration) Result {
	start := a.now()
	log := logging.Component("auth")
	var res Result

	records := a.store.Snapshot()
	if len(records) == 0 {
		log.Warn("No admin faces registered")
		return a.finish(res, start, status.NoIdentitiesRegistered, status.Message(status.NoIdentitiesRegistered), nil)
	}
	gallery := make([]recognition.Embedding, len(records))
	for i, r := range records {
		gallery[i] = r.Embedding
	}

	cam, err := a.opener.Open(ctx, src)
	if err != nil {
		log.WithError(err).Error("Failed to open capture source")
		return a.finish(res, start, status.CaptureFailure, status.Message(status.CaptureFailure), err)
	}
	defer func() {
		if err := cam.Close(); err != nil {
			log.WithError(err).Warn("Failed to release capture source")
		}
	}()

	live := cam.Live()
	if live && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log.Infof("Authenticating from %s against %d admins (threshold %.2f)", src, len(records), a.threshold)

	for {
		if live && timeout > 0 && a.now().Sub(start) > timeout {
			log.Warn("Authentication timeout")
			return a.finish(res, start, status.Timeout, status.Message(status.Timeout), nil)
		}

		frame, err := cam.NextFrame(ctx)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				log.Warn("Authentication timeout")
				return a.finish(res, start, status.Timeout, status.Message(status.Timeout), ctx.Err())
			}
			if ctx.Err() != nil {
				log.Info("Authentication cancelled")
				return a.finish(res, start, status.NoMatch, "Authentication cancelled", ctx.Err())
			}
			if !errors.Is(err, capture.ErrEndOfStream) {
				log.WithError(err).Warn("Frame capture failed")
			}
			return a.finish(res, start, status.NoMatch, status.Message(status.NoMatch), err)
		}
		res.Frames++
		metrics.FramesProcessed.WithLabelValues("auth").Inc()

		region, found, err := a.engine.Detect(frame)
		if err != nil || !found {
			if err != nil {
				log.WithError(err).Debug("Detection failed on frame")
			}
			if !live {
				return a.finish(res, start, status.NoMatch, "No face detected", err)
			}
			continue
		}
		metrics.FacesDetected.WithLabelValues("auth").Inc()

		embedding, ok, err := a.engine.Extract(frame, region)
		if err != nil || !ok {
			if !live {
				return a.finish(res, start, status.ExtractionFailure, status.Message(status.ExtractionFailure), err)
			}
			continue
		}

		idx, distance, matched, err := recognition.FindBestMatch(embedding, gallery, a.threshold)
		if err != nil {
			log.WithError(err).Error("Stored embeddings do not match the extractor")
			return a.finish(res, start, status.Internal, status.Message(status.Internal), err)
		}

		if matched {
			rec := records[idx]
			res.AdminID = rec.ID
			res.Name = rec.Name
			res.Distance = distance
			res.Confidence = recognition.Confidence(distance)
			metrics.MatchDistance.Observe(distance)
			log.Infof("Authenticated %s (ID: %d, distance: %.4f)", rec.Name, rec.ID, distance)
			return a.finish(res, start, status.OK, fmt.Sprintf("Welcome %s", rec.Name), nil)
		}

		log.Debug("Face not matched")
		if !live {
			return a.finish(res, start, status.NoMatch, status.Message(status.NoMatch), nil)
		}
	}
}
