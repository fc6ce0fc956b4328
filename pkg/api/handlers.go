package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MrCodeEU/faceadmin/pkg/auth"
	"github.com/MrCodeEU/faceadmin/pkg/enrollment"
	"github.com/MrCodeEU/faceadmin/pkg/imageutil"
	"github.com/MrCodeEU/faceadmin/pkg/logging"
	"github.com/MrCodeEU/faceadmin/pkg/service"
	"github.com/MrCodeEU/faceadmin/pkg/status"
	"github.com/MrCodeEU/faceadmin/pkg/storage"
)

// Service is the set of operations the API exposes.
type Service interface {
	Register(ctx context.Context, req service.RegisterRequest) enrollment.Result
	Authenticate(ctx context.Context, req service.AuthRequest) auth.Result
	List() []storage.Summary
	Delete(id int64) error
	Detect(image []byte) (service.DetectResult, error)
	Health() service.Health
}

// Handler serves the admin face endpoints.
type Handler struct {
	svc           Service
	cameraTimeout time.Duration
}

// NewHandler creates a Handler. cameraTimeout bounds camera logins; zero
// keeps the service default.
func NewHandler(svc Service, cameraTimeout time.Duration) *Handler {
	return &Handler{svc: svc, cameraTimeout: cameraTimeout}
}

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	AdminID   int64    `json:"admin_id"`
	AdminName string   `json:"admin_name"`
	Image     string   `json:"image"`
	Images    []string `json:"images"`
	Camera    *int     `json:"camera"`
	Samples   int      `json:"samples"`
}

// ImageRequest is the body of endpoints taking one image.
type ImageRequest struct {
	Image string `json:"image"`
}

// AuthResponse is returned by both authenticate endpoints.
type AuthResponse struct {
	Success    bool        `json:"success"`
	Code       status.Code `json:"code"`
	AdminID    *int64      `json:"admin_id"`
	AdminName  *string     `json:"admin_name"`
	Confidence float64     `json:"confidence"`
	Message    string      `json:"message"`
}

// httpStatus maps an outcome code to an HTTP status. Failed matches are
// ordinary answers and keep 200.
func httpStatus(code status.Code) int {
	switch code {
	case status.OK, status.NoMatch, status.Timeout, status.NoIdentitiesRegistered:
		return http.StatusOK
	case status.InvalidInput, status.DuplicateIdentity:
		return http.StatusBadRequest
	case status.NotFound:
		return http.StatusNotFound
	case status.InsufficientSamples, status.ExtractionFailure, status.NoFaceDetected:
		return http.StatusUnprocessableEntity
	case status.CaptureFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, code status.Code, msg string) {
	c.JSON(httpStatus(code), gin.H{
		"success": false,
		"code":    code,
		"message": msg,
	})
}

func roundConfidence(v float64) float64 {
	return math.Round(v*100) / 100
}

// Health handles GET /api/health.
func (h *Handler) Health(c *gin.Context) {
	health := h.svc.Health()
	c.JSON(http.StatusOK, gin.H{
		"status":            health.Status,
		"message":           "faceadmin API is running",
		"admins_registered": health.RegisteredAdmins,
		"models_loaded":     health.ModelsLoaded,
		"uptime":            health.Uptime,
	})
}

// Register handles POST /api/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, status.InvalidInput, "Invalid request body")
		return
	}
	if req.AdminID == 0 || req.AdminName == "" {
		fail(c, status.InvalidInput, "admin_id and admin_name are required")
		return
	}

	payloads := req.Images
	if req.Image != "" {
		payloads = append([]string{req.Image}, payloads...)
	}
	images := make([][]byte, 0, len(payloads))
	for _, p := range payloads {
		data, err := imageutil.DecodeBase64(p)
		if err != nil {
			fail(c, status.InvalidInput, "Invalid image data")
			return
		}
		images = append(images, data)
	}

	res := h.svc.Register(c.Request.Context(), service.RegisterRequest{
		AdminID: req.AdminID,
		Name:    req.AdminName,
		Images:  images,
		Camera:  req.Camera,
		Samples: req.Samples,
	})
	if res.Err != nil && !res.Success {
		logging.Component("api").WithError(res.Err).Warnf("Registration of %d failed", req.AdminID)
	}

	var adminID *int64
	if res.Success {
		adminID = &res.AdminID
	}
	c.JSON(httpStatus(res.Code), gin.H{
		"success":          res.Success,
		"code":             res.Code,
		"message":          res.Message,
		"admin_id":         adminID,
		"samples_captured": res.SamplesCaptured,
	})
}

func authResponse(res auth.Result) AuthResponse {
	out := AuthResponse{
		Success: res.Success,
		Code:    res.Code,
		Message: res.Message,
	}
	if res.Success {
		out.AdminID = &res.AdminID
		out.AdminName = &res.Name
		out.Confidence = roundConfidence(res.Confidence)
	}
	return out
}

// Authenticate handles POST /api/authenticate.
func (h *Handler) Authenticate(c *gin.Context) {
	var req ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Image == "" {
		fail(c, status.InvalidInput, "Image data required")
		return
	}
	data, err := imageutil.DecodeBase64(req.Image)
	if err != nil {
		fail(c, status.InvalidInput, "Invalid image data")
		return
	}

	res := h.svc.Authenticate(c.Request.Context(), service.AuthRequest{Image: data})
	c.JSON(httpStatus(res.Code), authResponse(res))
}

// AuthenticateCamera handles POST /api/authenticate/camera.
func (h *Handler) AuthenticateCamera(c *gin.Context) {
	var body struct {
		Camera *int `json:"camera"`
	}
	// An empty body selects the configured camera.
	_ = c.ShouldBindJSON(&body)

	res := h.svc.Authenticate(c.Request.Context(), service.AuthRequest{
		Camera:  body.Camera,
		Timeout: h.cameraTimeout,
	})
	c.JSON(httpStatus(res.Code), authResponse(res))
}

// ListAdmins handles GET /api/admins.
func (h *Handler) ListAdmins(c *gin.Context) {
	admins := h.svc.List()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(admins),
		"admins":  admins,
	})
}

// DeleteAdmin handles DELETE /api/admin/:id.
func (h *Handler) DeleteAdmin(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, status.InvalidInput, "admin id must be a positive integer")
		return
	}

	if err := h.svc.Delete(id); err != nil {
		code := status.CodeOf(err)
		msg := status.Message(code)
		if code == status.NotFound {
			msg = fmt.Sprintf("Admin ID %d not found", id)
		}
		fail(c, code, msg)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Admin ID %d deleted", id),
	})
}

// Detect handles POST /api/detect.
func (h *Handler) Detect(c *gin.Context) {
	var req ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Image == "" {
		fail(c, status.InvalidInput, "Image data required")
		return
	}
	data, err := imageutil.DecodeBase64(req.Image)
	if err != nil {
		fail(c, status.InvalidInput, "Invalid image data")
		return
	}

	res, err := h.svc.Detect(data)
	if err != nil {
		code := status.CodeOf(err)
		fail(c, code, status.Message(code))
		return
	}
	if !res.FaceDetected {
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": "No face detected",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"face_box": res.FaceBox,
		"image":    res.AnnotatedImage,
	})
}
