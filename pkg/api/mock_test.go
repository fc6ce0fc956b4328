package api

import (
	"context"

	"github.com/MrCodeEU/faceadmin/pkg/auth"
	"github.com/MrCodeEU/faceadmin/pkg/enrollment"
	"github.com/MrCodeEU/faceadmin/pkg/service"
	"github.com/MrCodeEU/faceadmin/pkg/status"
	"github.com/MrCodeEU/faceadmin/pkg/storage"
)

// MockService implements Service for testing
type MockService struct {
	RegisterFunc     func(ctx context.Context, req service.RegisterRequest) enrollment.Result
	AuthenticateFunc func(ctx context.Context, req service.AuthRequest) auth.Result
	ListFunc         func() []storage.Summary
	DeleteFunc       func(id int64) error
	DetectFunc       func(image []byte) (service.DetectResult, error)
	HealthFunc       func() service.Health
}

func (m *MockService) Register(ctx context.Context, req service.RegisterRequest) enrollment.Result {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, req)
	}
	return enrollment.Result{Success: true, Code: status.OK, AdminID: req.AdminID, Name: req.Name}
}

func (m *MockService) Authenticate(ctx context.Context, req service.AuthRequest) auth.Result {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, req)
	}
	return auth.Result{Code: status.NoMatch, Message: status.Message(status.NoMatch)}
}

func (m *MockService) List() []storage.Summary {
	if m.ListFunc != nil {
		return m.ListFunc()
	}
	return []storage.Summary{}
}

func (m *MockService) Delete(id int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(id)
	}
	return nil
}

func (m *MockService) Detect(image []byte) (service.DetectResult, error) {
	if m.DetectFunc != nil {
		return m.DetectFunc(image)
	}
	return service.DetectResult{}, nil
}

func (m *MockService) Health() service.Health {
	if m.HealthFunc != nil {
		return m.HealthFunc()
	}
	return service.Health{Status: "healthy", ModelsLoaded: true}
}
