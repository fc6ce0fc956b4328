package main

import (
	"context"

	"github.com/MrCodeEU/faceadmin/pkg/auth"
	"github.com/MrCodeEU/faceadmin/pkg/enrollment"
	"github.com/MrCodeEU/faceadmin/pkg/service"
	"github.com/MrCodeEU/faceadmin/pkg/storage"
)

// MockService implements demoService for testing
type MockService struct {
	RegisterFunc     func(ctx context.Context, req service.RegisterRequest) enrollment.Result
	AuthenticateFunc func(ctx context.Context, req service.AuthRequest) auth.Result
	ListFunc         func() []storage.Summary
	DetectFunc       func(image []byte) (service.DetectResult, error)
}

func (m *MockService) Register(ctx context.Context, req service.RegisterRequest) enrollment.Result {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, req)
	}
	return enrollment.Result{}
}

func (m *MockService) Authenticate(ctx context.Context, req service.AuthRequest) auth.Result {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, req)
	}
	return auth.Result{}
}

func (m *MockService) List() []storage.Summary {
	if m.ListFunc != nil {
		return m.ListFunc()
	}
	return nil
}

func (m *MockService) Detect(image []byte) (service.DetectResult, error) {
	if m.DetectFunc != nil {
		return m.DetectFunc(image)
	}
	return service.DetectResult{}, nil
}
