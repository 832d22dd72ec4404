// Package system provides the lifecycle contract and manager for background
// services of the settlement layer.
package system

import "context"

// Service is a lifecycle-managed component. Background runners (price
// refresher, transaction mirror) implement it so the manager can start and
// stop them deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NoopService satisfies Service for components that have no background work
// but should still appear in the lifecycle registry.
type NoopService struct {
	ServiceName string
}

func (s NoopService) Name() string                { return s.ServiceName }
func (s NoopService) Start(context.Context) error { return nil }
func (s NoopService) Stop(context.Context) error  { return nil }
