// Package service runs long-lived process components side by side.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Service is a component that runs until its context is cancelled.
type Service interface {
	Name() string
	Run(ctx context.Context) error
}

// Group runs services together. The first failure cancels the others.
type Group []Service

// Run blocks until ctx is done or a service fails, then waits for every
// service to return. Failures are aggregated, each prefixed by its name.
func (g Group) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, len(g))
	for _, s := range g {
		wg.Add(1)
		go func(s Service) {
			defer wg.Done()
			if err := s.Run(runCtx); err != nil {
				slog.Error("service failed", "service", s.Name(), "error", err)
				errCh <- fmt.Errorf("%s: %w", s.Name(), err)
				cancel()
				return
			}
			slog.Debug("service stopped", "service", s.Name())
		}(s)
	}

	<-runCtx.Done()
	wg.Wait()
	close(errCh)

	var result *multierror.Error
	for err := range errCh {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
