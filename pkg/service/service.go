package service

import (
	"context"
	"errors"
	"fmt"
)

// Service is anything the node runs for its lifetime.
type Service interface {
	Run()
	Shutdown(ctx context.Context) error
}

// Group runs a bunch of services together.
type Group struct {
	list []Service
}

func (g *Group) Add(services ...Service) {
	for _, s := range services {
		if s != nil {
			g.list = append(g.list, s)
		}
	}
}

func (g *Group) Len() int { return len(g.list) }

// Start runs each service in the order they were added.
func (g *Group) Start() {
	for _, s := range g.list {
		s.Run()
	}
}

// Shutdown stops the services in the reverse order,
// so the dependants go before their dependencies.
func (g *Group) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(g.list) - 1; i >= 0; i-- {
		s := g.list[i]
		if err := s.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, fmt.Errorf("couldn't stop [%v]: %w", s, err))
		}
	}
	return errors.Join(errs...)
}
