package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"time"

	identitymodels "cas/internal/identity/models"
	"cas/internal/platform/config"
	registrymodels "cas/internal/registry/models"
	"cas/pkg/platform/sentinel"
)

const seedTimeout = 5 * time.Second

type identityWriter interface {
	FindByUsername(ctx context.Context, username string) (*identitymodels.Identity, error)
	Save(ctx context.Context, identity *identitymodels.Identity) error
}

type serviceWriter interface {
	FindByID(ctx context.Context, id int64) (*registrymodels.Service, error)
	Create(ctx context.Context, svc *registrymodels.Service) error
	Update(ctx context.Context, svc *registrymodels.Service) error
}

// seedAdmin creates the bootstrap administrator once. An existing identity
// with the same username is left untouched.
func seedAdmin(ctx context.Context, identities identityWriter, cfg config.BootstrapConfig) error {
	if cfg.AdminUsername == "" {
		return nil
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, seedTimeout)
		defer cancel()
	}

	_, err := identities.FindByUsername(ctx, cfg.AdminUsername)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, sentinel.ErrNotFound):
		return fmt.Errorf("look up bootstrap admin: %w", err)
	}

	admin, err := identitymodels.NewIdentity(cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("build bootstrap admin: %w", err)
	}
	admin.Admin = true
	if err := identities.Save(ctx, admin); err != nil {
		return fmt.Errorf("save bootstrap admin: %w", err)
	}
	return nil
}

// seedServices applies each seed in order. A seed with an id updates that
// record when it exists; any other seed creates a new enabled AUTHORIZED
// service and needs a name.
func seedServices(ctx context.Context, services serviceWriter, seeds config.ServiceSeeds) error {
	if len(seeds) == 0 {
		return nil
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, seedTimeout)
		defer cancel()
	}

	for i, seed := range seeds {
		fields := maps.Clone(seed)
		id, hasID, err := seedID(fields)
		if err != nil {
			return fmt.Errorf("service seed %d: %w", i, err)
		}

		if hasID {
			svc, err := services.FindByID(ctx, id)
			switch {
			case err == nil:
				if err := registrymodels.ApplyServicePatch(svc, fields); err != nil {
					return fmt.Errorf("service seed %d: %w", i, err)
				}
				if err := services.Update(ctx, svc); err != nil {
					return fmt.Errorf("update seeded service %d: %w", id, err)
				}
				continue
			case !errors.Is(err, sentinel.ErrNotFound):
				return fmt.Errorf("look up seeded service %d: %w", id, err)
			}
		}

		svc := registrymodels.NewService("")
		if err := registrymodels.ApplyServicePatch(svc, fields); err != nil {
			return fmt.Errorf("service seed %d: %w", i, err)
		}
		if svc.Name == "" {
			return fmt.Errorf("service seed %d: name is required", i)
		}
		if err := services.Create(ctx, svc); err != nil {
			return fmt.Errorf("create seeded service %q: %w", svc.Name, err)
		}
	}
	return nil
}

// seedID removes and validates the optional "id" field. JSON numbers decode
// as float64.
func seedID(fields map[string]any) (int64, bool, error) {
	raw, ok := fields["id"]
	if !ok {
		return 0, false, nil
	}
	delete(fields, "id")
	f, ok := raw.(float64)
	if !ok || f < 1 || f != math.Trunc(f) || f > math.MaxInt64 {
		return 0, false, fmt.Errorf("id must be a positive integer, got %v", raw)
	}
	return int64(f), true, nil
}
