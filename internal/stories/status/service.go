package status

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"blockhost/internal/infra/pterodactyl"
	"blockhost/internal/stories/orders"
)

// Panel identifiers are fixed-format 8-character alphanumerics.
// Anything else is rejected before any database or panel call.
var identifierRe = regexp.MustCompile(`^[a-zA-Z0-9]{8}$`)

const bytesPerMB = 1024 * 1024

// Service is the authenticated read path for live server metrics. The
// browser never sees panel credentials or other users' identifiers.
type Service struct {
	storage storage
	panel   panelClient
	logger  *slog.Logger
}

func NewService(storage storage, panel panelClient, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		panel:   panel,
		logger:  logger,
	}
}

// Fetch returns the live state of the server behind the identifier,
// provided the caller owns it. Not-found and not-owner are distinct
// failures; neither reveals whose server the identifier belongs to.
func (s *Service) Fetch(ctx context.Context, userID, identifier string) (*ServerStatus, error) {
	if !identifierRe.MatchString(identifier) {
		return nil, ErrInvalidIdentifier
	}

	order, err := s.storage.GetOrder(ctx, orders.GetCriteria{PanelIdentifier: &identifier})
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up order")
	}
	if order == nil {
		return nil, ErrNotFound
	}
	if order.UserID != userID {
		s.logger.Warn("status request for server owned by another user",
			"identifier", identifier,
			"caller", userID)
		return nil, ErrForbidden
	}

	// Details and live resources are independent reads; issue them
	// concurrently. A details failure degrades the limits to zero, a
	// resources failure fails the whole request.
	var (
		details *pterodactyl.ServerDetails
		stats   *pterodactyl.ServerStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.panel.ServerDetails(gctx, identifier)
		if err != nil {
			s.logger.Warn("failed to fetch server details, limits degrade to zero",
				"identifier", identifier,
				"error", err)
			return nil
		}
		details = d
		return nil
	})
	g.Go(func() error {
		r, err := s.panel.ServerResources(gctx, identifier)
		if err != nil {
			return errors.Wrap(err, "failed to fetch server resources")
		}
		stats = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &ServerStatus{
		CurrentState: stats.CurrentState,
		IsSuspended:  stats.IsSuspended,
		Resources: Resources{
			MemoryBytes:    stats.Resources.MemoryBytes,
			CPUAbsolute:    stats.Resources.CPUAbsolute,
			DiskBytes:      stats.Resources.DiskBytes,
			NetworkRxBytes: stats.Resources.NetworkRxBytes,
			NetworkTxBytes: stats.Resources.NetworkTxBytes,
			Uptime:         stats.Resources.Uptime,
		},
	}
	if result.CurrentState == "" {
		result.CurrentState = "unknown"
	}

	if details != nil {
		result.ServerName = details.Name
		// Panel limits are MB; the API reports bytes.
		result.Resources.MemoryLimitBytes = details.Limits.Memory * bytesPerMB
		result.Resources.DiskLimitBytes = details.Limits.Disk * bytesPerMB
		result.Resources.CPULimit = details.Limits.CPU
	}

	return result, nil
}
