package provisioning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"blockhost/internal/infra/pterodactyl"
	"blockhost/internal/metrics"
	"blockhost/internal/stories/catalog"
	"blockhost/internal/stories/orders"
)

var (
	ErrNoNodes       = errors.New("no nodes available")
	ErrNoAllocations = errors.New("no free allocations available")
)

const (
	defaultDatabases   = 1
	defaultBackups     = 3
	defaultAllocations = 1
	defaultIO          = 500
)

// Service turns a paid order into a running panel server and records the
// panel identifiers on the order.
type Service struct {
	storage storage
	catalog catalogService
	panel   panelClient
	presets map[string]GamePreset
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(storage storage, catalog catalogService, panel panelClient, presets map[string]GamePreset, logger *slog.Logger, now func() time.Time) *Service {
	return &Service{
		storage: storage,
		catalog: catalog,
		panel:   panel,
		presets: presets,
		logger:  logger,
		now:     now,
	}
}

// ProvisionOrder resolves the order's plan, product and variant from
// the catalog and provisions it. Used by the checkout flow and the retry
// worker; already provisioned orders are a no-op.
func (s *Service) ProvisionOrder(ctx context.Context, orderID string) (*Result, error) {
	order, err := s.storage.GetOrder(ctx, orders.GetCriteria{ID: &orderID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get order")
	}
	if order == nil {
		return nil, errors.Errorf("order not found: %s", orderID)
	}

	if order.PanelServerID != nil && order.PanelIdentifier != nil {
		s.logger.Info("order already provisioned",
			"order", order.DisplayID,
			"server_id", *order.PanelServerID)
		return &Result{ServerID: *order.PanelServerID, ServerIdentifier: *order.PanelIdentifier}, nil
	}

	if order.PlanID == nil {
		return nil, errors.Errorf("order %s has no plan reference, cannot provision", order.DisplayID)
	}

	plan, err := s.catalog.GetPlan(ctx, catalog.GetPlanCriteria{ID: order.PlanID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get plan")
	}
	if plan == nil {
		return nil, errors.Errorf("plan not found: %s", *order.PlanID)
	}

	product, err := s.catalog.GetProduct(ctx, catalog.GetProductCriteria{ID: &plan.ProductID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get product")
	}
	if product == nil {
		return nil, errors.Errorf("product not found: %s", plan.ProductID)
	}

	var variant *catalog.Variant
	if order.VariantID != nil {
		variant, err = s.catalog.GetVariant(ctx, catalog.GetVariantCriteria{ID: order.VariantID})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get variant")
		}
	}

	req := Request{
		OrderID:   order.ID,
		GameID:    product.GameID,
		PlanName:  plan.Name,
		RAM:       plan.RAM,
		CPU:       plan.CPU,
		Disk:      plan.Disk,
		UserID:    order.UserID,
		UserEmail: order.UserEmail,
		VariantID: order.VariantID,
	}

	// Variant fields win over product defaults, field by field.
	req.EggID = coalesce(variantField(variant, func(v *catalog.Variant) *int64 { return v.EggID }), product.EggID)
	req.NestID = coalesce(variantField(variant, func(v *catalog.Variant) *int64 { return v.NestID }), product.NestID)
	req.DockerImage = coalesce(variantField(variant, func(v *catalog.Variant) *string { return v.DockerImage }), product.DockerImage)
	req.StartupCommand = coalesce(variantField(variant, func(v *catalog.Variant) *string { return v.StartupCommand }), product.StartupCommand)
	if variant != nil && variant.Version != nil {
		req.MinecraftVersion = variant.Version
	}

	return s.Provision(ctx, req)
}

// Provision creates the panel server for the request and flips the
// order to active. On any failure the order is marked failed and the
// upstream cause is returned for logging; the order row is never rolled
// back.
func (s *Service) Provision(ctx context.Context, req Request) (*Result, error) {
	result, err := s.provision(ctx, req)
	if err != nil {
		metrics.ProvisionAttemptsTotal.WithLabelValues("failure").Inc()
		s.logger.Error("provisioning failed",
			"order_id", req.OrderID,
			"game", req.GameID,
			"error", err)
		s.markFailed(ctx, req.OrderID)
		return nil, err
	}

	metrics.ProvisionAttemptsTotal.WithLabelValues("success").Inc()
	return result, nil
}

func (s *Service) provision(ctx context.Context, req Request) (*Result, error) {
	params, err := s.resolveParams(req)
	if err != nil {
		return nil, err
	}

	user, err := s.resolvePanelUser(ctx, req.UserEmail)
	if err != nil {
		return nil, err
	}

	nodes, err := s.panel.ListNodes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list panel nodes")
	}
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}
	node := nodes[0]

	allocations, err := s.panel.ListFreeAllocations(ctx, node.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list allocations for node %d", node.ID)
	}
	if len(allocations) == 0 {
		return nil, ErrNoAllocations
	}

	createReq := pterodactyl.CreateServerRequest{
		Name:        serverName(req.GameID, req.PlanName, req.OrderID),
		User:        user.ID,
		Egg:         params.EggID,
		DockerImage: params.DockerImage,
		Startup:     params.Startup,
		Environment: params.Environment,
		Limits: pterodactyl.Limits{
			Memory: req.RAM,
			Swap:   0,
			Disk:   req.Disk,
			IO:     defaultIO,
			CPU:    req.CPU,
		},
		FeatureLimits: pterodactyl.FeatureLimits{
			Databases:   defaultDatabases,
			Backups:     defaultBackups,
			Allocations: defaultAllocations,
		},
	}
	createReq.Allocation.Default = allocations[0].ID

	server, err := s.panel.CreateServer(ctx, createReq)
	if err != nil {
		return nil, errors.Wrap(err, "panel server creation failed")
	}

	_, err = s.storage.UpdateOrder(ctx, orders.GetCriteria{ID: &req.OrderID}, orders.UpdateParams{
		Status:          lo.ToPtr(orders.StatusActive),
		PanelServerID:   &server.ID,
		PanelIdentifier: &server.Identifier,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to record panel identifiers on order")
	}

	s.logger.Info("server provisioned",
		"order_id", req.OrderID,
		"server_id", server.ID,
		"identifier", server.Identifier,
		"node", node.ID)

	return &Result{ServerID: server.ID, ServerIdentifier: server.Identifier}, nil
}

// resolveParams merges the request overrides over the game preset. The
// preset is required only for fields the request leaves unset.
func (s *Service) resolveParams(req Request) (*serverParams, error) {
	preset, ok := s.presets[strings.ToLower(req.GameID)]
	if !ok && (req.EggID == nil || req.DockerImage == nil || req.StartupCommand == nil) {
		return nil, errors.Errorf("unknown game %q and no complete provisioning overrides supplied", req.GameID)
	}

	params := &serverParams{
		EggID:       preset.EggID,
		NestID:      preset.NestID,
		DockerImage: preset.DockerImage,
		Startup:     preset.Startup,
		Environment: make(map[string]string, len(preset.Environment)+1),
	}
	for k, v := range preset.Environment {
		params.Environment[k] = v
	}

	if req.EggID != nil {
		params.EggID = *req.EggID
	}
	if req.NestID != nil {
		params.NestID = *req.NestID
	}
	if req.DockerImage != nil {
		params.DockerImage = *req.DockerImage
	}
	if req.StartupCommand != nil {
		params.Startup = *req.StartupCommand
	}
	if req.MinecraftVersion != nil && preset.VersionEnv != "" {
		params.Environment[preset.VersionEnv] = *req.MinecraftVersion
	}

	return params, nil
}

// resolvePanelUser finds the panel account for the email or creates one
// with a unique generated username.
func (s *Service) resolvePanelUser(ctx context.Context, email string) (*pterodactyl.User, error) {
	if email == "" {
		return nil, errors.New("user email is required to resolve a panel account")
	}

	user, err := s.panel.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search panel users")
	}
	if user != nil {
		return user, nil
	}

	local := email
	if i := strings.Index(email, "@"); i > 0 {
		local = email[:i]
	}
	username := fmt.Sprintf("%s%d", sanitizeUsername(local), s.now().Unix())

	created, err := s.panel.CreateUser(ctx, pterodactyl.CreateUserRequest{
		Email:     email,
		Username:  username,
		FirstName: local,
		LastName:  "Customer",
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create panel user")
	}

	s.logger.Info("panel user created", "email", email, "username", username)
	return created, nil
}

func (s *Service) markFailed(ctx context.Context, orderID string) {
	_, err := s.storage.UpdateOrder(ctx, orders.GetCriteria{ID: &orderID}, orders.UpdateParams{
		Status: lo.ToPtr(orders.StatusFailed),
	})
	if err != nil {
		s.logger.Error("failed to mark order as failed", "order_id", orderID, "error", err)
	}
}

// serverName derives a deterministic panel server name from the game,
// plan and a short order id prefix.
func serverName(gameID, planName, orderID string) string {
	prefix := orderID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	plan := strings.ReplaceAll(strings.ToLower(planName), " ", "-")
	return fmt.Sprintf("%s-%s-%s", strings.ToLower(gameID), plan, prefix)
}

func sanitizeUsername(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "customer"
	}
	return b.String()
}

func variantField[T any](v *catalog.Variant, get func(*catalog.Variant) *T) *T {
	if v == nil {
		return nil
	}
	return get(v)
}

func coalesce[T any](values ...*T) *T {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
