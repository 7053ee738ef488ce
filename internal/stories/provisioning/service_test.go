package provisioning

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/samber/lo"

	"blockhost/internal/infra/pterodactyl"
	"blockhost/internal/stories/catalog"
	"blockhost/internal/stories/orders"
)

type fakeStorage struct {
	order   *orders.Order
	plan    *catalog.Plan
	product *catalog.Product
	variant *catalog.Variant

	updateCalls int
	lastParams  orders.UpdateParams
}

func (f *fakeStorage) GetOrder(_ context.Context, _ orders.GetCriteria) (*orders.Order, error) {
	return f.order, nil
}

func (f *fakeStorage) UpdateOrder(_ context.Context, _ orders.GetCriteria, params orders.UpdateParams) (*orders.Order, error) {
	f.updateCalls++
	f.lastParams = params
	return f.order, nil
}

func (f *fakeStorage) GetPlan(_ context.Context, _ catalog.GetPlanCriteria) (*catalog.Plan, error) {
	return f.plan, nil
}

func (f *fakeStorage) GetProduct(_ context.Context, _ catalog.GetProductCriteria) (*catalog.Product, error) {
	return f.product, nil
}

func (f *fakeStorage) GetVariant(_ context.Context, _ catalog.GetVariantCriteria) (*catalog.Variant, error) {
	return f.variant, nil
}

type fakePanel struct {
	user        *pterodactyl.User
	nodes       []pterodactyl.Node
	allocations []pterodactyl.Allocation
	server      *pterodactyl.Server

	createdUser   *pterodactyl.CreateUserRequest
	createdServer *pterodactyl.CreateServerRequest
	createErr     error
}

func (f *fakePanel) FindUserByEmail(_ context.Context, _ string) (*pterodactyl.User, error) {
	return f.user, nil
}

func (f *fakePanel) CreateUser(_ context.Context, req pterodactyl.CreateUserRequest) (*pterodactyl.User, error) {
	f.createdUser = &req
	return &pterodactyl.User{ID: 7, Email: req.Email, Username: req.Username}, nil
}

func (f *fakePanel) ListNodes(_ context.Context) ([]pterodactyl.Node, error) {
	return f.nodes, nil
}

func (f *fakePanel) ListFreeAllocations(_ context.Context, _ int64) ([]pterodactyl.Allocation, error) {
	return f.allocations, nil
}

func (f *fakePanel) CreateServer(_ context.Context, req pterodactyl.CreateServerRequest) (*pterodactyl.Server, error) {
	f.createdServer = &req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.server, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func healthyPanel() *fakePanel {
	return &fakePanel{
		user:        &pterodactyl.User{ID: 3, Email: "alice@example.com"},
		nodes:       []pterodactyl.Node{{ID: 1, Name: "node-1"}},
		allocations: []pterodactyl.Allocation{{ID: 55, IP: "10.0.0.1", Port: 25565}},
		server:      &pterodactyl.Server{ID: 99, Identifier: "a1b2c3d4"},
	}
}

func mustPresets(t *testing.T) map[string]GamePreset {
	t.Helper()
	presets, err := LoadPresets()
	if err != nil {
		t.Fatalf("LoadPresets: %v", err)
	}
	return presets
}

func baseRequest() Request {
	return Request{
		OrderID:   "11112222-3333-4444-5555-666677778888",
		GameID:    "minecraft",
		PlanName:  "Iron Plan",
		RAM:       4096,
		CPU:       200,
		Disk:      20480,
		UserID:    "user-1",
		UserEmail: "alice@example.com",
	}
}

func TestProvisionPassesLimitsThroughInMB(t *testing.T) {
	storage := &fakeStorage{order: &orders.Order{ID: "ord-1"}}
	panel := healthyPanel()
	svc := NewService(storage, storage,panel, mustPresets(t), testLogger(), fixedNow)

	result, err := svc.Provision(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}

	created := panel.createdServer
	if created == nil {
		t.Fatal("no server creation request sent")
	}
	if created.Limits.Memory != 4096 {
		t.Errorf("memory = %d, want 4096", created.Limits.Memory)
	}
	if created.Limits.Disk != 20480 {
		t.Errorf("disk = %d, want 20480", created.Limits.Disk)
	}
	if created.Limits.CPU != 200 {
		t.Errorf("cpu = %d, want 200", created.Limits.CPU)
	}
	if created.Limits.Swap != 0 {
		t.Errorf("swap = %d, want 0", created.Limits.Swap)
	}
	if created.Limits.IO != 500 {
		t.Errorf("io = %d, want 500", created.Limits.IO)
	}
	if created.FeatureLimits.Databases != 1 || created.FeatureLimits.Backups != 3 || created.FeatureLimits.Allocations != 1 {
		t.Errorf("feature limits = %+v, want {1 3 1}", created.FeatureLimits)
	}
	if created.Allocation.Default != 55 {
		t.Errorf("allocation = %d, want 55", created.Allocation.Default)
	}

	if result.ServerID != 99 || result.ServerIdentifier != "a1b2c3d4" {
		t.Errorf("result = %+v, want {99 a1b2c3d4}", result)
	}
}

func TestProvisionRecordsIdentifiersAndActivates(t *testing.T) {
	storage := &fakeStorage{order: &orders.Order{ID: "ord-1"}}
	svc := NewService(storage, storage,healthyPanel(), mustPresets(t), testLogger(), fixedNow)

	if _, err := svc.Provision(context.Background(), baseRequest()); err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}

	params := storage.lastParams
	if params.Status == nil || *params.Status != orders.StatusActive {
		t.Errorf("status param = %v, want active", params.Status)
	}
	if params.PanelServerID == nil || *params.PanelServerID != 99 {
		t.Errorf("server id param = %v, want 99", params.PanelServerID)
	}
	if params.PanelIdentifier == nil || *params.PanelIdentifier != "a1b2c3d4" {
		t.Errorf("identifier param = %v, want a1b2c3d4", params.PanelIdentifier)
	}
}

func TestProvisionServerNameFormat(t *testing.T) {
	panel := healthyPanel()
	svc := NewService(&fakeStorage{}, &fakeStorage{},panel, mustPresets(t), testLogger(), fixedNow)

	if _, err := svc.Provision(context.Background(), baseRequest()); err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}

	want := "minecraft-iron-plan-11112222"
	if panel.createdServer.Name != want {
		t.Errorf("server name = %q, want %q", panel.createdServer.Name, want)
	}
}

func TestProvisionOverridesWinOverPreset(t *testing.T) {
	panel := healthyPanel()
	svc := NewService(&fakeStorage{}, &fakeStorage{},panel, mustPresets(t), testLogger(), fixedNow)

	req := baseRequest()
	req.EggID = lo.ToPtr(int64(777))
	req.DockerImage = lo.ToPtr("ghcr.io/custom/java:21")
	req.StartupCommand = lo.ToPtr("java -jar custom.jar")

	if _, err := svc.Provision(context.Background(), req); err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}

	created := panel.createdServer
	if created.Egg != 777 {
		t.Errorf("egg = %d, want 777", created.Egg)
	}
	if created.DockerImage != "ghcr.io/custom/java:21" {
		t.Errorf("docker image = %q", created.DockerImage)
	}
	if created.Startup != "java -jar custom.jar" {
		t.Errorf("startup = %q", created.Startup)
	}
}

func TestProvisionFallsBackToPreset(t *testing.T) {
	panel := healthyPanel()
	presets := mustPresets(t)
	svc := NewService(&fakeStorage{}, &fakeStorage{},panel, presets, testLogger(), fixedNow)

	if _, err := svc.Provision(context.Background(), baseRequest()); err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}

	preset := presets["minecraft"]
	created := panel.createdServer
	if created.Egg != preset.EggID {
		t.Errorf("egg = %d, want preset %d", created.Egg, preset.EggID)
	}
	if created.DockerImage != preset.DockerImage {
		t.Errorf("docker image = %q, want preset %q", created.DockerImage, preset.DockerImage)
	}
}

func TestProvisionMinecraftVersionEnv(t *testing.T) {
	panel := healthyPanel()
	svc := NewService(&fakeStorage{}, &fakeStorage{},panel, mustPresets(t), testLogger(), fixedNow)

	req := baseRequest()
	req.MinecraftVersion = lo.ToPtr("1.20.4")

	if _, err := svc.Provision(context.Background(), req); err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}

	if got := panel.createdServer.Environment["VANILLA_VERSION"]; got != "1.20.4" {
		t.Errorf("VANILLA_VERSION = %q, want 1.20.4", got)
	}
}

func TestProvisionUnknownGameWithoutOverrides(t *testing.T) {
	svc := NewService(&fakeStorage{}, &fakeStorage{},healthyPanel(), mustPresets(t), testLogger(), fixedNow)

	req := baseRequest()
	req.GameID = "factorio"

	_, err := svc.Provision(context.Background(), req)
	if err == nil {
		t.Fatal("expected error for unknown game without overrides")
	}
	if !strings.Contains(err.Error(), "unknown game") {
		t.Errorf("error = %v, want unknown game", err)
	}
}

func TestProvisionNoNodes(t *testing.T) {
	panel := healthyPanel()
	panel.nodes = nil
	storage := &fakeStorage{}
	svc := NewService(storage, storage,panel, mustPresets(t), testLogger(), fixedNow)

	_, err := svc.Provision(context.Background(), baseRequest())
	if !errors.Is(err, ErrNoNodes) {
		t.Fatalf("error = %v, want ErrNoNodes", err)
	}
	if storage.lastParams.Status == nil || *storage.lastParams.Status != orders.StatusFailed {
		t.Errorf("order should be marked failed, got %v", storage.lastParams.Status)
	}
}

func TestProvisionNoFreeAllocations(t *testing.T) {
	panel := healthyPanel()
	panel.allocations = nil
	svc := NewService(&fakeStorage{}, &fakeStorage{},panel, mustPresets(t), testLogger(), fixedNow)

	_, err := svc.Provision(context.Background(), baseRequest())
	if !errors.Is(err, ErrNoAllocations) {
		t.Fatalf("error = %v, want ErrNoAllocations", err)
	}
}

func TestProvisionCreatesPanelUserWhenMissing(t *testing.T) {
	panel := healthyPanel()
	panel.user = nil
	svc := NewService(&fakeStorage{}, &fakeStorage{},panel, mustPresets(t), testLogger(), fixedNow)

	if _, err := svc.Provision(context.Background(), baseRequest()); err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}

	if panel.createdUser == nil {
		t.Fatal("expected a panel user to be created")
	}
	if panel.createdUser.Email != "alice@example.com" {
		t.Errorf("created user email = %q", panel.createdUser.Email)
	}
	if !strings.HasPrefix(panel.createdUser.Username, "alice") {
		t.Errorf("username = %q, want alice prefix", panel.createdUser.Username)
	}
}

func TestProvisionCreateFailureMarksOrderFailed(t *testing.T) {
	panel := healthyPanel()
	panel.createErr = errors.New("panel API error (502): upstream gone")
	storage := &fakeStorage{}
	svc := NewService(storage, storage,panel, mustPresets(t), testLogger(), fixedNow)

	_, err := svc.Provision(context.Background(), baseRequest())
	if err == nil {
		t.Fatal("expected error from panel creation failure")
	}
	if !strings.Contains(err.Error(), "upstream gone") {
		t.Errorf("upstream error body not surfaced: %v", err)
	}
	if storage.lastParams.Status == nil || *storage.lastParams.Status != orders.StatusFailed {
		t.Errorf("order should be marked failed, got %v", storage.lastParams.Status)
	}
}

func TestProvisionOrderAlreadyProvisionedIsNoOp(t *testing.T) {
	storage := &fakeStorage{order: &orders.Order{
		ID:              "ord-1",
		DisplayID:       "ORD-1001",
		PanelServerID:   lo.ToPtr(int64(12)),
		PanelIdentifier: lo.ToPtr("deadbeef"),
	}}
	panel := healthyPanel()
	svc := NewService(storage, storage,panel, mustPresets(t), testLogger(), fixedNow)

	result, err := svc.ProvisionOrder(context.Background(), "ord-1")
	if err != nil {
		t.Fatalf("ProvisionOrder returned error: %v", err)
	}
	if result.ServerID != 12 || result.ServerIdentifier != "deadbeef" {
		t.Errorf("result = %+v, want existing identifiers", result)
	}
	if panel.createdServer != nil {
		t.Error("no panel server should be created for an already provisioned order")
	}
}

func TestProvisionOrderVariantOverridesProduct(t *testing.T) {
	variantID := "var-1"
	storage := &fakeStorage{
		order: &orders.Order{
			ID:        "ord-1",
			UserID:    "user-1",
			UserEmail: "alice@example.com",
			PlanID:    lo.ToPtr("plan-1"),
			VariantID: &variantID,
		},
		plan: &catalog.Plan{
			ID:        "plan-1",
			ProductID: "prod-1",
			Name:      "Iron Plan",
			RAM:       4096,
			CPU:       200,
			Disk:      20480,
		},
		product: &catalog.Product{
			ID:          "prod-1",
			GameID:      "minecraft",
			EggID:       lo.ToPtr(int64(1)),
			DockerImage: lo.ToPtr("ghcr.io/product/java:17"),
		},
		variant: &catalog.Variant{
			ID:          "var-1",
			ProductID:   "prod-1",
			Name:        "Paper",
			EggID:       lo.ToPtr(int64(2)),
			DockerImage: nil, // falls through to the product image
			Version:     lo.ToPtr("1.20.4"),
		},
	}
	panel := healthyPanel()
	svc := NewService(storage, storage,panel, mustPresets(t), testLogger(), fixedNow)

	if _, err := svc.ProvisionOrder(context.Background(), "ord-1"); err != nil {
		t.Fatalf("ProvisionOrder returned error: %v", err)
	}

	created := panel.createdServer
	if created.Egg != 2 {
		t.Errorf("egg = %d, want variant egg 2", created.Egg)
	}
	if created.DockerImage != "ghcr.io/product/java:17" {
		t.Errorf("docker image = %q, want product fallback", created.DockerImage)
	}
	if got := created.Environment["VANILLA_VERSION"]; got != "1.20.4" {
		t.Errorf("VANILLA_VERSION = %q, want variant version", got)
	}
}

func TestProvisionOrderMissingPlanReference(t *testing.T) {
	storage := &fakeStorage{order: &orders.Order{ID: "ord-1", DisplayID: "ORD-1001"}}
	svc := NewService(storage, storage,healthyPanel(), mustPresets(t), testLogger(), fixedNow)

	if _, err := svc.ProvisionOrder(context.Background(), "ord-1"); err == nil {
		t.Fatal("expected error for order without plan reference")
	}
}
