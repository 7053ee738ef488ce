package provisioning

// Request describes one server to create on the panel. RAM and Disk are
// MB and are passed through to the panel unchanged; CPU is percent.
// The optional override fields take precedence over the game preset.
type Request struct {
	OrderID   string
	GameID    string
	PlanName  string
	RAM       int64
	CPU       int64
	Disk      int64
	UserID    string
	UserEmail string

	VariantID        *string
	EggID            *int64
	NestID           *int64
	DockerImage      *string
	StartupCommand   *string
	MinecraftVersion *string
}

// Result carries the panel identifiers recorded on the order.
type Result struct {
	ServerID         int64
	ServerIdentifier string
}

// serverParams is the fully resolved parameter set sent to the panel:
// request overrides merged over the game preset.
type serverParams struct {
	EggID       int64
	NestID      int64
	DockerImage string
	Startup     string
	Environment map[string]string
}
