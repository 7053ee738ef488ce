package pterodactyl

// Wire types for the panel's application and client APIs. The panel wraps
// every object in {"object": ..., "attributes": {...}} envelopes.

type listResponse[T any] struct {
	Object string              `json:"object"`
	Data   []objectEnvelope[T] `json:"data"`
}

type objectEnvelope[T any] struct {
	Object     string `json:"object"`
	Attributes T      `json:"attributes"`
}

type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type CreateUserRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type Node struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	FQDN   string `json:"fqdn"`
	Memory int64  `json:"memory"`
	Disk   int64  `json:"disk"`
}

type Allocation struct {
	ID       int64  `json:"id"`
	IP       string `json:"ip"`
	Port     int    `json:"port"`
	Assigned bool   `json:"assigned"`
}

type Limits struct {
	Memory int64 `json:"memory"`
	Swap   int64 `json:"swap"`
	Disk   int64 `json:"disk"`
	IO     int64 `json:"io"`
	CPU    int64 `json:"cpu"`
}

type FeatureLimits struct {
	Databases   int `json:"databases"`
	Backups     int `json:"backups"`
	Allocations int `json:"allocations"`
}

type CreateServerRequest struct {
	Name          string            `json:"name"`
	User          int64             `json:"user"`
	Egg           int64             `json:"egg"`
	DockerImage   string            `json:"docker_image"`
	Startup       string            `json:"startup"`
	Environment   map[string]string `json:"environment"`
	Limits        Limits            `json:"limits"`
	FeatureLimits FeatureLimits     `json:"feature_limits"`
	Allocation    struct {
		Default int64 `json:"default"`
	} `json:"allocation"`
}

type Server struct {
	ID         int64  `json:"id"`
	Identifier string `json:"identifier"`
	UUID       string `json:"uuid"`
	Name       string `json:"name"`
}

// ServerDetails is the client-scoped view of a server, carrying the
// configured limits. Memory and disk are in MB.
type ServerDetails struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Limits     Limits `json:"limits"`
}

type ResourceUsage struct {
	MemoryBytes    int64   `json:"memory_bytes"`
	CPUAbsolute    float64 `json:"cpu_absolute"`
	DiskBytes      int64   `json:"disk_bytes"`
	NetworkRxBytes int64   `json:"network_rx_bytes"`
	NetworkTxBytes int64   `json:"network_tx_bytes"`
	Uptime         int64   `json:"uptime"`
}

// ServerStats is the live usage snapshot from the client API.
type ServerStats struct {
	CurrentState string        `json:"current_state"`
	IsSuspended  bool          `json:"is_suspended"`
	Resources    ResourceUsage `json:"resources"`
}
