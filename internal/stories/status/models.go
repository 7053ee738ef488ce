package status

import "github.com/pkg/errors"

var (
	// ErrInvalidIdentifier means the identifier does not look like a
	// panel identifier at all; no lookup is attempted.
	ErrInvalidIdentifier = errors.New("invalid server identifier")
	// ErrNotFound means no order owns the identifier.
	ErrNotFound = errors.New("server not found")
	// ErrForbidden means the order exists but belongs to another user.
	ErrForbidden = errors.New("not the owner of this server")
)

type Resources struct {
	MemoryBytes      int64   `json:"memory_bytes"`
	MemoryLimitBytes int64   `json:"memory_limit_bytes"`
	CPUAbsolute      float64 `json:"cpu_absolute"`
	CPULimit         int64   `json:"cpu_limit"`
	DiskBytes        int64   `json:"disk_bytes"`
	DiskLimitBytes   int64   `json:"disk_limit_bytes"`
	NetworkRxBytes   int64   `json:"network_rx_bytes"`
	NetworkTxBytes   int64   `json:"network_tx_bytes"`
	Uptime           int64   `json:"uptime"`
}

// ServerStatus is the customer-facing view of one server's live state.
type ServerStatus struct {
	CurrentState string    `json:"current_state"`
	IsSuspended  bool      `json:"is_suspended"`
	ServerName   string    `json:"server_name"`
	Resources    Resources `json:"resources"`
}
