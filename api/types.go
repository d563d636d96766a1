package api

import "nmapcluster/store"

// HealthResponse reports that the coordinator is serving.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// QueuesResponse lists how many items wait in every queue.
type QueuesResponse struct {
	// Queues maps a queue name (discovery, fast, medium, slow, results) to its length.
	Queues map[string]int64 `json:"queues" example:"discovery:4,fast:12,medium:24,slow:12,results:0"`
	// Pending is the number of scan tasks not yet claimed by a worker.
	Pending int64 `json:"pending" example:"52"`
}

// HostsResponse is the stored inventory.
type HostsResponse struct {
	Hosts []store.HostRow `json:"hosts"`
	Count int             `json:"count" example:"3"`
}

// HostResponse is one host of the inventory with its open ports.
type HostResponse struct {
	store.HostRow
	// Scans is the number of port scan reports stored for the host.
	Scans int `json:"scans" example:"4"`
}

// ErrorResponse provides a consistent structure for API error payloads.
type ErrorResponse struct {
	Error string `json:"error" example:"host not found"`
}
