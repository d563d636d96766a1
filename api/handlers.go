package api

import (
	"context"
	"errors"
	"net/http"
	"net/netip"

	"github.com/gin-gonic/gin"

	"nmapcluster/logging"
	"nmapcluster/queue"
	"nmapcluster/store"
	"nmapcluster/task"
)

// Inventory is the read side of the scan result store.
type Inventory interface {
	Hosts(ctx context.Context) ([]store.HostRow, error)
	Host(ctx context.Context, addr netip.Addr) (store.HostRow, error)
	ScanCount(ctx context.Context, addr netip.Addr) (int, error)
}

// Server bundles dependencies for HTTP handlers.
type Server struct {
	set       queue.Set
	inventory Inventory
}

// NewServer creates a new API server instance.
func NewServer(set queue.Set, inventory Inventory) *Server {
	return &Server{set: set, inventory: inventory}
}

// RegisterRoutes attaches handlers to the provided Gin router group.
func (s *Server) RegisterRoutes(routes gin.IRoutes) {
	routes.GET("/queues", s.queuesHandler)
	routes.GET("/hosts", s.hostsHandler)
	routes.GET("/hosts/:addr", s.hostHandler)
}

// @Summary      Health check
// @Tags         System
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Router       /health [get]
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// @Summary      Queue depths
// @Description  Number of items waiting in each shared queue. Tasks claimed by a worker are not counted.
// @Tags         Queues
// @Produce      json
// @Success      200  {object}  QueuesResponse
// @Failure      401  {object}  ErrorResponse  "Missing or incorrect API key"
// @Failure      500  {object}  ErrorResponse  "Queue backend unavailable"
// @Security     ApiKeyAuth
// @Router       /api/v1/queues [get]
func (s *Server) queuesHandler(c *gin.Context) {
	depths, err := queue.Depths(c.Request.Context(), s.set)
	if err != nil {
		logging.Logger().ErrorContext(c.Request.Context(), "reading queue depths", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to read queues"})
		return
	}

	resp := QueuesResponse{Queues: make(map[string]int64, len(depths))}
	for name, n := range depths {
		resp.Queues[string(name)] = n
		if name != task.QueueResults {
			resp.Pending += n
		}
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      List discovered hosts
// @Description  Hosts that at least one port scan reported, ordered by address, with their open ports.
// @Tags         Hosts
// @Produce      json
// @Success      200  {object}  HostsResponse
// @Failure      401  {object}  ErrorResponse  "Missing or incorrect API key"
// @Failure      500  {object}  ErrorResponse  "Inventory unavailable"
// @Security     ApiKeyAuth
// @Router       /api/v1/hosts [get]
func (s *Server) hostsHandler(c *gin.Context) {
	hosts, err := s.inventory.Hosts(c.Request.Context())
	if err != nil {
		logging.Logger().ErrorContext(c.Request.Context(), "listing hosts", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load hosts"})
		return
	}
	if hosts == nil {
		hosts = []store.HostRow{}
	}
	c.JSON(http.StatusOK, HostsResponse{Hosts: hosts, Count: len(hosts)})
}

// @Summary      Get one host
// @Tags         Hosts
// @Produce      json
// @Param        addr  path      string  true  "IPv4 or IPv6 address"
// @Success      200   {object}  HostResponse
// @Failure      400   {object}  ErrorResponse  "Malformed address"
// @Failure      401   {object}  ErrorResponse  "Missing or incorrect API key"
// @Failure      404   {object}  ErrorResponse  "Host was never port scanned"
// @Failure      500   {object}  ErrorResponse  "Inventory unavailable"
// @Security     ApiKeyAuth
// @Router       /api/v1/hosts/{addr} [get]
func (s *Server) hostHandler(c *gin.Context) {
	addr, err := netip.ParseAddr(c.Param("addr"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid address"})
		return
	}
	addr = addr.Unmap()

	ctx := c.Request.Context()
	host, err := s.inventory.Host(ctx, addr)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "host not found"})
			return
		}
		logging.Logger().ErrorContext(ctx, "loading host", "host", addr.String(), "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load host"})
		return
	}
	scans, err := s.inventory.ScanCount(ctx, addr)
	if err != nil {
		logging.Logger().ErrorContext(ctx, "counting scans", "host", addr.String(), "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load host"})
		return
	}

	c.JSON(http.StatusOK, HostResponse{HostRow: host, Scans: scans})
}
