// Package store keeps the inventory of hosts and open ports found by port
// scans in a sqlite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"nmapcluster/scanner"
	"nmapcluster/task"
)

// ErrNotFound is returned when a host is not in the inventory.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS hosts (
	ip TEXT NOT NULL PRIMARY KEY,
	hostname TEXT NOT NULL DEFAULT '',
	os TEXT NOT NULL DEFAULT '',
	osconf INTEGER NOT NULL DEFAULT 0,
	scantime INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS ports (
	ip TEXT NOT NULL,
	protocol TEXT NOT NULL,
	port INTEGER NOT NULL,
	service TEXT NOT NULL DEFAULT '',
	tunnel TEXT NOT NULL DEFAULT '',
	servicever TEXT NOT NULL DEFAULT '',
	serviceconf INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (ip, protocol, port)
);
CREATE TABLE IF NOT EXISTS scans (
	task_id TEXT NOT NULL,
	ip TEXT NOT NULL,
	kind TEXT NOT NULL,
	worker TEXT NOT NULL DEFAULT '',
	raw TEXT NOT NULL,
	scantime INTEGER NOT NULL,
	PRIMARY KEY (task_id, ip)
);`

// Record is one host's share of a finished port scan.
type Record struct {
	Host      scanner.Host
	TaskID    string
	Kind      task.Kind
	Worker    string
	Raw       []byte
	ScannedAt time.Time
}

// HostRow is a host of the inventory.
type HostRow struct {
	IP         string    `json:"ip"`
	Hostname   string    `json:"hostname,omitempty"`
	OS         string    `json:"os,omitempty"`
	OSAccuracy int       `json:"os_accuracy,omitempty"`
	ScannedAt  time.Time `json:"scanned_at"`
	Ports      []PortRow `json:"ports,omitempty"`
}

// PortRow is an open port of the inventory.
type PortRow struct {
	Port           int    `json:"port"`
	Protocol       string `json:"protocol"`
	Service        string `json:"service,omitempty"`
	Tunnel         string `json:"tunnel,omitempty"`
	ServiceVersion string `json:"service_version,omitempty"`
	Confidence     int    `json:"confidence,omitempty"`
}

// SQLite is the inventory database.
type SQLite struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema.
func Open(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Store merges rec into the inventory. Storing the same record twice leaves
// the inventory unchanged.
func (s *SQLite) Store(ctx context.Context, rec Record) error {
	ip := rec.Host.Addr.String()
	scanTime := rec.ScannedAt.UTC().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO hosts (ip, hostname, os, osconf, scantime)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ip) DO UPDATE SET
			hostname = CASE WHEN excluded.hostname <> '' THEN excluded.hostname ELSE hosts.hostname END,
			os = CASE WHEN excluded.os <> '' THEN excluded.os ELSE hosts.os END,
			osconf = CASE WHEN excluded.os <> '' THEN excluded.osconf ELSE hosts.osconf END,
			scantime = MAX(hosts.scantime, excluded.scantime)`,
		ip, rec.Host.Hostname, rec.Host.OS, rec.Host.OSAccuracy, scanTime)
	if err != nil {
		return fmt.Errorf("upsert host %s: %w", ip, err)
	}

	for _, p := range rec.Host.Ports {
		_, err = tx.ExecContext(ctx, `INSERT INTO ports (ip, protocol, port, service, tunnel, servicever, serviceconf)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(ip, protocol, port) DO UPDATE SET
				service = excluded.service,
				tunnel = excluded.tunnel,
				servicever = excluded.servicever,
				serviceconf = excluded.serviceconf`,
			ip, p.Protocol, int(p.Number), p.Service, p.Tunnel, p.ServiceVersion(), p.Confidence)
		if err != nil {
			return fmt.Errorf("upsert port %s %d/%s: %w", ip, p.Number, p.Protocol, err)
		}
	}

	_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO scans (task_id, ip, kind, worker, raw, scantime)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.TaskID, ip, string(rec.Kind), rec.Worker, string(rec.Raw), scanTime)
	if err != nil {
		return fmt.Errorf("insert scan %s: %w", rec.TaskID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Hosts lists the inventory ordered by address, ports included.
func (s *SQLite) Hosts(ctx context.Context) ([]HostRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ip, hostname, os, osconf, scantime FROM hosts`)
	if err != nil {
		return nil, fmt.Errorf("query hosts: %w", err)
	}
	defer rows.Close()

	var hosts []HostRow
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query hosts: %w", err)
	}
	rows.Close()

	sortHosts(hosts)
	for i := range hosts {
		ports, err := s.ports(ctx, hosts[i].IP)
		if err != nil {
			return nil, err
		}
		hosts[i].Ports = ports
	}
	return hosts, nil
}

// Host returns one host with its ports, or ErrNotFound.
func (s *SQLite) Host(ctx context.Context, addr netip.Addr) (HostRow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT ip, hostname, os, osconf, scantime FROM hosts WHERE ip = ?`, addr.String())
	h, err := scanHost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return HostRow{}, ErrNotFound
	}
	if err != nil {
		return HostRow{}, err
	}
	h.Ports, err = s.ports(ctx, h.IP)
	if err != nil {
		return HostRow{}, err
	}
	return h, nil
}

// ScanCount returns how many scan reports were stored for addr.
func (s *SQLite) ScanCount(ctx context.Context, addr netip.Addr) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans WHERE ip = ?`, addr.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count scans: %w", err)
	}
	return n, nil
}

func (s *SQLite) ports(ctx context.Context, ip string) ([]PortRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT port, protocol, service, tunnel, servicever, serviceconf
		FROM ports WHERE ip = ? ORDER BY protocol, port`, ip)
	if err != nil {
		return nil, fmt.Errorf("query ports of %s: %w", ip, err)
	}
	defer rows.Close()

	var ports []PortRow
	for rows.Next() {
		var p PortRow
		if err := rows.Scan(&p.Port, &p.Protocol, &p.Service, &p.Tunnel, &p.ServiceVersion, &p.Confidence); err != nil {
			return nil, fmt.Errorf("scan port row: %w", err)
		}
		ports = append(ports, p)
	}
	return ports, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHost(r rowScanner) (HostRow, error) {
	var (
		h        HostRow
		scanTime int64
	)
	if err := r.Scan(&h.IP, &h.Hostname, &h.OS, &h.OSAccuracy, &scanTime); err != nil {
		return HostRow{}, err
	}
	h.ScannedAt = time.Unix(scanTime, 0).UTC()
	return h, nil
}

// sortHosts orders hosts by numeric address rather than text.
func sortHosts(hosts []HostRow) {
	slices.SortFunc(hosts, func(a, b HostRow) int {
		aa, errA := netip.ParseAddr(a.IP)
		bb, errB := netip.ParseAddr(b.IP)
		if errA != nil || errB != nil {
			return strings.Compare(a.IP, b.IP)
		}
		return aa.Compare(bb)
	})
}
