// ABOUTME: mDNS discovery of haptic device servers on the local network
// ABOUTME: Used when no device address is configured explicitly
package haptics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hashicorp/mdns"
)

const serviceType = "_hapticsync._tcp"

// ServerInfo describes a discovered device server.
type ServerInfo struct {
	Name string
	Host string
	Port int
}

// Addr returns the dialable host:port address.
func (s ServerInfo) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Discovery browses for haptic device servers via mDNS.
type Discovery struct {
	logger  *log.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan ServerInfo
}

// NewDiscovery creates a discovery browser.
func NewDiscovery(logger *log.Logger) *Discovery {
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Discovery{
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan ServerInfo, 10),
	}
}

// Servers returns the channel of discovered device servers.
func (d *Discovery) Servers() <-chan ServerInfo {
	return d.servers
}

// Browse starts a background browse loop for device servers.
func (d *Discovery) Browse() {
	go d.browseLoop()
}

// browseLoop repeatedly queries for the service until stopped.
func (d *Discovery) browseLoop() {
	for {
		select {
		case <-d.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)

		go func() {
			for entry := range entries {
				if entry.AddrV4 == nil {
					continue
				}

				info := ServerInfo{
					Name: entry.Name,
					Host: entry.AddrV4.String(),
					Port: entry.Port,
				}

				d.logger.Printf("Discovered device server: %s at %s", info.Name, info.Addr())

				select {
				case d.servers <- info:
				case <-d.ctx.Done():
					return
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: serviceType,
			Domain:  "local",
			Timeout: 3 * time.Second,
			Entries: entries,
		}

		if err := mdns.Query(params); err != nil {
			d.logger.Printf("mDNS query failed: %v", err)
		}
		close(entries)

		select {
		case <-time.After(5 * time.Second):
		case <-d.ctx.Done():
			return
		}
	}
}

// Stop ends browsing.
func (d *Discovery) Stop() {
	d.cancel()
}
