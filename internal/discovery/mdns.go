// Package discovery advertises the bridge over mDNS so devices on the LAN
// can be pointed at it (and so operators can find a running bridge) without
// hardcoding addresses.
package discovery

import (
	"fmt"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/bluekiller/homemate-bridge/internal/logging"
	"github.com/bluekiller/homemate-bridge/internal/version"
)

const (
	// ServiceType is the mDNS service type the bridge advertises as.
	ServiceType = "_homemate-bridge._tcp"

	// ServiceDomain is the mDNS domain.
	ServiceDomain = "local."
)

// Advertiser keeps one mDNS registration alive for the lifetime of the
// bridge.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers the bridge's device-listener port under the given
// instance name.
func Advertise(instance string, port int) (*Advertiser, error) {
	txt := []string{"version=" + version.Version}

	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Advertising bridge over mDNS",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)

	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the registration.
func (a *Advertiser) Shutdown() {
	a.server.Shutdown()
}
