package dns

import (
	"fmt"
	"net"

	"github.com/godbus/dbus/v5"
)

const (
	resolvedDest      = "org.freedesktop.resolve1"
	resolvedPath      = "/org/freedesktop/resolve1"
	resolvedInterface = "org.freedesktop.resolve1.Manager"
)

// resolvedBus is the subset of the resolve1 Manager API used for per-link DNS.
type resolvedBus interface {
	SetLinkDNS(ifindex int, servers []net.IP) error
	SetLinkDomains(ifindex int, domain string, routingOnly bool) error
	SetLinkDefaultRoute(ifindex int, enable bool) error
	RevertLink(ifindex int) error
}

type linkAddress struct {
	Family  int32
	Address []byte
}

type linkDomain struct {
	Domain      string
	RoutingOnly bool
}

const (
	afInet  = 2
	afInet6 = 10
)

// systemResolved talks to systemd-resolved on a fresh system bus connection per call.
// Calls allow interactive polkit authorization.
type systemResolved struct{}

func (systemResolved) call(method string, args ...any) error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("connect system bus: %w", err)
	}
	defer func() { _ = conn.Close() }()

	obj := conn.Object(resolvedDest, dbus.ObjectPath(resolvedPath))
	if err := obj.Call(resolvedInterface+"."+method, dbus.FlagAllowInteractiveAuthorization, args...).Err; err != nil {
		return fmt.Errorf("resolve1 %s: %w", method, err)
	}
	return nil
}

func (r systemResolved) SetLinkDNS(ifindex int, servers []net.IP) error {
	addrs := make([]linkAddress, 0, len(servers))
	for _, ip := range servers {
		if v4 := ip.To4(); v4 != nil {
			addrs = append(addrs, linkAddress{Family: afInet, Address: []byte(v4)})
		} else {
			addrs = append(addrs, linkAddress{Family: afInet6, Address: []byte(ip.To16())})
		}
	}
	return r.call("SetLinkDNS", int32(ifindex), addrs)
}

func (r systemResolved) SetLinkDomains(ifindex int, domain string, routingOnly bool) error {
	return r.call("SetLinkDomains", int32(ifindex), []linkDomain{{Domain: domain, RoutingOnly: routingOnly}})
}

func (r systemResolved) SetLinkDefaultRoute(ifindex int, enable bool) error {
	return r.call("SetLinkDefaultRoute", int32(ifindex), enable)
}

func (r systemResolved) RevertLink(ifindex int) error {
	return r.call("RevertLink", int32(ifindex))
}
