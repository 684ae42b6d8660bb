package proxy

import (
	"github.com/godbus/dbus/v5"
)

const (
	kioSchedulerPath      = "/KIO/Scheduler"
	kioSchedulerInterface = "org.kde.KIO.Scheduler"
	kioReparseMember      = "reparseSlaveConfiguration"
)

// emitKIOReparse broadcasts reparseSlaveConfiguration("") on the session bus.
func emitKIOReparse() error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return err
	}
	return conn.Emit(dbus.ObjectPath(kioSchedulerPath), kioSchedulerInterface+"."+kioReparseMember, "")
}
