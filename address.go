package notifierhost

import (
	"fmt"
	"strings"
)

// ServiceAddress is a resolved pair of bus destination and object path.
// Path always begins with "/".
type ServiceAddress struct {
	Destination string
	Path        string
}

// AddressError is returned by [ResolveServiceAddress] for a service
// identifier that matches none of the known formats. It carries the
// original identifier for diagnostics.
type AddressError struct {
	Service string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("unparseable service address %q", e.Service)
}

// ResolveServiceAddress resolves a service identifier advertised by a
// StatusNotifierWatcher into a bus destination and an object path.
//
// Publishers disagree on the format of the identifier, so resolution
// tries the known shapes in order:
//
//   - "<destination>/<path>", e.g. ":1.50/org/ayatana/NotificationItem/nm_applet":
//     split at the first "/", the remainder becomes the object path.
//   - An identifier containing ":" but no "/" is a bare unique bus name.
//     The field after the first colon is the destination and the object
//     path falls back to /StatusNotifierItem, which items that omit an
//     explicit path rely on by convention.
//   - Anything else is an [AddressError].
//
// Resolution performs no I/O; whether the destination actually exists
// on the bus is discovered when the address is used.
func ResolveServiceAddress(service string) (ServiceAddress, error) {
	if destination, path, ok := strings.Cut(service, "/"); ok {
		return ServiceAddress{
			Destination: destination,
			Path:        "/" + path,
		}, nil
	}

	if strings.Contains(service, ":") {
		// Mirrors the fallback shape observed in the wild: the field
		// between the first and second colon, everything else dropped.
		fields := strings.Split(service, ":")
		if len(fields) < 2 {
			return ServiceAddress{}, &AddressError{Service: service}
		}

		return ServiceAddress{
			Destination: fields[1],
			Path:        StatusNotifierItemPath,
		}, nil
	}

	return ServiceAddress{}, &AddressError{Service: service}
}
