//go:build !rp2040 && !rp2350

package main

import "otgw-go/hw"

// platformPinFactory backs the gateway with FakePin instances when built for
// the host. Useful for smoke-running the coordinator logic without hardware;
// a real deployment only ever ships the rp2040/rp2350 build.
func platformPinFactory() hw.PinFactory {
	return hw.NewHostPinFactory()
}
