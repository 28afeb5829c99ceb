//go:build rp2040 || rp2350

package main

import "otgw-go/hw"

func platformPinFactory() hw.PinFactory {
	return hw.NewRP2PinFactory()
}
