// Command otgw-gateway wires the gateway's ports, coordinator, bridge and
// config services together and runs them until interrupted.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"otgw-go/bridge"
	"otgw-go/bus"
	"otgw-go/config"
	"otgw-go/coordinator"
	"otgw-go/diagnostics"
	"otgw-go/hw"
	"otgw-go/link"
	"otgw-go/statuspublisher"
	"otgw-go/x/conv"
	"otgw-go/x/fmtx"
	"otgw-go/x/strx"
)

// Pin numbers for the default board wiring. A hardware-specific setups
// package would normally select these per board; this gateway only ever
// targets one interface board, so they live here.
const (
	thermostatTXPin = 2
	thermostatRXPin = 3
	boilerTXPin     = 4
	boilerRXPin     = 5
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pins := pinFactory()

	thermoTX, _ := pins.ByNumber(thermostatTXPin)
	thermoRX, _ := pins.ByNumber(thermostatRXPin)
	boilerTX, _ := pins.ByNumber(boilerTXPin)
	boilerRX, _ := pins.ByNumber(boilerRXPin)

	_ = thermoTX.ConfigureOutput(true)
	_ = thermoRX.ConfigureInput(hw.PullNone)
	_ = boilerTX.ConfigureOutput(true)
	_ = boilerRX.ConfigureInput(hw.PullNone)

	thermoPort, err := link.NewPort(ctx, link.SlaveFacing, thermoTX, thermoRX, link.Config{})
	if err != nil {
		fmtx.Printf("thermostat port: %v\n", err)
		os.Exit(1)
	}
	defer thermoPort.Close()

	boilerPort, err := link.NewPort(ctx, link.MasterFacing, boilerTX, boilerRX, link.Config{})
	if err != nil {
		fmtx.Printf("boiler port: %v\n", err)
		os.Exit(1)
	}
	defer boilerPort.Close()

	b := bus.NewBus(32)
	conn := b.NewConnection("gateway")

	device := strx.Coalesce(os.Getenv("OTGW_DEVICE"), "default")
	cfgSvc := config.NewService()
	cfgSvc.Start(context.WithValue(ctx, config.CtxDeviceKey, device), conn)

	ctlBridge := bridge.Start(ctx, conn)

	store := diagnostics.NewStore()
	var hexbuf [8]byte
	coord := coordinator.New(thermoPort, boilerPort, store, coordinator.Config{
		Mode:          coordinator.Proxy,
		InterceptRate: 10,
		ControlSource: ctlBridge,
		OnMessage: func(m coordinator.Message) {
			fmtx.Printf("%s %s %s\n", m.Direction, m.Source, string(conv.U32Hex(hexbuf[:], m.RawFrame)))
		},
	})

	statuspublisher.New(coord).Start(ctx, conn)

	go coord.Run(ctx)

	<-ctx.Done()
}

func pinFactory() hw.PinFactory {
	return platformPinFactory()
}
