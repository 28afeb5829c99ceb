// Command otgw-cli is an interactive operator console: it brings up the
// same port/coordinator stack as otgw-gateway but reads commands from
// stdin instead of running unattended, for bench testing a boiler/
// thermostat pair without a host automation system attached.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/shlex"

	"otgw-go/coordinator"
	"otgw-go/diagnostics"
	"otgw-go/hw"
	"otgw-go/link"
	"otgw-go/x/conv"
	"otgw-go/x/strconvx"
)

const (
	thermostatTXPin = 2
	thermostatRXPin = 3
	boilerTXPin     = 4
	boilerRXPin     = 5
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pins := hw.NewHostPinFactory()
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
		fmt.Println("thermostat port:", err)
		os.Exit(1)
	}
	defer thermoPort.Close()

	boilerPort, err := link.NewPort(ctx, link.MasterFacing, boilerTX, boilerRX, link.Config{})
	if err != nil {
		fmt.Println("boiler port:", err)
		os.Exit(1)
	}
	defer boilerPort.Close()

	store := diagnostics.NewStore()
	coord := coordinator.New(thermoPort, boilerPort, store, coordinator.Config{
		Mode:          coordinator.Proxy,
		InterceptRate: 10,
		OnMessage: func(m coordinator.Message) {
			var buf [8]byte
			fmt.Printf("[%s] %s %s\n", m.Direction, m.Source, string(conv.U32Hex(buf[:], m.RawFrame)))
		},
	})
	go coord.Run(ctx)

	fmt.Println("otgw-cli ready. commands: write <did> <dv>, status, mode <passthrough|proxy|control>, quit")
	runREPL(ctx, coord)
}

func runREPL(ctx context.Context, coord *coordinator.Coordinator) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		args, err := shlex.Split(line)
		if err != nil {
			fmt.Println("parse error:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if done := dispatch(ctx, coord, args); done {
			return
		}
	}
}

func dispatch(ctx context.Context, coord *coordinator.Coordinator, args []string) (quit bool) {
	switch args[0] {
	case "quit", "exit":
		return true
	case "status":
		printStatus(coord)
	case "mode":
		if len(args) != 2 {
			fmt.Println("usage: mode <passthrough|proxy|control>")
			return false
		}
		m, ok := parseMode(args[1])
		if !ok {
			fmt.Println("unknown mode:", args[1])
			return false
		}
		coord.SetMode(m)
	case "write":
		if len(args) != 3 {
			fmt.Println("usage: write <did> <dv>")
			return false
		}
		did, err := strconvx.ParseUint(args[1], 0, 8)
		if err != nil {
			fmt.Println("bad did:", err)
			return false
		}
		dv, err := strconvx.ParseUint(args[2], 0, 16)
		if err != nil {
			fmt.Println("bad dv:", err)
			return false
		}
		submitWrite(ctx, coord, uint8(did), uint16(dv))
	default:
		fmt.Println("unknown command:", args[0])
	}
	return false
}

func submitWrite(ctx context.Context, coord *coordinator.Coordinator, did uint8, dv uint16) {
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	result := <-coord.SubmitManualWrite(wctx, did, dv)
	if result.Err != nil {
		fmt.Println("write failed:", result.Err)
		return
	}
	fmt.Printf("write acked: did=%d response_dv=%#04x\n", did, result.Response.DataValue())
}

func printStatus(coord *coordinator.Coordinator) {
	stats := coord.Stats()
	fmt.Printf("mode=%s status_counter=%d spurious=%d\n", coord.Mode(), stats.StatusCounter, stats.SpuriousCount)
	for _, k := range diagnostics.AllKeys {
		r := coord.Store().Get(k)
		if r.Valid {
			fmt.Printf("  %-20s %.2f\n", k, r.Value)
		}
	}
}

func parseMode(s string) (coordinator.Mode, bool) {
	switch s {
	case "passthrough":
		return coordinator.Passthrough, true
	case "proxy":
		return coordinator.Proxy, true
	case "control":
		return coordinator.Control, true
	default:
		return 0, false
	}
}
