// lidarctl is a small command-line front end for the lidar driver: it can
// either query a device directly over serial, or run a websocket server
// exposing the driver to other processes. Mirrors dividat-driver's
// firmware.Command flag-based subcommand style.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dividat/lidar-driver/internal/lidar"
	"github.com/dividat/lidar-driver/internal/publish"
	"github.com/dividat/lidar-driver/internal/wsapi"
)

// rotationBusCapacity bounds how many pending rotations each publish.Bus
// subscriber buffers before Publish starts dropping for that subscriber.
const rotationBusCapacity = 8

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	if os.Args[1] == "--version" || os.Args[1] == "-version" {
		fmt.Println(lidar.Version)
		return
	}

	log := logrus.NewEntry(logrus.StandardLogger())

	switch os.Args[1] {
	case "serve":
		serveCommand(os.Args[2:], log)
	case "info":
		infoCommand(os.Args[2:], log)
	case "scan":
		scanCommand(os.Args[2:], log)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("usage: lidarctl <--version|serve|info|scan> [flags]")
}

func serveCommand(args []string, log *logrus.Entry) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", "localhost:8080", "address to listen on")
	flags.Parse(args)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver := lidar.New(log.WithField("component", "driver"))

	bus := publish.NewBus(ctx, log.WithField("component", "publish"), rotationBusCapacity)
	driver.SetRotationSink(bus.Publish)

	handle := wsapi.NewHandle(driver, log.WithField("component", "wsapi"))

	mux := http.NewServeMux()
	mux.Handle("/lidar", handle)

	go startMonitor(log.WithField("component", "monitor"))

	log.WithField("addr", *addr).Info("Starting lidar driver server.")
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.WithField("error", err).Error("Server exited.")
		os.Exit(1)
	}
}

func infoCommand(args []string, log *logrus.Entry) {
	flags := flag.NewFlagSet("info", flag.ExitOnError)
	port := flags.String("p", "", "serial port")
	baud := flags.Int("b", 115200, "baud rate")
	flags.Parse(args)

	if *port == "" {
		flags.PrintDefaults()
		os.Exit(1)
	}

	driver := lidar.New(log)
	if err := driver.Connect(*port, *baud); err != nil {
		fmt.Printf("Could not connect: %v\n", err)
		os.Exit(1)
	}
	defer driver.Disconnect()

	info, err := driver.GetDeviceInfo(lidar.DefaultTimeout)
	if err != nil {
		fmt.Printf("Could not read device info: %v\n", err)
		os.Exit(1)
	}

	health, err := driver.GetHealth(lidar.DefaultTimeout)
	if err != nil {
		fmt.Printf("Could not read device health: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Model:    %s (%d)\n", lidar.ModelName(info.Model), info.Model)
	fmt.Printf("Firmware: %d.%d.%d\n", info.FirmwareMajor, info.FirmwareMinor, info.FirmwarePatch)
	fmt.Printf("Hardware: %d\n", info.Hardware)
	fmt.Printf("Serial:   %x\n", info.Serial)
	fmt.Printf("Health:   status=%d error=0x%04x\n", health.Status, health.ErrorCode)
	if health.Status == 2 {
		fmt.Println("Device reports an error state; consider resetting it.")
	}
}

func scanCommand(args []string, log *logrus.Entry) {
	flags := flag.NewFlagSet("scan", flag.ExitOnError)
	port := flags.String("p", "", "serial port")
	baud := flags.Int("b", 115200, "baud rate")
	rotations := flags.Int("n", 1, "number of rotations to print")
	intensity := flags.Bool("i", false, "enable intensity mode")
	flags.Parse(args)

	if *port == "" {
		flags.PrintDefaults()
		os.Exit(1)
	}

	driver := lidar.New(log)
	if err := driver.Connect(*port, *baud); err != nil {
		fmt.Printf("Could not connect: %v\n", err)
		os.Exit(1)
	}
	defer driver.Disconnect()

	if err := driver.SetIntensities(*intensity); err != nil {
		fmt.Printf("Could not set intensity mode: %v\n", err)
		os.Exit(1)
	}

	if err := driver.StartScan(false, lidar.DefaultTimeout); err != nil {
		fmt.Printf("Could not start scan: %v\n", err)
		os.Exit(1)
	}
	defer driver.Stop()

	for i := 0; i < *rotations; i++ {
		nodes, err := driver.GrabScanData(5 * time.Second)
		if err != nil {
			fmt.Printf("Could not grab scan data: %v\n", err)
			os.Exit(1)
		}
		nodes = lidar.AscendScanData(nodes)
		fmt.Printf("Rotation %d: %d samples\n", i, len(nodes))
	}
}
