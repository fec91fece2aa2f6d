// ABOUTME: Entry point for the haptic sync daemon
// ABOUTME: Wires config, device transport, sync service, and the page bridge
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luuxx/hapticsync/internal/audiosync"
	"github.com/luuxx/hapticsync/internal/bridge"
	"github.com/luuxx/hapticsync/internal/config"
	"github.com/luuxx/hapticsync/internal/haptics"
	"github.com/luuxx/hapticsync/internal/media"
	"github.com/luuxx/hapticsync/internal/version"
)

var (
	listenAddr = flag.String("listen", "", "Bridge listen address (overrides HAPTIC_LISTEN_ADDR)")
	deviceAddr = flag.String("device", "", "Device server address (overrides HAPTIC_DEVICE_ADDR; empty = mDNS discovery)")
	name       = flag.String("name", "", "Client name reported to the device server (default: hostname)")
	envFile    = flag.String("env-file", ".env", "Path to .env configuration file")
	logFile    = flag.String("log-file", "hapticsync.log", "Log file path")
)

func main() {
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()
	log.SetOutput(io.MultiWriter(os.Stdout, f))

	log.Printf("Starting %s %s", version.Product, version.Version)

	settings := config.Load(*envFile)
	if *listenAddr != "" {
		settings.ListenAddr = *listenAddr
	}
	if *deviceAddr != "" {
		settings.DeviceAddr = *deviceAddr
	}

	clientName := *name
	if clientName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		clientName = hostname + "-hapticsync"
	}

	// Resolve the device server, discovering via mDNS when unconfigured
	address := settings.DeviceAddr
	if address == "" {
		log.Printf("Starting device server discovery...")
		disc := haptics.NewDiscovery(nil)
		disc.Browse()

		select {
		case server := <-disc.Servers():
			address = server.Addr()
			log.Printf("Discovered device server at %s", address)
		case <-time.After(10 * time.Second):
			log.Fatalf("No device server found after 10 seconds")
		}
		disc.Stop()
	}

	device := haptics.NewDevice(haptics.DeviceConfig{
		Addr: address,
		Name: clientName,
	})
	if err := device.Connect(); err != nil {
		log.Fatalf("Device connection failed: %v", err)
	}
	defer device.Close()

	processor := media.NewHTTPProcessor(media.HTTPProcessorConfig{
		Timeout:          settings.RequestTimeout,
		SampleIntervalMs: settings.SampleIntervalMs,
	})

	// The bridge and the service reference each other: events flow in
	// through the bridge, status flows back out through it.
	var br *bridge.Server

	svc := audiosync.New(audiosync.Config{
		Settings:   settings,
		Sink:       device,
		Classifier: media.NewClassifier(),
		Processor:  processor,
		OnProcessingStarted: func(message string) {
			br.NotifyStarted(message)
		},
		OnProgress: func(current, total int, label string) {
			br.NotifyProgress(current, total, label)
		},
		OnProcessingCompleted: func() {
			br.NotifyCompleted()
		},
		OnError: func(message string) {
			log.Printf("Sync warning: %s", message)
			br.NotifyError(message)
		},
	})

	br = bridge.New(bridge.Config{
		ListenAddr: settings.ListenAddr,
		Service:    svc,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("Shutting down...")
		svc.Reset()
		br.Stop()
	}()

	if err := br.Start(); err != nil {
		log.Fatalf("Bridge failed: %v", err)
	}
}
