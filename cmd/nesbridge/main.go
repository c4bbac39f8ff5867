// Copyright 2026, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ezrec/nesbridge/bridge"
	"github.com/ezrec/nesbridge/engine"
	"github.com/ezrec/nesbridge/ops"
	"github.com/ezrec/nesbridge/rest"
	"github.com/ezrec/nesbridge/script"
)

func main() {
	var romPath string
	var scriptPath string
	var port int
	var verbose bool

	flag.StringVar(&romPath, "rom", "", ".nes file to load")
	flag.StringVar(&scriptPath, "script", "", "Lua script to run once the bridge is up")
	flag.IntVar(&port, "port", 0, "HTTP port (overrides NESBRIDGE_PORT)")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	cfg, err := rest.ConfigFromEnv()
	if err != nil {
		log.Fatalf("%v: %v", os.Args[0], err)
	}
	if port != 0 {
		cfg.Port = port
	}

	machine := engine.NewMachine()

	if len(romPath) != 0 {
		inf, err := os.Open(romPath)
		if err != nil {
			log.Fatalf("%v: %v", romPath, err)
		}

		rom, err := engine.LoadROM(romPath, inf)
		inf.Close()
		if err != nil {
			log.Fatalf("%v: %v", romPath, err)
		}

		machine.Insert(rom)
		if verbose {
			log.Printf("loaded %v (%v bytes, mapper %v)", romPath, rom.Size(), rom.MapperID)
		}
	}

	queue := bridge.NewQueue(cfg.QueueCapacity)
	plan := &ops.ReleasePlan{}
	ex := &bridge.Executor{
		Queue:       queue,
		Engine:      machine,
		MaxPerDrain: cfg.MaxPerDrain,
		Verbose:     verbose,
	}

	srv := rest.NewServer(cfg, queue, plan, machine.Info)
	httpd := srv.HTTPServer()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Printf("listening on %v", httpd.Addr)
		err := httpd.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return err
	})

	// Engine tick: advance a frame, apply due joypad releases, then
	// drain the command queue.
	group.Go(func() error {
		fps := float64(engine.NTSC_FPS)
		period := time.Duration(float64(time.Second) / fps)
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				machine.StepFrame()

				machine.Lock()
				plan.Process(machine)
				machine.Unlock()

				ex.Drain()
			}
		}
	})

	group.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		queue.Close()
		return httpd.Shutdown(shutdownCtx)
	})

	if len(scriptPath) != 0 {
		group.Go(func() error {
			host := script.NewHost(queue, plan)
			return host.RunFile(scriptPath)
		})
	}

	err = group.Wait()
	if err != nil {
		log.Fatal(err)
	}
}
