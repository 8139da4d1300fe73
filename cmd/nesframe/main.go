// Package main implements the nesframe executable.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"

	"nesframe/internal/app"
	"nesframe/internal/version"
)

func main() {
	var (
		romFile    = flag.String("rom", "", "Path to iNES ROM file")
		configFile = flag.String("config", "", "Path to configuration file")
		nogui      = flag.Bool("nogui", false, "Run without a window (headless mode)")
		frames     = flag.Int("frames", 0, "Headless only: run this many frames and exit (0 runs until interrupted)")
		stateFile  = flag.String("state", "", "Import a save state after loading the ROM")
		record     = flag.String("record", "", "Record sound output to this WAV file")
		screenshot = flag.Bool("screenshot", false, "Save a screenshot of the last frame on exit")
		stats      = flag.String("statsview", "", "Serve runtime charts on this address, e.g. localhost:12600")
		help       = flag.Bool("help", false, "Show help message")
		showVer    = flag.Bool("version", false, "Show version information")
	)
	flag.Usage = printUsage
	flag.Parse()
	defer glog.Flush()

	if *help {
		printUsage()
		return
	}
	if *showVer {
		version.PrintBuildInfo(os.Stdout)
		return
	}

	if err := run(options{
		romFile:    *romFile,
		configFile: *configFile,
		headless:   *nogui,
		frames:     *frames,
		stateFile:  *stateFile,
		record:     *record,
		screenshot: *screenshot,
		statsview:  *stats,
	}); err != nil {
		glog.Errorf("%v", err)
		glog.Flush()
		os.Exit(1)
	}
}

type options struct {
	romFile    string
	configFile string
	headless   bool
	frames     int
	stateFile  string
	record     string
	screenshot bool
	statsview  string
}

func run(opts options) (err error) {
	if opts.headless && opts.romFile == "" {
		return fmt.Errorf("a ROM file is required in headless mode")
	}
	if opts.frames < 0 {
		return fmt.Errorf("invalid frame count %d", opts.frames)
	}
	if opts.statsview != "" {
		launchStatsview(opts.statsview)
	}

	configPath := opts.configFile
	if configPath == "" {
		configPath = app.GetDefaultConfigPath()
	}
	application, err := app.NewApplicationWithMode(configPath, opts.headless)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := application.Cleanup(); cerr != nil && err == nil {
			err = fmt.Errorf("cleanup: %w", cerr)
		}
	}()

	setupGracefulShutdown(application)
	glog.Infof("nesframe %s starting", version.GetVersion())

	if opts.romFile == "" {
		return fmt.Errorf("no ROM given, use -rom")
	}
	if err := application.LoadROM(opts.romFile); err != nil {
		return err
	}
	if opts.stateFile != "" {
		if err := application.ImportState(opts.stateFile); err != nil {
			return err
		}
	}
	if opts.record != "" {
		if err := application.StartRecording(opts.record); err != nil {
			return err
		}
	}

	if opts.headless && opts.frames > 0 {
		err = application.RunFrames(opts.frames)
	} else {
		err = application.Run()
	}
	if err != nil {
		return err
	}

	if opts.screenshot {
		path, err := application.Screenshot()
		if err != nil {
			return err
		}
		fmt.Println(path)
	}

	s := application.Emulator().GetPerformanceStats()
	glog.Infof("%d frames (%d dropped), %.1f fps", s.FrameCount, s.DroppedFrames, s.FPS)
	return nil
}

// setupGracefulShutdown stops the emulation loop on SIGINT or SIGTERM so
// that recordings and windows are closed cleanly.
func setupGracefulShutdown(application *app.Application) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		glog.Info("interrupt received, shutting down")
		application.Stop()
	}()
}

func printUsage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "nesframe - NES console orchestrator")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "USAGE:")
	fmt.Fprintln(out, "  nesframe -rom <file> [options]")
	fmt.Fprintln(out, "  nesframe -nogui -rom <file> -frames 600 [options]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "OPTIONS:")
	flag.PrintDefaults()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "CONTROLS (default):")
	fmt.Fprintln(out, "  Player 1: WASD d-pad, J/K A/B, Enter start, Space select")
	fmt.Fprintln(out, "  Player 2: arrows d-pad, N/M A/B, RShift start, RCtrl select")
	fmt.Fprintln(out, "  F1 reset  F2 pause  F5 save  F6/F7 slot  F8 load  F12 screenshot  Esc quit")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Config file: %s\n", app.GetDefaultConfigPath())
}
