// Command dieseltri opens a window and draws a triangle with Vulkan until
// the window is closed.
package main

import (
	"flag"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/andewx/dieseltri"
	"github.com/andewx/dieseltri/display"
)

func init() {
	// glfw and the frame loop must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "TOML or YAML config file")
	debug := flag.Bool("debug", false, "enable validation layers")
	flag.Parse()

	cfg := dieseltri.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = dieseltri.LoadConfig(*configPath); err != nil {
			dieseltri.Fatal(err)
		}
	}
	if *debug {
		cfg.Debug = true
	}

	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			dieseltri.Fatal(err)
		}
		defer f.Close()
		out = f
	}
	dieseltri.SetLogger(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	win, err := display.Open(cfg.Title, cfg.Width, cfg.Height)
	if err != nil {
		dieseltri.Fatal(err)
	}
	defer win.Close()

	platform, err := dieseltri.NewVulkanPlatform(cfg, win)
	if err != nil {
		dieseltri.Fatal(err, win.Close)
	}
	ctx, err := dieseltri.Initialize(cfg, win, platform)
	if err != nil {
		dieseltri.Fatal(err, win.Close)
	}
	if err := ctx.RunFrameLoop(); err != nil {
		dieseltri.Fatal(err, ctx.Destroy, win.Close)
	}
	ctx.Destroy()
}
