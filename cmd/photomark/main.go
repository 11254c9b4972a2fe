// photomark resizes a directory of photos into full-size and thumbnail tiers,
// burning a camera-settings bar onto the full-size images.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"

	"github.com/tstromberg/photomark/pkg/pipeline"
	"github.com/tstromberg/photomark/pkg/toolchain"
)

var (
	configPath = flag.String("config", "", "Location of an optional YAML config file")
	inDir      = flag.String("in", "", "Location of input directory")
	outDir     = flag.String("out", "", "Location of output directory (holds full/ and thumbs/ unless overridden)")
	fullDir    = flag.String("full", "", "Location of full-size output directory")
	thumbDir   = flag.String("thumbs", "", "Location of thumbnail output directory")
	tempDir    = flag.String("tmp", "", "Location of scratch directory")
	backend    = flag.String("toolchain", "", "Image toolchain: native or magick")
	metadata   = flag.String("metadata", "", "Metadata source for the native toolchain: goexif or exiftool")
	font       = flag.String("font", "", "TrueType file (native) or font name (magick) for the watermark")
	quality    = flag.Int("quality", 0, "JPEG quality")
	force      = flag.Bool("force", false, "Reprocess images whose outputs are up to date")
	watchFlag  = flag.Bool("watch", false, "watch for changes to the input directory and rebuild")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	c, err := pipeline.LoadConfig(*configPath)
	if err != nil {
		klog.Exitf("config: %v", err)
	}
	overrideConfig(c)
	c.ApplyDefaults()

	if c.InDir == "" {
		klog.Exitf("--in is a required flag")
	}

	tc, err := toolchain.New(c.ToolchainOptions())
	if err != nil {
		klog.Exitf("toolchain: %v", err)
	}

	if err := run(context.Background(), c, tc); err != nil {
		if pipeline.IsUnavailable(err) {
			klog.Exitf("toolchain %q cannot run: %v", c.Toolchain, err)
		}
		klog.Exitf("%v", err)
	}
}

// run processes c.InDir and, with --watch, keeps rebuilding. It always closes tc:
// klog.Exitf skips deferred calls, and exiftool runs as a child process.
func run(ctx context.Context, c *pipeline.Config, tc toolchain.Toolchain) error {
	defer tc.Close()

	if _, err := pipeline.Run(ctx, c, tc); err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if *watchFlag {
		if err := watch(ctx, c, tc); err != nil {
			return fmt.Errorf("watch failed: %w", err)
		}
	}
	return nil
}

// overrideConfig applies flags that were set on the command line.
func overrideConfig(c *pipeline.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "in":
			c.InDir = *inDir
		case "out":
			c.OutDir = *outDir
		case "full":
			c.FullDir = *fullDir
		case "thumbs":
			c.ThumbDir = *thumbDir
		case "tmp":
			c.TempDir = *tempDir
		case "toolchain":
			c.Toolchain = *backend
		case "metadata":
			c.Metadata = *metadata
		case "font":
			c.Font = *font
		case "quality":
			c.Quality = *quality
		case "force":
			c.Force = *force
		}
	})
}

// watch watches the input directory for changes and rebuilds
func watch(ctx context.Context, c *pipeline.Config, tc toolchain.Toolchain) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(c.InDir); err != nil {
		return fmt.Errorf("add %s: %w", c.InDir, err)
	}
	klog.Infof("watching %s ...", c.InDir)

	// Editors and copy tools emit bursts of events; rebuild once things settle.
	const settle = 500 * time.Millisecond
	var pending <-chan time.Time

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			klog.V(1).Infof("event: %v", event)
			if !pipeline.IsImage(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.After(settle)
			}
		case <-pending:
			pending = nil
			if _, err := pipeline.Run(ctx, c, tc); err != nil {
				return fmt.Errorf("run: %w", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			klog.Errorf("watch error: %v", err)
		}
	}
}
