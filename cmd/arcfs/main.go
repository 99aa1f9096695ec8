// Command arcfs inspects and edits tar.gz, tar.zst and zip archives from the
// command line.
//
// Usage:
//
//	arcfs [-config file] [-v] [-progress] <command> <archive> [args...]
//
// Commands:
//
//	ls      <archive> [dir]               list a directory (default "/")
//	stat    <archive> <path>              print one entry as YAML
//	mkdir   <archive> <dir>               create a directory
//	mv      <archive> <path> <name>       rename or move an entry
//	rm      <archive> <path>...           remove entries recursively
//	add     <archive> <dir> <file>...     add host files below dir
//	extract <archive> <dest> <path>...    extract entries to a host directory
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/meigma/arcfs"
	"github.com/meigma/arcfs/archive"
	diskcache "github.com/meigma/arcfs/cache/disk"
	"github.com/meigma/arcfs/driver"
)

const usage = `usage: arcfs [-config file] [-v] [-progress] <command> <archive> [args...]

commands:
  ls      <archive> [dir]
  stat    <archive> <path>
  mkdir   <archive> <dir>
  mv      <archive> <path> <name>
  rm      <archive> <path>...
  add     <archive> <dir> <file>...
  extract <archive> <dest> <path>...
`

var errUsage = errors.New("invalid arguments")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("arcfs", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fset.String("config", os.Getenv("ARCFS_CONFIG"), "YAML configuration file")
	verbose := fset.Bool("v", false, "log at debug level")
	showProgress := fset.Bool("progress", false, "print progress events to stderr")
	if err := fset.Parse(args); err != nil {
		return 2
	}
	if fset.NArg() < 2 {
		fset.Usage()
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "arcfs:", err)
		return 1
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	logger, closer := newLogger(cfg.Log, stderr)
	defer closer.Close()

	cmd := &command{
		cfg:    cfg,
		logger: logger,
		stdout: stdout,
		stderr: stderr,
	}
	if *showProgress {
		cmd.progress = func(ev arcfs.ProgressEvent) {
			fmt.Fprintf(stderr, "%s %s files=%d/%d bytes=%d/%d\n",
				ev.Stage, ev.Path, ev.FilesDone, ev.FilesTotal, ev.BytesDone, ev.BytesTotal)
		}
	}

	name, rest := fset.Arg(0), fset.Args()[1:]
	if err := cmd.dispatch(ctx, name, rest); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "arcfs %s: %v\n", name, err)
			fset.Usage()
			return 2
		}
		logger.Error("command failed", "command", name, "error", err)
		fmt.Fprintf(stderr, "arcfs %s: %v\n", name, err)
		return 1
	}
	return 0
}

// command carries the state shared by subcommands.
type command struct {
	cfg      Config
	logger   *slog.Logger
	progress arcfs.ProgressFunc
	stdout   io.Writer
	stderr   io.Writer
}

// open binds the archive named by the first argument.
func (c *command) open(ctx context.Context, path string) (*archive.Reader, error) {
	driverOpts := []driver.Option{
		driver.WithExtractWorkers(c.cfg.ExtractWorkers),
		driver.WithOverwrite(c.cfg.Overwrite),
		driver.WithPreserveMode(c.cfg.PreserveMode),
		driver.WithPreserveTimes(c.cfg.PreserveTimes),
	}
	if c.cfg.CompressionLevel != 0 {
		driverOpts = append(driverOpts, driver.WithCompressionLevel(c.cfg.CompressionLevel))
	}
	opts := []archive.Option{
		archive.WithLogger(c.logger),
		archive.WithDriverOptions(driverOpts...),
	}
	if c.cfg.CacheDir != "" {
		cache, err := diskcache.New(c.cfg.CacheDir, diskcache.WithMaxBytes(c.cfg.CacheMaxBytes))
		if err != nil {
			return nil, err
		}
		opts = append(opts, archive.WithSnapshotCache(cache))
	}

	r := archive.New(opts...)
	ok, err := r.Open(ctx, path, c.progress)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, arcfs.ErrUnsupportedFormat)
	}
	return r, nil
}

func (c *command) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "ls":
		return c.ls(ctx, args)
	case "stat":
		return c.stat(ctx, args)
	case "mkdir":
		return c.mkdir(ctx, args)
	case "mv":
		return c.mv(ctx, args)
	case "rm":
		return c.rm(ctx, args)
	case "add":
		return c.add(ctx, args)
	case "extract":
		return c.extract(ctx, args)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, name)
}
