// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The onload command loads and inspects compiled module artifacts.
//
// Each artifact named on the command line is loaded, its type key and
// import tree are reported, and with -call its entry point is invoked.
// In -watch mode the configured module directory is followed and each
// new or changed artifact is loaded as it appears.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/kortschak/onload"
	"github.com/kortschak/onload/internal/config"
	"github.com/kortschak/onload/internal/slogext"
	"github.com/kortschak/onload/internal/version"
	"github.com/kortschak/onload/internal/xdg"

	_ "github.com/kortschak/onload/dso"
	_ "github.com/kortschak/onload/mem"
)

func main() { os.Exit(Main()) }

func Main() int {
	logging := flag.String("log", "info", "logging level (debug, info, warn or error)")
	lines := flag.Bool("lines", false, "display source line details in logs")
	call := flag.Bool("call", false, "call the entry point of each loaded module")
	watch := flag.Bool("watch", false, "watch the configured module directory")
	cfgPath := flag.String("config", "", "configuration file path (default from XDG config dir)")
	v := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *v {
		err := version.Print(os.Stdout)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if !set["log"] && cfg.LogLevel != nil {
		*logging = strings.ToLower(cfg.LogLevel.String())
	}
	if !set["lines"] && cfg.AddSource != nil {
		*lines = *cfg.AddSource
	}

	var level slog.LevelVar
	err = level.UnmarshalText([]byte(*logging))
	if err != nil {
		flag.Usage()
		return 2
	}
	addSource := slogext.NewAtomicBool(*lines)

	log := slog.New(slogext.GoID{Handler: slogext.NewJSONHandler(os.Stderr, &slogext.HandlerOptions{
		Level:     &level,
		AddSource: addSource,
	})})
	slog.SetDefault(log)
	mlog := log.With(slog.String("component", "onload.main"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		mlog.LogAttrs(ctx, slog.LevelInfo, "terminating")
		cancel()
	}()

	if *watch {
		return watchModules(ctx, cfg, *call, mlog)
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "missing module artifact path")
		flag.Usage()
		return 2
	}
	ok := true
	for _, path := range flag.Args() {
		err = inspect(path, *call, mlog)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			ok = false
		}
	}
	if !ok {
		return 1
	}
	return 0
}

// loadConfig returns the configuration at path, or from the XDG config
// directory if path is empty. A missing configuration is not an error;
// defaults are returned.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		var err error
		path, err = xdg.Config(filepath.Join("onload", "config.toml"))
		if err != nil {
			return &config.Config{}, nil
		}
	}
	return config.Load(path)
}

// inspect loads the artifact at path, reports its shape and optionally
// calls its entry point, and unloads it.
func inspect(path string, call bool, log *slog.Logger) error {
	ctx := context.Background()
	m, err := onload.LoadFromFile(path)
	if err != nil {
		return err
	}
	defer func() {
		err := m.Close()
		if err != nil {
			log.LogAttrs(ctx, slog.LevelError, "close module", slog.Any("error", err))
		}
	}()
	fmt.Printf("%s: %s%s\n", path, m.TypeKey(), importTree(m))
	if call {
		fn, ok := onload.GetFunction(m, onload.ModuleMain, true)
		if !ok {
			return fmt.Errorf("%s: no module entry point", path)
		}
		err = fn.Call(nil, nil)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		log.LogAttrs(ctx, slog.LevelInfo, "called entry point", slog.String("path", path))
	}
	return nil
}

// importTree renders the type keys of m's imports, recursively.
func importTree(m onload.Module) string {
	imports := m.Imports()
	if len(imports) == 0 {
		return ""
	}
	keys := make([]string, len(imports))
	for i, imp := range imports {
		keys[i] = imp.TypeKey() + importTree(imp)
	}
	return " [" + strings.Join(keys, " ") + "]"
}

// watchModules follows the configured module directory, loading each new
// or changed artifact, until interrupted.
func watchModules(ctx context.Context, cfg *config.Config, call bool, log *slog.Logger) int {
	if cfg.ModuleDir == "" {
		fmt.Fprintln(os.Stderr, "watch mode requires module_dir in config")
		return 2
	}

	runtimeDir, ok := xdg.RuntimeDir()
	if !ok {
		fmt.Fprintln(os.Stderr, "no runtime directory")
		return 1
	}
	runtimeDir = filepath.Join(runtimeDir, "onload")
	err := os.MkdirAll(runtimeDir, 0o700)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	pidFile := filepath.Join(runtimeDir, "pid")
	fl := flock.New(pidFile)
	ok, err = fl.TryLock()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "onload is already watching")
		return 1
	}
	defer func() {
		fl.Unlock()
		os.Remove(pidFile)
	}()
	err = os.WriteFile(pidFile, fmt.Appendln(nil, os.Getpid()), 0o600)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	debounce := cfg.Debounce.Duration
	if debounce <= 0 {
		debounce = config.FileDebounce
	}
	changes := make(chan config.Change)
	w, err := config.NewWatcher(cfg.ModuleDir, changes, debounce, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	go w.Watch(ctx)

	for {
		select {
		case <-ctx.Done():
			return 0
		case ch := <-changes:
			if ch.Err != nil {
				log.LogAttrs(ctx, slog.LevelError, "watch", slog.Any("error", ch.Err))
				continue
			}
			log.LogAttrs(ctx, slog.LevelInfo, "artifact change", slog.String("path", ch.Path), slog.String("op", ch.Event.Op.String()))
			err = inspect(ch.Path, call, log)
			if err != nil {
				log.LogAttrs(ctx, slog.LevelError, "load artifact", slog.Any("error", err))
			}
		}
	}
}
