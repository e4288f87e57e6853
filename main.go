package main

import (
	"context"
	"fmt"
	"io"
	"os"
)

var (
	exitFunc   = os.Exit
	refreshAll = func(app *App) error { return app.Refresh(context.Background()) }
	runTUI     = RunTUI
	openLogger = newLogger
)

func main() {
	if err := runMain(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		exitFunc(1)
	}
}

func runMain(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) error {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintln(stderr, "config error:", err)
		return err
	}
	logger, closer, err := openLogger(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, "log error:", err)
		return err
	}
	defer closer.Close()

	app, err := NewApp(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("init")
		fmt.Fprintln(stderr, "init error:", err)
		return err
	}
	defer app.Close()

	if len(args) >= 2 {
		switch args[0] {
		case "--import":
			added, err := app.ImportOPML(args[1])
			if err != nil {
				fmt.Fprintln(stderr, "import error:", err)
				return err
			}
			fmt.Fprintf(stdout, "Imported %d channels from %s\n", added, args[1])
			return nil
		case "--add":
			if err := app.AddChannel(context.Background(), args[1]); err != nil {
				fmt.Fprintln(stderr, "add error:", app.status)
				return err
			}
			fmt.Fprintln(stdout, app.status)
			return nil
		case "--export-state":
			if err := app.ExportState(args[1]); err != nil {
				fmt.Fprintln(stderr, "export error:", err)
				return err
			}
			fmt.Fprintf(stdout, "Exported state to %s\n", args[1])
			return nil
		case "--import-state":
			if err := app.ImportState(args[1]); err != nil {
				fmt.Fprintln(stderr, "import error:", err)
				return err
			}
			fmt.Fprintf(stdout, "Imported state from %s\n", args[1])
			return nil
		}
	}
	if len(args) >= 1 && args[0] == "--refresh" {
		if err := refreshAll(app); err != nil {
			fmt.Fprintln(stderr, "refresh error:", err)
			return err
		}
		fmt.Fprintf(stdout, "Refreshed %d feeds: %d videos, %d unseen, %d failed\n",
			len(app.subs.LoadFeedURLs()), len(app.videos), app.UnseenCount(), app.failed)
		return nil
	}

	if !isTerminalReader(stdin) || !isTerminalWriter(stdout) {
		if err := refreshAll(app); err != nil {
			logger.Warn().Err(err).Msg("initial refresh")
		}
		if err := Run(app, stdin, stdout); err != nil {
			fmt.Fprintln(stderr, "run error:", err)
			return err
		}
		return nil
	}

	if err := runTUI(app); err != nil {
		fmt.Fprintln(stderr, "run error:", err)
		return err
	}
	return nil
}

func isTerminalReader(stream io.Reader) bool {
	file, ok := stream.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func isTerminalWriter(stream io.Writer) bool {
	file, ok := stream.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
