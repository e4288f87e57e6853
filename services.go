package main

import (
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"
)

type clipboardCommand struct {
	name string
	args []string
}

var (
	execCommand       = exec.Command
	lookPath          = exec.LookPath
	clipboardCommands = clipboardCommandsForOS
	clipboardRun      = defaultClipboardRun
	clipboardFallback = clipboard.WriteAll
)

func defaultOpenURL(target string) error {
	return defaultOpenURLForOS(runtime.GOOS, target)
}

func defaultOpenURLForOS(goos string, target string) error {
	if target == "" {
		return errors.New("empty url")
	}
	cmdName, args := openCommandForOS(goos, target)
	if cmdName == "" {
		return errors.New("unsupported platform")
	}
	cmd := execCommand(cmdName, args...)
	return cmd.Start()
}

func openCommandForOS(goos string, target string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	case "linux", "freebsd", "openbsd", "netbsd", "dragonfly":
		return "xdg-open", []string{target}
	}
	return "", nil
}

func clipboardCommandsForOS(goos string) []clipboardCommand {
	switch goos {
	case "darwin":
		return []clipboardCommand{{name: "pbcopy"}}
	case "windows":
		return nil
	case "linux", "freebsd", "openbsd", "netbsd":
		cmds := []clipboardCommand{}
		if os.Getenv("WAYLAND_DISPLAY") != "" {
			cmds = append(cmds, clipboardCommand{name: "wl-copy"})
		}
		cmds = append(cmds,
			clipboardCommand{name: "xclip", args: []string{"-selection", "clipboard"}},
			clipboardCommand{name: "xsel", args: []string{"--clipboard", "--input"}},
		)
		return cmds
	default:
		return nil
	}
}

func defaultClipboardRun(name string, args []string, input string) error {
	cmd := execCommand(name, args...)
	cmd.Stdin = strings.NewReader(input)
	return cmd.Run()
}

// copyToClipboard tries the platform clipboard tools in order and falls
// back to the clipboard library when none is listed or all fail.
func copyToClipboard(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("nothing to copy")
	}
	var lastErr error
	for _, cmd := range clipboardCommands(runtime.GOOS) {
		if err := clipboardRun(cmd.name, cmd.args, text); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if err := clipboardFallback(text); err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}

// playerCommand builds the external player invocation. The player reads
// the link from the clipboard, so it takes no arguments of its own.
func playerCommand(command string) (*exec.Cmd, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("no player configured")
	}
	if _, err := lookPath(fields[0]); err != nil {
		return nil, err
	}
	return execCommand(fields[0], fields[1:]...), nil
}
