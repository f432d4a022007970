package recording

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
)

var ErrKeepAliveUnsupported = errors.New("keepalive not supported on this platform")

// InhibitKeepAlive blocks idle sleep for as long as a helper process runs:
// systemd-inhibit on Linux, caffeinate on macOS.
type InhibitKeepAlive struct {
	goos string
}

func NewInhibitKeepAlive() *InhibitKeepAlive {
	return &InhibitKeepAlive{goos: runtime.GOOS}
}

func inhibitCommand(goos string) (string, []string) {
	switch goos {
	case "linux":
		return "systemd-inhibit", []string{
			"--what=idle:sleep",
			"--who=encounterscribe",
			"--why=Recording a patient encounter",
			"--mode=block",
			"sleep", "infinity",
		}
	case "darwin":
		return "caffeinate", []string{"-dims"}
	}
	return "", nil
}

func (k *InhibitKeepAlive) Acquire(ctx context.Context) (func(), error) {
	name, args := inhibitCommand(k.goos)
	if name == "" {
		return nil, ErrKeepAliveUnsupported
	}

	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		})
	}, nil
}

// NopKeepAlive is used when keeping the machine awake is not wanted.
type NopKeepAlive struct{}

func (NopKeepAlive) Acquire(context.Context) (func(), error) {
	return func() {}, nil
}
