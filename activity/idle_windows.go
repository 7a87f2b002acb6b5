package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	kernel32             = windows.NewLazySystemDLL("kernel32.dll")
	procGetLastInputInfo = user32.NewProc("GetLastInputInfo")
	procGetTickCount     = kernel32.NewProc("GetTickCount")
)

var idleSources = []func(*slog.Logger) (IdleSource, error){
	newWindowsIdle,
}

type lastInputInfo struct {
	cbSize uint32
	dwTime uint32
}

type windowsIdle struct{}

func newWindowsIdle(logger *slog.Logger) (IdleSource, error) {
	if err := procGetLastInputInfo.Find(); err != nil {
		return nil, fmt.Errorf("windows: %w", err)
	}
	return windowsIdle{}, nil
}

func (windowsIdle) Name() string {
	return "windows"
}

func (windowsIdle) Idle(ctx context.Context) (time.Duration, error) {
	info := lastInputInfo{cbSize: uint32(unsafe.Sizeof(lastInputInfo{}))}
	if ok, _, err := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info))); ok == 0 {
		return 0, fmt.Errorf("get last input info: %w", err)
	}
	tick, _, _ := procGetTickCount.Call()
	return time.Duration(uint32(tick)-info.dwTime) * time.Millisecond, nil
}

func (windowsIdle) Close() error {
	return nil
}
