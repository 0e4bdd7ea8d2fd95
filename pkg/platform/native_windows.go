//go:build windows

package platform

import (
	"context"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	procSystemParametersInfo = user32.NewProc("SystemParametersInfoW")
)

const (
	spiGetDeskWallpaper  = 0x0073
	spiSetDeskWallpaper  = 0x0014
	spifUpdateIniFile    = 0x01
	spifSendWinIniChange = 0x02
)

func newNative(Options) (native, Variant, error) {
	return windowsNative{}, VariantWindows, nil
}

// windowsNative uses SystemParametersInfoW.
type windowsNative struct{}

func (windowsNative) set(_ context.Context, path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	ret, _, callErr := procSystemParametersInfo.Call(
		spiSetDeskWallpaper,
		0,
		uintptr(unsafe.Pointer(p)),
		spifUpdateIniFile|spifSendWinIniChange,
	)
	if ret == 0 {
		return fmt.Errorf("SystemParametersInfoW(SPI_SETDESKWALLPAPER): %w", callErr)
	}
	return nil
}

func (windowsNative) current(context.Context) (string, bool) {
	buf := make([]uint16, windows.MAX_PATH)
	ret, _, _ := procSystemParametersInfo.Call(
		spiGetDeskWallpaper,
		uintptr(len(buf)),
		uintptr(unsafe.Pointer(&buf[0])),
		0,
	)
	if ret == 0 {
		return "", false
	}
	p := windows.UTF16ToString(buf)
	return p, p != ""
}

// clear sets an empty wallpaper path, which leaves the solid background colour.
func (w windowsNative) clear(ctx context.Context) error {
	return w.set(ctx, "")
}
