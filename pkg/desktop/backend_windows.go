//go:build windows

package desktop

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/dixieflatline76/AetherDesk/config"
	"github.com/dixieflatline76/AetherDesk/pkg/sysinfo"
	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")
	gdi32    = windows.NewLazySystemDLL("gdi32.dll")

	procFindWindowW              = user32.NewProc("FindWindowW")
	procFindWindowExW            = user32.NewProc("FindWindowExW")
	procSendMessageTimeoutW      = user32.NewProc("SendMessageTimeoutW")
	procEnumWindows              = user32.NewProc("EnumWindows")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procIsWindow                 = user32.NewProc("IsWindow")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procGetWindow                = user32.NewProc("GetWindow")
	procGetParent                = user32.NewProc("GetParent")
	procSetParent                = user32.NewProc("SetParent")
	procGetWindowLongPtrW        = user32.NewProc("GetWindowLongPtrW")
	procSetWindowLongPtrW        = user32.NewProc("SetWindowLongPtrW")
	procSetWindowPos             = user32.NewProc("SetWindowPos")
	procRegisterClassExW         = user32.NewProc("RegisterClassExW")
	procCreateWindowExW          = user32.NewProc("CreateWindowExW")
	procDefWindowProcW           = user32.NewProc("DefWindowProcW")
	procDestroyWindow            = user32.NewProc("DestroyWindow")
	procPostQuitMessage          = user32.NewProc("PostQuitMessage")
	procGetMessageW              = user32.NewProc("GetMessageW")
	procTranslateMessage         = user32.NewProc("TranslateMessage")
	procDispatchMessageW         = user32.NewProc("DispatchMessageW")
	procPostMessageW             = user32.NewProc("PostMessageW")
	procGetModuleHandleW         = kernel32.NewProc("GetModuleHandleW")
	procGetStockObject           = gdi32.NewProc("GetStockObject")
)

const (
	// wmSpawnWorker is the undocumented Progman message that splits a WorkerW
	// off behind the icon view.
	wmSpawnWorker = 0x052C
	wmClose       = 0x0010
	wmDestroy     = 0x0002
	smtoNormal    = 0x0000
	gwOwner       = 4

	wsPopup       = 0x80000000
	wsChild       = 0x40000000
	wsVisible     = 0x10000000
	wsCaption     = 0x00C00000
	wsThickFrame  = 0x00040000
	wsSysMenu     = 0x00080000
	wsMinimizeBox = 0x00020000
	wsMaximizeBox = 0x00010000

	wsExTopmost    = 0x00000008
	wsExToolWindow = 0x00000080
	wsExNoActivate = 0x08000000

	swpNoActivate   = 0x0010
	swpFrameChanged = 0x0020
	swpShowWindow   = 0x0040

	hwndBottom  = 1
	hwndTopmost = ^uintptr(0)
	blackBrush  = 4

	surfaceClass = "AetherDeskWallpaper"
)

var gwlStyle int32 = -16

func newBackend() backend {
	return &windowsBackend{}
}

type windowsBackend struct{}

func (b *windowsBackend) name() string  { return "windows" }
func (b *windowsBackend) layered() bool { return false }

func (b *windowsBackend) outputs(context.Context) ([]string, error) {
	return nil, nil
}

// findHost locates Progman, asks it to create the background WorkerW and picks
// the WorkerW that does not hold the icon view.
func (b *windowsBackend) findHost(ctx context.Context) (Host, error) {
	progman := findWindow("Progman")
	if progman == 0 {
		return Host{}, fmt.Errorf("%w: Progman is not running", errHostNotFound)
	}

	var result uintptr
	procSendMessageTimeoutW.Call(progman, wmSpawnWorker, 0xD, 0x1, smtoNormal, 1000, uintptr(unsafe.Pointer(&result)))
	procSendMessageTimeoutW.Call(progman, wmSpawnWorker, 0, 0, smtoNormal, 1000, uintptr(unsafe.Pointer(&result)))

	var host uintptr
	enumWindows(func(hwnd uintptr) bool {
		if findWindowEx(hwnd, 0, "SHELLDLL_DefView") == 0 {
			return true
		}
		// The background WorkerW is the top-level sibling after the icon host.
		if w := findWindowEx(0, hwnd, "WorkerW"); w != 0 && !hostsIcons(w) {
			host = w
			return false
		}
		return true
	})
	if host == 0 {
		// Windows 11 24H2 keeps the WorkerW as a child of Progman.
		if w := findWindowEx(progman, 0, "WorkerW"); w != 0 && !hostsIcons(w) {
			host = w
		}
	}
	if host == 0 {
		return Host{}, errHostNotFound
	}
	return Host{ID: WindowID(host)}, nil
}

func (b *windowsBackend) screen() (Rect, error) {
	w, h, err := sysinfo.GetScreenDimensions()
	if err != nil {
		return Rect{}, err
	}
	return Rect{Width: w, Height: h}, nil
}

func (b *windowsBackend) createSurface(host Host, r Rect) (surface, error) {
	type result struct {
		hwnd uintptr
		err  error
	}
	ready := make(chan result, 1)
	done := make(chan struct{})

	go func() {
		// The window belongs to this thread and its messages must be pumped
		// here. The thread is never unlocked so it exits with the goroutine.
		runtime.LockOSThread()
		defer close(done)

		hwnd, err := createContentWindow(host, r)
		ready <- result{hwnd: hwnd, err: err}
		if err != nil {
			return
		}
		pumpMessages()
	}()

	res := <-ready
	if res.err != nil {
		return nil, res.err
	}
	return &winSurface{hwnd: res.hwnd, done: done, owned: true}, nil
}

func (b *windowsBackend) adopt(pid int, host Host, r Rect) (surface, error) {
	var found uintptr
	enumWindows(func(hwnd uintptr) bool {
		var owner uint32
		procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&owner)))
		if int(owner) != pid || !isVisible(hwnd) {
			return true
		}
		if o, _, _ := procGetWindow.Call(hwnd, gwOwner); o != 0 {
			return true
		}
		found = hwnd
		return false
	})
	if found == 0 {
		return nil, errWindowNotFound
	}

	if host.ID == 0 {
		setStyle(found, wsPopup|wsVisible)
		procSetWindowPos.Call(found, hwndTopmost, uintptr(r.X), uintptr(r.Y), uintptr(r.Width), uintptr(r.Height),
			swpNoActivate|swpFrameChanged|swpShowWindow)
	} else if err := embedWindow(found, uintptr(host.ID), r); err != nil {
		return nil, err
	}
	return &winSurface{hwnd: found}, nil
}

// embedWindow makes hwnd a borderless child of host covering r, at the bottom
// of the host's z-order.
func embedWindow(hwnd, host uintptr, r Rect) error {
	procSetParent.Call(hwnd, host)
	if parent, _, _ := procGetParent.Call(hwnd); parent != host {
		return fmt.Errorf("SetParent(%#x, %#x) did not take effect", hwnd, host)
	}
	setStyle(hwnd, wsChild|wsVisible)
	procSetWindowPos.Call(hwnd, hwndBottom, uintptr(r.X), uintptr(r.Y), uintptr(r.Width), uintptr(r.Height),
		swpNoActivate|swpFrameChanged|swpShowWindow)
	return nil
}

// setStyle strips window decorations and adds the given style bits.
func setStyle(hwnd uintptr, add uintptr) {
	style, _, _ := procGetWindowLongPtrW.Call(hwnd, uintptr(gwlStyle))
	style &^= wsPopup | wsChild | wsCaption | wsThickFrame | wsSysMenu | wsMinimizeBox | wsMaximizeBox
	style |= add
	procSetWindowLongPtrW.Call(hwnd, uintptr(gwlStyle), style)
}

func createContentWindow(host Host, r Rect) (uintptr, error) {
	if err := registerClass(); err != nil {
		return 0, err
	}
	class, _ := windows.UTF16PtrFromString(surfaceClass)
	title, _ := windows.UTF16PtrFromString(config.AppName)

	exStyle := uintptr(wsExToolWindow | wsExNoActivate)
	if host.ID == 0 {
		exStyle |= wsExTopmost
	}
	hwnd, _, err := procCreateWindowExW.Call(
		exStyle,
		uintptr(unsafe.Pointer(class)),
		uintptr(unsafe.Pointer(title)),
		wsPopup|wsVisible,
		uintptr(r.X), uintptr(r.Y), uintptr(r.Width), uintptr(r.Height),
		0, 0, hinstance, 0,
	)
	if hwnd == 0 {
		return 0, fmt.Errorf("CreateWindowExW: %w", err)
	}

	if host.ID == 0 {
		procSetWindowPos.Call(hwnd, hwndTopmost, uintptr(r.X), uintptr(r.Y), uintptr(r.Width), uintptr(r.Height),
			swpNoActivate|swpShowWindow)
		return hwnd, nil
	}
	if err := embedWindow(hwnd, uintptr(host.ID), r); err != nil {
		procDestroyWindow.Call(hwnd)
		return 0, err
	}
	return hwnd, nil
}

type wndClassEx struct {
	Size       uint32
	Style      uint32
	WndProc    uintptr
	ClsExtra   int32
	WndExtra   int32
	Instance   uintptr
	Icon       uintptr
	Cursor     uintptr
	Background uintptr
	MenuName   *uint16
	ClassName  *uint16
	IconSm     uintptr
}

type winMsg struct {
	Hwnd     uintptr
	Message  uint32
	WParam   uintptr
	LParam   uintptr
	Time     uint32
	PtX      int32
	PtY      int32
	LPrivate uint32
}

var (
	classOnce sync.Once
	classErr  error
	hinstance uintptr

	wndProcCallback = windows.NewCallback(wndProc)
)

func wndProc(hwnd, msg, wparam, lparam uintptr) uintptr {
	switch msg {
	case wmClose:
		procDestroyWindow.Call(hwnd)
		return 0
	case wmDestroy:
		procPostQuitMessage.Call(0)
		return 0
	}
	ret, _, _ := procDefWindowProcW.Call(hwnd, msg, wparam, lparam)
	return ret
}

func registerClass() error {
	classOnce.Do(func() {
		hinstance, _, _ = procGetModuleHandleW.Call(0)
		brush, _, _ := procGetStockObject.Call(blackBrush)
		name, _ := windows.UTF16PtrFromString(surfaceClass)
		wc := wndClassEx{
			WndProc:    wndProcCallback,
			Instance:   hinstance,
			Background: brush,
			ClassName:  name,
		}
		wc.Size = uint32(unsafe.Sizeof(wc))
		if atom, _, err := procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc))); atom == 0 {
			classErr = fmt.Errorf("RegisterClassExW: %w", err)
		}
	})
	return classErr
}

func pumpMessages() {
	var m winMsg
	for {
		ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(ret) <= 0 {
			return
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&m)))
	}
}

type winSurface struct {
	hwnd  uintptr
	done  chan struct{}
	owned bool
	once  sync.Once
}

func (s *winSurface) id() WindowID { return WindowID(s.hwnd) }

// destroy detaches the window from the desktop host. Owned windows are closed
// and their message thread awaited; adopted windows close with their process.
func (s *winSurface) destroy() error {
	var err error
	s.once.Do(func() {
		if isWindow(s.hwnd) {
			procSetParent.Call(s.hwnd, 0)
			if s.owned {
				procPostMessageW.Call(s.hwnd, wmClose, 0, 0)
			}
		}
		if !s.owned {
			return
		}
		select {
		case <-s.done:
		case <-time.After(2 * time.Second):
			err = fmt.Errorf("message thread of %#x did not exit", s.hwnd)
		}
	})
	return err
}

var (
	enumMu       sync.Mutex
	enumVisit    func(hwnd uintptr) bool
	enumCallback = windows.NewCallback(func(hwnd, _ uintptr) uintptr {
		if enumVisit(hwnd) {
			return 1
		}
		return 0
	})
)

// enumWindows calls visit for every top-level window until it returns false.
func enumWindows(visit func(hwnd uintptr) bool) {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumVisit = visit
	procEnumWindows.Call(enumCallback, 0)
	enumVisit = nil
}

func findWindow(class string) uintptr {
	cls, _ := windows.UTF16PtrFromString(class)
	hwnd, _, _ := procFindWindowW.Call(uintptr(unsafe.Pointer(cls)), 0)
	return hwnd
}

func findWindowEx(parent, after uintptr, class string) uintptr {
	cls, _ := windows.UTF16PtrFromString(class)
	hwnd, _, _ := procFindWindowExW.Call(parent, after, uintptr(unsafe.Pointer(cls)), 0)
	return hwnd
}

func hostsIcons(hwnd uintptr) bool {
	return findWindowEx(hwnd, 0, "SHELLDLL_DefView") != 0
}

func isWindow(hwnd uintptr) bool {
	ok, _, _ := procIsWindow.Call(hwnd)
	return ok != 0
}

func isVisible(hwnd uintptr) bool {
	ok, _, _ := procIsWindowVisible.Call(hwnd)
	return ok != 0
}
