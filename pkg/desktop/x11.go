package desktop

import (
	"context"
	"fmt"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// x11Backend embeds content under the root window of an X11 display. Desktop
// icon managers (xfdesktop, nemo-desktop, pcmanfm) map a _NET_WM_WINDOW_TYPE_DESKTOP
// window over the root; content is stacked directly beneath it.
type x11Backend struct {
	display string
}

type x11Conn struct {
	conn   *xgb.Conn
	screen *xproto.ScreenInfo
	atoms  map[string]xproto.Atom
}

var x11AtomNames = []string{
	"_NET_WM_WINDOW_TYPE",
	"_NET_WM_WINDOW_TYPE_DESKTOP",
	"_NET_WM_WINDOW_TYPE_NORMAL",
	"_NET_WM_STATE",
	"_NET_WM_STATE_BELOW",
	"_NET_WM_STATE_ABOVE",
	"_NET_WM_STATE_STICKY",
	"_NET_WM_STATE_FULLSCREEN",
	"_NET_WM_STATE_SKIP_TASKBAR",
	"_NET_WM_STATE_SKIP_PAGER",
	"_NET_WM_PID",
	"_NET_CLIENT_LIST",
	"_MOTIF_WM_HINTS",
}

func (b *x11Backend) dial() (*x11Conn, error) {
	conn, err := xgb.NewConnDisplay(b.display)
	if err != nil {
		return nil, fmt.Errorf("connect to X display %q: %w", b.display, err)
	}
	xc := &x11Conn{
		conn:   conn,
		screen: xproto.Setup(conn).DefaultScreen(conn),
		atoms:  make(map[string]xproto.Atom, len(x11AtomNames)),
	}
	for _, name := range x11AtomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("intern %s: %w", name, err)
		}
		xc.atoms[name] = reply.Atom
	}
	return xc, nil
}

func (b *x11Backend) name() string  { return "x11" }
func (b *x11Backend) layered() bool { return false }

func (b *x11Backend) outputs(context.Context) ([]string, error) {
	return nil, nil
}

func (b *x11Backend) findHost(ctx context.Context) (Host, error) {
	xc, err := b.dial()
	if err != nil {
		return Host{}, fmt.Errorf("%w: %v", errHostNotFound, err)
	}
	defer xc.conn.Close()

	root := xc.screen.Root
	tree, err := xproto.QueryTree(xc.conn, root).Reply()
	if err != nil {
		return Host{}, fmt.Errorf("%w: query root tree: %v", errHostNotFound, err)
	}

	host := Host{ID: WindowID(root)}
	for _, child := range tree.Children {
		if xc.hasAtom(child, "_NET_WM_WINDOW_TYPE", "_NET_WM_WINDOW_TYPE_DESKTOP") {
			host.Below = WindowID(child)
			break
		}
	}
	return host, nil
}

func (b *x11Backend) screen() (Rect, error) {
	xc, err := b.dial()
	if err != nil {
		return Rect{}, err
	}
	defer xc.conn.Close()
	return Rect{Width: int(xc.screen.WidthInPixels), Height: int(xc.screen.HeightInPixels)}, nil
}

func (b *x11Backend) createSurface(host Host, r Rect) (surface, error) {
	xc, err := b.dial()
	if err != nil {
		return nil, err
	}

	wid, err := xproto.NewWindowId(xc.conn)
	if err != nil {
		xc.conn.Close()
		return nil, err
	}

	parent := xproto.Window(host.ID)
	if host.ID == 0 {
		parent = xc.screen.Root
	}
	err = xproto.CreateWindowChecked(xc.conn, xc.screen.RootDepth, wid, parent,
		int16(r.X), int16(r.Y), uint16(r.Width), uint16(r.Height), 0,
		xproto.WindowClassInputOutput, xc.screen.RootVisual,
		xproto.CwBackPixel|xproto.CwEventMask,
		[]uint32{xc.screen.BlackPixel, xproto.EventMaskStructureNotify}).Check()
	if err != nil {
		xc.conn.Close()
		return nil, fmt.Errorf("create window: %w", err)
	}

	xc.decorate(wid, host.ID == 0)
	xproto.MapWindow(xc.conn, wid)
	xc.place(wid, host, r)
	if err := xc.sync(); err != nil {
		xproto.DestroyWindow(xc.conn, wid)
		xc.conn.Close()
		return nil, err
	}
	return &x11Surface{xc: xc, wid: wid, owned: true}, nil
}

func (b *x11Backend) adopt(pid int, host Host, r Rect) (surface, error) {
	xc, err := b.dial()
	if err != nil {
		return nil, err
	}

	win, ok := xc.windowForPID(pid)
	if !ok {
		xc.conn.Close()
		return nil, errWindowNotFound
	}

	parent := xproto.Window(host.ID)
	if host.ID == 0 {
		parent = xc.screen.Root
	}
	// Withdraw so the window manager re-reads the window type on remap.
	xproto.UnmapWindow(xc.conn, win)
	xc.decorate(win, host.ID == 0)
	xproto.ReparentWindow(xc.conn, win, parent, int16(r.X), int16(r.Y))
	xproto.MapWindow(xc.conn, win)
	xc.place(win, host, r)
	if err := xc.sync(); err != nil {
		xc.conn.Close()
		return nil, err
	}
	return &x11Surface{xc: xc, wid: win}, nil
}

// decorate sets the EWMH type and state that keep wid borderless, sticky and
// out of the taskbar. Degraded windows go above everything instead of below.
func (xc *x11Conn) decorate(wid xproto.Window, degraded bool) {
	kind := xc.atoms["_NET_WM_WINDOW_TYPE_DESKTOP"]
	states := []xproto.Atom{
		xc.atoms["_NET_WM_STATE_BELOW"],
		xc.atoms["_NET_WM_STATE_STICKY"],
		xc.atoms["_NET_WM_STATE_SKIP_TASKBAR"],
		xc.atoms["_NET_WM_STATE_SKIP_PAGER"],
	}
	if degraded {
		kind = xc.atoms["_NET_WM_WINDOW_TYPE_NORMAL"]
		states = []xproto.Atom{
			xc.atoms["_NET_WM_STATE_ABOVE"],
			xc.atoms["_NET_WM_STATE_FULLSCREEN"],
			xc.atoms["_NET_WM_STATE_SKIP_TASKBAR"],
			xc.atoms["_NET_WM_STATE_SKIP_PAGER"],
		}
	}
	xc.setAtoms(wid, "_NET_WM_WINDOW_TYPE", []xproto.Atom{kind})
	xc.setAtoms(wid, "_NET_WM_STATE", states)

	// flags=MWM_HINTS_DECORATIONS, decorations=0
	hints := make([]byte, 5*4)
	xgb.Put32(hints[0:], 2)
	motif := xc.atoms["_MOTIF_WM_HINTS"]
	xproto.ChangeProperty(xc.conn, xproto.PropModeReplace, wid, motif, motif, 32, 5, hints)
}

func (xc *x11Conn) place(wid xproto.Window, host Host, r Rect) {
	mask := uint16(xproto.ConfigWindowX | xproto.ConfigWindowY | xproto.ConfigWindowWidth | xproto.ConfigWindowHeight)
	values := []uint32{uint32(r.X), uint32(r.Y), uint32(r.Width), uint32(r.Height)}
	if host.ID != 0 {
		if host.Below != 0 {
			mask |= xproto.ConfigWindowSibling
			values = append(values, uint32(host.Below))
		}
		mask |= xproto.ConfigWindowStackMode
		values = append(values, xproto.StackModeBelow)
	}
	xproto.ConfigureWindow(xc.conn, wid, mask, values)
}

func (xc *x11Conn) setAtoms(wid xproto.Window, prop string, atoms []xproto.Atom) {
	data := make([]byte, 4*len(atoms))
	for i, a := range atoms {
		xgb.Put32(data[i*4:], uint32(a))
	}
	xproto.ChangeProperty(xc.conn, xproto.PropModeReplace, wid, xc.atoms[prop],
		xproto.AtomAtom, 32, uint32(len(atoms)), data)
}

func (xc *x11Conn) property32(wid xproto.Window, prop string, typ xproto.Atom) []uint32 {
	reply, err := xproto.GetProperty(xc.conn, false, wid, xc.atoms[prop], typ, 0, 1024).Reply()
	if err != nil || reply == nil || reply.Format != 32 {
		return nil
	}
	out := make([]uint32, 0, reply.ValueLen)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		out = append(out, xgb.Get32(reply.Value[i:]))
	}
	return out
}

func (xc *x11Conn) hasAtom(wid xproto.Window, prop, want string) bool {
	target := uint32(xc.atoms[want])
	for _, v := range xc.property32(wid, prop, xproto.AtomAtom) {
		if v == target {
			return true
		}
	}
	return false
}

// windowForPID searches the managed client list for a window whose _NET_WM_PID is pid.
func (xc *x11Conn) windowForPID(pid int) (xproto.Window, bool) {
	for _, w := range xc.property32(xc.screen.Root, "_NET_CLIENT_LIST", xproto.AtomWindow) {
		win := xproto.Window(w)
		if pids := xc.property32(win, "_NET_WM_PID", xproto.AtomCardinal); len(pids) > 0 && int(pids[0]) == pid {
			return win, true
		}
	}
	return 0, false
}

// sync forces a round trip so that errors from unchecked requests surface.
func (xc *x11Conn) sync() error {
	_, err := xproto.GetInputFocus(xc.conn).Reply()
	return err
}

type x11Surface struct {
	xc    *x11Conn
	wid   xproto.Window
	owned bool
	once  sync.Once
}

func (s *x11Surface) id() WindowID { return WindowID(s.wid) }

// destroy removes an owned window. Adopted windows belong to their process and
// disappear with it; the connection is closed either way.
func (s *x11Surface) destroy() error {
	var err error
	s.once.Do(func() {
		if s.owned {
			// BadWindow here means the window already died with its parent.
			err = xproto.DestroyWindowChecked(s.xc.conn, s.wid).Check()
		}
		s.xc.conn.Close()
	})
	return err
}
