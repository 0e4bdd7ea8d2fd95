package wallpaper

import (
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dixieflatline76/AetherDesk/pkg/desktop"
)

// Default candidate binaries, tried in order.
var (
	DefaultVideoRenderers = []string{
		"mpv",
		"mpv.exe",
		`C:\Program Files\mpv\mpv.exe`,
		`C:\Program Files (x86)\mpv\mpv.exe`,
	}
	DefaultLayerRenderers   = []string{"mpvpaper"}
	DefaultBrowserRenderers = []string{"chromium", "chromium-browser", "google-chrome", "msedge", "firefox"}
)

// mpvOptions are the mpv flags shared by every mpv-based wallpaper, without
// the embedding target.
func mpvOptions(spec Spec) []string {
	loop := "no"
	if spec.Options.Loop {
		loop = "inf"
	}
	opts := []string{
		"--loop-file=" + loop,
		"--no-border",
		"--osd-level=0",
		"--quiet",
		"--no-config",
		"--no-input-default-bindings",
		"--no-input-cursor",
		"--hwdec=auto",
		"--keepaspect=no",
		"--no-terminal",
	}

	switch spec.Type {
	case TypeShader:
		opts = append(opts, "--no-audio", "--glsl-shaders="+spec.Path)
		if u := shaderOpts(spec.Options.Uniforms); u != "" {
			opts = append(opts, "--glsl-shader-opts="+u)
		}
	case TypeAudio:
		if spec.Options.Volume > 0 {
			opts = append(opts, "--volume="+strconv.Itoa(spec.Options.Volume))
		} else {
			opts = append(opts, "--mute=yes")
		}
	default:
		if spec.Options.Volume > 0 {
			opts = append(opts, "--volume="+strconv.Itoa(spec.Options.Volume))
		} else {
			opts = append(opts, "--no-audio")
		}
	}
	return opts
}

// shaderOpts renders uniforms as a stable k=v,k=v list.
func shaderOpts(uniforms map[string]string) string {
	if len(uniforms) == 0 {
		return ""
	}
	keys := make([]string, 0, len(uniforms))
	for k := range uniforms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+uniforms[k])
	}
	return strings.Join(parts, ",")
}

// mpvSource is what mpv plays: the file itself, or a generated source for
// shaders and audio visualisation.
func mpvSource(spec Spec, width, height int) (source string, extra []string) {
	switch spec.Type {
	case TypeShader:
		return fmt.Sprintf("av://lavfi:color=c=black:s=%dx%d:r=60", width, height), nil
	case TypeAudio:
		return spec.Path, []string{
			fmt.Sprintf("--lavfi-complex=[aid1]asplit[ao][a];[a]showcqt=s=%dx%d[vo]", width, height),
		}
	}
	return spec.Path, nil
}

// mpvArgs builds an mpv command line for an X11 or Windows embedding.
func mpvArgs(spec Spec, emb *desktop.Embedding) []string {
	width, height := emb.Bounds.Width, emb.Bounds.Height
	if width <= 0 || height <= 0 {
		width, height = defaultScreenWidth, defaultScreenHeight
	}
	source, extra := mpvSource(spec, width, height)

	args := append(mpvOptions(spec), extra...)
	if emb.Degraded {
		args = append(args, "--fs", "--ontop")
	} else {
		args = append(args, "--wid="+strconv.FormatUint(uint64(emb.Window), 10))
	}
	return append(args, source)
}

// layerArgs builds an mpvpaper command line for a Wayland layer embedding.
// mpvpaper takes the mpv options without their leading dashes.
func layerArgs(spec Spec, emb *desktop.Embedding, width, height int) []string {
	source, extra := mpvSource(spec, width, height)

	opts := append(mpvOptions(spec), extra...)
	for i, o := range opts {
		opts[i] = strings.TrimPrefix(o, "--")
	}

	output := "*"
	if len(emb.Outputs) == 1 {
		output = emb.Outputs[0]
	}
	return []string{"-o", strings.Join(opts, " "), output, source}
}

// browserArgs builds a kiosk command line for the resolved browser binary.
func browserArgs(binary, target, profileDir string) []string {
	name := strings.ToLower(strings.TrimSuffix(filepath.Base(binary), filepath.Ext(binary)))
	if strings.Contains(name, "firefox") {
		return []string{"--kiosk", "--new-instance", "--profile", profileDir, target}
	}
	return []string{
		"--app=" + target,
		"--kiosk",
		"--no-first-run",
		"--disable-session-crashed-bubble",
		"--user-data-dir=" + profileDir,
	}
}

// pageURL turns a web wallpaper path into something a browser can open.
func pageURL(p string) (string, error) {
	if isURL(p) {
		return p, nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	abs = filepath.ToSlash(abs)
	if !strings.HasPrefix(abs, "/") {
		abs = "/" + abs
	}
	return (&url.URL{Scheme: "file", Path: abs}).String(), nil
}
