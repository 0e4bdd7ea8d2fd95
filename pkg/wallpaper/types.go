package wallpaper

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/dixieflatline76/AetherDesk/pkg/apperror"
)

// Type is the kind of content a wallpaper shows.
type Type int

// Wallpaper types.
const (
	TypeStatic Type = iota
	TypeVideo
	TypeWeb
	TypeShader
	TypeAudio
)

var typeNames = map[Type]string{
	TypeStatic: "static",
	TypeVideo:  "video",
	TypeWeb:    "web",
	TypeShader: "shader",
	TypeAudio:  "audio",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// ParseType maps a type name to a Type. Matching is case-insensitive.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, n := range typeNames {
		if n == s {
			return t, nil
		}
	}
	return TypeStatic, apperror.Config("parse wallpaper type", "unknown type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	n, ok := typeNames[t]
	if !ok {
		return nil, fmt.Errorf("invalid wallpaper type %d", int(t))
	}
	return []byte(n), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Options are renderer options. Fields that do not apply to a type are ignored.
type Options struct {
	Loop bool `json:"loop"`
	// Volume is 0-100. Zero mutes the renderer.
	Volume int `json:"volume"`
	// Fit scales and crops a static image to the primary screen before it is set.
	Fit bool `json:"fit"`
	// Uniforms are passed to shaders as user parameters.
	Uniforms map[string]string `json:"uniforms,omitempty"`
}

// Spec is a wallpaper request. Treat it as immutable; use Clone before changing
// the uniform map.
type Spec struct {
	Type    Type    `json:"type"`
	Path    string  `json:"path"`
	Options Options `json:"options"`
}

func (s Spec) String() string {
	return s.Type.String() + ":" + s.Path
}

// Clone returns a deep copy of s.
func (s Spec) Clone() Spec {
	c := s
	if s.Options.Uniforms != nil {
		c.Options.Uniforms = make(map[string]string, len(s.Options.Uniforms))
		for k, v := range s.Options.Uniforms {
			c.Options.Uniforms[k] = v
		}
	}
	return c
}

// Validate rejects malformed requests. It does not touch the filesystem; whether
// the content and the renderer exist is checked by Wallpaper.Check.
func (s Spec) Validate() error {
	const op = "validate wallpaper"
	if _, ok := typeNames[s.Type]; !ok {
		return apperror.Config(op, "invalid type %d", int(s.Type))
	}
	if strings.TrimSpace(s.Path) == "" {
		return apperror.Config(op, "%s wallpaper needs a path", s.Type)
	}
	if s.Options.Volume < 0 || s.Options.Volume > 100 {
		return apperror.Config(op, "volume %d out of range 0-100", s.Options.Volume)
	}
	for k, v := range s.Options.Uniforms {
		if k == "" || strings.ContainsAny(k, ",=") || strings.Contains(v, ",") {
			return apperror.Config(op, "invalid shader uniform %q=%q", k, v)
		}
	}
	if s.Type == TypeWeb && isURL(s.Path) {
		u, err := url.Parse(s.Path)
		if err != nil || (u.Scheme != "file" && u.Host == "") {
			return apperror.Config(op, "invalid url %q", s.Path)
		}
	}
	return nil
}

func isURL(p string) bool {
	for _, scheme := range []string{"http://", "https://", "file://"} {
		if strings.HasPrefix(strings.ToLower(p), scheme) {
			return true
		}
	}
	return false
}

var typeByExt = map[string]Type{
	".jpg": TypeStatic, ".jpeg": TypeStatic, ".png": TypeStatic, ".bmp": TypeStatic, ".webp": TypeStatic,
	".mp4": TypeVideo, ".webm": TypeVideo, ".mkv": TypeVideo, ".mov": TypeVideo, ".gif": TypeVideo,
	".html": TypeWeb, ".htm": TypeWeb,
	".glsl": TypeShader, ".frag": TypeShader, ".hook": TypeShader,
	".mp3": TypeAudio, ".flac": TypeAudio, ".ogg": TypeAudio, ".wav": TypeAudio, ".opus": TypeAudio,
}

// TypeForPath guesses the wallpaper type of a file or URL from its extension.
// URLs are web pages.
func TypeForPath(p string) (Type, bool) {
	if isURL(p) && !strings.HasPrefix(strings.ToLower(p), "file://") {
		return TypeWeb, true
	}
	t, ok := typeByExt[strings.ToLower(path.Ext(p))]
	return t, ok
}
