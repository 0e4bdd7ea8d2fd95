package wallpaper

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	defaultScreenWidth  = 1920
	defaultScreenHeight = 1080
)

// FitImage scales and centre-crops src to width x height and stores the result
// under cacheDir. The output name is derived from the source path, its
// modification time and the target size, so repeated calls reuse the file.
func FitImage(src, cacheDir string, width, height int) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", err
	}
	key := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", src, info.ModTime().UnixNano(), info.Size())))
	dir := filepath.Join(cacheDir, "fitted", fmt.Sprintf("%dx%d", width, height))
	target := filepath.Join(dir, hex.EncodeToString(key[:8])+".jpg")

	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", src, err)
	}
	fitted := imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	if err := imaging.Save(fitted, target, imaging.JPEGQuality(92)); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", target, err)
	}
	return target, nil
}
