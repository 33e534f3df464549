package config

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/malcolmseyd/captcha/imageproc"
)

// DefaultFontDir is searched when no font path is configured.
const DefaultFontDir = "Fonts"

// FontPattern matches font asset files inside a directory.
const FontPattern = "*.font.png"

// FontFiles lists the font assets path refers to. An empty path looks in
// DefaultFontDir and returns nil when that holds nothing, meaning the
// built-in font should be used.
func FontFiles(path string) ([]string, error) {
	if path == "" {
		files, _ := filepath.Glob(filepath.Join(DefaultFontDir, FontPattern))
		return files, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("can't find font %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := filepath.Glob(filepath.Join(path, FontPattern))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("directory %s has no %s files: %w", path, FontPattern, os.ErrNotExist)
	}
	return files, nil
}

// LoadFonts decodes every font asset path refers to.
func LoadFonts(path string) ([]*imageproc.FontAsset, error) {
	files, err := FontFiles(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		f, err := imageproc.DefaultFont()
		if err != nil {
			return nil, err
		}
		return []*imageproc.FontAsset{f}, nil
	}

	fonts := make([]*imageproc.FontAsset, 0, len(files))
	for _, name := range files {
		f, err := loadFontFile(name)
		if err != nil {
			return nil, err
		}
		fonts = append(fonts, f)
	}
	return fonts, nil
}

func loadFontFile(name string) (*imageproc.FontAsset, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	asset, err := imageproc.DecodeFont(f)
	if err != nil {
		return nil, fmt.Errorf("can't load font %s: %w", name, err)
	}
	return asset, nil
}

// FontSet picks one of several decoded fonts per render. It implements
// imageproc.FontLoader.
type FontSet struct {
	Fonts []*imageproc.FontAsset
	Rand  *rand.Rand
}

var _ imageproc.FontLoader = FontSet{}

func (s FontSet) LoadFont() (*imageproc.FontAsset, error) {
	if len(s.Fonts) == 0 {
		return nil, errors.New("no fonts loaded")
	}
	return s.Fonts[s.Rand.Intn(len(s.Fonts))], nil
}
