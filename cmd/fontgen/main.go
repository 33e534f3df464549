package main

import (
	"bytes"
	"log"
	"os"

	"github.com/jessevdk/go-flags"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/malcolmseyd/captcha/imageproc"
)

type CLIOptions struct {
	Out      string  `long:"out" required:"true" description:"output file, conventionally *.font.png"`
	TTF      string  `long:"ttf" description:"TrueType/OpenType font, Go Regular when empty"`
	Size     float64 `long:"size" default:"30"`
	DPI      float64 `long:"dpi" default:"72"`
	Alphabet string  `long:"alphabet" default:"abcdefhkmnpqrstuvwxyz2345678"`
	Gap      int     `long:"gap" default:"1" description:"blank columns between glyphs"`
}

func must[T any](value T, err error) T {
	if err != nil {
		log.Fatalln("fatal error:", err)
	}
	return value
}

func main() {
	var opts CLIOptions
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	ttf := goregular.TTF
	if opts.TTF != "" {
		ttf = must(os.ReadFile(opts.TTF))
	}
	face := must(imageproc.NewFace(ttf, opts.Size, opts.DPI))
	defer face.Close()

	atlas, glyphs, err := imageproc.BuildAtlas(face, opts.Alphabet, opts.Gap)
	if err != nil {
		log.Fatalln("failed to build atlas:", err)
	}

	var buf bytes.Buffer
	if err := imageproc.WriteFontPNG(&buf, atlas, glyphs); err != nil {
		log.Fatalln("failed to encode atlas:", err)
	}
	// decode what we wrote so a broken asset never reaches disk
	if _, err := imageproc.ParseFont(buf.Bytes()); err != nil {
		log.Fatalln("generated asset doesn't decode:", err)
	}
	if err := os.WriteFile(opts.Out, buf.Bytes(), 0o644); err != nil {
		log.Fatalln("failed to write atlas:", err)
	}
	log.Printf("wrote %d glyphs (%dx%d) to %s", len(glyphs), atlas.Bounds().Dx(), atlas.Bounds().Dy(), opts.Out)
}
