package main

import (
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"path"
	"sync"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/malcolmseyd/captcha/captcha"
	"github.com/malcolmseyd/captcha/imageproc"
	"github.com/malcolmseyd/captcha/internal/config"
)

type CLIOptions struct {
	OutDir     string         `long:"outdir" required:"true"`
	Count      int            `long:"count" default:"10"`
	MaxWorkers int            `long:"maxworkers" default:"4"`
	Seed       int64          `long:"seed" description:"base seed, 0 uses the clock"`
	Verbose    bool           `short:"v" long:"verbose" description:"log render diagnostics"`
	Captcha    config.Options `group:"Captcha Options"`
}

type job struct {
	n    int
	seed int64
}

func main() {
	var opts CLIOptions
	_, err := flags.Parse(&opts)
	if err != nil {
		os.Exit(1)
	}
	if err := opts.Captcha.Validate(); err != nil {
		log.Fatalln("bad captcha options:", err)
	}
	if opts.Verbose {
		imageproc.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		log.Fatalln("failed to create output directory:", err)
	}

	fonts, err := config.LoadFonts(opts.Captcha.Font)
	if err != nil {
		log.Fatalln("failed to load fonts:", err)
	}
	log.Printf("loaded %d font(s)", len(fonts))

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	jobs := make(chan job, opts.MaxWorkers)
	wg := sync.WaitGroup{}
	wg.Add(opts.MaxWorkers)
	for i := 0; i < opts.MaxWorkers; i++ {
		go worker(&opts, fonts, jobs, &wg)
	}

	for n := 0; n < opts.Count; n++ {
		jobs <- job{n: n, seed: seed + int64(n)}
	}
	close(jobs)
	wg.Wait()
}

func worker(opts *CLIOptions, fonts []*imageproc.FontAsset, jobs chan job, wg *sync.WaitGroup) {
	defer wg.Done()
	for j := range jobs {
		// one generator per captcha keeps output reproducible from the seed
		rng := rand.New(rand.NewSource(j.seed))
		if err := generate(opts, fonts, j.n, rng); err != nil {
			log.Printf("error generating captcha %d: %v\n", j.n, err)
		}
	}
}

func generate(opts *CLIOptions, fonts []*imageproc.FontAsset, n int, rng *rand.Rand) error {
	settings, err := opts.Captcha.Resolve(rng)
	if err != nil {
		return err
	}
	capt, err := captcha.Generate(settings, config.FontSet{Fonts: fonts, Rand: rng}, rng)
	if err != nil {
		return err
	}

	outPathName := path.Join(opts.OutDir, fmt.Sprintf("%d_%s.%s", n, capt.Key, settings.Format.Ext()))
	outFile, err := os.Create(outPathName)
	if err != nil {
		return fmt.Errorf("can't create image file %s: %w", outPathName, err)
	}
	defer outFile.Close()
	if err := imageproc.Encode(outFile, capt.Image, settings.Format); err != nil {
		return err
	}
	log.Printf("wrote %s to disk\n", outPathName)
	return nil
}
