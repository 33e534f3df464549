package main

import (
	crand "crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"log"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jessevdk/go-flags"

	"github.com/malcolmseyd/captcha/captcha"
	"github.com/malcolmseyd/captcha/imageproc"
	"github.com/malcolmseyd/captcha/internal/apiresp"
	"github.com/malcolmseyd/captcha/internal/config"
	"github.com/malcolmseyd/captcha/internal/store"
	"github.com/malcolmseyd/captcha/internal/ticket"
)

func must[T any](value T, err error) T {
	if err != nil {
		log.Fatalln("fatal error:", err)
	}
	return value
}

type serverOptions struct {
	Host    string         `long:"host" env:"LISTEN_HOST" description:"listen host"`
	Port    string         `long:"port" env:"LISTEN_PORT" default:"8080" description:"listen port"`
	Secret  string         `long:"secret" env:"CAPTCHA_SECRET" description:"token signing key, random when empty"`
	DB      string         `long:"db" env:"CAPTCHA_DB" default:"./captcha.db" description:"challenge database"`
	TTL     time.Duration  `long:"ttl" env:"CAPTCHA_TTL" default:"5m" description:"how long a captcha can be answered"`
	Captcha config.Options `group:"Captcha Options"`
}

type server struct {
	fonts    []*imageproc.FontAsset
	defaults config.Options
	store    *store.Store
	secret   []byte
	ttl      time.Duration
}

func main() {
	var opts serverOptions
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}
	if err := opts.Captcha.Validate(); err != nil {
		log.Fatalln("bad captcha options:", err)
	}
	if opts.TTL <= 0 {
		log.Fatalln("ttl must be positive")
	}

	secret := []byte(opts.Secret)
	if len(secret) == 0 {
		log.Println("CAPTCHA_SECRET not set, tokens won't survive a restart")
		secret = make([]byte, 32)
		must(crand.Read(secret))
	}

	st := must(store.Open(opts.DB))
	defer st.Close()

	fonts := must(config.LoadFonts(opts.Captcha.Font))
	log.Println("loaded", len(fonts), "font(s)")

	srv := &server{
		fonts:    fonts,
		defaults: opts.Captcha,
		store:    st,
		secret:   secret,
		ttl:      opts.TTL,
	}
	go srv.purgeLoop()

	router := newRouter(srv)
	if err := router.Run(net.JoinHostPort(opts.Host, opts.Port)); err != nil {
		log.Fatalln("server stopped:", err)
	}
}

func newRouter(s *server) *gin.Engine {
	router := gin.Default()
	router.GET("/captcha", s.getCaptcha)
	router.POST("/captcha/verify", s.verifyCaptcha)
	return router
}

func (s *server) getCaptcha(c *gin.Context) {
	opts, err := optionsFromQuery(c, s.defaults)
	if err != nil {
		apiresp.BadOption(c, err)
		return
	}
	rng := newRand()
	settings, err := opts.Resolve(rng)
	if err != nil {
		apiresp.BadOption(c, err)
		return
	}

	capt, err := captcha.Generate(settings, config.FontSet{Fonts: s.fonts, Rand: rng}, rng)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	img, contentType, err := imageproc.EncodeBytes(capt.Image, settings.Format)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	id := newChallengeID()
	if err := s.store.Create(id, capt.Key, s.ttl); err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	token, _, err := ticket.Issue(id, s.secret, s.ttl)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Header("X-Captcha-Token", token)
	c.Data(http.StatusOK, contentType, img)
}

type verifyReq struct {
	Token  string `json:"token" binding:"required"`
	Answer string `json:"answer" binding:"required"`
}

func (s *server) verifyCaptcha(c *gin.Context) {
	var req verifyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresp.Fail(c, http.StatusBadRequest, apiresp.CodeBadRequest, err.Error())
		return
	}
	claims, err := ticket.Verify(req.Token, s.secret)
	if err != nil {
		log.Println("rejected captcha token:", err)
		apiresp.Fail(c, http.StatusUnauthorized, apiresp.CodeBadToken, "invalid token")
		return
	}
	valid, err := s.store.Consume(claims.ChallengeID(), strings.TrimSpace(req.Answer))
	if errors.Is(err, store.ErrNotFound) {
		apiresp.Fail(c, http.StatusGone, apiresp.CodeGone, "captcha expired or already used")
		return
	} else if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	apiresp.OK(c, gin.H{"valid": valid})
}

// optionsFromQuery overrides base with any captcha options in the query.
func optionsFromQuery(c *gin.Context, base config.Options) (config.Options, error) {
	opts := base
	ints := map[string]*int{
		"width":         &opts.Width,
		"height":        &opts.Height,
		"keylength":     &opts.KeyLength,
		"overlaypixels": &opts.OverlayPixels,
	}
	for name, dst := range ints {
		if v, ok := c.GetQuery(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return opts, &config.Error{Param: name, Message: "not an integer"}
			}
			*dst = n
		}
	}
	bools := map[string]*bool{
		"overlay": &opts.Overlay,
		"waves":   &opts.Waves,
	}
	for name, dst := range bools {
		if v, ok := c.GetQuery(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return opts, &config.Error{Param: name, Message: "not a boolean"}
			}
			*dst = b
		}
	}
	for name, dst := range map[string]*config.Color{"foreground": &opts.Foreground, "background": &opts.Background} {
		if v, ok := c.GetQuery(name); ok {
			if err := dst.UnmarshalFlag(v); err != nil {
				return opts, &config.Error{Param: name, Message: err.Error()}
			}
		}
	}
	if v, ok := c.GetQuery("format"); ok {
		opts.Format = v
	}
	return opts, nil
}

func (s *server) purgeLoop() {
	for range time.Tick(s.ttl) {
		n, err := s.store.Purge(time.Now())
		if err != nil {
			log.Println("failed to purge challenges:", err)
			continue
		}
		if n > 0 {
			log.Printf("purged %d expired challenges", n)
		}
	}
}

// newRand seeds a generator for a single request so concurrent requests
// never share one.
func newRand() *rand.Rand {
	var seed [8]byte
	must(crand.Read(seed[:]))
	return rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(seed[:]))))
}

func newChallengeID() string {
	b := make([]byte, 16)
	must(crand.Read(b))
	return hex.EncodeToString(b)
}
