package services

import (
	"context"
	"image"
	"image/color"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wenlng/go-captcha/v2/rotate"
	xdraw "golang.org/x/image/draw"
)

// CaptchaService guards signup with a rotate captcha: the client turns the thumbnail until it
// lines up with the background and submits the angle together with the challenge ID.
type CaptchaService interface {
	Generate(ctx context.Context) (*CaptchaChallenge, error)
	// Verify consumes the challenge whether or not the angle matches
	Verify(ctx context.Context, challengeID string, angle float64) bool
}

type CaptchaChallenge struct {
	ID                string
	MasterImageBase64 string
	ThumbImageBase64  string
	ExpiresAt         time.Time
}

type rotateCaptchaService struct {
	rotator   rotate.Captcha
	padding   int
	ttl       time.Duration
	mu        sync.Mutex
	challenge map[string]captchaEntry
	now       func() time.Time
}

type captchaEntry struct {
	angle     int
	expiresAt time.Time
}

// NewRotateCaptchaService builds the rotate captcha with generated backgrounds.
// padding is the accepted angle error in degrees.
func NewRotateCaptchaService(ttl time.Duration, padding, sizePx int) CaptchaService {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if sizePx <= 0 {
		sizePx = 220
	}

	builder := rotate.NewBuilder(rotate.WithImageSquareSize(sizePx))
	builder.SetResources(rotate.WithImages(captchaBackgrounds(3, sizePx)))

	return &rotateCaptchaService{
		rotator:   builder.Make(),
		padding:   padding,
		ttl:       ttl,
		challenge: make(map[string]captchaEntry),
		now:       time.Now,
	}
}

func (s *rotateCaptchaService) Generate(ctx context.Context) (*CaptchaChallenge, error) {
	data, err := s.rotator.Generate()
	if err != nil {
		return nil, err
	}
	block := data.GetData()

	master, err := data.GetMasterImage().ToBase64()
	if err != nil {
		return nil, err
	}
	thumb, err := data.GetThumbImage().ToBase64()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	expiresAt := s.now().Add(s.ttl)

	s.mu.Lock()
	s.sweepLocked()
	s.challenge[id] = captchaEntry{angle: block.Angle, expiresAt: expiresAt}
	s.mu.Unlock()

	return &CaptchaChallenge{ID: id, MasterImageBase64: master, ThumbImageBase64: thumb, ExpiresAt: expiresAt}, nil
}

func (s *rotateCaptchaService) Verify(ctx context.Context, challengeID string, angle float64) bool {
	s.mu.Lock()
	entry, ok := s.challenge[challengeID]
	delete(s.challenge, challengeID)
	s.mu.Unlock()

	if !ok || s.now().After(entry.expiresAt) {
		return false
	}
	return rotate.Validate(int(math.Round(angle)), entry.angle, s.padding)
}

// sweepLocked drops expired challenges; callers hold s.mu
func (s *rotateCaptchaService) sweepLocked() {
	now := s.now()
	for id, e := range s.challenge {
		if now.After(e.expiresAt) {
			delete(s.challenge, id)
		}
	}
}

func captchaBackgrounds(n, size int) []image.Image {
	imgs := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		imgs = append(imgs, noiseGradient(size))
	}
	return imgs
}

func noiseGradient(size int) image.Image {
	rgba := image.NewRGBA(image.Rect(0, 0, size, size))
	half := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x)-half, float64(y)-half) / half
			if d > 1 {
				d = 1
			}
			base := uint8(200 - int(150*d))
			noise := uint8(rand.Intn(30))
			rgba.Set(x, y, color.RGBA{R: base + noise/3, G: base, B: 255 - base/2, A: 255})
		}
	}
	band := image.Rect(size/8, size/3, size-size/8, size/3+size/10)
	xdraw.Draw(rgba, band, &image.Uniform{C: color.RGBA{A: 24}}, image.Point{}, xdraw.Over)
	return rgba
}
