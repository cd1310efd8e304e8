// Package payment drives the kiosk's EFTPOS card terminal through the
// vendor DLL. Only Windows builds can load the DLL; elsewhere every call
// fails with domain.ErrUnsupportedPlatform.
package payment

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"photobooth/internal/domain"
)

const (
	DefaultComPort    = "COM3"
	DefaultTimeoutSec = 240
	DefaultCharset    = "MULTI"
)

// Terminal is a loaded vendor library.
type Terminal interface {
	CheckConnection(comPort string, timeoutSec int, charset string) (string, error)
	PerformPurchase(amountHalalah int64, comPort string, timeoutSec int, charset string) (string, error)
}

type Options struct {
	DLLPath    string
	ComPort    string
	TimeoutSec int
	Charset    string
	Logger     zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.ComPort == "" {
		o.ComPort = DefaultComPort
	}
	if o.TimeoutSec <= 0 {
		o.TimeoutSec = DefaultTimeoutSec
	}
	if o.Charset == "" {
		o.Charset = DefaultCharset
	}
	return o
}

// Provider owns the process wide terminal handle. The DLL is loaded on first
// use; a failed load is not remembered so a later call can retry. Terminal
// calls run one at a time because they share the COM port.
type Provider struct {
	opts   Options
	logger zerolog.Logger
	open   func(dllPath string) (Terminal, error)

	mu       sync.Mutex
	terminal Terminal

	port chan struct{}
}

func NewProvider(opts Options) *Provider {
	return &Provider{
		opts:   opts.withDefaults(),
		logger: opts.Logger.With().Str("component", "eftpos").Logger(),
		open:   openTerminal,
		port:   make(chan struct{}, 1),
	}
}

func (p *Provider) client() (Terminal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.terminal != nil {
		return p.terminal, nil
	}
	t, err := p.open(p.opts.DLLPath)
	if err != nil {
		return nil, err
	}
	p.terminal = t
	return t, nil
}

// acquire waits for the COM port. Nothing has reached the terminal while
// the caller waits here.
func (p *Provider) acquire(ctx context.Context) error {
	select {
	case p.port <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Provider) release() { <-p.port }

// CheckConnection asks the terminal whether it is reachable and returns the
// vendor response text. The caller stops waiting when ctx ends; the port is
// released once the DLL returns.
func (p *Provider) CheckConnection(ctx context.Context) (string, error) {
	t, err := p.client()
	if err != nil {
		return "", err
	}
	if err := p.acquire(ctx); err != nil {
		return "", err
	}
	type outcome struct {
		res string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer p.release()
		res, err := t.CheckConnection(p.opts.ComPort, p.opts.TimeoutSec, p.opts.Charset)
		done <- outcome{res: res, err: err}
	}()
	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Purchase charges amountHalalah (1/100 SAR) on the terminal. Once the
// terminal has the request its outcome is awaited and returned even if ctx
// ends meanwhile.
func (p *Provider) Purchase(ctx context.Context, amountHalalah int64) (string, error) {
	if amountHalalah <= 0 {
		return "", domain.Invalid("Amount must be positive")
	}
	t, err := p.client()
	if err != nil {
		return "", err
	}
	if err := p.acquire(ctx); err != nil {
		return "", err
	}
	defer p.release()

	res, err := t.PerformPurchase(amountHalalah, p.opts.ComPort, p.opts.TimeoutSec, p.opts.Charset)
	if ctx.Err() != nil {
		ev := p.logger.Warn()
		if err != nil {
			ev = p.logger.Error().Err(err)
		}
		ev.Int64("amount_halalah", amountHalalah).
			Str("result", res).
			AnErr("caller", ctx.Err()).
			Msg("purchase finished after caller gave up")
	}
	return res, err
}
