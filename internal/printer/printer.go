// Package printer sends finished booth photos to the kiosk printer.
package printer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"photobooth/internal/domain"
)

const DefaultMaxCopies = 5

var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

// Device prints one spooled file.
type Device interface {
	Print(ctx context.Context, path string, copies int) error
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// CommandPrinter prints through a CUPS style command line, `lp` by default.
type CommandPrinter struct {
	command string
	name    string
	run     runFunc
}

func NewCommandPrinter(command, name string) *CommandPrinter {
	if strings.TrimSpace(command) == "" {
		command = "lp"
	}
	return &CommandPrinter{command: command, name: strings.TrimSpace(name), run: runCommand}
}

func (p *CommandPrinter) Args(path string, copies int) []string {
	var args []string
	if p.name != "" {
		args = append(args, "-d", p.name)
	}
	args = append(args, "-n", strconv.Itoa(copies), path)
	return args
}

func (p *CommandPrinter) Print(ctx context.Context, path string, copies int) error {
	out, err := p.run(ctx, p.command, p.Args(path, copies)...)
	if err != nil {
		return fmt.Errorf("command failed (%s): %w (%s)", p.command, err, compactOutput(out))
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func compactOutput(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	s = strings.ReplaceAll(s, "\n", " | ")
	s = strings.ReplaceAll(s, "\r", "")
	if len(s) > 280 {
		s = s[:280]
	}
	if s == "" {
		return "no output"
	}
	return s
}

// Job is the outcome of one print request. A failed print is reported, not
// returned as an error, so the kiosk can tell the guest what happened.
type Job struct {
	Printed bool   `json:"printed"`
	Message string `json:"message"`
	Copies  int    `json:"copies"`
}

type Options struct {
	SpoolDir  string
	MaxCopies int
	Logger    zerolog.Logger
}

// Spooler writes uploads to a unique spool file, prints them and removes the
// file afterwards.
type Spooler struct {
	device    Device
	dir       string
	maxCopies int
	logger    zerolog.Logger
}

func NewSpooler(device Device, opts Options) *Spooler {
	dir := opts.SpoolDir
	if dir == "" {
		dir = os.TempDir()
	}
	maxCopies := opts.MaxCopies
	if maxCopies <= 0 {
		maxCopies = DefaultMaxCopies
	}
	return &Spooler{device: device, dir: dir, maxCopies: maxCopies, logger: opts.Logger}
}

// Submit validates filename and copies, then prints data.
func (s *Spooler) Submit(ctx context.Context, filename string, data []byte, copies int) (*Job, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if filename == "" {
		return nil, domain.Invalid("No selected file")
	}
	if _, ok := allowedExtensions[ext]; !ok {
		return nil, domain.Invalid("File type not allowed")
	}
	if len(data) == 0 {
		return nil, domain.Invalid("No file part in the request")
	}
	if copies == 0 {
		copies = 1
	}
	if copies < 0 || copies > s.maxCopies {
		return nil, domain.Invalid(fmt.Sprintf("copies must be between 1 and %d", s.maxCopies))
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	path := filepath.Join(s.dir, "print-"+uuid.NewString()+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("write spool file: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", path).Msg("spool cleanup failed")
		}
	}()

	if err := s.device.Print(ctx, path, copies); err != nil {
		s.logger.Error().Err(err).Int("copies", copies).Msg("printing failed")
		return &Job{Printed: false, Message: "Image saved but printing failed", Copies: copies}, nil
	}
	s.logger.Info().Int("copies", copies).Msg("sent to printer")
	return &Job{Printed: true, Message: "Image saved and sent to printer", Copies: copies}, nil
}
