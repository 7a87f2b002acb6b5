package screen

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// commandTool describes an external screenshot command.
type commandTool struct {
	Name string

	// Args returns the arguments to write a screenshot of r to file.
	Args func(r Region, file string) []string

	// Full is true if the tool captures the whole screen, which is then
	// cropped to the region.
	Full bool
}

var (
	toolGrim = commandTool{
		Name: "grim",
		Args: func(r Region, file string) []string {
			return []string{"-g", strconv.Itoa(r.X) + "," + strconv.Itoa(r.Y) + " " + strconv.Itoa(r.W) + "x" + strconv.Itoa(r.H), "-t", "png", file}
		},
	}
	toolScreencapture = commandTool{
		Name: "screencapture",
		Args: func(r Region, file string) []string {
			return []string{"-x", "-R", r.String(), "-t", "png", file}
		},
	}
	toolGnomeScreenshot = commandTool{
		Name: "gnome-screenshot",
		Args: func(r Region, file string) []string {
			return []string{"-f", file}
		},
		Full: true,
	}
	toolScrot = commandTool{
		Name: "scrot",
		Args: func(r Region, file string) []string {
			return []string{"-o", file}
		},
		Full: true,
	}
)

type commandSampler struct {
	tool    commandTool
	region  Region
	tempDir string
	logger  *slog.Logger
}

// NewCommand samples the screen by running the named screenshot tool (one of
// grim, screencapture, gnome-screenshot, or scrot) and decoding the image it
// writes.
func NewCommand(name string, region Region, logger *slog.Logger) (Sampler, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var tool commandTool
	switch name {
	case toolGrim.Name:
		tool = toolGrim
	case toolScreencapture.Name:
		tool = toolScreencapture
	case toolGnomeScreenshot.Name:
		tool = toolGnomeScreenshot
	case toolScrot.Name:
		tool = toolScrot
	default:
		return nil, fmt.Errorf("unknown screenshot command %q", name)
	}
	s, err := newCommand(tool, region, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newCommand(tool commandTool, region Region, logger *slog.Logger) (*commandSampler, error) {
	if _, err := exec.LookPath(tool.Name); err != nil {
		return nil, fmt.Errorf("%s: %w", tool.Name, err)
	}
	tmpDir, err := os.MkdirTemp("", "bluelight-screen-*")
	if err != nil {
		return nil, fmt.Errorf("%s: create temp dir: %w", tool.Name, err)
	}
	return &commandSampler{
		tool:    tool,
		region:  region,
		tempDir: tmpDir,
		logger:  logger,
	}, nil
}

func (s *commandSampler) Name() string {
	return s.tool.Name
}

func (s *commandSampler) Sample(ctx context.Context) (float64, error) {
	tmpFile := filepath.Join(s.tempDir, "sample.png")
	defer os.Remove(tmpFile)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.tool.Name, s.tool.Args(s.region, tmpFile)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w (stderr: %s)", err, msg)
		}
		return 0, captureErr(s.Name(), err)
	}

	f, err := os.Open(tmpFile)
	if err != nil {
		return 0, captureErr(s.Name(), err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return 0, captureErr(s.Name(), fmt.Errorf("decode screenshot: %w", err))
	}
	if s.tool.Full {
		if img, err = cropImage(img, s.region.Rect()); err != nil {
			return 0, captureErr(s.Name(), err)
		}
	}

	v, err := MeanBlue(img)
	if err != nil {
		return 0, captureErr(s.Name(), err)
	}
	s.logger.Debug("screen: sampled screen", "backend", s.Name(), "region", s.region, "blue", v)
	return v, nil
}

func (s *commandSampler) Close() error {
	return os.RemoveAll(s.tempDir)
}

// cropImage returns the part of img within r (relative to the image origin).
func cropImage(img image.Image, r image.Rectangle) (image.Image, error) {
	b := img.Bounds()
	r = r.Add(b.Min).Intersect(b)
	if r.Empty() {
		return nil, fmt.Errorf("%w: region outside the %dx%d screenshot", ErrInvalidSample, b.Dx(), b.Dy())
	}
	si, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	})
	if !ok {
		return nil, fmt.Errorf("%w: cannot crop %T", ErrInvalidSample, img)
	}
	return si.SubImage(r), nil
}
