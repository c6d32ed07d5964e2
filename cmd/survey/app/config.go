package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

type Config struct {
	DBPath        string
	SessionID     string // empty selects the most recent session
	OutputFile    string
	Format        ImageFormat
	Theme         Theme
	FontPath      string // empty disables text annotations
	MaxWidth      int
	MinPower      *float64
	MaxPower      *float64
	NoAnnotations bool
}

func NewConfig() *Config {
	return &Config{
		Format:   ImagePNG,
		Theme:    ThemeDefault,
		MaxWidth: 4096,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var imageFormat, theme string
	var minPower, maxPower float64
	flag.StringVar(&c.DBPath, "db", "", "Path to the session database file")
	flag.StringVar(&c.SessionID, "s", "", "Session ID (default: most recent session)")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file")
	flag.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	flag.StringVar(&theme, "theme", string(ThemeDefault), "Color theme. [default, thermal, grayscale]")
	flag.StringVar(&c.FontPath, "font", "", "Path to a TTF font for annotations")
	flag.IntVar(&c.MaxWidth, "max-width", c.MaxWidth, "Maximum image width in pixels")
	flag.Float64Var(&minPower, "min-power", 0, "Define a manual minimum power (format nn.n)")
	flag.Float64Var(&maxPower, "max-power", 0, "Define a manual maximum power (format nn.n)")
	flag.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as time and power scales")
	flag.Parse()

	imageFormat = strings.ToLower(imageFormat)

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "min-power" {
			c.MinPower = &minPower
		}
		if f.Name == "max-power" {
			c.MaxPower = &maxPower
		}
	})

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if _, ok := validThemes[Theme(theme)]; !ok {
		err = fmt.Errorf("invalid color theme: %s", theme)
	} else if c.MaxWidth < 100 {
		err = fmt.Errorf("max width too small: %d", c.MaxWidth)
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.Theme = Theme(theme)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}
