package rtl

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// SampleRateMin and SampleRateMax bound the rates the RTL2832U tuner
	// accepts for continuous capture.
	SampleRateMin = 225_000
	SampleRateMax = 3_200_000

	GainMax = 50.0 // dB, upper bound across supported tuners
)

// Gain is the tuner gain setting: automatic, or a fixed value in dB.
// In YAML it is either the string "auto" or a number.
type Gain struct {
	Auto bool
	DB   float64
}

func (g *Gain) UnmarshalYAML(value *yaml.Node) error {
	if strings.EqualFold(strings.TrimSpace(value.Value), "auto") {
		*g = Gain{Auto: true}
		return nil
	}

	db, err := strconv.ParseFloat(value.Value, 64)
	if err != nil {
		return fmt.Errorf("rtl.Gain: must be \"auto\" or a value in dB: %q given", value.Value)
	}

	*g = Gain{DB: db}
	return nil
}

func (g *Gain) MarshalYAML() (interface{}, error) {
	return g.String(), nil
}

func (g *Gain) String() string {
	if g.Auto {
		return "auto"
	}
	return strconv.FormatFloat(g.DB, 'f', 1, 64)
}

// Config is the `rtl_sdr` capture tool configuration. The tool streams raw
// unsigned 8-bit I/Q pairs to stdout at the configured rate; block framing
// on top of the stream is handled by the Source.
type Config struct {
	// Required
	Frequency  int64 `yaml:"frequency" json:"frequency"`   // -f center frequency (Hz)
	SampleRate int   `yaml:"sampleRate" json:"sampleRate"` // -s sample rate (Hz)

	// BlockSize is the number of complex samples delivered per Read.
	// Not a tool argument; the Source reads exactly 2*BlockSize bytes
	// from the stream per block.
	BlockSize int `yaml:"blockSize" json:"blockSize"`

	// Optional
	Gain        Gain `yaml:"gain" json:"gain"`               // -g tuner gain in dB (default: automatic)
	DeviceIndex int  `yaml:"deviceIndex" json:"deviceIndex"` // -d device index (default: 0)
	PPMError    int  `yaml:"ppmError" json:"ppmError"`       // -p frequency correction (default: 0)

	// Hardware options
	DirectSampling bool `yaml:"directSampling" json:"directSampling"` // -D enable direct sampling (default: off)
	BiasTee        bool `yaml:"biasTee" json:"biasTee"`               // -T enable bias-tee (default: off)
}

func (c *Config) Validate() error {
	if c.Frequency <= 0 {
		return fmt.Errorf("rtl.Config: frequency must be positive: %d", c.Frequency)
	}
	if c.SampleRate < SampleRateMin || c.SampleRate > SampleRateMax {
		return fmt.Errorf("rtl.Config: invalid sample rate: %d, must be between %d and %d Hz",
			c.SampleRate, SampleRateMin, SampleRateMax)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("rtl.Config: block size must be positive: %d", c.BlockSize)
	}
	if c.DeviceIndex < 0 {
		return fmt.Errorf("rtl.Config: device index must not be negative: %d", c.DeviceIndex)
	}
	if !c.Gain.Auto && (c.Gain.DB < 0 || c.Gain.DB > GainMax) {
		return fmt.Errorf("rtl.Config: gain must be between 0 and %.0f dB: %.1f given", GainMax, c.Gain.DB)
	}
	return nil
}

// BlockDuration returns the nominal time one block of samples spans.
func (c *Config) BlockDuration() time.Duration {
	return time.Duration(float64(c.BlockSize) / float64(c.SampleRate) * float64(time.Second))
}

// Args returns the command line arguments for `rtl_sdr`.
// See `man rtl_sdr` for more information.
func (c *Config) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	args := []string{
		"-f", strconv.FormatInt(c.Frequency, 10),
		"-s", strconv.Itoa(c.SampleRate),
		"-d", strconv.Itoa(c.DeviceIndex), // 0 is the default device index
	}

	if !c.Gain.Auto {
		args = append(args, "-g", strconv.FormatFloat(c.Gain.DB, 'f', 1, 64))
	}

	if c.PPMError != 0 {
		args = append(args, "-p", strconv.Itoa(c.PPMError))
	}

	if c.DirectSampling {
		args = append(args, "-D")
	}

	if c.BiasTee {
		args = append(args, "-T")
	}

	args = append(args, "-") // Always dump to stdout

	return args, nil
}

func (c *Config) String() string {
	args, err := c.Args()
	if err != nil {
		return fmt.Sprintf("rtl.Config: failed to build args: %s", err)
	}
	return fmt.Sprintf("%s %s", Runtime, strings.Join(args, " "))
}
