package app

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"
	"time"

	"github.com/rf-lab/fobwatch/internal/storage"
)

const (
	plotHeight   = 240
	ribbonHeight = 14 // detection marker band above the plot

	// Border sizes in pixels
	topBorder    = 30
	leftBorder   = 80
	bottomBorder = 50
	rightBorder  = 30

	// Percentile used for the lower display bound. The absolute minimum of a
	// long trace is usually a single outlier sample and would crush the
	// dynamic range.
	minPowerPercentile = 0.05
)

var detectionColor = color.RGBA{R: 0xe5, G: 0x2b, B: 0x2b, A: 0xff}

// PowerBounds is the display range of the power axis.
type PowerBounds struct {
	Min float64
	Max float64
}

// Column is one rendered time slice: aggregated power plus whether an
// accepted detection overlaps the slice.
type Column struct {
	Mean float64
	Peak float64
	Hit  bool
}

// SurveyData is everything the renderer needs: one session's downsampled
// power trace with detections mapped onto the columns.
type SurveyData struct {
	Session    *storage.Session
	Detections []storage.Detection
	Columns    []Column
	Bounds     PowerBounds
	Start      time.Time
	End        time.Time
}

// BuildSurvey folds a session's power trace into at most maxWidth columns
// and marks the columns covered by detections. Explicit bounds override the
// percentile-derived display range.
func BuildSurvey(session *storage.Session, trace []storage.TracePoint,
	detections []storage.Detection, maxWidth int, minPower, maxPower *float64) (*SurveyData, error) {

	if len(trace) == 0 {
		return nil, errors.New("session has no power trace; enable powerTrace in the monitor storage settings")
	}

	start, end := trace[0].Timestamp, trace[len(trace)-1].Timestamp
	if !end.After(start) {
		end = start.Add(time.Second)
	}

	width := len(trace)
	if width > maxWidth {
		width = maxWidth
	}

	columns := make([]Column, width)
	counts := make([]int, width)
	for i, p := range trace {
		c := i * width / len(trace)
		if counts[c] == 0 {
			columns[c] = Column{Mean: p.Mean, Peak: p.Peak}
		} else {
			columns[c].Mean += p.Mean
			columns[c].Peak = math.Max(columns[c].Peak, p.Peak)
		}
		counts[c]++
	}
	for c := range columns {
		if counts[c] > 0 {
			columns[c].Mean /= float64(counts[c])
		}
	}

	columnDuration := end.Sub(start) / time.Duration(width)
	for _, d := range detections {
		markDetection(columns, start, columnDuration, d)
	}

	bounds := computeBounds(columns)
	if minPower != nil {
		bounds.Min = *minPower
	}
	if maxPower != nil {
		bounds.Max = *maxPower
	}
	if bounds.Max <= bounds.Min {
		bounds.Max = bounds.Min + 1
	}

	return &SurveyData{
		Session:    session,
		Detections: detections,
		Columns:    columns,
		Bounds:     bounds,
		Start:      start,
		End:        end,
	}, nil
}

func markDetection(columns []Column, start time.Time, columnDuration time.Duration, d storage.Detection) {
	if columnDuration <= 0 {
		return
	}

	first := int(d.Start.Sub(start) / columnDuration)
	last := int(d.End.Sub(start) / columnDuration)
	for c := first; c <= last; c++ {
		if c >= 0 && c < len(columns) {
			columns[c].Hit = true
		}
	}
}

// computeBounds derives the display range: a low percentile of the column
// means as the floor and the strongest peak as the ceiling.
func computeBounds(columns []Column) PowerBounds {
	means := make([]float64, len(columns))
	peak := math.Inf(-1)
	for i, c := range columns {
		means[i] = c.Mean
		peak = math.Max(peak, c.Peak)
	}
	sort.Float64s(means)

	idx := int(float64(len(means)) * minPowerPercentile)
	if idx >= len(means) {
		idx = len(means) - 1
	}

	return PowerBounds{Min: means[idx], Max: peak}
}

// Renderer draws a session survey: a color-mapped power strip over time with
// a detection ribbon above it.
type Renderer struct {
	theme func(float64) color.Color
}

func NewRenderer(theme Theme) *Renderer {
	return &Renderer{theme: colorTheme(theme)}
}

// Render produces the survey image. The plot area maps one column to one
// pixel of width; power is drawn both as bar height and color.
func (r *Renderer) Render(data *SurveyData) (*image.RGBA, error) {
	if len(data.Columns) == 0 {
		return nil, fmt.Errorf("no columns to render")
	}

	width := len(data.Columns)
	fullWidth := width + leftBorder + rightBorder
	fullHeight := ribbonHeight + plotHeight + topBorder + bottomBorder
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	plotArea := image.Rect(leftBorder, topBorder+ribbonHeight,
		leftBorder+width, topBorder+ribbonHeight+plotHeight)

	// Plot background is the zero-power color so the bars read against it.
	draw.Draw(img, plotArea, image.NewUniform(r.theme(0)), image.Point{}, draw.Src)

	span := data.Bounds.Max - data.Bounds.Min
	for x, c := range data.Columns {
		imgX := plotArea.Min.X + x

		mean := r.normalize(c.Mean, span, data.Bounds.Min)
		peak := r.normalize(c.Peak, span, data.Bounds.Min)

		// Bar up to the mean level, colored by intensity.
		barTop := plotArea.Max.Y - int(mean*float64(plotHeight))
		for y := barTop; y < plotArea.Max.Y; y++ {
			img.Set(imgX, y, r.theme(mean))
		}

		// Single marker at the peak level.
		peakY := plotArea.Max.Y - 1 - int(peak*float64(plotHeight-1))
		img.Set(imgX, peakY, r.theme(peak))

		if c.Hit {
			for y := topBorder; y < topBorder+ribbonHeight-2; y++ {
				img.Set(imgX, y, detectionColor)
			}
		}
	}

	return img, nil
}

func (r *Renderer) normalize(power, span, min float64) float64 {
	v := (power - min) / span
	return math.Max(0, math.Min(1, v))
}
