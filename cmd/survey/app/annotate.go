package app

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

const (
	dpi            = 96.0
	fontSize       = 11.0
	tickMarkLength = 5
	powerLabels    = 5
)

// Annotator draws the time scale, power scale and info bar onto a rendered
// survey using a TTF font supplied at runtime.
type Annotator struct {
	context  *freetype.Context
	fontFace font.Face
}

func NewAnnotator(fontPath string) (*Annotator, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("reading font: %w", err)
	}

	parsedFont, err := freetype.ParseFont(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(fontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &Annotator{
		context: ctx,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    fontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *Annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *Annotator) Annotate(img *image.RGBA, data *SurveyData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawTimeScale(img, data); err != nil {
		return fmt.Errorf("drawing time scale: %w", err)
	}
	if err := a.drawPowerScale(img, data); err != nil {
		return fmt.Errorf("drawing power scale: %w", err)
	}
	if err := a.drawInfoBar(img, data); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}

	return nil
}

func (a *Annotator) drawTimeScale(img *image.RGBA, data *SurveyData) error {
	width := len(data.Columns)
	duration := data.End.Sub(data.Start)
	timeStep := niceTimeStep(duration)

	plotBottom := topBorder + ribbonHeight + plotHeight
	metrics := a.fontFace.Metrics()
	textY := plotBottom + tickMarkLength + metrics.Ascent.Round() + 2

	for t := time.Duration(0); t <= duration; t += timeStep {
		x := leftBorder + int(float64(width)*(t.Seconds()/duration.Seconds()))

		for y := plotBottom; y < plotBottom+tickMarkLength; y++ {
			img.Set(x, y, color.Black)
		}

		label := data.Start.Add(t).Format("15:04:05")
		labelWidth := font.MeasureString(a.fontFace, label)
		if _, err := a.context.DrawString(label, freetype.Pt(x-labelWidth.Round()/2, textY)); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *Annotator) drawPowerScale(img *image.RGBA, data *SurveyData) error {
	plotTop := topBorder + ribbonHeight
	span := data.Bounds.Max - data.Bounds.Min

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	for i := 0; i < powerLabels; i++ {
		frac := float64(i) / float64(powerLabels-1)
		power := data.Bounds.Min + frac*span
		y := plotTop + plotHeight - int(frac*float64(plotHeight))

		for x := leftBorder - tickMarkLength; x < leftBorder; x++ {
			img.Set(x, y, color.Black)
		}

		label := fmt.Sprintf("%.1f", power)
		textY := y + fontHeight/2 - metrics.Descent.Round()
		if _, err := a.context.DrawString(label, freetype.Pt(10, textY)); err != nil {
			return fmt.Errorf("drawing power label: %w", err)
		}
	}
	return nil
}

func (a *Annotator) drawInfoBar(img *image.RGBA, data *SurveyData) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Session: %s (%s)", data.Session.ID, data.Session.DeviceType))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Start: %s", data.Start.Format(time.DateTime)))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Duration: %s", data.End.Sub(data.Start).Round(time.Second)))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Detections: %s", humanize.Comma(int64(len(data.Detections)))))

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := img.Bounds().Max.Y - (bottomBorder-fontHeight)/4 - metrics.Descent.Round()

	if _, err := a.context.DrawString(sb.String(), freetype.Pt(leftBorder, textY)); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

// niceTimeStep picks a label interval that yields roughly 8 time labels.
func niceTimeStep(duration time.Duration) time.Duration {
	roughStep := duration / 8

	niceIntervals := []time.Duration{
		time.Second,
		5 * time.Second,
		15 * time.Second,
		30 * time.Second,
		time.Minute,
		5 * time.Minute,
		15 * time.Minute,
		30 * time.Minute,
		time.Hour,
	}

	for _, interval := range niceIntervals {
		if roughStep <= interval {
			return interval
		}
	}

	return 6 * time.Hour
}
