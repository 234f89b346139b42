package label

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"
	"sync"

	"github.com/callebjorkell/card-monitor/nfc"
	"github.com/fogleman/gg"
	"github.com/nfnt/resize"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/image/font/basicfont"
)

// image size of 50x81.6mm (85.60 mm × 53.98 with 2mm margin on each side) at 600 DPI
// = 1181 x 1928 pix
const (
	Width  = 1181
	Height = 1928

	a4Width          = 4962
	a4Height         = 7014
	horizontalLabels = 3
	verticalLabels   = 3
	PerSheet         = horizontalLabels * verticalLabels

	// the bitmap font is tiny, so the label is drawn at 1/scale and blown up afterwards
	scale      = 8
	lineHeight = 16
	cutMark    = 30
)

var ink = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xFF}

// Render writes a PNG label for the card with the given UID. text is optional and wrapped to the label width.
func Render(uid nfc.UID, text string, out io.Writer) error {
	img, err := render(uid, text)
	if err != nil {
		return err
	}
	log.Debugf("Rendering label for %v to a PNG", uid)
	if err := gg.NewContextForImage(img).EncodePNG(out); err != nil {
		return fmt.Errorf("could not render PNG: %v", err.Error())
	}
	return nil
}

// RenderSheet lays out up to PerSheet card labels on an A4 page at 600 DPI, with cut marks at the corners.
func RenderSheet(cards []nfc.Card, out io.Writer) error {
	if len(cards) > PerSheet {
		return fmt.Errorf("too many cards for a single sheet. Max: %v, got: %v", PerSheet, len(cards))
	}
	uids := make([]nfc.UID, len(cards))
	for i, c := range cards {
		uid, err := nfc.ParseUID(c.UID)
		if err != nil {
			return fmt.Errorf("card %d: %w", i, err)
		}
		uids[i] = uid
	}

	l := gg.NewContext(a4Width, a4Height)
	l.SetRGB(1, 1, 1)
	l.Clear()
	l.SetRGB(0, 0, 0)
	l.SetLineWidth(4)

	baseX := (a4Width - (horizontalLabels * Width)) / 2
	baseY := (a4Height - (verticalLabels * Height)) / 2

	wg := sync.WaitGroup{}
	drawing := &sync.Mutex{}
	errs := make([]error, len(cards))

	for index := range cards {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			img, err := render(uids[index], cards[index].Label)
			if err != nil {
				errs[index] = err
				return
			}
			log.Debugf("Rendering label for %v at index %v", uids[index], index)
			x := baseX + (index % horizontalLabels * Width)
			y := baseY + (index / horizontalLabels * Height)

			drawing.Lock()
			defer drawing.Unlock()
			l.DrawImage(img, x, y)
			drawCutMark(l, x, y)
			drawCutMark(l, x, y+Height)
			drawCutMark(l, x+Width, y)
			drawCutMark(l, x+Width, y+Height)
			l.Stroke()
		}(index)
	}
	wg.Wait()

	if err := multierr.Combine(errs...); err != nil {
		return err
	}

	log.Debugln("Rendering label sheet to a PNG")
	if err := l.EncodePNG(out); err != nil {
		return fmt.Errorf("could not render PNG: %v", err.Error())
	}
	return nil
}

func drawCutMark(l *gg.Context, x, y int) {
	fx := float64(x)
	fy := float64(y)
	l.DrawLine(fx-cutMark, fy, fx+cutMark, fy)
	l.DrawLine(fx, fy-cutMark, fx, fy+cutMark)
}

func render(uid nfc.UID, text string) (image.Image, error) {
	if len(uid) == 0 {
		return nil, errors.New("cannot render a label without a UID")
	}

	w, h := Width/scale, Height/scale
	l := gg.NewContext(w, h)
	l.SetRGB(1, 1, 1)
	l.Clear()
	l.SetFontFace(basicfont.Face7x13)

	l.SetColor(ink)
	l.SetLineWidth(1)
	l.DrawRectangle(2, 2, float64(w-4), float64(h-4))
	l.Stroke()

	l.SetRGB(0, 0, 0)
	l.DrawStringAnchored("CARD UID", float64(w)/2, float64(h)/4, 0.5, 0.5)
	l.DrawStringAnchored(uid.String(), float64(w)/2, float64(h)/4+lineHeight, 0.5, 0.5)

	l.SetColor(ink)
	lines := l.WordWrap(strings.ToUpper(strings.TrimSpace(text)), float64(w)-float64(w)/10)
	for i, line := range lines {
		l.DrawStringAnchored(line, float64(w)/2, float64(h)/2+float64(i*lineHeight), 0.5, 0.5)
	}

	return resize.Resize(Width, Height, l.Image(), resize.NearestNeighbor), nil
}
