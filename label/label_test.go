package label

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/callebjorkell/card-monitor/nfc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(nfc.UID{0x04, 0x1A, 0x2B, 0x3C, 0x4D, 0x5E, 0x6F}, "Front door", &buf))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, Width, img.Bounds().Dx())
	assert.Equal(t, Height, img.Bounds().Dy())
}

func TestRenderWithoutUID(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Render(nil, "nothing", &buf))
	assert.Zero(t, buf.Len())
}

func TestRenderSheet(t *testing.T) {
	cards := []nfc.Card{
		{UID: "04-1A-2B-3C", Label: "Front door"},
		{UID: "AA-BB-CC-DD", Label: "Garage"},
		{UID: "01-02-03-04"},
		{UID: "DE-AD-BE-EF", Label: "Office"},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderSheet(cards, &buf))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, a4Width, img.Bounds().Dx())
	assert.Equal(t, a4Height, img.Bounds().Dy())
}

func TestRenderSheetTooManyCards(t *testing.T) {
	cards := make([]nfc.Card, PerSheet+1)
	for i := range cards {
		cards[i] = nfc.Card{UID: "04-1A-2B-3C"}
	}

	var buf bytes.Buffer
	assert.Error(t, RenderSheet(cards, &buf))
	assert.Zero(t, buf.Len())
}

func TestRenderSheetInvalidUID(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, RenderSheet([]nfc.Card{{UID: "not a uid"}}, &buf))
}
