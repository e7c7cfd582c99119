package parser

import (
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF([]byte("%PDF-1.7\n...")))
	assert.True(t, IsPDF([]byte("\r\n%PDF-1.4")))
	assert.False(t, IsPDF([]byte("<html><body>Not found</body></html>")))
	assert.False(t, IsPDF(nil))
}

func TestPDFParser_ExtractText(t *testing.T) {
	p := NewPDFParser()

	t.Run("rejects non PDF content", func(t *testing.T) {
		_, err := p.ExtractText([]byte("<html>404</html>"))
		assert.ErrorIs(t, err, ErrNotPDF)
	})

	t.Run("reports broken PDF", func(t *testing.T) {
		_, err := p.ExtractText([]byte("%PDF-1.4\nthis is not a real document"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotPDF)
	})
}

func glyph(s string, x, y, w float64) pdf.Text {
	return pdf.Text{S: s, X: x, Y: y, W: w, FontSize: 10}
}

func TestPDFParser_JoinRow(t *testing.T) {
	p := NewPDFParser()

	t.Run("word and column gaps", func(t *testing.T) {
		row := []pdf.Text{
			glyph("40.00", 70, 700, 25),
			glyph("Paco", 0, 700, 20),
			glyph("Market", 22, 700, 30),
		}
		assert.Equal(t, "Paco Market  40.00", p.joinRow(row))
	})

	t.Run("adjacent glyphs are concatenated", func(t *testing.T) {
		row := []pdf.Text{glyph("4", 0, 700, 5), glyph("0", 5, 700, 5), glyph(".", 10, 700, 2)}
		assert.Equal(t, "40.", p.joinRow(row))
	})

	t.Run("missing width is estimated", func(t *testing.T) {
		row := []pdf.Text{glyph("ab", 0, 700, 0), glyph("cd", 10, 700, 0)}
		assert.Equal(t, "abcd", p.joinRow(row))
	})
}

func TestPDFParser_GroupRows(t *testing.T) {
	p := NewPDFParser()
	rows := p.groupRows([]pdf.Text{
		glyph("below", 0, 680, 20),
		glyph("top", 0, 700, 15),
		glyph(" ", 15, 700, 3),
		glyph("same", 30, 700.5, 20),
	})

	require.Len(t, rows, 2)
	assert.Equal(t, "top  same", p.joinRow(rows[0]))
	assert.Equal(t, "below", p.joinRow(rows[1]))
}
