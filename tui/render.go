package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wricardo/mcp-training/merge2048/game/board"
)

const (
	// A cell is cellW columns by cellH lines, gap included.
	cellW = 7
	cellH = 2

	canvasW = board.Size*cellW - 1
	canvasH = board.Size*cellH - 1
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	scoreStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	boardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("166")).
			Padding(0, 1)

	wonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226"))

	overStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("203"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// tileColors indexes background colors by log2(value).
var tileColors = []string{"", "230", "223", "215", "209", "203", "196", "228", "227", "226", "220", "214"}

func tileStyle(value int, accent bool) lipgloss.Style {
	i := 0
	for v := value; v > 1; v >>= 1 {
		i++
	}
	bg := "57"
	if i < len(tileColors) {
		bg = tileColors[i]
	}
	fg := "236"
	if value > 4 {
		fg = "231"
	}
	s := lipgloss.NewStyle().
		Background(lipgloss.Color(bg)).
		Foreground(lipgloss.Color(fg)).
		Bold(true)
	if accent {
		s = s.Underline(true)
	}
	return s
}

// sprite is a tile drawn at a fractional cell position.
type sprite struct {
	row, col float64
	value    int
	accent   bool
}

func cellSprite(c board.Cell, value int, accent bool) sprite {
	return sprite{row: float64(c.Row), col: float64(c.Col), value: value, accent: accent}
}

// lerp places a sprite fraction p of the way from one cell to another.
func lerp(from, to board.Cell, p float64, value int) sprite {
	return sprite{
		row:   float64(from.Row) + float64(to.Row-from.Row)*p,
		col:   float64(from.Col) + float64(to.Col-from.Col)*p,
		value: value,
	}
}

type glyph struct {
	r rune
	// -1 gap, 0 empty slot, otherwise the tile value drawn here.
	value  int
	accent bool
}

func label(value int) string {
	text := fmt.Sprint(value)
	w := cellW - 1
	if len(text) >= w {
		return text[:w]
	}
	left := (w - len(text)) / 2
	return strings.Repeat(" ", left) + text + strings.Repeat(" ", w-len(text)-left)
}

// drawBoard renders sprites over the empty grid. Later sprites win where
// they overlap.
func drawBoard(sprites []sprite) string {
	canvas := make([][]glyph, canvasH)
	for y := range canvas {
		canvas[y] = make([]glyph, canvasW)
		for x := range canvas[y] {
			canvas[y][x] = glyph{r: ' ', value: -1}
		}
	}

	for r := 0; r < board.Size; r++ {
		for c := 0; c < board.Size; c++ {
			y, x := r*cellH, c*cellW
			for i := 0; i < cellW-1; i++ {
				canvas[y][x+i] = glyph{r: ' ', value: 0}
			}
			canvas[y][x+(cellW-1)/2] = glyph{r: '·', value: 0}
		}
	}

	for _, s := range sprites {
		y := int(math.Round(s.row * cellH))
		x := int(math.Round(s.col * cellW))
		if y < 0 || y >= canvasH {
			continue
		}
		for i, ch := range label(s.value) {
			if x+i < 0 || x+i >= canvasW {
				continue
			}
			canvas[y][x+i] = glyph{r: ch, value: s.value, accent: s.accent}
		}
	}

	lines := make([]string, canvasH)
	for y, row := range canvas {
		var line strings.Builder
		start := 0
		for x := 1; x <= len(row); x++ {
			if x < len(row) && row[x].value == row[start].value && row[x].accent == row[start].accent {
				continue
			}
			line.WriteString(paint(row[start:x]))
			start = x
		}
		lines[y] = line.String()
	}
	return strings.Join(lines, "\n")
}

func paint(run []glyph) string {
	var text strings.Builder
	for _, g := range run {
		text.WriteRune(g.r)
	}
	switch v := run[0].value; {
	case v < 0:
		return text.String()
	case v == 0:
		return emptyStyle.Render(text.String())
	default:
		return tileStyle(v, run[0].accent).Render(text.String())
	}
}
