package report

import (
	"fmt"
	"os"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/core/entity"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/johnfercher/maroto/v2/pkg/repository"
	"go.uber.org/zap"

	"schoolhub/internal/metrics"
)

const (
	gridSize   = 18
	fontFamily = "schoolhub"
)

var (
	headerFill = &props.Color{Red: 10, Green: 186, Blue: 181}
	stripeFill = &props.Color{Red: 245, Green: 245, Blue: 245}
	white      = &props.Color{Red: 255, Green: 255, Blue: 255}
	grey       = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// Options configures the renderer.
type Options struct {
	// FontPath is a TTF with Arabic coverage. Required for Arabic output.
	FontPath string
	// BoldFontPath defaults to FontPath.
	BoldFontPath string
	Log          *zap.Logger
}

// Renderer produces PDFs through one layout path for both directions.
type Renderer struct {
	opts Options
	log  *zap.Logger
	now  func() time.Time
}

func NewRenderer(opts Options) *Renderer {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{opts: opts, log: log, now: time.Now}
}

// Render lays out doc and returns the PDF with its filename.
func (r *Renderer) Render(doc Document) (Output, error) {
	start := time.Now()
	lang := doc.Lang()
	dir := lang.Direction()
	kind := string(doc.Kind())

	out, err := r.render(doc, dir)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		r.log.Error("render report", zap.String("kind", kind), zap.String("direction", string(dir)), zap.Error(err))
	}
	metrics.ReportsRendered.WithLabelValues(kind, string(dir), outcome).Inc()
	metrics.ReportDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	return out, err
}

func (r *Renderer) render(doc Document, dir Direction) (Output, error) {
	generated := doc.Generated()
	if generated.IsZero() {
		generated = r.now()
	}
	ls := labelsFor(doc.Lang())
	p := doc.layout(ls)

	cfg, err := r.config(dir, p.footer(ls, dir))
	if err != nil {
		return Output{}, err
	}
	m := maroto.New(cfg)
	w := writer{m: m, dir: dir}

	w.title(p.title)
	for _, s := range p.info {
		w.infoLine(s)
	}
	w.infoLine(ls.generatedOn + ": " + generated.Format("02/01/2006 15:04"))
	if len(p.summary) > 0 {
		m.AddRow(4)
		w.heading(ls.summary)
		for _, s := range p.summary {
			w.summaryLine(s)
		}
	}
	m.AddRow(4)
	w.table(p.columns, p.rows)

	pdf, err := m.Generate()
	if err != nil {
		return Output{}, fmt.Errorf("generate pdf: %w", err)
	}
	return Output{Filename: Filename(doc.Kind(), generated), Bytes: pdf.GetBytes()}, nil
}

// config builds the page setup. A configured font is used in both directions
// so Arabic names in English reports still have glyphs.
func (r *Renderer) config(dir Direction, footer string) (*entity.Config, error) {
	place := props.LeftBottom
	if dir == RTL {
		place = props.RightBottom
	}
	b := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithOrientation(orientation.Vertical).
		WithLeftMargin(10).
		WithTopMargin(15).
		WithRightMargin(10).
		WithBottomMargin(12).
		WithMaxGridSize(gridSize).
		WithPageNumber(props.PageNumber{Pattern: footer, Place: place, Size: 7, Color: grey})

	fonts, err := r.fonts()
	if err != nil {
		if dir == RTL {
			return nil, err
		}
		r.log.Warn("falling back to built-in font", zap.Error(err))
	}
	if fonts != nil {
		b = b.WithCustomFonts(fonts).WithDefaultFont(&props.Font{Family: fontFamily, Size: 8})
	}
	return b.Build(), nil
}

func (r *Renderer) fonts() ([]*entity.CustomFont, error) {
	regular := r.opts.FontPath
	if regular == "" {
		return nil, fmt.Errorf("%w: no font configured", ErrFontUnavailable)
	}
	bold := r.opts.BoldFontPath
	if bold == "" {
		bold = regular
	}
	for _, p := range []string{regular, bold} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFontUnavailable, err)
		}
	}
	fonts, err := repository.New().
		AddUTF8Font(fontFamily, fontstyle.Normal, regular).
		AddUTF8Font(fontFamily, fontstyle.Bold, bold).
		Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFontUnavailable, err)
	}
	return fonts, nil
}

// writer emits rows in the document's direction.
type writer struct {
	m   core.Maroto
	dir Direction
}

func (w writer) text(s string) string { return Shape(s, w.dir) }

func (w writer) start() align.Type {
	if w.dir == RTL {
		return align.Right
	}
	return align.Left
}

func (w writer) title(s string) {
	w.m.AddRow(12, text.NewCol(gridSize, w.text(s), props.Text{
		Top:   2,
		Size:  16,
		Style: fontstyle.Bold,
		Align: align.Center,
	}))
}

func (w writer) heading(s string) {
	w.m.AddRow(7, text.NewCol(gridSize, w.text(s), props.Text{
		Size:  11,
		Style: fontstyle.Bold,
		Align: w.start(),
	}))
}

func (w writer) infoLine(s string) {
	w.m.AddRow(5, text.NewCol(gridSize, w.text(s), props.Text{
		Size:  9,
		Color: grey,
		Align: w.start(),
	}))
}

func (w writer) summaryLine(s string) {
	w.m.AddRow(5, text.NewCol(gridSize, w.text(s), props.Text{
		Size:  9,
		Align: w.start(),
	}))
}

// table draws the header and striped body. Right-to-left output mirrors the
// column order.
func (w writer) table(columns []column, rows [][]string) {
	order := make([]int, len(columns))
	for i := range order {
		order[i] = i
		if w.dir == RTL {
			order[i] = len(columns) - 1 - i
		}
	}

	header := make([]core.Col, 0, len(columns))
	for _, i := range order {
		header = append(header, text.NewCol(columns[i].width, w.text(columns[i].label), props.Text{
			Top:   2,
			Left:  1,
			Right: 1,
			Size:  7,
			Style: fontstyle.Bold,
			Color: white,
			Align: w.start(),
		}))
	}
	w.m.AddRow(8, header...).WithStyle(&props.Cell{BackgroundColor: headerFill})

	for n, cells := range rows {
		cols := make([]core.Col, 0, len(columns))
		for _, i := range order {
			v := ""
			if i < len(cells) {
				v = cells[i]
			}
			cols = append(cols, text.NewCol(columns[i].width, w.text(v), props.Text{
				Top:   1.5,
				Left:  1,
				Right: 1,
				Size:  7,
				Align: w.start(),
			}))
		}
		row := w.m.AddRow(7, cols...)
		if n%2 == 1 {
			row.WithStyle(&props.Cell{BackgroundColor: stripeFill})
		}
	}
	w.m.AddRow(2, line.NewCol(gridSize, props.Line{Color: headerFill, Thickness: 0.3}))
}
