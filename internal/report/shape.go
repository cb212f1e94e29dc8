package report

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/bidi"
)

// The PDF engine draws glyphs left to right exactly as given, one code point
// per glyph. Shape turns logical-order text into that form: Arabic letters
// become their contextual presentation forms and right-to-left runs are
// reordered for display.

type forms struct {
	isolated, final, initial, medial rune
}

// Presentation forms B, indexed by base letter. Letters without initial and
// medial forms only join to the preceding letter.
var arabicForms = map[rune]forms{
	0x0621: {0xFE80, 0, 0, 0},
	0x0622: {0xFE81, 0xFE82, 0, 0},
	0x0623: {0xFE83, 0xFE84, 0, 0},
	0x0624: {0xFE85, 0xFE86, 0, 0},
	0x0625: {0xFE87, 0xFE88, 0, 0},
	0x0626: {0xFE89, 0xFE8A, 0xFE8B, 0xFE8C},
	0x0627: {0xFE8D, 0xFE8E, 0, 0},
	0x0628: {0xFE8F, 0xFE90, 0xFE91, 0xFE92},
	0x0629: {0xFE93, 0xFE94, 0, 0},
	0x062A: {0xFE95, 0xFE96, 0xFE97, 0xFE98},
	0x062B: {0xFE99, 0xFE9A, 0xFE9B, 0xFE9C},
	0x062C: {0xFE9D, 0xFE9E, 0xFE9F, 0xFEA0},
	0x062D: {0xFEA1, 0xFEA2, 0xFEA3, 0xFEA4},
	0x062E: {0xFEA5, 0xFEA6, 0xFEA7, 0xFEA8},
	0x062F: {0xFEA9, 0xFEAA, 0, 0},
	0x0630: {0xFEAB, 0xFEAC, 0, 0},
	0x0631: {0xFEAD, 0xFEAE, 0, 0},
	0x0632: {0xFEAF, 0xFEB0, 0, 0},
	0x0633: {0xFEB1, 0xFEB2, 0xFEB3, 0xFEB4},
	0x0634: {0xFEB5, 0xFEB6, 0xFEB7, 0xFEB8},
	0x0635: {0xFEB9, 0xFEBA, 0xFEBB, 0xFEBC},
	0x0636: {0xFEBD, 0xFEBE, 0xFEBF, 0xFEC0},
	0x0637: {0xFEC1, 0xFEC2, 0xFEC3, 0xFEC4},
	0x0638: {0xFEC5, 0xFEC6, 0xFEC7, 0xFEC8},
	0x0639: {0xFEC9, 0xFECA, 0xFECB, 0xFECC},
	0x063A: {0xFECD, 0xFECE, 0xFECF, 0xFED0},
	0x0640: {0x0640, 0x0640, 0x0640, 0x0640},
	0x0641: {0xFED1, 0xFED2, 0xFED3, 0xFED4},
	0x0642: {0xFED5, 0xFED6, 0xFED7, 0xFED8},
	0x0643: {0xFED9, 0xFEDA, 0xFEDB, 0xFEDC},
	0x0644: {0xFEDD, 0xFEDE, 0xFEDF, 0xFEE0},
	0x0645: {0xFEE1, 0xFEE2, 0xFEE3, 0xFEE4},
	0x0646: {0xFEE5, 0xFEE6, 0xFEE7, 0xFEE8},
	0x0647: {0xFEE9, 0xFEEA, 0xFEEB, 0xFEEC},
	0x0648: {0xFEED, 0xFEEE, 0, 0},
	0x0649: {0xFEEF, 0xFEF0, 0, 0},
	0x064A: {0xFEF1, 0xFEF2, 0xFEF3, 0xFEF4},
}

// lam followed by an alef variant is drawn as one ligature.
var lamAlef = map[rune]forms{
	0x0622: {isolated: 0xFEF5, final: 0xFEF6},
	0x0623: {isolated: 0xFEF7, final: 0xFEF8},
	0x0625: {isolated: 0xFEF9, final: 0xFEFA},
	0x0627: {isolated: 0xFEFB, final: 0xFEFC},
}

const lam = 0x0644

func classOf(r rune) bidi.Class {
	p, _ := bidi.LookupRune(r)
	return p.Class()
}

// transparent marks (harakat) do not break joining.
func transparent(r rune) bool { return classOf(r) == bidi.NSM }

func neighbour(rs []rune, i, step int) (rune, bool) {
	for j := i + step; j >= 0 && j < len(rs); j += step {
		if !transparent(rs[j]) {
			return rs[j], true
		}
	}
	return 0, false
}

func neighbourIndex(rs []rune, i int) int {
	for j := i + 1; j < len(rs); j++ {
		if !transparent(rs[j]) {
			return j
		}
	}
	return -1
}

// joinsForward reports whether r connects to the letter after it.
func joinsForward(r rune) bool {
	f, ok := arabicForms[r]
	return ok && f.initial != 0
}

// joinsBackward reports whether r connects to the letter before it.
func joinsBackward(r rune) bool {
	f, ok := arabicForms[r]
	return ok && f.final != 0
}

// shapeArabic replaces Arabic letters with their contextual forms. Input and
// output are in logical order.
func shapeArabic(rs []rune) []rune {
	out := make([]rune, 0, len(rs))
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		f, ok := arabicForms[r]
		if !ok {
			out = append(out, r)
			continue
		}
		prev, hasPrev := neighbour(rs, i, -1)
		joinPrev := hasPrev && joinsForward(prev) && f.final != 0

		if r == lam {
			if j := neighbourIndex(rs, i); j >= 0 {
				if lig, ok := lamAlef[rs[j]]; ok {
					if joinPrev {
						out = append(out, lig.final)
					} else {
						out = append(out, lig.isolated)
					}
					out = append(out, rs[i+1:j]...)
					i = j
					continue
				}
			}
		}

		next, hasNext := neighbour(rs, i, 1)
		joinNext := hasNext && f.initial != 0 && joinsBackward(next)

		switch {
		case joinPrev && joinNext:
			out = append(out, f.medial)
		case joinPrev:
			out = append(out, f.final)
		case joinNext:
			out = append(out, f.initial)
		default:
			out = append(out, f.isolated)
		}
	}
	return out
}

// lrm pins the paragraph of a left-to-right document to that direction even
// when its first strong character is Arabic.
const lrm = "\u200e"

type segment struct {
	text  string
	level int
}

// visualOrder returns s in display order with the paragraph direction taken
// from the document. Levels are resolved by x/text; runs at level 1 are
// reversed and every group of runs above the paragraph level is drawn in
// reverse order.
func visualOrder(s string, base Direction) string {
	var opts []bidi.Option
	if base == RTL {
		opts = append(opts, bidi.DefaultDirection(bidi.RightToLeft))
	} else {
		s = lrm + s
	}
	var p bidi.Paragraph
	if _, err := p.SetString(s, opts...); err != nil {
		return strings.ReplaceAll(s, lrm, "")
	}
	o, err := p.Order()
	if err != nil {
		return strings.ReplaceAll(s, lrm, "")
	}

	segs := make([]segment, 0, o.NumRuns())
	for i := 0; i < o.NumRuns(); i++ {
		run := o.Run(i)
		text := run.String()
		switch {
		case run.Direction() == bidi.RightToLeft:
			segs = append(segs, segment{text, 1})
		case base == RTL:
			segs = append(segs, segment{text, 2})
		default:
			// In a left-to-right paragraph only numbers that follow
			// Arabic sit at level 2; the rest of the run is level 0.
			n := 0
			if i > 0 {
				n = numberPrefix(text)
			}
			if n > 0 {
				segs = append(segs, segment{text[:n], 2})
			}
			if n < len(text) {
				segs = append(segs, segment{text[n:], 0})
			}
		}
	}

	var b strings.Builder
	for i := 0; i < len(segs); {
		if segs[i].level == 0 {
			b.WriteString(segs[i].text)
			i++
			continue
		}
		j := i
		for j < len(segs) && segs[j].level > 0 {
			j++
		}
		for k := j - 1; k >= i; k-- {
			if segs[k].level == 1 {
				b.WriteString(bidi.ReverseString(segs[k].text))
			} else {
				b.WriteString(segs[k].text)
			}
		}
		i = j
	}
	return strings.ReplaceAll(b.String(), lrm, "")
}

// numberPrefix returns the byte length of the number at the start of s,
// separators and trailing terminators included.
func numberPrefix(s string) int {
	end := 0
	for i, r := range s {
		switch classOf(r) {
		case bidi.EN, bidi.AN:
			end = i + utf8.RuneLen(r)
		case bidi.ET:
			if end > 0 && end == i {
				end = i + utf8.RuneLen(r)
			}
		case bidi.ES, bidi.CS, bidi.NSM:
		default:
			return end
		}
	}
	return end
}

// Shape prepares s for drawing: Arabic shaping first, then visual reordering.
// Text without right-to-left characters comes back unchanged.
func Shape(s string, base Direction) string {
	rs := []rune(s)
	rtl := false
	for _, r := range rs {
		if c := classOf(r); c == bidi.R || c == bidi.AL {
			rtl = true
			break
		}
	}
	if !rtl {
		return s
	}
	return visualOrder(string(shapeArabic(rs)), base)
}
