// Package plot draws triode plate characteristics.
package plot

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/edp1096/tube-spice/pkg/analysis"
	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const (
	DefaultWidth  = 16 * vg.Centimeter
	DefaultHeight = 12 * vg.Centimeter
)

// PlateCurves plots Ip in mA against Vpk, one line per grid voltage.
func PlateCurves(curves []analysis.Curve, title string) (*gplot.Plot, error) {
	if len(curves) == 0 {
		return nil, errors.New("no curves to plot")
	}

	p := gplot.New()
	p.Title.Text = title
	p.X.Label.Text = "Vpk (V)"
	p.Y.Label.Text = "Ip (mA)"
	p.Y.Min = 0
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = true

	for i, c := range curves {
		if len(c.Vpk) != len(c.Ip) {
			return nil, fmt.Errorf("curve Vgk=%g: %d voltages, %d currents", c.Vgk, len(c.Vpk), len(c.Ip))
		}
		pts := make(plotter.XYs, len(c.Vpk))
		for j := range pts {
			pts[j].X = c.Vpk[j]
			pts[j].Y = c.Ip[j] * 1e3
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("curve Vgk=%g: %w", c.Vgk, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("Vgk=%gV", c.Vgk), line)
	}
	return p, nil
}

// Write renders the plot in format ("png", "svg", "pdf", ...).
func Write(w io.Writer, curves []analysis.Curve, title, format string) error {
	p, err := PlateCurves(curves, title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(DefaultWidth, DefaultHeight, format)
	if err != nil {
		return fmt.Errorf("plot format %q: %w", format, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("writing plot: %w", err)
	}
	return nil
}

// Save writes the plot to path, picking the format from its extension.
func Save(path string, curves []analysis.Curve, title string) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		return fmt.Errorf("plot %s: missing file extension", path)
	}
	p, err := PlateCurves(curves, title)
	if err != nil {
		return err
	}
	return p.Save(DefaultWidth, DefaultHeight, path)
}
