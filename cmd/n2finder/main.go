// n2finder estimates the nonlinear refractive index, saturation intensity
// and absorption coefficient of a medium from measured field files using a
// pretrained network.
//
// Usage:
//
//	n2finder -input field.npy -weights-dir ./weights -resolution 256 \
//	    -n2 10 -isat 10 -alpha 10 -power 0.50 \
//	    -min-n2 -1e-9 -max-isat 1e6 -max-alpha 100 [-plot out.png]
//
// Multiple -input flags run batch mode and report the mean and standard
// deviation of the estimates.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/field"
	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/inference"
	"github.com/Quantum-Optics-LKB/nlse-parameter-nn/model"
)

// multiFlag collects repeated -input flags.
type multiFlag []string

func (m *multiFlag) String() string { return fmt.Sprint(*m) }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

// weightsLoader is implemented by variants whose weights live on disk.
type weightsLoader interface {
	Load() error
}

func main() {
	var inputs multiFlag
	flag.Var(&inputs, "input", "measured field .npy file (repeat for batch mode)")
	variant := flag.String("variant", "mlp", "network variant name")
	weightsDir := flag.String("weights-dir", ".", "directory holding the trained weights")
	resolution := flag.Int("resolution", 256, "network training resolution")
	countN2 := flag.Int("n2", 10, "number of n2 levels in the training grid")
	countIsat := flag.Int("isat", 10, "number of isat levels in the training grid")
	countAlpha := flag.Int("alpha", 10, "number of alpha levels in the training grid")
	power := flag.Float64("power", 0.5, "pump power of the training grid (W)")
	minN2 := flag.Float64("min-n2", -1e-9, "training grid minimum n2 (m^2/W)")
	maxIsat := flag.Float64("max-isat", 1e6, "training grid maximum isat (W/m^2)")
	maxAlpha := flag.Float64("max-alpha", 100, "training grid maximum alpha (1/m)")
	plotPath := flag.String("plot", "", "write a density-channel heat map to this PNG")
	flag.Parse()

	if len(inputs) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := model.Config{
		Resolution: *resolution,
		InChannels: len(inference.InputChannels),
		CountN2:    *countN2,
		CountIsat:  *countIsat,
		CountAlpha: *countAlpha,
		Power:      *power,
		WeightsDir: *weightsDir,
	}
	predictor, err := model.New(*variant, cfg)
	if err != nil {
		log.Fatalf("build model: %v", err)
	}
	if loader, ok := predictor.(weightsLoader); ok {
		if err := loader.Load(); err != nil {
			log.Fatalf("load weights: %v", err)
		}
	}

	driver := &inference.Driver{
		Predictor:  predictor,
		Resolution: *resolution,
		Extrema: inference.Extrema{
			MinN2:    *minN2,
			MaxIsat:  *maxIsat,
			MaxAlpha: *maxAlpha,
		},
		Settings: inference.Settings{Power: *power},
	}
	if *plotPath != "" {
		driver.Compare = func(input *field.Tensor, _ inference.Result, _ inference.Settings) error {
			return writeHeatMap(*plotPath, input)
		}
	}

	n2s := make([]float64, 0, len(inputs))
	isats := make([]float64, 0, len(inputs))
	alphas := make([]float64, 0, len(inputs))
	for _, path := range inputs {
		fmt.Printf("-- %s\n", path)
		r, err := driver.EstimateFile(path)
		if err != nil {
			log.Fatalf("estimate %s: %v", path, err)
		}
		n2s = append(n2s, r.N2)
		isats = append(isats, r.Isat)
		alphas = append(alphas, r.Alpha)
	}

	if len(inputs) > 1 {
		fmt.Println("-- batch summary")
		report("n2", n2s)
		report("Isat", isats)
		report("alpha", alphas)
	}
}

func report(name string, values []float64) {
	mean, std := stat.MeanStdDev(values, nil)
	fmt.Printf("%s: mean = %g, std = %g (n = %d)\n", name, mean, std, len(values))
}

// densityGrid adapts the tensor's density channel to plotter.GridXYZ.
type densityGrid struct {
	t *field.Tensor
	c int
}

func (g densityGrid) Dims() (int, int)   { return g.t.W, g.t.H }
func (g densityGrid) X(c int) float64    { return float64(c) }
func (g densityGrid) Y(r int) float64    { return float64(r) }
func (g densityGrid) Z(c, r int) float64 { return float64(g.t.At(0, g.c, r, c)) }

func writeHeatMap(path string, input *field.Tensor) error {
	c, err := input.ChannelIndex(inference.ChannelDensity)
	if err != nil {
		return err
	}
	p := plot.New()
	p.Title.Text = "Experimental density"
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"
	hm := plotter.NewHeatMap(densityGrid{t: input, c: c}, palette.Heat(64, 1))
	p.Add(hm)
	return p.Save(6*vg.Inch, 6*vg.Inch, path)
}
