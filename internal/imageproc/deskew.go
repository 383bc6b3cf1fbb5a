package imageproc

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

const (
	skewRange     = 15.0 // degrees searched in both directions
	skewStep      = 0.5
	skewSampleMax = 600 // longest side used for detection
	darkThreshold = 128
)

// DetectSkew estimates how far the text lines of img are tilted, in degrees counter-clockwise
// correction: rotating img by the returned angle (see Render) straightens the lines.
// It uses a projection profile over dark pixels and picks the angle with the sharpest rows.
func DetectSkew(img image.Image) float64 {
	if img == nil {
		return 0
	}

	sample := imaging.Grayscale(imaging.Fit(img, skewSampleMax, skewSampleMax, imaging.Box))
	b := sample.Bounds()

	var xs, ys []float64
	for y := 0; y < b.Dy(); y++ {
		row := sample.Pix[y*sample.Stride : y*sample.Stride+b.Dx()*4]
		for x := 0; x < b.Dx(); x++ {
			if row[x*4] < darkThreshold {
				xs = append(xs, float64(x))
				ys = append(ys, float64(y))
			}
		}
	}
	if len(xs) == 0 {
		return 0
	}

	diag := math.Hypot(float64(b.Dx()), float64(b.Dy()))
	buckets := make([]float64, int(2*diag)+2)

	best, bestScore := 0.0, -1.0
	for angle := -skewRange; angle <= skewRange+1e-9; angle += skewStep {
		sin, cos := math.Sincos(angle * math.Pi / 180)
		clear(buckets)
		for i := range xs {
			r := ys[i]*cos - xs[i]*sin + diag
			buckets[int(r)]++
		}

		score := 0.0
		for _, n := range buckets {
			score += n * n
		}
		// prefer the smaller correction on ties
		if score > bestScore || (score == bestScore && math.Abs(angle) < math.Abs(best)) {
			best, bestScore = angle, score
		}
	}
	return best
}
