package detector

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/facetrack/internal/model"
)

// CascadeDetector implements Detector with OpenCV Haar cascades.
// Faces come from the frontal-face cascade; the centers of eyes found
// inside each face region are reported as landmarks.
type CascadeDetector struct {
	config  Config
	face    gocv.CascadeClassifier
	eyes    gocv.CascadeClassifier
	hasEyes bool
	loaded  bool
	mu      sync.Mutex
}

// NewCascadeDetector creates a detector. Load must be called before Detect.
func NewCascadeDetector(config Config) *CascadeDetector {
	return &CascadeDetector{config: config}
}

// Load reads the face cascade and, if present, the eye cascade.
func (d *CascadeDetector) Load(ctx context.Context, loc model.Locations) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loaded {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	if _, err := os.Stat(loc.FaceCascade); err != nil {
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	face := gocv.NewCascadeClassifier()
	if !face.Load(loc.FaceCascade) {
		face.Close()
		return fmt.Errorf("%w: cannot read cascade %s", ErrModelLoad, loc.FaceCascade)
	}
	d.face = face

	// The eye cascade is optional; without it faces carry no landmarks.
	if loc.EyeCascade != "" {
		if _, err := os.Stat(loc.EyeCascade); err == nil {
			eyes := gocv.NewCascadeClassifier()
			if eyes.Load(loc.EyeCascade) {
				d.eyes = eyes
				d.hasEyes = true
			} else {
				eyes.Close()
			}
		}
	}

	d.loaded = true
	return nil
}

// Detect finds faces in the frame.
func (d *CascadeDetector) Detect(ctx context.Context, frame *gocv.Mat) ([]Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		return nil, fmt.Errorf("%w: %w", ErrDetection, ErrNotLoaded)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("%w: empty frame", ErrDetection)
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}
	gocv.EqualizeHist(gray, &gray)

	minSize := image.Pt(d.config.MinFaceSize, d.config.MinFaceSize)
	rects := d.face.DetectMultiScaleWithParams(gray, d.config.ScaleFactor, d.config.MinNeighbors, 0, minSize, image.Pt(0, 0))

	faces := make([]Face, 0, len(rects))
	for _, r := range rects {
		if d.config.MaxFaces > 0 && len(faces) >= d.config.MaxFaces {
			break
		}

		face := Face{Box: rectFromImage(r), Score: 1}
		if d.hasEyes {
			face.Landmarks = d.eyeCenters(gray, r)
		}
		faces = append(faces, face)
	}

	return faces, nil
}

// eyeCenters searches the upper half of the face region for eyes.
func (d *CascadeDetector) eyeCenters(gray gocv.Mat, face image.Rectangle) []Point {
	upper := image.Rect(face.Min.X, face.Min.Y, face.Max.X, face.Min.Y+face.Dy()/2)
	roi := gray.Region(upper)
	defer roi.Close()

	eyes := d.eyes.DetectMultiScale(roi)
	points := make([]Point, 0, len(eyes))
	for _, e := range eyes {
		points = append(points, Point{
			X: float64(upper.Min.X) + float64(e.Min.X+e.Max.X)/2,
			Y: float64(upper.Min.Y) + float64(e.Min.Y+e.Max.Y)/2,
		})
	}
	return points
}

// Close releases the classifiers.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		return nil
	}

	d.face.Close()
	if d.hasEyes {
		d.eyes.Close()
		d.hasEyes = false
	}
	d.loaded = false
	return nil
}
