package recorder

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/facetrack/internal/media"
)

// Composite renders the current frame of a stream: its first video track
// with every other video track painted over it. The caller closes the result.
func Composite(stream *media.Stream) (*gocv.Mat, error) {
	return compositeFrame(stream.VideoTracks())
}

// compositeFrame reads every track and paints the non-black pixels of each
// additional track over the first one. The caller closes the result.
func compositeFrame(tracks []media.Track) (*gocv.Mat, error) {
	if len(tracks) == 0 {
		return nil, ErrNoVideoTrack
	}

	base, err := tracks[0].ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read base track: %w", err)
	}
	if base == nil || base.Empty() {
		if base != nil {
			base.Close()
		}
		return nil, fmt.Errorf("read base track: empty frame")
	}

	for _, t := range tracks[1:] {
		layer, err := t.ReadFrame()
		if err != nil || layer == nil {
			continue
		}
		paintOver(base, layer)
		layer.Close()
	}

	return base, nil
}

// paintOver copies the non-black pixels of layer onto dst, resizing the
// layer to dst's dimensions first.
func paintOver(dst *gocv.Mat, layer *gocv.Mat) {
	if layer.Empty() {
		return
	}

	src := *layer
	if layer.Cols() != dst.Cols() || layer.Rows() != dst.Rows() {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(*layer, &resized, image.Pt(dst.Cols(), dst.Rows()), 0, 0, gocv.InterpolationLinear)
		src = resized
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if src.Channels() == 1 {
		src.CopyTo(&gray)
	} else {
		gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	}

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(gray, &mask, 0, 255, gocv.ThresholdBinary)

	src.CopyToWithMask(dst, mask)
}
