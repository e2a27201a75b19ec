package model

import "path/filepath"

// Default file names under the model directory.
const (
	FaceCascadeFile = "haarcascade_frontalface_default.xml"
	EyeCascadeFile  = "haarcascade_eye.xml"
	LandmarkScript  = "face_landmark_service.py"
)

// Locations lists the model assets a detector may load.
type Locations struct {
	Dir            string
	FaceCascade    string
	EyeCascade     string
	LandmarkScript string
}

// LocationsIn resolves the default asset layout under dir.
func LocationsIn(dir string) Locations {
	return Locations{
		Dir:            dir,
		FaceCascade:    filepath.Join(dir, FaceCascadeFile),
		EyeCascade:     filepath.Join(dir, EyeCascadeFile),
		LandmarkScript: filepath.Join(dir, LandmarkScript),
	}
}
