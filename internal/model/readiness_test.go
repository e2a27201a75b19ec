package model

import (
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestReadiness(t *testing.T) {
	r := NewReadiness()

	if r.Loaded() {
		t.Fatal("new latch should be Loading")
	}

	select {
	case <-r.Done():
		t.Fatal("Done should not be closed before MarkLoaded")
	default:
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.MarkLoaded()
		}()
	}
	wg.Wait()

	if !r.Loaded() {
		t.Error("latch should be Loaded after MarkLoaded")
	}

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Error("Done should be closed after MarkLoaded")
	}
}

func TestReadiness_Nil(t *testing.T) {
	var r *Readiness
	if r.Loaded() {
		t.Error("nil latch should report not loaded")
	}
}

func TestLocationsIn(t *testing.T) {
	loc := LocationsIn("/opt/models")

	if loc.FaceCascade != filepath.Join("/opt/models", FaceCascadeFile) {
		t.Errorf("unexpected face cascade path %s", loc.FaceCascade)
	}
	if loc.EyeCascade != filepath.Join("/opt/models", EyeCascadeFile) {
		t.Errorf("unexpected eye cascade path %s", loc.EyeCascade)
	}
	if loc.LandmarkScript != filepath.Join("/opt/models", LandmarkScript) {
		t.Errorf("unexpected script path %s", loc.LandmarkScript)
	}
}
