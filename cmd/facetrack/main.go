// Command facetrack runs the face tracking viewer: it polls the camera,
// overlays detected faces and records the composite on demand.
package main

func main() {
	Execute()
}
