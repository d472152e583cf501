// pkg/core/upload.go
package core

// UploadMetadata contains mission information for uploading a recording.
type UploadMetadata struct {
	MissionName     string
	Author          string
	Tag             string
	MissionDuration float64 // seconds
	CommandCount    int
	DistanceMeters  float64
}
