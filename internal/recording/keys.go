package recording

import "strings"

// KeyPrefix is the common prefix of every recording artifact.
const KeyPrefix = "recordings/"

// Artifact file names under a recording's prefix.
const (
	MetadataFile   = "metadata.json"
	RecordingFile  = "recording.mp4"
	TranscriptFile = "transcript.txt"
)

// ArtifactKey returns the blob key of one artifact of a recording.
func ArtifactKey(uniqueID, file string) string {
	return KeyPrefix + uniqueID + "/" + file
}

// UniqueIDFromKey extracts the recording unique ID from an artifact key, or
// returns "" when the key is not laid out as recordings/<unique_id>/<file>.
func UniqueIDFromKey(key string) string {
	parts := strings.Split(key, "/")
	if len(parts) < 3 || parts[0]+"/" != KeyPrefix || parts[1] == "" {
		return ""
	}
	return parts[1]
}
