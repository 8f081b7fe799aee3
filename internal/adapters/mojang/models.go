package mojang

import "time"

// Version types found in the manifest.
const (
	TypeRelease  = "release"
	TypeSnapshot = "snapshot"
)

// VersionManifest is the launcher's list of every published game version.
type VersionManifest struct {
	Latest struct {
		Release  string `json:"release"`  // Name of the newest release
		Snapshot string `json:"snapshot"` // Name of the newest snapshot
	} `json:"latest"`
	Versions []VersionInfo `json:"versions"` // Newest first once returned by Client.Manifest
}

// VersionInfo is one manifest entry.
type VersionInfo struct {
	ID          string    `json:"id"`          // Version name, e.g. 1.21.4
	Type        string    `json:"type"`        // release, snapshot, old_beta or old_alpha
	URL         string    `json:"url"`         // Location of the version metadata document
	Time        time.Time `json:"time"`        // Last modification of the metadata
	ReleaseTime time.Time `json:"releaseTime"` // Publication time
}

// Download describes a downloadable artifact of a version.
type Download struct {
	SHA1 string `json:"sha1"` // Hex encoded SHA-1 digest
	Size int64  `json:"size"` // Size in bytes
	URL  string `json:"url"`  // Location of the artifact
}

// versionMetadata is the part of a version metadata document the client needs.
type versionMetadata struct {
	ID        string `json:"id"`
	Downloads struct {
		Server *Download `json:"server"`
	} `json:"downloads"`
}
