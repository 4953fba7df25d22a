// Package capture resolves video sources into readable frame streams.
// Sources are decoded by an ffmpeg subprocess piping raw RGBA frames,
// which keeps the package free of cgo while covering cameras, local
// files and remote URLs with one mechanism.
package capture

import "fmt"

// Kind discriminates the closed set of source variants.
type Kind string

const (
	KindCamera Kind = "camera"
	KindFile   Kind = "file"
	KindRemote Kind = "remote"
)

// Descriptor is a tagged selection of where frames come from. Values
// are immutable; build them with CameraSource, FileSource or
// RemoteSource.
type Descriptor struct {
	kind   Kind
	device string
	path   string
	url    string
}

// CameraSource selects a capture device, e.g. "/dev/video0" or a
// dshow device name on Windows.
func CameraSource(device string) Descriptor {
	return Descriptor{kind: KindCamera, device: device}
}

// FileSource selects a local video file.
func FileSource(path string) Descriptor {
	return Descriptor{kind: KindFile, path: path}
}

// RemoteSource selects a remote page URL (e.g. YouTube) that a
// StreamResolver turns into a direct media URL.
func RemoteSource(url string) Descriptor {
	return Descriptor{kind: KindRemote, url: url}
}

func (d Descriptor) Kind() Kind { return d.kind }

// Device returns the camera device for KindCamera descriptors.
func (d Descriptor) Device() string { return d.device }

// Path returns the file path for KindFile descriptors.
func (d Descriptor) Path() string { return d.path }

// URL returns the page URL for KindRemote descriptors.
func (d Descriptor) URL() string { return d.url }

func (d Descriptor) String() string {
	switch d.kind {
	case KindCamera:
		return fmt.Sprintf("camera(%s)", d.device)
	case KindFile:
		return fmt.Sprintf("file(%s)", d.path)
	case KindRemote:
		return fmt.Sprintf("remote(%s)", d.url)
	default:
		return "unknown source"
	}
}
