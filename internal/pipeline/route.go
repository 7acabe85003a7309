package pipeline

import (
	"slices"
	"strings"

	"tonearm/internal/config"
	"tonearm/internal/media/ffprobe"
)

// Route is the processing path chosen for one audio stream.
type Route int

const (
	// RouteTranscode re-encodes to MP3.
	RouteTranscode Route = iota
	// RouteCopyAAC copies AAC into an .m4a with the ADTS-to-ASC filter.
	RouteCopyAAC
	// RouteCopyNative copies the stream into a container named after its codec.
	RouteCopyNative
)

func (r Route) String() string {
	switch r {
	case RouteTranscode:
		return "transcode"
	case RouteCopyAAC:
		return "copy_aac"
	case RouteCopyNative:
		return "copy_native"
	default:
		return "unknown"
	}
}

// IsCopy reports whether the route attempts a stream copy first.
func (r Route) IsCopy() bool {
	return r == RouteCopyAAC || r == RouteCopyNative
}

const (
	mp3Extension = "mp3"
	aacExtension = "m4a"
)

// Decision is the routing outcome for a stream.
type Decision struct {
	Route     Route
	Extension string
	ADTSToASC bool
	Reason    string
}

// Policy holds the configurable routing tables.
type Policy struct {
	transcode  []string
	extensions map[string]string
}

// DefaultPolicy routes cook to MP3 and copies everything else under its codec name.
func DefaultPolicy() Policy {
	return NewPolicy(config.Default().Routing)
}

// NewPolicy builds a Policy from normalized routing config.
func NewPolicy(routing config.Routing) Policy {
	ext := make(map[string]string, len(routing.Extensions))
	for codec, value := range routing.Extensions {
		ext[strings.ToLower(codec)] = strings.TrimPrefix(strings.ToLower(value), ".")
	}
	codecs := make([]string, 0, len(routing.TranscodeCodecs))
	for _, codec := range routing.TranscodeCodecs {
		codecs = append(codecs, strings.ToLower(strings.TrimSpace(codec)))
	}
	return Policy{transcode: codecs, extensions: ext}
}

// Decide routes a stream using the default policy.
func Decide(stream ffprobe.AudioStream) Decision {
	return DefaultPolicy().Decide(stream)
}

// Decide picks the route for stream. The checks run in a fixed order: absent
// codec, transcode list, aac, then native copy.
func (p Policy) Decide(stream ffprobe.AudioStream) Decision {
	codec := strings.ToLower(strings.TrimSpace(stream.Codec))
	switch {
	case !stream.HasCodec || codec == "":
		return Decision{Route: RouteTranscode, Extension: mp3Extension, Reason: "unknown codec"}
	case slices.Contains(p.transcode, codec):
		return Decision{Route: RouteTranscode, Extension: mp3Extension, Reason: "codec " + codec + " is on the transcode list"}
	case codec == "aac":
		return Decision{Route: RouteCopyAAC, Extension: aacExtension, ADTSToASC: true, Reason: "aac copies into m4a"}
	default:
		ext := codec
		if mapped, ok := p.extensions[codec]; ok && mapped != "" {
			ext = mapped
		}
		return Decision{Route: RouteCopyNative, Extension: ext, Reason: "native copy as ." + ext}
	}
}
