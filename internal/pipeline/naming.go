package pipeline

import (
	"path/filepath"
	"strconv"
	"strings"
)

// ArtifactName returns "<base>.<ext>" for single-stream files and
// "<base>_stream<index>.<ext>" when the file has several audio streams.
func ArtifactName(base string, index int, multiStream bool, ext string) string {
	if multiStream {
		return base + "_stream" + strconv.Itoa(index) + "." + ext
	}
	return base + "." + ext
}

// ArtifactPath joins ArtifactName onto outputDir.
func ArtifactPath(outputDir, base string, index int, multiStream bool, ext string) string {
	return filepath.Join(outputDir, ArtifactName(base, index, multiStream, ext))
}

// pathClaims maps every artifact path handed out during one run to the input
// file that owns it.
type pathClaims map[string]string

// claim reserves target for owner and returns the path to write. When another
// input already holds target, the source extension is folded into the name
// (clip.m4a becomes clip_mp4.m4a) and a counter is added if that is taken too.
func (c pathClaims) claim(target, owner, sourceExt string) string {
	if holder, ok := c[target]; !ok || holder == owner {
		c[target] = owner
		return target
	}
	dir, name := filepath.Split(target)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if tag := strings.ToLower(strings.TrimPrefix(sourceExt, ".")); tag != "" {
		stem += "_" + tag
	}
	candidate := filepath.Join(dir, stem+ext)
	for n := 2; ; n++ {
		if holder, ok := c[candidate]; !ok || holder == owner {
			c[candidate] = owner
			return candidate
		}
		candidate = filepath.Join(dir, stem+"_"+strconv.Itoa(n)+ext)
	}
}
