package transform

import (
	"fmt"
	"strings"
)

// registryRewriter replaces source container-registry references with
// their destination equivalents.
type registryRewriter struct {
	// sourceImage is the source registry image path, e.g.
	// registry.gitlab.com/group/proj.
	sourceImage string
	// destImage is the destination image path, e.g. ghcr.io/org/repo.
	destImage string
}

// rewrite substitutes registry variables and literal image references.
// A nil rewriter passes text through untouched.
func (r *registryRewriter) rewrite(text string) string {
	if r == nil || r.destImage == "" {
		return text
	}

	replacements := []struct{ from, to string }{
		{"${CI_REGISTRY_IMAGE}", r.destImage},
		{"$CI_REGISTRY_IMAGE", r.destImage},
		{"${CI_REGISTRY}", destRegistryHost(r.destImage)},
		{"$CI_REGISTRY", destRegistryHost(r.destImage)},
	}

	for _, rep := range replacements {
		text = strings.ReplaceAll(text, rep.from, rep.to)
	}

	if r.sourceImage != "" {
		text = strings.ReplaceAll(text, r.sourceImage, r.destImage)
	}

	return text
}

func destRegistryHost(image string) string {
	host, _, found := strings.Cut(image, "/")
	if !found {
		return image
	}

	return host
}

// migrationScript renders the shell script that moves container images
// between registries. Image bits are never transferred by the core.
func (r *registryRewriter) migrationScript() string {
	var b strings.Builder

	b.WriteString("#!/usr/bin/env bash\n")
	b.WriteString("# Migrates container images from the source registry to the destination.\n")
	b.WriteString("# Requires docker login against both registries before running.\n")
	b.WriteString("set -euo pipefail\n\n")
	fmt.Fprintf(&b, "SRC_IMAGE=%q\n", r.sourceImage)
	fmt.Fprintf(&b, "DEST_IMAGE=%q\n", r.destImage)
	b.WriteString("TAGS=\"${TAGS:-latest}\"\n\n")
	b.WriteString("for tag in $TAGS; do\n")
	b.WriteString("  docker pull \"$SRC_IMAGE:$tag\"\n")
	b.WriteString("  docker tag \"$SRC_IMAGE:$tag\" \"$DEST_IMAGE:$tag\"\n")
	b.WriteString("  docker push \"$DEST_IMAGE:$tag\"\n")
	b.WriteString("done\n")

	return b.String()
}
