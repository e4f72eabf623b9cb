package cmd

import (
	"fmt"
	goruntime "runtime"
	"runtime/debug"
	"strings"
)

const shortSHA = 7

// engineModules are the libraries whose versions decide how blueprints
// talk to models and tool servers. They are reported by --version.
var engineModules = []string{"charm.land/fantasy", "github.com/mark3labs/mcp-go"}

// BuildInfo is injected by the build pipeline.
type BuildInfo struct {
	Version   string
	CommitSHA string
	// Engine lists "module version" pairs of engineModules found in the
	// binary.
	Engine []string
}

// versionTemplate renders as
//
//	agentgraph v1.2.0 (abc1234) go1.25.0 linux/amd64
//	  charm.land/fantasy v0.8.1
func versionTemplate(b BuildInfo) string {
	var sb strings.Builder
	sb.WriteString("{{.Name}} {{.Version}}")
	if len(b.CommitSHA) >= shortSHA {
		sb.WriteString(" (" + b.CommitSHA[:shortSHA] + ")")
	}
	fmt.Fprintf(&sb, " %s %s/%s\n", goruntime.Version(), goruntime.GOOS, goruntime.GOARCH)
	for _, dep := range b.Engine {
		sb.WriteString("  " + dep + "\n")
	}
	return sb.String()
}

func normalizeBuildInfo(b BuildInfo) BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return fillBuildInfo(b, nil)
	}
	return fillBuildInfo(b, info)
}

// fillBuildInfo completes b from the module and VCS data Go embeds in the
// binary. info may be nil.
func fillBuildInfo(b BuildInfo, info *debug.BuildInfo) BuildInfo {
	if info == nil {
		if b.Version == "" {
			b.Version = "unknown"
		}
		return b
	}

	if b.Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = info.Main.Version
	}

	var vcsRev, vcsModified string
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			vcsRev = s.Value
		case "vcs.modified":
			vcsModified = s.Value
		}
	}
	if b.CommitSHA == "" {
		b.CommitSHA = vcsRev
	}
	if b.Version == "" {
		b.Version = "dev"
		if len(vcsRev) >= shortSHA {
			b.Version += "-" + vcsRev[:shortSHA]
		}
		if vcsModified == "true" {
			b.Version += "-dirty"
		}
	}

	if b.Engine == nil {
		for _, dep := range info.Deps {
			for _, mod := range engineModules {
				if dep.Path == mod {
					b.Engine = append(b.Engine, dep.Path+" "+dep.Version)
				}
			}
		}
	}
	return b
}
