package handlers

import (
	"net/http"
	"runtime"
	"runtime/debug"
)

// Build metadata, set from main via SetVersionInfo.
var (
	AppName      = "postsmith"
	AppVersion   = "dev"
	AppCommit    = "unknown"
	AppBuildDate = "unknown"
)

// SetVersionInfo records build metadata for /version.
func SetVersionInfo(version, commit, buildDate string) {
	AppVersion = version
	AppCommit = commit
	AppBuildDate = buildDate
}

// VersionResponse is the /version body.
type VersionResponse struct {
	App          AppInfo           `json:"app"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	Runtime      RuntimeInfo       `json:"runtime"`
}

// AppInfo contains application version details.
type AppInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// RuntimeInfo contains runtime environment information.
type RuntimeInfo struct {
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

// reportedDeps are the modules whose versions /version exposes.
var reportedDeps = map[string]string{
	"github.com/fulmenhq/gofulmen": "gofulmen",
	"github.com/go-chi/chi/v5":     "chi",
	"github.com/redis/go-redis/v9": "go-redis",
}

// VersionHandler reports build and runtime information.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{
		App: AppInfo{
			Name:      AppName,
			Version:   AppVersion,
			Commit:    AppCommit,
			BuildDate: AppBuildDate,
			GoVersion: runtime.Version(),
		},
		Dependencies: dependencyVersions(),
		Runtime: RuntimeInfo{
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			NumCPU:        runtime.NumCPU(),
			NumGoroutines: runtime.NumGoroutine(),
		},
	})
}

func dependencyVersions() map[string]string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	deps := make(map[string]string)
	for _, dep := range info.Deps {
		if name, ok := reportedDeps[dep.Path]; ok {
			deps[name] = dep.Version
		}
	}
	if len(deps) == 0 {
		return nil
	}
	return deps
}
