package handlers

import (
	"encoding/json"
	"net/http"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/postpilot/postpilot/internal/appid"
)

// BuildInfo identifies the running binary. Values come from linker flags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// VersionResponse is the body of GET /version.
type VersionResponse struct {
	App struct {
		Name      string `json:"name"`
		Version   string `json:"version"`
		Commit    string `json:"git_commit"`
		BuildDate string `json:"build_date"`
		GoVersion string `json:"go_version"`
	} `json:"app"`
	Dependencies map[string]string `json:"dependencies"`
	Platform     string            `json:"platform"`
}

// VersionHandler reports build metadata and the gofulmen/crucible versions
// the binary was linked against.
type VersionHandler struct {
	body VersionResponse
}

// NewVersionHandler fills unset build fields with "dev" / "unknown".
func NewVersionHandler(build BuildInfo) *VersionHandler {
	var resp VersionResponse
	resp.App.Name = appid.Get().BinaryName
	resp.App.Version = orDefault(build.Version, "dev")
	resp.App.Commit = orDefault(build.Commit, "unknown")
	resp.App.BuildDate = orDefault(build.BuildDate, "unknown")
	resp.App.GoVersion = runtime.Version()

	deps := crucible.GetVersion()
	resp.Dependencies = map[string]string{"gofulmen": deps.Gofulmen, "crucible": deps.Crucible}
	resp.Platform = runtime.GOOS + "/" + runtime.GOARCH
	return &VersionHandler{body: resp}
}

func (h *VersionHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.body)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
