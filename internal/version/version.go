package version

import (
	"embed"
	"encoding/json"

	"github.com/Masterminds/semver/v3"
)

//go:embed core.json
var coreFile embed.FS

type SystemBuild struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func unknownVersion() *SystemBuild {
	return &SystemBuild{
		Version: "unknown",
		Commit:  "unknown",
	}
}

func unmarshal(data []byte) *SystemBuild {
	v := SystemBuild{}
	err := json.Unmarshal(data, &v)
	if err != nil {
		panic(err)
	}
	if _, err = semver.NewVersion(v.Version); err != nil {
		return unknownVersion()
	}
	return &v
}

func GetCore() *SystemBuild {
	data, err := coreFile.ReadFile("core.json")
	if err != nil {
		panic(err)
	}
	return unmarshal(data)
}
