package version

import (
	"runtime/debug"
)

type Info struct {
	Commit   string `json:"commit"`
	Time     string `json:"time"`
	Modified bool   `json:"modified"`
}

func (i Info) String() string {
	if i.Commit == "" {
		return "devel"
	}
	s := i.Commit + " " + i.Time
	if i.Modified {
		s += " (modified)"
	}
	return s
}

var Version = func() Info {
	v := Info{}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				v.Commit = setting.Value
			case "vcs.time":
				v.Time = setting.Value
			case "vcs.modified":
				v.Modified = setting.Value == "true"
			}
		}
	}
	return v
}()
