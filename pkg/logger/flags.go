package logger

import (
	"flag"
	"fmt"
	"strings"
)

// Flags holds all logging-related command-line flags
type Flags struct {
	LogLevel    string
	LogFormat   string
	LogFile     string
	DebugRTP    bool
	DebugNAL    bool
	DebugSync   bool
	DebugScene  bool
	DebugRender bool
	DebugMixer  bool
	DebugWHIP   bool
	DebugRTMP   bool
	DebugAll    bool
}

// RegisterFlags registers logging flags with the given FlagSet
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}

	fs.StringVar(&f.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&f.LogLevel, "l", "info", "Log level (shorthand)")

	fs.StringVar(&f.LogFormat, "log-format", "text", "Log output format: text, json")

	fs.StringVar(&f.LogFile, "log-file", "", "Log output file path (default: stdout)")
	fs.StringVar(&f.LogFile, "o", "", "Log output file path (shorthand)")

	fs.BoolVar(&f.DebugRTP, "debug-rtp", false, "Enable detailed RTP packet debugging")
	fs.BoolVar(&f.DebugNAL, "debug-nal", false, "Enable detailed NAL unit debugging")
	fs.BoolVar(&f.DebugSync, "debug-sync", false, "Enable RTP/NTP timestamp sync debugging")
	fs.BoolVar(&f.DebugScene, "debug-scene", false, "Enable scene diff/transition debugging")
	fs.BoolVar(&f.DebugRender, "debug-render", false, "Enable per-tick render debugging")
	fs.BoolVar(&f.DebugMixer, "debug-mixer", false, "Enable audio mixer debugging")
	fs.BoolVar(&f.DebugWHIP, "debug-whip", false, "Enable WHIP/WHEP signaling debugging")
	fs.BoolVar(&f.DebugRTMP, "debug-rtmp", false, "Enable RTMP chunk/message debugging")
	fs.BoolVar(&f.DebugAll, "debug-all", false, "Enable all debug categories")

	return f
}

// ToConfig converts Flags to a logger Config
func (f *Flags) ToConfig() (*Config, error) {
	cfg := NewConfig()

	level, err := ParseLevel(f.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.Level = level

	format, err := ParseFormat(f.LogFormat)
	if err != nil {
		return nil, err
	}
	cfg.Format = format

	cfg.OutputFile = f.LogFile

	if f.DebugAll {
		cfg.EnableCategory(DebugAll)
		cfg.Level = LevelDebug
	} else {
		for _, c := range f.enabledCategories() {
			cfg.EnableCategory(c)
			cfg.Level = LevelDebug
		}
	}

	return cfg, nil
}

func (f *Flags) enabledCategories() []DebugCategory {
	var cats []DebugCategory
	if f.DebugRTP {
		cats = append(cats, DebugRTP)
	}
	if f.DebugNAL {
		cats = append(cats, DebugNAL)
	}
	if f.DebugSync {
		cats = append(cats, DebugSync)
	}
	if f.DebugScene {
		cats = append(cats, DebugScene)
	}
	if f.DebugRender {
		cats = append(cats, DebugRender)
	}
	if f.DebugMixer {
		cats = append(cats, DebugMixer)
	}
	if f.DebugWHIP {
		cats = append(cats, DebugWHIP)
	}
	if f.DebugRTMP {
		cats = append(cats, DebugRTMP)
	}
	return cats
}

// String returns a string representation of enabled flags
func (f *Flags) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("level=%s", f.LogLevel))
	parts = append(parts, fmt.Sprintf("format=%s", f.LogFormat))

	if f.LogFile != "" {
		parts = append(parts, fmt.Sprintf("output=%s", f.LogFile))
	} else {
		parts = append(parts, "output=stdout")
	}

	if f.DebugAll {
		parts = append(parts, "debug=[all]")
	} else if cats := f.enabledCategories(); len(cats) > 0 {
		names := make([]string, len(cats))
		for i, c := range cats {
			names[i] = string(c)
		}
		parts = append(parts, fmt.Sprintf("debug=[%s]", strings.Join(names, ",")))
	}

	return strings.Join(parts, " ")
}
