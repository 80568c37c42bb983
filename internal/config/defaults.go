package config

const (
	defaultConfigPath             = "~/.config/folio/config.toml"
	defaultLibraryDir             = "~/library"
	defaultLogDir                 = "~/.local/share/folio/logs"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultDriftThreshold         = 0.80
	defaultContrastDriftThreshold = 0.85
	defaultPromptMinLength        = 24
	defaultGlossarySeverity       = "major"
	defaultReviewer               = "editor"
)

// DefaultMaxPasses is the pass budget per severity band.
var DefaultMaxPasses = map[string]int{
	"critical": 5,
	"major":    4,
	"minor":    3,
	"info":     2,
}

// DefaultBlocking lists the severity bands whose exhaustion blocks a story.
var DefaultBlocking = []string{"critical", "major"}

// DefaultDraftMarkers are the tokens flagged as unfinished prompt text.
var DefaultDraftMarkers = []string{"TODO", "TBD", "XXX", "FIXME", "[placeholder]", "{{"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	maxPasses := make(map[string]int, len(DefaultMaxPasses))
	for key, value := range DefaultMaxPasses {
		maxPasses[key] = value
	}
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			LogDir:     defaultLogDir,
		},
		Cascade: Cascade{
			AutoDecide: true,
			Blocking:   append([]string(nil), DefaultBlocking...),
			MaxPasses:  maxPasses,
		},
		Audit: Audit{
			DriftThreshold:         defaultDriftThreshold,
			ContrastDriftThreshold: defaultContrastDriftThreshold,
			PromptMinLength:        defaultPromptMinLength,
			GlossarySeverity:       defaultGlossarySeverity,
			DraftMarkers:           append([]string(nil), DefaultDraftMarkers...),
		},
		Review: Review{
			Reviewer: defaultReviewer,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
