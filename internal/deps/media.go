package deps

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"reelsmith/internal/config"
)

// MediaRequirements lists the external binaries a production needs.
func MediaRequirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for narration decoding, clip audio extraction, and recording",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for inspecting uploaded clips",
		},
	}
}

// Version returns the first line of `<command> -version`, or an empty string
// when the binary cannot report one within a second.
func Version(ctx context.Context, command string) string {
	command = strings.TrimSpace(command)
	if command == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, command, "-version").Output()
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(line)
}
