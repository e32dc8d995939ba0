package authoring

import (
	"context"
	"strings"

	"reelsmith/internal/content"
	"reelsmith/internal/production"
	"reelsmith/internal/services/imagegen"
	"reelsmith/internal/services/speech"
)

// Illustrator plans scene descriptions and renders stills for them.
type Illustrator interface {
	SceneDescriptions(ctx context.Context, topic string, n int) ([]string, error)
	GenerateImage(ctx context.Context, description string, index int) (imagegen.Image, error)
}

// Writer drafts narration and publishing metadata.
type Writer interface {
	Script(ctx context.Context, topic string) (string, error)
	ScriptForDescriptions(ctx context.Context, topic string, descriptions []string) (string, error)
	Metadata(ctx context.Context, script string) (content.Metadata, error)
}

// VoiceAnalyst describes a reference voice.
type VoiceAnalyst interface {
	VoiceProfile(ctx context.Context, link string) (string, error)
}

// Voice synthesizes narration.
type Voice interface {
	Synthesize(ctx context.Context, text string, voiceRef []byte, profile string) (speech.Audio, error)
}

// descriptionSimilarity is the cosine similarity above which two planned
// scenes are treated as the same shot.
const descriptionSimilarity = 0.9

// effectiveTopic folds a clip transcript into the topic. Uploaded narration
// is the script itself, so its transcript is not treated as context.
func effectiveTopic(run *production.Run) string {
	topic := strings.TrimSpace(run.Inputs.Topic)
	transcript := strings.TrimSpace(run.Transcript)
	if transcript == "" || run.HasNarration() {
		return topic
	}
	if topic == "" {
		return transcript
	}
	return topic + "\n\nContext from the uploaded clip: " + transcript
}
