package content

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/services/imagegen"
	"reelsmith/internal/services/llm"
	"reelsmith/internal/services/speech"
)

// TextModel is the chat collaborator.
type TextModel interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	CompleteText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ImageModel renders still images.
type ImageModel interface {
	Generate(ctx context.Context, prompt string) (imagegen.Image, error)
}

// SpeechModel voices narration and transcribes reference media.
type SpeechModel interface {
	Synthesize(ctx context.Context, req speech.SynthesisRequest) (speech.Audio, error)
	Transcribe(ctx context.Context, payload []byte, mimeType, filename string) (string, error)
}

// Metadata is the publishing metadata generated for a script.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Service is the facade over the content collaborators. Every method fails
// with services.ErrSynthesis when a collaborator errors or returns nothing
// usable. Nothing here retries; transport retries live in the HTTP clients.
type Service struct {
	text   TextModel
	images ImageModel
	speech SpeechModel
	styles []string
	logger *slog.Logger
}

// NewService wires the collaborators. styles are applied to image prompts
// cyclically by scene index.
func NewService(text TextModel, images ImageModel, voice SpeechModel, styles []string, logger *slog.Logger) *Service {
	cleaned := make([]string, 0, len(styles))
	for _, style := range styles {
		if trimmed := strings.TrimSpace(style); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return &Service{
		text:   text,
		images: images,
		speech: voice,
		styles: cleaned,
		logger: logging.NewComponentLogger(logger, "content"),
	}
}

func failure(operation string, err error) error {
	return services.Wrap(services.ErrSynthesis, "content", operation, "no usable payload", err)
}

// Script writes narration for topic.
func (s *Service) Script(ctx context.Context, topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", services.Wrap(services.ErrValidation, "content", "script", "topic required", nil)
	}
	return s.completeText(ctx, "script", scriptSystemPrompt, "Topic: "+topic)
}

// ScriptForDescriptions writes narration that vocalizes the scene
// descriptions in order.
func (s *Service) ScriptForDescriptions(ctx context.Context, topic string, descriptions []string) (string, error) {
	if len(descriptions) == 0 {
		return s.Script(ctx, topic)
	}
	var b strings.Builder
	if topic = strings.TrimSpace(topic); topic != "" {
		b.WriteString("Topic: ")
		b.WriteString(topic)
		b.WriteString("\n")
	}
	b.WriteString("Scenes:\n")
	for i, description := range descriptions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(description))
	}
	return s.completeText(ctx, "script", describedScriptSystemPrompt, b.String())
}

// SceneDescriptions plans n visual descriptions for topic.
func (s *Service) SceneDescriptions(ctx context.Context, topic string, n int) ([]string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" || n <= 0 {
		return nil, services.Wrap(services.ErrValidation, "content", "scene descriptions", "topic and count required", nil)
	}
	raw, err := s.text.CompleteJSON(ctx, scenesSystemPrompt, fmt.Sprintf("Topic: %s\nScenes: %d", topic, n))
	if err != nil {
		return nil, failure("scene descriptions", err)
	}
	var parsed struct {
		Scenes []string `json:"scenes"`
	}
	if err := llm.DecodeLLMJSON(raw, &parsed); err != nil {
		return nil, failure("scene descriptions", err)
	}
	scenes := make([]string, 0, len(parsed.Scenes))
	for _, scene := range parsed.Scenes {
		if trimmed := strings.TrimSpace(scene); trimmed != "" {
			scenes = append(scenes, trimmed)
		}
	}
	if len(scenes) == 0 {
		return nil, failure("scene descriptions", nil)
	}
	if len(scenes) > n {
		scenes = scenes[:n]
	}
	return scenes, nil
}

// StyleFor returns the image style applied at scene index.
func (s *Service) StyleFor(index int) string {
	if len(s.styles) == 0 || index < 0 {
		return ""
	}
	return s.styles[index%len(s.styles)]
}

// GenerateImage renders description in the style for index.
func (s *Service) GenerateImage(ctx context.Context, description string, index int) (imagegen.Image, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return imagegen.Image{}, services.Wrap(services.ErrValidation, "content", "generate image", "description required", nil)
	}
	prompt := description
	if style := s.StyleFor(index); style != "" {
		prompt = description + ". Style: " + style + ". Vertical 9:16 composition, no text."
	}
	img, err := s.images.Generate(ctx, prompt)
	if err != nil {
		return imagegen.Image{}, failure("generate image", err)
	}
	if len(img.Data) == 0 {
		return imagegen.Image{}, failure("generate image", nil)
	}
	s.logger.Debug("scene image generated",
		logging.Int("scene_index", index),
		logging.Int("bytes", len(img.Data)),
		logging.String("mime_type", img.MimeType),
	)
	return img, nil
}

// Metadata writes a title, description and tags for script.
func (s *Service) Metadata(ctx context.Context, script string) (Metadata, error) {
	script = strings.TrimSpace(script)
	if script == "" {
		return Metadata{}, services.Wrap(services.ErrValidation, "content", "metadata", "script required", nil)
	}
	raw, err := s.text.CompleteJSON(ctx, metadataSystemPrompt, script)
	if err != nil {
		return Metadata{}, failure("metadata", err)
	}
	var meta Metadata
	if err := llm.DecodeLLMJSON(raw, &meta); err != nil {
		return Metadata{}, failure("metadata", err)
	}
	meta.Title = strings.TrimSpace(meta.Title)
	meta.Description = strings.TrimSpace(meta.Description)
	tags := meta.Tags[:0]
	for _, tag := range meta.Tags {
		if trimmed := strings.TrimPrefix(strings.TrimSpace(tag), "#"); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	meta.Tags = tags
	if meta.Title == "" {
		return Metadata{}, failure("metadata", nil)
	}
	return meta, nil
}

// VoiceProfile describes the voice found at link.
func (s *Service) VoiceProfile(ctx context.Context, link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", services.Wrap(services.ErrValidation, "content", "voice profile", "link required", nil)
	}
	return s.completeText(ctx, "voice profile", voiceProfileSystemPrompt, "Reference: "+link)
}

// Transcribe turns reference audio or video into text.
func (s *Service) Transcribe(ctx context.Context, payload []byte, mimeType, filename string) (string, error) {
	text, err := s.speech.Transcribe(ctx, payload, mimeType, filename)
	if err != nil {
		return "", failure("transcribe", err)
	}
	if text == "" {
		return "", failure("transcribe", nil)
	}
	return text, nil
}

// Synthesize voices text, optionally cloning voiceRef and following profile.
func (s *Service) Synthesize(ctx context.Context, text string, voiceRef []byte, profile string) (speech.Audio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return speech.Audio{}, services.Wrap(services.ErrValidation, "content", "synthesize", "text required", nil)
	}
	audio, err := s.speech.Synthesize(ctx, speech.SynthesisRequest{Text: text, Instructions: profile, Reference: voiceRef})
	if err != nil {
		return speech.Audio{}, failure("synthesize", err)
	}
	if len(audio.Data) == 0 {
		return speech.Audio{}, failure("synthesize", nil)
	}
	return audio, nil
}

func (s *Service) completeText(ctx context.Context, operation, system, user string) (string, error) {
	text, err := s.text.CompleteText(ctx, system, user)
	if err != nil {
		return "", failure(operation, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", failure(operation, nil)
	}
	return text, nil
}
