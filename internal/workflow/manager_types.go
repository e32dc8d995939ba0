package workflow

import (
	"reelsmith/internal/production"
	"reelsmith/internal/stage"
)

// StageSet bundles the concrete handlers the manager orchestrates, one per
// pipeline state. A nil handler skips its state.
type StageSet struct {
	Transcriber   stage.Handler
	Partitioner   stage.Handler
	Images        stage.Handler
	ScriptWriter  stage.Handler
	VoiceProfiler stage.Handler
	Narrator      stage.Handler
	Preloader     stage.Handler
	Renderer      stage.Handler
}

type pipelineStage struct {
	name    string
	handler stage.Handler
	status  production.Status
}
