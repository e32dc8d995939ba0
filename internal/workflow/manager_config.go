package workflow

import "reelsmith/internal/production"

// ConfigureStages registers the concrete stage handlers the workflow will run.
func (m *Manager) ConfigureStages(set StageSet) {
	stages := []pipelineStage{
		{name: "transcriber", handler: set.Transcriber, status: production.StatusTranscribing},
		{name: "partitioner", handler: set.Partitioner, status: production.StatusPartitioningVideo},
		{name: "image-generator", handler: set.Images, status: production.StatusGeneratingImages},
		{name: "script-writer", handler: set.ScriptWriter, status: production.StatusGeneratingScript},
		{name: "voice-profiler", handler: set.VoiceProfiler, status: production.StatusProfilingVoice},
		{name: "narrator", handler: set.Narrator, status: production.StatusGeneratingAudio},
		{name: "preloader", handler: set.Preloader, status: production.StatusReady},
		{name: "renderer", handler: set.Renderer, status: production.StatusRendering},
	}

	m.mu.Lock()
	m.stages = stages
	m.mu.Unlock()
}
