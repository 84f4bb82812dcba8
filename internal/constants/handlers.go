// Package constants provides shared constants used across the codebase.
package constants

// AI provider names accepted by the analyze endpoints and the CLI
const (
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderLlamaCpp = "llamacpp"
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// Job constants
const (
	// MaxAnalyzeConcurrency is the highest worker count an analyze request may ask for
	MaxAnalyzeConcurrency = 8

	// JobRetention is the number of finished jobs kept for status queries
	JobRetention = 50
)
