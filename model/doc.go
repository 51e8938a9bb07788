// Package model defines the provider-neutral interface the supervisor and the
// workers use to talk to a language model with function calling.
//
// Adapters for OpenAI, Anthropic and Gemini live in sub-packages and map
// Request/Response onto each vendor SDK. ScriptedModel is a deterministic
// double for tests and offline runs.
package model
