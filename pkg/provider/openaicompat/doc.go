// Package openaicompat implements the provider interface against any
// OpenAI-compatible Chat Completions backend.
package openaicompat
