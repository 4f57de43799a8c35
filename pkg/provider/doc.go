// Package provider abstracts the LLM backend that generates fragment JSON.
// Adapters live in subpackages; the consumer only sees the Provider
// interface and its event stream.
package provider
