// Package agentbrain assembles the layered system prompt, drives the
// model with a filtered tool set, and collects its structured output into
// an AgentResponse, per §4.K.
package agentbrain
