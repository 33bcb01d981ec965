// Package fallback produces a synthetic chat answer when the inference
// worker is unavailable, so the chat endpoint can keep its contract of
// always returning a usable payload.
package fallback

import (
	"math/rand"

	"visamonk/gateway/models"
)

// answers is the fixed set of generic responses. Every entry steers the
// user toward a question the assistant can handle once workers recover.
var answers = []string{
	"I'm here to help with university and visa information. Please ask me about specific universities, programs, admission requirements, or visa processes.",
	"I'm here to help with university information! Please ask me about specific universities, programs, tuition fees, or visa requirements. You can also ask questions like 'What programs does MIT offer?' or 'What are the admission requirements for Computer Science?'",
	"I encountered an error processing your query. Please try asking about specific universities, programs, or visa requirements.",
}

// followUps is the static ordered prompt list; responses carry the first
// three entries.
var followUps = []string{
	"What are the admission requirements?",
	"Tell me about tuition fees",
	"What programs are available?",
	"How do I apply for a student visa?",
	"What documents do I need for F-1 visa?",
	"Which universities offer scholarships?",
}

// Responder picks a canned answer pseudo-randomly. Safe for concurrent use.
type Responder struct {
	pick func(n int) int
}

// New returns a Responder backed by the shared math/rand source.
func New() *Responder {
	return &Responder{pick: rand.Intn}
}

// Respond returns a non-empty answer with exactly three follow-up prompts.
// The user message is accepted for interface symmetry with the chat worker
// but does not influence selection.
func (r *Responder) Respond(_ string) models.ChatResponse {
	return models.ChatResponse{
		Success:   true,
		Text:      answers[r.pick(len(answers))],
		FollowUps: append([]string(nil), followUps[:3]...),
	}
}
