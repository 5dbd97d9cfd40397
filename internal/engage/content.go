package engage

import (
	"fmt"
	"math/rand"

	"chatspark/internal/domain"
)

// ContentGenerator produces the text of an automated message for a pair.
type ContentGenerator interface {
	Generate(sender, receiver *domain.User) string
}

// TemplateGenerator picks a random conversation opener from a fixed list.
type TemplateGenerator struct {
	rng       *rand.Rand
	templates []string
}

var defaultTemplates = []string{
	"Hey %s! How has your week been?",
	"Hi %s, long time no chat. What are you up to these days?",
	"%s! I was just thinking about our last conversation. How are things?",
	"Hey %s, got any plans for the weekend?",
	"Hi %s! Seen anything interesting lately worth sharing?",
}

func NewTemplateGenerator(rng *rand.Rand) *TemplateGenerator {
	return &TemplateGenerator{rng: rng, templates: defaultTemplates}
}

func (g *TemplateGenerator) Generate(_, receiver *domain.User) string {
	t := g.templates[g.rng.Intn(len(g.templates))]
	return fmt.Sprintf(t, receiver.Username)
}
