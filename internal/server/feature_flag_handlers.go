package server

import (
	"sort"

	"longform/internal/featureflags"
	"longform/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type featureFlagView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Value       string `json:"value"`
	Enabled     bool   `json:"enabled"`
}

// GetFeatureFlags reports the configured flags, how they evaluate for the caller and every
// known flag with its description.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	subject := ""
	if user := middleware.CurrentUser(c); user != nil {
		subject = user.Email
	}

	raw := s.featureFlags.Raw()
	known := make([]featureFlagView, 0, len(featureflags.Known))
	for name, desc := range featureflags.Known {
		known = append(known, featureFlagView{
			Name:        name,
			Description: desc,
			Value:       raw[name],
			Enabled:     s.featureFlags.Enabled(name, subject),
		})
	}
	sort.Slice(known, func(i, j int) bool { return known[i].Name < known[j].Name })

	problems := s.featureFlags.Problems()
	if problems == nil {
		problems = []string{}
	}

	return c.JSON(fiber.Map{
		"raw":       raw,
		"evaluated": s.featureFlags.Snapshot(subject),
		"known":     known,
		"problems":  problems,
	})
}
