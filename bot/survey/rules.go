package survey

import (
	"github.com/m3rciful/dndsurvey/core/router"
	"github.com/m3rciful/dndsurvey/core/state"
)

// Rules returns the ordered routing rules for the survey. Restart is matched
// first so it overrides any in-flight survey; the catch-all comes last.
func (c *Controller) Rules() []router.Rule[Answers] {
	adminOnly := router.AdminOnly(router.AdminOptions[Answers]{
		AdminID:  c.adminID,
		OnReject: c.denyStats,
	})
	return []router.Rule[Answers]{
		router.On("survey.restart", command("start"), c.Restart),
		router.On("survey.help", command("help"), c.Help),
		router.On("survey.stats", command("stats"), adminOnly(c.Stats)),
		router.On("survey.answer",
			router.All(router.InState[Answers](QuestionStates()...), router.Text[Answers]()),
			c.Answer,
		),
		router.Fallback("survey.guide", c.Guide),
	}
}

// NewDispatcher wires the controller's rules to a session store.
func NewDispatcher(store state.Store[Answers], c *Controller) (*router.Dispatcher[Answers], error) {
	return router.New(store, c.Rules()...)
}

// command returns the predicate matching name or any of its aliases.
func command(name string) router.Predicate[Answers] {
	for _, c := range Commands() {
		if c.Name == name {
			return router.Command[Answers](c.names()...)
		}
	}
	return router.Command[Answers](name)
}
