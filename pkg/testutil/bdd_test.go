package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScenarioStepNames(t *testing.T) {
	var names []string
	Given(t, "a user", func(t *testing.T) {
		names = append(names, t.Name())
		When(t, "they act", func(t *testing.T) {
			names = append(names, t.Name())
			Then(t, "it works", func(t *testing.T) {
				names = append(names, t.Name())
			})
		})
	})

	assert.Equal(t, []string{
		"TestScenarioStepNames/Given_a_user",
		"TestScenarioStepNames/Given_a_user/When_they_act",
		"TestScenarioStepNames/Given_a_user/When_they_act/Then_it_works",
	}, names)
}
