// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuleCloneIndependence(t *testing.T) {
	r := &Rule{Action: ActionAccept, Source: "10.0.0.1", Proto: "tcp", DPort: "80"}

	clone := r.Clone()
	clone.Action = ActionReturn
	clone.Source = "10.0.0.2"

	assert.Equal(t, ActionAccept, r.Action, "mutating the clone must not affect the original")
	assert.Equal(t, "10.0.0.1", r.Source)
	assert.Equal(t, ActionReturn, clone.Action)
}

func TestRuleCloneReturnsDistinctPointer(t *testing.T) {
	r := &Rule{Action: ActionAccept}
	assert.NotSame(t, r, r.Clone())
}
