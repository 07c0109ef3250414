package adapter

import (
	"testing"

	"github.com/andrejcermak/ood-core-extension/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestStateToStatus(t *testing.T) {
	tests := []struct {
		state string
		want  models.Status
	}{
		{"starting", models.StatusQueued},
		{"failed", models.StatusSuspended},
		{"running", models.StatusRunning},
		{"deleted", models.StatusCompleted},
		{"stopped", models.StatusCompleted},
		{"pending", models.StatusUndetermined},
		{"canceling", models.StatusUndetermined},
		{"", models.StatusUndetermined},
	}

	for _, tt := range tests {
		t.Run("state "+tt.state, func(t *testing.T) {
			assert.Equal(t, tt.want, StateToStatus(tt.state))
		})
	}
}
