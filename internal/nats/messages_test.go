package nats

import (
	"testing"

	"github.com/mimicryml/style-transfer/internal/interfaces"
)

func TestJobStatusMessageJob(t *testing.T) {
	tests := []struct {
		name string
		msg  JobStatusMessage
		want interfaces.Job
	}{
		{
			name: "completed",
			msg: JobStatusMessage{
				JobID:          "job-1",
				SessionID:      "sess-1",
				Status:         "completed",
				OutputPath:     "outputs/job-1.jpg",
				ProcessingTime: 2.5,
			},
			want: interfaces.Job{
				ID:             "job-1",
				SessionID:      "sess-1",
				Status:         interfaces.StatusCompleted,
				OutputPath:     "outputs/job-1.jpg",
				ProcessingTime: 2.5,
			},
		},
		{
			name: "failed",
			msg: JobStatusMessage{
				JobID:     "job-2",
				SessionID: "sess-1",
				Status:    "failed",
				Error:     "transformation failed",
			},
			want: interfaces.Job{
				ID:           "job-2",
				SessionID:    "sess-1",
				Status:       interfaces.StatusFailed,
				ErrorMessage: "transformation failed",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.msg.Job()
			if *got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, *got)
			}
		})
	}
}
