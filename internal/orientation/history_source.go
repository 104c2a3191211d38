package orientation

import (
	"io"

	"github.com/relabs-tech/imu_fusion/internal/ahrs"
)

type historySource struct {
	quat []ahrs.Quaternion
	next int
}

// NewHistorySource replays a fused quaternion history as a pose source.
// Next returns io.EOF once the history is exhausted.
func NewHistorySource(quat []ahrs.Quaternion) Source {
	return &historySource{quat: quat}
}

func (h *historySource) Next() (Pose, error) {
	if h.next >= len(h.quat) {
		return Pose{}, io.EOF
	}
	p := FromQuaternion(h.quat[h.next])
	h.next++
	return p, nil
}
