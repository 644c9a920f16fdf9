package tank

import (
	log "github.com/sirupsen/logrus"

	"github.com/johnelliott/watersensord/pkg/mono"
)

// HoldThresholdMs is how long the reset button must be held
// continuously before the factory reset fires.
const HoldThresholdMs = 4000

// HoldButton tracks a single button and reports when it has been held
// past the threshold. It fires exactly once per press; the press must
// be released before it can fire again.
type HoldButton struct {
	pin     InPin
	timing  bool
	fired   bool
	startAt uint32
}

func NewHoldButton(pin InPin) *HoldButton {
	return &HoldButton{pin: pin}
}

// Tick samples the button. It returns true on the tick the hold
// crosses the threshold and false on every other tick, including the
// remainder of a latched press.
func (h *HoldButton) Tick(now uint32) bool {
	if h.pin == nil {
		return false
	}
	if !h.pin.Read() {
		h.timing = false
		h.fired = false
		return false
	}
	if !h.timing {
		h.timing = true
		h.startAt = now
		log.Trace("Reset button down")
		return false
	}
	if h.fired {
		return false
	}
	if mono.Since(now, h.startAt) >= HoldThresholdMs {
		h.fired = true
		log.Debug("Reset button held past threshold")
		return true
	}
	return false
}
