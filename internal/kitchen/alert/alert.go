package alert

import (
	"fmt"
	"os"
)

// Alerter sounds the kitchen cue when new tickets arrive.
type Alerter interface {
	Ring()
}

// Bell writes the terminal bell character. The display hardware maps it to
// the kitchen buzzer.
type Bell struct{}

func NewBell() *Bell {
	return &Bell{}
}

func (b *Bell) Ring() {
	fmt.Fprint(os.Stdout, "\a")
}
