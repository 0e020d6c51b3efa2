package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/boristopalov/stepsweep/pkg/core"
	"github.com/boristopalov/stepsweep/pkg/recorder"
)

// printStatus prints a status line with color
func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}

// describeEvent renders a sweep event as one console line
func describeEvent(w io.Writer, ev core.Event) {
	switch ev.Type {
	case core.EventRecordFlushed:
		r, ok := ev.Content.(recorder.Record)
		if !ok {
			return
		}
		printStatus(w, "✓", fmt.Sprintf("epoch %d  timestep %-8g  %d/%d succeeded (%.1f%%)",
			r.EpochNo, r.CurrentTimestep, r.Success, r.Success+r.Failure, r.SuccessRate()), color.FgGreen)
	case core.EventTimestepChanged:
		printStatus(w, "→", fmt.Sprintf("timestep now %v", ev.Content), color.FgCyan)
	case core.EventSweepFinished:
		printStatus(w, "■", "sweep finished", color.FgGreen)
	case core.EventWarning:
		printStatus(w, "⚠", fmt.Sprint(ev.Content), color.FgYellow)
	}
}

// consoleReporter prints events until the channel is closed
func consoleReporter(w io.Writer, events <-chan core.Event) {
	for ev := range events {
		describeEvent(w, ev)
	}
}
