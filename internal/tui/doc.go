// Package tui provides the interactive test-case picker used by
// "kraftcheck run --pick".
//
// The picker lists the selected test cases grouped under their image, with
// group headers skipped during navigation:
//
//	result, err := tui.RunPicker(selected)
//	switch result.Action {
//	case tui.ActionRun:
//	    selected = tui.Narrow(selected, result.Indices)
//	case tui.ActionQuit:
//	    // nothing chosen
//	}
//
// Keys: space or x toggles a case, a toggles all, enter runs the chosen
// cases (or the highlighted one when none is chosen), / filters and q quits.
package tui
