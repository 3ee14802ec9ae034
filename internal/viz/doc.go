// Package viz renders simulation output in the terminal.
//
// Static output (run summaries, recovery tables, response graphs) is built
// from lipgloss styles and asciigraph plots. [LiveModel] is a Bubble Tea
// model that advances a loop tick by tick and redraws the response:
//
//	space - pause/resume
//	r     - rewind to t=0
//	+/-   - double/halve ticks per frame
//	tab   - select the next controller gain or plant coefficient
//	up/k  - raise the selected parameter by 5%
//	down/j - lower the selected parameter by 5%
//	q     - quit
package viz
