// Package export writes run output in external formats.
//
// [CSVWriter] is the reference sink: a time,setpoint,measurement,control
// header and one six-decimal row per sample in tick order. [ReadCSV] parses
// the same form back. [PlotResponse] renders step-response and comparison
// plots with gonum/plot.
package export
