// Package anyfsa implements weighted finite-state graphs
// over frame labels and the log-domain forward-backward
// algorithm used by lattice-free sequence objectives.
//
// A Graph describes a set of label sequences.
// Every arc consumes exactly one frame and carries a
// label (a column of the network output) and a log
// weight.
// Running Forward on a Graph with per-frame label scores
// sums the scores of all paths; Backward recovers the
// posterior occupancy of every label at every frame,
// which is exactly the derivative of the total log
// probability with respect to the scores.
package anyfsa
