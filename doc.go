// Package anychain computes the lattice-free ("chain")
// sequence objective for acoustic model training.
//
// The objective for a minibatch is the log probability
// of the supervised label sequences (the numerator)
// minus the log probability of every sequence allowed by
// a shared denominator graph.
// Both terms are computed by forward-backward over
// anyfsa graphs, and their derivatives with respect to
// the network output are accumulated into caller-owned
// buffers, together with an optional L2 penalty which
// can tie the chain output to an affine function of an
// auxiliary cross-entropy output.
//
// Network outputs are packed with frames as the major
// index: row t*NumSequences+s holds frame t of sequence
// s.
package anychain
