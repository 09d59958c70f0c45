package anychain

import (
	"errors"
	"fmt"

	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var o Options
	serializer.RegisterTypedDeserializer(o.SerializerType(), DeserializeOptions)
}

// FitPolicy selects how ComputeScaleOffset fits each
// column.
type FitPolicy int

const (
	// FitCentered fits an ordinary least-squares line to
	// every column, so the scale is the covariance over
	// the variance.
	FitCentered FitPolicy = iota

	// FitUncentered computes the scale as
	// sum(x*y)/sum(x*x) and then chooses the offset to
	// match the means.
	FitUncentered
)

// DegeneratePolicy selects what ComputeScaleOffset does
// with a column whose input has no spread.
type DegeneratePolicy int

const (
	// DegenerateZeroScale uses a scale of 0, so the offset
	// becomes the mean of the target column.
	DegenerateZeroScale DegeneratePolicy = iota

	// DegenerateEpsilon clamps the denominator of the
	// scale to Options.Epsilon.
	DegenerateEpsilon
)

// DefaultEpsilon is the denominator clamp used by
// DegenerateEpsilon when Options.Epsilon is 0.
const DefaultEpsilon = 1e-10

// Options configures the chain objective.
type Options struct {
	// L2Regularize scales the L2 penalty on the chain
	// output.
	// If it is 0, no penalty is computed.
	L2Regularize float64 `yaml:"l2_regularize" json:"l2_regularize"`

	// LeakyHMMCoefficient is the leak probability used by
	// the denominator forward-backward.
	LeakyHMMCoefficient float64 `yaml:"leaky_hmm_coefficient" json:"leaky_hmm_coefficient"`

	// XentRegularize scales the cross-entropy objective
	// and the posterior part of the derivative sent to the
	// cross-entropy output by ObjectiveRes.
	// It does not scale the L2 derivative.
	XentRegularize float64 `yaml:"xent_regularize" json:"xent_regularize"`

	// Fit selects the affine fit used by the L2 term when
	// there is a cross-entropy output.
	// The default, FitCentered, is the least-squares line,
	// so its L2Term is never larger in magnitude than the
	// one given by FitUncentered, and the two differ when
	// the cross-entropy columns have non-zero means.
	// Use FitUncentered to match trainers that compute the
	// scale as sum(x*y)/sum(x*x).
	Fit        FitPolicy        `yaml:"fit" json:"fit"`
	Degenerate DegeneratePolicy `yaml:"degenerate" json:"degenerate"`

	// Epsilon is used by DegenerateEpsilon.
	// If it is 0, DefaultEpsilon is used.
	Epsilon float64 `yaml:"epsilon" json:"epsilon"`
}

// DefaultOptions returns the options used when none are
// specified.
func DefaultOptions() *Options {
	return &Options{
		LeakyHMMCoefficient: 1e-5,
	}
}

// DeserializeOptions deserializes Options.
func DeserializeOptions(d []byte) (*Options, error) {
	var l2, leak, xent, eps serializer.Float64
	var fit, degenerate serializer.Int
	err := serializer.DeserializeAny(d, &l2, &leak, &xent, &fit, &degenerate, &eps)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Options", err)
	}
	res := &Options{
		L2Regularize:        float64(l2),
		LeakyHMMCoefficient: float64(leak),
		XentRegularize:      float64(xent),
		Fit:                 FitPolicy(fit),
		Degenerate:          DegeneratePolicy(degenerate),
		Epsilon:             float64(eps),
	}
	if err := res.Validate(); err != nil {
		return nil, essentials.AddCtx("deserialize Options", err)
	}
	return res, nil
}

// Validate checks that the options are usable.
func (o *Options) Validate() error {
	if o.L2Regularize < 0 {
		return errors.New("l2 regularization must be non-negative")
	}
	if o.LeakyHMMCoefficient < 0 || o.LeakyHMMCoefficient >= 1 {
		return fmt.Errorf("leaky HMM coefficient %f out of range [0, 1)",
			o.LeakyHMMCoefficient)
	}
	if o.XentRegularize < 0 {
		return errors.New("xent regularization must be non-negative")
	}
	if o.Fit != FitCentered && o.Fit != FitUncentered {
		return fmt.Errorf("unknown fit policy: %d", o.Fit)
	}
	if o.Degenerate != DegenerateZeroScale && o.Degenerate != DegenerateEpsilon {
		return fmt.Errorf("unknown degenerate policy: %d", o.Degenerate)
	}
	if o.Epsilon < 0 {
		return errors.New("epsilon must be non-negative")
	}
	return nil
}

func (o *Options) epsilon() float64 {
	if o.Epsilon == 0 {
		return DefaultEpsilon
	}
	return o.Epsilon
}

// SerializerType returns the unique ID used to serialize
// Options with the serializer package.
func (o *Options) SerializerType() string {
	return "github.com/unixpickle/anychain.Options"
}

// Serialize serializes the options.
func (o *Options) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Float64(o.L2Regularize),
		serializer.Float64(o.LeakyHMMCoefficient),
		serializer.Float64(o.XentRegularize),
		serializer.Int(o.Fit),
		serializer.Int(o.Degenerate),
		serializer.Float64(o.Epsilon),
	)
}

// String returns the name used by ParseFitPolicy.
func (f FitPolicy) String() string {
	switch f {
	case FitCentered:
		return "centered"
	case FitUncentered:
		return "uncentered"
	default:
		return fmt.Sprintf("FitPolicy(%d)", int(f))
	}
}

// ParseFitPolicy parses "centered" or "uncentered".
func ParseFitPolicy(s string) (FitPolicy, error) {
	switch s {
	case "centered":
		return FitCentered, nil
	case "uncentered":
		return FitUncentered, nil
	default:
		return 0, fmt.Errorf("unknown fit policy: %s", s)
	}
}

// String returns the name used by
// ParseDegeneratePolicy.
func (d DegeneratePolicy) String() string {
	switch d {
	case DegenerateZeroScale:
		return "zero-scale"
	case DegenerateEpsilon:
		return "epsilon"
	default:
		return fmt.Sprintf("DegeneratePolicy(%d)", int(d))
	}
}

// ParseDegeneratePolicy parses "zero-scale" or
// "epsilon".
func ParseDegeneratePolicy(s string) (DegeneratePolicy, error) {
	switch s {
	case "zero-scale":
		return DegenerateZeroScale, nil
	case "epsilon":
		return DegenerateEpsilon, nil
	default:
		return 0, fmt.Errorf("unknown degenerate policy: %s", s)
	}
}
