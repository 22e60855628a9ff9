package protocol

import (
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"
)

// Error code constants for protocol loading and validation.
const (
	ErrCodeGeneric     = "P001" // Generic/unknown error
	ErrCodeNotFound    = "P002" // Protocol file not found
	ErrCodeCompile     = "P003" // CUE compile failed
	ErrCodeMissing     = "P004" // Missing protocol block
	ErrCodeFieldType   = "P005" // Field has the wrong type
	ErrCodeName        = "P101" // Invalid name
	ErrCodeTrials      = "P102" // Invalid trial count
	ErrCodeDuration    = "P103" // Invalid duration
	ErrCodeJitterRange = "P104" // Inverted jitter range
	ErrCodeCadence     = "P105" // Invalid tick cadence
)

// LoadError is a positioned protocol-file error with a stable code.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load reads and validates a protocol CUE file. Absent fields take the
// Default() values, so a minimal file only has to name what it changes.
// All errors are collected, not just the first.
//
// Expected shape:
//
//	protocol: {
//		name:                    "standard"
//		trialsPerClass:          50
//		activeSeconds:           10.0
//		initialFixationSeconds:  4.0
//		interTrialMinSeconds:    4.0
//		interTrialMaxSeconds:    4.0
//		tickCadenceMs:           20
//		seed:                    12345  // optional
//	}
func Load(path string) (*Protocol, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("protocol file not found: %s", path)}}
		}
		return nil, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("reading protocol file: %v", err)}}
	}

	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeCompile, Message: fmt.Sprintf("compiling protocol: %v", err)}}
	}

	block := value.LookupPath(cue.ParsePath("protocol"))
	if !block.Exists() {
		return nil, []error{&LoadError{Code: ErrCodeMissing, Message: "no \"protocol\" block found"}}
	}

	p := Default()
	var errs []error

	ext := &extractor{block: block}
	ext.str("name", &p.Name)
	ext.count("trialsPerClass", &p.TrialsPerClass)
	ext.seconds("activeSeconds", &p.ActiveDuration)
	ext.seconds("initialFixationSeconds", &p.InitialFixation)
	ext.seconds("interTrialMinSeconds", &p.InterTrialMin)
	ext.seconds("interTrialMaxSeconds", &p.InterTrialMax)
	ext.millis("tickCadenceMs", &p.TickCadence)
	ext.seed("seed", &p.Seed)
	errs = append(errs, ext.errs...)

	// A protocol with type errors may hold junk values; still run the
	// semantic checks so the operator sees everything at once.
	errs = append(errs, p.Validate()...)
	if len(errs) > 0 {
		return nil, errs
	}
	return &p, nil
}

// extractor pulls typed fields out of the protocol block, collecting
// positioned errors instead of stopping.
type extractor struct {
	block cue.Value
	errs  []error
}

func (x *extractor) field(name string) (cue.Value, bool) {
	v := x.block.LookupPath(cue.ParsePath(name))
	return v, v.Exists()
}

func (x *extractor) typeErr(name string, v cue.Value, want string, err error) {
	x.errs = append(x.errs, &LoadError{
		Code:    ErrCodeFieldType,
		Message: fmt.Sprintf("field %q: want %s: %v", name, want, err),
		Pos:     v.Pos(),
	})
}

func (x *extractor) str(name string, dst *string) {
	v, ok := x.field(name)
	if !ok {
		return
	}
	s, err := v.String()
	if err != nil {
		x.typeErr(name, v, "string", err)
		return
	}
	*dst = s
}

func (x *extractor) count(name string, dst *int) {
	v, ok := x.field(name)
	if !ok {
		return
	}
	n, err := v.Int64()
	if err != nil {
		x.typeErr(name, v, "int", err)
		return
	}
	*dst = int(n)
}

func (x *extractor) seconds(name string, dst *time.Duration) {
	v, ok := x.field(name)
	if !ok {
		return
	}
	f, err := v.Float64()
	if err != nil {
		x.typeErr(name, v, "number of seconds", err)
		return
	}
	*dst = time.Duration(f * float64(time.Second))
}

func (x *extractor) millis(name string, dst *time.Duration) {
	v, ok := x.field(name)
	if !ok {
		return
	}
	n, err := v.Int64()
	if err != nil {
		x.typeErr(name, v, "milliseconds as int", err)
		return
	}
	*dst = time.Duration(n) * time.Millisecond
}

func (x *extractor) seed(name string, dst **int64) {
	v, ok := x.field(name)
	if !ok {
		return
	}
	n, err := v.Int64()
	if err != nil {
		x.typeErr(name, v, "int seed", err)
		return
	}
	*dst = &n
}
