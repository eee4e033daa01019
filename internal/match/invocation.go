// Package match runs one external controller process per scheduled match.
package match

import (
	"strconv"
	"strings"
)

// Invocation is everything the controller needs to play one match.
type Invocation struct {
	// Interpreter is an optional command prefix, e.g. "python3".
	Interpreter []string
	Controller  string
	Seats       [4]string // entry file paths, seat order
	SeatSeeds   [4]uint64
	Seed        uint64
	Show        bool
}

// NewInvocation seats paths in order and gives every seat the match seed.
func NewInvocation(controller string, interpreter []string, paths [4]string, seed uint64) Invocation {
	return Invocation{
		Interpreter: interpreter,
		Controller:  controller,
		Seats:       paths,
		SeatSeeds:   [4]uint64{seed, seed, seed, seed},
		Seed:        seed,
		Show:        true,
	}
}

// Args serializes the invocation as argv:
//
//	[interpreter...] controller 0 "<path0> <seed0>" ... 3 "<path3> <seed3>" --seed <seed> [--show]
func (inv Invocation) Args() []string {
	args := make([]string, 0, len(inv.Interpreter)+1+2*len(inv.Seats)+3)
	args = append(args, inv.Interpreter...)
	args = append(args, inv.Controller)
	for i, path := range inv.Seats {
		args = append(args, strconv.Itoa(i), path+" "+strconv.FormatUint(inv.SeatSeeds[i], 10))
	}
	args = append(args, "--seed", strconv.FormatUint(inv.Seed, 10))
	if inv.Show {
		args = append(args, "--show")
	}
	return args
}

// String renders the argv for logs, quoting arguments that contain spaces.
func (inv Invocation) String() string {
	args := inv.Args()
	parts := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\"") {
			parts[i] = strconv.Quote(a)
		} else {
			parts[i] = a
		}
	}
	return strings.Join(parts, " ")
}
