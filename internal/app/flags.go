package app

import (
	"flag"
	"fmt"
	"os"
)

// StringVar registers one string flag under a short and a long name.
func StringVar(fs *flag.FlagSet, p *string, short, long, value, usage string) {
	fs.StringVar(p, short, value, usage)
	fs.StringVar(p, long, value, usage+" (shorthand -"+short+")")
}

// Fatalf prints to stderr and exits with status 1.
func Fatalf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format+"\n", args...); err != nil {
		fmt.Printf(format+"\n", args...)
	}
	os.Exit(1)
}
