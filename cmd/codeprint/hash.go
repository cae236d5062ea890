package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/chazu/codeprint/fingerprint"
)

// runHash handles `codeprint hash`.
//
//	codeprint hash FILE
//	codeprint hash --containing whole.js --kind construct unit.js
func runHash(e *env, args []string) error {
	fs := newFlagSet(e, "hash", "[options] FILE")
	kindName := fs.StringP("kind", "k", "call", "Specialization kind: call or construct")
	digest := fs.StringP("digest", "d", "", "Digest override (default from codeprint.toml)")
	containing := fs.String("containing", "", "File holding the full source the unit is embedded in")
	both := fs.BoolP("both", "b", false, "Print the call and construct fingerprints")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("hash takes exactly one file")
	}

	cfg := *e.cfg
	if *digest != "" {
		cfg.Fingerprint.Digest = *digest
	}
	h, err := cfg.Hasher()
	if err != nil {
		return err
	}

	unit, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	whole := unit
	if *containing != "" {
		whole, err = os.ReadFile(*containing)
		if err != nil {
			return err
		}
	}
	if h.Sampled(string(unit)) {
		log.Infof("%s reaches the %d-byte sample threshold; hashing a sample of the containing text", fs.Arg(0), h.SampleThreshold())
	}

	kinds := []fingerprint.Kind{fingerprint.KindCall, fingerprint.KindConstruct}
	if !*both {
		k, err := fingerprint.ParseKind(*kindName)
		if err != nil {
			return err
		}
		kinds = []fingerprint.Kind{k}
	}
	for _, k := range kinds {
		f := h.Compute(string(unit), string(whole), k)
		fmt.Fprintf(e.stdout, "%s\t%08x\t%s\t%s\n", f, uint32(f), k, fs.Arg(0))
	}
	return nil
}

// runEncode handles `codeprint encode N...`. Values accept Go integer
// syntax (0x prefixes included).
func runEncode(e *env, args []string) error {
	fs := newFlagSet(e, "encode", "N...")
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, a := range fs.Args() {
		v, err := strconv.ParseUint(a, 0, 32)
		if err != nil {
			return fmt.Errorf("encode %q: %w", a, err)
		}
		fmt.Fprintln(e.stdout, fingerprint.Encode(uint32(v)))
	}
	return nil
}

// runDecode handles `codeprint decode CODE...`.
func runDecode(e *env, args []string) error {
	fs := newFlagSet(e, "decode", "CODE...")
	hex := fs.BoolP("hex", "x", false, "Print values in hexadecimal")
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, code := range fs.Args() {
		v, err := fingerprint.Decode(code)
		if err != nil {
			return err
		}
		if *hex {
			fmt.Fprintf(e.stdout, "0x%08x\n", v)
		} else {
			fmt.Fprintln(e.stdout, v)
		}
	}
	return nil
}
