package fingerprint

import (
	"fmt"
	"math/bits"
	"math/rand"
	"strings"
	"testing"
	"time"
)

func TestCompute_Scenario(t *testing.T) {
	const src = "function f(){}"
	call := Compute(src, src, KindCall)
	construct := Compute(src, src, KindConstruct)

	if call != 0x1014d869 {
		t.Errorf("call: got 0x%08x, want 0x1014d869", uint32(call))
	}
	if construct != 0x1014d868 {
		t.Errorf("construct: got 0x%08x, want 0x1014d868", uint32(construct))
	}
	if n := bits.OnesCount32(uint32(call ^ construct)); n != 1 {
		t.Errorf("call and construct differ in %d bits, want 1", n)
	}
	if call.String() != "asqdSv" {
		t.Errorf("call code: got %q, want asqdSv", call.String())
	}
}

func TestCompute_Deterministic(t *testing.T) {
	texts := []string{"", "a", "function f(){}", strings.Repeat("x = x + 1;\n", 500)}
	for _, text := range texts {
		for _, kind := range []Kind{KindCall, KindConstruct} {
			a := Compute(text, text, kind)
			b := Compute(text, text, kind)
			if a != b {
				t.Errorf("Compute(%q, %s) not deterministic: %s vs %s", text, kind, a, b)
			}
		}
	}
}

func TestCompute_DiscriminatorSeparation(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 1000; i++ {
		text := randomText(rng)
		call := Compute(text, text, KindCall)
		construct := Compute(text, text, KindConstruct)
		if call^construct != 1 {
			t.Fatalf("%q: call %08x construct %08x differ by more than the low bit", text, uint32(call), uint32(construct))
		}
		if !call.IsSet() || !construct.IsSet() {
			t.Fatalf("%q: zero fingerprint", text)
		}
	}
}

func TestCompute_UnknownKindsFingerprintAsCall(t *testing.T) {
	const src = "function f(){}"
	call := Compute(src, src, KindCall)
	for _, k := range []Kind{2, 3, 0xff} {
		if got := Compute(src, src, k); got != call {
			t.Errorf("Compute(%s): got %s, want the call fingerprint %s", k, got, call)
		}
	}
}

func TestCompute_NeverReserved(t *testing.T) {
	n := 1000000
	if testing.Short() {
		n = 10000
	}
	rng := rand.New(rand.NewSource(4))
	check := func(text string) {
		for _, kind := range []Kind{KindCall, KindConstruct} {
			if f := Compute(text, text, kind); f == 0 || f == 1 {
				t.Fatalf("Compute(%q, %s) = %d", text, kind, f)
			}
		}
	}
	check("")
	for i := 0; i < n; i++ {
		check(randomText(rng))
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want uint32
	}{
		{0, ReservedBump},
		{1, ReservedBump + 1},
		{2, 2},
		{3, 3},
		{^uint32(0), ^uint32(0)},
	}
	for _, tc := range cases {
		if got := normalize(tc.in); got != tc.want {
			t.Errorf("normalize(%d): got 0x%08x, want 0x%08x", tc.in, got, tc.want)
		}
	}
	// After normalization the low bit toggle can never reach 0 or 1.
	for _, v := range []uint32{0, 1, 2, 3} {
		for _, k := range []Kind{KindCall, KindConstruct} {
			if r := normalize(v) ^ uint32(k); r < 2 {
				t.Errorf("normalize(%d) ^ %d = %d", v, k, r)
			}
		}
	}
}

func TestCompute_UnitTextSelectsDigestInput(t *testing.T) {
	unit := "function g(){}"
	a := Compute(unit, "var a;"+unit, KindCall)
	b := Compute(unit, "var b;"+unit, KindCall)
	if a != b {
		t.Errorf("containing text leaked into common path: %s vs %s", a, b)
	}
}

func TestCompute_SampledUsesContainingText(t *testing.T) {
	h, err := NewHasher(WithSampleThreshold(4))
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	if !h.Sampled("abcd") || h.Sampled("abc") {
		t.Fatal("Sampled should switch at exactly the threshold")
	}

	a := h.Compute("unit-one", "container", KindCall)
	b := h.Compute("unit-two", "container", KindCall)
	if a != b {
		t.Errorf("sampled path should ignore unit text: %s vs %s", a, b)
	}
	c := h.Compute("unit-one", "container!", KindCall)
	if a == c {
		t.Errorf("sampled path should depend on containing text length")
	}
}

func TestCompute_LargeInputBounded(t *testing.T) {
	const threshold = 1 << 16
	h, err := NewHasher(WithSampleThreshold(threshold))
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	huge := strings.Repeat("0123456789abcdef", 10*threshold/16)

	start := time.Now()
	a := h.Compute(huge, huge, KindCall)
	b := h.Compute(huge, huge, KindCall)
	if a != b {
		t.Errorf("huge input not deterministic: %s vs %s", a, b)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("huge input took %s", elapsed)
	}
}

func TestSampleText_Bounded(t *testing.T) {
	for _, n := range []int{0, 1, 1023, 1024, 1025, 4096, 1 << 20, 8<<20 + 7} {
		text := strings.Repeat("z", n)
		data := sampleText(text)
		maxLen := 8 + 2*(SampleWindows+1)
		if len(data) > maxLen {
			t.Errorf("n=%d: sampled %d bytes, limit %d", n, len(data), maxLen)
		}
		if n > 0 && len(data) <= 8 {
			t.Errorf("n=%d: no samples written", n)
		}
	}
}

func TestSampleText_Layout(t *testing.T) {
	data := sampleText("AB")
	want := []byte{2, 0, 0, 0, 0, 0, 0, 0, 'A', 0, 'B', 0}
	if string(data) != string(want) {
		t.Errorf("got % x, want % x", data, want)
	}
}

func TestHasher_Digests(t *testing.T) {
	const src = "function f(){}"
	seen := make(map[Fingerprint]string)
	for _, name := range DigestNames() {
		d, err := DigestByName(name)
		if err != nil {
			t.Fatalf("DigestByName(%q): %v", name, err)
		}
		h, err := NewHasher(WithDigest(d))
		if err != nil {
			t.Fatalf("NewHasher(%s): %v", name, err)
		}
		if h.Digest().Name() != name {
			t.Errorf("Digest().Name(): got %q, want %q", h.Digest().Name(), name)
		}
		f := h.Compute(src, src, KindCall)
		if prev, ok := seen[f]; ok {
			t.Errorf("%s and %s produced the same fingerprint %s", prev, name, f)
		}
		seen[f] = name
	}

	h, _ := NewHasher(WithDigest(SHA256))
	if got := h.Compute(src, src, KindCall); got != 0xce375163 {
		t.Errorf("sha256: got 0x%08x, want 0xce375163", uint32(got))
	}
}

func TestNewHasher_Validation(t *testing.T) {
	if _, err := NewHasher(WithSampleThreshold(0)); err == nil {
		t.Error("expected error for zero threshold")
	}
	if _, err := NewHasher(WithDigest(nil)); err == nil {
		t.Error("expected error for nil digest")
	}
	if _, err := DigestByName("md5"); err == nil {
		t.Error("expected error for unknown digest")
	}
}

func TestParseFingerprint(t *testing.T) {
	f := Compute("function f(){}", "function f(){}", KindConstruct)
	got, err := ParseFingerprint(f.String())
	if err != nil {
		t.Fatalf("ParseFingerprint: %v", err)
	}
	if got != f {
		t.Errorf("got %s, want %s", got, f)
	}
	if _, err := ParseFingerprint("nope"); err == nil {
		t.Error("expected error for short code")
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindCall, KindConstruct} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q): got %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKind("apply"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func randomText(rng *rand.Rand) string {
	n := rng.Intn(48)
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteRune(rune(0x20 + rng.Intn(0x250)))
	}
	return sb.String()
}

func BenchmarkCompute(b *testing.B) {
	src := fmt.Sprintf("function f(a) { return %s; }", strings.Repeat("a + ", 64))
	for i := 0; i < b.N; i++ {
		Compute(src, src, KindCall)
	}
}
