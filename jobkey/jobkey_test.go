package jobkey_test

import (
	"testing"
	"time"

	"github.com/xraph/jobrepo/jobkey"
)

func TestGenerateDeterministic(t *testing.T) {
	t.Parallel()

	a := jobkey.Parameters{
		"date":   jobkey.Identifying("2024-03-01"),
		"region": jobkey.Identifying("eu"),
	}
	b := jobkey.Parameters{
		"region": jobkey.Identifying("eu"),
		"date":   jobkey.Identifying("2024-03-01"),
	}
	if jobkey.Generate(a) != jobkey.Generate(b) {
		t.Error("key must not depend on map order")
	}
}

func TestGenerateIgnoresNonIdentifying(t *testing.T) {
	t.Parallel()

	base := jobkey.Parameters{"date": jobkey.Identifying("2024-03-01")}
	withExtra := jobkey.Parameters{
		"date":    jobkey.Identifying("2024-03-01"),
		"retries": jobkey.NonIdentifying(3),
	}
	if jobkey.Generate(base) != jobkey.Generate(withExtra) {
		t.Error("non-identifying parameters must not change the key")
	}
}

func TestGenerateDistinguishes(t *testing.T) {
	t.Parallel()

	a := jobkey.Generate(jobkey.Parameters{"date": jobkey.Identifying("2024-03-01")})
	b := jobkey.Generate(jobkey.Parameters{"date": jobkey.Identifying("2024-03-02")})
	if a == b {
		t.Error("different identifying values must produce different keys")
	}
}

func TestGenerateEmpty(t *testing.T) {
	t.Parallel()

	// md5 of the empty string
	const want = "d41d8cd98f00b204e9800998ecf8427e"
	if got := jobkey.Generate(nil); got != want {
		t.Errorf("Generate(nil) = %s, want %s", got, want)
	}
	onlyExtra := jobkey.Parameters{"retries": jobkey.NonIdentifying(3)}
	if got := jobkey.Generate(onlyExtra); got != want {
		t.Errorf("Generate(non-identifying only) = %s, want %s", got, want)
	}
}

func TestGenerateRendersValues(t *testing.T) {
	t.Parallel()

	a := jobkey.Generate(jobkey.Parameters{"a": jobkey.Identifying(1)})
	b := jobkey.Generate(jobkey.Parameters{"a": jobkey.Identifying("1")})
	if a != b {
		t.Error("an int and its decimal string render the same")
	}
}

func TestGenerateTimeIsUTC(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	local := ts.In(time.FixedZone("X", 3600))
	a := jobkey.Generate(jobkey.Parameters{"at": jobkey.Identifying(ts)})
	b := jobkey.Generate(jobkey.Parameters{"at": jobkey.Identifying(local)})
	if a != b {
		t.Error("equal instants in different zones must share a key")
	}
}

func TestParametersRoundTrip(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 3, 1, 6, 30, 0, 0, time.UTC)
	params := jobkey.Parameters{
		"date":    jobkey.Identifying(day),
		"region":  jobkey.Identifying("eu"),
		"limit":   jobkey.Identifying(int32(500)),
		"ratio":   jobkey.Identifying(0.25),
		"dry":     jobkey.NonIdentifying(true),
		"retries": jobkey.NonIdentifying(3),
	}

	encoded, err := jobkey.Encode(params)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := jobkey.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got, want := jobkey.Generate(decoded), jobkey.Generate(params); got != want {
		t.Errorf("key after round trip = %s, want %s", got, want)
	}
	tests := []struct {
		name string
		want any
	}{
		{"date", day},
		{"region", "eu"},
		{"limit", int64(500)},
		{"ratio", 0.25},
		{"dry", true},
		{"retries", int64(3)},
	}
	for _, tt := range tests {
		if got := decoded[tt.name].Value; got != tt.want {
			t.Errorf("%s = %#v, want %#v", tt.name, got, tt.want)
		}
	}
	if decoded["dry"].Identifying || !decoded["date"].Identifying {
		t.Error("identifying flags lost")
	}
}

func TestDecodeEmpty(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "{}", "null"} {
		params, err := jobkey.Decode(s)
		if err != nil || params != nil {
			t.Errorf("Decode(%q) = %v, %v", s, params, err)
		}
	}
	if s, _ := jobkey.Encode(nil); s != "{}" {
		t.Errorf("Encode(nil) = %q", s)
	}
	if _, err := jobkey.Decode(`{"x":{"type":"LONG","value":"abc"}}`); err == nil {
		t.Error("Decode accepted a malformed LONG")
	}
}

func TestParametersScan(t *testing.T) {
	t.Parallel()

	params := jobkey.Parameters{"n": jobkey.Identifying(int64(7))}
	v, err := params.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	for _, src := range []any{v, []byte(v.(string))} {
		var got jobkey.Parameters
		if err := got.Scan(src); err != nil {
			t.Fatalf("Scan(%T): %v", src, err)
		}
		if got["n"].Value != int64(7) {
			t.Errorf("Scan(%T) = %+v", src, got)
		}
	}

	var empty jobkey.Parameters
	if err := empty.Scan(nil); err != nil || empty != nil {
		t.Errorf("Scan(nil) = %v, %v", empty, err)
	}
	if err := empty.Scan(42); err == nil {
		t.Error("Scan(int) succeeded")
	}
}
