package bytesize

import "testing"

func TestParseByteSize(t *testing.T) {
	cases := []struct {
		in   string
		want ByteSize
	}{
		{"0", 0},
		{"1024", 1024},
		{"1Ki", KiB},
		{"1KiB", KiB},
		{"512Mi", 512 * MiB},
		{"1Gi", GiB},
		{"2GiB", 2 * GiB},
		{"1Ti", TiB},
		{"1K", KB},
		{"100MB", 100 * MB},
		{"1G", GB},
		{"1TB", TB},
		{"10B", 10},
		{"1.5Gi", ByteSize(1.5 * float64(GiB))},
		{"  1Gi  ", GiB},
		{"1gi", GiB},
	}
	for _, tc := range cases {
		got, err := ParseByteSize(tc.in)
		if err != nil {
			t.Errorf("ParseByteSize(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseByteSize(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseByteSizeErrors(t *testing.T) {
	for _, in := range []string{"", "  ", "Gi", "1X", "1.2.3Mi", "-5Mi"} {
		if _, err := ParseByteSize(in); err == nil {
			t.Errorf("ParseByteSize(%q): expected error", in)
		}
	}
}

func TestUnmarshalText(t *testing.T) {
	var b ByteSize
	if err := b.UnmarshalText([]byte("256Mi")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if b != 256*MiB {
		t.Errorf("got %d, want %d", b, 256*MiB)
	}

	if err := b.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("UnmarshalText(bogus): expected error")
	}
}

func TestString(t *testing.T) {
	cases := []struct {
		in   ByteSize
		want string
	}{
		{0, "0B"},
		{512, "512B"},
		{KiB, "1.00KiB"},
		{1536, "1.50KiB"},
		{MiB, "1.00MiB"},
		{GiB, "1.00GiB"},
		{TiB, "1.00TiB"},
	}
	for _, tc := range cases {
		if got := tc.in.String(); got != tc.want {
			t.Errorf("ByteSize(%d).String() = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestConversions(t *testing.T) {
	b := 4 * GiB
	if b.Uint64() != uint64(4*GiB) {
		t.Errorf("Uint64: got %d", b.Uint64())
	}
	if b.Int64() != int64(4*GiB) {
		t.Errorf("Int64: got %d", b.Int64())
	}
}
