package quantity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCPU(t *testing.T) {
	tests := []struct {
		raw  string
		want Quantity
	}{
		{"250m", 250},
		{"0.25", 250},
		{"0.5", 500},
		{"2", 2000},
		{"1500u", 2},
		{"500u", 1},
		{"499u", 0},
		{"100000000n", 100},
		{"0.0005", 1},
		{"-0.0005", -1},
		{" 100m ", 100},
		{"0", 0},
		{"", 0},
		{"<none>", 0},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseCPU(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMemory(t *testing.T) {
	tests := []struct {
		raw  string
		want Quantity
	}{
		{"128Mi", 134217728},
		{"128000000", 128000000},
		{"1Ki", 1024},
		{"1k", 1000},
		{"1M", 1000000},
		{"1G", 1000000000},
		{"1Gi", 1073741824},
		{"1T", 1000000000000},
		{"1Ti", 1099511627776},
		{"1e3", 1000},
		{"1E3", 1000},
		{"1.5e3Ki", 1536000},
		{"2e2Mi", 209715200},
		{"1.5Ki", 1536},
		{"1500m", 1},
		{"0.5", 0},
		{"-1Mi", -1048576},
		{"0", 0},
		{"", 0},
		{"<none>", 0},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseMemory(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, raw := range []string{"abc", "1.5.5", "10x", "12Mb", "Mi", "Gi", "m", "k", "+", "-", ".", "+Mi", "1e3Kb", "--1"} {
		t.Run(raw, func(t *testing.T) {
			_, cpuErr := ParseCPU(raw)
			require.Error(t, cpuErr)
			assert.True(t, errors.Is(cpuErr, ErrInvalidQuantity))

			_, memErr := ParseMemory(raw)
			require.Error(t, memErr)
			assert.True(t, errors.Is(memErr, ErrInvalidQuantity))

			var qe *InvalidQuantityError
			require.True(t, errors.As(memErr, &qe))
			assert.Equal(t, "memory", qe.Kind)
			assert.Equal(t, raw, qe.Raw)
		})
	}
}

func TestParseOverflow(t *testing.T) {
	_, err := ParseCPU("9223372036854775807")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestZeroEquivalence(t *testing.T) {
	for _, raw := range []string{"", "0", "<none>", "0m"} {
		cpu, err := ParseCPU(raw)
		require.NoError(t, err)
		assert.True(t, cpu.IsZero(), raw)

		mem, err := ParseMemory(raw)
		require.NoError(t, err)
		assert.True(t, mem.IsZero(), raw)
	}
}

func TestRoundTrip(t *testing.T) {
	cpuInputs := []string{"250m", "0.25", "2", "1500u", "100000000n", "1k", "3.001"}
	for _, raw := range cpuInputs {
		q := MustParseCPU(raw)
		again, err := ParseCPU(FormatCPU(q))
		require.NoError(t, err)
		assert.Equal(t, q, again, "cpu %s -> %s", raw, FormatCPU(q))
	}

	memInputs := []string{"128Mi", "128000000", "1k", "1G", "1Ti", "1e3", "1.5e3Ki", "1500m", "1023"}
	for _, raw := range memInputs {
		q := MustParseMemory(raw)
		again, err := ParseMemory(FormatMemory(q))
		require.NoError(t, err)
		assert.Equal(t, q, again, "memory %s -> %s", raw, FormatMemory(q))
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "250m", FormatCPU(250))
	assert.Equal(t, "2", FormatCPU(2000))
	assert.Equal(t, "128Mi", FormatMemory(134217728))
}

func TestConversions(t *testing.T) {
	assert.InDelta(t, 0.25, Quantity(250).Cores(), 1e-9)
	assert.InDelta(t, 128.0, Quantity(134217728).MiB(), 1e-9)
}

func FuzzParseCPU(f *testing.F) {
	for _, seed := range []string{"250m", "0.5", "2", "1500u", "", "abc", "1e3"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		q, err := ParseCPU(raw)
		if err != nil {
			if !errors.Is(err, ErrInvalidQuantity) {
				t.Fatalf("error %v does not wrap ErrInvalidQuantity", err)
			}
			return
		}
		again, err := ParseCPU(FormatCPU(q))
		if err != nil || again != q {
			t.Fatalf("round trip of %q: %d -> %q -> %d (%v)", raw, q, FormatCPU(q), again, err)
		}
	})
}

func FuzzParseMemory(f *testing.F) {
	for _, seed := range []string{"128Mi", "1G", "1e3", "1.5e3Ki", "", "<none>", "12Mb"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		q, err := ParseMemory(raw)
		if err != nil {
			if !errors.Is(err, ErrInvalidQuantity) {
				t.Fatalf("error %v does not wrap ErrInvalidQuantity", err)
			}
			return
		}
		again, err := ParseMemory(FormatMemory(q))
		if err != nil || again != q {
			t.Fatalf("round trip of %q: %d -> %q -> %d (%v)", raw, q, FormatMemory(q), again, err)
		}
	})
}
