package tracker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		expect  Tracker
		wantErr bool
	}{
		{in: "LoadAverage1m", expect: LoadAverage1m},
		{in: "loadaverage15m", expect: LoadAverage15m},
		{in: "load_average_5m", expect: LoadAverage5m},
		{in: "CPU", expect: Cpu},
		{in: "drive_used_bytes", expect: DriveUsedBytes},
		{in: "free-mem", expect: FreeMem},
		{in: "swap", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownTracker)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expect, got)
		})
	}
}

func TestTextRoundTrip(t *testing.T) {
	for _, tr := range All() {
		b, err := tr.MarshalText()
		require.NoError(t, err)
		var back Tracker
		require.NoError(t, back.UnmarshalText(b))
		require.Equal(t, tr, back)
	}
	_, err := Tracker(99).MarshalText()
	require.Error(t, err)
	require.Equal(t, "Tracker(99)", Tracker(99).String())
}

func TestEnablement(t *testing.T) {
	var none Enablement
	require.False(t, none.Enabled(Cpu))
	require.False(t, none.AnyEnabled(DefaultMemoryTags))

	e, err := ParseEnablement(map[string]bool{"FreeMem": true, "total_mem": false})
	require.NoError(t, err)
	require.True(t, e.Enabled(FreeMem))
	require.False(t, e.Enabled(TotalMem))
	require.False(t, e.Enabled(LoadAverage1m))
	require.True(t, e.AnyEnabled(DefaultMemoryTags))
	require.False(t, e.AnyEnabled(DefaultDiskTags))

	_, err = ParseEnablement(map[string]bool{"bogus": true})
	require.ErrorIs(t, err, ErrUnknownTracker)

	all := AllEnabled()
	require.Len(t, all, len(All()))
	c := all.Clone()
	c[Cpu] = false
	require.True(t, all.Enabled(Cpu))
}

func TestDescriptorValidate(t *testing.T) {
	loads := []Tracker{LoadAverage1m, LoadAverage5m, LoadAverage15m}
	require.NoError(t, DefaultLoadAverageTags.Validate(loads...))
	require.NoError(t, Descriptor{}.Validate(loads...))

	err := Descriptor{{LoadAverage1m, "1m"}, {LoadAverage1m, "one"}}.Validate(loads...)
	require.ErrorContains(t, err, "listed twice")

	err = Descriptor{{FreeMem, "free"}}.Validate(loads...)
	require.ErrorContains(t, err, "does not belong")

	err = Descriptor{{Tracker(0), "x"}}.Validate(loads...)
	require.ErrorIs(t, err, ErrUnknownTracker)
}
