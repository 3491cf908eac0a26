package neoconsole

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersionPin(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: ""},
		{in: "   ", want: ""},
		{in: "2.1", want: "2.1"},
		{in: "2.1.5", want: "2.1"},
		{in: "2.1.5-RC1", want: "2.1"},
		{in: " 3.5 ", want: "3.5"},
		{in: "10.12.1", want: "10.12"},
		{in: "abc", wantErr: true},
		{in: "2", wantErr: true},
		{in: "v2.1", wantErr: true},
		{in: "2.x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			pin, err := ParseVersionPin(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidVersion)
				var e *Error
				require.True(t, errors.As(err, &e))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, pin.String())
			assert.Equal(t, tt.want != "", pin.IsSet())
		})
	}
}

func TestVersionPin_Compare(t *testing.T) {
	assert.Equal(t, 0, MustVersionPin("2.1").Compare(MustVersionPin("2.1.7")))
	assert.Negative(t, MustVersionPin("2.9").Compare(MustVersionPin("2.10")))
	assert.Positive(t, MustVersionPin("4.0").Compare(MustVersionPin("3.5")))
	assert.Positive(t, VersionPin{}.Compare(MustVersionPin("99.0")))
	assert.Negative(t, MustVersionPin("99.0").Compare(VersionPin{}))
	assert.Equal(t, 0, VersionPin{}.Compare(VersionPin{}))

	assert.True(t, MustVersionPin("3.0").AtLeast(MustVersionPin("3.0")))
	assert.False(t, MustVersionPin("2.3").AtLeast(MustVersionPin("3.0")))
	assert.True(t, VersionPin{}.AtLeast(MustVersionPin("4.0")))
}

func TestMustVersionPin_Panics(t *testing.T) {
	assert.Panics(t, func() { MustVersionPin("abc") })
}

func TestError(t *testing.T) {
	cause := errors.New("boom")
	err := newError(KindQueryFailed, "MATCH (n) RETURN n", cause)

	assert.ErrorIs(t, err, ErrQueryFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrImportFailed)
	assert.Equal(t, "neoconsole: query failed: boom", err.Error())
	assert.Equal(t, "neoconsole: service stopped", newError(KindServiceStopped, "", nil).Error())

	var e *Error
	require.True(t, errors.As(error(err), &e))
	assert.Equal(t, "MATCH (n) RETURN n", e.Input)
	assert.Equal(t, KindQueryFailed, e.Kind)
}
