package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Locator
	}{
		{"bare css", "#ap_email", Locator{Kind: CSS, Query: "#ap_email"}},
		{"prefixed css", "css=input[name='email']", Locator{Kind: CSS, Query: "input[name='email']"}},
		{"xpath", "xpath=//a[@id='nav-orders']", Locator{Kind: XPath, Query: "//a[@id='nav-orders']"}},
		{"text with tag", "text=a|Your Orders", Locator{Kind: Text, Query: "a", Text: "Your Orders"}},
		{"text any tag", "text=Your password is incorrect", Locator{Kind: Text, Query: "*", Text: "Your password is incorrect"}},
		{"text empty tag", "text=|Sign in", Locator{Kind: Text, Query: "*", Text: "Sign in"}},
		{"whitespace trimmed", "  #continue ", Locator{Kind: CSS, Query: "#continue"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "   ", "xpath=", "css=", "text=", "text=a|"} {
		_, err := Parse(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestLocatorStringRoundTrip(t *testing.T) {
	for _, in := range []string{"#ap_email", "xpath=//div", "text=a|Your Orders", "text=Sign in"} {
		l := MustParse(in)
		again, err := Parse(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, again)
	}
}

func TestLocatorUnmarshalText(t *testing.T) {
	var l Locator
	require.NoError(t, l.UnmarshalText([]byte("text=button|Continue")))
	assert.Equal(t, Text, l.Kind)
	assert.Equal(t, "button", l.Query)
	assert.Equal(t, "Continue", l.Text)

	assert.Error(t, l.UnmarshalText([]byte("")))
}

func TestParseAllKeepsOrder(t *testing.T) {
	got, err := ParseAll([]string{"#a", "#b", "xpath=//c"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "#a", got[0].Query)
	assert.Equal(t, "#b", got[1].Query)
	assert.Equal(t, XPath, got[2].Kind)

	_, err = ParseAll([]string{"#a", ""})
	assert.Error(t, err)
}
