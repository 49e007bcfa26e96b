package news

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanHeadline(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "Bitcoin  Surges\n  Past   $95K on ETF Inflows", "Bitcoin Surges Past $95K on ETF Inflows"},
		{"drops nav fragments", "Markets", ""},
		{"drops empty", "   ", ""},
		{"keeps full headline", "Fed Minutes Signal Slower Cuts, Bitcoin Steadies", "Fed Minutes Signal Slower Cuts, Bitcoin Steadies"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanHeadline(tc.in))
		})
	}
}

func TestDedupePreservesOrder(t *testing.T) {
	in := []string{
		"Bitcoin Holds Above Key Support",
		"ETF Inflows Hit Weekly Record",
		"bitcoin holds above key support",
		"Miners Sell Into Strength",
	}
	assert.Equal(t, []string{
		"Bitcoin Holds Above Key Support",
		"ETF Inflows Hit Weekly Record",
		"Miners Sell Into Strength",
	}, Dedupe(in))
}
