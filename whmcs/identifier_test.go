package whmcs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atendai/atendai/whmcs"
)

func TestDetectIdentifier(t *testing.T) {
	tests := []struct {
		raw  string
		want whmcs.IdentifierKind
	}{
		{"cliente@email.com", whmcs.KindEmail},
		{"suporte@empresa.com.br", whmcs.KindEmail},
		{"42", whmcs.KindClientID},
		{"12345678", whmcs.KindClientID},
		{"52998224725", whmcs.KindCPF},
		{"529.982.247-25", whmcs.KindCPF},
		{"11444777000161", whmcs.KindCNPJ},
		{"11.444.777/0001-61", whmcs.KindCNPJ},
		{"example.com", whmcs.KindDomain},
		{"meusite.com.br", whmcs.KindDomain},
		{"11111111111", whmcs.KindUnknown},  // repeated digits, fails CPF checksum
		{"52998224726", whmcs.KindUnknown},  // bad check digit
		{"joão da silva", whmcs.KindUnknown},
		{"", whmcs.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			require.Equal(t, tt.want, whmcs.DetectIdentifier(tt.raw))
		})
	}
}

func TestValidCPF(t *testing.T) {
	require.True(t, whmcs.ValidCPF("52998224725"))
	require.False(t, whmcs.ValidCPF("52998224724"))
	require.False(t, whmcs.ValidCPF("00000000000"))
	require.False(t, whmcs.ValidCPF("123"))
}

func TestValidCNPJ(t *testing.T) {
	require.True(t, whmcs.ValidCNPJ("11444777000161"))
	require.False(t, whmcs.ValidCNPJ("11444777000160"))
	require.False(t, whmcs.ValidCNPJ("00000000000000"))
	require.False(t, whmcs.ValidCNPJ("123"))
}

func TestDigits(t *testing.T) {
	require.Equal(t, "52998224725", whmcs.Digits("529.982.247-25"))
	require.Equal(t, "11444777000161", whmcs.Digits("11.444.777/0001-61"))
}
