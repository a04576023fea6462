package whmcs

import (
	"regexp"
	"strings"
)

// IdentifierKind classifies how a raw client identifier should be looked up.
type IdentifierKind string

const (
	KindEmail    IdentifierKind = "email"
	KindClientID IdentifierKind = "client_id"
	KindCPF      IdentifierKind = "cpf"
	KindCNPJ     IdentifierKind = "cnpj"
	KindDomain   IdentifierKind = "domain"
	KindUnknown  IdentifierKind = "unknown"
)

var (
	emailRe  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	domainRe = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)
	digitsRe = regexp.MustCompile(`\D`)
)

// DetectIdentifier auto-detects the identifier kind. Pure-numeric short
// strings are treated as WHMCS client ids; 11 and 14 digit strings are only
// CPF/CNPJ when their check digits validate, otherwise they fall through to
// a generic search.
func DetectIdentifier(raw string) IdentifierKind {
	s := strings.TrimSpace(raw)
	if s == "" {
		return KindUnknown
	}

	if emailRe.MatchString(s) {
		return KindEmail
	}

	digits := digitsRe.ReplaceAllString(s, "")
	onlyDigits := len(digits) == len(strings.ReplaceAll(strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), "-", ""), "/", ""))

	if onlyDigits {
		switch {
		case len(digits) >= 1 && len(digits) <= 8 && digits == s:
			return KindClientID
		case len(digits) == 11 && ValidCPF(digits):
			return KindCPF
		case len(digits) == 14 && ValidCNPJ(digits):
			return KindCNPJ
		}
	}

	if domainRe.MatchString(s) {
		return KindDomain
	}

	return KindUnknown
}

// Digits strips formatting from CPF/CNPJ style identifiers.
func Digits(raw string) string {
	return digitsRe.ReplaceAllString(raw, "")
}

// ValidCPF verifies the two check digits of an 11-digit CPF.
func ValidCPF(cpf string) bool {
	if len(cpf) != 11 || allSame(cpf) {
		return false
	}

	for _, pos := range []int{9, 10} {
		sum := 0
		for i := 0; i < pos; i++ {
			sum += int(cpf[i]-'0') * (pos + 1 - i)
		}
		check := (sum * 10) % 11
		if check == 10 {
			check = 0
		}
		if check != int(cpf[pos]-'0') {
			return false
		}
	}
	return true
}

// ValidCNPJ verifies the two check digits of a 14-digit CNPJ.
func ValidCNPJ(cnpj string) bool {
	if len(cnpj) != 14 || allSame(cnpj) {
		return false
	}

	weights := [][]int{
		{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2},
		{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2},
	}
	for k, w := range weights {
		sum := 0
		for i, weight := range w {
			sum += int(cnpj[i]-'0') * weight
		}
		check := sum % 11
		if check < 2 {
			check = 0
		} else {
			check = 11 - check
		}
		if check != int(cnpj[12+k]-'0') {
			return false
		}
	}
	return true
}

func allSame(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
