package constants

import "strings"

// UnknownBank is the folder used when a receipt's bank cannot be identified.
const UnknownBank = "unknown_classification"

// bankSynonyms maps the free-form names the vision model tends to return to
// the canonical label used as folder name.
var bankSynonyms = map[string]string{
	"nu":                      "Nubank",
	"nu pagamentos":           "Nubank",
	"nubank":                  "Nubank",
	"itau":                    "Itau",
	"itaú":                    "Itau",
	"itau unibanco":           "Itau",
	"banco do brasil":         "Banco do Brasil",
	"bb":                      "Banco do Brasil",
	"bradesco":                "Bradesco",
	"santander":               "Santander",
	"caixa":                   "Caixa",
	"caixa economica federal": "Caixa",
	"caixa econômica federal": "Caixa",
	"inter":                   "Inter",
	"banco inter":             "Inter",
	"c6":                      "C6 Bank",
	"c6 bank":                 "C6 Bank",
	"picpay":                  "PicPay",
	"mercado pago":            "Mercado Pago",
	"pagbank":                 "PagBank",
	"pagseguro":               "PagBank",
	"sicoob":                  "Sicoob",
	"sicredi":                 "Sicredi",
}

// CanonicalBank maps a raw bank label to its canonical spelling. The second
// return is false when the label is unknown, in which case the trimmed input
// is returned as is.
func CanonicalBank(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if b, ok := bankSynonyms[strings.ToLower(trimmed)]; ok {
		return b, true
	}
	return trimmed, false
}
