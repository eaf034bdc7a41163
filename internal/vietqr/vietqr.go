// Package vietqr builds the checksummed EMVCo TLV payload encoding a
// Vietnamese bank transfer (NAPAS 247), for rendering as a QR code on an
// invoice. Encoding is deterministic: the same request always yields a
// byte-identical payload.
package vietqr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vuquang/nhatro/internal/fault"
)

// EMVCo tag ids used by the NAPAS transfer payload.
const (
	tagPayloadFormat   = "00"
	tagInitiation      = "01"
	tagMerchantAccount = "38"
	tagCurrency        = "53"
	tagAmount          = "54"
	tagCountry         = "58"
	tagMerchantName    = "59"
	tagAdditionalData  = "62"
	tagCRC             = "63"

	// Nested under tag 38.
	subTagApplicationID = "00"
	subTagBeneficiary   = "01"
	subTagServiceCode   = "02"

	// Nested under 38/01.
	subTagBankBIN = "00"
	subTagAccount = "01"

	// Nested under tag 62.
	subTagMemo = "01"
)

const (
	napasApplicationID = "A000000727"
	serviceAccount     = "QRIBFTTA" // transfer to account number
	currencyVND        = "704"
	countryVN          = "VN"
	maxNameLen         = 25
)

// Request describes one payable transfer.
type Request struct {
	BankBIN       string // acquirer BIN, e.g. "970407"
	AccountNumber string
	AccountName   string // optional, truncated to 25 characters
	Amount        int64  // whole đồng; omitted from the payload when <= 0
	Memo          string // optional transfer note, e.g. an invoice code
}

// writer accumulates TLV fields. Every field is ID(2) + length(2,
// zero-padded decimal) + value; nested blocks are built with a child
// writer and wrapped once more under their outer tag.
type writer struct {
	b strings.Builder
}

func (w *writer) writeTag(id, value string) {
	w.b.WriteString(id)
	w.b.WriteString(fmt.Sprintf("%02d", len(value)))
	w.b.WriteString(value)
}

func (w *writer) nested(id string, fn func(inner *writer)) {
	var inner writer
	fn(&inner)
	w.writeTag(id, inner.String())
}

func (w *writer) String() string { return w.b.String() }

// Encode builds the complete payload for req, ending in the CRC tag.
// Construction is all-or-nothing: a missing bank BIN or account number
// rejects the request before any encoding happens.
func Encode(req Request) (string, error) {
	if req.BankBIN == "" {
		return "", fault.Validation("bank BIN is required for a transfer QR")
	}
	if req.AccountNumber == "" {
		return "", fault.Validation("account number is required for a transfer QR")
	}

	var w writer
	w.writeTag(tagPayloadFormat, "01")
	if req.Amount > 0 {
		// Dynamic QR: the amount is fixed by the payload.
		w.writeTag(tagInitiation, "12")
	} else {
		w.writeTag(tagInitiation, "11")
	}
	w.nested(tagMerchantAccount, func(acc *writer) {
		acc.writeTag(subTagApplicationID, napasApplicationID)
		acc.nested(subTagBeneficiary, func(b *writer) {
			b.writeTag(subTagBankBIN, req.BankBIN)
			b.writeTag(subTagAccount, req.AccountNumber)
		})
		acc.writeTag(subTagServiceCode, serviceAccount)
	})
	w.writeTag(tagCurrency, currencyVND)
	if req.Amount > 0 {
		w.writeTag(tagAmount, strconv.FormatInt(req.Amount, 10))
	}
	w.writeTag(tagCountry, countryVN)
	if name := truncate(req.AccountName, maxNameLen); name != "" {
		w.writeTag(tagMerchantName, name)
	}
	if req.Memo != "" {
		w.nested(tagAdditionalData, func(add *writer) {
			add.writeTag(subTagMemo, req.Memo)
		})
	}

	// The CRC covers everything so far plus its own tag id and length
	// ("6304") with an empty value. Scanning apps reject payloads that
	// do not reproduce this framing exactly.
	payload := w.String() + tagCRC + "04"
	return payload + fmt.Sprintf("%04X", crc16([]byte(payload))), nil
}

// Verify recomputes the trailing CRC of a payload and reports whether it
// matches.
func Verify(payload string) bool {
	if len(payload) < 8 {
		return false
	}
	body, sum := payload[:len(payload)-4], payload[len(payload)-4:]
	if !strings.HasSuffix(body, tagCRC+"04") {
		return false
	}
	return fmt.Sprintf("%04X", crc16([]byte(body))) == sum
}

// truncate caps s at n bytes without splitting a multibyte rune, so the
// payload stays valid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
