package vietqr

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/vuquang/nhatro/internal/fault"
)

func TestEncode_DynamicPayload(t *testing.T) {
	payload, err := Encode(Request{
		BankBIN:       "970407",
		AccountNumber: "0123456789",
		Amount:        500_000,
		Memo:          "INV001",
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if !strings.HasPrefix(payload, "000201") {
		t.Errorf("payload starts %q, want 000201", payload[:6])
	}
	// Dynamic QR: initiation method 12 when an amount is fixed.
	if !strings.Contains(payload, "010212") {
		t.Errorf("payload missing dynamic initiation tag: %s", payload)
	}
	if !strings.Contains(payload, "5303704") {
		t.Errorf("payload missing VND currency tag: %s", payload)
	}
	if !strings.Contains(payload, "5406500000") {
		t.Errorf("payload missing amount tag: %s", payload)
	}
	if !strings.Contains(payload, "970407") {
		t.Errorf("payload missing bank BIN: %s", payload)
	}
	if !strings.Contains(payload, "INV001") {
		t.Errorf("payload missing memo: %s", payload)
	}
	// Trailer: "6304" then four uppercase hex digits.
	if len(payload) < 8 || payload[len(payload)-8:len(payload)-4] != "6304" {
		t.Errorf("payload does not end with CRC tag: %s", payload)
	}
	for _, c := range payload[len(payload)-4:] {
		if !strings.ContainsRune("0123456789ABCDEF", c) {
			t.Errorf("CRC %q is not uppercase hex", payload[len(payload)-4:])
			break
		}
	}

	if !Verify(payload) {
		t.Errorf("Verify rejected a freshly encoded payload")
	}
}

func TestEncode_StaticWhenNoAmount(t *testing.T) {
	payload, err := Encode(Request{BankBIN: "970436", AccountNumber: "11122233344"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(payload, "010211") {
		t.Errorf("payload missing static initiation tag: %s", payload)
	}
	// No amount tag: country follows currency directly.
	if !strings.Contains(payload, "53037045802VN") {
		t.Errorf("amount tag present in a static payload: %s", payload)
	}
}

func TestEncode_Deterministic(t *testing.T) {
	req := Request{
		BankBIN:       "970407",
		AccountNumber: "0123456789",
		AccountName:   "NGUYEN VAN A",
		Amount:        1_250_000,
		Memo:          "P101 T2",
	}
	a, err := Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if a != b {
		t.Errorf("same request encoded differently:\n%s\n%s", a, b)
	}
}

func TestEncode_NameTruncated(t *testing.T) {
	payload, err := Encode(Request{
		BankBIN:       "970407",
		AccountNumber: "0123456789",
		AccountName:   "CONG TY TNHH MOT THANH VIEN NHA TRO SAI GON",
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// 25-character cap on the merchant name field.
	if !strings.Contains(payload, "5925CONG TY TNHH MOT THANH VI") {
		t.Errorf("merchant name not truncated to 25: %s", payload)
	}
}

func TestEncode_NameTruncatedOnRuneBoundary(t *testing.T) {
	// Đ is two bytes and straddles the 25-byte cap; the cut must back
	// off to byte 24 rather than emit half a rune.
	payload, err := Encode(Request{
		BankBIN:       "970407",
		AccountNumber: "0123456789",
		AccountName:   "NGUYEN VAN LONG HOSTEL AĐB",
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !utf8.ValidString(payload) {
		t.Fatalf("payload is not valid UTF-8: %q", payload)
	}
	if !strings.Contains(payload, "5924NGUYEN VAN LONG HOSTEL A") {
		t.Errorf("merchant name not cut on rune boundary: %s", payload)
	}
	if !Verify(payload) {
		t.Errorf("payload fails CRC verification: %s", payload)
	}
}

func TestEncode_MissingFields(t *testing.T) {
	if _, err := Encode(Request{AccountNumber: "123"}); !fault.IsKind(err, fault.KindValidation) {
		t.Errorf("missing BIN: got %v, want validation error", err)
	}
	if _, err := Encode(Request{BankBIN: "970407"}); !fault.IsKind(err, fault.KindValidation) {
		t.Errorf("missing account: got %v, want validation error", err)
	}
}

func TestVerify_DetectsTampering(t *testing.T) {
	payload, err := Encode(Request{
		BankBIN:       "970407",
		AccountNumber: "0123456789",
		Amount:        500_000,
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Flip one digit of the amount.
	tampered := strings.Replace(payload, "500000", "500001", 1)
	if tampered == payload {
		t.Fatal("tampering had no effect")
	}
	if Verify(tampered) {
		t.Errorf("Verify accepted a tampered payload")
	}
	if Verify("") || Verify("6304") {
		t.Errorf("Verify accepted a degenerate payload")
	}
}

func TestCRC16_KnownVector(t *testing.T) {
	// CRC-16/CCITT-FALSE check value for "123456789".
	if got := crc16([]byte("123456789")); got != 0x29B1 {
		t.Errorf("crc16(123456789) = %04X, want 29B1", got)
	}
}
