// Package signature implements the two PayOS HMAC-SHA256 canonicalizations:
// the fixed-order string used when creating a payment link and the
// deep-sorted form used to verify webhook data.
package signature

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// PaymentRequestFields are the five fields covered by the payment-link
// signature.
type PaymentRequestFields struct {
	Amount      int64
	CancelURL   string
	Description string
	OrderCode   int64
	ReturnURL   string
}

// PaymentRequestString builds the signing string in the order PayOS expects.
// The order is fixed and must not be derived by sorting.
func PaymentRequestString(f PaymentRequestFields) string {
	return "amount=" + strconv.FormatInt(f.Amount, 10) +
		"&cancelUrl=" + f.CancelURL +
		"&description=" + f.Description +
		"&orderCode=" + strconv.FormatInt(f.OrderCode, 10) +
		"&returnUrl=" + f.ReturnURL
}

// SignPaymentRequest returns the hex HMAC of PaymentRequestString.
func SignPaymentRequest(key string, f PaymentRequestFields) string {
	return hmacHex(key, PaymentRequestString(f))
}

// Decode parses a JSON object keeping numbers in their literal form.
func Decode(raw []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var data map[string]interface{}
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("decode signed data: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("decode signed data: not an object")
	}
	return data, nil
}

// Canonicalize flattens data into key=value pairs joined by '&', keys sorted.
// Nested objects and arrays are JSON encoded with their object keys sorted
// at every depth; array order is kept.
func Canonicalize(data map[string]interface{}) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatValue(data[k]))
	}
	return b.String()
}

// Sign returns the hex HMAC-SHA256 of Canonicalize(data).
func Sign(key string, data map[string]interface{}) string {
	return hmacHex(key, Canonicalize(data))
}

// Verify reports whether sig matches Sign(key, data). The comparison is
// constant time.
func Verify(key string, data map[string]interface{}, sig string) bool {
	expected := Sign(key, data)
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(sig)))
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return encodeSorted(v)
	}
}

// encodeSorted JSON-encodes v. encoding/json already orders map keys, so
// decoded objects come out deep-sorted. HTML escaping is disabled and
// U+2028/U+2029 are written raw to match JSON.stringify. Invalid UTF-8 has
// already become U+FFFD in Decode, so it cannot be reproduced byte for byte.
func encodeSorted(v interface{}) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return unescapeLineSeparators(strings.TrimSuffix(buf.String(), "\n"))
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes emitted by
// encoding/json back into the raw runes. Escaped backslashes are skipped so
// a literal "\\u2028" in the data is left alone.
func unescapeLineSeparators(s string) string {
	if !strings.Contains(s, `\u202`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch {
		case strings.HasPrefix(s[i:], `\u2028`):
			b.WriteRune('\u2028')
			i += 5
		case strings.HasPrefix(s[i:], `\u2029`):
			b.WriteRune('\u2029')
			i += 5
		default:
			b.WriteByte(s[i])
			b.WriteByte(s[i+1])
			i++
		}
	}
	return b.String()
}

func hmacHex(key, msg string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}
