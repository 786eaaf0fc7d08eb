// internal/pkg/signature/signature.go
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	xerrors "rankpilot-service/internal/pkg/errors"
)

// Header format: "t=<unix>,v1=<hex hmac>". The HMAC-SHA256 is computed
// over "<t>.<raw body>" so the signature is bound to the raw, unparsed
// bytes and to the timestamp, which closes replay-with-modified-body.
const scheme = "v1"

// DefaultTolerance bounds how old a signed timestamp may be before the
// signature is rejected as a replay.
const DefaultTolerance = 5 * time.Minute

// Sign produces a signature header for a raw payload. Used by the
// provider side (and by tests).
func Sign(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := computeMAC(payload, secret, ts)
	return fmt.Sprintf("t=%d,%s=%s", ts, scheme, hex.EncodeToString(mac))
}

// Verify checks a signature header against the raw payload. The
// comparison is constant-time. Returns xerrors.ErrSignatureInvalid on
// any mismatch, malformed header, or timestamp outside tolerance.
func Verify(payload []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	ts, sig, err := parseHeader(header)
	if err != nil {
		return err
	}

	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return xerrors.ErrSignatureInvalid
		}
	}

	expected := computeMAC(payload, secret, ts)
	if !hmac.Equal(expected, sig) {
		return xerrors.ErrSignatureInvalid
	}
	return nil
}

func computeMAC(payload []byte, secret string, ts int64) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return mac.Sum(nil)
}

func parseHeader(header string) (int64, []byte, error) {
	var ts int64
	var sig []byte

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			v, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, xerrors.ErrSignatureInvalid
			}
			ts = v
		case scheme:
			v, err := hex.DecodeString(kv[1])
			if err != nil {
				return 0, nil, xerrors.ErrSignatureInvalid
			}
			sig = v
		}
	}

	if ts == 0 || len(sig) == 0 {
		return 0, nil, xerrors.ErrSignatureInvalid
	}
	return ts, sig, nil
}
