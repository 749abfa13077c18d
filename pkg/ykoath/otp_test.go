package ykoath

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"hash"
	"testing"
	"time"
)

// RFC 4226 appendix D test vectors: HMAC-SHA1 with the ASCII key
// "12345678901234567890", counters 0 through 9, 6 digits.
func TestTruncate_RFC4226Vectors(t *testing.T) {
	key := []byte("12345678901234567890")
	expected := []string{
		"755224", "287082", "359152", "969429", "338314",
		"254676", "287922", "162583", "399871", "520489",
	}

	for counter, want := range expected {
		var msg [8]byte
		binary.BigEndian.PutUint64(msg[:], uint64(counter))

		mac := hmac.New(sha1.New, key)
		mac.Write(msg[:])

		value, err := Truncate(mac.Sum(nil))
		if err != nil {
			t.Fatalf("Truncate(counter=%d): %v", counter, err)
		}
		if got := FormatCode(value, 6); got != want {
			t.Errorf("counter %d: got %s, want %s", counter, got, want)
		}
	}
}

// RFC 6238 appendix B test vectors, 8 digits, 30-second steps.
func TestTimeChallenge_RFC6238Vectors(t *testing.T) {
	testCases := []struct {
		unix int64
		hash func() hash.Hash
		key  string
		want string
	}{
		{59, sha1.New, "12345678901234567890", "94287082"},
		{59, sha256.New, "12345678901234567890123456789012", "46119246"},
		{59, sha512.New, "1234567890123456789012345678901234567890123456789012345678901234", "90693936"},
		{1111111109, sha1.New, "12345678901234567890", "07081804"},
		{1111111111, sha1.New, "12345678901234567890", "14050471"},
		{1234567890, sha1.New, "12345678901234567890", "89005924"},
		{2000000000, sha1.New, "12345678901234567890", "69279037"},
		{20000000000, sha1.New, "12345678901234567890", "65353130"},
		{1111111109, sha256.New, "12345678901234567890123456789012", "68084774"},
		{1111111109, sha512.New, "1234567890123456789012345678901234567890123456789012345678901234", "25091201"},
	}

	for _, tc := range testCases {
		challenge := TimeChallenge(time.Unix(tc.unix, 0), DefaultPeriod)

		mac := hmac.New(tc.hash, []byte(tc.key))
		mac.Write(challenge)

		value, err := Truncate(mac.Sum(nil))
		if err != nil {
			t.Fatalf("Truncate(T=%d): %v", tc.unix, err)
		}
		if got := FormatCode(value, 8); got != tc.want {
			t.Errorf("T=%d: got %s, want %s", tc.unix, got, tc.want)
		}
	}
}

func TestTimeChallenge_Encoding(t *testing.T) {
	testCases := []struct {
		unix   int64
		period time.Duration
		want   uint64
	}{
		{0, DefaultPeriod, 0},
		{29, DefaultPeriod, 0},
		{30, DefaultPeriod, 1},
		{59, DefaultPeriod, 1},
		{60, DefaultPeriod, 2},
		{59, 60 * time.Second, 0},
		{60, 60 * time.Second, 1},
	}

	for _, tc := range testCases {
		challenge := TimeChallenge(time.Unix(tc.unix, 0), tc.period)
		if len(challenge) != 8 {
			t.Fatalf("T=%d: challenge of %d bytes", tc.unix, len(challenge))
		}
		if got := binary.BigEndian.Uint64(challenge); got != tc.want {
			t.Errorf("T=%d period=%v: got step %d, want %d", tc.unix, tc.period, got, tc.want)
		}
	}
}

func TestFormatCode_Padding(t *testing.T) {
	testCases := []struct {
		value  uint32
		digits int
		want   string
	}{
		{755224, 6, "755224"},
		{1, 6, "000001"},
		{0, 8, "00000000"},
		{94287082, 8, "94287082"},
		{1094287082, 8, "94287082"}, // modulo reduction
	}

	for _, tc := range testCases {
		if got := FormatCode(tc.value, tc.digits); got != tc.want {
			t.Errorf("FormatCode(%d, %d) = %s, want %s", tc.value, tc.digits, got, tc.want)
		}
	}
}

func TestTruncate_Errors(t *testing.T) {
	if _, err := Truncate([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Error("expected error for short input")
	}

	// Offset nibble pointing past the end of the MAC.
	bad := make([]byte, 8)
	bad[7] = 0x0F
	if _, err := Truncate(bad); err == nil {
		t.Error("expected error for out-of-range offset")
	}
}

func TestTimeWindow(t *testing.T) {
	at := time.Unix(65, 0)
	from, until := timeWindow(at, DefaultPeriod)
	if !from.Equal(time.Unix(60, 0)) {
		t.Errorf("from = %v, want %v", from, time.Unix(60, 0))
	}
	if !until.Equal(time.Unix(90, 0)) {
		t.Errorf("until = %v, want %v", until, time.Unix(90, 0))
	}
}
