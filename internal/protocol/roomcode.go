package protocol

import (
	"fmt"
	"net"
	"strings"
)

// Room codes are a human-readable spelling of the host's IPv4 address and
// port. Each 16-bit group is rendered as one pronounceable five-letter word
// (consonant-vowel alternation), so a full code is three words, e.g.
// "lusab-babad-tobok". The mapping is bijective: Encode and Decode round-trip
// exactly, and Decode rejects anything not produced by Encode.

const roomCodeWords = 3

var (
	rcConsonants = []byte("bdfghjklmnprstvz")
	rcVowels     = []byte("aiou")
)

// EncodeRoomCode maps an IPv4 host:port address to a room code.
func EncodeRoomCode(addr string) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("room code: %w", err)
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return "", fmt.Errorf("room code: not an IPv4 address: %s", host)
	}
	var port uint16
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return "", fmt.Errorf("room code: bad port: %s", portStr)
	}
	v4 := ip.To4()
	groups := [roomCodeWords]uint16{
		uint16(v4[0])<<8 | uint16(v4[1]),
		uint16(v4[2])<<8 | uint16(v4[3]),
		port,
	}
	words := make([]string, 0, roomCodeWords)
	for _, g := range groups {
		words = append(words, encodeWord(g))
	}
	return strings.Join(words, "-"), nil
}

// DecodeRoomCode maps a room code back to an IPv4 host:port address.
func DecodeRoomCode(code string) (string, error) {
	words := strings.Split(strings.ToLower(strings.TrimSpace(code)), "-")
	if len(words) != roomCodeWords {
		return "", fmt.Errorf("room code: want %d words, got %d", roomCodeWords, len(words))
	}
	var groups [roomCodeWords]uint16
	for i, w := range words {
		g, err := decodeWord(w)
		if err != nil {
			return "", err
		}
		groups[i] = g
	}
	ip := net.IPv4(byte(groups[0]>>8), byte(groups[0]), byte(groups[1]>>8), byte(groups[1]))
	return fmt.Sprintf("%s:%d", ip.String(), groups[2]), nil
}

// ValidRoomCode reports whether code parses under the room-code alphabet.
func ValidRoomCode(code string) bool {
	_, err := DecodeRoomCode(code)
	return err == nil
}

// encodeWord spells one 16-bit group as con-vow-con-vow-con (4+2+4+2+4 bits).
func encodeWord(g uint16) string {
	var b [5]byte
	b[0] = rcConsonants[(g>>12)&0xF]
	b[1] = rcVowels[(g>>10)&0x3]
	b[2] = rcConsonants[(g>>6)&0xF]
	b[3] = rcVowels[(g>>4)&0x3]
	b[4] = rcConsonants[g&0xF]
	return string(b[:])
}

func decodeWord(w string) (uint16, error) {
	if len(w) != 5 {
		return 0, fmt.Errorf("room code: bad word length: %q", w)
	}
	c0 := consonantIndex(w[0])
	v0 := vowelIndex(w[1])
	c1 := consonantIndex(w[2])
	v1 := vowelIndex(w[3])
	c2 := consonantIndex(w[4])
	if c0 < 0 || v0 < 0 || c1 < 0 || v1 < 0 || c2 < 0 {
		return 0, fmt.Errorf("room code: bad word: %q", w)
	}
	return uint16(c0)<<12 | uint16(v0)<<10 | uint16(c1)<<6 | uint16(v1)<<4 | uint16(c2), nil
}

func consonantIndex(c byte) int {
	for i, x := range rcConsonants {
		if x == c {
			return i
		}
	}
	return -1
}

func vowelIndex(c byte) int {
	for i, x := range rcVowels {
		if x == c {
			return i
		}
	}
	return -1
}
